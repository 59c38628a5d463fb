package service

// Broadcaster interface for WebSocket broadcasting (avoids import cycle)
type Broadcaster interface {
	BroadcastToExperimenter(experimentID string, msgType string, payload interface{})
	BroadcastToParticipant(experimentID, participantID string, msgType string, payload interface{})
	BroadcastToAllParticipants(experimentID string, msgType string, payload interface{})
	DisconnectExperiment(experimentID string)
}
