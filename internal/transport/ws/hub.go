package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Experimenter message types
const (
	MsgExperimentUpdated MessageType = "experiment_updated"
	MsgExperimentDeleted MessageType = "experiment_deleted"
	MsgStageUpdated      MessageType = "stage_updated"
	MsgStageRemoved      MessageType = "stage_removed"
	MsgAnswerSubmitted   MessageType = "answer_submitted"
	MsgParticipantJoined MessageType = "participant_joined"
	MsgParticipantLeft   MessageType = "participant_left"
)

// Participant message types
const (
	MsgError MessageType = "error"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub manages WebSocket connections per experiment
type Hub struct {
	// Experiment -> connections
	experimenterConns map[string]*Connection
	participantConns  map[string]map[string]*Connection // experimentID -> participantID -> conn

	mu sync.RWMutex

	// Channels for coordination
	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *BroadcastMessage
}

// Connection represents a WebSocket connection
type Connection struct {
	ExperimentID   string
	ParticipantID  string // Empty for experimenter connections
	IsExperimenter bool
	Send           chan []byte
	Hub            *Hub
}

// BroadcastMessage is a message to broadcast
type BroadcastMessage struct {
	ExperimentID   string
	ToExperimenter bool
	ToParticipant  string // Empty means all participants, specific ID means one
	Message        *Message
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	h := &Hub{
		experimenterConns: make(map[string]*Connection),
		participantConns:  make(map[string]map[string]*Connection),
		register:          make(chan *Connection),
		unregister:        make(chan *Connection),
		broadcast:         make(chan *BroadcastMessage, 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if conn.IsExperimenter {
				h.experimenterConns[conn.ExperimentID] = conn
				log.Printf("Experimenter connected to experiment %s", conn.ExperimentID)
			} else {
				if h.participantConns[conn.ExperimentID] == nil {
					h.participantConns[conn.ExperimentID] = make(map[string]*Connection)
				}
				h.participantConns[conn.ExperimentID][conn.ParticipantID] = conn
				log.Printf("Participant %s connected to experiment %s", conn.ParticipantID, conn.ExperimentID)

				// Notify experimenter
				h.notifyExperimenter(conn.ExperimentID, MsgParticipantJoined, conn.ParticipantID)
			}
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if conn.IsExperimenter {
				if existing, ok := h.experimenterConns[conn.ExperimentID]; ok && existing == conn {
					delete(h.experimenterConns, conn.ExperimentID)
					close(conn.Send)
					log.Printf("Experimenter disconnected from experiment %s", conn.ExperimentID)
				}
			} else {
				if participants, ok := h.participantConns[conn.ExperimentID]; ok {
					if existing, ok := participants[conn.ParticipantID]; ok && existing == conn {
						delete(participants, conn.ParticipantID)
						close(conn.Send)
						log.Printf("Participant %s disconnected from experiment %s", conn.ParticipantID, conn.ExperimentID)

						// Notify experimenter
						h.notifyExperimenter(conn.ExperimentID, MsgParticipantLeft, conn.ParticipantID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			data, _ := json.Marshal(msg.Message)

			if msg.ToExperimenter {
				if conn, ok := h.experimenterConns[msg.ExperimentID]; ok {
					select {
					case conn.Send <- data:
					default:
						// Drop message if buffer full
					}
				}
			} else if msg.ToParticipant != "" {
				// Send to specific participant
				if participants, ok := h.participantConns[msg.ExperimentID]; ok {
					if conn, ok := participants[msg.ToParticipant]; ok {
						select {
						case conn.Send <- data:
						default:
						}
					}
				}
			} else {
				// Broadcast to all participants
				if participants, ok := h.participantConns[msg.ExperimentID]; ok {
					for _, conn := range participants {
						select {
						case conn.Send <- data:
						default:
						}
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// BroadcastToExperimenter sends a message to the experiment owner (implements service.Broadcaster)
func (h *Hub) BroadcastToExperimenter(experimentID string, msgType string, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.broadcast <- &BroadcastMessage{
		ExperimentID:   experimentID,
		ToExperimenter: true,
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}
}

// BroadcastToParticipant sends a message to a specific participant (implements service.Broadcaster)
func (h *Hub) BroadcastToParticipant(experimentID, participantID string, msgType string, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.broadcast <- &BroadcastMessage{
		ExperimentID:  experimentID,
		ToParticipant: participantID,
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}
}

// BroadcastToAllParticipants sends a message to every participant in an experiment (implements service.Broadcaster)
func (h *Hub) BroadcastToAllParticipants(experimentID string, msgType string, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.broadcast <- &BroadcastMessage{
		ExperimentID:  experimentID,
		ToParticipant: "", // Empty means all
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}
}

// DisconnectExperiment closes every connection of a deleted experiment
// (implements service.Broadcaster)
func (h *Hub) DisconnectExperiment(experimentID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conn, ok := h.experimenterConns[experimentID]; ok {
		delete(h.experimenterConns, experimentID)
		close(conn.Send)
	}
	if participants, ok := h.participantConns[experimentID]; ok {
		delete(h.participantConns, experimentID)
		for _, conn := range participants {
			close(conn.Send)
		}
	}
	log.Printf("Disconnected all connections for experiment %s", experimentID)
}

func (h *Hub) notifyExperimenter(experimentID string, msgType MessageType, participantID string) {
	if conn, ok := h.experimenterConns[experimentID]; ok {
		data, _ := json.Marshal(&Message{
			Type:    msgType,
			Payload: json.RawMessage(`{"participantId":"` + participantID + `"}`),
		})
		select {
		case conn.Send <- data:
		default:
		}
	}
}
