package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveMessage(t *testing.T, conn *Connection) *Message {
	t.Helper()
	select {
	case data := <-conn.Send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return &msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestHubRoutesMessages(t *testing.T) {
	h := NewHub()

	experimenter := &Connection{ExperimentID: "exp-1", IsExperimenter: true, Send: make(chan []byte, 8), Hub: h}
	p1 := &Connection{ExperimentID: "exp-1", ParticipantID: "p-1", Send: make(chan []byte, 8), Hub: h}
	p2 := &Connection{ExperimentID: "exp-1", ParticipantID: "p-2", Send: make(chan []byte, 8), Hub: h}

	h.Register(experimenter)
	h.Register(p1)
	h.Register(p2)

	// Registering a participant notifies the experimenter.
	msg := receiveMessage(t, experimenter)
	assert.Equal(t, MsgParticipantJoined, msg.Type)
	receiveMessage(t, experimenter)

	h.BroadcastToExperimenter("exp-1", string(MsgAnswerSubmitted), map[string]string{"stageId": "s1"})
	msg = receiveMessage(t, experimenter)
	assert.Equal(t, MsgAnswerSubmitted, msg.Type)

	h.BroadcastToParticipant("exp-1", "p-1", string(MsgStageUpdated), nil)
	msg = receiveMessage(t, p1)
	assert.Equal(t, MsgStageUpdated, msg.Type)
	assert.Empty(t, p2.Send, "a directed message reaches only its participant")

	h.BroadcastToAllParticipants("exp-1", string(MsgExperimentUpdated), nil)
	assert.Equal(t, MsgExperimentUpdated, receiveMessage(t, p1).Type)
	assert.Equal(t, MsgExperimentUpdated, receiveMessage(t, p2).Type)
}

func TestHubDisconnectExperiment(t *testing.T) {
	h := NewHub()

	experimenter := &Connection{ExperimentID: "exp-1", IsExperimenter: true, Send: make(chan []byte, 8), Hub: h}
	participant := &Connection{ExperimentID: "exp-1", ParticipantID: "p-1", Send: make(chan []byte, 8), Hub: h}
	h.Register(experimenter)
	h.Register(participant)
	receiveMessage(t, experimenter)

	h.DisconnectExperiment("exp-1")

	// Closed send channels signal the write pumps to shut the sockets down.
	for _, conn := range []*Connection{experimenter, participant} {
		select {
		case _, open := <-conn.Send:
			assert.False(t, open)
		case <-time.After(time.Second):
			t.Fatal("send channel not closed")
		}
	}
}
