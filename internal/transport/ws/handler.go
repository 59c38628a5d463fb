package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"deliberatelab/internal/service"
	"deliberatelab/internal/sync"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// Handler handles WebSocket connections
type Handler struct {
	hub     *Hub
	authSvc *service.AuthService
	watcher sync.Watcher
}

// NewHandler creates a new WebSocket handler. The watcher feeds live
// experiment changes to experimenter connections; nil disables the feed.
func NewHandler(hub *Hub, authSvc *service.AuthService, watcher sync.Watcher) *Handler {
	return &Handler{
		hub:     hub,
		authSvc: authSvc,
		watcher: watcher,
	}
}

// ExperimenterWS handles GET /v1/ws/experiments/{experimentId}/experimenter
func (h *Handler) ExperimenterWS(w http.ResponseWriter, r *http.Request) {
	experimentID := mux.Vars(r)["experimentId"]
	token := r.URL.Query().Get("token")

	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.authSvc.ValidateExperimenterToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	conn := &Connection{
		ExperimentID:   experimentID,
		IsExperimenter: true,
		Send:           make(chan []byte, 256),
		Hub:            h.hub,
	}

	h.hub.Register(conn)
	stopFeed := h.startFeed(experimentID)

	log.Printf("Experimenter %s connected to experiment %s via WebSocket", claims.UserID, experimentID)

	go h.writePump(wsConn, conn)
	go func() {
		h.readPump(wsConn, conn)
		stopFeed()
	}()
}

// ParticipantWS handles GET /v1/ws/experiments/{experimentId}/participant
func (h *Handler) ParticipantWS(w http.ResponseWriter, r *http.Request) {
	experimentID := mux.Vars(r)["experimentId"]
	token := r.URL.Query().Get("token")

	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.authSvc.ValidateParticipantToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	if claims.ExperimentID != experimentID {
		http.Error(w, "token not valid for this experiment", http.StatusForbidden)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	conn := &Connection{
		ExperimentID:  experimentID,
		ParticipantID: claims.ParticipantID,
		Send:          make(chan []byte, 256),
		Hub:           h.hub,
	}

	h.hub.Register(conn)

	log.Printf("Participant %s connected to experiment %s via WebSocket", claims.ParticipantID, experimentID)

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

// startFeed subscribes the experiment's change feed and rebroadcasts every
// event to the experiment's experimenter connection. The returned stop func
// releases both subscriptions.
func (h *Handler) startFeed(experimentID string) func() {
	if h.watcher == nil {
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	expCh, cancelExp, err := h.watcher.WatchExperiment(ctx, experimentID)
	if err != nil {
		log.Printf("Failed to watch experiment %s: %v", experimentID, err)
		cancel()
		return func() {}
	}
	stageCh, cancelStages, err := h.watcher.WatchStages(ctx, experimentID)
	if err != nil {
		log.Printf("Failed to watch stages of experiment %s: %v", experimentID, err)
		cancelExp()
		cancel()
		return func() {}
	}

	go func() {
		for ev := range expCh {
			h.hub.BroadcastToExperimenter(experimentID, string(MsgExperimentUpdated), ev.Experiment)
		}
	}()
	go func() {
		for ev := range stageCh {
			if len(ev.Changes) == 0 {
				// Initial or full snapshot: push the whole stage set.
				h.hub.BroadcastToExperimenter(experimentID, string(MsgStageUpdated), ev.Docs)
				continue
			}
			for _, change := range ev.Changes {
				switch change.Type {
				case sync.ChangeUpsert:
					h.hub.BroadcastToExperimenter(experimentID, string(MsgStageUpdated), change.Stage)
				case sync.ChangeRemove:
					h.hub.BroadcastToExperimenter(experimentID, string(MsgStageRemoved), map[string]string{"stageId": change.StageID})
				}
			}
		}
	}()

	return func() {
		cancelExp()
		cancelStages()
		cancel()
	}
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.hub.Unregister(conn)
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		// Inbound traffic must at least be a valid envelope; anything else
		// gets an error reply. The server pushes state, clients acknowledge.
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			payload, _ := json.Marshal(map[string]string{"error": "malformed message"})
			reply, _ := json.Marshal(&Message{Type: MsgError, Payload: payload})
			select {
			case conn.Send <- reply:
			default:
			}
		}
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
