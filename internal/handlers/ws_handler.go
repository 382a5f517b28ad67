package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/leadforge/internal/models"
	"github.com/ternarybob/leadforge/internal/services/events"
	"github.com/ternarybob/leadforge/internal/services/jobs"
)

// WSHandler mirrors the per-job event stream over a WebSocket for
// clients that cannot use SSE. Same typed events; replay works the
// same way through the ?last_event_id= query param.
type WSHandler struct {
	store    *jobs.Store
	manager  *jobs.Manager
	upgrader websocket.Upgrader
	logger   arbor.ILogger
}

// wsFrame wraps an event with its sequence for the wire
type wsFrame struct {
	Sequence int64           `json:"sequence"`
	Event    models.JobEvent `json:"event"`
}

// NewWSHandler creates a new WebSocket stream handler
func NewWSHandler(store *jobs.Store, manager *jobs.Manager, logger arbor.ILogger) *WSHandler {
	return &WSHandler{
		store:   store,
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // Browser clients connect from any origin; auth is header-based
			},
		},
		logger: logger,
	}
}

// StreamJob handles GET /ws?job_id=
func (h *WSHandler) StreamJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "job_id is required")
		return
	}

	job, err := h.manager.GetJob(jobID)
	if err != nil {
		writeJobError(w, err)
		return
	}
	if job.Config.UserID != UserID(r) {
		writeJobError(w, jobs.ErrNotOwner)
		return
	}

	afterSeq := lastEventID(r)

	sub := events.NewSubscription(256)
	replay, status, err := h.store.SubscribeWithReplay(jobID, afterSeq, sub)
	if err != nil {
		writeJobError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.store.Unsubscribe(jobID, sub)
		sub.Close()
		h.logger.Warn().Str("job_id", jobID).Err(err).Msg("WebSocket upgrade failed")
		return
	}

	defer func() {
		h.store.Unsubscribe(jobID, sub)
		sub.Close()
		conn.Close()
	}()

	// Read pump: discard client messages, notice the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, event := range replay {
		if err := conn.WriteJSON(wsFrame{Sequence: event.Sequence, Event: event}); err != nil {
			return
		}
		if event.IsTerminal() {
			h.closeNormally(conn)
			return
		}
	}
	if status.IsTerminal() {
		h.closeNormally(conn)
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			return

		case event := <-sub.Events():
			if err := conn.WriteJSON(wsFrame{Sequence: event.Sequence, Event: event}); err != nil {
				return
			}
			if event.IsTerminal() {
				h.closeNormally(conn)
				return
			}

		case <-heartbeat.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream complete")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(5*time.Second))
}
