package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/leadforge/internal/models"
	"github.com/ternarybob/leadforge/internal/services/events"
	"github.com/ternarybob/leadforge/internal/services/jobs"
)

const heartbeatInterval = 15 * time.Second

// StreamHandler serves the per-job SSE event stream. A reconnecting
// client passes the sequence of the last event it saw (Last-Event-ID
// header or last_event_id query param) and receives a gap-free replay
// from the job's buffer followed by live events.
type StreamHandler struct {
	store   *jobs.Store
	manager *jobs.Manager
	logger  arbor.ILogger
}

// NewStreamHandler creates a new SSE stream handler
func NewStreamHandler(store *jobs.Store, manager *jobs.Manager, logger arbor.ILogger) *StreamHandler {
	return &StreamHandler{
		store:   store,
		manager: manager,
		logger:  logger,
	}
}

// StreamJob handles GET /api/jobs/{id}/stream
func (h *StreamHandler) StreamJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodGet) {
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

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	sub := events.NewSubscription(256)
	replay, status, err := h.store.SubscribeWithReplay(jobID, afterSeq, sub)
	if err != nil {
		// Terminal job already swept from memory: nothing to stream.
		writeJobError(w, err)
		return
	}
	defer func() {
		h.store.Unsubscribe(jobID, sub)
		sub.Close()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	flusher.Flush()

	h.logger.Debug().
		Str("job_id", jobID).
		Int64("after_seq", afterSeq).
		Int("replay", len(replay)).
		Msg("SSE stream opened")

	for _, event := range replay {
		if !h.sendEvent(w, flusher, event) {
			return
		}
		if event.IsTerminal() {
			return
		}
	}
	// No subscription was registered for a terminal job; the replay is
	// all the client gets.
	if status.IsTerminal() {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case event := <-sub.Events():
			if !h.sendEvent(w, flusher, event) {
				return
			}
			if event.IsTerminal() {
				return
			}

		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

// sendEvent writes one SSE frame. The sequence rides in the id: field
// so EventSource reconnects resume automatically.
func (h *StreamHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event models.JobEvent) bool {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal stream event")
		return true
	}

	if _, err := fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", event.Type, event.Sequence, data); err != nil {
		return false
	}
	flusher.Flush()
	return true
}

// lastEventID reads the client's resume position. -1 replays the full
// buffer.
func lastEventID(r *http.Request) int64 {
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = r.URL.Query().Get("last_event_id")
	}
	if raw == "" {
		return -1
	}
	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return -1
	}
	return seq
}
