package events

import (
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/leadforge/internal/interfaces"
	"github.com/ternarybob/leadforge/internal/models"
)

// Registry fans job events out to per-job subscribers. It is
// lifecycle-scoped: constructed at service start, injected into the
// job store and the streaming handlers, torn down with the app.
type Registry struct {
	mu     sync.RWMutex
	sinks  map[string]map[interfaces.EventSink]struct{}
	logger arbor.ILogger
}

// NewRegistry creates an empty event registry
func NewRegistry(logger arbor.ILogger) *Registry {
	return &Registry{
		sinks:  make(map[string]map[interfaces.EventSink]struct{}),
		logger: logger,
	}
}

// Register adds a sink for a job's events
func (r *Registry) Register(jobID string, sink interfaces.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sinks[jobID] == nil {
		r.sinks[jobID] = make(map[interfaces.EventSink]struct{})
	}
	r.sinks[jobID][sink] = struct{}{}

	r.logger.Debug().
		Str("job_id", jobID).
		Int("subscribers", len(r.sinks[jobID])).
		Msg("Event sink registered")
}

// Unregister removes a sink. Unknown sinks are ignored.
func (r *Registry) Unregister(jobID string, sink interfaces.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if subs, ok := r.sinks[jobID]; ok {
		delete(subs, sink)
		if len(subs) == 0 {
			delete(r.sinks, jobID)
		}
	}
}

// Publish delivers an event to every sink registered for the job,
// synchronously and in call order. Sinks must not block; per-job
// ordering depends on callers publishing from under the store's lock.
func (r *Registry) Publish(jobID string, event models.JobEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for sink := range r.sinks[jobID] {
		sink.Notify(event)
	}
}

// DropJob removes every sink for a job, used when the job is swept
// from memory.
func (r *Registry) DropJob(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, jobID)
}

// SubscriberCount returns the number of sinks for a job
func (r *Registry) SubscriberCount(jobID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks[jobID])
}
