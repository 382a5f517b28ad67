package interfaces

import "github.com/ternarybob/leadforge/internal/models"

// EventSink receives job events for one subscriber. Notify must not
// block: slow consumers are expected to drop rather than stall the
// publisher.
type EventSink interface {
	Notify(event models.JobEvent)
}

// EventRegistry fans job events out to registered sinks. Ordering is
// preserved per job; there is no cross-job ordering guarantee.
type EventRegistry interface {
	Register(jobID string, sink EventSink)
	Unregister(jobID string, sink EventSink)
	Publish(jobID string, event models.JobEvent)

	// DropJob removes all sinks for a job, used when a job is swept
	// from memory.
	DropJob(jobID string)
}
