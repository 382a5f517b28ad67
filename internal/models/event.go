package models

// EventType identifies the kind of a job event
type EventType string

const (
	EventStatus     EventType = "status"
	EventLead       EventType = "lead"
	EventLeadUpdate EventType = "lead_update"
	EventError      EventType = "error"
	EventComplete   EventType = "complete"
)

// JobEvent is one entry in a job's event log. Sequence numbers are
// monotonic per job and drive reconnect replay; they are carried in
// the stream frame, not the JSON payload.
type JobEvent struct {
	Sequence int64     `json:"-"`
	Type     EventType `json:"type"`

	// status events
	Step    string `json:"step,omitempty"`
	Current int    `json:"current,omitempty"`
	Total   int    `json:"total,omitempty"`

	// status and error events
	Message string `json:"message,omitempty"`

	// lead and lead_update events
	Lead *Lead `json:"lead,omitempty"`

	// error events
	Recoverable *bool `json:"recoverable,omitempty"`

	// complete events
	Summary *JobSummary `json:"summary,omitempty"`
}

// IsTerminal reports whether this event ends the stream: a complete
// event, or an error event not marked recoverable.
func (e JobEvent) IsTerminal() bool {
	if e.Type == EventComplete {
		return true
	}
	return e.Type == EventError && e.Recoverable != nil && !*e.Recoverable
}

// NewStatusEvent builds a progress event
func NewStatusEvent(step string, current, total int, message string) JobEvent {
	return JobEvent{
		Type:    EventStatus,
		Step:    step,
		Current: current,
		Total:   total,
		Message: message,
	}
}

// NewLeadEvent builds an event for a newly accepted lead
func NewLeadEvent(lead *Lead) JobEvent {
	return JobEvent{Type: EventLead, Lead: lead}
}

// NewLeadUpdateEvent builds an event for an already-accepted lead that
// gained data (outreach text).
func NewLeadUpdateEvent(lead *Lead) JobEvent {
	return JobEvent{Type: EventLeadUpdate, Lead: lead}
}

// NewErrorEvent builds an error event. Non-recoverable errors close
// the stream.
func NewErrorEvent(message string, recoverable bool) JobEvent {
	return JobEvent{Type: EventError, Message: message, Recoverable: &recoverable}
}

// NewCompleteEvent builds the terminal completion event
func NewCompleteEvent(summary *JobSummary) JobEvent {
	return JobEvent{Type: EventComplete, Summary: summary}
}
