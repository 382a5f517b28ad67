package events

import "github.com/ternarybob/leadforge/internal/models"

// Subscription is a channel-backed event sink for streaming handlers.
// Events are buffered; when the buffer is full the oldest event is
// dropped rather than blocking the publisher. Stream consumers recover
// missed events through buffer replay on reconnect.
type Subscription struct {
	ch     chan models.JobEvent
	closed chan struct{}
}

// NewSubscription creates a subscription with the given buffer size
func NewSubscription(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 64
	}
	return &Subscription{
		ch:     make(chan models.JobEvent, buffer),
		closed: make(chan struct{}),
	}
}

// Notify implements interfaces.EventSink without blocking
func (s *Subscription) Notify(event models.JobEvent) {
	select {
	case <-s.closed:
		return
	default:
	}

	select {
	case s.ch <- event:
	default:
		// Buffer full: drop the oldest to make room for the newest.
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- event:
		default:
		}
	}
}

// Events returns the receive channel
func (s *Subscription) Events() <-chan models.JobEvent {
	return s.ch
}

// Close stops accepting events. Safe to call once.
func (s *Subscription) Close() {
	close(s.closed)
}
