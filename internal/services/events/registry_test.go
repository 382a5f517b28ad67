package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/leadforge/internal/models"
)

type recordingSink struct {
	events []models.JobEvent
}

func (s *recordingSink) Notify(event models.JobEvent) {
	s.events = append(s.events, event)
}

func TestRegistryPublishRouting(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())

	a := &recordingSink{}
	b := &recordingSink{}
	registry.Register("job-a", a)
	registry.Register("job-b", b)

	registry.Publish("job-a", models.NewStatusEvent("scraping", 1, 10, "working"))
	registry.Publish("job-b", models.NewStatusEvent("scoring", 2, 10, "working"))
	registry.Publish("job-c", models.NewStatusEvent("outreach", 3, 10, "working")) // no subscribers

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Equal(t, "scraping", a.events[0].Step)
	assert.Equal(t, "scoring", b.events[0].Step)
}

func TestRegistryUnregister(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())

	sink := &recordingSink{}
	registry.Register("job-a", sink)
	assert.Equal(t, 1, registry.SubscriberCount("job-a"))

	registry.Unregister("job-a", sink)
	assert.Equal(t, 0, registry.SubscriberCount("job-a"))

	registry.Publish("job-a", models.NewStatusEvent("scraping", 1, 1, "late"))
	assert.Empty(t, sink.events)

	// Unregistering twice is harmless.
	registry.Unregister("job-a", sink)
}

func TestRegistryDropJob(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())

	registry.Register("job-a", &recordingSink{})
	registry.Register("job-a", &recordingSink{})
	require.Equal(t, 2, registry.SubscriberCount("job-a"))

	registry.DropJob("job-a")
	assert.Equal(t, 0, registry.SubscriberCount("job-a"))
}

func TestSubscriptionDropsOldestWhenFull(t *testing.T) {
	sub := NewSubscription(2)

	sub.Notify(models.NewStatusEvent("scraping", 1, 3, "one"))
	sub.Notify(models.NewStatusEvent("scraping", 2, 3, "two"))
	sub.Notify(models.NewStatusEvent("scraping", 3, 3, "three"))

	first := <-sub.Events()
	second := <-sub.Events()
	assert.Equal(t, "two", first.Message)
	assert.Equal(t, "three", second.Message)

	select {
	case <-sub.Events():
		t.Fatal("expected empty channel")
	default:
	}
}

func TestSubscriptionClosedDiscards(t *testing.T) {
	sub := NewSubscription(4)
	sub.Close()

	sub.Notify(models.NewStatusEvent("scraping", 1, 1, "late"))

	select {
	case <-sub.Events():
		t.Fatal("closed subscription should not accept events")
	default:
	}
}
