package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_PublishToSubscribers(t *testing.T) {
	b := NewBroker()
	ch1, cleanup1 := b.Subscribe()
	defer cleanup1()
	ch2, cleanup2 := b.Subscribe()
	defer cleanup2()
	assert.Equal(t, 2, b.Subscribers())

	b.Publish(Event{Type: EventHostAnalyzed, BatchID: "batch-1", HostID: "10.0.0.1"})

	for _, ch := range []<-chan []byte{ch1, ch2} {
		var evt Event
		require.NoError(t, json.Unmarshal(<-ch, &evt))
		assert.Equal(t, EventHostAnalyzed, evt.Type)
		assert.Equal(t, "batch-1", evt.BatchID)
		assert.Equal(t, "10.0.0.1", evt.HostID)
	}
}

func TestBroker_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroker()
	ch, cleanup := b.Subscribe()
	defer cleanup()

	for i := 0; i < 100; i++ {
		b.Publish(Event{Type: EventBatchStarted})
	}
	assert.Len(t, ch, cap(ch))
}

func TestBroker_CleanupIsIdempotent(t *testing.T) {
	b := NewBroker()
	ch, cleanup := b.Subscribe()
	cleanup()
	cleanup()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.Subscribers())
	b.Publish(Event{Type: EventBatchCompleted})
}

func TestBroker_Close(t *testing.T) {
	b := NewBroker()
	b.Close()
	b.Close()

	select {
	case <-b.Done():
	default:
		t.Fatal("Done channel should be closed")
	}
}
