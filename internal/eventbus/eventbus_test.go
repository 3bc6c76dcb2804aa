package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusDeliversMatchingEvents(t *testing.T) {
	bus := NewMemoryBus(16)

	var mu sync.Mutex
	received := make([]*Envelope, 0)
	done := make(chan struct{}, 1)

	sub, err := bus.Subscribe(context.Background(), Filter{Types: []string{"object_added"}}, func(ctx context.Context, ev *Envelope) {
		mu.Lock()
		received = append(received, ev)
		mu.Unlock()
		done <- struct{}{}
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), &Envelope{
		ID: "evt-1", EventType: "object_added", Timestamp: time.Now(),
	}))
	require.NoError(t, bus.Publish(context.Background(), &Envelope{
		ID: "evt-2", EventType: "region_checkpointed", Timestamp: time.Now(),
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("событие object_added не было доставлено")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "evt-1", received[0].ID)
}

func TestMemoryBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewMemoryBus(4)

	var count int
	var mu sync.Mutex

	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), &Envelope{ID: "evt-1", EventType: "object_added"}))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, count)
}

func TestGlobalPublishIsNoopWithoutInit(t *testing.T) {
	err := Publish(context.Background(), &Envelope{ID: "evt"})
	assert.NoError(t, err)
}
