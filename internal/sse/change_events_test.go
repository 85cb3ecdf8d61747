package sse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitReachesBranchSubscribers(t *testing.T) {
	e := NewChangeEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chA := e.Subscribe(ctx, "b1")
	chB := e.Subscribe(ctx, "b2")

	e.Emit(ChangeEvent{Entity: "orders", Action: "created", EntityID: "o1", BranchID: "b1"})

	select {
	case event := <-chA:
		assert.Equal(t, "orders", event.Entity)
		assert.Equal(t, "o1", event.EntityID)
		assert.False(t, event.At.IsZero(), "Emit must stamp the event")
	case <-time.After(time.Second):
		t.Fatal("subscriber of b1 did not receive the event")
	}

	select {
	case event := <-chB:
		t.Fatalf("subscriber of b2 received foreign event: %+v", event)
	default:
	}
}

func TestSubscribeCleanupOnContextDone(t *testing.T) {
	e := NewChangeEmitter()
	ctx, cancel := context.WithCancel(context.Background())

	ch := e.Subscribe(ctx, "b1")
	require.Equal(t, 1, e.SubscriberCount("b1"))

	cancel()
	require.Eventually(t, func() bool {
		return e.SubscriberCount("b1") == 0
	}, time.Second, 10*time.Millisecond)

	_, open := <-ch
	assert.False(t, open, "channel must close on unsubscribe")
}

func TestEmitSkipsSlowClients(t *testing.T) {
	e := NewChangeEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e.Subscribe(ctx, "b1") // never drained

	// Flooding past the buffer must not block the mutation path.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			e.Emit(ChangeEvent{Entity: "orders", Action: "updated", EntityID: "o1", BranchID: "b1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a slow subscriber")
	}
}
