package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishQueuesTypedEvent(t *testing.T) {
	h := NewHub(nil)
	h.Publish(EventSaleCreated, map[string]any{"total_cents": 6660})

	var got map[string]any
	require.NoError(t, json.Unmarshal(<-h.Broadcast, &got))
	require.Equal(t, EventSaleCreated, got["type"])
	require.EqualValues(t, 6660, got["total_cents"])
}

func TestPublishNeverBlocks(t *testing.T) {
	h := NewHub(nil)
	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*2; i++ {
			h.Publish(EventProductUpdated, nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
	require.Len(t, h.Broadcast, broadcastBuffer)

	var nilHub *Hub
	nilHub.Publish(EventProductUpdated, nil)
}

func TestRunStopsOnCancel(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	h.Publish(EventRefundProcessed, nil)
	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.Zero(t, h.ClientCount())
}
