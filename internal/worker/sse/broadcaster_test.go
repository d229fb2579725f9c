package sse

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastNoClients(t *testing.T) {
	b := NewBroadcaster()
	// Must not panic or block
	b.Broadcast(Event{Type: "status", Data: map[string]string{"state": "idle"}})
	assert.Equal(t, 0, b.ClientCount())
}

func TestHandleSSESendsSnapshot(t *testing.T) {
	b := NewBroadcaster()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/api/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.HandleSSE(rec, req, Event{Type: "status", Data: map[string]string{"state": "idle"}})
	}()

	require.Eventually(t, func() bool {
		return b.ClientCount() == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "data: "))
	assert.Contains(t, body, `"type":"status"`)
	assert.Contains(t, body, `"state":"idle"`)
	assert.Equal(t, 0, b.ClientCount())
}

func TestBroadcastReachesClient(t *testing.T) {
	b := NewBroadcaster()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest("GET", "/api/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.HandleSSE(rec, req, Event{Type: "status"})
	}()

	require.Eventually(t, func() bool {
		return b.ClientCount() == 1
	}, time.Second, 5*time.Millisecond)

	b.Broadcast(Event{Type: "journal", Data: map[string]int{"history_length": 3}})

	require.Eventually(t, func() bool {
		return strings.Contains(rec.Body.String(), `"type":"journal"`)
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, rec.Body.String(), `"history_length":3`)

	cancel()
	<-done
}

func TestBroadcastDropsUnmarshalable(t *testing.T) {
	b := NewBroadcaster()
	// Channels cannot be marshaled; the event is dropped without panicking
	b.Broadcast(Event{Type: "status", Data: make(chan int)})
}
