package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *WebSocketHub {
	t.Helper()
	hub := NewWebSocketHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func TestHubBroadcastsEventToClients(t *testing.T) {
	hub := startHub(t)

	client := &MockClient{SendChan: make(chan []byte, 8)}
	hub.Register(client)

	hub.BroadcastEvent(EventCaptureCreated, "own:alice", "cap:123")

	select {
	case data := <-client.SendChan:
		var event Event
		require.NoError(t, json.Unmarshal(data, &event))
		assert.Equal(t, EventCaptureCreated, event.Type)
		assert.Equal(t, "own:alice", event.OwnerID)
		assert.Equal(t, "cap:123", event.RefID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestHubDeliversToAllClients(t *testing.T) {
	hub := startHub(t)

	first := &MockClient{SendChan: make(chan []byte, 8)}
	second := &MockClient{SendChan: make(chan []byte, 8)}
	hub.Register(first)
	hub.Register(second)

	hub.BroadcastEvent(EventReminderDue, "own:alice", "rem:42")

	for _, client := range []*MockClient{first, second} {
		select {
		case data := <-client.SendChan:
			var event Event
			require.NoError(t, json.Unmarshal(data, &event))
			assert.Equal(t, EventReminderDue, event.Type)
			assert.Equal(t, "rem:42", event.RefID)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for broadcast")
		}
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	hub := startHub(t)

	client := &MockClient{SendChan: make(chan []byte, 8)}
	hub.Register(client)
	hub.Unregister(client)

	// The send channel is closed on unregister.
	select {
	case _, ok := <-client.SendChan:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestHubDropsSlowClients(t *testing.T) {
	hub := startHub(t)

	// Unbuffered channel with no reader: the first broadcast cannot be
	// delivered and the client is dropped.
	slow := &MockClient{SendChan: make(chan []byte)}
	hub.Register(slow)

	hub.BroadcastEvent(EventExtractionApplied, "own:alice", "cap:1")

	select {
	case _, ok := <-slow.SendChan:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for slow client drop")
	}
}
