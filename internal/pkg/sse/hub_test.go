package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastReachesSubscribers(t *testing.T) {
	hub := NewHub()
	client := &Client{ID: "c1", Channel: make(chan Event, 4), Resource: "session:s1"}
	hub.Register(client)
	require.Equal(t, 1, hub.Subscribers("session:s1"))

	hub.Broadcast("session:s1", Event{Payload: map[string]string{"type": "end"}})
	hub.Broadcast("session:other", Event{Payload: "ignored"})

	require.Len(t, client.Channel, 1)
	ev := <-client.Channel
	assert.Contains(t, ev.Format(), `"type":"end"`)
}

func TestHub_UnregisterClosesChannel(t *testing.T) {
	hub := NewHub()
	client := &Client{ID: "c1", Channel: make(chan Event, 1), Resource: "session:s1"}
	hub.Register(client)
	hub.Unregister(client)

	assert.Equal(t, 0, hub.Subscribers("session:s1"))
	_, open := <-client.Channel
	assert.False(t, open)

	// A second unregister of the same client is a no-op.
	hub.Unregister(client)
}

func TestHub_SlowSubscriberSkipped(t *testing.T) {
	hub := NewHub()
	client := &Client{ID: "c1", Channel: make(chan Event, 1), Resource: "session:s1"}
	hub.Register(client)

	hub.Broadcast("session:s1", Event{Payload: "first"})
	hub.Broadcast("session:s1", Event{Payload: "dropped"})

	require.Len(t, client.Channel, 1)
	ev := <-client.Channel
	assert.Contains(t, ev.Format(), "first")
}
