package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/collabry/backend/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversToConnectedUser(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	userID := uuid.New()
	client := NewClient(hub, nil, userID)
	hub.register <- client

	convID := uuid.New()
	evt, err := NewEvent(EventTypeMessageNew, &convID, MessagePayload{Message: domain.Message{
		ID:             uuid.New(),
		ConversationID: convID,
		ReceiverID:     userID,
		Content:        "hi",
		Type:           domain.MessageTypeText,
	}})
	require.NoError(t, err)

	hub.SendToUser(userID, evt)

	select {
	case data := <-client.send:
		var got Event
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, EventTypeMessageNew, got.Type)
		require.NotNil(t, got.ConversationID)
		assert.Equal(t, convID, *got.ConversationID)
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestHubPreservesOrderPerUser(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	userID := uuid.New()
	client := NewClient(hub, nil, userID)
	hub.register <- client

	convID := uuid.New()
	for i := 0; i < 5; i++ {
		evt, err := NewEvent(EventTypeMessageNew, &convID, MessagePayload{Message: domain.Message{
			ID:      uuid.New(),
			Content: string(rune('a' + i)),
		}})
		require.NoError(t, err)
		hub.SendToUser(userID, evt)
	}

	for i := 0; i < 5; i++ {
		select {
		case data := <-client.send:
			var got Event
			require.NoError(t, json.Unmarshal(data, &got))
			var payload MessagePayload
			require.NoError(t, json.Unmarshal(got.Payload, &payload))
			assert.Equal(t, string(rune('a'+i)), payload.Content)
		case <-time.After(time.Second):
			t.Fatalf("event %d was not delivered", i)
		}
	}
}

func TestHubDropsEventsForOfflineUser(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	evt, err := NewEvent(EventTypeMessageRead, nil, ReadPayload{ReaderID: uuid.New()})
	require.NoError(t, err)

	// Must neither block nor panic.
	hub.SendToUser(uuid.New(), evt)
}

func TestHubEvictedSessionDoesNotDisturbReconnect(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	userID := uuid.New()
	stale := NewClient(hub, nil, userID)
	hub.register <- stale

	// Saturate the stale client's buffer so the next delivery evicts it.
	for i := 0; i < sendBufSize; i++ {
		stale.send <- []byte(`{}`)
	}
	evt, err := NewEvent(EventTypePong, nil, nil)
	require.NoError(t, err)
	hub.SendToUser(userID, evt)

	select {
	case <-stale.done:
	case <-time.After(time.Second):
		t.Fatal("saturated client was not evicted")
	}

	fresh := NewClient(hub, nil, userID)
	hub.register <- fresh

	// The stale session's teardown fires after the reconnect; it must be a
	// no-op rather than closing the evicted channels again or dropping the
	// fresh registration.
	hub.unregister <- stale

	hub.SendToUser(userID, evt)
	select {
	case <-fresh.send:
	case <-time.After(time.Second):
		t.Fatal("fresh client lost its registration")
	}
}

func TestHubReconnectReplacesOldSession(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	userID := uuid.New()
	old := NewClient(hub, nil, userID)
	hub.register <- old

	replacement := NewClient(hub, nil, userID)
	hub.register <- replacement

	select {
	case <-old.done:
	case <-time.After(time.Second):
		t.Fatal("replaced session was not shut down")
	}

	hub.unregister <- old // stale, must not evict the replacement

	evt, err := NewEvent(EventTypePong, nil, nil)
	require.NoError(t, err)
	hub.SendToUser(userID, evt)
	select {
	case <-replacement.send:
	case <-time.After(time.Second):
		t.Fatal("replacement client lost its registration")
	}
}

func TestHubUnregisterClosesClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := NewClient(hub, nil, uuid.New())
	hub.register <- client
	hub.unregister <- client

	select {
	case <-client.done:
	case <-time.After(time.Second):
		t.Fatal("client was not shut down")
	}
}
