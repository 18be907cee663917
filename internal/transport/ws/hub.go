package ws

import (
	"encoding/json"
	"log"

	"github.com/google/uuid"
)

// Hub tracks one connection per user and routes per-user deliveries.
// Conversations are strictly two-party, so fanout never needs channel
// subscriptions: an event targets exactly one user id.
type Hub struct {
	// clients maps userID → client.
	clients map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client
	deliver    chan *delivery
}

type delivery struct {
	userID uuid.UUID
	data   []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan *delivery, 256),
	}
}

// Run starts the Hub's main event loop. Call this in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			// A reconnect replaces the previous session. Shutting the old one
			// down here makes its eventual unregister a stale no-op.
			if old, ok := h.clients[client.userID]; ok && old != client {
				close(old.send)
				close(old.done)
			}
			h.clients[client.userID] = client
			log.Printf("ws hub: user %s connected (%d total)", client.userID, len(h.clients))

			h.broadcastPresence(client.userID, "online")

		case client := <-h.unregister:
			// Only the client that owns the map entry may tear it down. An
			// unregister from an evicted or replaced session must not touch
			// the current one, and its channels are already closed.
			if h.clients[client.userID] == client {
				delete(h.clients, client.userID)
				close(client.send)
				close(client.done)
				log.Printf("ws hub: user %s disconnected (%d total)", client.userID, len(h.clients))

				h.broadcastPresence(client.userID, "offline")
			}

		case d := <-h.deliver:
			client, ok := h.clients[d.userID]
			if !ok {
				// Receiver offline: drop. The durable store is the source of
				// truth; a reconnecting client re-fetches.
				continue
			}
			select {
			case client.send <- d.data:
			default:
				// Client buffer full - disconnect
				delete(h.clients, d.userID)
				close(client.send)
				close(client.done)
			}
		}
	}
}

// SendToUser queues an event for one user's live session, if any. Never
// blocks the caller.
func (h *Hub) SendToUser(userID uuid.UUID, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("ws hub: marshal error: %v", err)
		return
	}
	h.Deliver(userID, data)
}

// Deliver queues pre-marshaled event bytes for a user. Drops the event when
// the hub's queue is saturated rather than blocking the sender.
func (h *Hub) Deliver(userID uuid.UUID, data []byte) {
	select {
	case h.deliver <- &delivery{userID: userID, data: data}:
	default:
		log.Printf("ws hub: delivery queue full, dropping event for %s", userID)
	}
}

// broadcastPresence sends online/offline to all connected clients.
func (h *Hub) broadcastPresence(userID uuid.UUID, status string) {
	evt, err := NewEvent(EventTypePresence, nil, PresencePayload{
		UserID: userID,
		Status: status,
	})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	for _, client := range h.clients {
		if client.userID == userID {
			continue
		}
		select {
		case client.send <- data:
		default:
		}
	}
}
