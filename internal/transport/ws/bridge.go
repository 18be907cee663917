package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const fanoutChannel = "collabry:fanout"

// Bridge relays fanout events through Redis pub/sub so a recipient connected
// to any server instance gets them. Redis preserves publish order per
// channel, which keeps per-conversation delivery ordered. Events published
// while Redis is down fall back to local delivery; remote recipients miss
// them, which the at-most-once contract allows.
type Bridge struct {
	hub *Hub
	rdb *redis.Client
}

type fanoutEnvelope struct {
	UserID uuid.UUID       `json:"user_id"`
	Event  json.RawMessage `json:"event"`
}

func NewBridge(hub *Hub, rdb *redis.Client) *Bridge {
	return &Bridge{hub: hub, rdb: rdb}
}

// Publish sends the event to every instance's subscriber loop, including the
// local one.
func (b *Bridge) Publish(userID uuid.UUID, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("ws bridge: marshal error: %v", err)
		return
	}
	env, err := json.Marshal(fanoutEnvelope{UserID: userID, Event: data})
	if err != nil {
		log.Printf("ws bridge: marshal error: %v", err)
		return
	}

	if err := b.rdb.Publish(context.Background(), fanoutChannel, env).Err(); err != nil {
		log.Printf("ws bridge: publish failed, delivering locally: %v", err)
		b.hub.Deliver(userID, data)
	}
}

// Run subscribes to the fanout channel and feeds the local hub. Call this in
// a goroutine; it returns when ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	pubsub := b.rdb.Subscribe(ctx, fanoutChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env fanoutEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("ws bridge: bad envelope: %v", err)
				continue
			}
			b.hub.Deliver(env.UserID, env.Event)

		case <-ctx.Done():
			return
		}
	}
}
