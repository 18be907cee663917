package ws

import (
	"log"

	"github.com/collabry/backend/internal/domain"
	"github.com/google/uuid"
)

// HubNotifier implements service.Notifier. With a Bridge it publishes
// through Redis so the event reaches whichever instance holds the
// recipient's connection; without one it feeds the local hub directly.
// Either way the call returns immediately: fanout failures are logged, never
// surfaced to the send path.
type HubNotifier struct {
	hub    *Hub
	bridge *Bridge
}

func NewHubNotifier(hub *Hub, bridge *Bridge) *HubNotifier {
	return &HubNotifier{hub: hub, bridge: bridge}
}

func (n *HubNotifier) NotifyNewMessage(msg *domain.Message) {
	evt, err := NewEvent(EventTypeMessageNew, &msg.ConversationID, MessagePayload{Message: *msg})
	if err != nil {
		log.Printf("ws notifier: marshal error: %v", err)
		return
	}
	n.publish(msg.ReceiverID, evt)
}

func (n *HubNotifier) NotifyMessagesRead(conversationID, readerID, recipientID uuid.UUID) {
	evt, err := NewEvent(EventTypeMessageRead, &conversationID, ReadPayload{ReaderID: readerID})
	if err != nil {
		log.Printf("ws notifier: marshal error: %v", err)
		return
	}
	n.publish(recipientID, evt)
}

func (n *HubNotifier) publish(userID uuid.UUID, evt *Event) {
	if n.bridge != nil {
		n.bridge.Publish(userID, evt)
		return
	}
	n.hub.SendToUser(userID, evt)
}
