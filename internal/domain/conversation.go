package domain

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the single shared thread between two participants.
// Participants are stored in canonical order (user1 < user2) so the pair is
// unique regardless of who initiated contact. Per-user state (unread count,
// archived, soft-deleted) lives in side-specific columns; one side's flags
// never affect the other side's view.
type Conversation struct {
	ID            uuid.UUID  `json:"id"`
	User1ID       uuid.UUID  `json:"user1_id"`
	User2ID       uuid.UUID  `json:"user2_id"`
	LastMessageID *uuid.UUID `json:"-"`
	LastMessageAt time.Time  `json:"last_message_at"`
	User1Unread   int        `json:"-"`
	User2Unread   int        `json:"-"`
	User1Archived bool       `json:"-"`
	User2Archived bool       `json:"-"`
	User1Deleted  bool       `json:"-"`
	User2Deleted  bool       `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`

	// Caller-side view, filled for the requesting user
	OtherUserID      uuid.UUID `json:"other_user_id"`
	OtherUsername    string    `json:"other_username"`
	OtherDisplayName string    `json:"other_display_name"`
	OtherAvatarURL   *string   `json:"other_avatar_url,omitempty"`
	OtherRole        string    `json:"other_role,omitempty"`
	UnreadCount      int       `json:"unread_count"`
	IsArchived       bool      `json:"is_archived"`
	LastMessage      *Message  `json:"last_message,omitempty"`
}

func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// OtherOf returns the participant that is not userID.
func (c *Conversation) OtherOf(userID uuid.UUID) uuid.UUID {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

func (c *Conversation) UnreadFor(userID uuid.UUID) int {
	if c.User1ID == userID {
		return c.User1Unread
	}
	return c.User2Unread
}

func (c *Conversation) ArchivedBy(userID uuid.UUID) bool {
	if c.User1ID == userID {
		return c.User1Archived
	}
	return c.User2Archived
}

func (c *Conversation) DeletedFor(userID uuid.UUID) bool {
	if c.User1ID == userID {
		return c.User1Deleted
	}
	return c.User2Deleted
}

// ProjectFor fills the caller-side view fields from the per-side state.
// OtherUser* identity fields are filled by the repository or service.
func (c *Conversation) ProjectFor(userID uuid.UUID) {
	c.OtherUserID = c.OtherOf(userID)
	c.UnreadCount = c.UnreadFor(userID)
	c.IsArchived = c.ArchivedBy(userID)
}

// Message types
const (
	MessageTypeText  = "text"
	MessageTypeMedia = "media"
)

// Message is an immutable entry in a conversation's append-only log.
// is_read has single-reader semantics: conversations are strictly two-party,
// so the receiver is the only participant the flag can refer to.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	ReceiverID     uuid.UUID `json:"receiver_id"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
	// Joined fields
	SenderUsername    string `json:"sender_username,omitempty"`
	SenderDisplayName string `json:"sender_display_name,omitempty"`
}
