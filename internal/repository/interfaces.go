package repository

import (
	"context"
	"errors"

	"github.com/collabry/backend/internal/domain"
	"github.com/google/uuid"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
// The conversation resolver relies on it to detect a lost create race.
var ErrDuplicate = errors.New("duplicate record")

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// EnsureAssistant upserts the well-known assistant participant by
	// username and returns the stored row. Safe under concurrent first use.
	EnsureAssistant(ctx context.Context, user *domain.User) (*domain.User, error)
}

type ConversationRepository interface {
	// Create inserts a conversation with canonically ordered participants.
	// Returns ErrDuplicate if a conversation for the pair already exists.
	Create(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	GetByUsers(ctx context.Context, user1ID, user2ID uuid.UUID) (*domain.Conversation, error)
	// ListForUser returns conversations visible to userID (not soft-deleted
	// by them), newest activity first, with other-user identity and last
	// message joined in.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error)
	SetArchived(ctx context.Context, id, userID uuid.UUID, archived bool) error
	SetDeleted(ctx context.Context, id, userID uuid.UUID, deleted bool) error
}

type MessageRepository interface {
	// Append inserts the message and updates the owning conversation's last
	// message pointer and receiver-side unread count in one transaction. The
	// unread increment happens in SQL, not read-modify-write, so concurrent
	// sends cannot lose updates. Messages appended already-read do not touch
	// unread counts.
	Append(ctx context.Context, msg *domain.Message) error
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error)
	// LastN returns the newest n messages of a conversation, oldest first.
	LastN(ctx context.Context, conversationID uuid.UUID, n int) ([]domain.Message, error)
	// MarkRead flips is_read on the reader's unread messages and zeroes their
	// unread count in one transaction. Returns how many messages flipped.
	// Messages committed after this transaction remain unread.
	MarkRead(ctx context.Context, conversationID, readerID uuid.UUID) (int, error)
}
