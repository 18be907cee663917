package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/collabry/backend/internal/domain"
	"github.com/collabry/backend/internal/repository"
	"github.com/google/uuid"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("you are not a participant of this conversation")
	ErrUserNotFound         = errors.New("user not found")
	ErrCannotMessageSelf    = errors.New("cannot start a conversation with yourself")
	ErrEmptyContent         = errors.New("message content is required")
)

// Notifier pushes real-time events to connected participants. Delivery is
// best effort: implementations must never block or fail the calling path.
type Notifier interface {
	NotifyNewMessage(msg *domain.Message)
	NotifyMessagesRead(conversationID, readerID, recipientID uuid.UUID)
}

type ChatService struct {
	convRepo    repository.ConversationRepository
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	notifier    Notifier
}

func NewChatService(
	convRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
) *ChatService {
	return &ChatService{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *ChatService) SetNotifier(n Notifier) {
	s.notifier = n
}

type ConversationDetail struct {
	Conversation domain.Conversation `json:"conversation"`
	Messages     []domain.Message    `json:"messages"`
}

// ResolveConversation finds or creates the single conversation for the pair.
// Contacting a user who soft-deleted the thread silently restores it for
// them; a requester who had deleted it gets their own view back as well,
// since the pair can only ever have one live conversation. The returned bool
// reports whether a new conversation was created.
func (s *ChatService) ResolveConversation(ctx context.Context, userID, otherUserID uuid.UUID) (*domain.Conversation, bool, error) {
	if userID == otherUserID {
		return nil, false, ErrCannotMessageSelf
	}

	other, err := s.userRepo.GetByID(ctx, otherUserID)
	if err != nil {
		return nil, false, err
	}
	if other == nil {
		return nil, false, ErrUserNotFound
	}

	u1, u2 := canonicalPair(userID, otherUserID)

	conv, err := s.convRepo.GetByUsers(ctx, u1, u2)
	if err != nil {
		return nil, false, err
	}

	created := false
	if conv == nil {
		now := time.Now()
		conv = &domain.Conversation{
			ID:            uuid.New(),
			User1ID:       u1,
			User2ID:       u2,
			LastMessageAt: now,
			CreatedAt:     now,
		}

		switch err := s.convRepo.Create(ctx, conv); {
		case err == nil:
			created = true
		case errors.Is(err, repository.ErrDuplicate):
			// Lost the first-contact race; the winner's row is authoritative.
			conv, err = s.convRepo.GetByUsers(ctx, u1, u2)
			if err != nil {
				return nil, false, err
			}
			if conv == nil {
				return nil, false, fmt.Errorf("conversation vanished after create conflict for pair %s/%s", u1, u2)
			}
		default:
			return nil, false, fmt.Errorf("creating conversation: %w", err)
		}
	}

	for _, participant := range []uuid.UUID{otherUserID, userID} {
		if conv.DeletedFor(participant) {
			if err := s.convRepo.SetDeleted(ctx, conv.ID, participant, false); err != nil {
				return nil, false, fmt.Errorf("restoring conversation: %w", err)
			}
			clearDeleted(conv, participant)
		}
	}

	conv.ProjectFor(userID)
	conv.OtherUsername = other.Username
	conv.OtherDisplayName = other.DisplayName
	conv.OtherAvatarURL = other.AvatarURL
	conv.OtherRole = other.Role

	return conv, created, nil
}

// SendMessage appends a message to the pair's conversation, resurrecting it
// if either side had soft-deleted it. The durable write commits before any
// fanout; fanout failure is invisible to the sender.
func (s *ChatService) SendMessage(ctx context.Context, senderID, receiverID uuid.UUID, content, msgType string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if msgType == "" {
		msgType = domain.MessageTypeText
	}

	conv, _, err := s.ResolveConversation(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}

	sender, err := s.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		Type:           msgType,
		CreatedAt:      time.Now(),
	}
	if sender != nil {
		msg.SenderUsername = sender.Username
		msg.SenderDisplayName = sender.DisplayName
	}

	if err := s.messageRepo.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("appending message: %w", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyNewMessage(msg)
	}

	return msg, nil
}

// ListConversations returns the caller's visible conversations, newest
// activity first. Conversations the caller soft-deleted are filtered out;
// archived ones are included with is_archived set.
func (s *ChatService) ListConversations(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	convs, err := s.convRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}
	return convs, nil
}

// GetConversation returns the summary plus the full message log, oldest
// first. Not-a-participant and deleted-by-caller are both reported as not
// found: an invisible conversation must be indistinguishable from an absent
// one.
func (s *ChatService) GetConversation(ctx context.Context, userID, conversationID uuid.UUID) (*ConversationDetail, error) {
	conv, err := s.visibleConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	other, err := s.userRepo.GetByID(ctx, conv.OtherOf(userID))
	if err != nil {
		return nil, err
	}
	conv.ProjectFor(userID)
	if other != nil {
		conv.OtherUsername = other.Username
		conv.OtherDisplayName = other.DisplayName
		conv.OtherAvatarURL = other.AvatarURL
		conv.OtherRole = other.Role
	}

	messages, err := s.messageRepo.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	return &ConversationDetail{Conversation: *conv, Messages: messages}, nil
}

// SetArchived toggles the caller's archived flag. Idempotent; the other
// participant's view is untouched.
func (s *ChatService) SetArchived(ctx context.Context, userID, conversationID uuid.UUID, archived bool) error {
	if _, err := s.visibleConversation(ctx, userID, conversationID); err != nil {
		return err
	}
	return s.convRepo.SetArchived(ctx, conversationID, userID, archived)
}

// Delete soft-deletes the conversation from the caller's view only. The
// record stays intact for the other participant and resurrects on their next
// contact.
func (s *ChatService) Delete(ctx context.Context, userID, conversationID uuid.UUID) error {
	if _, err := s.visibleConversation(ctx, userID, conversationID); err != nil {
		return err
	}
	return s.convRepo.SetDeleted(ctx, conversationID, userID, true)
}

// MarkRead zeroes the caller's unread count and flips is_read on the
// messages addressed to them that existed at call time. The other
// participant gets a read receipt when anything actually flipped.
func (s *ChatService) MarkRead(ctx context.Context, userID, conversationID uuid.UUID) error {
	conv, err := s.visibleConversation(ctx, userID, conversationID)
	if err != nil {
		return err
	}

	flipped, err := s.messageRepo.MarkRead(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("marking conversation read: %w", err)
	}

	if flipped > 0 && s.notifier != nil {
		s.notifier.NotifyMessagesRead(conversationID, userID, conv.OtherOf(userID))
	}

	return nil
}

func (s *ChatService) visibleConversation(ctx context.Context, userID, conversationID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil || !conv.HasParticipant(userID) || conv.DeletedFor(userID) {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

// canonicalPair orders the two participants so the pair has one storage
// representation regardless of who initiated contact.
func canonicalPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}

func clearDeleted(conv *domain.Conversation, userID uuid.UUID) {
	if conv.User1ID == userID {
		conv.User1Deleted = false
	} else {
		conv.User2Deleted = false
	}
}
