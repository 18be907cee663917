package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/collabry/backend/internal/assistant"
	"github.com/collabry/backend/internal/domain"
	"github.com/collabry/backend/internal/repository"
	"github.com/google/uuid"
)

var ErrAssistantUnavailable = errors.New("assistant is unavailable")

// historyWindow bounds the context sent to the oracle: the newest messages
// of the thread, oldest first.
const historyWindow = 10

// Oracle is the external response generator. Implementations must bound
// their own latency; any failure is treated as unavailability.
type Oracle interface {
	Complete(ctx context.Context, model string, messages []assistant.ChatMessage) (string, error)
}

// AssistantService lets a user converse with the platform assistant as if it
// were an ordinary participant. The assistant user is upserted by well-known
// username on first use, so the same single conversation per user survives
// restarts and concurrent first calls.
type AssistantService struct {
	chat        *ChatService
	userRepo    repository.UserRepository
	messageRepo repository.MessageRepository
	oracle      Oracle
	username    string
}

func NewAssistantService(
	chat *ChatService,
	userRepo repository.UserRepository,
	messageRepo repository.MessageRepository,
	oracle Oracle,
	username string,
) *AssistantService {
	return &AssistantService{
		chat:        chat,
		userRepo:    userRepo,
		messageRepo: messageRepo,
		oracle:      oracle,
		username:    username,
	}
}

type AssistantReply struct {
	Conversation *domain.Conversation `json:"conversation"`
	UserMessage  *domain.Message      `json:"user_message"`
	Reply        *domain.Message      `json:"reply"`
}

// Converse records the user's message in their assistant thread and returns
// the assistant's reply. The oracle is consulted before anything is
// persisted: if it is unavailable the whole operation is rejected, so a user
// message never sits in the thread without its paired reply.
func (s *AssistantService) Converse(ctx context.Context, userID uuid.UUID, content, model string) (*AssistantReply, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	bot, err := s.ensureAssistant(ctx)
	if err != nil {
		return nil, err
	}

	conv, _, err := s.chat.ResolveConversation(ctx, userID, bot.ID)
	if err != nil {
		return nil, err
	}

	history, err := s.messageRepo.LastN(ctx, conv.ID, historyWindow)
	if err != nil {
		return nil, err
	}

	prompt := make([]assistant.ChatMessage, 0, len(history)+2)
	prompt = append(prompt, assistant.ChatMessage{Role: "system", Content: rolePrompt(user)})
	for _, m := range history {
		role := "user"
		if m.SenderID == bot.ID {
			role = "assistant"
		}
		prompt = append(prompt, assistant.ChatMessage{Role: role, Content: m.Content})
	}
	prompt = append(prompt, assistant.ChatMessage{Role: "user", Content: content})

	replyText, err := s.oracle.Complete(ctx, model, prompt)
	if err != nil {
		if errors.Is(err, assistant.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrAssistantUnavailable, err)
		}
		return nil, fmt.Errorf("completing assistant reply: %w", err)
	}
	// An empty completion is rejected here, before anything is persisted,
	// so the user's message never sits in the thread without a paired reply.
	if strings.TrimSpace(replyText) == "" {
		return nil, fmt.Errorf("%w: empty completion", ErrAssistantUnavailable)
	}

	// The assistant "reads" synchronously, so the user's message lands
	// already read and leaves the assistant-side unread count alone.
	userMsg := &domain.Message{
		ID:                uuid.New(),
		ConversationID:    conv.ID,
		SenderID:          userID,
		ReceiverID:        bot.ID,
		Content:           content,
		Type:              domain.MessageTypeText,
		IsRead:            true,
		CreatedAt:         time.Now(),
		SenderUsername:    user.Username,
		SenderDisplayName: user.DisplayName,
	}
	if err := s.messageRepo.Append(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("appending user message: %w", err)
	}

	// The reply goes through the normal send path: unread increment for the
	// user plus fanout to their live session.
	reply, err := s.chat.SendMessage(ctx, bot.ID, userID, replyText, domain.MessageTypeText)
	if err != nil {
		return nil, fmt.Errorf("appending assistant reply: %w", err)
	}

	// Re-resolve so the returned conversation reflects both appends rather
	// than the snapshot taken before them.
	conv, _, err = s.chat.ResolveConversation(ctx, userID, bot.ID)
	if err != nil {
		return nil, err
	}
	conv.LastMessage = reply

	return &AssistantReply{Conversation: conv, UserMessage: userMsg, Reply: reply}, nil
}

func (s *AssistantService) ensureAssistant(ctx context.Context) (*domain.User, error) {
	bot, err := s.userRepo.EnsureAssistant(ctx, &domain.User{
		ID:          uuid.New(),
		Username:    s.username,
		DisplayName: "Collabry Assistant",
		Role:        domain.RoleAssistant,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("ensuring assistant user: %w", err)
	}
	return bot, nil
}

func rolePrompt(user *domain.User) string {
	base := "You are the Collabry assistant, helping users of a marketplace that connects creators with brands. Be concise and practical."
	switch user.Role {
	case domain.RoleCreator:
		return base + " The user is a creator: help them with pitching, pricing their work, and communicating with brands."
	case domain.RoleBrand:
		return base + " The user is a brand: help them find creators, scope campaigns, and write briefs."
	case domain.RoleAdmin:
		return base + " The user is a platform admin: help them with moderation and support questions."
	default:
		return base
	}
}
