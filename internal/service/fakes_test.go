package service

import (
	"context"
	"sort"
	"sync"

	"github.com/collabry/backend/internal/assistant"
	"github.com/collabry/backend/internal/domain"
	"github.com/collabry/backend/internal/repository"
	"github.com/google/uuid"
)

// In-memory fakes implementing the repository interfaces. They mirror the
// SQL behavior the postgres repos rely on: unique pair constraint on create,
// atomic unread bookkeeping on append, snapshot semantics on mark-read.

type fakes struct {
	users    *fakeUserRepo
	convs    *fakeConversationRepo
	msgs     *fakeMessageRepo
	notifier *recordingNotifier
}

func newFakes(users ...*domain.User) *fakes {
	ur := &fakeUserRepo{users: make(map[uuid.UUID]*domain.User)}
	for _, u := range users {
		cp := *u
		ur.users[u.ID] = &cp
	}
	cr := &fakeConversationRepo{
		convs:  make(map[uuid.UUID]*domain.Conversation),
		byPair: make(map[[2]uuid.UUID]uuid.UUID),
		users:  ur,
	}
	mr := &fakeMessageRepo{convs: cr}
	cr.msgs = mr
	return &fakes{users: ur, convs: cr, msgs: mr, notifier: &recordingNotifier{}}
}

func (f *fakes) chatService() *ChatService {
	s := NewChatService(f.convs, f.msgs, f.users)
	s.SetNotifier(f.notifier)
	return s
}

// --- users ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) EnsureAssistant(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			cp := *u
			return &cp, nil
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	out := cp
	return &out, nil
}

// --- conversations ---

type fakeConversationRepo struct {
	mu     sync.Mutex
	convs  map[uuid.UUID]*domain.Conversation
	byPair map[[2]uuid.UUID]uuid.UUID
	users  *fakeUserRepo
	msgs   *fakeMessageRepo
}

func (r *fakeConversationRepo) Create(_ context.Context, conv *domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]uuid.UUID{conv.User1ID, conv.User2ID}
	if _, exists := r.byPair[key]; exists {
		return repository.ErrDuplicate
	}
	cp := *conv
	r.convs[conv.ID] = &cp
	r.byPair[key] = conv.ID
	return nil
}

func (r *fakeConversationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeConversationRepo) GetByUsers(_ context.Context, user1ID, user2ID uuid.UUID) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPair[[2]uuid.UUID{user1ID, user2ID}]
	if !ok {
		return nil, nil
	}
	cp := *r.convs[id]
	return &cp, nil
}

func (r *fakeConversationRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	r.mu.Lock()
	var out []domain.Conversation
	for _, c := range r.convs {
		if !c.HasParticipant(userID) || c.DeletedFor(userID) {
			continue
		}
		out = append(out, *c)
	}
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	for i := range out {
		out[i].ProjectFor(userID)
		if other, _ := r.users.GetByID(ctx, out[i].OtherUserID); other != nil {
			out[i].OtherUsername = other.Username
			out[i].OtherDisplayName = other.DisplayName
			out[i].OtherRole = other.Role
		}
		if out[i].LastMessageID != nil {
			out[i].LastMessage = r.msgs.byID(*out[i].LastMessageID)
		}
	}
	return out, nil
}

func (r *fakeConversationRepo) SetArchived(_ context.Context, id, userID uuid.UUID, archived bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return nil
	}
	if c.User1ID == userID {
		c.User1Archived = archived
	} else if c.User2ID == userID {
		c.User2Archived = archived
	}
	return nil
}

func (r *fakeConversationRepo) SetDeleted(_ context.Context, id, userID uuid.UUID, deleted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return nil
	}
	if c.User1ID == userID {
		c.User1Deleted = deleted
	} else if c.User2ID == userID {
		c.User2Deleted = deleted
	}
	return nil
}

func (r *fakeConversationRepo) recordMessage(m *domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[m.ConversationID]
	if !ok {
		return
	}
	id := m.ID
	c.LastMessageID = &id
	c.LastMessageAt = m.CreatedAt
	if !m.IsRead {
		if c.User1ID == m.ReceiverID {
			c.User1Unread++
		} else if c.User2ID == m.ReceiverID {
			c.User2Unread++
		}
	}
}

func (r *fakeConversationRepo) resetUnread(conversationID, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[conversationID]
	if !ok {
		return
	}
	if c.User1ID == userID {
		c.User1Unread = 0
	} else if c.User2ID == userID {
		c.User2Unread = 0
	}
}

// --- messages ---

type fakeMessageRepo struct {
	// txMu serializes Append and MarkRead as a whole, the way the
	// conversation row lock serializes their transactions in Postgres.
	txMu     sync.Mutex
	mu       sync.Mutex
	messages []*domain.Message
	convs    *fakeConversationRepo
}

func (r *fakeMessageRepo) Append(_ context.Context, msg *domain.Message) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	cp := *msg
	r.messages = append(r.messages, &cp)
	r.mu.Unlock()

	r.convs.recordMessage(msg)
	return nil
}

func (r *fakeMessageRepo) ListByConversation(_ context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) LastN(ctx context.Context, conversationID uuid.UUID, n int) ([]domain.Message, error) {
	all, err := r.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

func (r *fakeMessageRepo) MarkRead(_ context.Context, conversationID, readerID uuid.UUID) (int, error) {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.convs.resetUnread(conversationID, readerID)

	r.mu.Lock()
	flipped := 0
	for _, m := range r.messages {
		if m.ConversationID == conversationID && m.ReceiverID == readerID && !m.IsRead {
			m.IsRead = true
			flipped++
		}
	}
	r.mu.Unlock()

	return flipped, nil
}

func (r *fakeMessageRepo) byID(id uuid.UUID) *domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			cp := *m
			return &cp
		}
	}
	return nil
}

// --- notifier ---

type readEvent struct {
	conversationID uuid.UUID
	readerID       uuid.UUID
	recipientID    uuid.UUID
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []domain.Message
	reads    []readEvent
}

func (n *recordingNotifier) NotifyNewMessage(msg *domain.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, *msg)
}

func (n *recordingNotifier) NotifyMessagesRead(conversationID, readerID, recipientID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reads = append(n.reads, readEvent{conversationID, readerID, recipientID})
}

// --- oracle ---

type fakeOracle struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts [][]assistant.ChatMessage
}

func (o *fakeOracle) Complete(_ context.Context, _ string, messages []assistant.ChatMessage) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prompts = append(o.prompts, messages)
	if o.err != nil {
		return "", o.err
	}
	return o.reply, nil
}
