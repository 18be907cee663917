package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/collabry/backend/internal/assistant"
	"github.com/collabry/backend/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAssistantUsername = "collabry_assistant"

func newAssistantFixture(t *testing.T, users ...*domain.User) (*fakes, *AssistantService, *fakeOracle) {
	t.Helper()
	f := newFakes(users...)
	oracle := &fakeOracle{reply: "happy to help"}
	chat := f.chatService()
	svc := NewAssistantService(chat, f.users, f.msgs, oracle, testAssistantUsername)
	return f, svc, oracle
}

func TestConverseRecordsBothSides(t *testing.T) {
	alice := testUser("alice", domain.RoleCreator)
	f, svc, _ := newAssistantFixture(t, alice)
	ctx := context.Background()

	reply, err := svc.Converse(ctx, alice.ID, "how do I price a campaign?", "")
	require.NoError(t, err)
	require.NotNil(t, reply.Reply)
	assert.Equal(t, "happy to help", reply.Reply.Content)

	bot, err := f.users.GetByUsername(ctx, testAssistantUsername)
	require.NoError(t, err)
	require.NotNil(t, bot)
	assert.Equal(t, domain.RoleAssistant, bot.Role)

	msgs, err := f.msgs.ListByConversation(ctx, reply.Conversation.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	// The user's message is read on arrival; the reply is unread for the user.
	assert.Equal(t, alice.ID, msgs[0].SenderID)
	assert.True(t, msgs[0].IsRead)
	assert.Equal(t, bot.ID, msgs[1].SenderID)
	assert.False(t, msgs[1].IsRead)

	conv, err := f.convs.GetByID(ctx, reply.Conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, conv.UnreadFor(alice.ID))
	assert.Equal(t, 0, conv.UnreadFor(bot.ID))

	// The reply is fanned out to the user.
	require.Len(t, f.notifier.messages, 1)
	assert.Equal(t, alice.ID, f.notifier.messages[0].ReceiverID)

	// The returned conversation reflects both appends, not a pre-append
	// snapshot.
	assert.Equal(t, 1, reply.Conversation.UnreadCount)
	require.NotNil(t, reply.Conversation.LastMessage)
	assert.Equal(t, reply.Reply.ID, reply.Conversation.LastMessage.ID)
}

func TestConverseReusesSingleThread(t *testing.T) {
	alice := testUser("alice", domain.RoleCreator)
	f, svc, _ := newAssistantFixture(t, alice)
	ctx := context.Background()

	first, err := svc.Converse(ctx, alice.ID, "hello", "")
	require.NoError(t, err)
	second, err := svc.Converse(ctx, alice.ID, "hello again", "")
	require.NoError(t, err)

	assert.Equal(t, first.Conversation.ID, second.Conversation.ID)
	assert.Len(t, f.convs.convs, 1, "exactly one assistant conversation per user")
}

func TestConverseRejectsAtomicallyWhenOracleDown(t *testing.T) {
	alice := testUser("alice", domain.RoleCreator)
	f, svc, oracle := newAssistantFixture(t, alice)
	oracle.err = fmt.Errorf("dial tcp: %w", assistant.ErrUnavailable)

	_, err := svc.Converse(context.Background(), alice.ID, "anyone there?", "")
	assert.ErrorIs(t, err, ErrAssistantUnavailable)
	assert.Empty(t, f.msgs.messages, "no orphaned user message when the oracle is down")
	assert.Empty(t, f.notifier.messages)
}

func TestConverseRejectsEmptyCompletion(t *testing.T) {
	alice := testUser("alice", domain.RoleCreator)
	f, svc, oracle := newAssistantFixture(t, alice)
	oracle.reply = "  \n"

	_, err := svc.Converse(context.Background(), alice.ID, "hello?", "")
	assert.ErrorIs(t, err, ErrAssistantUnavailable)
	assert.Empty(t, f.msgs.messages, "no orphaned user message on an empty completion")
	assert.Empty(t, f.notifier.messages)
}

func TestConverseBoundsHistoryWindow(t *testing.T) {
	alice := testUser("alice", domain.RoleCreator)
	f, svc, oracle := newAssistantFixture(t, alice)
	ctx := context.Background()

	first, err := svc.Converse(ctx, alice.ID, "hello", "")
	require.NoError(t, err)

	bot, err := f.users.GetByUsername(ctx, testAssistantUsername)
	require.NoError(t, err)

	// Pad the thread well past the window.
	for i := 0; i < 20; i++ {
		require.NoError(t, f.msgs.Append(ctx, &domain.Message{
			ID:             uuid.New(),
			ConversationID: first.Conversation.ID,
			SenderID:       alice.ID,
			ReceiverID:     bot.ID,
			Content:        fmt.Sprintf("filler %d", i),
			Type:           domain.MessageTypeText,
			IsRead:         true,
			CreatedAt:      time.Now(),
		}))
	}

	_, err = svc.Converse(ctx, alice.ID, "latest question", "")
	require.NoError(t, err)

	last := oracle.prompts[len(oracle.prompts)-1]
	// system prompt + 10 history turns + the new question
	require.Len(t, last, 12)
	assert.Equal(t, "system", last[0].Role)
	assert.Equal(t, "latest question", last[len(last)-1].Content)
	assert.Equal(t, "filler 10", last[1].Content, "oldest-first tail of the thread")
}

func TestConverseValidatesInput(t *testing.T) {
	alice := testUser("alice", domain.RoleCreator)
	_, svc, _ := newAssistantFixture(t, alice)
	ctx := context.Background()

	_, err := svc.Converse(ctx, alice.ID, "", "")
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = svc.Converse(ctx, alice.ID, "   \t", "")
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = svc.Converse(ctx, uuid.New(), "hi", "")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
