package postgres

import (
	"context"
	"fmt"

	"github.com/collabry/backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

// Append inserts the message and bumps the conversation's last-message
// pointer and receiver-side unread count atomically. The increment is done
// in SQL so racing sends cannot clobber each other's counts. A message
// appended with is_read already true (assistant threads) leaves counts alone.
func (r *MessageRepo) Append(ctx context.Context, msg *domain.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO messages (id, conversation_id, sender_id, receiver_id, content, type, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.Exec(ctx, insert,
		msg.ID, msg.ConversationID, msg.SenderID, msg.ReceiverID,
		msg.Content, msg.Type, msg.IsRead, msg.CreatedAt,
	); err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	update := `
		UPDATE conversations SET
			last_message_id = $2,
			last_message_at = $3,
			user1_unread = user1_unread + CASE WHEN $4 AND user1_id = $5 THEN 1 ELSE 0 END,
			user2_unread = user2_unread + CASE WHEN $4 AND user2_id = $5 THEN 1 ELSE 0 END
		WHERE id = $1`
	if _, err := tx.Exec(ctx, update,
		msg.ConversationID, msg.ID, msg.CreatedAt, !msg.IsRead, msg.ReceiverID,
	); err != nil {
		return fmt.Errorf("updating conversation: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.sender_id, m.receiver_id, m.content,
			m.type, m.is_read, m.created_at, u.username, u.display_name
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at ASC`

	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (r *MessageRepo) LastN(ctx context.Context, conversationID uuid.UUID, n int) ([]domain.Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.sender_id, m.receiver_id, m.content,
			m.type, m.is_read, m.created_at, u.username, u.display_name
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, conversationID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// Reverse to chronological order (query returns DESC)
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// MarkRead zeroes the reader's count and flips their unread messages in one
// transaction. The counter reset runs first so the transaction holds the
// conversation row lock before touching messages: a racing append either
// commits ahead of the reset and its message is flipped here, or blocks on
// the row lock and re-increments on top of the zero. Either way no increment
// is lost and late messages stay unread.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	reset := `
		UPDATE conversations SET
			user1_unread = CASE WHEN user1_id = $2 THEN 0 ELSE user1_unread END,
			user2_unread = CASE WHEN user2_id = $2 THEN 0 ELSE user2_unread END
		WHERE id = $1`
	if _, err := tx.Exec(ctx, reset, conversationID, readerID); err != nil {
		return 0, fmt.Errorf("resetting unread count: %w", err)
	}

	flip := `
		UPDATE messages SET is_read = TRUE
		WHERE conversation_id = $1 AND receiver_id = $2 AND NOT is_read`
	tag, err := tx.Exec(ctx, flip, conversationID, readerID)
	if err != nil {
		return 0, fmt.Errorf("marking messages read: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanMessages(rows pgx.Rows) ([]domain.Message, error) {
	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.ReceiverID,
			&msg.Content, &msg.Type, &msg.IsRead, &msg.CreatedAt,
			&msg.SenderUsername, &msg.SenderDisplayName,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
