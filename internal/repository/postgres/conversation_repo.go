package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/collabry/backend/internal/domain"
	"github.com/collabry/backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

const conversationColumns = `
	c.id, c.user1_id, c.user2_id, c.last_message_id, c.last_message_at,
	c.user1_unread, c.user2_unread, c.user1_archived, c.user2_archived,
	c.user1_deleted, c.user2_deleted, c.created_at`

func (r *ConversationRepo) Create(ctx context.Context, conv *domain.Conversation) error {
	query := `
		INSERT INTO conversations (id, user1_id, user2_id, last_message_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query,
		conv.ID, conv.User1ID, conv.User2ID, conv.LastMessageAt, conv.CreatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations c WHERE c.id = $1`
	return r.scanConversation(r.pool.QueryRow(ctx, query, id))
}

func (r *ConversationRepo) GetByUsers(ctx context.Context, user1ID, user2ID uuid.UUID) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations c WHERE c.user1_id = $1 AND c.user2_id = $2`
	return r.scanConversation(r.pool.QueryRow(ctx, query, user1ID, user2ID))
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `,
			CASE WHEN c.user1_id = $1 THEN c.user2_id ELSE c.user1_id END AS other_user_id,
			CASE WHEN c.user1_id = $1 THEN u2.username ELSE u1.username END AS other_username,
			CASE WHEN c.user1_id = $1 THEN u2.display_name ELSE u1.display_name END AS other_display_name,
			CASE WHEN c.user1_id = $1 THEN u2.avatar_url ELSE u1.avatar_url END AS other_avatar_url,
			CASE WHEN c.user1_id = $1 THEN u2.role ELSE u1.role END AS other_role,
			m.id, m.sender_id, m.receiver_id, m.content, m.type, m.is_read, m.created_at
		FROM conversations c
		JOIN users u1 ON c.user1_id = u1.id
		JOIN users u2 ON c.user2_id = u2.id
		LEFT JOIN messages m ON c.last_message_id = m.id
		WHERE (c.user1_id = $1 AND NOT c.user1_deleted)
			OR (c.user2_id = $1 AND NOT c.user2_deleted)
		ORDER BY c.last_message_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		var mID, mSender, mReceiver *uuid.UUID
		var mContent, mType *string
		var mIsRead *bool
		var mCreatedAt *time.Time
		if err := rows.Scan(
			&conv.ID, &conv.User1ID, &conv.User2ID, &conv.LastMessageID, &conv.LastMessageAt,
			&conv.User1Unread, &conv.User2Unread, &conv.User1Archived, &conv.User2Archived,
			&conv.User1Deleted, &conv.User2Deleted, &conv.CreatedAt,
			&conv.OtherUserID, &conv.OtherUsername, &conv.OtherDisplayName,
			&conv.OtherAvatarURL, &conv.OtherRole,
			&mID, &mSender, &mReceiver, &mContent, &mType, &mIsRead, &mCreatedAt,
		); err != nil {
			return nil, err
		}
		if mID != nil {
			conv.LastMessage = &domain.Message{
				ID:             *mID,
				ConversationID: conv.ID,
				SenderID:       *mSender,
				ReceiverID:     *mReceiver,
				Content:        *mContent,
				Type:           *mType,
				IsRead:         *mIsRead,
				CreatedAt:      *mCreatedAt,
			}
		}
		conv.ProjectFor(userID)
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// SetArchived toggles the caller's side only. The CASE keeps the statement
// idempotent and a no-op for the other participant's column.
func (r *ConversationRepo) SetArchived(ctx context.Context, id, userID uuid.UUID, archived bool) error {
	query := `
		UPDATE conversations SET
			user1_archived = CASE WHEN user1_id = $2 THEN $3 ELSE user1_archived END,
			user2_archived = CASE WHEN user2_id = $2 THEN $3 ELSE user2_archived END
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, userID, archived)
	return err
}

func (r *ConversationRepo) SetDeleted(ctx context.Context, id, userID uuid.UUID, deleted bool) error {
	query := `
		UPDATE conversations SET
			user1_deleted = CASE WHEN user1_id = $2 THEN $3 ELSE user1_deleted END,
			user2_deleted = CASE WHEN user2_id = $2 THEN $3 ELSE user2_deleted END
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, userID, deleted)
	return err
}

func (r *ConversationRepo) scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := row.Scan(
		&conv.ID, &conv.User1ID, &conv.User2ID, &conv.LastMessageID, &conv.LastMessageAt,
		&conv.User1Unread, &conv.User2Unread, &conv.User1Archived, &conv.User2Archived,
		&conv.User1Deleted, &conv.User2Deleted, &conv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
