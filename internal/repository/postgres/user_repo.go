package postgres

import (
	"context"
	"errors"

	"github.com/collabry/backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.scanUser(ctx, "SELECT id, username, display_name, avatar_url, role, created_at FROM users WHERE id = $1", id)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.scanUser(ctx, "SELECT id, username, display_name, avatar_url, role, created_at FROM users WHERE username = $1", username)
}

// EnsureAssistant upserts the assistant participant by its well-known
// username. The no-op DO UPDATE makes RETURNING yield the row on both the
// insert and the conflict path, so concurrent first uses all get the same id.
func (r *UserRepo) EnsureAssistant(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (id, username, display_name, avatar_url, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (username) DO UPDATE SET display_name = EXCLUDED.display_name
		RETURNING id, username, display_name, avatar_url, role, created_at`

	var u domain.User
	err := r.pool.QueryRow(ctx, query,
		user.ID, user.Username, user.DisplayName, user.AvatarURL, user.Role, user.CreatedAt,
	).Scan(&u.ID, &u.Username, &u.DisplayName, &u.AvatarURL, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) scanUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.AvatarURL, &u.Role, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
