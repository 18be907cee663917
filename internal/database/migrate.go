package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// last_message_id has no FK on purpose: conversations and messages would
// otherwise reference each other and inserts would need deferred constraints.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           UUID PRIMARY KEY,
	username     TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL,
	avatar_url   TEXT,
	role         TEXT NOT NULL DEFAULT 'creator',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS conversations (
	id              UUID PRIMARY KEY,
	user1_id        UUID NOT NULL REFERENCES users(id),
	user2_id        UUID NOT NULL REFERENCES users(id),
	last_message_id UUID,
	last_message_at TIMESTAMPTZ NOT NULL,
	user1_unread    INT NOT NULL DEFAULT 0 CHECK (user1_unread >= 0),
	user2_unread    INT NOT NULL DEFAULT 0 CHECK (user2_unread >= 0),
	user1_archived  BOOLEAN NOT NULL DEFAULT FALSE,
	user2_archived  BOOLEAN NOT NULL DEFAULT FALSE,
	user1_deleted   BOOLEAN NOT NULL DEFAULT FALSE,
	user2_deleted   BOOLEAN NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (user1_id < user2_id),
	UNIQUE (user1_id, user2_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id              UUID PRIMARY KEY,
	conversation_id UUID NOT NULL REFERENCES conversations(id),
	sender_id       UUID NOT NULL REFERENCES users(id),
	receiver_id     UUID NOT NULL REFERENCES users(id),
	content         TEXT NOT NULL,
	type            TEXT NOT NULL DEFAULT 'text',
	is_read         BOOLEAN NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages (conversation_id, receiver_id) WHERE NOT is_read;
CREATE INDEX IF NOT EXISTS idx_conversations_user1 ON conversations (user1_id);
CREATE INDEX IF NOT EXISTS idx_conversations_user2 ON conversations (user2_id);
`

// Migrate applies the schema. Statements are idempotent so this is safe to
// run on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
