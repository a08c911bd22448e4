package db

import (
	"context"
	"database/sql"
)

const schemaMigration = `
CREATE EXTENSION IF NOT EXISTS "pgcrypto";

CREATE TABLE IF NOT EXISTS rooms (
    id bigserial PRIMARY KEY,
    status text NOT NULL DEFAULT 'free',
    pin_hash text,
    expires_at timestamptz,
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS participants (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    room_id bigint NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
    role text NOT NULL,
    name text NOT NULL,
    contact text NOT NULL DEFAULT '',
    session_token text NOT NULL,
    identifier text,
    online boolean NOT NULL DEFAULT true,
    joined_at timestamptz NOT NULL DEFAULT NOW(),
    last_seen timestamptz NOT NULL DEFAULT NOW(),
    session_context jsonb NOT NULL DEFAULT '{}'::jsonb
);

-- One online participant per (room, role). This is the admission
-- contract; concurrent double-joins fail here instead of corrupting
-- the occupancy state.
CREATE UNIQUE INDEX IF NOT EXISTS participants_room_role_online_unique
ON participants (room_id, role) WHERE online;

CREATE INDEX IF NOT EXISTS participants_room_identifier_idx
ON participants (room_id, identifier);

CREATE INDEX IF NOT EXISTS participants_identifier_idx
ON participants (identifier) WHERE online;

CREATE INDEX IF NOT EXISTS participants_room_token_idx
ON participants (room_id, session_token);
`

func RunMigration(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaMigration)
	return err
}
