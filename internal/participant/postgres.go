package participant

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"rekber-service/internal/db"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresRepository is the canonical participant store.
type PostgresRepository struct {
	db *db.DB
}

func NewPostgresRepository(db *db.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ Repository = (*PostgresRepository)(nil)

const participantColumns = `
	id, room_id, role, name, contact, session_token,
	identifier, online, joined_at, last_seen, session_context
`

func scanParticipant(row *sql.Row) (*Participant, error) {
	var (
		p          Participant
		identifier sql.NullString
		rawContext []byte
	)

	err := row.Scan(
		&p.ID,
		&p.RoomID,
		&p.Role,
		&p.Name,
		&p.Contact,
		&p.SessionToken,
		&identifier,
		&p.Online,
		&p.JoinedAt,
		&p.LastSeen,
		&rawContext,
	)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}

	p.Identifier = identifier.String

	// Session context is diagnostic only; a malformed blob must not
	// break resolution.
	_ = json.Unmarshal(rawContext, &p.Context)

	return &p, nil
}

func (r *PostgresRepository) FindActiveByIdentifier(
	ctx context.Context,
	roomID int64,
	identifier string,
) (*Participant, error) {
	return scanParticipant(r.db.QueryRowContext(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE room_id = $1
		  AND identifier = $2
		  AND online
	`, roomID, identifier))
}

func (r *PostgresRepository) FindActiveByToken(
	ctx context.Context,
	roomID int64,
	token string,
) (*Participant, error) {
	return scanParticipant(r.db.QueryRowContext(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE room_id = $1
		  AND session_token = $2
		  AND online
	`, roomID, token))
}

func (r *PostgresRepository) FindActiveByRole(
	ctx context.Context,
	roomID int64,
	role Role,
) (*Participant, error) {
	return scanParticipant(r.db.QueryRowContext(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE room_id = $1
		  AND role = $2
		  AND online
	`, roomID, role))
}

func (r *PostgresRepository) FindActiveElsewhere(
	ctx context.Context,
	identifier string,
	excludeRoomID int64,
) (*Participant, error) {
	return scanParticipant(r.db.QueryRowContext(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE identifier = $1
		  AND room_id <> $2
		  AND online
		ORDER BY last_seen DESC
		LIMIT 1
	`, identifier, excludeRoomID))
}

func (r *PostgresRepository) Create(ctx context.Context, p *Participant) error {

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	now := time.Now()
	if p.JoinedAt.IsZero() {
		p.JoinedAt = now
	}
	if p.LastSeen.IsZero() {
		p.LastSeen = now
	}
	p.Online = true

	rawContext, err := json.Marshal(p.Context)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO participants (
			id, room_id, role, name, contact, session_token,
			identifier, online, joined_at, last_seen, session_context
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8, $9, $10)
	`,
		p.ID,
		p.RoomID,
		p.Role,
		p.Name,
		p.Contact,
		p.SessionToken,
		nullableString(p.Identifier),
		p.JoinedAt,
		p.LastSeen,
		rawContext,
	)

	// The partial unique index on (room_id, role) WHERE online turns a
	// lost double-join race into a clean rejection.
	if isUniqueViolation(err) {
		return ErrRoleTaken
	}
	return err
}

func (r *PostgresRepository) AttachIdentifier(
	ctx context.Context,
	id uuid.UUID,
	identifier string,
) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE participants
		SET identifier = $2
		WHERE id = $1
		  AND (identifier IS NULL OR identifier = '')
	`, id, identifier)
	if err != nil {
		return err
	}

	// Zero rows means the record either vanished or already carries an
	// identifier; both are fine for an idempotent backfill.
	_, _ = res.RowsAffected()
	return nil
}

func (r *PostgresRepository) ChangeRole(ctx context.Context, id uuid.UUID, role Role) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE participants
		SET role = $2, last_seen = NOW()
		WHERE id = $1
	`, id, role)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrRoleTaken
		}
		return err
	}

	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

func (r *PostgresRepository) Touch(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE participants
		SET last_seen = NOW(), online = true
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM participants WHERE id = $1
	`, id)
	return err
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
