package room

import (
	"context"
	"database/sql"

	"rekber-service/internal/db"
)

type PostgresRepository struct {
	db *db.DB
}

func NewPostgresRepository(db *db.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ Repository = (*PostgresRepository)(nil)

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*Room, error) {

	var (
		rm        Room
		pinHash   sql.NullString
		expiresAt sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, status, pin_hash, expires_at, created_at
		FROM rooms
		WHERE id = $1
	`, id).Scan(&rm.ID, &rm.Status, &pinHash, &expiresAt, &rm.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}

	rm.PINHash = pinHash.String
	if expiresAt.Valid {
		rm.ExpiresAt = expiresAt.Time
	}

	return &rm, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE rooms
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`, id, status)
	return err
}
