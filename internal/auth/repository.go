package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type tokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) TokenStore {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) SaveNotifyToken(ctx context.Context, jti, sessionID uuid.UUID, expiresAt time.Time) error {
	const q = `
	INSERT INTO notify_tokens (jti, session_id, expires_at)
	VALUES ($1, $2, $3);
	`

	_, err := r.db.ExecContext(ctx, q, jti, sessionID, expiresAt)
	return err
}

func (r *tokenRepository) NotifyTokenActive(ctx context.Context, jti uuid.UUID) (bool, error) {
	const q = `
	SELECT EXISTS (
		SELECT 1 FROM notify_tokens
		WHERE jti = $1
		  AND retired_at IS NULL
		  AND expires_at > now()
	);
	`

	var active bool
	if err := r.db.QueryRowContext(ctx, q, jti).Scan(&active); err != nil {
		return false, err
	}
	return active, nil
}

func (r *tokenRepository) RetireNotifyToken(ctx context.Context, jti uuid.UUID) error {
	const q = `
	UPDATE notify_tokens
	SET retired_at = now()
	WHERE jti = $1
	  AND retired_at IS NULL;
	`

	_, err := r.db.ExecContext(ctx, q, jti)
	return err
}
