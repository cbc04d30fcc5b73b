package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"carescope/backend/internal/db"
	"carescope/backend/internal/session/domain"
)

const sessionColumns = `id, account_id, expires_at, revoked_at, last_seen_at, refresh_jti, refresh_token_hash, ip_address, created_at`

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(conn *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &s, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := sqlx.NamedExecContext(ctx, db.Conn(ctx, r.db), `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (:id, :account_id, :expires_at, :revoked_at, :last_seen_at, :refresh_jti, :refresh_token_hash, :ip_address, :created_at)`, s)
	return err
}

// Revoke marks the session with the given id as revoked. Already revoked sessions keep their original timestamp.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		id, time.Now().UTC())
	return err
}

// RevokeAllByAccount revokes all live sessions for the given account and returns their ids.
func (r *PostgresRepository) RevokeAllByAccount(ctx context.Context, accountID string) ([]string, error) {
	var ids []string
	err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &ids,
		`UPDATE sessions SET revoked_at = $2 WHERE account_id = $1 AND revoked_at IS NULL RETURNING id`,
		accountID, time.Now().UTC())
	return ids, err
}

// UpdateLastSeen sets the session's last-seen timestamp for the given id. Returns an error if the update fails.
func (r *PostgresRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE sessions SET last_seen_at = $2 WHERE id = $1`, id, at)
	return err
}

// UpdateRefreshToken sets the session's current refresh token jti and hash for rotation. Returns an error if the update fails.
func (r *PostgresRepository) UpdateRefreshToken(ctx context.Context, sessionID, jti, refreshTokenHash string) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE sessions SET refresh_jti = $2, refresh_token_hash = $3 WHERE id = $1`,
		sessionID, jti, refreshTokenHash)
	return err
}
