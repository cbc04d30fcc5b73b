package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"carescope/backend/internal/audit/domain"
	"carescope/backend/internal/db"
)

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns an audit repository that uses the given db for persistence.
func NewPostgresRepository(conn *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// ListByOrg returns a page of audit entries, newest first.
func (r *PostgresRepository) ListByOrg(ctx context.Context, orgID string, limit, offset int) ([]*domain.AuditLog, error) {
	var out []*domain.AuditLog
	err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &out, `
		SELECT id, org_id, account_id, action, resource, ip, metadata, created_at
		FROM audit_logs
		WHERE ($1 = '' OR org_id = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, orgID, limit, offset)
	return out, err
}

// Create inserts one audit entry. Uses the pool directly so an entry survives a rolled back request transaction.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO audit_logs (id, org_id, account_id, action, resource, ip, metadata, created_at)
		VALUES (:id, :org_id, :account_id, :action, :resource, :ip, :metadata, :created_at)`, a)
	return err
}
