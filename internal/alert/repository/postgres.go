package repository

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"carescope/backend/internal/alert/domain"
	"carescope/backend/internal/db"
)

const alertColumns = `id, customer_id, org_id, type, message, severity, resolved, resolved_by, resolved_at, created_at`

// PostgresRepository is the sqlx implementation of Repository.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns an alert repository backed by conn.
func NewPostgresRepository(conn *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Create inserts the alert.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Alert) error {
	_, err := sqlx.NamedExecContext(ctx, db.Conn(ctx, r.db),
		`INSERT INTO alerts (`+alertColumns+`)
		 VALUES (:id, :customer_id, :org_id, :type, :message, :severity, :resolved, :resolved_by, :resolved_at, :created_at)`, a)
	return err
}

// GetByID returns the alert by id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	var a domain.Alert
	err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &a, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// Resolve sets the resolved fields in a single statement guarded by NOT resolved.
func (r *PostgresRepository) Resolve(ctx context.Context, id, accountID string) (*domain.Alert, error) {
	var a domain.Alert
	err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &a, `
		UPDATE alerts SET resolved = TRUE, resolved_by = $2, resolved_at = now()
		WHERE id = $1 AND NOT resolved
		RETURNING `+alertColumns, id, accountID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// List returns alerts newest first.
func (r *PostgresRepository) List(ctx context.Context, f domain.Filter, limit, offset int32) ([]*domain.Alert, error) {
	var (
		where []string
		args  []any
	)
	if f.OrgID != nil {
		args = append(args, *f.OrgID)
		where = append(where, "org_id = $"+strconv.Itoa(len(args)))
	}
	if f.Resolved != nil {
		args = append(args, *f.Resolved)
		where = append(where, "resolved = $"+strconv.Itoa(len(args)))
	}
	q := `SELECT ` + alertColumns + ` FROM alerts`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	q += ` ORDER BY created_at DESC, id LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	var out []*domain.Alert
	err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &out, q, args...)
	return out, err
}
