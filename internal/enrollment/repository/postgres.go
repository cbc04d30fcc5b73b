package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"carescope/backend/internal/db"
	"carescope/backend/internal/enrollment/domain"
)

const enrollmentColumns = `id, customer_id, org_id, start_date, monthly_fee_cents, created_at`

// PostgresRepository is the sqlx implementation of Repository.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns an enrollment repository backed by conn.
func NewPostgresRepository(conn *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Create inserts the enrollment.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Enrollment) error {
	_, err := sqlx.NamedExecContext(ctx, db.Conn(ctx, r.db), `
		INSERT INTO enrollments (`+enrollmentColumns+`)
		VALUES (:id, :customer_id, :org_id, :start_date, :monthly_fee_cents, :created_at)`, e)
	return err
}

// List returns enrollments newest first.
func (r *PostgresRepository) List(ctx context.Context, orgID string, limit, offset int32) ([]*domain.Enrollment, error) {
	var out []*domain.Enrollment
	err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &out, `
		SELECT `+enrollmentColumns+` FROM enrollments
		WHERE ($1 = '' OR org_id = $1)
		ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, orgID, limit, offset)
	return out, err
}
