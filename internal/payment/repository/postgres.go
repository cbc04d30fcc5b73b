package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"carescope/backend/internal/db"
	"carescope/backend/internal/payment/domain"
)

const paymentColumns = `id, customer_id, org_id, amount_cents, due_date, paid_date, status, created_at, updated_at`

// PostgresRepository is the sqlx implementation of Repository.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a payment repository backed by conn.
func NewPostgresRepository(conn *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the record or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Record, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payment_records WHERE id = $1`, id)
}

// GetByIDForUpdate returns the record locked FOR UPDATE, or nil if not found.
func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Record, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payment_records WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) get(ctx context.Context, query string, args ...any) (*domain.Record, error) {
	var rec domain.Record
	if err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &rec, query, args...); err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ListByCustomer returns every record of the customer, oldest due date first.
func (r *PostgresRepository) ListByCustomer(ctx context.Context, customerID string) ([]*domain.Record, error) {
	var out []*domain.Record
	err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &out,
		`SELECT `+paymentColumns+` FROM payment_records WHERE customer_id = $1 ORDER BY due_date, id`, customerID)
	return out, err
}

// List returns records matching f, newest due date first.
func (r *PostgresRepository) List(ctx context.Context, f domain.Filter, limit, offset int32) ([]*domain.Record, error) {
	var out []*domain.Record
	err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &out, `
		SELECT `+paymentColumns+` FROM payment_records
		WHERE ($1 = '' OR org_id = $1) AND ($2 = '' OR customer_id = $2) AND ($3 = '' OR status = $3)
		ORDER BY due_date DESC, id LIMIT $4 OFFSET $5`,
		f.OrgID, f.CustomerID, string(f.Status), limit, offset)
	return out, err
}

// Create inserts the record.
func (r *PostgresRepository) Create(ctx context.Context, rec *domain.Record) error {
	_, err := sqlx.NamedExecContext(ctx, db.Conn(ctx, r.db), `
		INSERT INTO payment_records (`+paymentColumns+`)
		VALUES (:id, :customer_id, :org_id, :amount_cents, :due_date, :paid_date, :status, :created_at, :updated_at)`, rec)
	if db.IsForeignKeyViolation(err) {
		return domain.ErrInvalidPayment
	}
	return err
}

// UpdateStatus sets status and paid date. The amount is never touched. Returns nil when the record does not exist.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status domain.Status, paidDate *time.Time) (*domain.Record, error) {
	return r.get(ctx, `
		UPDATE payment_records SET status = $2, paid_date = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+paymentColumns, id, string(status), paidDate)
}

// ListPendingDueBefore is used by the overdue sweep.
func (r *PostgresRepository) ListPendingDueBefore(ctx context.Context, cutoff time.Time, limit int32) ([]*domain.Record, error) {
	var out []*domain.Record
	err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &out, `
		SELECT `+paymentColumns+` FROM payment_records
		WHERE status = 'pending' AND due_date < $1
		ORDER BY due_date, id LIMIT $2`, cutoff, limit)
	return out, err
}
