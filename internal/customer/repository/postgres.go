package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"carescope/backend/internal/customer/domain"
	"carescope/backend/internal/db"
	"carescope/backend/internal/risk"
)

// ErrInvalidAssessment is returned when SaveAssessment receives a value not produced by risk.Assess.
var ErrInvalidAssessment = errors.New("customer: assessment was not produced by the risk engine")

const customerColumns = `id, org_id, name, email, phone, risk_tier, outstanding_cents, blacklisted, created_at, updated_at`

// PostgresRepository is the sqlx implementation of Repository.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a customer repository backed by conn.
func NewPostgresRepository(conn *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the customer or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	return r.get(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
}

// GetForUpdate returns the customer locked FOR UPDATE, or nil if not found.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*domain.Customer, error) {
	return r.get(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1 FOR UPDATE`, id)
}

// GetForShare returns the customer locked FOR SHARE, or nil if not found.
func (r *PostgresRepository) GetForShare(ctx context.Context, id string) (*domain.Customer, error) {
	return r.get(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1 FOR SHARE`, id)
}

func (r *PostgresRepository) get(ctx context.Context, query string, args ...any) (*domain.Customer, error) {
	var c domain.Customer
	if err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &c, query, args...); err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// List returns customers ordered by name.
func (r *PostgresRepository) List(ctx context.Context, orgID string, limit, offset int32) ([]*domain.Customer, error) {
	var out []*domain.Customer
	err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &out, `
		SELECT `+customerColumns+` FROM customers
		WHERE ($1 = '' OR org_id = $1)
		ORDER BY name, id LIMIT $2 OFFSET $3`, orgID, limit, offset)
	return out, err
}

// FindByEmail matches the email case-insensitively.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) ([]*domain.Customer, error) {
	var out []*domain.Customer
	err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &out,
		`SELECT `+customerColumns+` FROM customers WHERE lower(email) = $1 ORDER BY created_at, id`,
		strings.ToLower(strings.TrimSpace(email)))
	return out, err
}

// Create inserts the customer with tier low and a zero balance regardless of c's derived fields.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Customer) error {
	c.RiskTier = domain.TierLow
	c.OutstandingCents = 0
	_, err := sqlx.NamedExecContext(ctx, db.Conn(ctx, r.db), `
		INSERT INTO customers (`+customerColumns+`)
		VALUES (:id, :org_id, :name, :email, :phone, :risk_tier, :outstanding_cents, :blacklisted, :created_at, :updated_at)`, c)
	if db.IsForeignKeyViolation(err) {
		return domain.ErrInvalidCustomer
	}
	return err
}

// UpdateProfile changes name, email and phone only. Returns nil when the customer does not exist.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, p domain.ProfileUpdate) (*domain.Customer, error) {
	return r.get(ctx, `
		UPDATE customers
		SET name = COALESCE($2, name), email = COALESCE($3, email), phone = COALESCE($4, phone), updated_at = now()
		WHERE id = $1
		RETURNING `+customerColumns, id, p.Name, p.Email, p.Phone)
}

// SetBlacklisted sets the blacklist flag. Returns nil when the customer does not exist.
func (r *PostgresRepository) SetBlacklisted(ctx context.Context, id string, blacklisted bool) (*domain.Customer, error) {
	return r.get(ctx, `
		UPDATE customers SET blacklisted = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+customerColumns, id, blacklisted)
}

// SaveAssessment overwrites the derived tier and balance.
func (r *PostgresRepository) SaveAssessment(ctx context.Context, id string, a risk.Assessment) error {
	if !a.Valid() {
		return ErrInvalidAssessment
	}
	res, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE customers SET risk_tier = $2, outstanding_cents = $3, updated_at = now() WHERE id = $1`,
		id, string(a.Tier()), a.OutstandingCents())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}

// CountByTier returns per-tier and blacklist counts.
func (r *PostgresRepository) CountByTier(ctx context.Context, orgID string) (domain.TierCounts, error) {
	var c domain.TierCounts
	err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &c, `
		SELECT
			count(*) FILTER (WHERE risk_tier = 'low')    AS low,
			count(*) FILTER (WHERE risk_tier = 'medium') AS medium,
			count(*) FILTER (WHERE risk_tier = 'high')   AS high,
			count(*) FILTER (WHERE blacklisted)          AS blacklisted,
			count(*)                                     AS total
		FROM customers WHERE ($1 = '' OR org_id = $1)`, orgID)
	return c, err
}
