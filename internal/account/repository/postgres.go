package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"carescope/backend/internal/account/domain"
	"carescope/backend/internal/db"
)

const accountColumns = `id, email, name, password_hash, role, active_org_id, created_at, updated_at`

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns an account repository that uses the given db for persistence.
func NewPostgresRepository(conn *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the account for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.get(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

// GetByIDForUpdate returns the account for id with FOR UPDATE, or nil if not found.
// Callers must run it inside a transaction for the lock to be meaningful.
func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Account, error) {
	return r.get(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
}

// GetByEmail returns the account with the given (normalized) email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.get(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, domain.NormalizeEmail(email))
}

func (r *PostgresRepository) get(ctx context.Context, query string, args ...any) (*domain.Account, error) {
	var a domain.Account
	if err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &a, query, args...); err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// Create persists the account. The account must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Account) error {
	_, err := sqlx.NamedExecContext(ctx, db.Conn(ctx, r.db), `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (:id, :email, :name, :password_hash, :role, :active_org_id, :created_at, :updated_at)`, a)
	return err
}

// SetActiveOrg persists the account's active org.
func (r *PostgresRepository) SetActiveOrg(ctx context.Context, accountID string, orgID *string) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE accounts SET active_org_id = $2, updated_at = $3 WHERE id = $1`,
		accountID, orgID, time.Now().UTC())
	return err
}

// ClearActiveOrgIf clears active_org_id when it points at orgID and the account is not an admin.
func (r *PostgresRepository) ClearActiveOrgIf(ctx context.Context, accountID, orgID string) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE accounts SET active_org_id = NULL, updated_at = $3
		WHERE id = $1 AND active_org_id = $2 AND role <> 'admin'`,
		accountID, orgID, time.Now().UTC())
	return err
}
