package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"carescope/backend/internal/db"
	"carescope/backend/internal/membership/domain"
)

const membershipColumns = `account_id, org_id, role, active, created_at`

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a membership repository that uses the given db for persistence.
func NewPostgresRepository(conn *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetMembership returns the membership for the given account and org, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetMembership(ctx context.Context, accountID, orgID string) (*domain.Membership, error) {
	var m domain.Membership
	err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &m,
		`SELECT `+membershipColumns+` FROM memberships WHERE account_id = $1 AND org_id = $2`, accountID, orgID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// ListMembershipsByAccount returns all memberships of the account. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListMembershipsByAccount(ctx context.Context, accountID string) ([]*domain.Membership, error) {
	var out []*domain.Membership
	err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &out,
		`SELECT `+membershipColumns+` FROM memberships WHERE account_id = $1 ORDER BY created_at, org_id`, accountID)
	return out, err
}

// ListMembershipsByOrg returns all memberships for the given org. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListMembershipsByOrg(ctx context.Context, orgID string) ([]*domain.Membership, error) {
	var out []*domain.Membership
	err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &out,
		`SELECT `+membershipColumns+` FROM memberships WHERE org_id = $1 ORDER BY created_at, account_id`, orgID)
	return out, err
}

// CreateMembership persists the membership. A unique violation on (account_id, org_id)
// is reported as domain.ErrDuplicateMembership.
func (r *PostgresRepository) CreateMembership(ctx context.Context, m *domain.Membership) error {
	_, err := sqlx.NamedExecContext(ctx, db.Conn(ctx, r.db),
		`INSERT INTO memberships (`+membershipColumns+`) VALUES (:account_id, :org_id, :role, :active, :created_at)`, m)
	switch {
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%w: account %s org %s", domain.ErrDuplicateMembership, m.AccountID, m.OrgID)
	case db.IsForeignKeyViolation(err):
		return domain.ErrUnknownAccountOrOrg
	}
	return err
}

// CreateMembershipIfAbsent inserts with ON CONFLICT DO NOTHING.
func (r *PostgresRepository) CreateMembershipIfAbsent(ctx context.Context, m *domain.Membership) (bool, error) {
	res, err := sqlx.NamedExecContext(ctx, db.Conn(ctx, r.db),
		`INSERT INTO memberships (`+membershipColumns+`) VALUES (:account_id, :org_id, :role, :active, :created_at)
		 ON CONFLICT (account_id, org_id) DO NOTHING`, m)
	if db.IsForeignKeyViolation(err) {
		return false, domain.ErrUnknownAccountOrOrg
	}
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateMembership updates role and/or active. Returns nil when the pair does not exist.
func (r *PostgresRepository) UpdateMembership(ctx context.Context, accountID, orgID string, p domain.Patch) (*domain.Membership, error) {
	var m domain.Membership
	err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &m, `
		UPDATE memberships
		SET role = COALESCE($3, role), active = COALESCE($4, active)
		WHERE account_id = $1 AND org_id = $2
		RETURNING `+membershipColumns, accountID, orgID, p.Role, p.Active)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// DeleteMembership removes the membership for (accountID, orgID).
func (r *PostgresRepository) DeleteMembership(ctx context.Context, accountID, orgID string) (bool, error) {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM memberships WHERE account_id = $1 AND org_id = $2`, accountID, orgID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// LockActiveOwnersByOrg takes row locks on the org's active owner memberships until the
// surrounding transaction ends.
func (r *PostgresRepository) LockActiveOwnersByOrg(ctx context.Context, orgID string) error {
	var ids []string
	return sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &ids, `
		SELECT account_id FROM memberships
		WHERE org_id = $1 AND role = 'owner' AND active
		ORDER BY account_id
		FOR UPDATE`, orgID)
}

// CountActiveOwnersByOrg returns the number of active owners of the org.
func (r *PostgresRepository) CountActiveOwnersByOrg(ctx context.Context, orgID string) (int64, error) {
	var n int64
	err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &n,
		`SELECT count(*) FROM memberships WHERE org_id = $1 AND role = 'owner' AND active`, orgID)
	return n, err
}

// HasActiveAccess checks membership existence, its active flag, and the org's active flag.
func (r *PostgresRepository) HasActiveAccess(ctx context.Context, accountID, orgID string) (bool, error) {
	var ok bool
	err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &ok, `
		SELECT EXISTS (
			SELECT 1 FROM memberships m JOIN orgs o ON o.id = m.org_id
			WHERE m.account_id = $1 AND m.org_id = $2 AND m.active AND o.active
		)`, accountID, orgID)
	return ok, err
}
