package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"carescope/backend/internal/db"
	"carescope/backend/internal/organization/domain"
)

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns an organization repository that uses the given db for persistence.
func NewPostgresRepository(conn *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetOrganizationByID returns the organization for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetOrganizationByID(ctx context.Context, id string) (*domain.Org, error) {
	var o domain.Org
	err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &o,
		`SELECT id, name, active, created_at FROM orgs WHERE id = $1`, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// ListOrganizations returns every organization ordered by name.
func (r *PostgresRepository) ListOrganizations(ctx context.Context) ([]*domain.Org, error) {
	var out []*domain.Org
	err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &out,
		`SELECT id, name, active, created_at FROM orgs ORDER BY name, id`)
	return out, err
}

// ListOrganizationsByIDs returns the organizations whose id is in ids, ordered by name.
func (r *PostgresRepository) ListOrganizationsByIDs(ctx context.Context, ids []string) ([]*domain.Org, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, name, active, created_at FROM orgs WHERE id IN (?) ORDER BY name, id`, ids)
	if err != nil {
		return nil, err
	}
	conn := db.Conn(ctx, r.db)
	var out []*domain.Org
	err = sqlx.SelectContext(ctx, conn, &out, conn.Rebind(query), args...)
	return out, err
}

// CreateOrganization persists the organization. The org must have ID set.
func (r *PostgresRepository) CreateOrganization(ctx context.Context, o *domain.Org) error {
	_, err := sqlx.NamedExecContext(ctx, db.Conn(ctx, r.db),
		`INSERT INTO orgs (id, name, active, created_at) VALUES (:id, :name, :active, :created_at)`, o)
	return err
}
