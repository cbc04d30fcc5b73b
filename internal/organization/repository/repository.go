package repository

import (
	"context"

	"carescope/backend/internal/organization/domain"
)

// Repository defines persistence for organizations.
type Repository interface {
	GetOrganizationByID(ctx context.Context, id string) (*domain.Org, error)
	ListOrganizations(ctx context.Context) ([]*domain.Org, error)
	// ListOrganizationsByIDs returns the orgs with the given ids, ordered by name.
	ListOrganizationsByIDs(ctx context.Context, ids []string) ([]*domain.Org, error)
	CreateOrganization(ctx context.Context, o *domain.Org) error
}
