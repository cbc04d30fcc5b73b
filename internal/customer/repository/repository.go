package repository

import (
	"context"

	"carescope/backend/internal/customer/domain"
	"carescope/backend/internal/risk"
)

// Repository defines persistence for customers. Risk tier and outstanding balance are only
// written through SaveAssessment.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	// GetForUpdate reads the row with FOR UPDATE; call it inside a transaction.
	GetForUpdate(ctx context.Context, id string) (*domain.Customer, error)
	// GetForShare reads the row with FOR SHARE; call it inside a transaction.
	GetForShare(ctx context.Context, id string) (*domain.Customer, error)
	// List returns customers of orgID, or of every org when orgID is empty.
	List(ctx context.Context, orgID string, limit, offset int32) ([]*domain.Customer, error)
	// FindByEmail returns every customer with the email across all orgs.
	FindByEmail(ctx context.Context, email string) ([]*domain.Customer, error)
	Create(ctx context.Context, c *domain.Customer) error
	UpdateProfile(ctx context.Context, id string, p domain.ProfileUpdate) (*domain.Customer, error)
	SetBlacklisted(ctx context.Context, id string, blacklisted bool) (*domain.Customer, error)
	SaveAssessment(ctx context.Context, id string, a risk.Assessment) error
	// CountByTier aggregates customers of orgID, or of every org when orgID is empty.
	CountByTier(ctx context.Context, orgID string) (domain.TierCounts, error)
}
