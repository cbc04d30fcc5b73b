package repository

import (
	"context"

	"carescope/backend/internal/account/domain"
)

// Repository defines persistence for accounts.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// GetByIDForUpdate is GetByID with a row lock held until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	// SetActiveOrg persists the account's active org; nil clears it.
	SetActiveOrg(ctx context.Context, accountID string, orgID *string) error
	// ClearActiveOrgIf clears the active org of a non-admin account when it equals orgID.
	ClearActiveOrgIf(ctx context.Context, accountID, orgID string) error
}
