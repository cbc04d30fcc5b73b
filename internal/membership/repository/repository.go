package repository

import (
	"context"

	"carescope/backend/internal/membership/domain"
)

// Repository defines persistence for memberships.
type Repository interface {
	GetMembership(ctx context.Context, accountID, orgID string) (*domain.Membership, error)
	// ListMembershipsByAccount returns the account's memberships in listing order (created_at, org_id).
	ListMembershipsByAccount(ctx context.Context, accountID string) ([]*domain.Membership, error)
	ListMembershipsByOrg(ctx context.Context, orgID string) ([]*domain.Membership, error)
	// CreateMembership inserts m and returns domain.ErrDuplicateMembership when the pair exists.
	CreateMembership(ctx context.Context, m *domain.Membership) error
	// CreateMembershipIfAbsent inserts m unless the pair exists; created reports which happened.
	CreateMembershipIfAbsent(ctx context.Context, m *domain.Membership) (created bool, err error)
	// UpdateMembership applies p and returns the updated row, or nil if the pair does not exist.
	UpdateMembership(ctx context.Context, accountID, orgID string, p domain.Patch) (*domain.Membership, error)
	// DeleteMembership removes the pair and reports whether a row was deleted.
	DeleteMembership(ctx context.Context, accountID, orgID string) (bool, error)
	// LockActiveOwnersByOrg locks the org's active owner memberships for the current transaction.
	LockActiveOwnersByOrg(ctx context.Context, orgID string) error
	// CountActiveOwnersByOrg counts active owner memberships of the org.
	CountActiveOwnersByOrg(ctx context.Context, orgID string) (int64, error)
	// HasActiveAccess reports whether the membership exists, is active, and its org is active.
	HasActiveAccess(ctx context.Context, accountID, orgID string) (bool, error)
}
