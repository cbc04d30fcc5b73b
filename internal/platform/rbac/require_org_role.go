package rbac

import (
	"context"

	membershipdomain "carescope/backend/internal/membership/domain"
)

// OrgMembershipGetter returns an account's membership in an org. Used by RequireOrgRole to resolve the caller's role.
type OrgMembershipGetter interface {
	GetMembership(ctx context.Context, accountID, orgID string) (*membershipdomain.Membership, error)
}

// RequireOrgRole ensures the caller is an admin or holds an active membership in orgID
// with at least role min. Returns ErrUnauthenticated, ErrMissingOrgContext or ErrNoAccess on failure.
func RequireOrgRole(ctx context.Context, getter OrgMembershipGetter, p Principal, orgID string, min membershipdomain.Role) error {
	if p.AccountID == "" {
		return ErrUnauthenticated
	}
	if IsAdmin(p.Role) {
		return nil
	}
	if orgID == "" {
		return ErrMissingOrgContext
	}
	m, err := getter.GetMembership(ctx, p.AccountID, orgID)
	if err != nil {
		return err
	}
	if m == nil || !m.Active || !RoleAtLeast(m.Role, min) {
		return ErrNoAccess
	}
	return nil
}
