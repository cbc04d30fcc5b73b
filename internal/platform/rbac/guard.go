package rbac

import (
	"context"
	"errors"
	"strings"

	accountdomain "carescope/backend/internal/account/domain"
)

var (
	// ErrUnauthenticated is returned when the request carries no valid session.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrMissingOrgContext is returned when no candidate source names an organization.
	ErrMissingOrgContext = errors.New("organization context required")
	// ErrNoAccess is returned when the caller has no active membership in the resolved organization.
	ErrNoAccess = errors.New("no access to this organization")
)

// Principal is the authenticated caller as seen by the guard.
type Principal struct {
	AccountID   string
	Role        accountdomain.GlobalRole
	ActiveOrgID *string
}

// Candidates are the request-supplied org ids, checked in field order before the
// session's active org.
type Candidates struct {
	Path  string
	Query string
	Body  string
}

// Resolve returns the first non-empty candidate in priority order path, query, body,
// then the active org. Returns "" when none is set.
func (c Candidates) Resolve(activeOrgID *string) string {
	for _, s := range []string{c.Path, c.Query, c.Body} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	if activeOrgID != nil {
		return strings.TrimSpace(*activeOrgID)
	}
	return ""
}

// Scope is the outcome of a successful authorization.
type Scope struct {
	// OrgID is the organization the operation is bound to. Empty only when Bypassed
	// and no candidate named an org.
	OrgID string
	// Bypassed is true when the membership check was skipped for an admin.
	Bypassed bool
}

// AccessChecker answers the membership question for the guard.
type AccessChecker interface {
	HasActiveAccess(ctx context.Context, accountID, orgID string) (bool, error)
}

// Guard authorizes requests against org memberships.
type Guard struct {
	access AccessChecker
	bypass BypassEvaluator
}

// NewGuard returns a Guard. bypass may be nil to use StaticPolicy.
func NewGuard(access AccessChecker, bypass BypassEvaluator) *Guard {
	if bypass == nil {
		bypass = StaticPolicy{}
	}
	return &Guard{access: access, bypass: bypass}
}

// Authorize resolves the target org for op and checks the caller may act on it.
func (g *Guard) Authorize(ctx context.Context, p Principal, op Operation, c Candidates) (Scope, error) {
	if p.AccountID == "" {
		return Scope{}, ErrUnauthenticated
	}
	orgID := c.Resolve(p.ActiveOrgID)
	if g.bypass.CanBypass(ctx, op, p.Role) {
		return Scope{OrgID: orgID, Bypassed: true}, nil
	}
	if orgID == "" {
		return Scope{}, ErrMissingOrgContext
	}
	ok, err := g.access.HasActiveAccess(ctx, p.AccountID, orgID)
	if err != nil {
		return Scope{}, err
	}
	if !ok {
		return Scope{}, ErrNoAccess
	}
	return Scope{OrgID: orgID}, nil
}
