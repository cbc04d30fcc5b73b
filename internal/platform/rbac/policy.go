// Package rbac centralizes authorization: closed-role policy functions and the
// access guard that scopes each request to an organization.
package rbac

import (
	"context"

	accountdomain "carescope/backend/internal/account/domain"
	membershipdomain "carescope/backend/internal/membership/domain"
)

// Mode is the per-operation membership policy. It is declared at each call site.
type Mode int

const (
	// Scoped always requires an active membership in the resolved org.
	Scoped Mode = iota
	// AdminBypass lets admins proceed without a membership; the org is resolved best-effort.
	AdminBypass
)

func (m Mode) String() string {
	switch m {
	case Scoped:
		return "scoped"
	case AdminBypass:
		return "admin_bypass"
	default:
		return "unknown"
	}
}

// Operation names a guarded action and its membership policy.
type Operation struct {
	Name string
	Mode Mode
}

// IsAdmin reports whether the global role is admin.
func IsAdmin(role accountdomain.GlobalRole) bool {
	return role == accountdomain.RoleAdmin
}

// CanBypassMembership reports whether role may skip the membership check for op.
func CanBypassMembership(op Operation, role accountdomain.GlobalRole) bool {
	return op.Mode == AdminBypass && IsAdmin(role)
}

// CanCreateOrg reports whether role may create organizations.
func CanCreateOrg(role accountdomain.GlobalRole) bool {
	return role == accountdomain.RoleAdmin || role == accountdomain.RoleOrgOwner
}

// CanSetBlacklist reports whether role may change a customer's blacklist flag.
func CanSetBlacklist(role accountdomain.GlobalRole) bool {
	return IsAdmin(role)
}

// CanListAllOrgs reports whether role sees every organization rather than only its memberships.
func CanListAllOrgs(role accountdomain.GlobalRole) bool {
	return IsAdmin(role)
}

var memberRank = map[membershipdomain.Role]int{
	membershipdomain.RoleMember:  1,
	membershipdomain.RoleManager: 2,
	membershipdomain.RoleOwner:   3,
}

// RoleAtLeast reports whether have is at least as privileged as want.
func RoleAtLeast(have, want membershipdomain.Role) bool {
	return memberRank[have] >= memberRank[want] && memberRank[have] > 0
}

// BypassEvaluator decides CanBypassMembership. Implementations may consult an external
// policy engine but must fall back to the static rule on failure.
type BypassEvaluator interface {
	CanBypass(ctx context.Context, op Operation, role accountdomain.GlobalRole) bool
}

// StaticPolicy evaluates CanBypassMembership in Go.
type StaticPolicy struct{}

// CanBypass implements BypassEvaluator.
func (StaticPolicy) CanBypass(_ context.Context, op Operation, role accountdomain.GlobalRole) bool {
	return CanBypassMembership(op, role)
}
