package domain

import (
	"encoding"
	"errors"
	"strings"
	"time"
)

var (
	// ErrDuplicateMembership is returned when (account, org) already has a membership
	// and the call site chose to reject duplicates.
	ErrDuplicateMembership = errors.New("membership already exists")
	// ErrMembershipNotFound is returned when no membership exists for (account, org).
	ErrMembershipNotFound = errors.New("membership not found")
	// ErrInvalidRole is returned for an unknown membership role.
	ErrInvalidRole = errors.New("invalid membership role")
	// ErrUnknownAccountOrOrg is returned when the referenced account or org does not exist.
	ErrUnknownAccountOrOrg = errors.New("account or organization not found")
	// ErrLastOwner is returned when a change would leave an org without an active owner.
	ErrLastOwner = errors.New("cannot remove or demote the last owner of an organization")
)

// Membership grants an account a role within one organization. It is the only
// source of truth for non-admin access to that organization.
type Membership struct {
	AccountID string    `db:"account_id" json:"account_id"`
	OrgID     string    `db:"org_id" json:"org_id"`
	Role      Role      `db:"role" json:"role"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Role is the per-org role carried by a membership.
type Role string

const (
	RoleMember  Role = "member"
	RoleManager Role = "manager"
	RoleOwner   Role = "owner"
)

// Valid reports whether r is a known membership role.
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleManager, RoleOwner:
		return true
	}
	return false
}

// ParseRole parses s case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

var _ encoding.TextUnmarshaler = (*Role)(nil)

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// DuplicatePolicy decides what Add does when the (account, org) pair already exists.
// Every call site picks one explicitly.
type DuplicatePolicy int

const (
	// OnDuplicateReject fails with ErrDuplicateMembership.
	OnDuplicateReject DuplicatePolicy = iota
	// OnDuplicateIgnore returns the existing membership unchanged.
	OnDuplicateIgnore
)

func (p DuplicatePolicy) String() string {
	switch p {
	case OnDuplicateReject:
		return "reject"
	case OnDuplicateIgnore:
		return "ignore"
	default:
		return "unknown"
	}
}

// Patch is a partial update of a membership; nil fields are left unchanged.
type Patch struct {
	Role   *Role `json:"role,omitempty"`
	Active *bool `json:"active,omitempty"`
}
