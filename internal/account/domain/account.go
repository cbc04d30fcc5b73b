package domain

import (
	"encoding"
	"errors"
	"strings"
	"time"
)

// ErrInvalidRole is returned when a global role string is not one of the known roles.
var ErrInvalidRole = errors.New("invalid global role")

// GlobalRole is an account's platform-wide role. It never grants access to an org
// by itself except for RoleAdmin under an admin-bypass operation.
type GlobalRole string

const (
	RoleStaff    GlobalRole = "staff"
	RoleOrgOwner GlobalRole = "org-owner"
	RoleAdmin    GlobalRole = "admin"
)

// Valid reports whether r is one of the known roles.
func (r GlobalRole) Valid() bool {
	switch r {
	case RoleStaff, RoleOrgOwner, RoleAdmin:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (r GlobalRole) String() string { return string(r) }

// ParseGlobalRole parses s case-insensitively.
func ParseGlobalRole(s string) (GlobalRole, error) {
	r := GlobalRole(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

var (
	_ encoding.TextMarshaler   = GlobalRole("")
	_ encoding.TextUnmarshaler = (*GlobalRole)(nil)
)

// MarshalText implements encoding.TextMarshaler.
func (r GlobalRole) MarshalText() ([]byte, error) { return []byte(r), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *GlobalRole) UnmarshalText(text []byte) error {
	parsed, err := ParseGlobalRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Account is a login identity. Email is the identifier used to authenticate.
type Account struct {
	ID           string     `db:"id"`
	Email        string     `db:"email"`
	Name         string     `db:"name"`
	PasswordHash string     `db:"password_hash"`
	Role         GlobalRole `db:"role"`
	ActiveOrgID  *string    `db:"active_org_id"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// NormalizeEmail trims and lower-cases an identifier.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate validates the account for persistence. Returns an error describing the first validation failure.
func (a *Account) Validate() error {
	if a.Email == "" {
		return errors.New("email is required")
	}
	if a.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if a.Role == "" {
		a.Role = RoleStaff
	}
	if !a.Role.Valid() {
		return ErrInvalidRole
	}
	return nil
}
