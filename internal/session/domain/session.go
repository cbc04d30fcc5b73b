package domain

import (
	"time"

	accountdomain "carescope/backend/internal/account/domain"
	membershipdomain "carescope/backend/internal/membership/domain"
	"carescope/backend/internal/platform/rbac"
)

// Session is the server-side row behind a token pair.
type Session struct {
	ID               string     `db:"id"`
	AccountID        string     `db:"account_id"`
	ExpiresAt        time.Time  `db:"expires_at"`
	RevokedAt        *time.Time `db:"revoked_at"` // nil when not revoked
	LastSeenAt       *time.Time `db:"last_seen_at"`
	RefreshJti       string     `db:"refresh_jti"`        // current refresh token jti for rotation
	RefreshTokenHash string     `db:"refresh_token_hash"` // SHA-256 hash of current refresh token
	IPAddress        string     `db:"ip_address"`
	CreatedAt        time.Time  `db:"created_at"`
}

// IsActive reports whether the session is neither revoked nor expired at now.
func (s *Session) IsActive(now time.Time) bool {
	return s != nil && s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// MembershipView is the per-org grant carried in a snapshot.
type MembershipView struct {
	OrgID  string                `json:"org_id"`
	Role   membershipdomain.Role `json:"role"`
	Active bool                  `json:"active"`
}

// Snapshot is the per-request view of the caller: who they are, what they may
// access, and which org they are working in. It is threaded through the request
// context, never stored globally.
type Snapshot struct {
	SessionID   string                   `json:"session_id"`
	AccountID   string                   `json:"account_id"`
	Email       string                   `json:"email"`
	Role        accountdomain.GlobalRole `json:"role"`
	Memberships []MembershipView         `json:"memberships"`
	ActiveOrgID *string                  `json:"active_org_id"`
}

// Principal returns the guard's view of the snapshot.
func (s *Snapshot) Principal() rbac.Principal {
	if s == nil {
		return rbac.Principal{}
	}
	return rbac.Principal{AccountID: s.AccountID, Role: s.Role, ActiveOrgID: s.ActiveOrgID}
}

// MembershipViews converts registry rows to snapshot entries, keeping order.
func MembershipViews(ms []*membershipdomain.Membership) []MembershipView {
	out := make([]MembershipView, 0, len(ms))
	for _, m := range ms {
		out = append(out, MembershipView{OrgID: m.OrgID, Role: m.Role, Active: m.Active})
	}
	return out
}
