// Package service implements the identity and credential store: login, token
// refresh, logout and self-service org registration.
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	accountdomain "carescope/backend/internal/account/domain"
	"carescope/backend/internal/audit"
	"carescope/backend/internal/db"
	membershipdomain "carescope/backend/internal/membership/domain"
	orgdomain "carescope/backend/internal/organization/domain"
	"carescope/backend/internal/security"
	sessiondomain "carescope/backend/internal/session/domain"
)

// Sentinel errors for auth service; the HTTP layer maps them to status codes.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidRefreshToken    = errors.New("invalid or expired refresh token")
	ErrRefreshTokenReuse      = errors.New("refresh token reuse detected; all sessions revoked")
	ErrInvalidInput           = errors.New("invalid input")
)

// AuthResult holds the outcome of Login or Refresh.
type AuthResult struct {
	AccessToken  string                  `json:"access_token"`
	RefreshToken string                  `json:"refresh_token"`
	ExpiresAt    time.Time               `json:"expires_at"`
	Session      *sessiondomain.Snapshot `json:"session"`
}

// Registration is the outcome of RegisterOrg.
type Registration struct {
	Org        *orgdomain.Org               `json:"org"`
	AccountID  string                       `json:"account_id"`
	Membership *membershipdomain.Membership `json:"membership"`
}

// AccountRepo is the minimal account repository needed by the auth service.
type AccountRepo interface {
	GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error)
	Create(ctx context.Context, a *accountdomain.Account) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	Revoke(ctx context.Context, id string) error
	RevokeAllByAccount(ctx context.Context, accountID string) ([]string, error)
	UpdateRefreshToken(ctx context.Context, sessionID, jti, refreshTokenHash string) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
}

// SnapshotBuilder resolves the caller's view for a session and persists the resolved active org.
type SnapshotBuilder interface {
	Establish(ctx context.Context, accountID, sessionID string) (*sessiondomain.Snapshot, error)
}

// OrgCreator persists new organizations.
type OrgCreator interface {
	CreateOrganization(ctx context.Context, o *orgdomain.Org) error
}

// MembershipAdder grants memberships.
type MembershipAdder interface {
	Add(ctx context.Context, accountID, orgID string, role membershipdomain.Role, onDuplicate membershipdomain.DuplicatePolicy) (*membershipdomain.Membership, error)
}

// SessionEvicter drops a session from the in-process cache.
type SessionEvicter interface {
	Evict(id string)
}

// Deps groups the collaborators of AuthService.
type Deps struct {
	Accounts    AccountRepo
	Sessions    SessionRepo
	Snapshots   SnapshotBuilder
	Orgs        OrgCreator
	Memberships MembershipAdder
	Cache       SessionEvicter
	Hasher      *security.Hasher
	Tokens      *security.TokenProvider
	Tx          db.Transactor
	Audit       audit.AuditLogger
	RefreshTTL  time.Duration
}

// AuthService implements password login, refresh, logout and org registration.
type AuthService struct {
	Deps
	dummyDigest string
	now         func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(d Deps) *AuthService {
	if d.Tx == nil {
		d.Tx = db.NopTransactor{}
	}
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	s := &AuthService{Deps: d, now: func() time.Time { return time.Now().UTC() }}
	// Unknown identifiers still pay for one bcrypt comparison.
	s.dummyDigest, _ = d.Hasher.Hash("carescope-unknown-account")
	return s
}

// Login authenticates email/password, opens a session and returns tokens plus the session snapshot.
// Unknown email and wrong password both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*AuthResult, error) {
	email = accountdomain.NormalizeEmail(email)
	if email == "" || password == "" {
		s.Audit.LogEvent(ctx, "", "", "login_failure", "authentication", "")
		return nil, ErrInvalidCredentials
	}
	acct, err := s.Accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		s.Hasher.Verify(password, s.dummyDigest)
		s.Audit.LogEvent(ctx, "", "", "login_failure", "authentication", "")
		return nil, ErrInvalidCredentials
	}
	if !s.Hasher.Verify(password, acct.PasswordHash) {
		s.Audit.LogEvent(ctx, "", acct.ID, "login_failure", "authentication", "")
		return nil, ErrInvalidCredentials
	}

	sessionID := uuid.New().String()
	refresh, err := s.Tokens.IssueRefresh(sessionID, acct.ID)
	if err != nil {
		return nil, err
	}
	access, err := s.Tokens.IssueAccess(sessionID, acct.ID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess := &sessiondomain.Session{
		ID:               sessionID,
		AccountID:        acct.ID,
		ExpiresAt:        now.Add(s.refreshTTL()),
		LastSeenAt:       &now,
		RefreshJti:       refresh.JTI,
		RefreshTokenHash: security.HashRefreshToken(refresh.Token),
		IPAddress:        ip,
		CreatedAt:        now,
	}

	var snap *sessiondomain.Snapshot
	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.Sessions.Create(ctx, sess); err != nil {
			return err
		}
		var err error
		snap, err = s.Snapshots.Establish(ctx, acct.ID, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Audit.LogEvent(ctx, derefOrg(snap.ActiveOrgID), acct.ID, "login_success", "authentication", "")
	return &AuthResult{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		ExpiresAt:    access.ExpiresAt,
		Session:      snap,
	}, nil
}

// Refresh validates the refresh token, rotates it, and returns new tokens with a rebuilt snapshot.
// Presenting a superseded refresh token revokes every session of the account.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	claims, err := s.Tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	sess, err := s.Sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !sess.IsActive(now) || sess.AccountID != claims.AccountID() {
		return nil, ErrInvalidRefreshToken
	}
	if sess.RefreshJti != claims.ID {
		revoked, err := s.Sessions.RevokeAllByAccount(ctx, sess.AccountID)
		if err != nil {
			return nil, err
		}
		for _, id := range revoked {
			s.evict(id)
		}
		s.evict(sess.ID)
		s.Audit.LogEvent(ctx, "", sess.AccountID, "refresh_token_reuse", "session", sess.ID)
		return nil, ErrRefreshTokenReuse
	}
	if sess.RefreshTokenHash != "" && !security.RefreshTokenHashEqual(refreshToken, sess.RefreshTokenHash) {
		return nil, ErrInvalidRefreshToken
	}

	newRefresh, err := s.Tokens.IssueRefresh(sess.ID, sess.AccountID)
	if err != nil {
		return nil, err
	}
	access, err := s.Tokens.IssueAccess(sess.ID, sess.AccountID)
	if err != nil {
		return nil, err
	}

	var snap *sessiondomain.Snapshot
	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.Sessions.UpdateRefreshToken(ctx, sess.ID, newRefresh.JTI, security.HashRefreshToken(newRefresh.Token)); err != nil {
			return err
		}
		if err := s.Sessions.UpdateLastSeen(ctx, sess.ID, now); err != nil {
			return err
		}
		var err error
		snap, err = s.Snapshots.Establish(ctx, sess.AccountID, sess.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.evict(sess.ID)
	return &AuthResult{
		AccessToken:  access.Token,
		RefreshToken: newRefresh.Token,
		ExpiresAt:    access.ExpiresAt,
		Session:      snap,
	}, nil
}

// Logout revokes the session and evicts it from the session cache.
func (s *AuthService) Logout(ctx context.Context, snap *sessiondomain.Snapshot) error {
	if snap == nil || snap.SessionID == "" {
		return nil
	}
	if err := s.Sessions.Revoke(ctx, snap.SessionID); err != nil {
		return err
	}
	s.evict(snap.SessionID)
	return nil
}

// RegisterOrg creates an organization, an org-owner account and the owner membership
// in one transaction. The membership is added with OnDuplicateIgnore: the account is
// brand new, so an existing pair can only come from a retried request.
func (s *AuthService) RegisterOrg(ctx context.Context, orgName, email, password, name string) (*Registration, error) {
	email = accountdomain.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	now := s.now()
	org := &orgdomain.Org{ID: uuid.New().String(), Name: orgName, Active: true, CreatedAt: now}
	if err := org.Validate(); err != nil {
		return nil, err
	}
	hashed, err := s.Hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	acct := &accountdomain.Account{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hashed,
		Role:         accountdomain.RoleOrgOwner,
		ActiveOrgID:  &org.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := acct.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	out := &Registration{Org: org, AccountID: acct.ID}
	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.Accounts.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrEmailAlreadyRegistered
		}
		if err := s.Orgs.CreateOrganization(ctx, org); err != nil {
			return err
		}
		if err := s.Accounts.Create(ctx, acct); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrEmailAlreadyRegistered
			}
			return err
		}
		out.Membership, err = s.Memberships.Add(ctx, acct.ID, org.ID, membershipdomain.RoleOwner, membershipdomain.OnDuplicateIgnore)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Audit.LogEvent(ctx, org.ID, acct.ID, "org_registered", "organization", org.Name)
	return out, nil
}

func (s *AuthService) refreshTTL() time.Duration {
	if s.RefreshTTL <= 0 {
		return 168 * time.Hour
	}
	return s.RefreshTTL
}

func (s *AuthService) evict(sessionID string) {
	if s.Cache != nil {
		s.Cache.Evict(sessionID)
	}
}

func derefOrg(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}

var simpleEmail = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if !simpleEmail.MatchString(email) {
		return fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 12 {
		return fmt.Errorf("%w: password must be at least 12 characters", ErrInvalidInput)
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		default:
			hasSymbol = true
		}
	}
	switch {
	case !hasUpper:
		return fmt.Errorf("%w: password must contain at least one uppercase letter", ErrInvalidInput)
	case !hasLower:
		return fmt.Errorf("%w: password must contain at least one lowercase letter", ErrInvalidInput)
	case !hasNumber:
		return fmt.Errorf("%w: password must contain at least one number", ErrInvalidInput)
	case !hasSymbol:
		return fmt.Errorf("%w: password must contain at least one symbol", ErrInvalidInput)
	}
	return nil
}
