package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	accountdomain "carescope/backend/internal/account/domain"
	membershipdomain "carescope/backend/internal/membership/domain"
	orgdomain "carescope/backend/internal/organization/domain"
	"carescope/backend/internal/security"
	sessiondomain "carescope/backend/internal/session/domain"
)

type memAccountRepo struct {
	mu      sync.Mutex
	byEmail map[string]*accountdomain.Account
}

func (r *memAccountRepo) GetByEmail(_ context.Context, email string) (*accountdomain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byEmail[email], nil
}

func (r *memAccountRepo) Create(_ context.Context, a *accountdomain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byEmail[a.Email] = a
	return nil
}

type memSessionRepo struct {
	mu sync.Mutex
	m  map[string]*sessiondomain.Session
}

func (r *memSessionRepo) GetByID(_ context.Context, id string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) Create(_ context.Context, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.m[s.ID] = &cp
	return nil
}

func (r *memSessionRepo) Revoke(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok && s.RevokedAt == nil {
		t := time.Now()
		s.RevokedAt = &t
	}
	return nil
}

func (r *memSessionRepo) RevokeAllByAccount(_ context.Context, accountID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := time.Now()
	var ids []string
	for _, s := range r.m {
		if s.AccountID == accountID && s.RevokedAt == nil {
			s.RevokedAt = &t
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

func (r *memSessionRepo) UpdateRefreshToken(_ context.Context, sessionID, jti, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[sessionID]; ok {
		s.RefreshJti = jti
		s.RefreshTokenHash = hash
	}
	return nil
}

func (r *memSessionRepo) UpdateLastSeen(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok {
		s.LastSeenAt = &at
	}
	return nil
}

// stubSnapshots returns a snapshot with a fixed active org.
type stubSnapshots struct {
	activeOrg *string
	calls     int
}

func (s *stubSnapshots) Establish(_ context.Context, accountID, sessionID string) (*sessiondomain.Snapshot, error) {
	s.calls++
	return &sessiondomain.Snapshot{SessionID: sessionID, AccountID: accountID, Role: accountdomain.RoleStaff, ActiveOrgID: s.activeOrg}, nil
}

type memOrgs struct {
	mu   sync.Mutex
	orgs []*orgdomain.Org
}

func (m *memOrgs) CreateOrganization(_ context.Context, o *orgdomain.Org) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgs = append(m.orgs, o)
	return nil
}

type recordingAdder struct {
	policies []membershipdomain.DuplicatePolicy
}

func (r *recordingAdder) Add(_ context.Context, accountID, orgID string, role membershipdomain.Role, onDuplicate membershipdomain.DuplicatePolicy) (*membershipdomain.Membership, error) {
	r.policies = append(r.policies, onDuplicate)
	return &membershipdomain.Membership{AccountID: accountID, OrgID: orgID, Role: role, Active: true}, nil
}

type recordingEvicter struct{ evicted []string }

func (r *recordingEvicter) Evict(id string) { r.evicted = append(r.evicted, id) }

type auditEvent struct{ orgID, accountID, action string }

type recordingAudit struct {
	mu     sync.Mutex
	events []auditEvent
}

func (r *recordingAudit) LogEvent(_ context.Context, orgID, accountID, action, _, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, auditEvent{orgID, accountID, action})
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.action
	}
	return out
}

type fixture struct {
	svc       *AuthService
	accounts  *memAccountRepo
	sessions  *memSessionRepo
	snapshots *stubSnapshots
	orgs      *memOrgs
	adder     *recordingAdder
	cache     *recordingEvicter
	audit     *recordingAudit
}

const testPassword = "Correct-Horse-9"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	hasher := security.NewHasher(4)
	digest, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatal(err)
	}
	org := "org-1"
	f := &fixture{
		accounts: &memAccountRepo{byEmail: map[string]*accountdomain.Account{
			"staff@example.com": {ID: "acct-1", Email: "staff@example.com", PasswordHash: digest, Role: accountdomain.RoleStaff},
		}},
		sessions:  &memSessionRepo{m: map[string]*sessiondomain.Session{}},
		snapshots: &stubSnapshots{activeOrg: &org},
		orgs:      &memOrgs{},
		adder:     &recordingAdder{},
		cache:     &recordingEvicter{},
		audit:     &recordingAudit{},
	}
	f.svc = NewAuthService(Deps{
		Accounts:    f.accounts,
		Sessions:    f.sessions,
		Snapshots:   f.snapshots,
		Orgs:        f.orgs,
		Memberships: f.adder,
		Cache:       f.cache,
		Hasher:      hasher,
		Tokens:      tokens,
		Audit:       f.audit,
		RefreshTTL:  time.Hour,
	})
	return f
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Login(context.Background(), "  Staff@Example.com ", testPassword, "10.0.0.1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("missing tokens")
	}
	if res.Session == nil || res.Session.AccountID != "acct-1" || res.Session.ActiveOrgID == nil || *res.Session.ActiveOrgID != "org-1" {
		t.Fatalf("session = %+v", res.Session)
	}
	sess, _ := f.sessions.GetByID(context.Background(), res.Session.SessionID)
	if sess == nil {
		t.Fatal("session row not created")
	}
	if sess.IPAddress != "10.0.0.1" || sess.RefreshJti == "" || !security.RefreshTokenHashEqual(res.RefreshToken, sess.RefreshTokenHash) {
		t.Errorf("session row = %+v", sess)
	}
	claims, err := f.svc.Tokens.ValidateAccess(res.AccessToken)
	if err != nil || claims.SessionID != sess.ID || claims.AccountID() != "acct-1" {
		t.Errorf("access claims = %+v, %v", claims, err)
	}
	if got := f.audit.actions(); len(got) != 1 || got[0] != "login_success" {
		t.Errorf("audit = %v", got)
	}
	if f.audit.events[0].orgID != "org-1" {
		t.Errorf("audit org = %q, want org-1", f.audit.events[0].orgID)
	}
}

func TestLogin_InvalidCredentialsAreUniform(t *testing.T) {
	tests := []struct {
		name, email, password string
	}{
		{"unknown email", "nobody@example.com", testPassword},
		{"wrong password", "staff@example.com", "Wrong-Password-1"},
		{"empty password", "staff@example.com", ""},
		{"empty email", "", testPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			res, err := f.svc.Login(context.Background(), tt.email, tt.password, "")
			if err != ErrInvalidCredentials {
				t.Fatalf("err = %v, want ErrInvalidCredentials", err)
			}
			if res != nil {
				t.Error("result should be nil")
			}
			if len(f.sessions.m) != 0 {
				t.Error("session created on failed login")
			}
			if got := f.audit.actions(); len(got) != 1 || got[0] != "login_failure" {
				t.Errorf("audit = %v", got)
			}
		})
	}
}

func TestRefresh_RotatesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	login, err := f.svc.Login(ctx, "staff@example.com", testPassword, "")
	if err != nil {
		t.Fatal(err)
	}
	res, err := f.svc.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.RefreshToken == login.RefreshToken {
		t.Error("refresh token not rotated")
	}
	if res.Session.SessionID != login.Session.SessionID {
		t.Errorf("session id changed: %s -> %s", login.Session.SessionID, res.Session.SessionID)
	}
	if f.snapshots.calls != 2 {
		t.Errorf("snapshot builds = %d, want 2", f.snapshots.calls)
	}
	sess, _ := f.sessions.GetByID(ctx, login.Session.SessionID)
	if !security.RefreshTokenHashEqual(res.RefreshToken, sess.RefreshTokenHash) {
		t.Error("stored hash does not match rotated token")
	}
}

func TestRefresh_ReuseRevokesAllSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.svc.Login(ctx, "staff@example.com", testPassword, "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.Login(ctx, "staff@example.com", testPassword, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Refresh(ctx, first.RefreshToken); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if _, err := f.svc.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrRefreshTokenReuse) {
		t.Fatalf("replayed refresh: err = %v, want ErrRefreshTokenReuse", err)
	}
	evicted := map[string]bool{}
	for _, id := range f.cache.evicted {
		evicted[id] = true
	}
	for _, id := range []string{first.Session.SessionID, second.Session.SessionID} {
		s, _ := f.sessions.GetByID(ctx, id)
		if s.RevokedAt == nil {
			t.Errorf("session %s not revoked", id)
		}
		if !evicted[id] {
			t.Errorf("session %s not evicted from cache, evicted = %v", id, f.cache.evicted)
		}
	}
	if _, err := f.svc.Refresh(ctx, second.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("refresh on revoked session: err = %v, want ErrInvalidRefreshToken", err)
	}
}

func TestRefresh_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	login, err := f.svc.Login(ctx, "staff@example.com", testPassword, "")
	if err != nil {
		t.Fatal(err)
	}
	for _, tok := range []string{"", "not-a-jwt", login.AccessToken} {
		if _, err := f.svc.Refresh(ctx, tok); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Errorf("Refresh(%.10q): err = %v, want ErrInvalidRefreshToken", tok, err)
		}
	}
}

func TestLogout_RevokesAndEvicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	login, err := f.svc.Login(ctx, "staff@example.com", testPassword, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Logout(ctx, login.Session); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	s, _ := f.sessions.GetByID(ctx, login.Session.SessionID)
	if s.RevokedAt == nil {
		t.Error("session not revoked")
	}
	if len(f.cache.evicted) != 1 || f.cache.evicted[0] != login.Session.SessionID {
		t.Errorf("evicted = %v", f.cache.evicted)
	}
	if _, err := f.svc.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("refresh after logout: err = %v", err)
	}
	if err := f.svc.Logout(ctx, nil); err != nil {
		t.Errorf("Logout(nil) = %v", err)
	}
}

func TestRegisterOrg(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg, err := f.svc.RegisterOrg(ctx, " Sunny Days ", "Owner@Example.com", "Str0ng-Password!", "Olive Owner")
	if err != nil {
		t.Fatalf("RegisterOrg: %v", err)
	}
	if reg.Org.Name != "Sunny Days" || !reg.Org.Active {
		t.Errorf("org = %+v", reg.Org)
	}
	acct, _ := f.accounts.GetByEmail(ctx, "owner@example.com")
	if acct == nil {
		t.Fatal("account not created")
	}
	if acct.Role != accountdomain.RoleOrgOwner || acct.ActiveOrgID == nil || *acct.ActiveOrgID != reg.Org.ID {
		t.Errorf("account = %+v", acct)
	}
	if acct.PasswordHash == "Str0ng-Password!" || !f.svc.Hasher.Verify("Str0ng-Password!", acct.PasswordHash) {
		t.Error("password not hashed")
	}
	if len(f.adder.policies) != 1 || f.adder.policies[0] != membershipdomain.OnDuplicateIgnore {
		t.Errorf("duplicate policies = %v, want [ignore]", f.adder.policies)
	}
	if reg.Membership.Role != membershipdomain.RoleOwner {
		t.Errorf("membership role = %q", reg.Membership.Role)
	}

	if _, err := f.svc.RegisterOrg(ctx, "Other", "owner@example.com", "Str0ng-Password!", ""); !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Errorf("second registration: err = %v, want ErrEmailAlreadyRegistered", err)
	}
}

func TestRegisterOrg_Validation(t *testing.T) {
	tests := []struct {
		name, org, email, password string
		want                       error
	}{
		{"bad email", "Org", "not-an-email", "Str0ng-Password!", ErrInvalidInput},
		{"short password", "Org", "a@example.com", "Sh0rt!", ErrInvalidInput},
		{"no symbol", "Org", "a@example.com", "NoSymbolPassw0rd", ErrInvalidInput},
		{"blank org", "  ", "a@example.com", "Str0ng-Password!", orgdomain.ErrInvalidOrg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if _, err := f.svc.RegisterOrg(context.Background(), tt.org, tt.email, tt.password, ""); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if len(f.orgs.orgs) != 0 {
				t.Error("org created despite validation failure")
			}
		})
	}
}
