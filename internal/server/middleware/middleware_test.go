package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	accountdomain "carescope/backend/internal/account/domain"
	"carescope/backend/internal/platform/rbac"
	"carescope/backend/internal/security"
	sessiondomain "carescope/backend/internal/session/domain"
)

type memSessions map[string]*sessiondomain.Session

func (m memSessions) Get(_ context.Context, id string) (*sessiondomain.Session, error) {
	return m[id], nil
}

type stubSnapshots struct {
	role   accountdomain.GlobalRole
	active *string
	err    error
}

func (s stubSnapshots) Snapshot(_ context.Context, accountID, sessionID string) (*sessiondomain.Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &sessiondomain.Snapshot{SessionID: sessionID, AccountID: accountID, Role: s.role, ActiveOrgID: s.active}, nil
}

type auditEntry struct {
	orgID, accountID, action, resource, metadata string
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (r *recordingAudit) LogEvent(_ context.Context, orgID, accountID, action, resource, metadata string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, auditEntry{orgID, accountID, action, resource, metadata})
}

type fakeAccess map[string]bool

func (f fakeAccess) HasActiveAccess(_ context.Context, accountID, orgID string) (bool, error) {
	return f[accountID+":"+orgID], nil
}

func strPtr(s string) *string { return &s }

func issue(t *testing.T, tokens *security.TokenProvider, sessionID, accountID string) string {
	t.Helper()
	tok, err := tokens.IssueAccess(sessionID, accountID)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	return tok.Token
}

func TestAuthenticate(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	future := time.Now().Add(time.Hour)
	revokedAt := time.Now().Add(-time.Minute)
	sessions := memSessions{
		"sess-ok":      {ID: "sess-ok", AccountID: "acct-1", ExpiresAt: future},
		"sess-revoked": {ID: "sess-revoked", AccountID: "acct-1", ExpiresAt: future, RevokedAt: &revokedAt},
		"sess-expired": {ID: "sess-expired", AccountID: "acct-1", ExpiresAt: time.Now().Add(-time.Minute)},
		"sess-other":   {ID: "sess-other", AccountID: "acct-2", ExpiresAt: future},
	}

	tests := []struct {
		name       string
		header     string
		snapErr    error
		wantStatus int
	}{
		{"no header", "", nil, http.StatusUnauthorized},
		{"not bearer", "Basic abc", nil, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", nil, http.StatusUnauthorized},
		{"valid", "Bearer " + issue(t, tokens, "sess-ok", "acct-1"), nil, http.StatusOK},
		{"lowercase scheme", "bearer " + issue(t, tokens, "sess-ok", "acct-1"), nil, http.StatusOK},
		{"revoked session", "Bearer " + issue(t, tokens, "sess-revoked", "acct-1"), nil, http.StatusUnauthorized},
		{"expired session", "Bearer " + issue(t, tokens, "sess-expired", "acct-1"), nil, http.StatusUnauthorized},
		{"unknown session", "Bearer " + issue(t, tokens, "sess-missing", "acct-1"), nil, http.StatusUnauthorized},
		{"session of another account", "Bearer " + issue(t, tokens, "sess-other", "acct-1"), nil, http.StatusUnauthorized},
		{"snapshot failure", "Bearer " + issue(t, tokens, "sess-ok", "acct-1"), errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *sessiondomain.Snapshot
			h := Authenticate(tokens, sessions, stubSnapshots{role: accountdomain.RoleStaff, err: tt.snapErr})(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					got = SnapshotFrom(r.Context())
					w.WriteHeader(http.StatusOK)
				}))
			req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK && (got == nil || got.AccountID != "acct-1" || got.SessionID != "sess-ok") {
				t.Errorf("snapshot = %+v", got)
			}
		})
	}
}

func serveRoute(method, template, target string, h http.Handler, mws ...mux.MiddlewareFunc) *httptest.ResponseRecorder {
	r := mux.NewRouter()
	r.Use(mws...)
	r.Handle(template, h).Methods(method)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(`{}`)))
	return rec
}

func withSnap(snap *sessiondomain.Snapshot) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithSnapshot(r.Context(), snap)))
		})
	}
}

func TestAudit(t *testing.T) {
	snap := &sessiondomain.Snapshot{AccountID: "acct-1", ActiveOrgID: strPtr("org-active")}
	guard := rbac.NewGuard(fakeAccess{"acct-1:org-1": true, "acct-1:org-active": true}, nil)

	t.Run("records resolved org", func(t *testing.T) {
		au := &recordingAudit{}
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := Authorize(r, guard, rbac.Operation{Name: "customers.create"}, "org-1"); err != nil {
				t.Fatalf("Authorize: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
		})
		serveRoute(http.MethodPost, "/api/customers", "/api/customers", h, withSnap(snap), Audit(au))
		if len(au.entries) != 1 {
			t.Fatalf("entries = %d, want 1", len(au.entries))
		}
		want := auditEntry{"org-1", "acct-1", "create", "customer", "status=201"}
		if au.entries[0] != want {
			t.Errorf("entry = %+v, want %+v", au.entries[0], want)
		}
	})

	t.Run("falls back to active org", func(t *testing.T) {
		au := &recordingAudit{}
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
		serveRoute(http.MethodPost, "/api/auth/logout", "/api/auth/logout", h, withSnap(snap), Audit(au))
		if len(au.entries) != 1 || au.entries[0].orgID != "org-active" || au.entries[0].action != "logout" {
			t.Errorf("entries = %+v", au.entries)
		}
	})

	skipped := []struct {
		name             string
		method, template string
		target           string
		snap             *sessiondomain.Snapshot
	}{
		{"GET", http.MethodGet, "/api/customers", "/api/customers", snap},
		{"unauthenticated", http.MethodPost, "/api/customers", "/api/customers", nil},
		{"service-audited route", http.MethodPut, "/api/customers/{customerID}/blacklist", "/api/customers/c1/blacklist", snap},
	}
	for _, tt := range skipped {
		t.Run("skips "+tt.name, func(t *testing.T) {
			au := &recordingAudit{}
			h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
			mws := []mux.MiddlewareFunc{Audit(au)}
			if tt.snap != nil {
				mws = append([]mux.MiddlewareFunc{withSnap(tt.snap)}, mws...)
			}
			serveRoute(tt.method, tt.template, tt.target, h, mws...)
			if len(au.entries) != 0 {
				t.Errorf("entries = %+v, want none", au.entries)
			}
		})
	}
}

func TestAuthorize_Candidates(t *testing.T) {
	guard := rbac.NewGuard(fakeAccess{"acct-1:org-path": true, "acct-1:org-query": true, "acct-1:org-active": true}, nil)
	snap := &sessiondomain.Snapshot{AccountID: "acct-1", Role: accountdomain.RoleStaff, ActiveOrgID: strPtr("org-active")}

	tests := []struct {
		name     string
		template string
		target   string
		body     string
		wantOrg  string
		wantErr  error
	}{
		{"path wins", "/api/orgs/{orgID}/things", "/api/orgs/org-path/things?org_id=org-query", "org-body", "org-path", nil},
		{"query before body", "/api/things", "/api/things?org_id=org-query", "org-body", "org-query", nil},
		{"body without membership", "/api/things", "/api/things", "org-body", "", rbac.ErrNoAccess},
		{"session fallback", "/api/things", "/api/things", "", "org-active", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				scope rbac.Scope
				err   error
			)
			h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				scope, err = Authorize(r, guard, rbac.Operation{Name: "things.list"}, tt.body)
			})
			serveRoute(http.MethodGet, tt.template, tt.target, h, withSnap(snap))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if scope.OrgID != tt.wantOrg {
				t.Errorf("org = %q, want %q", scope.OrgID, tt.wantOrg)
			}
		})
	}

	t.Run("staff without any org", func(t *testing.T) {
		noOrg := &sessiondomain.Snapshot{AccountID: "acct-1", Role: accountdomain.RoleStaff}
		var err error
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, err = Authorize(r, guard, rbac.Operation{Name: "things.list", Mode: rbac.AdminBypass}, "")
		})
		serveRoute(http.MethodGet, "/api/things", "/api/things", h, withSnap(noOrg))
		if !errors.Is(err, rbac.ErrMissingOrgContext) {
			t.Errorf("err = %v, want ErrMissingOrgContext", err)
		}
	})
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded list", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.2.3.4:5", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.9"}, "1.2.3.4:5", "10.0.0.9"},
		{"remote addr", nil, "1.2.3.4:5", "1.2.3.4"},
		{"remote without port", nil, "1.2.3.4", "1.2.3.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLogging_SetsRequestContext(t *testing.T) {
	var (
		ip       string
		loggerOK bool
	)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = ClientIPFromContext(r.Context())
		loggerOK = log.FromContext(r.Context()) != nil
		w.WriteHeader(http.StatusTeapot)
	})
	r := mux.NewRouter()
	r.Use(Logging(log.New(&strings.Builder{})))
	r.Handle("/api/ping", h)
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("X-Real-IP", "10.1.1.1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
	if ip != "10.1.1.1" || !loggerOK {
		t.Errorf("ip = %q, logger set = %v", ip, loggerOK)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}
}
