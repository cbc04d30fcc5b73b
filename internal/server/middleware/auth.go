package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"carescope/backend/internal/platform/httpx"
	"carescope/backend/internal/platform/rbac"
	"carescope/backend/internal/security"
	sessiondomain "carescope/backend/internal/session/domain"
)

const bearerPrefix = "bearer "

// TokenValidator validates access tokens.
type TokenValidator interface {
	ValidateAccess(token string) (*security.Claims, error)
}

// SessionSource returns server-side session rows, typically through the session cache.
type SessionSource interface {
	Get(ctx context.Context, id string) (*sessiondomain.Session, error)
}

// SnapshotSource builds the per-request session view.
type SnapshotSource interface {
	Snapshot(ctx context.Context, accountID, sessionID string) (*sessiondomain.Snapshot, error)
}

// Authenticate requires a valid Bearer access token whose session is neither revoked nor
// expired, and stores the caller's snapshot in the request context. Failures are 401.
func Authenticate(tokens TokenValidator, sessions SessionSource, snapshots SnapshotSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := extractBearer(r)
			if token == "" {
				httpx.WriteError(w, r, rbac.ErrUnauthenticated)
				return
			}
			claims, err := tokens.ValidateAccess(token)
			if err != nil {
				httpx.WriteError(w, r, rbac.ErrUnauthenticated)
				return
			}
			sess, err := sessions.Get(ctx, claims.SessionID)
			if err != nil {
				httpx.WriteError(w, r, err)
				return
			}
			if !sess.IsActive(time.Now().UTC()) || sess.AccountID != claims.AccountID() {
				httpx.WriteError(w, r, rbac.ErrUnauthenticated)
				return
			}
			snap, err := snapshots.Snapshot(ctx, claims.AccountID(), claims.SessionID)
			if err != nil {
				httpx.WriteError(w, r, err)
				return
			}

			ctx = WithSnapshot(ctx, snap)
			ctx = log.WithContext(ctx, log.FromContext(ctx).With("account_id", snap.AccountID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearer returns the Bearer token from the Authorization header, or "" if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
