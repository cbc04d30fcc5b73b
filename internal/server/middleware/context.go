package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	sessiondomain "carescope/backend/internal/session/domain"
)

type contextKey struct{ name string }

var (
	snapshotKey = contextKey{"snapshot"}
	clientIPKey = contextKey{"client_ip"}
	stateKey    = contextKey{"request_state"}
)

// WithSnapshot returns a context carrying the caller's session snapshot.
func WithSnapshot(ctx context.Context, snap *sessiondomain.Snapshot) context.Context {
	return context.WithValue(ctx, snapshotKey, snap)
}

// SnapshotFrom returns the session snapshot set by Authenticate, or nil.
func SnapshotFrom(ctx context.Context) *sessiondomain.Snapshot {
	snap, _ := ctx.Value(snapshotKey).(*sessiondomain.Snapshot)
	return snap
}

func contextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFromContext returns the client IP stored by the request middleware, or "".
// It matches audit.IPExtractor.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// requestState is written by handlers and read by outer middleware after the handler returns.
type requestState struct {
	orgID string
}

func withState(ctx context.Context) (context.Context, *requestState) {
	if st, ok := ctx.Value(stateKey).(*requestState); ok {
		return ctx, st
	}
	st := &requestState{}
	return context.WithValue(ctx, stateKey, st), st
}

// SetResolvedOrg records the org the request was authorized against.
func SetResolvedOrg(ctx context.Context, orgID string) {
	if st, ok := ctx.Value(stateKey).(*requestState); ok {
		st.orgID = orgID
	}
}

// ResolvedOrg returns the org recorded by SetResolvedOrg, or "".
func ResolvedOrg(ctx context.Context) string {
	if st, ok := ctx.Value(stateKey).(*requestState); ok {
		return st.orgID
	}
	return ""
}

// ClientIP returns the client IP from X-Forwarded-For, X-Real-IP or the remote address.
func ClientIP(r *http.Request) string {
	if s := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); s != "" {
		if i := strings.Index(s, ","); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		return s
	}
	if s := strings.TrimSpace(r.Header.Get("X-Real-IP")); s != "" {
		return s
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
