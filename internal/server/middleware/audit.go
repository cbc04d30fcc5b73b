package middleware

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"carescope/backend/internal/audit"
)

// Audit records one audit entry after each authenticated, state-changing request. It must run
// inside Authenticate. The org is the one the guard resolved, else the caller's active org, else
// the system sentinel. Routes that audit themselves are skipped. Writes are best-effort.
func Audit(logger audit.AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, _ := withState(r.Context())
			r = r.WithContext(ctx)
			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(sw, r)

			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return
			}
			snap := SnapshotFrom(ctx)
			if snap == nil {
				return
			}
			template := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if t, err := route.GetPathTemplate(); err == nil {
					template = t
				}
			}
			if audit.AuditedByService(r.Method, template) {
				return
			}
			orgID := ResolvedOrg(ctx)
			if orgID == "" && snap.ActiveOrgID != nil {
				orgID = *snap.ActiveOrgID
			}
			ar := audit.ParseRoute(r.Method, template)
			logger.LogEvent(ctx, orgID, snap.AccountID, ar.Action, ar.Resource, "status="+strconv.Itoa(sw.code))
		})
	}
}
