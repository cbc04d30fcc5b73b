package middleware

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"carescope/backend/internal/metrics"
	"carescope/backend/internal/platform/rbac"
)

// Authorize runs the guard for op with candidates from the {orgID} path variable, the org_id
// query parameter and bodyOrgID, falling back to the session's active org. The resolved org is
// recorded for the audit middleware.
func Authorize(r *http.Request, g *rbac.Guard, op rbac.Operation, bodyOrgID string) (rbac.Scope, error) {
	ctx := r.Context()
	c := rbac.Candidates{
		Path:  mux.Vars(r)["orgID"],
		Query: r.URL.Query().Get("org_id"),
		Body:  bodyOrgID,
	}
	scope, err := g.Authorize(ctx, SnapshotFrom(ctx).Principal(), op, c)
	if err != nil {
		metrics.AccessDenials.WithLabelValues(denialReason(err)).Inc()
		return rbac.Scope{}, err
	}
	SetResolvedOrg(ctx, scope.OrgID)
	return scope, nil
}

func denialReason(err error) string {
	switch {
	case errors.Is(err, rbac.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, rbac.ErrMissingOrgContext):
		return "missing_org"
	case errors.Is(err, rbac.ErrNoAccess):
		return "no_access"
	default:
		return "error"
	}
}
