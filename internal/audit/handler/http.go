// Package handler serves the audit log over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"carescope/backend/internal/audit/domain"
	membershipdomain "carescope/backend/internal/membership/domain"
	"carescope/backend/internal/platform/httpx"
	"carescope/backend/internal/platform/rbac"
	"carescope/backend/internal/server/middleware"
)

// Lister reads audit entries. An empty orgID lists every org.
type Lister interface {
	ListByOrg(ctx context.Context, orgID string, limit, offset int) ([]*domain.AuditLog, error)
}

// Handler serves /audit-logs to org managers and admins.
type Handler struct {
	logs        Lister
	memberships rbac.OrgMembershipGetter
}

// NewHandler returns a Handler.
func NewHandler(logs Lister, memberships rbac.OrgMembershipGetter) *Handler {
	return &Handler{logs: logs, memberships: memberships}
}

// Register mounts the audit routes on an authenticated router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/audit-logs", h.list).Methods(http.MethodGet)
}

type listResponse struct {
	Logs []*domain.AuditLog `json:"logs"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.SnapshotFrom(ctx).Principal()
	orgID := rbac.Candidates{Query: r.URL.Query().Get("org_id")}.Resolve(p.ActiveOrgID)
	if err := rbac.RequireOrgRole(ctx, h.memberships, p, orgID, membershipdomain.RoleManager); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	limit, offset, err := httpx.Page(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	logs, err := h.logs.ListByOrg(ctx, orgID, int(limit), int(offset))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if logs == nil {
		logs = []*domain.AuditLog{}
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Logs: logs})
}
