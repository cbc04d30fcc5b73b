package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"carescope/backend/internal/platform/httpx"
	"carescope/backend/internal/platform/rbac"
	"carescope/backend/internal/server/middleware"
	"carescope/backend/internal/session/domain"
)

// Switcher changes the caller's active organization.
type Switcher interface {
	SwitchActiveOrg(ctx context.Context, snap *domain.Snapshot, orgID string) (*domain.Snapshot, error)
}

// Handler serves the caller's session view.
type Handler struct {
	switcher Switcher
}

// NewHandler returns a Handler.
func NewHandler(switcher Switcher) *Handler {
	return &Handler{switcher: switcher}
}

// Register mounts the session routes on an authenticated router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/auth/session", h.session).Methods(http.MethodGet)
	r.HandleFunc("/auth/active-org", h.switchActiveOrg).Methods(http.MethodPut)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	snap := middleware.SnapshotFrom(r.Context())
	if snap == nil {
		httpx.WriteError(w, r, rbac.ErrUnauthenticated)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, snap)
}

type switchRequest struct {
	OrgID string `json:"org_id"`
}

func (h *Handler) switchActiveOrg(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	ctx := r.Context()
	snap, err := h.switcher.SwitchActiveOrg(ctx, middleware.SnapshotFrom(ctx), req.OrgID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	middleware.SetResolvedOrg(ctx, req.OrgID)
	httpx.WriteJSON(w, http.StatusOK, snap)
}
