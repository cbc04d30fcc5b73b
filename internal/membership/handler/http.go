package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"carescope/backend/internal/membership/domain"
	"carescope/backend/internal/platform/httpx"
	"carescope/backend/internal/platform/rbac"
	"carescope/backend/internal/server/middleware"
)

// Registry is the membership registry as used by the handler.
type Registry interface {
	ListMemberships(ctx context.Context, accountID string) ([]*domain.Membership, error)
	Add(ctx context.Context, accountID, orgID string, role domain.Role, onDuplicate domain.DuplicatePolicy) (*domain.Membership, error)
	Update(ctx context.Context, accountID, orgID string, p domain.Patch) (*domain.Membership, error)
	Remove(ctx context.Context, accountID, orgID string) error
}

// Handler serves the caller's memberships and the admin membership routes.
type Handler struct {
	registry Registry
}

// NewHandler returns a Handler.
func NewHandler(registry Registry) *Handler {
	return &Handler{registry: registry}
}

// Register mounts the membership routes on an authenticated router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/memberships/me", h.mine).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{accountID}/memberships", h.admin(h.list)).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{accountID}/memberships", h.admin(h.add)).Methods(http.MethodPost)
	r.HandleFunc("/accounts/{accountID}/memberships/{orgID}", h.admin(h.update)).Methods(http.MethodPatch)
	r.HandleFunc("/accounts/{accountID}/memberships/{orgID}", h.admin(h.remove)).Methods(http.MethodDelete)
}

// admin restricts next to callers with the global admin role.
func (h *Handler) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := middleware.SnapshotFrom(r.Context())
		if snap == nil {
			httpx.WriteError(w, r, rbac.ErrUnauthenticated)
			return
		}
		if !rbac.IsAdmin(snap.Role) {
			httpx.WriteError(w, r, rbac.ErrNoAccess)
			return
		}
		next(w, r)
	}
}

type listResponse struct {
	Memberships []*domain.Membership `json:"memberships"`
}

func (h *Handler) mine(w http.ResponseWriter, r *http.Request) {
	snap := middleware.SnapshotFrom(r.Context())
	if snap == nil {
		httpx.WriteError(w, r, rbac.ErrUnauthenticated)
		return
	}
	h.writeList(w, r, snap.AccountID)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, mux.Vars(r)["accountID"])
}

func (h *Handler) writeList(w http.ResponseWriter, r *http.Request, accountID string) {
	ms, err := h.registry.ListMemberships(r.Context(), accountID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if ms == nil {
		ms = []*domain.Membership{}
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Memberships: ms})
}

type addRequest struct {
	OrgID string      `json:"org_id"`
	Role  domain.Role `json:"role"`
}

// add grants a membership; an existing pair is a conflict.
func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if req.Role == "" {
		req.Role = domain.RoleMember
	}
	ctx := r.Context()
	m, err := h.registry.Add(ctx, mux.Vars(r)["accountID"], req.OrgID, req.Role, domain.OnDuplicateReject)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	middleware.SetResolvedOrg(ctx, m.OrgID)
	httpx.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var p domain.Patch
	if err := httpx.Decode(r, &p); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	ctx := r.Context()
	middleware.SetResolvedOrg(ctx, vars["orgID"])
	m, err := h.registry.Update(ctx, vars["accountID"], vars["orgID"], p)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ctx := r.Context()
	middleware.SetResolvedOrg(ctx, vars["orgID"])
	if err := h.registry.Remove(ctx, vars["accountID"], vars["orgID"]); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
