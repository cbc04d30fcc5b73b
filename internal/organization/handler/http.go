package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"carescope/backend/internal/organization/domain"
	"carescope/backend/internal/platform/httpx"
	"carescope/backend/internal/platform/rbac"
	"carescope/backend/internal/server/middleware"
)

// Organizations is the organization service as used by the handler.
type Organizations interface {
	Create(ctx context.Context, p rbac.Principal, name string) (*domain.Org, error)
	List(ctx context.Context, p rbac.Principal) ([]*domain.Org, error)
}

// Handler serves /orgs.
type Handler struct {
	orgs Organizations
}

// NewHandler returns a Handler.
func NewHandler(orgs Organizations) *Handler {
	return &Handler{orgs: orgs}
}

// Register mounts the organization routes on an authenticated router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/orgs", h.list).Methods(http.MethodGet)
	r.HandleFunc("/orgs", h.create).Methods(http.MethodPost)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.orgs.List(r.Context(), middleware.SnapshotFrom(r.Context()).Principal())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"orgs": orgs})
}

type createRequest struct {
	Name string `json:"name"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	ctx := r.Context()
	org, err := h.orgs.Create(ctx, middleware.SnapshotFrom(ctx).Principal(), req.Name)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	middleware.SetResolvedOrg(ctx, org.ID)
	httpx.WriteJSON(w, http.StatusCreated, org)
}
