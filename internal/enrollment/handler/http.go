package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"carescope/backend/internal/enrollment/domain"
	"carescope/backend/internal/enrollment/service"
	"carescope/backend/internal/platform/httpx"
	"carescope/backend/internal/platform/rbac"
	"carescope/backend/internal/server/middleware"
)

// Gate is the enrollment gate as used by the handler.
type Gate interface {
	AttemptEnrollment(ctx context.Context, req service.Request) (*domain.Enrollment, error)
	List(ctx context.Context, orgID string, limit, offset int32) ([]*domain.Enrollment, error)
}

var (
	opListEnrollments = rbac.Operation{Name: "enrollments.list", Mode: rbac.AdminBypass}
	opEnroll          = rbac.Operation{Name: "enrollments.attempt", Mode: rbac.Scoped}
)

// Handler serves /enrollments.
type Handler struct {
	gate  Gate
	guard *rbac.Guard
}

// NewHandler returns a Handler.
func NewHandler(gate Gate, guard *rbac.Guard) *Handler {
	return &Handler{gate: gate, guard: guard}
}

// Register mounts the enrollment routes on an authenticated router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/enrollments", h.list).Methods(http.MethodGet)
	r.HandleFunc("/enrollments", h.attempt).Methods(http.MethodPost)
}

type listResponse struct {
	Enrollments []*domain.Enrollment `json:"enrollments"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	scope, err := middleware.Authorize(r, h.guard, opListEnrollments, "")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	limit, offset, err := httpx.Page(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	es, err := h.gate.List(r.Context(), scope.OrgID, limit, offset)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if es == nil {
		es = []*domain.Enrollment{}
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Enrollments: es})
}

type attemptRequest struct {
	OrgID           string `json:"org_id"`
	CustomerID      string `json:"customer_id"`
	StartDate       string `json:"start_date"`
	MonthlyFeeCents int64  `json:"monthly_fee_cents"`
}

// attempt runs the enrollment gate. A refused customer yields 422 with the rejection details.
func (h *Handler) attempt(w http.ResponseWriter, r *http.Request) {
	var req attemptRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	scope, err := middleware.Authorize(r, h.guard, opEnroll, req.OrgID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	start, err := httpx.ParseDate(req.StartDate)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if start == nil {
		httpx.WriteError(w, r, fmt.Errorf("%w: start_date is required", httpx.ErrBadRequest))
		return
	}
	ctx := r.Context()
	e, err := h.gate.AttemptEnrollment(ctx, service.Request{
		CustomerID:      req.CustomerID,
		OrgID:           scope.OrgID,
		AccountID:       middleware.SnapshotFrom(ctx).AccountID,
		StartDate:       *start,
		MonthlyFeeCents: req.MonthlyFeeCents,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, e)
}
