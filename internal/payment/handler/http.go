package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"carescope/backend/internal/payment/domain"
	"carescope/backend/internal/payment/service"
	"carescope/backend/internal/platform/httpx"
	"carescope/backend/internal/platform/rbac"
	"carescope/backend/internal/server/middleware"
)

// Payments is the payment service as used by the handler.
type Payments interface {
	Issue(ctx context.Context, in service.IssueInput) (*domain.Record, error)
	TransitionStatus(ctx context.Context, orgID, paymentID string, next domain.Status, paidDate *time.Time) (*domain.Record, error)
	Get(ctx context.Context, orgID, paymentID string) (*domain.Record, error)
	List(ctx context.Context, f domain.Filter, limit, offset int32) ([]*domain.Record, error)
}

var (
	opListPayments  = rbac.Operation{Name: "payments.list", Mode: rbac.AdminBypass}
	opIssuePayment  = rbac.Operation{Name: "payments.issue", Mode: rbac.AdminBypass}
	opPaymentStatus = rbac.Operation{Name: "payments.update_status", Mode: rbac.AdminBypass}
)

// Handler serves /payments.
type Handler struct {
	payments Payments
	guard    *rbac.Guard
}

// NewHandler returns a Handler.
func NewHandler(payments Payments, guard *rbac.Guard) *Handler {
	return &Handler{payments: payments, guard: guard}
}

// Register mounts the payment routes on an authenticated router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/payments", h.list).Methods(http.MethodGet)
	r.HandleFunc("/payments", h.issue).Methods(http.MethodPost)
	r.HandleFunc("/payments/{paymentID}/status", h.status).Methods(http.MethodPut)
}

type listResponse struct {
	Payments []*domain.Record `json:"payments"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	scope, err := middleware.Authorize(r, h.guard, opListPayments, "")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	limit, offset, err := httpx.Page(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	q := r.URL.Query()
	f := domain.Filter{OrgID: scope.OrgID, CustomerID: q.Get("customer_id")}
	if s := q.Get("status"); s != "" {
		if f.Status, err = domain.ParseStatus(s); err != nil {
			httpx.WriteError(w, r, err)
			return
		}
	}
	recs, err := h.payments.List(r.Context(), f, limit, offset)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if recs == nil {
		recs = []*domain.Record{}
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Payments: recs})
}

type issueRequest struct {
	OrgID       string `json:"org_id"`
	CustomerID  string `json:"customer_id"`
	AmountCents int64  `json:"amount_cents"`
	DueDate     string `json:"due_date"`
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	scope, err := middleware.Authorize(r, h.guard, opIssuePayment, req.OrgID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	due, err := httpx.ParseDate(req.DueDate)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if due == nil {
		httpx.WriteError(w, r, fmt.Errorf("%w: due_date is required", httpx.ErrBadRequest))
		return
	}
	rec, err := h.payments.Issue(r.Context(), service.IssueInput{
		OrgID:       scope.OrgID,
		CustomerID:  req.CustomerID,
		AmountCents: req.AmountCents,
		DueDate:     *due,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, rec)
}

type statusRequest struct {
	OrgID    string `json:"org_id"`
	Status   string `json:"status"`
	PaidDate string `json:"paid_date"`
}

// status transitions a payment. When the request names no org, the payment's own org is
// the candidate, so the guard still checks the caller's membership there. A non-admin gets
// the same 403 for a missing payment as for one outside their orgs.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	ctx := r.Context()
	paymentID := mux.Vars(r)["paymentID"]
	bodyOrg := req.OrgID
	if bodyOrg == "" && r.URL.Query().Get("org_id") == "" {
		rec, err := h.payments.Get(ctx, "", paymentID)
		if errors.Is(err, domain.ErrPaymentNotFound) && !rbac.IsAdmin(middleware.SnapshotFrom(ctx).Role) {
			err = rbac.ErrNoAccess
		}
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		bodyOrg = rec.OrgID
	}
	scope, err := middleware.Authorize(r, h.guard, opPaymentStatus, bodyOrg)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	next, err := domain.ParseStatus(req.Status)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	paid, err := httpx.ParseDate(req.PaidDate)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	rec, err := h.payments.TransitionStatus(ctx, scope.OrgID, paymentID, next, paid)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rec)
}
