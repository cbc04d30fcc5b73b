package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"carescope/backend/internal/alert/domain"
	"carescope/backend/internal/platform/httpx"
	"carescope/backend/internal/platform/rbac"
	"carescope/backend/internal/server/middleware"
)

// Recorder is the alert recorder as used by the handler.
type Recorder interface {
	Create(ctx context.Context, customerID, orgID string, typ domain.Type, message string, severity domain.Severity) (*domain.Alert, error)
	Resolve(ctx context.Context, alertID, orgID, accountID string) (*domain.Alert, error)
	Get(ctx context.Context, orgID, alertID string) (*domain.Alert, error)
	List(ctx context.Context, f domain.Filter, limit, offset int32) ([]*domain.Alert, error)
}

var (
	opListAlerts   = rbac.Operation{Name: "alerts.list", Mode: rbac.AdminBypass}
	opCreateAlert  = rbac.Operation{Name: "alerts.create", Mode: rbac.AdminBypass}
	opResolveAlert = rbac.Operation{Name: "alerts.resolve", Mode: rbac.AdminBypass}
)

// Handler serves /alerts.
type Handler struct {
	alerts Recorder
	guard  *rbac.Guard
}

// NewHandler returns a Handler.
func NewHandler(alerts Recorder, guard *rbac.Guard) *Handler {
	return &Handler{alerts: alerts, guard: guard}
}

// Register mounts the alert routes on an authenticated router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/alerts", h.list).Methods(http.MethodGet)
	r.HandleFunc("/alerts", h.create).Methods(http.MethodPost)
	r.HandleFunc("/alerts/{alertID}/resolve", h.resolve).Methods(http.MethodPut)
}

type listResponse struct {
	Alerts []*domain.Alert `json:"alerts"`
}

// list returns alerts newest first; ?resolved=true|false filters by state.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	scope, err := middleware.Authorize(r, h.guard, opListAlerts, "")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	limit, offset, err := httpx.Page(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var f domain.Filter
	if scope.OrgID != "" {
		f.OrgID = &scope.OrgID
	}
	if s := r.URL.Query().Get("resolved"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			httpx.WriteError(w, r, fmt.Errorf("%w: resolved must be a boolean", httpx.ErrBadRequest))
			return
		}
		f.Resolved = &b
	}
	as, err := h.alerts.List(r.Context(), f, limit, offset)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if as == nil {
		as = []*domain.Alert{}
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Alerts: as})
}

type createRequest struct {
	OrgID      string          `json:"org_id"`
	CustomerID string          `json:"customer_id"`
	Type       domain.Type     `json:"type"`
	Message    string          `json:"message"`
	Severity   domain.Severity `json:"severity"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	scope, err := middleware.Authorize(r, h.guard, opCreateAlert, req.OrgID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	a, err := h.alerts.Create(r.Context(), req.CustomerID, scope.OrgID, req.Type, req.Message, req.Severity)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, a)
}

// resolve marks an alert resolved. With no org in the request the alert's own org is checked.
// A non-admin gets the same 403 for a missing alert as for one outside their orgs.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alertID := mux.Vars(r)["alertID"]
	candidate := ""
	if r.URL.Query().Get("org_id") == "" {
		a, err := h.alerts.Get(ctx, "", alertID)
		if errors.Is(err, domain.ErrAlertNotFound) && !rbac.IsAdmin(middleware.SnapshotFrom(ctx).Role) {
			err = rbac.ErrNoAccess
		}
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		candidate = a.OrgID
	}
	scope, err := middleware.Authorize(r, h.guard, opResolveAlert, candidate)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	a, err := h.alerts.Resolve(ctx, alertID, scope.OrgID, middleware.SnapshotFrom(ctx).AccountID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a)
}
