// Package handler exposes customers, lookup and the dashboard counts over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"carescope/backend/internal/customer/domain"
	"carescope/backend/internal/customer/service"
	"carescope/backend/internal/platform/httpx"
	"carescope/backend/internal/platform/rbac"
	"carescope/backend/internal/server/middleware"
)

// Customers is the customer service as used by the handler.
type Customers interface {
	Create(ctx context.Context, in service.CreateInput) (*domain.Customer, error)
	Get(ctx context.Context, orgID, id string) (*domain.Customer, error)
	List(ctx context.Context, orgID string, limit, offset int32) ([]*domain.Customer, error)
	UpdateProfile(ctx context.Context, orgID, id string, p domain.ProfileUpdate) (*domain.Customer, error)
	SetBlacklisted(ctx context.Context, accountID, id string, blacklisted bool) (*domain.Customer, error)
	Lookup(ctx context.Context, email string) (*service.LookupResult, error)
	Stats(ctx context.Context, orgID string) (domain.TierCounts, error)
	RecomputeRisk(ctx context.Context, orgID, id string) (*domain.Customer, error)
}

var (
	opListCustomers  = rbac.Operation{Name: "customers.list", Mode: rbac.AdminBypass}
	opCreateCustomer = rbac.Operation{Name: "customers.create", Mode: rbac.AdminBypass}
	opGetCustomer    = rbac.Operation{Name: "customers.get", Mode: rbac.AdminBypass}
	opUpdateCustomer = rbac.Operation{Name: "customers.update", Mode: rbac.Scoped}
	opLookup         = rbac.Operation{Name: "customers.lookup", Mode: rbac.AdminBypass}
	opRecompute      = rbac.Operation{Name: "customers.recompute_risk", Mode: rbac.AdminBypass}
	opStats          = rbac.Operation{Name: "dashboard.stats", Mode: rbac.AdminBypass}
)

// Handler serves /customers and /dashboard.
type Handler struct {
	customers Customers
	guard     *rbac.Guard
}

// NewHandler returns a Handler.
func NewHandler(customers Customers, guard *rbac.Guard) *Handler {
	return &Handler{customers: customers, guard: guard}
}

// Register mounts the customer routes on an authenticated router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/customers", h.list).Methods(http.MethodGet)
	r.HandleFunc("/customers", h.create).Methods(http.MethodPost)
	r.HandleFunc("/customers/lookup", h.lookup).Methods(http.MethodGet)
	r.HandleFunc("/customers/{customerID}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/customers/{customerID}", h.update).Methods(http.MethodPatch)
	r.HandleFunc("/customers/{customerID}/blacklist", h.blacklist).Methods(http.MethodPut)
	r.HandleFunc("/customers/{customerID}/risk/recompute", h.recompute).Methods(http.MethodPost)
	r.HandleFunc("/dashboard/stats", h.stats).Methods(http.MethodGet)
}

type listResponse struct {
	Customers []*domain.Customer `json:"customers"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	scope, err := middleware.Authorize(r, h.guard, opListCustomers, "")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	limit, offset, err := httpx.Page(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	cs, err := h.customers.List(r.Context(), scope.OrgID, limit, offset)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if cs == nil {
		cs = []*domain.Customer{}
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Customers: cs})
}

type createRequest struct {
	OrgID string `json:"org_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// create adds a customer. Admins may create in any org but must still name one.
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	scope, err := middleware.Authorize(r, h.guard, opCreateCustomer, req.OrgID)
	if err == nil && scope.OrgID == "" {
		err = rbac.ErrMissingOrgContext
	}
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	c, err := h.customers.Create(r.Context(), service.CreateInput{
		OrgID: scope.OrgID,
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	scope, err := middleware.Authorize(r, h.guard, opGetCustomer, "")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	c, err := h.customers.Get(r.Context(), scope.OrgID, mux.Vars(r)["customerID"])
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

// update applies a profile change. Bodies naming risk tier, balance or blacklist are rejected.
func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	body, err := httpx.ReadBody(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var target struct {
		OrgID string `json:"org_id"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &target); err != nil {
			httpx.WriteError(w, r, fmt.Errorf("%w: %v", httpx.ErrBadRequest, err))
			return
		}
	}
	scope, err := middleware.Authorize(r, h.guard, opUpdateCustomer, target.OrgID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	p, err := domain.ParseProfileUpdate(body)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	c, err := h.customers.UpdateProfile(r.Context(), scope.OrgID, mux.Vars(r)["customerID"], p)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

type blacklistRequest struct {
	Blacklisted *bool `json:"blacklisted"`
}

func (h *Handler) blacklist(w http.ResponseWriter, r *http.Request) {
	snap := middleware.SnapshotFrom(r.Context())
	if snap == nil {
		httpx.WriteError(w, r, rbac.ErrUnauthenticated)
		return
	}
	if !rbac.CanSetBlacklist(snap.Role) {
		httpx.WriteError(w, r, rbac.ErrNoAccess)
		return
	}
	var req blacklistRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if req.Blacklisted == nil {
		httpx.WriteError(w, r, fmt.Errorf("%w: blacklisted is required", httpx.ErrBadRequest))
		return
	}
	c, err := h.customers.SetBlacklisted(r.Context(), snap.AccountID, mux.Vars(r)["customerID"], *req.Blacklisted)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.Authorize(r, h.guard, opLookup, ""); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		httpx.WriteError(w, r, fmt.Errorf("%w: email is required", httpx.ErrBadRequest))
		return
	}
	res, err := h.customers.Lookup(r.Context(), email)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) recompute(w http.ResponseWriter, r *http.Request) {
	scope, err := middleware.Authorize(r, h.guard, opRecompute, "")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	c, err := h.customers.RecomputeRisk(r.Context(), scope.OrgID, mux.Vars(r)["customerID"])
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	middleware.SetResolvedOrg(r.Context(), c.OrgID)
	httpx.WriteJSON(w, http.StatusOK, c)
}

type statsResponse struct {
	OrgID  string            `json:"org_id,omitempty"`
	Counts domain.TierCounts `json:"counts"`
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	scope, err := middleware.Authorize(r, h.guard, opStats, "")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	counts, err := h.customers.Stats(r.Context(), scope.OrgID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, statsResponse{OrgID: scope.OrgID, Counts: counts})
}
