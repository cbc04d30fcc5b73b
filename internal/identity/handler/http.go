// Package handler exposes the identity service over HTTP: login, refresh, logout and org registration.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"carescope/backend/internal/identity/service"
	"carescope/backend/internal/metrics"
	"carescope/backend/internal/platform/httpx"
	"carescope/backend/internal/server/middleware"
	sessiondomain "carescope/backend/internal/session/domain"
)

// Authenticator is the identity service as used by the handler.
type Authenticator interface {
	Login(ctx context.Context, email, password, ip string) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.AuthResult, error)
	Logout(ctx context.Context, snap *sessiondomain.Snapshot) error
	RegisterOrg(ctx context.Context, orgName, email, password, name string) (*service.Registration, error)
}

// Handler serves /auth routes.
type Handler struct {
	auth Authenticator
}

// NewHandler returns a Handler backed by auth.
func NewHandler(auth Authenticator) *Handler {
	return &Handler{auth: auth}
}

// RegisterPublic mounts the routes that need no session.
func (h *Handler) RegisterPublic(r *mux.Router) {
	r.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", h.refresh).Methods(http.MethodPost)
	r.HandleFunc("/auth/register-org", h.registerOrg).Methods(http.MethodPost)
}

// Register mounts the authenticated routes.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/auth/logout", h.logout).Methods(http.MethodPost)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password, middleware.ClientIP(r))
	metrics.LoginAttempts.WithLabelValues(loginOutcome(err)).Inc()
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func loginOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, service.ErrInvalidCredentials):
		return "invalid_credentials"
	default:
		return "error"
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	res, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

type registerOrgRequest struct {
	OrgName  string `json:"org_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (h *Handler) registerOrg(w http.ResponseWriter, r *http.Request) {
	var req registerOrgRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	reg, err := h.auth.RegisterOrg(r.Context(), req.OrgName, req.Email, req.Password, req.Name)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, reg)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), middleware.SnapshotFrom(r.Context())); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
