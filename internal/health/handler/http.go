package handler

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"carescope/backend/internal/platform/httpx"
)

// Pinger checks database connectivity (e.g. *sqlx.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks the access policy evaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Status is the readiness body.
type Status struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves liveness and readiness checks.
type Handler struct {
	db     Pinger
	policy PolicyChecker
}

// NewHandler returns a Handler. Either dependency may be nil to skip its check.
func NewHandler(db Pinger, policy PolicyChecker) *Handler {
	return &Handler{db: db, policy: policy}
}

// Register mounts /livez and /readyz.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/livez", h.live).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ready).Methods(http.MethodGet, http.MethodHead)
}

func (h *Handler) live(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, Status{Status: "ok"})
}

// ready reports 503 with per-check detail when a dependency fails.
func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := map[string]string{}
	healthy := true
	if h.db != nil {
		checks["database"] = "ok"
		if err := h.db.PingContext(ctx); err != nil {
			log.FromContext(ctx).Warn("readiness: database ping failed", "err", err)
			checks["database"], healthy = "unavailable", false
		}
	}
	if h.policy != nil {
		checks["policy"] = "ok"
		if err := h.policy.HealthCheck(ctx); err != nil {
			log.FromContext(ctx).Warn("readiness: policy check failed", "err", err)
			checks["policy"], healthy = "unavailable", false
		}
	}
	if !healthy {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, Status{Status: "unavailable", Checks: checks})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, Status{Status: "ok", Checks: checks})
}
