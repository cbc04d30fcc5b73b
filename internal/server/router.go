// Package server assembles the HTTP API: routing, middleware order and the listener.
package server

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	alerthandler "carescope/backend/internal/alert/handler"
	"carescope/backend/internal/audit"
	audithandler "carescope/backend/internal/audit/handler"
	customerhandler "carescope/backend/internal/customer/handler"
	enrollmenthandler "carescope/backend/internal/enrollment/handler"
	healthhandler "carescope/backend/internal/health/handler"
	identityhandler "carescope/backend/internal/identity/handler"
	membershiphandler "carescope/backend/internal/membership/handler"
	organizationhandler "carescope/backend/internal/organization/handler"
	paymenthandler "carescope/backend/internal/payment/handler"
	"carescope/backend/internal/platform/httpx"
	"carescope/backend/internal/server/middleware"
	sessionhandler "carescope/backend/internal/session/handler"
)

// Deps holds the middleware collaborators and route handlers. A nil handler leaves its routes unmounted.
type Deps struct {
	Logger *log.Logger

	// Tokens, Sessions and Snapshots authenticate every /api route except login, refresh and register-org.
	Tokens    middleware.TokenValidator
	Sessions  middleware.SessionSource
	Snapshots middleware.SnapshotSource
	// Audit records authenticated writes. If nil, nothing is audited by the middleware.
	Audit audit.AuditLogger

	Health      *healthhandler.Handler
	Auth        *identityhandler.Handler
	Session     *sessionhandler.Handler
	Orgs        *organizationhandler.Handler
	Memberships *membershiphandler.Handler
	Customers   *customerhandler.Handler
	Payments    *paymenthandler.Handler
	Enrollments *enrollmenthandler.Handler
	Alerts      *alerthandler.Handler
	AuditLogs   *audithandler.Handler
}

// NewRouter returns the API handler.
//
// Route → handler mapping:
//   - /livez, /readyz                      → internal/health/handler
//   - /api/auth/{login,refresh,register-org,logout} → internal/identity/handler
//   - /api/auth/{session,active-org}       → internal/session/handler
//   - /api/orgs                            → internal/organization/handler
//   - /api/memberships, /api/accounts      → internal/membership/handler
//   - /api/customers, /api/dashboard       → internal/customer/handler
//   - /api/payments                        → internal/payment/handler
//   - /api/enrollments                     → internal/enrollment/handler
//   - /api/alerts                          → internal/alert/handler
//   - /api/audit-logs                      → internal/audit/handler
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("http")
	auditLogger := deps.Audit
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}

	router := mux.NewRouter()
	router.Use(middleware.Logging(logger))
	router.NotFoundHandler = http.HandlerFunc(notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	if deps.Health != nil {
		deps.Health.Register(router)
	}

	api := router.PathPrefix("/api").Subrouter()
	if deps.Auth != nil {
		deps.Auth.RegisterPublic(api)
	}

	protected := api.NewRoute().Subrouter()
	protected.Use(
		middleware.Authenticate(deps.Tokens, deps.Sessions, deps.Snapshots),
		middleware.Audit(auditLogger),
	)
	if deps.Auth != nil {
		deps.Auth.Register(protected)
	}
	if deps.Session != nil {
		deps.Session.Register(protected)
	}
	if deps.Orgs != nil {
		deps.Orgs.Register(protected)
	}
	if deps.Memberships != nil {
		deps.Memberships.Register(protected)
	}
	if deps.Customers != nil {
		deps.Customers.Register(protected)
	}
	if deps.Payments != nil {
		deps.Payments.Register(protected)
	}
	if deps.Enrollments != nil {
		deps.Enrollments.Register(protected)
	}
	if deps.Alerts != nil {
		deps.Alerts.Register(protected)
	}
	if deps.AuditLogs != nil {
		deps.AuditLogs.Register(protected)
	}

	var h http.Handler = router
	h = handlers.CompressHandler(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(logger.StandardLog(log.StandardLogOptions{ForceLevel: log.ErrorLevel})),
		handlers.PrintRecoveryStack(true),
	)(h)
	return h
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusNotFound, httpx.ErrorBody{Error: "not found"})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusMethodNotAllowed, httpx.ErrorBody{Error: "method not allowed"})
}
