// Server runs the CareScope HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	accountrepo "carescope/backend/internal/account/repository"
	alerthandler "carescope/backend/internal/alert/handler"
	alertrepo "carescope/backend/internal/alert/repository"
	alertservice "carescope/backend/internal/alert/service"
	"carescope/backend/internal/audit"
	audithandler "carescope/backend/internal/audit/handler"
	auditrepo "carescope/backend/internal/audit/repository"
	"carescope/backend/internal/config"
	customerhandler "carescope/backend/internal/customer/handler"
	customerrepo "carescope/backend/internal/customer/repository"
	customerservice "carescope/backend/internal/customer/service"
	"carescope/backend/internal/db"
	enrollmenthandler "carescope/backend/internal/enrollment/handler"
	enrollmentrepo "carescope/backend/internal/enrollment/repository"
	enrollmentservice "carescope/backend/internal/enrollment/service"
	healthhandler "carescope/backend/internal/health/handler"
	identityhandler "carescope/backend/internal/identity/handler"
	identityservice "carescope/backend/internal/identity/service"
	"carescope/backend/internal/logging"
	membershiphandler "carescope/backend/internal/membership/handler"
	membershiprepo "carescope/backend/internal/membership/repository"
	membershipservice "carescope/backend/internal/membership/service"
	"carescope/backend/internal/metrics"
	organizationhandler "carescope/backend/internal/organization/handler"
	organizationrepo "carescope/backend/internal/organization/repository"
	organizationservice "carescope/backend/internal/organization/service"
	paymenthandler "carescope/backend/internal/payment/handler"
	paymentrepo "carescope/backend/internal/payment/repository"
	paymentservice "carescope/backend/internal/payment/service"
	"carescope/backend/internal/platform/rbac"
	"carescope/backend/internal/policy/engine"
	"carescope/backend/internal/risk"
	"carescope/backend/internal/security"
	"carescope/backend/internal/server"
	"carescope/backend/internal/server/middleware"
	"carescope/backend/internal/session/cache"
	sessionhandler "carescope/backend/internal/session/handler"
	sessionrepo "carescope/backend/internal/session/repository"
	sessionservice "carescope/backend/internal/session/service"
	"carescope/backend/internal/telemetry"
	telemetryotel "carescope/backend/internal/telemetry/otel"
	"carescope/backend/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config", "err", err)
	}
	logger := logging.New(cfg)
	log.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server", "err", err)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx, logger)

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: "carescope-api",
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return err
	}
	providers.SetGlobal()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()
	tx := db.NewTxManager(conn)

	hasher := security.NewHasher(cfg.BcryptCost)
	tokens, err := security.LoadTokenProvider(cfg.JWTPrivateKey, cfg.JWTPublicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		return err
	}

	policySource, err := engine.LoadPolicy(cfg.AccessPolicyPath)
	if err != nil {
		return err
	}
	policy, err := engine.NewOPAEvaluator(ctx, policySource)
	if err != nil {
		return err
	}

	kafka := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.EventsKafkaTopic)
	events := telemetry.Fanout{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if kafka != nil {
		events = append(events, kafka)
		logger.Info("domain events enabled", "sink", "kafka", "topic", cfg.EventsKafkaTopic)
	}

	accounts := accountrepo.NewPostgresRepository(conn)
	sessions := sessionrepo.NewPostgresRepository(conn)
	orgs := organizationrepo.NewPostgresRepository(conn)
	memberships := membershiprepo.NewPostgresRepository(conn)
	customers := customerrepo.NewPostgresRepository(conn)
	payments := paymentrepo.NewPostgresRepository(conn)
	alerts := alertrepo.NewPostgresRepository(conn)
	enrollments := enrollmentrepo.NewPostgresRepository(conn)
	auditLogs := auditrepo.NewPostgresRepository(conn)

	auditLogger := audit.NewLogger(auditLogs, middleware.ClientIPFromContext)
	sessionCache := cache.New(sessions, cfg.SessionCacheSize, cfg.SessionTTL())

	controller := sessionservice.NewController(accounts, memberships, orgs, tx)
	registry := membershipservice.NewRegistry(memberships, accounts, tx)
	guard := rbac.NewGuard(registry, policy)

	auth := identityservice.NewAuthService(identityservice.Deps{
		Accounts:    accounts,
		Sessions:    sessions,
		Snapshots:   controller,
		Orgs:        orgs,
		Memberships: registry,
		Cache:       sessionCache,
		Hasher:      hasher,
		Tokens:      tokens,
		Tx:          tx,
		Audit:       auditLogger,
		RefreshTTL:  cfg.RefreshTTL(),
	})
	riskEngine := risk.NewEngine(customers, payments, alerts, tx, events)
	customerSvc := customerservice.NewService(customers, riskEngine, auditLogger)
	paymentSvc := paymentservice.NewService(payments, customers, riskEngine, alerts, tx, events)
	alertSvc := alertservice.NewRecorder(alerts, customers, events)
	gate := enrollmentservice.NewGate(enrollments, customers, alerts, tx, auditLogger, events)
	orgSvc := organizationservice.NewService(orgs, registry, tx)

	router := server.NewRouter(server.Deps{
		Logger:      logger,
		Tokens:      tokens,
		Sessions:    sessionCache,
		Snapshots:   controller,
		Audit:       auditLogger,
		Health:      healthhandler.NewHandler(conn, policy),
		Auth:        identityhandler.NewHandler(auth),
		Session:     sessionhandler.NewHandler(controller),
		Orgs:        organizationhandler.NewHandler(orgSvc),
		Memberships: membershiphandler.NewHandler(registry),
		Customers:   customerhandler.NewHandler(customerSvc, guard),
		Payments:    paymenthandler.NewHandler(paymentSvc, guard),
		Enrollments: enrollmenthandler.NewHandler(gate, guard),
		Alerts:      alerthandler.NewHandler(alertSvc, guard),
		AuditLogs:   audithandler.NewHandler(auditLogs, registry),
	})

	httpServer := server.NewHTTPServer(cfg.HTTPAddr, router, logger)
	var stats *metrics.StatsServer
	if cfg.MetricsAddr != "" {
		stats = metrics.NewStatsServer(cfg.MetricsAddr)
	}

	errc := make(chan error, 2)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		errc <- httpServer.ListenAndServe()
	}()
	if stats != nil {
		go func() {
			logger.Info("stats server listening", "addr", cfg.MetricsAddr)
			errc <- stats.ListenAndServe()
		}()
	}

	var serveErr error
	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}
	if stats != nil {
		if err := stats.Shutdown(shutdownCtx); err != nil {
			logger.Error("stats server shutdown", "err", err)
		}
	}

	// Let in-flight async emits finish before the sinks go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := kafka.Close(); err != nil {
		logger.Warn("kafka producer close", "err", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown", "err", err)
	}
	return serveErr
}
