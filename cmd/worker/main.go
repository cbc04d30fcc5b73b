// Worker runs scheduled jobs: the overdue payment sweep.
// It shares config with the API server; HTTP_ADDR is ignored.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	alertrepo "carescope/backend/internal/alert/repository"
	"carescope/backend/internal/config"
	customerrepo "carescope/backend/internal/customer/repository"
	"carescope/backend/internal/db"
	"carescope/backend/internal/jobs"
	"carescope/backend/internal/logging"
	paymentrepo "carescope/backend/internal/payment/repository"
	paymentservice "carescope/backend/internal/payment/service"
	"carescope/backend/internal/risk"
	"carescope/backend/internal/telemetry"
	telemetryotel "carescope/backend/internal/telemetry/otel"
	"carescope/backend/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config", "err", err)
	}
	logger := logging.New(cfg).WithPrefix("worker")
	log.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("worker", "err", err)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx, logger)

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: "carescope-worker",
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

	kafka := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.EventsKafkaTopic)
	events := telemetry.Fanout{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if kafka != nil {
		events = append(events, kafka)
	}

	customers := customerrepo.NewPostgresRepository(conn)
	payments := paymentrepo.NewPostgresRepository(conn)
	alerts := alertrepo.NewPostgresRepository(conn)
	riskEngine := risk.NewEngine(customers, payments, alerts, tx, events)
	paymentSvc := paymentservice.NewService(payments, customers, riskEngine, alerts, tx, events)

	scheduler := jobs.NewScheduler(ctx)
	sweep := jobs.NewOverdueSweep(paymentSvc, cfg.OverdueSweepSchedule)
	if _, err := scheduler.Register(ctx, "overdue-sweep", sweep); err != nil {
		return err
	}
	scheduler.Start()
	logger.Info("scheduler started", "job", "overdue-sweep", "spec", sweep.Spec(ctx))

	<-ctx.Done()
	logger.Info("shutting down")
	scheduler.Shutdown()

	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := kafka.Close(); err != nil {
		logger.Warn("kafka producer close", "err", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown", "err", err)
	}
	return nil
}
