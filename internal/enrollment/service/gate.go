// Package service decides enrollments against the customer's current risk state.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	alertdomain "carescope/backend/internal/alert/domain"
	alertservice "carescope/backend/internal/alert/service"
	"carescope/backend/internal/audit"
	customerdomain "carescope/backend/internal/customer/domain"
	"carescope/backend/internal/db"
	"carescope/backend/internal/enrollment/domain"
	"carescope/backend/internal/metrics"
	"carescope/backend/internal/telemetry"
)

// Store persists enrollments.
type Store interface {
	Create(ctx context.Context, e *domain.Enrollment) error
	List(ctx context.Context, orgID string, limit, offset int32) ([]*domain.Enrollment, error)
}

// CustomerReader re-reads a customer under a share lock.
type CustomerReader interface {
	GetForShare(ctx context.Context, id string) (*customerdomain.Customer, error)
}

// AlertWriter appends alerts.
type AlertWriter interface {
	Create(ctx context.Context, a *alertdomain.Alert) error
}

// Request is an enrollment attempt.
type Request struct {
	CustomerID      string
	OrgID           string
	AccountID       string
	StartDate       time.Time
	MonthlyFeeCents int64
}

// Gate admits or rejects enrollments.
type Gate struct {
	enrollments Store
	customers   CustomerReader
	alerts      AlertWriter
	tx          db.Transactor
	audit       audit.AuditLogger
	events      telemetry.EventEmitter
	tracer      trace.Tracer
}

// NewGate returns a Gate. tx may be nil for tests; auditLogger and events may be nil.
func NewGate(enrollments Store, customers CustomerReader, alerts AlertWriter, tx db.Transactor, auditLogger audit.AuditLogger, events telemetry.EventEmitter) *Gate {
	if tx == nil {
		tx = db.NopTransactor{}
	}
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &Gate{
		enrollments: enrollments,
		customers:   customers,
		alerts:      alerts,
		tx:          tx,
		audit:       auditLogger,
		events:      events,
		tracer:      otel.Tracer("carescope/enrollment"),
	}
}

// AttemptEnrollment re-reads the customer inside a transaction. A high-risk or blacklisted
// customer is refused: an enrollment_attempt alert is committed and a *domain.Rejection is
// returned with no enrollment written. Otherwise the enrollment is inserted.
func (g *Gate) AttemptEnrollment(ctx context.Context, req Request) (*domain.Enrollment, error) {
	ctx, span := g.tracer.Start(ctx, "enrollment.Attempt", trace.WithAttributes(
		attribute.String("customer.id", req.CustomerID),
		attribute.String("org.id", req.OrgID),
	))
	defer span.End()

	e := &domain.Enrollment{
		ID:              uuid.New().String(),
		CustomerID:      req.CustomerID,
		OrgID:           req.OrgID,
		StartDate:       req.StartDate,
		MonthlyFeeCents: req.MonthlyFeeCents,
		CreatedAt:       time.Now().UTC(),
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	var (
		rejection *domain.Rejection
		alert     *alertdomain.Alert
	)
	err := g.tx.RunInTx(ctx, func(ctx context.Context) error {
		c, err := g.customers.GetForShare(ctx, req.CustomerID)
		if err != nil {
			return err
		}
		if c == nil || c.OrgID != req.OrgID {
			return customerdomain.ErrCustomerNotFound
		}
		if !domain.Refuse(c) {
			if err := g.enrollments.Create(ctx, e); err != nil {
				return fmt.Errorf("create enrollment: %w", err)
			}
			return nil
		}

		alert = &alertdomain.Alert{
			ID:         uuid.New().String(),
			CustomerID: c.ID,
			OrgID:      c.OrgID,
			Type:       alertdomain.TypeEnrollmentAttempt,
			Severity:   rejectionSeverity(c),
			Message:    rejectionMessage(c),
			CreatedAt:  time.Now().UTC(),
		}
		if err := g.alerts.Create(ctx, alert); err != nil {
			return fmt.Errorf("create enrollment alert: %w", err)
		}
		rejection = &domain.Rejection{
			RiskTier:         c.RiskTier,
			OutstandingCents: c.OutstandingCents,
			Blacklisted:      c.Blacklisted,
			AlertID:          alert.ID,
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if rejection != nil {
		span.SetAttributes(attribute.String("enrollment.outcome", "rejected"))
		metrics.EnrollmentDecisions.WithLabelValues("rejected").Inc()
		log.FromContext(ctx).Warn("enrollment rejected", "customer_id", req.CustomerID, "risk_tier", rejection.RiskTier, "blacklisted", rejection.Blacklisted)
		meta, _ := json.Marshal(rejection)
		g.audit.LogEvent(ctx, req.OrgID, req.AccountID, "enrollment_rejected", "customer:"+req.CustomerID, string(meta))
		telemetry.EmitAsync(g.events, ctx, &telemetry.Event{
			Type:       telemetry.EventEnrollmentRejected,
			OrgID:      req.OrgID,
			AccountID:  req.AccountID,
			CustomerID: req.CustomerID,
			Attributes: map[string]string{
				"risk_tier":         string(rejection.RiskTier),
				"outstanding_cents": strconv.FormatInt(rejection.OutstandingCents, 10),
				"blacklisted":       strconv.FormatBool(rejection.Blacklisted),
				"alert_id":          rejection.AlertID,
			},
		})
		telemetry.EmitAsync(g.events, ctx, alertservice.NewEvent(telemetry.EventAlertCreated, alert, req.AccountID))
		return nil, rejection
	}

	span.SetAttributes(attribute.String("enrollment.outcome", "accepted"))
	metrics.EnrollmentDecisions.WithLabelValues("accepted").Inc()
	return e, nil
}

// List returns enrollments of orgID, or of every org when orgID is empty.
func (g *Gate) List(ctx context.Context, orgID string, limit, offset int32) ([]*domain.Enrollment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return g.enrollments.List(ctx, orgID, limit, offset)
}

func rejectionSeverity(c *customerdomain.Customer) alertdomain.Severity {
	if c.Blacklisted || c.RiskTier == customerdomain.TierHigh {
		return alertdomain.SeverityHigh
	}
	return alertdomain.SeverityMedium
}

func rejectionMessage(c *customerdomain.Customer) string {
	if c.Blacklisted {
		return fmt.Sprintf("enrollment attempt for blacklisted customer %s", c.Name)
	}
	return fmt.Sprintf("enrollment attempt for %s customer %s with %d cents outstanding", c.RiskTier, c.Name, c.OutstandingCents)
}
