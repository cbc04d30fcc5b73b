package risk

import (
	"context"
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
	customerdomain "carescope/backend/internal/customer/domain"
	"carescope/backend/internal/db"
	"carescope/backend/internal/metrics"
	paymentdomain "carescope/backend/internal/payment/domain"
	"carescope/backend/internal/telemetry"
)

// CustomerStore locks customers and persists assessments.
type CustomerStore interface {
	GetForUpdate(ctx context.Context, id string) (*customerdomain.Customer, error)
	SaveAssessment(ctx context.Context, id string, a Assessment) error
}

// PaymentLister lists every payment record of a customer.
type PaymentLister interface {
	ListByCustomer(ctx context.Context, customerID string) ([]*paymentdomain.Record, error)
}

// AlertWriter appends alerts.
type AlertWriter interface {
	Create(ctx context.Context, a *alertdomain.Alert) error
}

// Result is the outcome of one recomputation.
type Result struct {
	CustomerID      string
	OrgID           string
	Previous        customerdomain.RiskTier
	Assessment      Assessment
	TierChangeAlert *alertdomain.Alert
}

// Changed reports whether the tier moved.
func (r *Result) Changed() bool { return r.Previous != r.Assessment.Tier() }

// Engine recomputes customer risk.
type Engine struct {
	customers CustomerStore
	payments  PaymentLister
	alerts    AlertWriter
	tx        db.Transactor
	events    telemetry.EventEmitter
	tracer    trace.Tracer
}

// NewEngine returns an Engine. tx may be nil for tests; events may be nil.
func NewEngine(customers CustomerStore, payments PaymentLister, alerts AlertWriter, tx db.Transactor, events telemetry.EventEmitter) *Engine {
	if tx == nil {
		tx = db.NopTransactor{}
	}
	return &Engine{
		customers: customers,
		payments:  payments,
		alerts:    alerts,
		tx:        tx,
		events:    events,
		tracer:    otel.Tracer("carescope/risk"),
	}
}

// Recompute locks the customer, reassesses it from all of its payment records and stores the
// result. It joins the transaction in ctx when there is one. A missing customer yields
// customerdomain.ErrCustomerNotFound. No events are emitted; callers Publish after commit.
func (e *Engine) Recompute(ctx context.Context, customerID string) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "risk.Recompute", trace.WithAttributes(attribute.String("customer.id", customerID)))
	defer span.End()

	var res *Result
	err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
		c, err := e.customers.GetForUpdate(ctx, customerID)
		if err != nil {
			return fmt.Errorf("lock customer: %w", err)
		}
		if c == nil {
			return customerdomain.ErrCustomerNotFound
		}
		records, err := e.payments.ListByCustomer(ctx, customerID)
		if err != nil {
			return fmt.Errorf("list payments: %w", err)
		}
		a := Assess(records)
		if err := e.customers.SaveAssessment(ctx, customerID, a); err != nil {
			return fmt.Errorf("save assessment: %w", err)
		}
		res = &Result{CustomerID: c.ID, OrgID: c.OrgID, Previous: c.RiskTier, Assessment: a}

		if a.Tier() == customerdomain.TierHigh && c.RiskTier != customerdomain.TierHigh && e.alerts != nil {
			alert := &alertdomain.Alert{
				ID:         uuid.New().String(),
				CustomerID: c.ID,
				OrgID:      c.OrgID,
				Type:       alertdomain.TypeTierChange,
				Severity:   alertdomain.SeverityHigh,
				Message:    fmt.Sprintf("risk tier changed from %s to high (%d of %d payments overdue)", c.RiskTier, a.OverdueCount(), a.Total()),
				CreatedAt:  time.Now().UTC(),
			}
			if err := e.alerts.Create(ctx, alert); err != nil {
				return fmt.Errorf("create tier_change alert: %w", err)
			}
			res.TierChangeAlert = alert
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	metrics.RiskRecomputations.WithLabelValues(string(res.Assessment.Tier())).Inc()
	span.SetAttributes(
		attribute.String("risk.tier", string(res.Assessment.Tier())),
		attribute.Int64("risk.outstanding_cents", res.Assessment.OutstandingCents()),
	)
	return res, nil
}

// Publish emits the events for res asynchronously. It is a no-op for a nil res.
func (e *Engine) Publish(ctx context.Context, res *Result) {
	if res == nil {
		return
	}
	if res.Changed() {
		log.FromContext(ctx).Info("risk: tier changed", "customer_id", res.CustomerID, "from", res.Previous, "to", res.Assessment.Tier())
	}
	telemetry.EmitAsync(e.events, ctx, &telemetry.Event{
		Type:       telemetry.EventRiskRecomputed,
		OrgID:      res.OrgID,
		CustomerID: res.CustomerID,
		Attributes: map[string]string{
			"previous_tier":     string(res.Previous),
			"risk_tier":         string(res.Assessment.Tier()),
			"outstanding_cents": strconv.FormatInt(res.Assessment.OutstandingCents(), 10),
			"overdue_count":     strconv.Itoa(res.Assessment.OverdueCount()),
			"payment_count":     strconv.Itoa(res.Assessment.Total()),
		},
	})
	if a := res.TierChangeAlert; a != nil {
		telemetry.EmitAsync(e.events, ctx, alertservice.NewEvent(telemetry.EventAlertCreated, a, ""))
	}
}
