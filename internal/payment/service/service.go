// Package service issues payment records and drives their status transitions. Every write
// locks the customer first and recomputes its risk in the same transaction.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	alertdomain "carescope/backend/internal/alert/domain"
	alertservice "carescope/backend/internal/alert/service"
	customerdomain "carescope/backend/internal/customer/domain"
	"carescope/backend/internal/db"
	"carescope/backend/internal/payment/domain"
	"carescope/backend/internal/risk"
	"carescope/backend/internal/telemetry"
)

// Store is the payment persistence the service needs.
type Store interface {
	GetByID(ctx context.Context, id string) (*domain.Record, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Record, error)
	List(ctx context.Context, f domain.Filter, limit, offset int32) ([]*domain.Record, error)
	Create(ctx context.Context, r *domain.Record) error
	UpdateStatus(ctx context.Context, id string, status domain.Status, paidDate *time.Time) (*domain.Record, error)
	ListPendingDueBefore(ctx context.Context, cutoff time.Time, limit int32) ([]*domain.Record, error)
}

// CustomerLocker locks customer rows.
type CustomerLocker interface {
	GetForUpdate(ctx context.Context, id string) (*customerdomain.Customer, error)
}

// RiskEngine recomputes a customer's risk inside the caller's transaction.
type RiskEngine interface {
	Recompute(ctx context.Context, customerID string) (*risk.Result, error)
	Publish(ctx context.Context, res *risk.Result)
}

// AlertWriter appends alerts.
type AlertWriter interface {
	Create(ctx context.Context, a *alertdomain.Alert) error
}

// IssueInput describes a new payment record.
type IssueInput struct {
	OrgID       string
	CustomerID  string
	AmountCents int64
	DueDate     time.Time
}

// Service manages payment records.
type Service struct {
	payments  Store
	customers CustomerLocker
	risk      RiskEngine
	alerts    AlertWriter
	tx        db.Transactor
	events    telemetry.EventEmitter
	now       func() time.Time
}

// NewService returns a Service. tx may be nil for tests; events may be nil.
func NewService(payments Store, customers CustomerLocker, engine RiskEngine, alerts AlertWriter, tx db.Transactor, events telemetry.EventEmitter) *Service {
	if tx == nil {
		tx = db.NopTransactor{}
	}
	return &Service{
		payments:  payments,
		customers: customers,
		risk:      engine,
		alerts:    alerts,
		tx:        tx,
		events:    events,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates a pending record for a customer of in.OrgID and recomputes the customer's risk.
// An empty in.OrgID issues the record under the customer's own org.
func (s *Service) Issue(ctx context.Context, in IssueInput) (*domain.Record, error) {
	if in.CustomerID == "" {
		return nil, fmt.Errorf("%w: customer_id is required", domain.ErrInvalidPayment)
	}
	now := s.now()
	rec := &domain.Record{
		ID:          uuid.New().String(),
		CustomerID:  in.CustomerID,
		OrgID:       in.OrgID,
		AmountCents: in.AmountCents,
		DueDate:     in.DueDate,
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var res *risk.Result
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		c, err := s.customers.GetForUpdate(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if c == nil || (in.OrgID != "" && c.OrgID != in.OrgID) {
			return customerdomain.ErrCustomerNotFound
		}
		rec.OrgID = c.OrgID
		if err := rec.Validate(); err != nil {
			return err
		}
		if err := s.payments.Create(ctx, rec); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		res, err = s.risk.Recompute(ctx, in.CustomerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.risk.Publish(ctx, res)
	return rec, nil
}

// TransitionStatus moves a payment to next. When orgID is non-empty the payment must belong to
// it. A paid transition stamps paidDate, or today when paidDate is nil. An overdue transition
// appends an overdue_payment alert. The customer's risk is recomputed before commit.
func (s *Service) TransitionStatus(ctx context.Context, orgID, paymentID string, next domain.Status, paidDate *time.Time) (*domain.Record, error) {
	if !next.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	// Read once without a lock to find the customer; lock order is customer then payment.
	peek, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if peek == nil || (orgID != "" && peek.OrgID != orgID) {
		return nil, domain.ErrPaymentNotFound
	}

	var (
		updated *domain.Record
		alert   *alertdomain.Alert
		res     *risk.Result
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		c, err := s.customers.GetForUpdate(ctx, peek.CustomerID)
		if err != nil {
			return err
		}
		if c == nil {
			return customerdomain.ErrCustomerNotFound
		}
		cur, err := s.payments.GetByIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if cur == nil || cur.CustomerID != c.ID {
			return domain.ErrPaymentNotFound
		}
		if !cur.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, cur.Status, next)
		}

		var paid *time.Time
		if next == domain.StatusPaid {
			d := s.now()
			if paidDate != nil {
				d = paidDate.UTC()
			}
			paid = &d
		}
		updated, err = s.payments.UpdateStatus(ctx, paymentID, next, paid)
		if err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}
		if updated == nil {
			return domain.ErrPaymentNotFound
		}

		if next == domain.StatusOverdue {
			alert = &alertdomain.Alert{
				ID:         uuid.New().String(),
				CustomerID: c.ID,
				OrgID:      cur.OrgID,
				Type:       alertdomain.TypeOverduePayment,
				Severity:   alertdomain.SeverityMedium,
				Message:    fmt.Sprintf("payment %s of %d cents due %s is overdue", cur.ID, cur.AmountCents, cur.DueDate.Format(time.DateOnly)),
				CreatedAt:  s.now(),
			}
			if err := s.alerts.Create(ctx, alert); err != nil {
				return fmt.Errorf("create overdue alert: %w", err)
			}
		}

		res, err = s.risk.Recompute(ctx, c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.FromContext(ctx).Info("payment status changed", "payment_id", paymentID, "from", peek.Status, "to", next)
	if alert != nil {
		telemetry.EmitAsync(s.events, ctx, alertservice.NewEvent(telemetry.EventAlertCreated, alert, ""))
	}
	s.risk.Publish(ctx, res)
	return updated, nil
}

// MarkOverdueBefore transitions up to limit pending records due before cutoff to overdue.
// Records that changed concurrently are skipped. It returns how many were marked.
func (s *Service) MarkOverdueBefore(ctx context.Context, cutoff time.Time, limit int32) (int, error) {
	due, err := s.payments.ListPendingDueBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending payments: %w", err)
	}
	var (
		marked int
		errs   []error
	)
	for _, rec := range due {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		_, err := s.TransitionStatus(ctx, "", rec.ID, domain.StatusOverdue, nil)
		switch {
		case err == nil:
			marked++
		case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrPaymentNotFound):
		default:
			errs = append(errs, fmt.Errorf("payment %s: %w", rec.ID, err))
		}
	}
	return marked, errors.Join(errs...)
}

// Get returns the payment. When orgID is non-empty the payment must belong to it.
func (s *Service) Get(ctx context.Context, orgID, paymentID string) (*domain.Record, error) {
	rec, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if rec == nil || (orgID != "" && rec.OrgID != orgID) {
		return nil, domain.ErrPaymentNotFound
	}
	return rec, nil
}

// List returns payments matching f.
func (s *Service) List(ctx context.Context, f domain.Filter, limit, offset int32) ([]*domain.Record, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.payments.List(ctx, f, limit, offset)
}
