// Package service records and resolves customer alerts.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"carescope/backend/internal/alert/domain"
	customerdomain "carescope/backend/internal/customer/domain"
	"carescope/backend/internal/telemetry"
)

// Store is the alert persistence the recorder needs.
type Store interface {
	Create(ctx context.Context, a *domain.Alert) error
	GetByID(ctx context.Context, id string) (*domain.Alert, error)
	Resolve(ctx context.Context, id, accountID string) (*domain.Alert, error)
	List(ctx context.Context, f domain.Filter, limit, offset int32) ([]*domain.Alert, error)
}

// CustomerReader looks up customers.
type CustomerReader interface {
	GetByID(ctx context.Context, id string) (*customerdomain.Customer, error)
}

// Recorder creates, resolves and lists alerts.
type Recorder struct {
	alerts    Store
	customers CustomerReader
	events    telemetry.EventEmitter
}

// NewRecorder returns a Recorder. events may be nil.
func NewRecorder(alerts Store, customers CustomerReader, events telemetry.EventEmitter) *Recorder {
	return &Recorder{alerts: alerts, customers: customers, events: events}
}

// Create appends an alert for a customer of orgID. An empty orgID files the alert under the
// customer's own org.
func (r *Recorder) Create(ctx context.Context, customerID, orgID string, typ domain.Type, message string, severity domain.Severity) (*domain.Alert, error) {
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer_id is required", domain.ErrInvalidAlert)
	}
	c, err := r.customers.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if c == nil || (orgID != "" && c.OrgID != orgID) {
		return nil, customerdomain.ErrCustomerNotFound
	}
	a := &domain.Alert{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		OrgID:      c.OrgID,
		Type:       typ,
		Message:    message,
		Severity:   severity,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := r.alerts.Create(ctx, a); err != nil {
		return nil, err
	}
	telemetry.EmitAsync(r.events, ctx, NewEvent(telemetry.EventAlertCreated, a, ""))
	return a, nil
}

// Resolve marks the alert resolved by accountID. Resolving an already resolved alert returns
// it unchanged. When orgID is non-empty the alert must belong to it.
func (r *Recorder) Resolve(ctx context.Context, alertID, orgID, accountID string) (*domain.Alert, error) {
	existing, err := r.alerts.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if existing == nil || (orgID != "" && existing.OrgID != orgID) {
		return nil, domain.ErrAlertNotFound
	}
	if existing.Resolved {
		return existing, nil
	}
	resolved, err := r.alerts.Resolve(ctx, alertID, accountID)
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		// Lost the race to a concurrent resolve; report the winner's row.
		current, err := r.alerts.GetByID(ctx, alertID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, domain.ErrAlertNotFound
		}
		return current, nil
	}
	log.FromContext(ctx).Info("alert resolved", "alert_id", alertID, "account_id", accountID)
	telemetry.EmitAsync(r.events, ctx, NewEvent(telemetry.EventAlertResolved, resolved, accountID))
	return resolved, nil
}

// Get returns the alert. When orgID is non-empty the alert must belong to it.
func (r *Recorder) Get(ctx context.Context, orgID, alertID string) (*domain.Alert, error) {
	a, err := r.alerts.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if a == nil || (orgID != "" && a.OrgID != orgID) {
		return nil, domain.ErrAlertNotFound
	}
	return a, nil
}

// List returns alerts matching f.
func (r *Recorder) List(ctx context.Context, f domain.Filter, limit, offset int32) ([]*domain.Alert, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return r.alerts.List(ctx, f, limit, offset)
}

// NewEvent builds the domain event for an alert lifecycle change.
func NewEvent(eventType string, a *domain.Alert, accountID string) *telemetry.Event {
	return &telemetry.Event{
		Type:       eventType,
		OrgID:      a.OrgID,
		AccountID:  accountID,
		CustomerID: a.CustomerID,
		Attributes: map[string]string{
			"alert_id":   a.ID,
			"alert_type": string(a.Type),
			"severity":   string(a.Severity),
		},
	}
}
