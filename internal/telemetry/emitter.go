// Package telemetry carries domain events (risk recomputations, alerts, enrollment
// rejections) to best-effort sinks such as Kafka and OTel logs.
package telemetry

import (
	"context"
	"errors"
	"time"
)

// Event types.
const (
	EventRiskRecomputed     = "risk.recomputed"
	EventAlertCreated       = "alert.created"
	EventAlertResolved      = "alert.resolved"
	EventEnrollmentRejected = "enrollment.rejected"
)

// Event is a domain event. Attributes hold event-specific string values.
type Event struct {
	Type       string            `json:"type"`
	OrgID      string            `json:"org_id,omitempty"`
	AccountID  string            `json:"account_id,omitempty"`
	CustomerID string            `json:"customer_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// EventEmitter emits domain events. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}

// Fanout emits every event to each emitter in order and joins their errors.
type Fanout []EventEmitter

// Emit implements EventEmitter.
func (f Fanout) Emit(ctx context.Context, event *Event) error {
	var errs []error
	for _, e := range f {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
