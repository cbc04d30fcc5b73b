// Package jobs holds the background jobs run by the worker.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"carescope/backend/internal/metrics"
)

// Runner is a schedulable job.
type Runner interface {
	Spec(context.Context) string
	Func(context.Context) func()
}

// OverdueMarker moves pending payments due before cutoff to overdue.
type OverdueMarker interface {
	MarkOverdueBefore(ctx context.Context, cutoff time.Time, limit int32) (int, error)
}

const (
	overdueBatchSize  = 100
	overdueMaxBatches = 50
)

// OverdueSweep marks pending payments whose due date has passed as overdue, which recomputes
// the affected customers' risk.
type OverdueSweep struct {
	payments OverdueMarker
	spec     string
	timeout  time.Duration
	now      func() time.Time
}

var _ Runner = (*OverdueSweep)(nil)

// NewOverdueSweep returns the sweep. spec defaults to "@every 1h".
func NewOverdueSweep(payments OverdueMarker, spec string) *OverdueSweep {
	if spec == "" {
		spec = "@every 1h"
	}
	return &OverdueSweep{
		payments: payments,
		spec:     spec,
		timeout:  10 * time.Minute,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Spec implements Runner.
func (o *OverdueSweep) Spec(context.Context) string {
	return o.spec
}

// Func implements Runner.
func (o *OverdueSweep) Func(ctx context.Context) func() {
	return func() {
		runCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		if _, err := o.Run(runCtx); err != nil {
			log.FromContext(ctx).WithPrefix("jobs.overdue").Error("sweep failed", "err", err)
		}
	}
}

// Run marks everything due before the start of today in batches and returns how many were marked.
// It stops early when a batch is short, fails or the batch cap is reached.
func (o *OverdueSweep) Run(ctx context.Context) (int, error) {
	logger := log.FromContext(ctx).WithPrefix("jobs.overdue")
	now := o.now()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var (
		total int
		errs  []error
	)
	for i := 0; i < overdueMaxBatches; i++ {
		n, err := o.payments.MarkOverdueBefore(ctx, cutoff, overdueBatchSize)
		total += n
		metrics.OverdueMarked.Add(float64(n))
		if err != nil {
			errs = append(errs, err)
			break
		}
		if n < overdueBatchSize {
			break
		}
	}
	logger.Info("sweep finished", "cutoff", cutoff.Format(time.DateOnly), "marked", total)
	return total, errors.Join(errs...)
}
