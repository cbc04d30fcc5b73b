package repository

import (
	"context"
	"time"

	"carescope/backend/internal/payment/domain"
)

// Repository defines persistence for payment records.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Record, error)
	// GetByIDForUpdate reads the row with FOR UPDATE; call it inside a transaction.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Record, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*domain.Record, error)
	List(ctx context.Context, f domain.Filter, limit, offset int32) ([]*domain.Record, error)
	Create(ctx context.Context, r *domain.Record) error
	UpdateStatus(ctx context.Context, id string, status domain.Status, paidDate *time.Time) (*domain.Record, error)
	// ListPendingDueBefore returns pending records whose due date is before cutoff.
	ListPendingDueBefore(ctx context.Context, cutoff time.Time, limit int32) ([]*domain.Record, error)
}
