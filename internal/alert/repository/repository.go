package repository

import (
	"context"

	"carescope/backend/internal/alert/domain"
)

// Repository defines persistence for alerts.
type Repository interface {
	Create(ctx context.Context, a *domain.Alert) error
	// GetByID returns the alert or nil when it does not exist.
	GetByID(ctx context.Context, id string) (*domain.Alert, error)
	// Resolve marks an unresolved alert resolved and returns it. It returns nil when the
	// alert does not exist or is already resolved.
	Resolve(ctx context.Context, id, accountID string) (*domain.Alert, error)
	List(ctx context.Context, f domain.Filter, limit, offset int32) ([]*domain.Alert, error)
}
