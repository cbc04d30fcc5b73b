package repository

import (
	"context"

	"carescope/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	// ListByOrg returns the org's entries newest first; an empty orgID lists every org.
	ListByOrg(ctx context.Context, orgID string, limit, offset int) ([]*domain.AuditLog, error)
	Create(ctx context.Context, a *domain.AuditLog) error
}
