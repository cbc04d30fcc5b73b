package repository

import (
	"context"

	"carescope/backend/internal/enrollment/domain"
)

// Repository defines persistence for enrollments.
type Repository interface {
	Create(ctx context.Context, e *domain.Enrollment) error
	// List returns enrollments of orgID, or of every org when orgID is empty.
	List(ctx context.Context, orgID string, limit, offset int32) ([]*domain.Enrollment, error)
}
