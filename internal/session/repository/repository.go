package repository

import (
	"context"
	"time"

	"carescope/backend/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Revoke(ctx context.Context, id string) error
	// RevokeAllByAccount revokes every live session of the account and returns their ids.
	RevokeAllByAccount(ctx context.Context, accountID string) ([]string, error)
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
	UpdateRefreshToken(ctx context.Context, sessionID, jti, refreshTokenHash string) error
}
