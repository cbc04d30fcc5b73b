// Package service creates and lists organizations on behalf of an authenticated caller.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"carescope/backend/internal/db"
	membershipdomain "carescope/backend/internal/membership/domain"
	"carescope/backend/internal/organization/domain"
	"carescope/backend/internal/platform/rbac"
)

// Store persists organizations.
type Store interface {
	ListOrganizations(ctx context.Context) ([]*domain.Org, error)
	ListOrganizationsByIDs(ctx context.Context, ids []string) ([]*domain.Org, error)
	CreateOrganization(ctx context.Context, o *domain.Org) error
}

// Memberships is the part of the membership registry the service needs.
type Memberships interface {
	ListMemberships(ctx context.Context, accountID string) ([]*membershipdomain.Membership, error)
	Add(ctx context.Context, accountID, orgID string, role membershipdomain.Role, onDuplicate membershipdomain.DuplicatePolicy) (*membershipdomain.Membership, error)
}

// Service manages organizations.
type Service struct {
	orgs        Store
	memberships Memberships
	tx          db.Transactor
	now         func() time.Time
}

// NewService returns a Service. tx may be nil in tests.
func NewService(orgs Store, memberships Memberships, tx db.Transactor) *Service {
	if tx == nil {
		tx = db.NopTransactor{}
	}
	return &Service{orgs: orgs, memberships: memberships, tx: tx, now: func() time.Time { return time.Now().UTC() }}
}

// Create creates an org and makes the caller its owner. Only admins and org owners may create orgs.
func (s *Service) Create(ctx context.Context, p rbac.Principal, name string) (*domain.Org, error) {
	if p.AccountID == "" {
		return nil, rbac.ErrUnauthenticated
	}
	if !rbac.CanCreateOrg(p.Role) {
		return nil, rbac.ErrNoAccess
	}
	org := &domain.Org{ID: uuid.New().String(), Name: name, Active: true, CreatedAt: s.now()}
	if err := org.Validate(); err != nil {
		return nil, err
	}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.orgs.CreateOrganization(ctx, org); err != nil {
			return err
		}
		_, err := s.memberships.Add(ctx, p.AccountID, org.ID, membershipdomain.RoleOwner, membershipdomain.OnDuplicateIgnore)
		return err
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// List returns every org for admins and the orgs of the caller's active memberships otherwise.
func (s *Service) List(ctx context.Context, p rbac.Principal) ([]*domain.Org, error) {
	if p.AccountID == "" {
		return nil, rbac.ErrUnauthenticated
	}
	if rbac.CanListAllOrgs(p.Role) {
		return s.orgs.ListOrganizations(ctx)
	}
	ms, err := s.memberships.ListMemberships(ctx, p.AccountID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(ms))
	for _, m := range ms {
		if m.Active {
			ids = append(ids, m.OrgID)
		}
	}
	if len(ids) == 0 {
		return []*domain.Org{}, nil
	}
	return s.orgs.ListOrganizationsByIDs(ctx, ids)
}
