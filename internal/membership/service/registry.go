// Package service implements the membership registry: the single source of truth
// for which accounts may act on which organizations.
package service

import (
	"context"
	"fmt"
	"time"

	"carescope/backend/internal/db"
	"carescope/backend/internal/membership/domain"
	membershiprepo "carescope/backend/internal/membership/repository"
)

// ActiveOrgClearer clears an account's persisted active org when it loses access to that org.
type ActiveOrgClearer interface {
	ClearActiveOrgIf(ctx context.Context, accountID, orgID string) error
}

// Registry manages memberships.
type Registry struct {
	repo     membershiprepo.Repository
	accounts ActiveOrgClearer
	tx       db.Transactor
	now      func() time.Time
}

// NewRegistry returns a Registry. accounts may be nil when active orgs need no upkeep (tests).
func NewRegistry(repo membershiprepo.Repository, accounts ActiveOrgClearer, tx db.Transactor) *Registry {
	if tx == nil {
		tx = db.NopTransactor{}
	}
	return &Registry{repo: repo, accounts: accounts, tx: tx, now: func() time.Time { return time.Now().UTC() }}
}

// ListMemberships returns the account's memberships in listing order.
func (r *Registry) ListMemberships(ctx context.Context, accountID string) ([]*domain.Membership, error) {
	return r.repo.ListMembershipsByAccount(ctx, accountID)
}

// GetMembership returns the pair's membership, or nil.
func (r *Registry) GetMembership(ctx context.Context, accountID, orgID string) (*domain.Membership, error) {
	return r.repo.GetMembership(ctx, accountID, orgID)
}

// ListOrgMembers returns the org's memberships.
func (r *Registry) ListOrgMembers(ctx context.Context, orgID string) ([]*domain.Membership, error) {
	return r.repo.ListMembershipsByOrg(ctx, orgID)
}

// Add grants role on orgID to accountID. With OnDuplicateIgnore an existing pair is
// returned unchanged (its role is not touched); with OnDuplicateReject it fails with
// domain.ErrDuplicateMembership.
func (r *Registry) Add(ctx context.Context, accountID, orgID string, role domain.Role, onDuplicate domain.DuplicatePolicy) (*domain.Membership, error) {
	if accountID == "" || orgID == "" {
		return nil, domain.ErrUnknownAccountOrOrg
	}
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	m := &domain.Membership{
		AccountID: accountID,
		OrgID:     orgID,
		Role:      role,
		Active:    true,
		CreatedAt: r.now(),
	}
	switch onDuplicate {
	case domain.OnDuplicateIgnore:
		created, err := r.repo.CreateMembershipIfAbsent(ctx, m)
		if err != nil {
			return nil, err
		}
		if created {
			return m, nil
		}
		existing, err := r.repo.GetMembership(ctx, accountID, orgID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			// Deleted between the conflicting insert and the read.
			return nil, domain.ErrMembershipNotFound
		}
		return existing, nil
	case domain.OnDuplicateReject:
		if err := r.repo.CreateMembership(ctx, m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("membership: unknown duplicate policy %d", onDuplicate)
	}
}

// Update changes role and/or active flag. It refuses to demote or deactivate the last
// active owner of an org.
func (r *Registry) Update(ctx context.Context, accountID, orgID string, p domain.Patch) (*domain.Membership, error) {
	if p.Role != nil && !p.Role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	var out *domain.Membership
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := r.repo.GetMembership(ctx, accountID, orgID)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrMembershipNotFound
		}
		losesOwner := (p.Role != nil && *p.Role != domain.RoleOwner) || (p.Active != nil && !*p.Active)
		if existing.Active && existing.Role == domain.RoleOwner && losesOwner {
			if err := r.ensureAnotherOwner(ctx, orgID); err != nil {
				return err
			}
		}
		out, err = r.repo.UpdateMembership(ctx, accountID, orgID, p)
		if err != nil {
			return err
		}
		if out == nil {
			return domain.ErrMembershipNotFound
		}
		if !out.Active {
			return r.clearActiveOrg(ctx, accountID, orgID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Remove deletes the membership. It refuses to remove the last active owner of an org.
func (r *Registry) Remove(ctx context.Context, accountID, orgID string) error {
	return r.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := r.repo.GetMembership(ctx, accountID, orgID)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrMembershipNotFound
		}
		if existing.Active && existing.Role == domain.RoleOwner {
			if err := r.ensureAnotherOwner(ctx, orgID); err != nil {
				return err
			}
		}
		deleted, err := r.repo.DeleteMembership(ctx, accountID, orgID)
		if err != nil {
			return err
		}
		if !deleted {
			return domain.ErrMembershipNotFound
		}
		return r.clearActiveOrg(ctx, accountID, orgID)
	})
}

// HasActiveAccess reports whether accountID holds an active membership in an active orgID.
func (r *Registry) HasActiveAccess(ctx context.Context, accountID, orgID string) (bool, error) {
	if accountID == "" || orgID == "" {
		return false, nil
	}
	return r.repo.HasActiveAccess(ctx, accountID, orgID)
}

// ensureAnotherOwner must run inside the caller's transaction. The owner rows stay locked
// until commit, so two concurrent demotions cannot both see a second owner.
func (r *Registry) ensureAnotherOwner(ctx context.Context, orgID string) error {
	if err := r.repo.LockActiveOwnersByOrg(ctx, orgID); err != nil {
		return err
	}
	n, err := r.repo.CountActiveOwnersByOrg(ctx, orgID)
	if err != nil {
		return err
	}
	if n <= 1 {
		return domain.ErrLastOwner
	}
	return nil
}

func (r *Registry) clearActiveOrg(ctx context.Context, accountID, orgID string) error {
	if r.accounts == nil {
		return nil
	}
	return r.accounts.ClearActiveOrgIf(ctx, accountID, orgID)
}
