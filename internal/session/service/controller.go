// Package service builds session snapshots and switches an account's active org.
package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	accountdomain "carescope/backend/internal/account/domain"
	"carescope/backend/internal/db"
	membershipdomain "carescope/backend/internal/membership/domain"
	orgdomain "carescope/backend/internal/organization/domain"
	"carescope/backend/internal/platform/rbac"
	"carescope/backend/internal/session/domain"
)

var (
	// ErrAccountNotFound is returned when the session's account no longer exists.
	ErrAccountNotFound = errors.New("account not found")
	// ErrOrgNotFound is returned when an admin switches to an org that does not exist.
	ErrOrgNotFound = errors.New("organization not found")
)

// AccountStore is the account persistence the controller needs.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (*accountdomain.Account, error)
	GetByIDForUpdate(ctx context.Context, id string) (*accountdomain.Account, error)
	SetActiveOrg(ctx context.Context, accountID string, orgID *string) error
}

// MembershipReader answers membership questions.
type MembershipReader interface {
	ListMembershipsByAccount(ctx context.Context, accountID string) ([]*membershipdomain.Membership, error)
	HasActiveAccess(ctx context.Context, accountID, orgID string) (bool, error)
}

// OrgReader looks up organizations.
type OrgReader interface {
	GetOrganizationByID(ctx context.Context, id string) (*orgdomain.Org, error)
}

// Controller is the active-context controller.
type Controller struct {
	accounts    AccountStore
	memberships MembershipReader
	orgs        OrgReader
	tx          db.Transactor
}

// NewController returns a Controller. tx may be nil for tests.
func NewController(accounts AccountStore, memberships MembershipReader, orgs OrgReader, tx db.Transactor) *Controller {
	if tx == nil {
		tx = db.NopTransactor{}
	}
	return &Controller{accounts: accounts, memberships: memberships, orgs: orgs, tx: tx}
}

// Snapshot builds the caller's view for sessionID without writing anything.
func (c *Controller) Snapshot(ctx context.Context, accountID, sessionID string) (*domain.Snapshot, error) {
	acct, ms, err := c.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	active, err := c.ResolveActiveOrg(ctx, acct, ms)
	if err != nil {
		return nil, err
	}
	return newSnapshot(sessionID, acct, ms, active), nil
}

// Establish is Snapshot for a new or refreshed session: when the resolved active org
// differs from the persisted one, the resolved value is written back to the account.
func (c *Controller) Establish(ctx context.Context, accountID, sessionID string) (*domain.Snapshot, error) {
	acct, ms, err := c.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	active, err := c.ResolveActiveOrg(ctx, acct, ms)
	if err != nil {
		return nil, err
	}
	if !sameOrg(acct.ActiveOrgID, active) {
		if err := c.accounts.SetActiveOrg(ctx, acct.ID, active); err != nil {
			return nil, err
		}
	}
	return newSnapshot(sessionID, acct, ms, active), nil
}

// ResolveActiveOrg applies the login-time rule: the persisted active org if the
// account may still use it, else the first active membership in listing order,
// else nil.
func (c *Controller) ResolveActiveOrg(ctx context.Context, acct *accountdomain.Account, ms []*membershipdomain.Membership) (*string, error) {
	if acct.ActiveOrgID != nil && *acct.ActiveOrgID != "" {
		ok, err := c.canUse(ctx, acct, *acct.ActiveOrgID)
		if err != nil {
			return nil, err
		}
		if ok {
			orgID := *acct.ActiveOrgID
			return &orgID, nil
		}
	}
	for _, m := range ms {
		if !m.Active {
			continue
		}
		ok, err := c.memberships.HasActiveAccess(ctx, acct.ID, m.OrgID)
		if err != nil {
			return nil, err
		}
		if ok {
			orgID := m.OrgID
			return &orgID, nil
		}
	}
	return nil, nil
}

// SwitchActiveOrg makes orgID the caller's active org and returns a refreshed
// snapshot. Admins may pick any existing org; everyone else needs active access.
// Switches for one account are serialized by the account row lock.
func (c *Controller) SwitchActiveOrg(ctx context.Context, snap *domain.Snapshot, orgID string) (*domain.Snapshot, error) {
	if snap == nil || snap.AccountID == "" {
		return nil, rbac.ErrUnauthenticated
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, rbac.ErrMissingOrgContext
	}
	err := c.tx.RunInTx(ctx, func(ctx context.Context) error {
		acct, err := c.accounts.GetByIDForUpdate(ctx, snap.AccountID)
		if err != nil {
			return err
		}
		if acct == nil {
			return ErrAccountNotFound
		}
		if rbac.IsAdmin(acct.Role) {
			org, err := c.orgs.GetOrganizationByID(ctx, orgID)
			if err != nil {
				return err
			}
			if org == nil {
				return ErrOrgNotFound
			}
		} else {
			ok, err := c.memberships.HasActiveAccess(ctx, acct.ID, orgID)
			if err != nil {
				return err
			}
			if !ok {
				return rbac.ErrNoAccess
			}
		}
		return c.accounts.SetActiveOrg(ctx, acct.ID, &orgID)
	})
	if err != nil {
		return nil, err
	}
	return c.Snapshot(ctx, snap.AccountID, snap.SessionID)
}

func (c *Controller) canUse(ctx context.Context, acct *accountdomain.Account, orgID string) (bool, error) {
	if rbac.IsAdmin(acct.Role) {
		org, err := c.orgs.GetOrganizationByID(ctx, orgID)
		if err != nil {
			return false, err
		}
		return org != nil, nil
	}
	return c.memberships.HasActiveAccess(ctx, acct.ID, orgID)
}

// load reads the account and its memberships. Outside a transaction the two reads
// run concurrently; a transaction's single connection is used sequentially.
func (c *Controller) load(ctx context.Context, accountID string) (*accountdomain.Account, []*membershipdomain.Membership, error) {
	var (
		acct *accountdomain.Account
		ms   []*membershipdomain.Membership
	)
	getAccount := func(ctx context.Context) (err error) {
		acct, err = c.accounts.GetByID(ctx, accountID)
		return err
	}
	listMemberships := func(ctx context.Context) (err error) {
		ms, err = c.memberships.ListMembershipsByAccount(ctx, accountID)
		return err
	}

	if db.InTx(ctx) {
		if err := getAccount(ctx); err != nil {
			return nil, nil, err
		}
		if err := listMemberships(ctx); err != nil {
			return nil, nil, err
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return getAccount(gctx) })
		g.Go(func() error { return listMemberships(gctx) })
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
	}
	if acct == nil {
		return nil, nil, ErrAccountNotFound
	}
	return acct, ms, nil
}

func newSnapshot(sessionID string, acct *accountdomain.Account, ms []*membershipdomain.Membership, active *string) *domain.Snapshot {
	return &domain.Snapshot{
		SessionID:   sessionID,
		AccountID:   acct.ID,
		Email:       acct.Email,
		Role:        acct.Role,
		Memberships: domain.MembershipViews(ms),
		ActiveOrgID: active,
	}
}

func sameOrg(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
