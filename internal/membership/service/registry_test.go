package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"carescope/backend/internal/membership/domain"
)

type memMembershipRepo struct {
	mu         sync.Mutex
	rows       map[string]*domain.Membership
	inactive   map[string]bool // org ids
	seq        int
	order      map[string]int
	ownerLocks map[string]*sync.Mutex
	ownerOps   []string
}

func newMemMembershipRepo() *memMembershipRepo {
	return &memMembershipRepo{
		rows:       map[string]*domain.Membership{},
		inactive:   map[string]bool{},
		order:      map[string]int{},
		ownerLocks: map[string]*sync.Mutex{},
	}
}

type releasesKey struct{}

// lockingTx releases the locks taken inside fn when fn returns, like a commit would.
type lockingTx struct{}

func (lockingTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	var releases []func()
	err := fn(context.WithValue(ctx, releasesKey{}, &releases))
	for _, release := range releases {
		release()
	}
	return err
}

func key(accountID, orgID string) string { return accountID + ":" + orgID }

func (r *memMembershipRepo) GetMembership(_ context.Context, accountID, orgID string) (*domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.rows[key(accountID, orgID)]; ok {
		c := *m
		return &c, nil
	}
	return nil, nil
}

func (r *memMembershipRepo) list(match func(*domain.Membership) bool) []*domain.Membership {
	var out []*domain.Membership
	for _, m := range r.rows {
		if match(m) {
			c := *m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.order[key(out[i].AccountID, out[i].OrgID)] < r.order[key(out[j].AccountID, out[j].OrgID)]
	})
	return out
}

func (r *memMembershipRepo) ListMembershipsByAccount(_ context.Context, accountID string) ([]*domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(m *domain.Membership) bool { return m.AccountID == accountID }), nil
}

func (r *memMembershipRepo) ListMembershipsByOrg(_ context.Context, orgID string) ([]*domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(m *domain.Membership) bool { return m.OrgID == orgID }), nil
}

func (r *memMembershipRepo) CreateMembership(ctx context.Context, m *domain.Membership) error {
	created, err := r.CreateMembershipIfAbsent(ctx, m)
	if err != nil {
		return err
	}
	if !created {
		return domain.ErrDuplicateMembership
	}
	return nil
}

func (r *memMembershipRepo) CreateMembershipIfAbsent(_ context.Context, m *domain.Membership) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(m.AccountID, m.OrgID)
	if _, ok := r.rows[k]; ok {
		return false, nil
	}
	c := *m
	r.rows[k] = &c
	r.seq++
	r.order[k] = r.seq
	return true, nil
}

func (r *memMembershipRepo) UpdateMembership(_ context.Context, accountID, orgID string, p domain.Patch) (*domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[key(accountID, orgID)]
	if !ok {
		return nil, nil
	}
	if p.Role != nil {
		m.Role = *p.Role
	}
	if p.Active != nil {
		m.Active = *p.Active
	}
	c := *m
	return &c, nil
}

func (r *memMembershipRepo) DeleteMembership(_ context.Context, accountID, orgID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(accountID, orgID)
	_, ok := r.rows[k]
	delete(r.rows, k)
	return ok, nil
}

func (r *memMembershipRepo) LockActiveOwnersByOrg(ctx context.Context, orgID string) error {
	r.mu.Lock()
	l, ok := r.ownerLocks[orgID]
	if !ok {
		l = &sync.Mutex{}
		r.ownerLocks[orgID] = l
	}
	r.ownerOps = append(r.ownerOps, "lock:"+orgID)
	r.mu.Unlock()

	l.Lock()
	if releases, ok := ctx.Value(releasesKey{}).(*[]func()); ok {
		*releases = append(*releases, l.Unlock)
	} else {
		l.Unlock()
	}
	return nil
}

func (r *memMembershipRepo) CountActiveOwnersByOrg(_ context.Context, orgID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ownerOps = append(r.ownerOps, "count:"+orgID)
	var n int64
	for _, m := range r.rows {
		if m.OrgID == orgID && m.Role == domain.RoleOwner && m.Active {
			n++
		}
	}
	return n, nil
}

func (r *memMembershipRepo) HasActiveAccess(_ context.Context, accountID, orgID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[key(accountID, orgID)]
	return ok && m.Active && !r.inactive[orgID], nil
}

type recordingClearer struct {
	calls []string
}

func (c *recordingClearer) ClearActiveOrgIf(_ context.Context, accountID, orgID string) error {
	c.calls = append(c.calls, key(accountID, orgID))
	return nil
}

func TestRegistry_AddDuplicatePolicies(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(newMemMembershipRepo(), nil, nil)

	m, err := reg.Add(ctx, "a1", "o1", domain.RoleManager, domain.OnDuplicateReject)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !m.Active || m.Role != domain.RoleManager {
		t.Errorf("Add = %+v, want active manager", m)
	}

	if _, err := reg.Add(ctx, "a1", "o1", domain.RoleOwner, domain.OnDuplicateReject); !errors.Is(err, domain.ErrDuplicateMembership) {
		t.Errorf("Add reject duplicate: err = %v, want ErrDuplicateMembership", err)
	}

	got, err := reg.Add(ctx, "a1", "o1", domain.RoleOwner, domain.OnDuplicateIgnore)
	if err != nil {
		t.Fatalf("Add ignore duplicate: %v", err)
	}
	if got.Role != domain.RoleManager {
		t.Errorf("ignored duplicate changed role to %q", got.Role)
	}

	list, _ := reg.ListMemberships(ctx, "a1")
	if len(list) != 1 {
		t.Errorf("memberships = %d, want 1", len(list))
	}
}

func TestRegistry_AddValidation(t *testing.T) {
	reg := NewRegistry(newMemMembershipRepo(), nil, nil)
	if _, err := reg.Add(context.Background(), "a1", "o1", "admin", domain.OnDuplicateReject); !errors.Is(err, domain.ErrInvalidRole) {
		t.Errorf("err = %v, want ErrInvalidRole", err)
	}
	if _, err := reg.Add(context.Background(), "", "o1", domain.RoleMember, domain.OnDuplicateReject); !errors.Is(err, domain.ErrUnknownAccountOrOrg) {
		t.Errorf("err = %v, want ErrUnknownAccountOrOrg", err)
	}
}

func TestRegistry_HasActiveAccess(t *testing.T) {
	ctx := context.Background()
	repo := newMemMembershipRepo()
	reg := NewRegistry(repo, nil, nil)
	_, _ = reg.Add(ctx, "a1", "o1", domain.RoleMember, domain.OnDuplicateReject)
	_, _ = reg.Add(ctx, "a1", "o2", domain.RoleMember, domain.OnDuplicateReject)
	inactive := false
	if _, err := reg.Update(ctx, "a1", "o2", domain.Patch{Active: &inactive}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	repo.inactive["o3"] = true
	_, _ = reg.Add(ctx, "a1", "o3", domain.RoleMember, domain.OnDuplicateReject)

	tests := []struct {
		name string
		org  string
		want bool
	}{
		{"active membership", "o1", true},
		{"inactive membership", "o2", false},
		{"inactive org", "o3", false},
		{"no membership", "o4", false},
		{"empty org", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := reg.HasActiveAccess(ctx, "a1", tt.org)
			if err != nil {
				t.Fatalf("HasActiveAccess: %v", err)
			}
			if ok != tt.want {
				t.Errorf("HasActiveAccess(%q) = %v, want %v", tt.org, ok, tt.want)
			}
		})
	}
}

func TestRegistry_LastOwnerProtection(t *testing.T) {
	ctx := context.Background()
	clearer := &recordingClearer{}
	reg := NewRegistry(newMemMembershipRepo(), clearer, nil)
	_, _ = reg.Add(ctx, "owner", "o1", domain.RoleOwner, domain.OnDuplicateReject)
	_, _ = reg.Add(ctx, "staff", "o1", domain.RoleMember, domain.OnDuplicateReject)

	if err := reg.Remove(ctx, "owner", "o1"); !errors.Is(err, domain.ErrLastOwner) {
		t.Errorf("Remove last owner: err = %v, want ErrLastOwner", err)
	}
	member := domain.RoleMember
	if _, err := reg.Update(ctx, "owner", "o1", domain.Patch{Role: &member}); !errors.Is(err, domain.ErrLastOwner) {
		t.Errorf("demote last owner: err = %v, want ErrLastOwner", err)
	}

	owner := domain.RoleOwner
	if _, err := reg.Update(ctx, "staff", "o1", domain.Patch{Role: &owner}); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if err := reg.Remove(ctx, "owner", "o1"); err != nil {
		t.Fatalf("Remove with second owner: %v", err)
	}
	if len(clearer.calls) != 1 || clearer.calls[0] != "owner:o1" {
		t.Errorf("ClearActiveOrgIf calls = %v, want [owner:o1]", clearer.calls)
	}
	if err := reg.Remove(ctx, "owner", "o1"); !errors.Is(err, domain.ErrMembershipNotFound) {
		t.Errorf("Remove missing: err = %v, want ErrMembershipNotFound", err)
	}
}

func TestRegistry_OwnerCheckLocksBeforeCounting(t *testing.T) {
	ctx := context.Background()
	repo := newMemMembershipRepo()
	reg := NewRegistry(repo, nil, lockingTx{})
	_, _ = reg.Add(ctx, "a", "o1", domain.RoleOwner, domain.OnDuplicateReject)
	_, _ = reg.Add(ctx, "b", "o1", domain.RoleOwner, domain.OnDuplicateReject)

	if err := reg.Remove(ctx, "a", "o1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	want := []string{"lock:o1", "count:o1"}
	if len(repo.ownerOps) != len(want) || repo.ownerOps[0] != want[0] || repo.ownerOps[1] != want[1] {
		t.Errorf("owner ops = %v, want %v", repo.ownerOps, want)
	}
}

func TestRegistry_ConcurrentDemotionsKeepAnOwner(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		repo := newMemMembershipRepo()
		reg := NewRegistry(repo, nil, lockingTx{})
		_, _ = reg.Add(ctx, "a", "o1", domain.RoleOwner, domain.OnDuplicateReject)
		_, _ = reg.Add(ctx, "b", "o1", domain.RoleOwner, domain.OnDuplicateReject)

		member := domain.RoleMember
		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j, acct := range []string{"a", "b"} {
			wg.Add(1)
			go func(j int, acct string) {
				defer wg.Done()
				_, errs[j] = reg.Update(ctx, acct, "o1", domain.Patch{Role: &member})
			}(j, acct)
		}
		wg.Wait()

		lastOwner := 0
		for _, err := range errs {
			if errors.Is(err, domain.ErrLastOwner) {
				lastOwner++
			} else if err != nil {
				t.Fatalf("Update: %v", err)
			}
		}
		if lastOwner != 1 {
			t.Fatalf("run %d: %d demotions refused, want exactly 1", i, lastOwner)
		}
		if n, _ := repo.CountActiveOwnersByOrg(ctx, "o1"); n != 1 {
			t.Fatalf("run %d: owners = %d, want 1", i, n)
		}
	}
}
