package membership

import (
	"context"
	"sort"
	"sync"

	"tenant-platform/internal/rbac"
)

type pairKey struct {
	organizationID string
	principalID    string
}

// MemoryRepo keeps organizations and memberships in process. It also serves as the access
// service's membership store, so tests exercise the same rows both ways.
type MemoryRepo struct {
	mu          sync.RWMutex
	orgs        map[string]Organization
	memberships map[pairKey]Membership
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		orgs:        make(map[string]Organization),
		memberships: make(map[pairKey]Membership),
	}
}

func (r *MemoryRepo) CreateOrganization(ctx context.Context, org Organization, owner Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orgs[org.ID]; ok {
		return ErrInvalidArgument
	}
	r.orgs[org.ID] = org
	r.memberships[pairKey{org.ID, owner.PrincipalID}] = owner
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, organizationID, principalID string) (Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.memberships[pairKey{organizationID, principalID}]
	if !ok {
		return Membership{}, ErrNotFound
	}
	return m, nil
}

func (r *MemoryRepo) List(ctx context.Context, organizationID string) ([]Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Membership, 0)
	for k, m := range r.memberships {
		if k.organizationID == organizationID && m.Active {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (r *MemoryRepo) Insert(ctx context.Context, m Membership, g ActorGuard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orgs[m.OrganizationID]; !ok {
		return ErrNotFound
	}
	k := pairKey{m.OrganizationID, m.PrincipalID}
	var target *Membership
	if cur, ok := r.memberships[k]; ok {
		target = &cur
	}
	actor, found := r.recordLocked(m.OrganizationID, g.PrincipalID)
	if err := g.Check(actor, found, target, m.Role); err != nil {
		return err
	}
	if target != nil {
		return ErrAlreadyMember
	}
	r.memberships[k] = m
	return nil
}

func (r *MemoryRepo) UpdateRoleActive(ctx context.Context, u Update, g ActorGuard) (Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	actor, found := r.recordLocked(u.OrganizationID, g.PrincipalID)
	k := pairKey{u.OrganizationID, u.PrincipalID}
	m, ok := r.memberships[k]
	var target *Membership
	if ok {
		target = &m
	}
	if err := g.Check(actor, found, target, u.Role); err != nil {
		return Membership{}, err
	}
	if !ok {
		return Membership{}, ErrNotFound
	}
	if err := u.CheckTransition(m, r.activeOwnersLocked(u.OrganizationID)); err != nil {
		return Membership{}, err
	}
	m.Role = u.Role
	m.Active = u.Active
	m.UpdatedAt = u.At
	r.memberships[k] = m
	return m, nil
}

func (r *MemoryRepo) recordLocked(organizationID, principalID string) (rbac.MembershipRecord, bool) {
	m, ok := r.memberships[pairKey{organizationID, principalID}]
	if !ok {
		return rbac.MembershipRecord{}, false
	}
	return rbac.MembershipRecord{Role: m.Role.String(), Active: m.Active}, true
}

func (r *MemoryRepo) activeOwnersLocked(organizationID string) int {
	n := 0
	for k, m := range r.memberships {
		if k.organizationID == organizationID && m.Active && m.Role == rbac.RoleOwner {
			n++
		}
	}
	return n
}

// FindActiveMembership implements rbac.MembershipStore.
func (r *MemoryRepo) FindActiveMembership(ctx context.Context, principalID, organizationID string) (rbac.MembershipRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return rbac.MembershipRecord{}, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.orgs[organizationID]; !ok {
		return rbac.MembershipRecord{}, false, nil
	}
	m, ok := r.memberships[pairKey{organizationID, principalID}]
	if !ok || !m.Active {
		return rbac.MembershipRecord{}, false, nil
	}
	return rbac.MembershipRecord{Role: m.Role.String(), Active: true}, true, nil
}
