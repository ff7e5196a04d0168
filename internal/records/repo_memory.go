package records

import (
	"context"
	"sort"
	"sync"

	"tenant-platform/internal/rbac"
)

// MemoryRepo is an in-process Repository useful for tests. Guards are evaluated against
// members before each write while the repo lock is held.
type MemoryRepo struct {
	members rbac.MembershipStore

	mu        sync.RWMutex
	customers map[string]Customer
	species   map[string]Species
}

func NewMemoryRepo(members rbac.MembershipStore) *MemoryRepo {
	return &MemoryRepo{
		members:   members,
		customers: make(map[string]Customer),
		species:   make(map[string]Species),
	}
}

func (r *MemoryRepo) check(ctx context.Context, organizationID string, g Guard) error {
	rec, found, err := r.members.FindActiveMembership(ctx, g.PrincipalID, organizationID)
	if err != nil {
		return err
	}
	return g.Check(rec, found)
}

func (r *MemoryRepo) CreateCustomer(ctx context.Context, c Customer, g Guard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx, c.OrganizationID, g); err != nil {
		return err
	}
	if _, ok := r.customers[c.ID]; ok {
		return ErrConflict
	}
	r.customers[c.ID] = c
	return nil
}

func (r *MemoryRepo) GetCustomer(ctx context.Context, id string) (Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) ListCustomers(ctx context.Context, organizationID string) ([]Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Customer, 0)
	for _, c := range r.customers {
		if c.OrganizationID == organizationID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) UpdateCustomer(ctx context.Context, c Customer, g Guard) (Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.customers[c.ID]
	if !ok || cur.OrganizationID != c.OrganizationID {
		return Customer{}, ErrNotFound
	}
	if err := r.check(ctx, cur.OrganizationID, g); err != nil {
		return Customer{}, err
	}
	c.CreatedAt = cur.CreatedAt
	r.customers[c.ID] = c
	return c, nil
}

func (r *MemoryRepo) DeleteCustomer(ctx context.Context, organizationID, id string, g Guard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.customers[id]
	if !ok || cur.OrganizationID != organizationID {
		return ErrNotFound
	}
	if err := r.check(ctx, organizationID, g); err != nil {
		return err
	}
	delete(r.customers, id)
	return nil
}

func (r *MemoryRepo) CreateSpecies(ctx context.Context, s Species, g Guard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx, s.OrganizationID, g); err != nil {
		return err
	}
	for _, existing := range r.species {
		if existing.OrganizationID == s.OrganizationID && existing.Name == s.Name {
			return ErrConflict
		}
	}
	r.species[s.ID] = s
	return nil
}

func (r *MemoryRepo) ListSpecies(ctx context.Context, organizationID string) ([]Species, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Species, 0)
	for _, s := range r.species {
		if s.OrganizationID == organizationID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
