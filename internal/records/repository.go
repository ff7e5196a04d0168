package records

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("records: not found")
	ErrInvalidArgument = errors.New("records: invalid argument")
	ErrConflict        = errors.New("records: conflict")
)

// Repository persists organization-owned records. Every write takes a Guard and must evaluate
// it in the same transaction as the write.
type Repository interface {
	CreateCustomer(ctx context.Context, c Customer, g Guard) error
	GetCustomer(ctx context.Context, id string) (Customer, error)
	ListCustomers(ctx context.Context, organizationID string) ([]Customer, error)
	// UpdateCustomer never changes organization_id.
	UpdateCustomer(ctx context.Context, c Customer, g Guard) (Customer, error)
	DeleteCustomer(ctx context.Context, organizationID, id string, g Guard) error

	CreateSpecies(ctx context.Context, s Species, g Guard) error
	ListSpecies(ctx context.Context, organizationID string) ([]Species, error)
}
