package records

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tenant-platform/internal/rbac"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Action classes of record operations.
const (
	actionCustomerWrite = rbac.ActionWrite
	actionSpeciesWrite  = rbac.ActionAdminWrite
)

// Authorizer is the access check records depend on.
type Authorizer interface {
	Authorize(ctx context.Context, principalID, organizationID string, action rbac.ActionClass) (rbac.Decision, error)
	AuthorizeCreate(ctx context.Context, principalID, requestedOrganizationID string, action rbac.ActionClass) (rbac.Decision, error)
	AuthorizeResourceOwner(ctx context.Context, principalID, resourceOrganizationID string, action rbac.ActionClass) (rbac.Decision, error)
}

// Service provides organization-scoped record operations.
//
// Tenancy invariants:
// - Creation is authorized against the requested organization before anything is written.
// - Reads and writes of an existing record are authorized against the organization stored on it.
// - Writes re-check membership inside the transaction via Guard.
type Service struct {
	repo  Repository
	authz Authorizer
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository, authz Authorizer) *Service {
	return &Service{repo: repo, authz: authz, clock: time.Now}
}

func (s *Service) CreateCustomer(ctx context.Context, actorPrincipalID, organizationID string, in CustomerInput) (Customer, error) {
	if err := rbac.DenyError(s.authz.AuthorizeCreate(ctx, actorPrincipalID, organizationID, actionCustomerWrite)); err != nil {
		return Customer{}, err
	}
	org, actor, err := canonical(organizationID, actorPrincipalID)
	if err != nil {
		return Customer{}, err
	}
	in, err = normalizeCustomer(in)
	if err != nil {
		return Customer{}, err
	}

	now := s.clock().UTC()
	c := Customer{
		ID:             uuid.NewString(),
		OrganizationID: org,
		Name:           in.Name,
		Email:          in.Email,
		Phone:          in.Phone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateCustomer(ctx, c, Guard{PrincipalID: actor, Action: actionCustomerWrite}); err != nil {
		return Customer{}, err
	}
	return c, nil
}

// GetCustomer returns ErrNotFound only when no customer has the id; a customer owned by an
// organization the actor cannot read is a denial.
func (s *Service) GetCustomer(ctx context.Context, actorPrincipalID, customerID string) (Customer, error) {
	c, err := s.loadCustomer(ctx, customerID)
	if err != nil {
		return Customer{}, err
	}
	if err := rbac.DenyError(s.authz.AuthorizeResourceOwner(ctx, actorPrincipalID, c.OrganizationID, rbac.ActionRead)); err != nil {
		return Customer{}, err
	}
	return c, nil
}

func (s *Service) ListCustomers(ctx context.Context, actorPrincipalID, organizationID string) ([]Customer, error) {
	if err := rbac.DenyError(s.authz.Authorize(ctx, actorPrincipalID, organizationID, rbac.ActionRead)); err != nil {
		return nil, err
	}
	org, err := rbac.ValidateID(organizationID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx, org)
}

func (s *Service) UpdateCustomer(ctx context.Context, actorPrincipalID, customerID string, in CustomerInput) (Customer, error) {
	c, err := s.loadCustomer(ctx, customerID)
	if err != nil {
		return Customer{}, err
	}
	if err := rbac.DenyError(s.authz.AuthorizeResourceOwner(ctx, actorPrincipalID, c.OrganizationID, actionCustomerWrite)); err != nil {
		return Customer{}, err
	}
	in, err = normalizeCustomer(in)
	if err != nil {
		return Customer{}, err
	}
	actor, err := rbac.ValidateID(actorPrincipalID)
	if err != nil {
		return Customer{}, err
	}

	c.Name, c.Email, c.Phone = in.Name, in.Email, in.Phone
	c.UpdatedAt = s.clock().UTC()
	return s.repo.UpdateCustomer(ctx, c, Guard{PrincipalID: actor, Action: actionCustomerWrite})
}

// AuthorizeCustomerWrite checks that the actor may modify the customer, against its stored
// organization. Handlers call it before decoding a request body.
func (s *Service) AuthorizeCustomerWrite(ctx context.Context, actorPrincipalID, customerID string) error {
	c, err := s.loadCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	return rbac.DenyError(s.authz.AuthorizeResourceOwner(ctx, actorPrincipalID, c.OrganizationID, actionCustomerWrite))
}

func (s *Service) DeleteCustomer(ctx context.Context, actorPrincipalID, customerID string) error {
	c, err := s.loadCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	if err := rbac.DenyError(s.authz.AuthorizeResourceOwner(ctx, actorPrincipalID, c.OrganizationID, actionCustomerWrite)); err != nil {
		return err
	}
	actor, err := rbac.ValidateID(actorPrincipalID)
	if err != nil {
		return err
	}
	return s.repo.DeleteCustomer(ctx, c.OrganizationID, c.ID, Guard{PrincipalID: actor, Action: actionCustomerWrite})
}

func (s *Service) CreateSpecies(ctx context.Context, actorPrincipalID, organizationID string, in SpeciesInput) (Species, error) {
	if err := rbac.DenyError(s.authz.AuthorizeCreate(ctx, actorPrincipalID, organizationID, actionSpeciesWrite)); err != nil {
		return Species{}, err
	}
	org, actor, err := canonical(organizationID, actorPrincipalID)
	if err != nil {
		return Species{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > 120 {
		return Species{}, fmt.Errorf("%w: name must be 1-120 characters", ErrInvalidArgument)
	}
	if in.YieldRatio <= 0 || in.YieldRatio > 1 {
		return Species{}, fmt.Errorf("%w: yield_ratio must be in (0, 1]", ErrInvalidArgument)
	}

	sp := Species{
		ID:             uuid.NewString(),
		OrganizationID: org,
		Name:           name,
		YieldRatio:     in.YieldRatio,
		CreatedAt:      s.clock().UTC(),
	}
	if err := s.repo.CreateSpecies(ctx, sp, Guard{PrincipalID: actor, Action: actionSpeciesWrite}); err != nil {
		return Species{}, err
	}
	return sp, nil
}

func (s *Service) ListSpecies(ctx context.Context, actorPrincipalID, organizationID string) ([]Species, error) {
	if err := rbac.DenyError(s.authz.Authorize(ctx, actorPrincipalID, organizationID, rbac.ActionRead)); err != nil {
		return nil, err
	}
	org, err := rbac.ValidateID(organizationID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSpecies(ctx, org)
}

func (s *Service) loadCustomer(ctx context.Context, customerID string) (Customer, error) {
	id, err := rbac.ValidateID(customerID)
	if err != nil {
		return Customer{}, err
	}
	return s.repo.GetCustomer(ctx, id)
}

func canonical(organizationID, principalID string) (string, string, error) {
	org, err := rbac.ValidateID(organizationID)
	if err != nil {
		return "", "", err
	}
	p, err := rbac.ValidateID(principalID)
	if err != nil {
		return "", "", err
	}
	return org, p, nil
}

func normalizeCustomer(in CustomerInput) (CustomerInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validate.Var(in.Name, "required,max=200"); err != nil {
		return CustomerInput{}, fmt.Errorf("%w: name must be 1-200 characters", ErrInvalidArgument)
	}
	if err := validate.Var(in.Email, "omitempty,email"); err != nil {
		return CustomerInput{}, fmt.Errorf("%w: invalid email", ErrInvalidArgument)
	}
	if err := validate.Var(in.Phone, "max=32"); err != nil {
		return CustomerInput{}, fmt.Errorf("%w: phone too long", ErrInvalidArgument)
	}
	return in, nil
}
