package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tenant-platform/internal/rbac"
	"tenant-platform/pkg/logger"

	"github.com/google/uuid"
)

const maxOrganizationName = 200

// Access is the slice of the access service membership writes depend on.
type Access interface {
	Evaluate(ctx context.Context, principalID, organizationID string, action rbac.ActionClass) (rbac.Result, error)
	Invalidate(ctx context.Context, principalID, organizationID string) error
}

// Auditor records membership changes. Failures are logged and never fail the mutation.
type Auditor interface {
	LogMembershipChange(ctx context.Context, organizationID, actorPrincipalID, actorRole, targetPrincipalID, operation, message string) error
	LogOrganizationCreated(ctx context.Context, organizationID, creatorPrincipalID string) error
}

// Service manages organizations and their memberships.
//
// Invariants:
// - Every mutation is authorized admin-write on the organization.
// - Granting, changing or revoking owner requires the actor to be an owner.
// - The actor and owner checks are repeated by the repository inside the write transaction.
// - The access cache entry of the affected principal is invalidated before and after the write.
type Service struct {
	repo   Repository
	access Access
	audit  Auditor
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository, access Access, audit Auditor) *Service {
	return &Service{repo: repo, access: access, audit: audit, clock: time.Now}
}

// CreateOrganization creates an organization with the creator as its only owner.
// Any authenticated principal may create one.
func (s *Service) CreateOrganization(ctx context.Context, creatorPrincipalID, name string) (Organization, Membership, error) {
	creator, err := rbac.ValidateID(creatorPrincipalID)
	if err != nil {
		return Organization{}, Membership{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxOrganizationName {
		return Organization{}, Membership{}, fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidArgument, maxOrganizationName)
	}

	now := s.clock().UTC()
	org := Organization{ID: uuid.NewString(), Name: name, CreatedAt: now}
	owner := Membership{
		ID:             uuid.NewString(),
		OrganizationID: org.ID,
		PrincipalID:    creator,
		Role:           rbac.RoleOwner,
		Active:         true,
		JoinedAt:       now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateOrganization(ctx, org, owner); err != nil {
		return Organization{}, Membership{}, err
	}
	if err := s.invalidate(ctx, creator, org.ID); err != nil {
		return Organization{}, Membership{}, err
	}
	if s.audit != nil {
		if err := s.audit.LogOrganizationCreated(ctx, org.ID, creator); err != nil {
			logger.From(ctx).Warn("audit organization_created failed", "organization_id", org.ID, "err", err)
		}
	}
	return org, owner, nil
}

// List returns the active members of the organization. Requires read.
func (s *Service) List(ctx context.Context, actorPrincipalID, organizationID string) ([]Membership, error) {
	res, err := s.access.Evaluate(ctx, actorPrincipalID, organizationID, rbac.ActionRead)
	if err := rbac.DenyError(res.Decision, err); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, res.OrganizationID)
}

// AddMember grants role to principal. A deactivated membership is reactivated with the new role.
func (s *Service) AddMember(ctx context.Context, actorPrincipalID, organizationID, principalID string, role rbac.Role) (Membership, error) {
	res, target, err := s.authorizeMutation(ctx, actorPrincipalID, organizationID, principalID)
	if err != nil {
		return Membership{}, err
	}
	if !role.Valid() {
		return Membership{}, fmt.Errorf("%w: unknown role", ErrInvalidArgument)
	}
	if role == rbac.RoleOwner && res.Role != rbac.RoleOwner {
		return Membership{}, rbac.ErrAccessDenied
	}

	now := s.clock().UTC()
	g := ActorGuard{PrincipalID: res.PrincipalID}
	existing, err := s.repo.Get(ctx, res.OrganizationID, target)
	var (
		out       Membership
		operation string
	)
	switch {
	case errors.Is(err, ErrNotFound):
		out = Membership{
			ID:             uuid.NewString(),
			OrganizationID: res.OrganizationID,
			PrincipalID:    target,
			Role:           role,
			Active:         true,
			JoinedAt:       now,
			UpdatedAt:      now,
		}
		err = s.write(ctx, target, res.OrganizationID, func() error {
			return s.repo.Insert(ctx, out, g)
		})
		operation = OperationAdd
	case err != nil:
		return Membership{}, err
	case existing.Active:
		return Membership{}, ErrAlreadyMember
	default:
		u := Update{OrganizationID: res.OrganizationID, PrincipalID: target, Role: role, Active: true, WasActive: false, At: now}
		err = s.write(ctx, target, res.OrganizationID, func() (err error) {
			out, err = s.repo.UpdateRoleActive(ctx, u, g)
			return err
		})
		operation = OperationReactivate
	}
	if err != nil {
		return Membership{}, err
	}

	s.record(ctx, res, target, operation, "granted "+role.String())
	return out, nil
}

// ChangeRole replaces the role of an active membership.
func (s *Service) ChangeRole(ctx context.Context, actorPrincipalID, organizationID, principalID string, role rbac.Role) (Membership, error) {
	res, target, err := s.authorizeMutation(ctx, actorPrincipalID, organizationID, principalID)
	if err != nil {
		return Membership{}, err
	}
	if !role.Valid() {
		return Membership{}, fmt.Errorf("%w: unknown role", ErrInvalidArgument)
	}

	existing, err := s.activeMembership(ctx, res.OrganizationID, target)
	if err != nil {
		return Membership{}, err
	}
	if (role == rbac.RoleOwner || existing.Role == rbac.RoleOwner) && res.Role != rbac.RoleOwner {
		return Membership{}, rbac.ErrAccessDenied
	}
	if existing.Role == role {
		return existing, nil
	}

	u := Update{OrganizationID: res.OrganizationID, PrincipalID: target, Role: role, Active: true, WasActive: true, At: s.clock().UTC()}
	var out Membership
	err = s.write(ctx, target, res.OrganizationID, func() (err error) {
		out, err = s.repo.UpdateRoleActive(ctx, u, ActorGuard{PrincipalID: res.PrincipalID})
		return err
	})
	if err != nil {
		return Membership{}, err
	}
	s.record(ctx, res, target, OperationChangeRole, existing.Role.String()+" -> "+role.String())
	return out, nil
}

// Deactivate revokes an active membership. The row is kept with active=false.
func (s *Service) Deactivate(ctx context.Context, actorPrincipalID, organizationID, principalID string) (Membership, error) {
	res, target, err := s.authorizeMutation(ctx, actorPrincipalID, organizationID, principalID)
	if err != nil {
		return Membership{}, err
	}

	existing, err := s.activeMembership(ctx, res.OrganizationID, target)
	if err != nil {
		return Membership{}, err
	}
	if existing.Role == rbac.RoleOwner && res.Role != rbac.RoleOwner {
		return Membership{}, rbac.ErrAccessDenied
	}

	u := Update{OrganizationID: res.OrganizationID, PrincipalID: target, Role: existing.Role, Active: false, WasActive: true, At: s.clock().UTC()}
	var out Membership
	err = s.write(ctx, target, res.OrganizationID, func() (err error) {
		out, err = s.repo.UpdateRoleActive(ctx, u, ActorGuard{PrincipalID: res.PrincipalID})
		return err
	})
	if err != nil {
		return Membership{}, err
	}
	s.record(ctx, res, target, OperationDeactivate, "revoked "+existing.Role.String())
	return out, nil
}

// write runs fn between two invalidations of the target's cache entry. The first one failing
// aborts before anything is written. The second drops entries filled while fn ran.
func (s *Service) write(ctx context.Context, principalID, organizationID string, fn func() error) error {
	if err := s.invalidate(ctx, principalID, organizationID); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return s.invalidate(ctx, principalID, organizationID)
}

func (s *Service) authorizeMutation(ctx context.Context, actorPrincipalID, organizationID, principalID string) (rbac.Result, string, error) {
	res, err := s.access.Evaluate(ctx, actorPrincipalID, organizationID, rbac.ActionAdminWrite)
	if err := rbac.DenyError(res.Decision, err); err != nil {
		return rbac.Result{}, "", err
	}
	target, err := rbac.ValidateID(principalID)
	if err != nil {
		return rbac.Result{}, "", err
	}
	return res, target, nil
}

func (s *Service) activeMembership(ctx context.Context, organizationID, principalID string) (Membership, error) {
	m, err := s.repo.Get(ctx, organizationID, principalID)
	if err != nil {
		return Membership{}, err
	}
	if !m.Active {
		return Membership{}, ErrNotFound
	}
	return m, nil
}

// invalidate drops the cached role. A failure is returned so the caller does not report success
// while a stale cache entry may still grant access.
func (s *Service) invalidate(ctx context.Context, principalID, organizationID string) error {
	if err := s.access.Invalidate(ctx, principalID, organizationID); err != nil {
		logger.From(ctx).Error("access cache invalidation failed",
			"principal_id", principalID,
			"organization_id", organizationID,
			"err", err,
		)
		return fmt.Errorf("membership: invalidate access cache: %w", err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor rbac.Result, target, operation, message string) {
	if s.audit == nil {
		return
	}
	err := s.audit.LogMembershipChange(ctx, actor.OrganizationID, actor.PrincipalID, actor.Role.String(), target, operation, message)
	if err != nil {
		logger.From(ctx).Warn("audit membership_changed failed", "organization_id", actor.OrganizationID, "err", err)
	}
}
