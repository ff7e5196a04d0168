package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records audit events. Audit is internal-only; records are not exposed to tenants.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.OrganizationID == "" || e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogMembershipChange records an add, role change or deactivation.
func (s *Service) LogMembershipChange(ctx context.Context, organizationID, actorPrincipalID, actorRole, targetPrincipalID, operation, message string) error {
	return s.Append(ctx, Event{
		OrganizationID:    organizationID,
		Type:              EventTypeMembershipChanged,
		ActorPrincipalID:  actorPrincipalID,
		ActorRole:         actorRole,
		TargetPrincipalID: targetPrincipalID,
		Action:            operation,
		Message:           message,
	})
}

func (s *Service) LogOrganizationCreated(ctx context.Context, organizationID, creatorPrincipalID string) error {
	return s.Append(ctx, Event{
		OrganizationID:    organizationID,
		Type:              EventTypeOrganizationCreated,
		ActorPrincipalID:  creatorPrincipalID,
		ActorRole:         "owner",
		TargetPrincipalID: creatorPrincipalID,
		Message:           "organization created",
	})
}

func (s *Service) LogAccessDenied(ctx context.Context, organizationID, actorPrincipalID, actorRole, action string) error {
	return s.Append(ctx, Event{
		OrganizationID:   organizationID,
		Type:             EventTypeAccessDenied,
		ActorPrincipalID: actorPrincipalID,
		ActorRole:        actorRole,
		Action:           action,
		Message:          "access denied",
	})
}
