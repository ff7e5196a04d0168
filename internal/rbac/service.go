package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tenant-platform/pkg/logger"

	"github.com/google/uuid"
)

var (
	// ErrStoreUnavailable is returned alongside Deny when the membership lookup fails.
	ErrStoreUnavailable = errors.New("rbac: membership store unavailable")
	// ErrMalformedIdentifier is returned alongside Deny when an id fails format validation.
	// No store call is made in that case.
	ErrMalformedIdentifier = errors.New("rbac: malformed identifier")
	// ErrAccessDenied is what domain services return for a plain Deny.
	ErrAccessDenied = errors.New("rbac: access denied")
)

// DenyError converts an authorization outcome into an error. It returns nil only for Allow.
func DenyError(d Decision, err error) error {
	if err != nil {
		return err
	}
	if !d.Allowed() {
		return ErrAccessDenied
	}
	return nil
}

// MembershipRecord is what the tenant store reports for a (principal, organization) pair.
// Role and Active come from the same row read, never from two separate reads.
type MembershipRecord struct {
	Role   string
	Active bool
}

// MembershipStore is the only tenant store capability the access service consumes.
//
// Implementations return found=false when the organization does not exist, the membership was
// never created, or it has been deactivated. Errors are reserved for infrastructure failures.
type MembershipStore interface {
	FindActiveMembership(ctx context.Context, principalID, organizationID string) (MembershipRecord, bool, error)
}

// Result is a fully evaluated authorization check.
type Result struct {
	PrincipalID    string
	OrganizationID string
	Action         ActionClass
	// Role is RoleNone when the principal has no active membership.
	Role     Role
	Decision Decision
}

// Observer receives every decision and cache lookup. Implementations must not block.
type Observer interface {
	ObserveDecision(ctx context.Context, r Result, err error)
	ObserveCacheLookup(hit bool)
}

const defaultStoreTimeout = 2 * time.Second

type Option func(*Service)

// WithCache enables membership caching. The cache must be invalidated through
// Service.Invalidate on every membership mutation.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithStoreTimeout bounds each membership lookup. A timeout is a Deny.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// Service resolves organization roles and answers allow/deny questions.
//
// Invariants:
// - Fail-closed: every error path returns Deny.
// - Tenant isolation: a role in one organization says nothing about another.
// - Stateless per call apart from the optional cache; safe for concurrent use.
type Service struct {
	store        MembershipStore
	cache        Cache
	observers    []Observer
	storeTimeout time.Duration
}

func NewService(store MembershipStore, opts ...Option) *Service {
	s := &Service{store: store, storeTimeout: defaultStoreTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveRole returns the role of the principal's active membership in the organization.
// found=false covers a missing organization, a missing membership and a deactivated one alike.
func (s *Service) ResolveRole(ctx context.Context, principalID, organizationID string) (Role, bool, error) {
	key, err := newKey(principalID, organizationID)
	if err != nil {
		return RoleNone, false, err
	}
	role, err := s.lookup(ctx, key)
	if err != nil {
		return RoleNone, false, err
	}
	return role, role != RoleNone, nil
}

// Evaluate resolves the role and applies the policy table for the action class.
// The returned Result always carries Deny when err is non-nil.
func (s *Service) Evaluate(ctx context.Context, principalID, organizationID string, action ActionClass) (Result, error) {
	res := Result{
		PrincipalID:    principalID,
		OrganizationID: organizationID,
		Action:         action,
		Decision:       Deny,
	}

	key, err := newKey(principalID, organizationID)
	if err != nil {
		s.observe(ctx, res, err)
		return res, err
	}
	res.PrincipalID, res.OrganizationID = key.PrincipalID, key.OrganizationID

	role, err := s.lookup(ctx, key)
	if err != nil {
		logger.From(ctx).Error("membership lookup failed",
			"principal_id", key.PrincipalID,
			"organization_id", key.OrganizationID,
			"action", action.String(),
			"err", err,
		)
		s.observe(ctx, res, err)
		return res, err
	}

	res.Role = role
	if role.Valid() && Permits(action, role) {
		res.Decision = Allow
	} else {
		logger.From(ctx).Debug("access denied",
			"principal_id", key.PrincipalID,
			"organization_id", key.OrganizationID,
			"action", action.String(),
			"role", role.String(),
		)
	}
	s.observe(ctx, res, nil)
	return res, nil
}

// Authorize answers whether the principal may perform an action of the given class in the organization.
func (s *Service) Authorize(ctx context.Context, principalID, organizationID string, action ActionClass) (Decision, error) {
	res, err := s.Evaluate(ctx, principalID, organizationID, action)
	if err != nil {
		return Deny, err
	}
	return res.Decision, nil
}

// AuthorizeResourceOwner checks against the organization stored on an existing resource.
// Callers must pass the organization id read from the resource row, never one taken from the request.
func (s *Service) AuthorizeResourceOwner(ctx context.Context, principalID, resourceOrganizationID string, action ActionClass) (Decision, error) {
	return s.Authorize(ctx, principalID, resourceOrganizationID, action)
}

// AuthorizeCreate checks the client-supplied organization of a record that does not exist yet.
// It must be called before the record is persisted.
func (s *Service) AuthorizeCreate(ctx context.Context, principalID, requestedOrganizationID string, action ActionClass) (Decision, error) {
	return s.Authorize(ctx, principalID, requestedOrganizationID, action)
}

// Invalidate drops any cached membership for the pair. Membership writers call it
// synchronously after committing a role change, activation or deactivation.
func (s *Service) Invalidate(ctx context.Context, principalID, organizationID string) error {
	if s.cache == nil {
		return nil
	}
	key, err := newKey(principalID, organizationID)
	if err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, key)
}

func (s *Service) lookup(ctx context.Context, key Key) (Role, error) {
	var epoch uint64
	fill := false
	if s.cache != nil {
		entry, e, ok, err := s.cache.Lookup(ctx, key)
		switch {
		case err != nil:
			// Cache trouble is never a decision; fall through to the store.
			logger.From(ctx).Warn("membership cache lookup failed", "err", err)
		case ok:
			s.observeCache(true)
			return entry.Role, nil
		default:
			s.observeCache(false)
			epoch = e
			fill = true
		}
	}

	role, err := s.fetch(ctx, key)
	if err != nil {
		return RoleNone, err
	}

	if fill {
		if err := s.cache.Store(ctx, key, epoch, Entry{Role: role}); err != nil {
			logger.From(ctx).Warn("membership cache store failed", "err", err)
		}
	}
	return role, nil
}

func (s *Service) fetch(ctx context.Context, key Key) (Role, error) {
	if s.store == nil {
		return RoleNone, fmt.Errorf("%w: store not configured", ErrStoreUnavailable)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	rec, found, err := s.store.FindActiveMembership(callCtx, key.PrincipalID, key.OrganizationID)
	if err != nil {
		return RoleNone, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if err := callCtx.Err(); err != nil {
		return RoleNone, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if !found || !rec.Active {
		return RoleNone, nil
	}

	role, err := ParseRole(rec.Role)
	if err != nil {
		logger.From(ctx).Warn("membership carries unknown role; treating as no membership",
			"principal_id", key.PrincipalID,
			"organization_id", key.OrganizationID,
			"role", rec.Role,
		)
		return RoleNone, nil
	}
	return role, nil
}

func (s *Service) observe(ctx context.Context, r Result, err error) {
	for _, o := range s.observers {
		o.ObserveDecision(ctx, r, err)
	}
}

func (s *Service) observeCache(hit bool) {
	for _, o := range s.observers {
		o.ObserveCacheLookup(hit)
	}
}

// ValidateID reports ErrMalformedIdentifier unless id is a UUID.
// It returns the canonical lower-case form.
func ValidateID(id string) (string, error) {
	if id == "" {
		return "", ErrMalformedIdentifier
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrMalformedIdentifier, id)
	}
	return u.String(), nil
}

func newKey(principalID, organizationID string) (Key, error) {
	p, err := ValidateID(principalID)
	if err != nil {
		return Key{}, err
	}
	o, err := ValidateID(organizationID)
	if err != nil {
		return Key{}, err
	}
	return Key{PrincipalID: p, OrganizationID: o}, nil
}

// CheckRecord evaluates a membership row read inside a write transaction. It returns the row's
// role, or ErrAccessDenied unless the row is active with a known role permitted for action.
func CheckRecord(rec MembershipRecord, found bool, action ActionClass) (Role, error) {
	if !found || !rec.Active {
		return RoleNone, ErrAccessDenied
	}
	role, err := ParseRole(rec.Role)
	if err != nil || !Permits(action, role) {
		return RoleNone, ErrAccessDenied
	}
	return role, nil
}
