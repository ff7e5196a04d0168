package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tenant-platform/internal/membership"
	"tenant-platform/internal/rbac"
	"tenant-platform/pkg/utils"

	"github.com/jackc/pgerrcode"
)

// MembershipStore implements rbac.MembershipStore and membership.Repository.
type MembershipStore struct {
	db *sql.DB
}

func NewMembershipStore(db *sql.DB) *MembershipStore {
	return &MembershipStore{db: db}
}

// FindActiveMembership reads role and active from one row. A missing organization, a missing
// membership and a deactivated one all return found=false.
func (s *MembershipStore) FindActiveMembership(ctx context.Context, principalID, organizationID string) (rbac.MembershipRecord, bool, error) {
	const q = `
SELECT m.role, m.active
FROM memberships m
JOIN organizations o ON o.id = m.organization_id
WHERE m.principal_id = $1 AND m.organization_id = $2 AND m.active
`
	var rec rbac.MembershipRecord
	err := s.db.QueryRowContext(ctx, q, principalID, organizationID).Scan(&rec.Role, &rec.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rbac.MembershipRecord{}, false, nil
		}
		return rbac.MembershipRecord{}, false, mapPostgresError(err)
	}
	return rec, true, nil
}

func (s *MembershipStore) CreateOrganization(ctx context.Context, org membership.Organization, owner membership.Membership) error {
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const insertOrg = `
INSERT INTO organizations (id, name, created_at)
VALUES ($1, $2, $3)
`
		if _, err := tx.ExecContext(ctx, insertOrg, org.ID, org.Name, org.CreatedAt); err != nil {
			if pgCode(err) == pgerrcode.UniqueViolation {
				return membership.ErrInvalidArgument
			}
			return mapPostgresError(err)
		}
		return insertMembership(ctx, tx, owner)
	})
}

func (s *MembershipStore) Get(ctx context.Context, organizationID, principalID string) (membership.Membership, error) {
	const q = `
SELECT id, organization_id, principal_id, role, active, joined_at, updated_at
FROM memberships
WHERE organization_id = $1 AND principal_id = $2
`
	m, err := scanMembership(s.db.QueryRowContext(ctx, q, organizationID, principalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return membership.Membership{}, membership.ErrNotFound
		}
		return membership.Membership{}, mapPostgresError(err)
	}
	return m, nil
}

func (s *MembershipStore) List(ctx context.Context, organizationID string) ([]membership.Membership, error) {
	const q = `
SELECT id, organization_id, principal_id, role, active, joined_at, updated_at
FROM memberships
WHERE organization_id = $1 AND active
ORDER BY joined_at ASC
`
	rows, err := s.db.QueryContext(ctx, q, organizationID)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	out := make([]membership.Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(err)
	}
	return out, nil
}

func (s *MembershipStore) Insert(ctx context.Context, m membership.Membership, g membership.ActorGuard) error {
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		actor, found, err := shareLockMembership(ctx, tx, m.OrganizationID, g.PrincipalID)
		if err != nil {
			return err
		}
		if err := g.Check(actor, found, nil, m.Role); err != nil {
			return err
		}
		return insertMembership(ctx, tx, m)
	})
}

// UpdateRoleActive locks the organization's active owners before touching the target row, so two
// concurrent owner removals serialize and the second sees the first's result. The actor's row is
// share-locked after the target's, so a concurrent revocation of the actor aborts the write.
func (s *MembershipStore) UpdateRoleActive(ctx context.Context, u membership.Update, g membership.ActorGuard) (membership.Membership, error) {
	var out membership.Membership
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		owners, err := lockActiveOwners(ctx, tx, u.OrganizationID)
		if err != nil {
			return err
		}

		const current = `
SELECT id, organization_id, principal_id, role, active, joined_at, updated_at
FROM memberships
WHERE organization_id = $1 AND principal_id = $2
FOR UPDATE
`
		var target *membership.Membership
		cur, err := scanMembership(tx.QueryRowContext(ctx, current, u.OrganizationID, u.PrincipalID))
		switch {
		case err == nil:
			target = &cur
		case !errors.Is(err, sql.ErrNoRows):
			return mapPostgresError(err)
		}

		actor, found, err := shareLockMembership(ctx, tx, u.OrganizationID, g.PrincipalID)
		if err != nil {
			return err
		}
		if err := g.Check(actor, found, target, u.Role); err != nil {
			return err
		}
		if target == nil {
			return membership.ErrNotFound
		}
		if err := u.CheckTransition(cur, len(owners)); err != nil {
			return err
		}

		const update = `
UPDATE memberships
SET role = $3, active = $4, updated_at = $5
WHERE organization_id = $1 AND principal_id = $2
RETURNING id, organization_id, principal_id, role, active, joined_at, updated_at
`
		out, err = scanMembership(tx.QueryRowContext(ctx, update, u.OrganizationID, u.PrincipalID, u.Role.String(), u.Active, u.At))
		if err != nil {
			return mapPostgresError(err)
		}
		return nil
	})
	if err != nil {
		return membership.Membership{}, err
	}
	return out, nil
}

// shareLockMembership reads role and active of one membership row under FOR SHARE.
func shareLockMembership(ctx context.Context, tx *sql.Tx, organizationID, principalID string) (rbac.MembershipRecord, bool, error) {
	const q = `
SELECT role, active
FROM memberships
WHERE principal_id = $1 AND organization_id = $2
FOR SHARE
`
	var rec rbac.MembershipRecord
	err := tx.QueryRowContext(ctx, q, principalID, organizationID).Scan(&rec.Role, &rec.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rbac.MembershipRecord{}, false, nil
		}
		return rbac.MembershipRecord{}, false, mapPostgresError(err)
	}
	return rec, true, nil
}

func lockActiveOwners(ctx context.Context, tx *sql.Tx, organizationID string) ([]string, error) {
	const q = `
SELECT principal_id
FROM memberships
WHERE organization_id = $1 AND role = 'owner' AND active
ORDER BY principal_id
FOR UPDATE
`
	rows, err := tx.QueryContext(ctx, q, organizationID)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		owners = append(owners, p)
	}
	return owners, rows.Err()
}

func insertMembership(ctx context.Context, tx *sql.Tx, m membership.Membership) error {
	const q = `
INSERT INTO memberships (id, organization_id, principal_id, role, active, joined_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`
	_, err := tx.ExecContext(ctx, q,
		m.ID,
		m.OrganizationID,
		m.PrincipalID,
		m.Role.String(),
		m.Active,
		m.JoinedAt,
		m.UpdatedAt,
	)
	switch pgCode(err) {
	case "":
	case pgerrcode.UniqueViolation:
		return membership.ErrAlreadyMember
	case pgerrcode.ForeignKeyViolation:
		return membership.ErrNotFound
	}
	return mapPostgresError(err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMembership(row rowScanner) (membership.Membership, error) {
	var (
		m    membership.Membership
		role string
	)
	if err := row.Scan(
		&m.ID,
		&m.OrganizationID,
		&m.PrincipalID,
		&role,
		&m.Active,
		&m.JoinedAt,
		&m.UpdatedAt,
	); err != nil {
		return membership.Membership{}, err
	}
	r, err := rbac.ParseRole(role)
	if err != nil {
		return membership.Membership{}, fmt.Errorf("membership %s: %w", m.ID, err)
	}
	m.Role = r
	return m, nil
}
