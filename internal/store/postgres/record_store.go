package postgres

import (
	"context"
	"database/sql"
	"errors"

	"tenant-platform/internal/records"
	"tenant-platform/pkg/utils"

	"github.com/jackc/pgerrcode"
)

// RecordStore implements records.Repository. Every write runs the guard and the write in one
// transaction.
type RecordStore struct {
	db *sql.DB
}

func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db}
}

// checkGuard share-locks the writer's membership row so a concurrent role change or
// deactivation either commits before the check or waits for the write to finish.
func checkGuard(ctx context.Context, tx *sql.Tx, organizationID string, g records.Guard) error {
	rec, found, err := shareLockMembership(ctx, tx, organizationID, g.PrincipalID)
	if err != nil {
		return err
	}
	return g.Check(rec, found)
}

func (s *RecordStore) CreateCustomer(ctx context.Context, c records.Customer, g records.Guard) error {
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := checkGuard(ctx, tx, c.OrganizationID, g); err != nil {
			return err
		}
		const q = `
INSERT INTO customers (id, organization_id, name, email, phone, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`
		_, err := tx.ExecContext(ctx, q, c.ID, c.OrganizationID, c.Name, c.Email, c.Phone, c.CreatedAt, c.UpdatedAt)
		if pgCode(err) == pgerrcode.UniqueViolation {
			return records.ErrConflict
		}
		return mapPostgresError(err)
	})
}

func (s *RecordStore) GetCustomer(ctx context.Context, id string) (records.Customer, error) {
	const q = `
SELECT id, organization_id, name, email, phone, created_at, updated_at
FROM customers
WHERE id = $1
`
	c, err := scanCustomer(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return records.Customer{}, records.ErrNotFound
		}
		return records.Customer{}, mapPostgresError(err)
	}
	return c, nil
}

func (s *RecordStore) ListCustomers(ctx context.Context, organizationID string) ([]records.Customer, error) {
	const q = `
SELECT id, organization_id, name, email, phone, created_at, updated_at
FROM customers
WHERE organization_id = $1
ORDER BY created_at ASC
`
	rows, err := s.db.QueryContext(ctx, q, organizationID)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	out := make([]records.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(err)
	}
	return out, nil
}

func (s *RecordStore) UpdateCustomer(ctx context.Context, c records.Customer, g records.Guard) (records.Customer, error) {
	var out records.Customer
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := checkGuard(ctx, tx, c.OrganizationID, g); err != nil {
			return err
		}
		const q = `
UPDATE customers
SET name = $3, email = $4, phone = $5, updated_at = $6
WHERE id = $1 AND organization_id = $2
RETURNING id, organization_id, name, email, phone, created_at, updated_at
`
		var err error
		out, err = scanCustomer(tx.QueryRowContext(ctx, q, c.ID, c.OrganizationID, c.Name, c.Email, c.Phone, c.UpdatedAt))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return records.ErrNotFound
			}
			return mapPostgresError(err)
		}
		return nil
	})
	if err != nil {
		return records.Customer{}, err
	}
	return out, nil
}

func (s *RecordStore) DeleteCustomer(ctx context.Context, organizationID, id string, g records.Guard) error {
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := checkGuard(ctx, tx, organizationID, g); err != nil {
			return err
		}
		const q = `DELETE FROM customers WHERE id = $1 AND organization_id = $2`
		res, err := tx.ExecContext(ctx, q, id, organizationID)
		if err != nil {
			return mapPostgresError(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return records.ErrNotFound
		}
		return nil
	})
}

func (s *RecordStore) CreateSpecies(ctx context.Context, sp records.Species, g records.Guard) error {
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := checkGuard(ctx, tx, sp.OrganizationID, g); err != nil {
			return err
		}
		const q = `
INSERT INTO species (id, organization_id, name, yield_ratio, created_at)
VALUES ($1, $2, $3, $4, $5)
`
		_, err := tx.ExecContext(ctx, q, sp.ID, sp.OrganizationID, sp.Name, sp.YieldRatio, sp.CreatedAt)
		switch pgCode(err) {
		case pgerrcode.UniqueViolation:
			return records.ErrConflict
		case pgerrcode.CheckViolation:
			return records.ErrInvalidArgument
		}
		return mapPostgresError(err)
	})
}

func (s *RecordStore) ListSpecies(ctx context.Context, organizationID string) ([]records.Species, error) {
	const q = `
SELECT id, organization_id, name, yield_ratio, created_at
FROM species
WHERE organization_id = $1
ORDER BY name ASC
`
	rows, err := s.db.QueryContext(ctx, q, organizationID)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	out := make([]records.Species, 0)
	for rows.Next() {
		var sp records.Species
		if err := rows.Scan(&sp.ID, &sp.OrganizationID, &sp.Name, &sp.YieldRatio, &sp.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(err)
	}
	return out, nil
}

func scanCustomer(row rowScanner) (records.Customer, error) {
	var c records.Customer
	err := row.Scan(
		&c.ID,
		&c.OrganizationID,
		&c.Name,
		&c.Email,
		&c.Phone,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}
