package postgres

import (
	"context"
	"database/sql"

	"tenant-platform/internal/audit"
)

// AuditRepo implements audit.Repository. It only ever inserts.
type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Append(ctx context.Context, e audit.Event) error {
	const q = `
INSERT INTO audit_events (
  id, organization_id, type, actor_principal_id, actor_role, target_principal_id,
  action, message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.OrganizationID,
		string(e.Type),
		e.ActorPrincipalID,
		e.ActorRole,
		e.TargetPrincipalID,
		e.Action,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return mapPostgresError(err)
}
