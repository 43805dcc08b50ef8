package pg

import (
	"context"

	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
)

type auditRepo Store

func (r *auditRepo) Append(ctx context.Context, ev repository.AuditEvent) error {
	var id *string
	if ev.ID != "" {
		id = &ev.ID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_events (id, user_id, action, metadata, created_at)
		VALUES (COALESCE($1::uuid, gen_random_uuid()), $2, $3, $4, COALESCE($5, now()))`,
		id, ev.UserID, string(ev.Action), ev.Metadata, nullTime(ev))
	return mapErr(err)
}

func nullTime(ev repository.AuditEvent) any {
	if ev.CreatedAt.IsZero() {
		return nil
	}
	return ev.CreatedAt
}

// ListByUser devuelve los eventos más recientes primero.
func (r *auditRepo) ListByUser(ctx context.Context, userID string, limit int) ([]repository.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, user_id::text, action, metadata, created_at
		FROM audit_events WHERE user_id = $1
		ORDER BY seq DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []repository.AuditEvent
	for rows.Next() {
		var (
			ev     repository.AuditEvent
			action string
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &action, &ev.Metadata, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Action = repository.AuditAction(action)
		out = append(out, ev)
	}
	return out, rows.Err()
}
