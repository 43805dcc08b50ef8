package pg

import (
	"context"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/jackc/pgx/v5"
)

type secretRepo Store

const secretColumns = `id::text, user_id::text, kind, secret_hash, expires_at, used, created_at`

func scanSecret(row pgx.Row) (*repository.OneTimeSecret, error) {
	var (
		s    repository.OneTimeSecret
		kind string
	)
	if err := row.Scan(&s.ID, &s.UserID, &kind, &s.SecretHash, &s.ExpiresAt, &s.Used, &s.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	s.Kind = repository.SecretKind(kind)
	return &s, nil
}

// Issue invalida los secretos activos del mismo (usuario, tipo) y crea uno
// nuevo. El FOR UPDATE sobre el usuario serializa emisiones concurrentes
// para que nunca queden dos activos.
func (r *secretRepo) Issue(ctx context.Context, in repository.IssueSecretInput) (*repository.OneTimeSecret, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback(ctx, tx)

	var uid string
	if err := tx.QueryRow(ctx, `SELECT id::text FROM users WHERE id = $1 FOR UPDATE`, in.UserID).Scan(&uid); err != nil {
		return nil, mapErr(err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE one_time_secrets SET used = true
		WHERE user_id = $1 AND kind = $2 AND NOT used`, in.UserID, string(in.Kind)); err != nil {
		return nil, err
	}
	s, err := scanSecret(tx.QueryRow(ctx, `
		INSERT INTO one_time_secrets (user_id, kind, secret_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING `+secretColumns, in.UserID, string(in.Kind), in.SecretHash, in.ExpiresAt))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *secretRepo) LatestUnused(ctx context.Context, userID string, kind repository.SecretKind) (*repository.OneTimeSecret, error) {
	return scanSecret(r.pool.QueryRow(ctx, `
		SELECT `+secretColumns+` FROM one_time_secrets
		WHERE user_id = $1 AND kind = $2 AND NOT used
		ORDER BY created_at DESC LIMIT 1`, userID, string(kind)))
}

func (r *secretRepo) GetByHash(ctx context.Context, kind repository.SecretKind, secretHash string) (*repository.OneTimeSecret, error) {
	return scanSecret(r.pool.QueryRow(ctx, `
		SELECT `+secretColumns+` FROM one_time_secrets
		WHERE kind = $1 AND secret_hash = $2
		ORDER BY created_at DESC LIMIT 1`, string(kind), secretHash))
}

// MarkUsed consume el secreto si sigue sin usar y no venció a now.
func (r *secretRepo) MarkUsed(ctx context.Context, secretID string, now time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE one_time_secrets SET used = true
		WHERE id = $1 AND NOT used AND expires_at > $2`, secretID, now)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM one_time_secrets WHERE id = $1)`, secretID).Scan(&exists); err != nil {
		return mapErr(err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrAlreadyConsumed
}

// DeleteExpired purga vencidos y usados.
func (r *secretRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM one_time_secrets WHERE used OR expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
