package pg

import (
	"context"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/jackc/pgx/v5"
)

type refreshRepo Store

const refreshColumns = `id::text, token_hash, user_id::text, app_id::text, expires_at, revoked, device_info, created_at`

func scanRefresh(row pgx.Row) (*repository.RefreshToken, error) {
	var t repository.RefreshToken
	err := row.Scan(&t.ID, &t.TokenHash, &t.UserID, &t.AppID, &t.ExpiresAt, &t.Revoked, &t.DeviceInfo, &t.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func deviceOrEmpty(d map[string]string) map[string]string {
	if d == nil {
		return map[string]string{}
	}
	return d
}

const insertRefresh = `
	INSERT INTO refresh_tokens (token_hash, user_id, app_id, expires_at, device_info)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING ` + refreshColumns

func (r *refreshRepo) Create(ctx context.Context, in repository.CreateRefreshTokenInput) (*repository.RefreshToken, error) {
	return scanRefresh(r.pool.QueryRow(ctx, insertRefresh,
		in.TokenHash, in.UserID, in.AppID, in.ExpiresAt, deviceOrEmpty(in.DeviceInfo)))
}

func (r *refreshRepo) GetByHash(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	return scanRefresh(r.pool.QueryRow(ctx,
		`SELECT `+refreshColumns+` FROM refresh_tokens WHERE token_hash = $1`, tokenHash))
}

// Rotate revoca oldHash e inserta next en la misma transacción. El UPDATE
// condicional hace de compare-and-swap: si otra rotación ganó, no afecta
// filas y se devuelve ErrAlreadyConsumed.
func (r *refreshRepo) Rotate(ctx context.Context, oldHash string, next repository.CreateRefreshTokenInput) (*repository.RefreshToken, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback(ctx, tx)

	var id string
	err = tx.QueryRow(ctx, `
		UPDATE refresh_tokens SET revoked = true
		WHERE token_hash = $1 AND NOT revoked
		RETURNING id::text`, oldHash).Scan(&id)
	switch {
	case err == nil:
	case repository.IsNotFound(mapErr(err)):
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE token_hash = $1)`, oldHash).Scan(&exists); err != nil {
			return nil, err
		}
		if exists {
			return nil, repository.ErrAlreadyConsumed
		}
		return nil, repository.ErrNotFound
	default:
		return nil, err
	}

	t, err := scanRefresh(tx.QueryRow(ctx, insertRefresh,
		next.TokenHash, next.UserID, next.AppID, next.ExpiresAt, deviceOrEmpty(next.DeviceInfo)))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// Revoke es idempotente sobre tokens ya revocados.
func (r *refreshRepo) Revoke(ctx context.Context, tokenHash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE refresh_tokens SET revoked = true WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *refreshRepo) RevokeAllByUser(ctx context.Context, userID string) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = true WHERE user_id = $1 AND NOT revoked`, userID)
	if err != nil {
		return 0, mapErr(err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *refreshRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
