package pg

import (
	"context"

	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/jackc/pgx/v5"
)

type userRepo Store

const userColumns = `
	u.id::text, u.email, u.password_hash, u.email_verified, u.mfa_enabled,
	ARRAY(SELECT o.app_id::text FROM user_app_optins o WHERE o.user_id = u.id ORDER BY o.created_at, o.app_id),
	u.registration_method, u.oauth_provider, u.oauth_provider_id, u.created_at, u.updated_at`

func scanUser(row pgx.Row) (*repository.User, error) {
	var (
		u      repository.User
		method string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.EmailVerified, &u.MFAEnabled,
		&u.OptedInApps, &method, &u.OAuthProvider, &u.OAuthProviderID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	u.RegistrationMethod = repository.RegistrationMethod(method)
	return &u, nil
}

func (r *userRepo) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback(ctx, tx)

	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, email_verified, registration_method, oauth_provider, oauth_provider_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text`,
		in.Email, in.PasswordHash, in.EmailVerified, string(in.RegistrationMethod), in.OAuthProvider, in.OAuthProviderID,
	).Scan(&id)
	if err != nil {
		return nil, mapErr(err)
	}
	if in.OptInAppID != "" {
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_app_optins (user_id, app_id) VALUES ($1, $2)`, id, in.OptInAppID); err != nil {
			return nil, mapErr(err)
		}
	}
	u, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *userRepo) GetByID(ctx context.Context, userID string) (*repository.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, userID))
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.email = $1`, email))
}

func (r *userRepo) GetByOAuth(ctx context.Context, provider, providerID string) (*repository.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.oauth_provider = $1 AND u.oauth_provider_id = $2`,
		provider, providerID))
}

func (r *userRepo) LinkOAuth(ctx context.Context, userID, provider, providerID string) error {
	return r.execOne(ctx, `
		UPDATE users SET oauth_provider = $2, oauth_provider_id = $3, updated_at = now()
		WHERE id = $1`, userID, provider, providerID)
}

func (r *userRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return r.execOne(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, userID, passwordHash)
}

func (r *userRepo) SetEmailVerified(ctx context.Context, userID string) error {
	return r.execOne(ctx,
		`UPDATE users SET email_verified = true, updated_at = now() WHERE id = $1`, userID)
}

func (r *userRepo) OptIn(ctx context.Context, userID, appID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_app_optins (user_id, app_id) VALUES ($1, $2)
		ON CONFLICT (user_id, app_id) DO NOTHING`, userID, appID)
	return mapErr(err)
}

// Delete borra el usuario; FKs en cascada limpian opt-ins, roles, tokens y
// secretos. La auditoría queda con user_id NULL.
func (r *userRepo) Delete(ctx context.Context, userID string) error {
	return r.execOne(ctx, `DELETE FROM users WHERE id = $1`, userID)
}

// execOne ejecuta un UPDATE/DELETE por id y devuelve ErrNotFound si no tocó filas.
func (r *userRepo) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
