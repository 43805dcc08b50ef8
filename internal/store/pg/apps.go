package pg

import (
	"context"

	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/jackc/pgx/v5"
)

type appRepo Store

const appColumns = `id::text, name, client_id, type, client_secret_hash, redirect_uris, created_at`

func scanApp(row pgx.Row) (*repository.App, error) {
	var (
		a   repository.App
		typ string
	)
	if err := row.Scan(&a.ID, &a.Name, &a.ClientID, &typ, &a.ClientSecretHash, &a.RedirectURIs, &a.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	a.Type = repository.AppType(typ)
	return &a, nil
}

func (r *appRepo) Create(ctx context.Context, in repository.CreateAppInput) (*repository.App, error) {
	uris := in.RedirectURIs
	if uris == nil {
		uris = []string{}
	}
	return scanApp(r.pool.QueryRow(ctx, `
		INSERT INTO apps (name, client_id, type, client_secret_hash, redirect_uris)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+appColumns,
		in.Name, in.ClientID, string(in.Type), in.ClientSecretHash, uris))
}

func (r *appRepo) GetByID(ctx context.Context, appID string) (*repository.App, error) {
	return scanApp(r.pool.QueryRow(ctx, `SELECT `+appColumns+` FROM apps WHERE id = $1`, appID))
}

func (r *appRepo) GetByClientID(ctx context.Context, clientID string) (*repository.App, error) {
	return scanApp(r.pool.QueryRow(ctx, `SELECT `+appColumns+` FROM apps WHERE client_id = $1`, clientID))
}

func (r *appRepo) List(ctx context.Context) ([]repository.App, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+appColumns+` FROM apps ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []repository.App{}
	for rows.Next() {
		a, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// PromoteToConfidential solo transiciona PUBLIC → CONFIDENTIAL. Si la app ya
// es confidencial devuelve ErrConflict.
func (r *appRepo) PromoteToConfidential(ctx context.Context, appID, secretHash string) (*repository.App, error) {
	a, err := scanApp(r.pool.QueryRow(ctx, `
		UPDATE apps SET type = 'CONFIDENTIAL', client_secret_hash = $2
		WHERE id = $1 AND type = 'PUBLIC'
		RETURNING `+appColumns, appID, secretHash))
	if err == nil || !repository.IsNotFound(err) {
		return a, err
	}
	if _, err := r.GetByID(ctx, appID); err != nil {
		return nil, err
	}
	return nil, repository.ErrConflict
}
