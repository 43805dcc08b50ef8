package pg

import (
	"context"

	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/jackc/pgx/v5"
)

type roleRepo Store

// FindOrCreate usa un upsert no-op para que RETURNING siempre traiga la fila.
func (r *roleRepo) FindOrCreate(ctx context.Context, appID, name string) (*repository.Role, error) {
	var role repository.Role
	err := r.pool.QueryRow(ctx, `
		INSERT INTO roles (app_id, name) VALUES ($1, $2)
		ON CONFLICT (app_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id::text, app_id::text, name, created_at`, appID, name,
	).Scan(&role.ID, &role.AppID, &role.Name, &role.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &role, nil
}

func (r *roleRepo) ListByApp(ctx context.Context, appID string) ([]repository.Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, app_id::text, name, created_at FROM roles
		WHERE app_id = $1 ORDER BY name`, appID)
	if err != nil {
		return nil, mapErr(err)
	}
	roles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (repository.Role, error) {
		var role repository.Role
		err := row.Scan(&role.ID, &role.AppID, &role.Name, &role.CreatedAt)
		return role, err
	})
	return roles, mapErr(err)
}

func (r *roleRepo) Assign(ctx context.Context, userID, roleID string, assignedBy *string) (*repository.UserAppRole, error) {
	var a repository.UserAppRole
	err := r.pool.QueryRow(ctx, `
		INSERT INTO user_app_roles (user_id, role_id, assigned_by) VALUES ($1, $2, $3)
		RETURNING id::text, user_id::text, role_id::text, assigned_by::text, assigned_at`,
		userID, roleID, assignedBy,
	).Scan(&a.ID, &a.UserID, &a.RoleID, &a.AssignedBy, &a.AssignedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (r *roleRepo) Unassign(ctx context.Context, userID, roleID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_app_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *roleRepo) RoleNamesForUser(ctx context.Context, userID, appID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.name FROM user_app_roles ua
		JOIN roles r ON r.id = ua.role_id
		WHERE ua.user_id = $1 AND r.app_id = $2
		ORDER BY r.name`, userID, appID)
	if err != nil {
		return nil, mapErr(err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapErr(err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// HasAnyRoleNamed busca en todas las apps.
func (r *roleRepo) HasAnyRoleNamed(ctx context.Context, userID string, names []string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_app_roles ua
			JOIN roles r ON r.id = ua.role_id
			WHERE ua.user_id = $1 AND r.name = ANY($2)
		)`, userID, names,
	).Scan(&ok)
	if err != nil {
		return false, mapErr(err)
	}
	return ok, nil
}
