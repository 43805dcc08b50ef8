// Package authz resuelve roles por app, el escalamiento a superadmin y el
// registro de apps cliente.
package authz

import (
	"context"
	"strings"

	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/dropDatabas3/rugi-auth/internal/observability/logger"
	"github.com/dropDatabas3/rugi-auth/internal/validation"
	"golang.org/x/sync/errgroup"
)

// Access es el resultado de ResolveAccess.
type Access struct {
	Roles      []string
	SuperAdmin bool
}

type Resolver struct {
	repo repository.Repository
}

func NewResolver(repo repository.Repository) *Resolver {
	return &Resolver{repo: repo}
}

// GetRoles devuelve los nombres de rol del usuario en la app.
func (r *Resolver) GetRoles(ctx context.Context, userID, appID string) ([]string, error) {
	roles, err := r.repo.Roles().RoleNamesForUser(ctx, userID, appID)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	return roles, nil
}

// IsSuperAdmin indica si el usuario tiene owner/admin en alguna app.
func (r *Resolver) IsSuperAdmin(ctx context.Context, userID string) (bool, error) {
	ok, err := r.repo.Roles().HasAnyRoleNamed(ctx, userID, SuperAdminRoles())
	if err != nil {
		return false, autherr.Internal(err)
	}
	return ok, nil
}

// ResolveAccess aplica el gate de membresía: el usuario debe estar opted-in
// en la app. Tener un rol en ella no alcanza. Los superadmins pasan siempre.
func (r *Resolver) ResolveAccess(ctx context.Context, user *repository.User, appID string) (Access, error) {
	var acc Access
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		roles, err := r.GetRoles(gctx, user.ID, appID)
		acc.Roles = roles
		return err
	})
	g.Go(func() error {
		super, err := r.IsSuperAdmin(gctx, user.ID)
		acc.SuperAdmin = super
		return err
	})
	if err := g.Wait(); err != nil {
		return Access{}, err
	}
	if acc.Roles == nil {
		acc.Roles = []string{}
	}

	if acc.SuperAdmin || user.HasOptedIn(appID) {
		return acc, nil
	}
	return Access{}, autherr.ErrForbidden.WithMessage("user is not a member of this app")
}

// AssignRole busca o crea el rol en la app y se lo asigna al usuario.
func (r *Resolver) AssignRole(ctx context.Context, userID, appID, roleName string, assignedBy *string) (*repository.UserAppRole, error) {
	roleName = strings.TrimSpace(roleName)
	if roleName == "" {
		return nil, autherr.ErrInvalidInput.WithMessage("role name required")
	}
	if !validation.ValidRoleName(roleName) {
		return nil, autherr.ErrInvalidInput.WithMessage("invalid role name")
	}
	if _, err := r.repo.Users().GetByID(ctx, userID); err != nil {
		return nil, mapRepoErr(err, "user")
	}
	if _, err := r.repo.Apps().GetByID(ctx, appID); err != nil {
		return nil, mapRepoErr(err, "app")
	}
	role, err := r.repo.Roles().FindOrCreate(ctx, appID, roleName)
	if err != nil {
		return nil, mapRepoErr(err, "role")
	}
	ua, err := r.repo.Roles().Assign(ctx, userID, role.ID, assignedBy)
	if err != nil {
		return nil, mapRepoErr(err, "role assignment")
	}

	logger.From(ctx).Info("role assigned",
		logger.Layer("service"), logger.Component("authz"),
		logger.UserID(userID), logger.AppID(appID), logger.Role(roleName))
	return ua, nil
}

// RemoveRole quita el rol; NOT_FOUND si no estaba asignado.
func (r *Resolver) RemoveRole(ctx context.Context, userID, appID, roleName string) error {
	roles, err := r.repo.Roles().ListByApp(ctx, appID)
	if err != nil {
		return autherr.Internal(err)
	}
	name := strings.TrimSpace(roleName)
	for _, role := range roles {
		if role.Name == name {
			return mapRepoErr(r.repo.Roles().Unassign(ctx, userID, role.ID), "role assignment")
		}
	}
	return autherr.ErrNotFound.WithMessage("role not found")
}

// OptIn agrega la app a las apps del usuario. Idempotente.
func (r *Resolver) OptIn(ctx context.Context, userID, appID string) error {
	return mapRepoErr(r.repo.Users().OptIn(ctx, userID, appID), "user or app")
}
