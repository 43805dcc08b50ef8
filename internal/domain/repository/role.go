package repository

import (
	"context"
	"time"
)

// Role representa un rol del catálogo de una app.
type Role struct {
	ID        string
	AppID     string
	Name      string
	CreatedAt time.Time
}

// UserAppRole es la asignación de un rol a un usuario.
type UserAppRole struct {
	ID         string
	UserID     string
	RoleID     string
	AssignedBy *string
	AssignedAt time.Time
}

// RoleRepository define operaciones sobre roles y asignaciones.
type RoleRepository interface {
	// FindOrCreate devuelve el rol (app, name), creándolo si no existe.
	FindOrCreate(ctx context.Context, appID, name string) (*Role, error)

	// ListByApp lista el catálogo de roles de una app.
	ListByApp(ctx context.Context, appID string) ([]Role, error)

	// Assign asigna el rol al usuario.
	// Retorna ErrConflict si la asignación ya existe.
	Assign(ctx context.Context, userID, roleID string, assignedBy *string) (*UserAppRole, error)

	// Unassign quita el rol del usuario.
	// Retorna ErrNotFound si no estaba asignado.
	Unassign(ctx context.Context, userID, roleID string) error

	// RoleNamesForUser retorna los nombres de roles del usuario en la app.
	RoleNamesForUser(ctx context.Context, userID, appID string) ([]string, error)

	// HasAnyRoleNamed indica si el usuario tiene, en cualquier app, algún rol
	// cuyo nombre esté en names.
	HasAnyRoleNamed(ctx context.Context, userID string, names []string) (bool, error)
}
