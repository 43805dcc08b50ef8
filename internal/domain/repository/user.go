package repository

import (
	"context"
	"time"
)

// RegistrationMethod indica cómo se creó la cuenta.
type RegistrationMethod string

const (
	RegistrationPassword RegistrationMethod = "password"
	RegistrationOAuth    RegistrationMethod = "oauth"
	RegistrationInvite   RegistrationMethod = "invite"
)

// User representa un usuario del directorio compartido por todas las apps.
type User struct {
	ID                 string
	Email              string
	PasswordHash       *string // nil para cuentas solo-OAuth
	EmailVerified      bool
	MFAEnabled         bool
	OptedInApps        []string // IDs de apps
	RegistrationMethod RegistrationMethod
	OAuthProvider      *string
	OAuthProviderID    *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasOptedIn indica si el usuario es miembro de la app.
func (u *User) HasOptedIn(appID string) bool {
	for _, id := range u.OptedInApps {
		if id == appID {
			return true
		}
	}
	return false
}

// CreateUserInput contiene los datos para crear un usuario.
type CreateUserInput struct {
	Email              string
	PasswordHash       *string
	EmailVerified      bool
	RegistrationMethod RegistrationMethod
	OAuthProvider      *string
	OAuthProviderID    *string
	// OptInAppID, si no está vacío, deja al usuario opted-in en esa app.
	OptInAppID string
}

// UserRepository define operaciones sobre usuarios.
type UserRepository interface {
	// Create crea un usuario.
	// Retorna ErrConflict si el email o el par (provider, providerID) ya existe.
	Create(ctx context.Context, input CreateUserInput) (*User, error)

	// GetByID busca un usuario por ID.
	// Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, userID string) (*User, error)

	// GetByEmail busca un usuario por email (ya normalizado).
	// Retorna ErrNotFound si no existe.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByOAuth busca un usuario por proveedor externo.
	// Retorna ErrNotFound si no existe.
	GetByOAuth(ctx context.Context, provider, providerID string) (*User, error)

	// LinkOAuth asocia una identidad externa a un usuario existente.
	// Retorna ErrConflict si el par ya pertenece a otro usuario.
	LinkOAuth(ctx context.Context, userID, provider, providerID string) error

	// UpdatePassword reemplaza el hash de password.
	UpdatePassword(ctx context.Context, userID, passwordHash string) error

	// SetEmailVerified marca el email como verificado.
	SetEmailVerified(ctx context.Context, userID string) error

	// OptIn agrega la app al set de apps del usuario. Idempotente.
	OptIn(ctx context.Context, userID, appID string) error

	// Delete elimina el usuario en cascada (refresh tokens, roles, secretos).
	// Los eventos de auditoría quedan con user_id NULL.
	// Retorna ErrNotFound si no existe.
	Delete(ctx context.Context, userID string) error
}
