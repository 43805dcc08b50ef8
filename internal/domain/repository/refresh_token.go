package repository

import (
	"context"
	"time"
)

// RefreshToken representa un refresh token persistido. Solo se guarda el
// SHA-256 del token opaco.
type RefreshToken struct {
	ID         string
	TokenHash  string
	UserID     string
	AppID      string
	ExpiresAt  time.Time
	Revoked    bool
	DeviceInfo map[string]string
	CreatedAt  time.Time
}

// CreateRefreshTokenInput contiene los datos para crear un refresh token.
type CreateRefreshTokenInput struct {
	TokenHash  string
	UserID     string
	AppID      string
	ExpiresAt  time.Time
	DeviceInfo map[string]string
}

// RefreshTokenRepository define operaciones sobre refresh tokens.
type RefreshTokenRepository interface {
	// Create crea un nuevo refresh token.
	Create(ctx context.Context, input CreateRefreshTokenInput) (*RefreshToken, error)

	// GetByHash busca un token por su hash (incluye revocados y expirados).
	// Retorna ErrNotFound si no existe.
	GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// Rotate revoca atómicamente el token oldHash (revoked=false → true) e
	// inserta el reemplazo en la misma transacción.
	// Retorna ErrAlreadyConsumed si otro request lo revocó primero.
	Rotate(ctx context.Context, oldHash string, next CreateRefreshTokenInput) (*RefreshToken, error)

	// Revoke marca el token como revocado. Idempotente: no falla si ya estaba
	// revocado. Retorna ErrNotFound si no existe.
	Revoke(ctx context.Context, tokenHash string) error

	// RevokeAllByUser revoca todos los tokens vivos del usuario.
	// Retorna el número de tokens revocados.
	RevokeAllByUser(ctx context.Context, userID string) (int, error)

	// DeleteExpired elimina tokens expirados antes de now (cleanup job).
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
