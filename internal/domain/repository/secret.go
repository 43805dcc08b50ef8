package repository

import (
	"context"
	"time"
)

// SecretKind indica el propósito del secreto de un solo uso.
type SecretKind string

const (
	SecretOTPLogin      SecretKind = "otp_login"
	SecretPasswordReset SecretKind = "password_reset"
)

// OneTimeSecret representa un OTP o token de reset. Solo se guarda el hash.
type OneTimeSecret struct {
	ID         string
	UserID     string
	Kind       SecretKind
	SecretHash string
	ExpiresAt  time.Time
	Used       bool
	CreatedAt  time.Time
}

// IssueSecretInput contiene los datos para emitir un secreto.
type IssueSecretInput struct {
	UserID     string
	Kind       SecretKind
	SecretHash string
	ExpiresAt  time.Time
}

// SecretRepository define operaciones sobre secretos de un solo uso.
type SecretRepository interface {
	// Issue marca como usados todos los secretos no usados de (user, kind) e
	// inserta el nuevo, de forma atómica. Queda a lo sumo uno activo.
	Issue(ctx context.Context, input IssueSecretInput) (*OneTimeSecret, error)

	// LatestUnused retorna el secreto no usado más reciente de (user, kind).
	// Retorna ErrNotFound si no hay ninguno.
	LatestUnused(ctx context.Context, userID string, kind SecretKind) (*OneTimeSecret, error)

	// GetByHash busca un secreto por hash y kind.
	// Retorna ErrNotFound si no existe.
	GetByHash(ctx context.Context, kind SecretKind, secretHash string) (*OneTimeSecret, error)

	// MarkUsed marca el secreto como usado si sigue sin usar y no expiró a now.
	// Retorna ErrAlreadyConsumed si perdió el compare-and-set.
	MarkUsed(ctx context.Context, secretID string, now time.Time) error

	// DeleteExpired elimina secretos expirados o usados (cleanup job).
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
