package repository

import (
	"context"
	"time"
)

// AuditAction enumera las acciones auditadas.
type AuditAction string

const (
	AuditLogin                 AuditAction = "LOGIN"
	AuditRefresh               AuditAction = "REFRESH"
	AuditRevoke                AuditAction = "REVOKE"
	AuditRoleAssign            AuditAction = "ROLE_ASSIGN"
	AuditRegister              AuditAction = "REGISTER"
	AuditPasswordResetRequest  AuditAction = "PASSWORD_RESET_REQUEST"
	AuditPasswordResetComplete AuditAction = "PASSWORD_RESET_COMPLETE"
	AuditOTPRequest            AuditAction = "OTP_REQUEST"
	AuditOTPLogin              AuditAction = "OTP_LOGIN"
	AuditUserInvite            AuditAction = "USER_INVITE"
)

// AuditEvent es una fila append-only del log de auditoría.
type AuditEvent struct {
	ID        string
	UserID    *string // NULL si el usuario fue borrado o es desconocido
	Action    AuditAction
	Metadata  map[string]any
	CreatedAt time.Time
}

// AuditRepository persiste eventos de auditoría.
type AuditRepository interface {
	// Append agrega un evento. Nunca actualiza ni borra.
	Append(ctx context.Context, ev AuditEvent) error

	// ListByUser lista los eventos de un usuario, más recientes primero.
	ListByUser(ctx context.Context, userID string, limit int) ([]AuditEvent, error)
}
