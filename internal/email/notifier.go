// Package email entrega notificaciones al usuario (OTP, reset, invitación).
//
// Los flows solo conocen Notifier. Implementaciones:
//
//	SMTPNotifier  go-mail sobre SMTP (prod)
//	LogNotifier   loguea el mensaje (dev)
//	Async         envoltorio fire-and-forget sobre cualquier Notifier
//	Outbox        guarda en memoria (tests)
package email

import (
	"context"
	"errors"
)

// Template identifica qué mensaje se envía.
type Template string

const (
	TemplateOTPLogin      Template = "otp_login"
	TemplatePasswordReset Template = "password_reset"
	TemplateUserInvite    Template = "user_invite"
)

// ErrUnknownTemplate se devuelve al renderizar un Template sin registrar.
var ErrUnknownTemplate = errors.New("email: unknown template")

// Notifier entrega un mensaje renderizado desde tpl con data.
type Notifier interface {
	Send(ctx context.Context, to string, tpl Template, data map[string]any) error
}

// NotifierFunc adapta una función a Notifier.
type NotifierFunc func(ctx context.Context, to string, tpl Template, data map[string]any) error

func (f NotifierFunc) Send(ctx context.Context, to string, tpl Template, data map[string]any) error {
	return f(ctx, to, tpl, data)
}
