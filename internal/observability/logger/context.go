package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ToContext guarda un logger scoped en el contexto.
func ToContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From devuelve el logger del contexto o el singleton.
func From(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return L()
	}
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return L()
}

// Service es el atajo usado por las capas de servicio:
// From(ctx).With(Layer("service"), Component(component), Op(op)).
func Service(ctx context.Context, component, op string) *zap.Logger {
	return From(ctx).With(Layer("service"), Component(component), Op(op))
}
