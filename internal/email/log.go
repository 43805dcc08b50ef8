package email

import (
	"context"

	"github.com/dropDatabas3/rugi-auth/internal/observability/logger"
	"go.uber.org/zap"
)

// LogNotifier no envía nada: loguea el mensaje renderizado. Solo para dev,
// el cuerpo incluye el secreto.
type LogNotifier struct {
	templates *Templates
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{templates: DefaultTemplates()}
}

func (n *LogNotifier) Send(ctx context.Context, to string, tpl Template, data map[string]any) error {
	msg, err := n.templates.Render(to, tpl, data)
	if err != nil {
		return err
	}
	logger.From(ctx).Info("email (dev log)",
		logger.Component("email.log"),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.TextBody),
	)
	return nil
}
