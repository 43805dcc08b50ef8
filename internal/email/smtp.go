package email

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/dropDatabas3/rugi-auth/internal/observability/logger"
	mail "github.com/go-mail/mail"
	"go.uber.org/zap"
)

// SMTPConfig contiene la configuración del servidor SMTP.
type SMTPConfig struct {
	Host               string `yaml:"host" envconfig:"HOST"`
	Port               int    `yaml:"port" envconfig:"PORT"`
	Username           string `yaml:"username" envconfig:"USERNAME"`
	Password           string `yaml:"password" envconfig:"PASSWORD"`
	From               string `yaml:"from" envconfig:"FROM"`
	TLSMode            string `yaml:"tls_mode" envconfig:"TLS_MODE"` // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" envconfig:"INSECURE_SKIP_VERIFY"`
}

// SMTPNotifier envía mails con go-mail.
type SMTPNotifier struct {
	cfg       SMTPConfig
	templates *Templates
}

func NewSMTPNotifier(cfg SMTPConfig, templates *Templates) *SMTPNotifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.TLSMode == "" {
		cfg.TLSMode = "auto"
	}
	if templates == nil {
		templates = DefaultTemplates()
	}
	return &SMTPNotifier{cfg: cfg, templates: templates}
}

func (s *SMTPNotifier) Send(ctx context.Context, to string, tpl Template, data map[string]any) error {
	log := logger.From(ctx).With(
		logger.Component("email.smtp"),
		zap.String("host", s.cfg.Host),
		zap.String("template", string(tpl)),
	)

	msg, err := s.templates.Render(to, tpl, data)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.dialer().DialAndSend(s.message(msg)); err != nil {
		log.Error("smtp send failed", logger.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Debug("email sent")
	return nil
}

func (s *SMTPNotifier) message(msg Message) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	// multipart/alternative: txt + html
	m.SetBody("text/plain", msg.TextBody)
	if msg.HTMLBody != "" {
		m.AddAlternative("text/html", msg.HTMLBody)
	}
	return m
}

func (s *SMTPNotifier) dialer() *mail.Dialer {
	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify, // solo dev
	}
	switch s.cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	default:
		// "auto"/"starttls": go-mail negocia STARTTLS si el server lo ofrece
	}
	return d
}
