// Package ots emite y consume secretos de un solo uso: OTP de login y tokens
// de reset de contraseña. Solo se persiste el SHA-256 del secreto.
package ots

import (
	"context"
	"net/url"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/clock"
	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/dropDatabas3/rugi-auth/internal/email"
	"github.com/dropDatabas3/rugi-auth/internal/observability/logger"
	"github.com/dropDatabas3/rugi-auth/internal/security/token"
)

const (
	DefaultOTPTTL    = 10 * time.Minute
	DefaultResetTTL  = 60 * time.Minute
	DefaultOTPDigits = 6
)

type Config struct {
	OTPTTL    time.Duration
	ResetTTL  time.Duration
	OTPDigits int
	// ResetURL, si está, se manda en el mail como ResetURL?token=...
	ResetURL string
}

type Manager struct {
	secrets  repository.SecretRepository
	notifier email.Notifier
	clock    clock.Clock
	cfg      Config
}

func NewManager(secrets repository.SecretRepository, notifier email.Notifier, clk clock.Clock, cfg Config) *Manager {
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = DefaultOTPTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTTL
	}
	if cfg.OTPDigits <= 0 {
		cfg.OTPDigits = DefaultOTPDigits
	}
	return &Manager{secrets: secrets, notifier: notifier, clock: clock.OrSystem(clk), cfg: cfg}
}

// Request emite un secreto nuevo para (user, kind), invalidando los
// anteriores, y lo entrega por el Notifier. Una falla del Notifier se loguea
// y no se devuelve: el secreto sigue siendo válido.
func (m *Manager) Request(ctx context.Context, user *repository.User, kind repository.SecretKind) error {
	log := logger.Service(ctx, "ots", "Request").With(logger.UserID(user.ID), logger.Kind(string(kind)))

	var (
		plain string
		ttl   time.Duration
		tpl   email.Template
		data  map[string]any
		err   error
	)
	switch kind {
	case repository.SecretOTPLogin:
		ttl, tpl = m.cfg.OTPTTL, email.TemplateOTPLogin
		plain, err = token.GenerateNumeric(m.cfg.OTPDigits)
		data = map[string]any{"Code": plain, "TTL": ttl.String()}
	case repository.SecretPasswordReset:
		ttl, tpl = m.cfg.ResetTTL, email.TemplatePasswordReset
		plain, err = token.GenerateOpaque(token.OpaqueBytes)
		data = map[string]any{"Token": plain, "TTL": ttl.String(), "Link": m.resetLink(plain)}
	default:
		return autherr.ErrInvalidInput.WithMessage("unknown secret kind")
	}
	if err != nil {
		return autherr.Internal(err)
	}

	_, err = m.secrets.Issue(ctx, repository.IssueSecretInput{
		UserID:     user.ID,
		Kind:       kind,
		SecretHash: token.Hash(plain),
		ExpiresAt:  m.clock.Now().Add(ttl),
	})
	if err != nil {
		return autherr.Internal(err)
	}

	if m.notifier == nil {
		log.Warn("no notifier configured, secret not delivered")
		return nil
	}
	if err := m.notifier.Send(ctx, user.Email, tpl, data); err != nil {
		log.Error("notifier failed", logger.Err(err))
	}
	return nil
}

func (m *Manager) resetLink(tok string) string {
	if m.cfg.ResetURL == "" {
		return ""
	}
	u, err := url.Parse(m.cfg.ResetURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("token", tok)
	u.RawQuery = q.Encode()
	return u.String()
}

// ConsumeOTP valida code contra el OTP más reciente sin usar del usuario y
// lo marca usado. Cualquier falla es INVALID_OR_EXPIRED.
func (m *Manager) ConsumeOTP(ctx context.Context, userID, code string) error {
	sec, err := m.secrets.LatestUnused(ctx, userID, repository.SecretOTPLogin)
	if err != nil {
		return m.consumeErr(err)
	}
	if !token.Equal(token.Hash(code), sec.SecretHash) {
		return autherr.ErrInvalidOrExpired
	}
	return m.markUsed(ctx, sec)
}

// ConsumeResetToken busca el token por hash, lo marca usado y devuelve el
// usuario dueño.
func (m *Manager) ConsumeResetToken(ctx context.Context, tok string) (string, error) {
	if tok == "" {
		return "", autherr.ErrInvalidOrExpired
	}
	sec, err := m.secrets.GetByHash(ctx, repository.SecretPasswordReset, token.Hash(tok))
	if err != nil {
		return "", m.consumeErr(err)
	}
	if err := m.markUsed(ctx, sec); err != nil {
		return "", err
	}
	return sec.UserID, nil
}

func (m *Manager) markUsed(ctx context.Context, sec *repository.OneTimeSecret) error {
	now := m.clock.Now()
	if sec.Used || !sec.ExpiresAt.After(now) {
		return autherr.ErrInvalidOrExpired
	}
	return m.consumeErr(m.secrets.MarkUsed(ctx, sec.ID, now))
}

func (m *Manager) consumeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case repository.IsNotFound(err), repository.IsAlreadyConsumed(err):
		return autherr.ErrInvalidOrExpired
	default:
		return autherr.Internal(err)
	}
}

// PurgeExpired borra secretos vencidos o usados.
func (m *Manager) PurgeExpired(ctx context.Context) (int, error) {
	n, err := m.secrets.DeleteExpired(ctx, m.clock.Now())
	if err != nil {
		return 0, autherr.Internal(err)
	}
	return n, nil
}
