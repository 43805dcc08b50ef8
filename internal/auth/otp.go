package auth

import (
	"context"
	"strings"

	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/dropDatabas3/rugi-auth/internal/observability/logger"
)

// RequestOTP manda un código de login al email. Responde igual exista o no
// el usuario.
func (s *Service) RequestOTP(ctx context.Context, emailAddr string) (err error) {
	ctx, span := s.begin(ctx, "otp_request")
	defer func() { s.finish(span, "otp_request", err) }()

	user, err := s.lookupForSecret(ctx, emailAddr)
	if err != nil || user == nil {
		return err
	}
	if err := s.secrets.Request(ctx, user, repository.SecretOTPLogin); err != nil {
		return err
	}
	s.record(ctx, user.ID, repository.AuditOTPRequest, nil)
	return nil
}

// LoginWithOTP canjea el código por tokens. Usuario desconocido y código
// inválido dan el mismo INVALID_OR_EXPIRED.
func (s *Service) LoginWithOTP(ctx context.Context, in OTPLoginInput) (_ *Tokens, err error) {
	ctx, span := s.begin(ctx, "otp_login")
	defer func() { s.finish(span, "otp_login", err) }()

	in.Email = NormalizeEmail(in.Email)
	in.Code = strings.TrimSpace(in.Code)
	if in.Email == "" || in.Code == "" {
		return nil, autherr.ErrInvalidInput.WithMessage("email and code are required")
	}
	app, err := s.clients.VerifyClient(ctx, in.Client.ClientID, in.Client.ClientSecret)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.Users().GetByEmail(ctx, in.Email)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, autherr.ErrInvalidOrExpired
		}
		return nil, autherr.Internal(err)
	}
	if err := s.secrets.ConsumeOTP(ctx, user.ID, in.Code); err != nil {
		logger.Service(ctx, "auth.otp", "LoginWithOTP").Debug("otp rejected", logger.UserID(user.ID), logger.Err(err))
		return nil, err
	}

	tok, err := s.grant(ctx, user, app, in.DeviceInfo)
	if err != nil {
		return nil, err
	}
	s.record(ctx, user.ID, repository.AuditOTPLogin, map[string]any{"app_id": app.ID})
	return tok, nil
}

// lookupForSecret devuelve (nil, nil) para emails desconocidos, así el caller
// responde lo mismo que en el caso exitoso. Un email mal formado da
// INVALID_INPUT.
func (s *Service) lookupForSecret(ctx context.Context, emailAddr string) (*repository.User, error) {
	emailAddr = NormalizeEmail(emailAddr)
	if !validEmail(emailAddr) {
		return nil, autherr.ErrInvalidInput.WithMessage("invalid email")
	}
	user, err := s.repo.Users().GetByEmail(ctx, emailAddr)
	if err != nil {
		if repository.IsNotFound(err) {
			logger.From(ctx).Debug("secret requested for unknown email", logger.Component("auth"))
			return nil, nil
		}
		return nil, autherr.Internal(err)
	}
	return user, nil
}
