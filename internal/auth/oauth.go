package auth

import (
	"context"

	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/dropDatabas3/rugi-auth/internal/oauth"
	"github.com/dropDatabas3/rugi-auth/internal/observability/logger"
	"go.opentelemetry.io/otel/attribute"
)

// OAuthLogin canjea el código del proveedor y resuelve el usuario local:
// por (provider, providerID), si no por email (vinculando la identidad), si
// no lo crea opted-in en la app.
func (s *Service) OAuthLogin(ctx context.Context, in OAuthLoginInput) (_ *Tokens, err error) {
	ctx, span := s.begin(ctx, "oauth_login")
	span.SetAttributes(attribute.String("provider", in.Provider))
	defer func() { s.finish(span, "oauth_login", err) }()

	log := logger.Service(ctx, "auth.oauth", "OAuthLogin").With(logger.Provider(in.Provider))

	provider, err := s.oauth.Get(in.Provider)
	if err != nil {
		return nil, err
	}
	app, err := s.clients.VerifyClient(ctx, in.Client.ClientID, in.Client.ClientSecret)
	if err != nil {
		return nil, err
	}
	ident, err := provider.ExchangeCodeForIdentity(ctx, in.Code)
	if err != nil {
		log.Warn("oauth exchange failed", logger.Err(err))
		return nil, asAuthErr(err)
	}

	user, created, err := s.resolveOAuthUser(ctx, ident, app.ID)
	if err != nil {
		return nil, err
	}

	tok, err := s.grant(ctx, user, app, in.DeviceInfo)
	if err != nil {
		return nil, err
	}
	if created {
		s.record(ctx, user.ID, repository.AuditRegister, map[string]any{"app_id": app.ID, "provider": string(ident.Provider)})
	}
	s.record(ctx, user.ID, repository.AuditLogin, map[string]any{"app_id": app.ID, "method": "oauth", "provider": string(ident.Provider)})
	return tok, nil
}

func (s *Service) resolveOAuthUser(ctx context.Context, ident *oauth.ExternalIdentity, appID string) (*repository.User, bool, error) {
	users := s.repo.Users()
	provider := string(ident.Provider)

	user, err := users.GetByOAuth(ctx, provider, ident.ProviderID)
	if err == nil {
		return user, false, nil
	}
	if !repository.IsNotFound(err) {
		return nil, false, autherr.Internal(err)
	}

	email := NormalizeEmail(ident.Email)
	user, err = users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		// solo se vincula si el proveedor verificó el email
		if !ident.EmailVerified {
			return nil, false, autherr.ErrConflict.WithMessage("email already registered; provider email not verified")
		}
		if err := users.LinkOAuth(ctx, user.ID, provider, ident.ProviderID); err != nil {
			if repository.IsConflict(err) {
				return nil, false, autherr.ErrConflict.WithMessage("account already linked to another identity")
			}
			return nil, false, autherr.Internal(err)
		}
		if !user.EmailVerified {
			if err := users.SetEmailVerified(ctx, user.ID); err != nil {
				return nil, false, autherr.Internal(err)
			}
		}
		user, err = users.GetByID(ctx, user.ID)
		if err != nil {
			return nil, false, autherr.Internal(err)
		}
		logger.From(ctx).Info("oauth identity linked", logger.UserID(user.ID), logger.Provider(provider))
		return user, false, nil
	case !repository.IsNotFound(err):
		return nil, false, autherr.Internal(err)
	}

	pid := ident.ProviderID
	user, err = users.Create(ctx, repository.CreateUserInput{
		Email:              email,
		EmailVerified:      ident.EmailVerified,
		RegistrationMethod: repository.RegistrationOAuth,
		OAuthProvider:      &provider,
		OAuthProviderID:    &pid,
		OptInAppID:         appID,
	})
	if err != nil {
		if repository.IsConflict(err) {
			return nil, false, autherr.ErrConflict.WithMessage("user already exists")
		}
		return nil, false, autherr.Internal(err)
	}
	return user, true, nil
}
