package auth

import (
	"context"
	"strings"

	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/dropDatabas3/rugi-auth/internal/observability/logger"
	"github.com/dropDatabas3/rugi-auth/internal/refresh"
	"go.opentelemetry.io/otel/attribute"
)

// Login autentica con email y password. Usuario desconocido, password
// incorrecto y client desconocido devuelven el mismo INVALID_CREDENTIALS.
func (s *Service) Login(ctx context.Context, in LoginInput) (_ *Tokens, err error) {
	ctx, span := s.begin(ctx, "login")
	span.SetAttributes(attribute.String("client_id", in.Client.ClientID))
	defer func() { s.finish(span, "login", err) }()

	log := logger.Service(ctx, "auth.login", "Login")

	in.Email = NormalizeEmail(in.Email)
	if in.Email == "" || in.Password == "" || strings.TrimSpace(in.Client.ClientID) == "" {
		return nil, autherr.ErrInvalidInput.WithMessage("email, password and client_id are required")
	}

	app, err := s.clients.VerifyClient(ctx, in.Client.ClientID, in.Client.ClientSecret)
	if err != nil {
		log.Debug("client verification failed", logger.ClientID(in.Client.ClientID), logger.Err(err))
		return nil, err
	}

	user, err := s.repo.Users().GetByEmail(ctx, in.Email)
	if err != nil && !repository.IsNotFound(err) {
		return nil, autherr.Internal(err)
	}
	if user == nil || user.PasswordHash == nil {
		// mismo costo que un usuario real
		s.hasher.Verify(s.dummyHash, in.Password)
		log.Debug("unknown user or no password", logger.Email(in.Email))
		return nil, autherr.ErrInvalidCredentials
	}
	if !s.hasher.Verify(*user.PasswordHash, in.Password) {
		log.Debug("password mismatch", logger.UserID(user.ID))
		return nil, autherr.ErrInvalidCredentials
	}

	tok, err := s.grant(ctx, user, app, in.DeviceInfo)
	if err != nil {
		return nil, err
	}
	s.record(ctx, user.ID, repository.AuditLogin, map[string]any{"app_id": app.ID, "method": "password"})
	log.Info("login ok", logger.UserID(user.ID), logger.AppID(app.ID))
	return tok, nil
}

// Refresh rota el refresh token y emite un access token nuevo.
func (s *Service) Refresh(ctx context.Context, refreshToken, clientID string) (_ *Tokens, err error) {
	ctx, span := s.begin(ctx, "refresh")
	defer func() { s.finish(span, "refresh", err) }()

	pair, err := s.ledger.Rotate(ctx, refreshToken, clientID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, pair.UserID, repository.AuditRefresh, map[string]any{"app_id": pair.AppID})
	return s.fromPair(pair), nil
}

// Logout revoca el refresh token. Idempotente; siempre {revoked: true}.
func (s *Service) Logout(ctx context.Context, refreshToken string) (_ refresh.RevokeResult, err error) {
	ctx, span := s.begin(ctx, "logout")
	defer func() { s.finish(span, "logout", err) }()

	res, err := s.ledger.Revoke(ctx, refreshToken)
	if err != nil {
		return res, err
	}
	s.record(ctx, "", repository.AuditRevoke, nil)
	return res, nil
}

// Register crea el usuario con password, lo deja opted-in en la app del
// client y emite tokens.
func (s *Service) Register(ctx context.Context, in RegisterInput) (_ *Tokens, err error) {
	ctx, span := s.begin(ctx, "register")
	defer func() { s.finish(span, "register", err) }()

	log := logger.Service(ctx, "auth.register", "Register")

	in.Email = NormalizeEmail(in.Email)
	if !validEmail(in.Email) {
		return nil, autherr.ErrInvalidInput.WithMessage("invalid email")
	}
	if err := s.checkPassword(in.Password); err != nil {
		return nil, err
	}
	app, err := s.clients.VerifyClient(ctx, in.Client.ClientID, in.Client.ClientSecret)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	user, err := s.repo.Users().Create(ctx, repository.CreateUserInput{
		Email:              in.Email,
		PasswordHash:       &hash,
		RegistrationMethod: repository.RegistrationPassword,
		OptInAppID:         app.ID,
	})
	if err != nil {
		if repository.IsConflict(err) {
			return nil, autherr.ErrConflict.WithMessage("email already registered")
		}
		return nil, autherr.Internal(err)
	}

	tok, err := s.grant(ctx, user, app, in.DeviceInfo)
	if err != nil {
		return nil, err
	}
	s.record(ctx, user.ID, repository.AuditRegister, map[string]any{"app_id": app.ID})
	log.Info("user registered", logger.UserID(user.ID), logger.AppID(app.ID))
	return tok, nil
}

// grant aplica el gate de membresía y emite access + refresh.
func (s *Service) grant(ctx context.Context, user *repository.User, app *repository.App, device map[string]string) (*Tokens, error) {
	access, err := s.authz.ResolveAccess(ctx, user, app.ID)
	if err != nil {
		return nil, err
	}
	at, atExp, err := s.issuer.IssueAccessToken(user.ID, app.ClientID, app.ID, access.Roles)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	rt, rtExp, err := s.ledger.Issue(ctx, user.ID, app.ID, device)
	if err != nil {
		return nil, asAuthErr(err)
	}
	return &Tokens{
		AccessToken:      at,
		RefreshToken:     rt,
		TokenType:        TokenTypeBearer,
		ExpiresIn:        int64(atExp.Sub(s.clock.Now()).Seconds()),
		AccessExpiresAt:  atExp,
		RefreshExpiresAt: rtExp,
		UserID:           user.ID,
		AppID:            app.ID,
		Roles:            access.Roles,
	}, nil
}

func (s *Service) fromPair(p *refresh.Pair) *Tokens {
	return &Tokens{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        TokenTypeBearer,
		ExpiresIn:        int64(p.AccessExpiresAt.Sub(s.clock.Now()).Seconds()),
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
		UserID:           p.UserID,
		AppID:            p.AppID,
		Roles:            p.Roles,
	}
}
