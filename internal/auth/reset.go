package auth

import (
	"context"

	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/dropDatabas3/rugi-auth/internal/observability/logger"
)

// RequestPasswordReset manda un token de reset. Responde igual exista o no
// el usuario.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) (err error) {
	ctx, span := s.begin(ctx, "password_reset_request")
	defer func() { s.finish(span, "password_reset_request", err) }()

	user, err := s.lookupForSecret(ctx, emailAddr)
	if err != nil || user == nil {
		return err
	}
	if err := s.secrets.Request(ctx, user, repository.SecretPasswordReset); err != nil {
		return err
	}
	s.record(ctx, user.ID, repository.AuditPasswordResetRequest, nil)
	return nil
}

// ResetPassword consume el token, cambia el password y revoca todas las
// sesiones (refresh tokens) del usuario.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	ctx, span := s.begin(ctx, "password_reset")
	defer func() { s.finish(span, "password_reset", err) }()

	// la política se valida antes de quemar el token
	if err := s.checkPassword(newPassword); err != nil {
		return err
	}
	userID, err := s.secrets.ConsumeResetToken(ctx, token)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return autherr.Internal(err)
	}
	if err := s.repo.Users().UpdatePassword(ctx, userID, hash); err != nil {
		if repository.IsNotFound(err) {
			return autherr.ErrInvalidOrExpired
		}
		return autherr.Internal(err)
	}
	n, err := s.ledger.RevokeAllForUser(ctx, userID)
	if err != nil {
		return err
	}

	s.record(ctx, userID, repository.AuditPasswordResetComplete, map[string]any{"revoked_sessions": n})
	logger.Service(ctx, "auth.reset", "ResetPassword").Info("password reset", logger.UserID(userID), logger.Count(n))
	return nil
}
