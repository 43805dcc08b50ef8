package auth

import (
	"context"

	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/dropDatabas3/rugi-auth/internal/email"
	"github.com/dropDatabas3/rugi-auth/internal/observability/logger"
	"github.com/dropDatabas3/rugi-auth/internal/security/password"
)

// InvitePasswordLength es el largo del password temporal de invitación.
const InvitePasswordLength = 16

// InviteUser crea un usuario con password temporal, opted-in en la app, y
// le manda la invitación. Solo superadmins.
func (s *Service) InviteUser(ctx context.Context, actorID string, in InviteInput) (_ *Invited, err error) {
	ctx, span := s.begin(ctx, "invite")
	defer func() { s.finish(span, "invite", err) }()

	log := logger.Service(ctx, "auth.admin", "InviteUser")

	if err := s.requireSuperAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	in.Email = NormalizeEmail(in.Email)
	if !validEmail(in.Email) {
		return nil, autherr.ErrInvalidInput.WithMessage("invalid email")
	}
	app, err := s.repo.Apps().GetByID(ctx, in.AppID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, autherr.ErrNotFound.WithMessage("app not found")
		}
		return nil, autherr.Internal(err)
	}

	temp, err := password.GenerateSecurePassword(InvitePasswordLength)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	hash, err := s.hasher.Hash(temp)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	user, err := s.repo.Users().Create(ctx, repository.CreateUserInput{
		Email:              in.Email,
		PasswordHash:       &hash,
		RegistrationMethod: repository.RegistrationInvite,
		OptInAppID:         app.ID,
	})
	if err != nil {
		if repository.IsConflict(err) {
			return nil, autherr.ErrConflict.WithMessage("email already registered")
		}
		return nil, autherr.Internal(err)
	}

	data := map[string]any{"AppName": app.Name, "Email": user.Email, "Password": temp}
	if err := s.notifier.Send(ctx, user.Email, email.TemplateUserInvite, data); err != nil {
		log.Error("invite notification failed", logger.UserID(user.ID), logger.Err(err))
	}

	s.record(ctx, actorID, repository.AuditUserInvite, map[string]any{"invited_user_id": user.ID, "app_id": app.ID})
	log.Info("user invited", logger.UserID(user.ID), logger.AppID(app.ID))
	return &Invited{User: user, TemporaryPassword: temp}, nil
}

// DeleteUser borra al usuario en cascada. Solo superadmins; un actor no se
// puede borrar a sí mismo.
func (s *Service) DeleteUser(ctx context.Context, actorID, userID string) (err error) {
	ctx, span := s.begin(ctx, "delete_user")
	defer func() { s.finish(span, "delete_user", err) }()

	if err := s.requireSuperAdmin(ctx, actorID); err != nil {
		return err
	}
	if actorID == userID {
		return autherr.ErrInvalidInput.WithMessage("cannot delete yourself")
	}
	if err := s.repo.Users().Delete(ctx, userID); err != nil {
		if repository.IsNotFound(err) {
			return autherr.ErrNotFound.WithMessage("user not found")
		}
		return autherr.Internal(err)
	}
	logger.Service(ctx, "auth.admin", "DeleteUser").Info("user deleted", logger.UserID(userID), logger.ActorID(actorID))
	return nil
}

// AssignRole asigna el rol (creándolo si hace falta). Solo superadmins.
func (s *Service) AssignRole(ctx context.Context, actorID, userID, appID, roleName string) (_ *repository.UserAppRole, err error) {
	ctx, span := s.begin(ctx, "role_assign")
	defer func() { s.finish(span, "role_assign", err) }()

	if err := s.requireSuperAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	ua, err := s.authz.AssignRole(ctx, userID, appID, roleName, &actorID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, repository.AuditRoleAssign, map[string]any{
		"target_user_id": userID, "app_id": appID, "role": roleName,
	})
	return ua, nil
}

// RemoveRole quita el rol. Solo superadmins.
func (s *Service) RemoveRole(ctx context.Context, actorID, userID, appID, roleName string) error {
	if err := s.requireSuperAdmin(ctx, actorID); err != nil {
		return err
	}
	return s.authz.RemoveRole(ctx, userID, appID, roleName)
}

// RegisterApp da de alta una app cliente. Solo superadmins.
func (s *Service) RegisterApp(ctx context.Context, actorID, name string, typ repository.AppType, redirectURIs []string) (*repository.App, string, error) {
	if err := s.requireSuperAdmin(ctx, actorID); err != nil {
		return nil, "", err
	}
	return s.clients.RegisterApp(ctx, name, typ, redirectURIs)
}

// PromoteApp pasa la app a CONFIDENTIAL y devuelve el secreto (una sola vez).
func (s *Service) PromoteApp(ctx context.Context, actorID, appID string) (string, error) {
	if err := s.requireSuperAdmin(ctx, actorID); err != nil {
		return "", err
	}
	return s.clients.PromoteToConfidential(ctx, appID)
}

// ListApps lista las apps. Solo superadmins.
func (s *Service) ListApps(ctx context.Context, actorID string) ([]repository.App, error) {
	if err := s.requireSuperAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	apps, err := s.repo.Apps().List(ctx)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	return apps, nil
}

// OptIn suma al usuario autenticado a la app.
func (s *Service) OptIn(ctx context.Context, userID, appID string) error {
	return s.authz.OptIn(ctx, userID, appID)
}
