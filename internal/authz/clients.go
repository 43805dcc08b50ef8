package authz

import (
	"context"
	"net/url"
	"strings"

	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/dropDatabas3/rugi-auth/internal/observability/logger"
	"github.com/dropDatabas3/rugi-auth/internal/security/password"
	"github.com/dropDatabas3/rugi-auth/internal/security/token"
	"github.com/dropDatabas3/rugi-auth/internal/validation"
	"github.com/google/uuid"
)

// ClientRegistry administra las apps cliente (tenants) y verifica sus
// credenciales. Los secretos se guardan con argon2id, igual que passwords.
type ClientRegistry struct {
	apps   repository.AppRepository
	hasher *password.Hasher
}

func NewClientRegistry(apps repository.AppRepository, hasher *password.Hasher) *ClientRegistry {
	return &ClientRegistry{apps: apps, hasher: hasher}
}

// RegisterApp crea la app. Para CONFIDENTIAL devuelve el secreto en claro
// (única vez que se ve); para PUBLIC devuelve "".
func (c *ClientRegistry) RegisterApp(ctx context.Context, name string, typ repository.AppType, redirectURIs []string) (*repository.App, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", autherr.ErrInvalidInput.WithMessage("app name required")
	}
	if !validation.ValidAppName(name) {
		return nil, "", autherr.ErrInvalidInput.WithMessage("invalid app name")
	}
	if !typ.Valid() {
		return nil, "", autherr.ErrInvalidInput.WithMessage("app type must be PUBLIC or CONFIDENTIAL")
	}
	for _, u := range redirectURIs {
		if !validRedirectURI(u) {
			return nil, "", autherr.ErrInvalidInput.WithMessage("invalid redirect uri: " + u)
		}
	}

	in := repository.CreateAppInput{
		Name:         name,
		ClientID:     uuid.NewString(),
		Type:         typ,
		RedirectURIs: redirectURIs,
	}
	var plain string
	if typ == repository.AppConfidential {
		var (
			hash string
			err  error
		)
		plain, hash, err = c.newSecret()
		if err != nil {
			return nil, "", err
		}
		in.ClientSecretHash = &hash
	}

	app, err := c.apps.Create(ctx, in)
	if err != nil {
		return nil, "", mapRepoErr(err, "app")
	}
	logger.From(ctx).Info("app registered",
		logger.Layer("service"), logger.Component("clients"),
		logger.AppID(app.ID), logger.ClientID(app.ClientID))
	return app, plain, nil
}

// VerifyClient autentica una app por client_id (+ secreto si es confidencial).
// Un client_id desconocido da INVALID_CREDENTIALS, igual que un usuario
// desconocido, para no revelar qué client_ids existen.
func (c *ClientRegistry) VerifyClient(ctx context.Context, clientID, secret string) (*repository.App, error) {
	app, err := c.apps.GetByClientID(ctx, strings.TrimSpace(clientID))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, autherr.ErrInvalidCredentials
		}
		return nil, autherr.Internal(err)
	}
	if app.Type != repository.AppConfidential {
		return app, nil
	}
	if secret == "" {
		return nil, autherr.ErrClientSecretRequired
	}
	if app.ClientSecretHash == nil || !c.hasher.Verify(*app.ClientSecretHash, secret) {
		return nil, autherr.ErrInvalidClient
	}
	return app, nil
}

// PromoteToConfidential pasa una app PUBLIC a CONFIDENTIAL y devuelve el
// secreto nuevo. Solo funciona una vez: la segunda llamada da CONFLICT.
func (c *ClientRegistry) PromoteToConfidential(ctx context.Context, appID string) (string, error) {
	plain, hash, err := c.newSecret()
	if err != nil {
		return "", err
	}
	if _, err := c.apps.PromoteToConfidential(ctx, appID, hash); err != nil {
		if repository.IsConflict(err) {
			return "", autherr.ErrConflict.WithMessage("app is already confidential")
		}
		return "", mapRepoErr(err, "app")
	}
	logger.From(ctx).Info("app promoted to confidential",
		logger.Layer("service"), logger.Component("clients"), logger.AppID(appID))
	return plain, nil
}

func (c *ClientRegistry) newSecret() (plain, hash string, err error) {
	plain, err = token.GenerateOpaque(token.OpaqueBytes)
	if err != nil {
		return "", "", autherr.Internal(err)
	}
	hash, err = c.hasher.Hash(plain)
	if err != nil {
		return "", "", autherr.Internal(err)
	}
	return plain, hash, nil
}

func validRedirectURI(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	return u.Fragment == ""
}
