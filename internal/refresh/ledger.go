// Package refresh lleva el ledger de refresh tokens: emisión, rotación de
// un solo uso y revocación.
package refresh

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/authz"
	"github.com/dropDatabas3/rugi-auth/internal/clock"
	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	jwtx "github.com/dropDatabas3/rugi-auth/internal/jwt"
	"github.com/dropDatabas3/rugi-auth/internal/observability/logger"
	"github.com/dropDatabas3/rugi-auth/internal/security/token"
)

// DefaultTTL de un refresh token.
const DefaultTTL = 30 * 24 * time.Hour

// Pair es lo que devuelve una rotación exitosa.
type Pair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	UserID           string
	AppID            string
	Roles            []string
}

// RevokeResult siempre reporta Revoked=true, exista o no el token.
type RevokeResult struct {
	Revoked bool `json:"revoked"`
}

type Deps struct {
	Repo   repository.Repository
	Issuer *jwtx.Issuer
	Authz  *authz.Resolver
	Clock  clock.Clock
	TTL    time.Duration
}

type Ledger struct {
	repo   repository.Repository
	issuer *jwtx.Issuer
	authz  *authz.Resolver
	clock  clock.Clock
	ttl    time.Duration
}

func NewLedger(d Deps) *Ledger {
	if d.TTL <= 0 {
		d.TTL = DefaultTTL
	}
	if d.Authz == nil {
		d.Authz = authz.NewResolver(d.Repo)
	}
	return &Ledger{
		repo:   d.Repo,
		issuer: d.Issuer,
		authz:  d.Authz,
		clock:  clock.OrSystem(d.Clock),
		ttl:    d.TTL,
	}
}

// TTL configurado.
func (l *Ledger) TTL() time.Duration { return l.ttl }

// Issue genera un token opaco de 256 bits y persiste solo su SHA-256.
func (l *Ledger) Issue(ctx context.Context, userID, appID string, device map[string]string) (string, time.Time, error) {
	raw, err := token.GenerateOpaque(token.OpaqueBytes)
	if err != nil {
		return "", time.Time{}, autherr.Internal(err)
	}
	exp := l.clock.Now().Add(l.ttl)
	_, err = l.repo.RefreshTokens().Create(ctx, repository.CreateRefreshTokenInput{
		TokenHash:  token.Hash(raw),
		UserID:     userID,
		AppID:      appID,
		ExpiresAt:  exp,
		DeviceInfo: device,
	})
	if err != nil {
		return "", time.Time{}, autherr.Internal(err)
	}
	return raw, exp, nil
}

// Rotate valida el token presentado, recalcula roles y membresía, y lo
// reemplaza por uno nuevo. El token viejo queda revocado; un segundo uso
// (o el perdedor de una carrera) ve TOKEN_REVOKED.
func (l *Ledger) Rotate(ctx context.Context, presented, clientID string) (*Pair, error) {
	log := logger.Service(ctx, "refresh", "Rotate")

	presented = strings.TrimSpace(presented)
	if presented == "" {
		return nil, autherr.ErrTokenInvalid
	}
	hash := token.Hash(presented)

	rt, err := l.repo.RefreshTokens().GetByHash(ctx, hash)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, autherr.ErrTokenInvalid
		}
		return nil, autherr.Internal(err)
	}
	if rt.Revoked {
		log.Warn("revoked refresh token presented", logger.UserID(rt.UserID), logger.AppID(rt.AppID))
		return nil, autherr.ErrTokenRevoked
	}
	if !rt.ExpiresAt.After(l.clock.Now()) {
		return nil, autherr.ErrTokenExpired
	}

	app, err := l.repo.Apps().GetByID(ctx, rt.AppID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, autherr.ErrTokenInvalid
		}
		return nil, autherr.Internal(err)
	}
	if app.ClientID != strings.TrimSpace(clientID) {
		return nil, autherr.ErrClientMismatch
	}

	user, err := l.repo.Users().GetByID(ctx, rt.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, autherr.ErrTokenInvalid
		}
		return nil, autherr.Internal(err)
	}
	access, err := l.authz.ResolveAccess(ctx, user, app.ID)
	if err != nil {
		return nil, err
	}

	raw, err := token.GenerateOpaque(token.OpaqueBytes)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	exp := l.clock.Now().Add(l.ttl)
	_, err = l.repo.RefreshTokens().Rotate(ctx, hash, repository.CreateRefreshTokenInput{
		TokenHash:  token.Hash(raw),
		UserID:     rt.UserID,
		AppID:      rt.AppID,
		ExpiresAt:  exp,
		DeviceInfo: rt.DeviceInfo,
	})
	switch {
	case err == nil:
	case repository.IsAlreadyConsumed(err):
		log.Warn("refresh token reuse detected", logger.UserID(rt.UserID), logger.AppID(rt.AppID))
		return nil, autherr.ErrTokenRevoked
	case repository.IsNotFound(err):
		return nil, autherr.ErrTokenInvalid
	default:
		return nil, autherr.Internal(err)
	}

	at, atExp, err := l.issuer.IssueAccessToken(user.ID, app.ClientID, app.ID, access.Roles)
	if err != nil {
		return nil, autherr.Internal(err)
	}

	log.Debug("refresh rotated", logger.UserID(user.ID), logger.AppID(app.ID))
	return &Pair{
		AccessToken:      at,
		AccessExpiresAt:  atExp,
		RefreshToken:     raw,
		RefreshExpiresAt: exp,
		UserID:           user.ID,
		AppID:            app.ID,
		Roles:            access.Roles,
	}, nil
}

// Revoke es idempotente y no revela si el token existía.
func (l *Ledger) Revoke(ctx context.Context, presented string) (RevokeResult, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return RevokeResult{Revoked: true}, nil
	}
	err := l.repo.RefreshTokens().Revoke(ctx, token.Hash(presented))
	if err != nil && !repository.IsNotFound(err) {
		return RevokeResult{}, autherr.Internal(err)
	}
	return RevokeResult{Revoked: true}, nil
}

// RevokeAllForUser revoca todos los refresh vivos del usuario y devuelve
// cuántos cambiaron.
func (l *Ledger) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	n, err := l.repo.RefreshTokens().RevokeAllByUser(ctx, userID)
	if err != nil {
		return 0, autherr.Internal(err)
	}
	if n > 0 {
		logger.Service(ctx, "refresh", "RevokeAllForUser").Info("refresh tokens revoked",
			logger.UserID(userID), logger.Count(n))
	}
	return n, nil
}

// PurgeExpired borra refresh tokens vencidos.
func (l *Ledger) PurgeExpired(ctx context.Context) (int, error) {
	n, err := l.repo.RefreshTokens().DeleteExpired(ctx, l.clock.Now())
	if err != nil {
		return 0, autherr.Internal(err)
	}
	return n, nil
}
