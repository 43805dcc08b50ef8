package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/clock"
	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTTL es el TTL por defecto de los access tokens.
const DefaultAccessTTL = 15 * time.Minute

// Claims es la vista tipada de un access token verificado.
type Claims struct {
	Subject   string    // user id
	Audience  string    // client_id
	TenantID  string    // app id
	Roles     []string  // roles del usuario en la app
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer firma y verifica access tokens RS256.
type Issuer struct {
	Iss       string        // "iss"
	AccessTTL time.Duration // TTL de access tokens

	keys   *KeyMaterial
	clock  clock.Clock
	parser *jwtv5.Parser
}

func NewIssuer(iss string, keys *KeyMaterial, ttl time.Duration, clk clock.Clock) *Issuer {
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	clk = clock.OrSystem(clk)
	return &Issuer{
		Iss:       iss,
		AccessTTL: ttl,
		keys:      keys,
		clock:     clk,
		parser: jwtv5.NewParser(
			jwtv5.WithValidMethods([]string{jwtv5.SigningMethodRS256.Alg()}),
			jwtv5.WithIssuer(iss),
			jwtv5.WithExpirationRequired(),
			jwtv5.WithTimeFunc(clk.Now),
		),
	}
}

// Keys expone el material público (JWKS, kid).
func (i *Issuer) Keys() *KeyMaterial { return i.keys }

// IssueAccessToken emite un access token con exactamente
// {sub, aud, tid, roles, iss, iat, exp}.
func (i *Issuer) IssueAccessToken(userID, clientID, appID string, roles []string) (string, time.Time, error) {
	now := i.clock.Now().UTC()
	exp := now.Add(i.AccessTTL)
	if roles == nil {
		roles = []string{}
	}

	claims := jwtv5.MapClaims{
		"sub":   userID,
		"aud":   clientID,
		"tid":   appID,
		"roles": roles,
		"iss":   i.Iss,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	signed, err := i.keys.sign(jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign access token: %w", err)
	}
	return signed, exp, nil
}

// Keyfunc elige la pública por 'kid' (activa o retiring). Sin kid no hay
// verificación posible.
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("kid_missing")
		}
		pub, ok := i.keys.PublicKey(kid)
		if !ok {
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		return pub, nil
	}
}

// VerifyAccessToken valida firma RS256, issuer y exp.
// Token vencido → TOKEN_EXPIRED; cualquier otro problema → TOKEN_INVALID.
func (i *Issuer) VerifyAccessToken(raw string) (*Claims, error) {
	tok, err := i.parser.Parse(raw, i.Keyfunc())
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, autherr.ErrTokenExpired.WithCause(err)
		}
		return nil, autherr.ErrTokenInvalid.WithCause(err)
	}
	mc, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok || !tok.Valid {
		return nil, autherr.ErrTokenInvalid
	}

	c := &Claims{Issuer: i.Iss}
	c.Subject, _ = mc["sub"].(string)
	c.Audience, _ = mc["aud"].(string)
	c.TenantID, _ = mc["tid"].(string)
	if c.Subject == "" || c.Audience == "" || c.TenantID == "" {
		return nil, autherr.ErrTokenInvalid.WithMessage("missing required claims")
	}
	if raw, ok := mc["roles"].([]any); ok {
		for _, r := range raw {
			if s, ok := r.(string); ok {
				c.Roles = append(c.Roles, s)
			}
		}
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}
