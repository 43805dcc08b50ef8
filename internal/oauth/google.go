package oauth

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// Google usa el endpoint userinfo de OIDC con el access token obtenido.
type Google struct {
	base
	userInfoURL string
}

func NewGoogle(cfg Config) *Google {
	u := cfg.UserInfoURL
	if u == "" {
		u = googleUserInfoURL
	}
	return &Google{
		base:        newBase(KindGoogle, cfg, google.Endpoint, []string{"openid", "email", "profile"}),
		userInfoURL: u,
	}
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func (g *Google) ExchangeCodeForIdentity(ctx context.Context, code string) (*ExternalIdentity, error) {
	client, err := g.exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	var ui googleUserInfo
	if err := getJSON(ctx, client, g.userInfoURL, &ui); err != nil {
		return nil, autherr.ErrInvalidCredentials.WithCause(fmt.Errorf("google userinfo: %w", err))
	}
	if ui.Sub == "" || ui.Email == "" {
		return nil, autherr.ErrInvalidCredentials.WithMessage("google identity without sub or email")
	}
	return &ExternalIdentity{
		Provider:      KindGoogle,
		ProviderID:    ui.Sub,
		Email:         strings.ToLower(strings.TrimSpace(ui.Email)),
		EmailVerified: ui.EmailVerified,
		Name:          ui.Name,
	}, nil
}
