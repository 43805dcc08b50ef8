package oauth

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"golang.org/x/oauth2/github"
)

const githubAPI = "https://api.github.com"

// GitHub no emite ID token: el perfil y los emails salen de la API REST.
type GitHub struct {
	base
	apiURL string
}

// NewGitHub crea el proveedor. cfg.UserInfoURL, si está, reemplaza la base
// de la API (útil en tests).
func NewGitHub(cfg Config) *GitHub {
	api := strings.TrimRight(cfg.UserInfoURL, "/")
	if api == "" {
		api = githubAPI
	}
	return &GitHub{
		base:   newBase(KindGitHub, cfg, github.Endpoint, []string{"read:user", "user:email"}),
		apiURL: api,
	}
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (g *GitHub) ExchangeCodeForIdentity(ctx context.Context, code string) (*ExternalIdentity, error) {
	client, err := g.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	var u githubUser
	if err := getJSON(ctx, client, g.apiURL+"/user", &u); err != nil {
		return nil, autherr.ErrInvalidCredentials.WithCause(fmt.Errorf("github user: %w", err))
	}
	var emails []githubEmail
	if err := getJSON(ctx, client, g.apiURL+"/user/emails", &emails); err != nil {
		return nil, autherr.ErrInvalidCredentials.WithCause(fmt.Errorf("github emails: %w", err))
	}

	best, ok := pickEmail(emails)
	if !ok {
		return nil, autherr.ErrInvalidCredentials.WithMessage("github account has no email")
	}
	name := u.Name
	if name == "" {
		name = u.Login
	}
	return &ExternalIdentity{
		Provider:      KindGitHub,
		ProviderID:    strconv.FormatInt(u.ID, 10),
		Email:         strings.ToLower(strings.TrimSpace(best.Email)),
		EmailVerified: best.Verified,
		Name:          name,
	}, nil
}

// pickEmail prefiere primary+verified, después cualquier verificado, después
// el primero.
func pickEmail(emails []githubEmail) (githubEmail, bool) {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e, true
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e, true
		}
	}
	if len(emails) > 0 {
		return emails[0], true
	}
	return githubEmail{}, false
}
