// Package oauth intercambia códigos de autorización de proveedores externos
// (Google, GitHub) por una identidad uniforme. El mapeo a usuario local lo
// hace el flow de login.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"golang.org/x/oauth2"
)

// Kind identifica al proveedor.
type Kind string

const (
	KindGoogle Kind = "google"
	KindGitHub Kind = "github"
)

// ExternalIdentity es lo que sabemos del usuario tras el intercambio.
type ExternalIdentity struct {
	Provider      Kind
	ProviderID    string
	Email         string
	EmailVerified bool
	Name          string
}

// Provider es la capacidad uniforme de todos los proveedores.
type Provider interface {
	Kind() Kind
	AuthCodeURL(state string) string
	ExchangeCodeForIdentity(ctx context.Context, code string) (*ExternalIdentity, error)
}

// Config de un proveedor. Endpoint y UserInfoURL vacíos usan los del
// proveedor real.
type Config struct {
	ClientID     string          `yaml:"client_id" envconfig:"CLIENT_ID"`
	ClientSecret string          `yaml:"client_secret" envconfig:"CLIENT_SECRET"`
	RedirectURL  string          `yaml:"redirect_url" envconfig:"REDIRECT_URL"`
	Scopes       []string        `yaml:"scopes" envconfig:"SCOPES"`
	Endpoint     oauth2.Endpoint `yaml:"-" ignored:"true"`
	UserInfoURL  string          `yaml:"userinfo_url" envconfig:"USERINFO_URL"`
}

// Enabled indica si hay credenciales.
func (c Config) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

const httpTimeout = 10 * time.Second

// base agrupa lo común a los proveedores: config oauth2 y cliente HTTP.
type base struct {
	kind Kind
	conf *oauth2.Config
	http *http.Client
}

func newBase(kind Kind, cfg Config, def oauth2.Endpoint, defScopes []string) base {
	ep := cfg.Endpoint
	if ep.AuthURL == "" && ep.TokenURL == "" {
		ep = def
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = defScopes
	}
	return base{
		kind: kind,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     ep,
		},
		http: &http.Client{Timeout: httpTimeout},
	}
}

func (b base) Kind() Kind { return b.kind }

func (b base) AuthCodeURL(state string) string {
	return b.conf.AuthCodeURL(state)
}

// exchange canjea el código y devuelve un cliente autenticado con el token.
func (b base) exchange(ctx context.Context, code string) (*http.Client, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, autherr.ErrInvalidInput.WithMessage("authorization code required")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.http)
	tok, err := b.conf.Exchange(ctx, code)
	if err != nil {
		return nil, autherr.ErrInvalidCredentials.WithCause(fmt.Errorf("%s exchange: %w", b.kind, err))
	}
	return b.conf.Client(ctx, tok), nil
}

func getJSON(ctx context.Context, c *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
