// Package auth orquesta los flows de autenticación sobre los componentes del
// core: clientes, credenciales, ledger de refresh, secretos de un solo uso,
// autorización y auditoría.
package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/dropDatabas3/rugi-auth/internal/audit"
	"github.com/dropDatabas3/rugi-auth/internal/authz"
	"github.com/dropDatabas3/rugi-auth/internal/clock"
	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/dropDatabas3/rugi-auth/internal/email"
	jwtx "github.com/dropDatabas3/rugi-auth/internal/jwt"
	"github.com/dropDatabas3/rugi-auth/internal/metrics"
	"github.com/dropDatabas3/rugi-auth/internal/oauth"
	"github.com/dropDatabas3/rugi-auth/internal/observability/tracing"
	"github.com/dropDatabas3/rugi-auth/internal/ots"
	"github.com/dropDatabas3/rugi-auth/internal/refresh"
	"github.com/dropDatabas3/rugi-auth/internal/security/password"
	"go.opentelemetry.io/otel/trace"
)

// Auditor es lo que los flows necesitan del recorder.
type Auditor interface {
	Record(ctx context.Context, ev audit.Event)
}

// Deps contiene las dependencias del servicio. Repo, Hasher e Issuer son
// obligatorias; el resto se arma con defaults.
type Deps struct {
	Repo      repository.Repository
	Hasher    *password.Hasher
	Policy    password.Policy
	Blacklist *password.Blacklist
	Issuer    *jwtx.Issuer
	Ledger    *refresh.Ledger
	Authz     *authz.Resolver
	Clients   *authz.ClientRegistry
	Secrets   *ots.Manager
	OAuth     *oauth.Registry
	Notifier  email.Notifier
	Audit     Auditor
	Metrics   *metrics.Metrics
	Clock     clock.Clock
}

type Service struct {
	repo      repository.Repository
	hasher    *password.Hasher
	policy    password.Policy
	blacklist *password.Blacklist
	issuer    *jwtx.Issuer
	ledger    *refresh.Ledger
	authz     *authz.Resolver
	clients   *authz.ClientRegistry
	secrets   *ots.Manager
	oauth     *oauth.Registry
	notifier  email.Notifier
	audit     Auditor
	metrics   *metrics.Metrics
	clock     clock.Clock

	// dummyHash se verifica cuando el usuario no existe, para que el tiempo
	// de respuesta no delate qué emails están registrados.
	dummyHash string
}

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, audit.Event) {}

func New(d Deps) (*Service, error) {
	if d.Repo == nil || d.Hasher == nil || d.Issuer == nil {
		return nil, errors.New("auth: Repo, Hasher and Issuer are required")
	}
	clk := clock.OrSystem(d.Clock)
	if d.Policy == (password.Policy{}) {
		d.Policy = password.DefaultPolicy
	}
	if d.Authz == nil {
		d.Authz = authz.NewResolver(d.Repo)
	}
	if d.Clients == nil {
		d.Clients = authz.NewClientRegistry(d.Repo.Apps(), d.Hasher)
	}
	if d.Ledger == nil {
		d.Ledger = refresh.NewLedger(refresh.Deps{Repo: d.Repo, Issuer: d.Issuer, Authz: d.Authz, Clock: clk})
	}
	if d.Notifier == nil {
		d.Notifier = email.NewLogNotifier()
	}
	if d.Secrets == nil {
		d.Secrets = ots.NewManager(d.Repo.Secrets(), d.Notifier, clk, ots.Config{})
	}
	if d.OAuth == nil {
		d.OAuth = oauth.NewRegistry()
	}
	if d.Audit == nil {
		d.Audit = nopAuditor{}
	}

	dummy, err := d.Hasher.Hash("rugi-dummy-password")
	if err != nil {
		return nil, err
	}

	return &Service{
		repo:      d.Repo,
		hasher:    d.Hasher,
		policy:    d.Policy,
		blacklist: d.Blacklist,
		issuer:    d.Issuer,
		ledger:    d.Ledger,
		authz:     d.Authz,
		clients:   d.Clients,
		secrets:   d.Secrets,
		oauth:     d.OAuth,
		notifier:  d.Notifier,
		audit:     d.Audit,
		metrics:   d.Metrics,
		clock:     clk,
		dummyHash: dummy,
	}, nil
}

// Ledger expone el ledger para jobs (purge).
func (s *Service) Ledger() *refresh.Ledger { return s.ledger }

// Secrets expone el manager de secretos para jobs (purge).
func (s *Service) Secrets() *ots.Manager { return s.secrets }

// Clients expone el registro de apps.
func (s *Service) Clients() *authz.ClientRegistry { return s.clients }

// Issuer expone el emisor (JWKS, middleware).
func (s *Service) Issuer() *jwtx.Issuer { return s.issuer }

// OAuth expone el registro de proveedores; puede estar vacío.
func (s *Service) OAuth() *oauth.Registry { return s.oauth }

// NormalizeEmail recorta y pasa a minúsculas. Todos los emails se guardan y
// comparan normalizados.
func NormalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

func validEmail(e string) bool {
	if e == "" || len(e) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(e)
	return err == nil && addr.Address == e
}

func (s *Service) checkPassword(pw string) error {
	if reasons := s.policy.Check(pw, s.blacklist); reasons != "" {
		return autherr.ErrInvalidInput.WithMessage("password policy: " + reasons)
	}
	return nil
}

// begin abre el span del flow; finish lo cierra y cuenta el resultado.
func (s *Service) begin(ctx context.Context, action string) (context.Context, trace.Span) {
	return tracing.Start(ctx, "auth."+action)
}

func (s *Service) finish(span trace.Span, action string, err error) {
	result := "success"
	if err != nil {
		result = string(autherr.KindOf(err))
	}
	s.metrics.AuthOutcome(action, result)
	tracing.End(span, err)
}

func (s *Service) record(ctx context.Context, userID string, action repository.AuditAction, meta map[string]any) {
	s.audit.Record(ctx, audit.Event{UserID: userID, Action: action, Metadata: meta})
}

// requireSuperAdmin: FORBIDDEN si actorID no es superadmin.
func (s *Service) requireSuperAdmin(ctx context.Context, actorID string) error {
	if actorID == "" {
		return autherr.ErrForbidden
	}
	ok, err := s.authz.IsSuperAdmin(ctx, actorID)
	if err != nil {
		return err
	}
	if !ok {
		return autherr.ErrForbidden.WithMessage("superadmin required")
	}
	return nil
}

func asAuthErr(err error) error {
	if _, ok := autherr.As(err); ok {
		return err
	}
	return autherr.Internal(err)
}
