// Package app arma el grafo de dependencias del servicio a partir de la
// config. Lo usan el binario del server y los subcomandos del CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dropDatabas3/rugi-auth/internal/audit"
	"github.com/dropDatabas3/rugi-auth/internal/auth"
	"github.com/dropDatabas3/rugi-auth/internal/clock"
	"github.com/dropDatabas3/rugi-auth/internal/config"
	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/dropDatabas3/rugi-auth/internal/email"
	"github.com/dropDatabas3/rugi-auth/internal/http/controllers"
	"github.com/dropDatabas3/rugi-auth/internal/http/router"
	"github.com/dropDatabas3/rugi-auth/internal/http/server"
	jwtx "github.com/dropDatabas3/rugi-auth/internal/jwt"
	"github.com/dropDatabas3/rugi-auth/internal/metrics"
	"github.com/dropDatabas3/rugi-auth/internal/oauth"
	"github.com/dropDatabas3/rugi-auth/internal/observability/logger"
	"github.com/dropDatabas3/rugi-auth/internal/observability/tracing"
	"github.com/dropDatabas3/rugi-auth/internal/ots"
	"github.com/dropDatabas3/rugi-auth/internal/rate"
	"github.com/dropDatabas3/rugi-auth/internal/refresh"
	"github.com/dropDatabas3/rugi-auth/internal/security/password"
	"github.com/dropDatabas3/rugi-auth/internal/store/memory"
	"github.com/dropDatabas3/rugi-auth/internal/store/pg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const ServiceName = "rugi-auth"

// Version se pisa con -ldflags "-X .../internal/app.Version=...".
var Version = "dev"

// Options permite a los tests inyectar piezas que normalmente salen de la config.
type Options struct {
	Clock clock.Clock
	// Notifier reemplaza al driver de email configurado (ej: email.Outbox).
	Notifier email.Notifier
	// Repo reemplaza al store configurado.
	Repo repository.Repository
}

// App es el contenedor del servicio armado.
type App struct {
	Config  *config.Config
	Repo    repository.Repository
	Service *auth.Service
	Issuer  *jwtx.Issuer
	Hasher  *password.Hasher
	Metrics *metrics.Metrics
	Rate    *rate.Controller
	Handler http.Handler

	pg       *pg.Store
	redis    *rate.RedisStore
	async    *email.Async
	recorder *audit.Recorder
	tracing  func(context.Context) error
}

// Build valida cfg y arma todo. Ante error libera lo que ya abrió.
func Build(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Init(logger.Config{Env: cfg.Env, Level: cfg.Log.Level, ServiceName: ServiceName, Version: Version})
	log := logger.L().With(logger.Layer("app"))
	clk := clock.OrSystem(opts.Clock)

	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	a.tracing, err = tracing.Setup(ctx, cfg.Tracing, ServiceName, Version)
	if err != nil {
		return nil, fmt.Errorf("app: tracing: %w", err)
	}

	reg := prometheus.NewRegistry()
	if a.Metrics, err = metrics.New(reg); err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}
	_ = a.Metrics.Register(collectors.NewGoCollector())
	_ = a.Metrics.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// storage
	health := func(context.Context) error { return nil }
	switch {
	case opts.Repo != nil:
		a.Repo = opts.Repo
	case cfg.Storage.Driver == "postgres":
		a.pg, err = pg.New(ctx, cfg.Storage.DSN, pg.Options{MaxConns: cfg.Storage.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("app: postgres: %w", err)
		}
		if _, err = a.pg.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("app: migrate: %w", err)
		}
		_ = a.Metrics.Register(metrics.NewPoolCollector(a.pg.Pool()))
		a.Repo = a.pg
		health = a.pg.Ping
	default:
		a.Repo = memory.New(clk)
	}
	log.Info("storage ready", zap.String("driver", cfg.Storage.Driver))

	// claves de firma
	src, err := cfg.KeySource()
	if err != nil {
		return nil, err
	}
	keys, err := jwtx.NewProvider(src).Material()
	if err != nil {
		return nil, fmt.Errorf("app: signing key: %w", err)
	}
	if src.GenerateDev && src.PrivateKeyPEM == "" && src.PrivateKeyPath == "" {
		log.Warn("using ephemeral dev signing key", zap.String("kid", keys.KID()))
	}
	a.Issuer = jwtx.NewIssuer(cfg.JWT.Issuer, keys, cfg.JWT.AccessTTL, clk)

	a.Hasher = password.NewHasher(cfg.Argon2Params())
	var blacklist *password.Blacklist
	if cfg.Password.BlacklistPath != "" {
		if blacklist, err = password.LoadBlacklist(cfg.Password.BlacklistPath); err != nil {
			return nil, fmt.Errorf("app: blacklist: %w", err)
		}
	}

	// rate limiting: redis primario si está configurado, memoria siempre de respaldo
	if cfg.Rate.Enabled {
		var primary rate.Store
		if cfg.Rate.Store == "redis" {
			a.redis, err = rate.DialRedis(ctx, cfg.RedisOptions())
			if err != nil {
				// no es fatal: el controller cae a memoria mientras redis no responda
				log.Warn("redis unavailable, rate limiting falls back to memory", logger.Err(err))
				err = nil
			}
			primary = a.redis
		}
		a.Rate = rate.NewController(rate.ControllerDeps{
			Primary:      primary,
			Clock:        clk,
			Metrics:      a.Metrics,
			StoreTimeout: cfg.Rate.StoreTimeout,
		})
	}

	// email
	notifier := opts.Notifier
	if notifier == nil {
		var base email.Notifier = email.NewLogNotifier()
		if cfg.Email.Driver == "smtp" {
			base = email.NewSMTPNotifier(cfg.Email.SMTP, email.DefaultTemplates())
		}
		a.async = email.NewAsync(base, cfg.Email.AsyncWorkers, cfg.Email.QueueSize, a.Metrics)
		notifier = a.async
	}

	a.recorder = audit.NewRecorder(a.Repo.Audit(), audit.Options{
		BufferSize: cfg.Audit.BufferSize,
		Clock:      clk,
		Metrics:    a.Metrics,
	})

	ledger := refresh.NewLedger(refresh.Deps{Repo: a.Repo, Issuer: a.Issuer, Clock: clk, TTL: cfg.JWT.RefreshTTL})
	secrets := ots.NewManager(a.Repo.Secrets(), notifier, clk, ots.Config{
		OTPTTL:   cfg.Secrets.OTPTTL,
		ResetTTL: cfg.Secrets.ResetTTL,
		ResetURL: cfg.Secrets.ResetURL,
	})

	a.Service, err = auth.New(auth.Deps{
		Repo:      a.Repo,
		Hasher:    a.Hasher,
		Policy:    cfg.PasswordPolicy(),
		Blacklist: blacklist,
		Issuer:    a.Issuer,
		Ledger:    ledger,
		Secrets:   secrets,
		OAuth:     oauth.FromConfig(cfg.OAuth.Google, cfg.OAuth.GitHub),
		Notifier:  notifier,
		Audit:     a.recorder,
		Metrics:   a.Metrics,
		Clock:     clk,
	})
	if err != nil {
		return nil, fmt.Errorf("app: auth service: %w", err)
	}

	general, sensitive := cfg.RatePolicies()
	a.Handler = router.New(router.Deps{
		Controllers: controllers.New(a.Service, health),
		Issuer:      a.Issuer,
		Rate:        a.Rate,
		General:     general,
		Sensitive:   sensitive,
		Metrics:     a.Metrics,
		TrustProxy:  cfg.Server.TrustProxy,
		CORS:        cfg.Server.CORSAllowedOrigins,
	})

	log.Info("app built",
		zap.Bool("rate_enabled", cfg.Rate.Enabled),
		zap.String("email_driver", cfg.Email.Driver),
		zap.Strings("oauth_providers", a.Service.OAuth().Kinds()),
	)
	return a, nil
}

// Serve levanta el server HTTP y bloquea hasta que ctx se cancele.
func (a *App) Serve(ctx context.Context) error {
	srv := server.New(server.Config{
		Addr:            a.Config.Server.Addr,
		ReadTimeout:     a.Config.Server.ReadTimeout,
		WriteTimeout:    a.Config.Server.WriteTimeout,
		ShutdownTimeout: a.Config.Server.ShutdownTimeout,
	}, a.Handler)
	return srv.Run(ctx)
}

// Close drena el audit y la cola de mails antes de soltar conexiones.
// Es seguro llamarlo sobre un App a medio armar.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.recorder != nil {
		errs = append(errs, a.recorder.Close(ctx))
	}
	if a.async != nil {
		errs = append(errs, a.async.Close(ctx))
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.pg != nil {
		a.pg.Close()
	}
	if a.tracing != nil {
		errs = append(errs, a.tracing(ctx))
	}
	_ = logger.Sync()
	return errors.Join(errs...)
}
