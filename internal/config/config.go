// Package config carga la configuración del servicio: defaults, archivo YAML
// opcional y overrides por variables de entorno con prefijo RUGI_.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/email"
	"github.com/dropDatabas3/rugi-auth/internal/jwt"
	"github.com/dropDatabas3/rugi-auth/internal/oauth"
	"github.com/dropDatabas3/rugi-auth/internal/observability/tracing"
	"github.com/dropDatabas3/rugi-auth/internal/rate"
	"github.com/dropDatabas3/rugi-auth/internal/security/password"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix de las variables de entorno: RUGI_SERVER_ADDR, RUGI_JWT_ISSUER...
const EnvPrefix = "RUGI"

const (
	EnvDev  = "dev"
	EnvTest = "test"
	EnvProd = "prod"
)

type Config struct {
	// dev | test | prod
	Env string `yaml:"env" envconfig:"ENV"`

	Server struct {
		Addr               string        `yaml:"addr" envconfig:"ADDR"`
		ReadTimeout        time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
		WriteTimeout       time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
		ShutdownTimeout    time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
		TrustProxy         bool          `yaml:"trust_proxy" envconfig:"TRUST_PROXY"` // IP desde X-Forwarded-For / X-Real-IP
		CORSAllowedOrigins []string      `yaml:"cors_allowed_origins" envconfig:"CORS_ALLOWED_ORIGINS"`
	} `yaml:"server" envconfig:"SERVER"`

	Log struct {
		Level string `yaml:"level" envconfig:"LEVEL"`
	} `yaml:"log" envconfig:"LOG"`

	Storage struct {
		// memory | postgres
		Driver   string `yaml:"driver" envconfig:"DRIVER"`
		DSN      string `yaml:"dsn" envconfig:"DSN"`
		MaxConns int32  `yaml:"max_conns" envconfig:"MAX_CONNS"`
	} `yaml:"storage" envconfig:"STORAGE"`

	JWT struct {
		Issuer         string        `yaml:"issuer" envconfig:"ISSUER"`
		AccessTTL      time.Duration `yaml:"access_ttl" envconfig:"ACCESS_TTL"`
		RefreshTTL     time.Duration `yaml:"refresh_ttl" envconfig:"REFRESH_TTL"`
		PrivateKeyPath string        `yaml:"private_key_path" envconfig:"PRIVATE_KEY_PATH"`
		PrivateKeyPEM  string        `yaml:"private_key_pem" envconfig:"PRIVATE_KEY_PEM"`

		// GenerateDevKey genera una clave efímera al arrancar. Prohibido en prod.
		GenerateDevKey         bool     `yaml:"generate_dev_key" envconfig:"GENERATE_DEV_KEY"`
		RetiringPublicKeyPaths []string `yaml:"retiring_public_key_paths" envconfig:"RETIRING_PUBLIC_KEY_PATHS"`
	} `yaml:"jwt" envconfig:"JWT"`

	Argon2 struct {
		Memory      uint32 `yaml:"memory_kib" envconfig:"MEMORY_KIB"`
		Time        uint32 `yaml:"time" envconfig:"TIME"`
		Parallelism uint8  `yaml:"parallelism" envconfig:"PARALLELISM"`
		KeyLen      uint32 `yaml:"key_len" envconfig:"KEY_LEN"`
		SaltLen     uint32 `yaml:"salt_len" envconfig:"SALT_LEN"`
	} `yaml:"argon2" envconfig:"ARGON2"`

	Password struct {
		MinLength     int    `yaml:"min_length" envconfig:"MIN_LENGTH"`
		RequireUpper  bool   `yaml:"require_upper" envconfig:"REQUIRE_UPPER"`
		RequireLower  bool   `yaml:"require_lower" envconfig:"REQUIRE_LOWER"`
		RequireDigit  bool   `yaml:"require_digit" envconfig:"REQUIRE_DIGIT"`
		RequireSymbol bool   `yaml:"require_symbol" envconfig:"REQUIRE_SYMBOL"`
		BlacklistPath string `yaml:"blacklist_path" envconfig:"BLACKLIST_PATH"`
	} `yaml:"password" envconfig:"PASSWORD"`

	Secrets struct {
		OTPTTL   time.Duration `yaml:"otp_ttl" envconfig:"OTP_TTL"`
		ResetTTL time.Duration `yaml:"reset_ttl" envconfig:"RESET_TTL"`
		ResetURL string        `yaml:"reset_url" envconfig:"RESET_URL"`
	} `yaml:"secrets" envconfig:"SECRETS"`

	Rate struct {
		Enabled      bool          `yaml:"enabled" envconfig:"ENABLED"`
		Store        string        `yaml:"store" envconfig:"STORE"` // memory | redis
		StoreTimeout time.Duration `yaml:"store_timeout" envconfig:"STORE_TIMEOUT"`
		Redis        struct {
			Addr     string `yaml:"addr" envconfig:"ADDR"`
			Password string `yaml:"password" envconfig:"PASSWORD"`
			DB       int    `yaml:"db" envconfig:"DB"`
			Prefix   string `yaml:"prefix" envconfig:"PREFIX"`
		} `yaml:"redis" envconfig:"REDIS"`
		General   Limit `yaml:"general" envconfig:"GENERAL"`
		Sensitive Limit `yaml:"sensitive" envconfig:"SENSITIVE"`
	} `yaml:"rate" envconfig:"RATE"`

	Email struct {
		// log | smtp
		Driver       string           `yaml:"driver" envconfig:"DRIVER"`
		SMTP         email.SMTPConfig `yaml:"smtp" envconfig:"SMTP"`
		AsyncWorkers int              `yaml:"async_workers" envconfig:"ASYNC_WORKERS"`
		QueueSize    int              `yaml:"queue_size" envconfig:"QUEUE_SIZE"`
	} `yaml:"email" envconfig:"EMAIL"`

	OAuth struct {
		Google oauth.Config `yaml:"google" envconfig:"GOOGLE"`
		GitHub oauth.Config `yaml:"github" envconfig:"GITHUB"`
	} `yaml:"oauth" envconfig:"OAUTH"`

	Tracing tracing.Config `yaml:"tracing" envconfig:"TRACING"`

	Audit struct {
		BufferSize int `yaml:"buffer_size" envconfig:"BUFFER_SIZE"`
	} `yaml:"audit" envconfig:"AUDIT"`
}

// Limit es un par límite/ventana de rate limiting.
type Limit struct {
	Limit  int           `yaml:"limit" envconfig:"LIMIT"`
	Window time.Duration `yaml:"window" envconfig:"WINDOW"`
}

// Default devuelve la config con defaults sanos para dev.
func Default() *Config {
	var c Config
	c.Env = EnvDev
	c.Server.Addr = ":8080"
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 15 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Log.Level = "info"
	c.Storage.Driver = "memory"
	c.Storage.MaxConns = 10
	c.JWT.Issuer = "http://localhost:8080"
	c.JWT.AccessTTL = jwt.DefaultAccessTTL
	c.JWT.RefreshTTL = 720 * time.Hour // 30d
	p := password.Default
	c.Argon2.Memory, c.Argon2.Time, c.Argon2.Parallelism = p.Memory, p.Time, p.Parallelism
	c.Argon2.KeyLen, c.Argon2.SaltLen = p.KeyLen, p.SaltLen
	pol := password.DefaultPolicy
	c.Password.MinLength = pol.MinLength
	c.Password.RequireUpper, c.Password.RequireLower, c.Password.RequireDigit = pol.RequireUpper, pol.RequireLower, pol.RequireDigit
	c.Secrets.OTPTTL = 10 * time.Minute
	c.Secrets.ResetTTL = 60 * time.Minute
	c.Rate.Enabled = true
	c.Rate.Store = "memory"
	c.Rate.StoreTimeout = rate.DefaultStoreTimeout
	c.Rate.Redis.Prefix = "rl:"
	c.Rate.General = Limit{Limit: rate.General.Limit, Window: rate.General.Window}
	c.Rate.Sensitive = Limit{Limit: rate.Sensitive.Limit, Window: rate.Sensitive.Window}
	c.Email.Driver = "log"
	c.Email.AsyncWorkers = 2
	c.Email.QueueSize = 256
	c.Tracing.SampleRatio = 1
	c.Audit.BufferSize = 1024
	return &c
}

// Load parte de Default, aplica el YAML (si path no es vacío) y después las
// variables RUGI_*. No valida: llamar Validate.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	return c, nil
}

// IsDev es true para dev y test.
func (c *Config) IsDev() bool {
	return c.Env == EnvDev || c.Env == EnvTest
}

// Validate junta todos los problemas en un solo error.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	switch c.Env {
	case EnvDev, EnvTest, EnvProd:
	default:
		add("env must be dev, test or prod (got %q)", c.Env)
	}
	if c.Server.Addr == "" {
		add("server.addr is required")
	}

	switch c.Storage.Driver {
	case "memory":
		if c.Env == EnvProd {
			add("storage.driver=memory is not allowed in prod")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			add("storage.dsn is required for postgres")
		}
	default:
		add("storage.driver must be memory or postgres (got %q)", c.Storage.Driver)
	}

	if c.JWT.Issuer == "" {
		add("jwt.issuer is required")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		add("jwt.access_ttl and jwt.refresh_ttl must be positive")
	}
	hasKey := c.JWT.PrivateKeyPath != "" || c.JWT.PrivateKeyPEM != ""
	switch {
	case c.Env == EnvProd && !hasKey:
		add("jwt.private_key_path or jwt.private_key_pem is required in prod")
	case !hasKey && !c.JWT.GenerateDevKey:
		add("no signing key: set jwt.private_key_path, jwt.private_key_pem or jwt.generate_dev_key")
	}

	if !c.IsDev() && !c.Argon2Params().AtLeast(password.Minimum) {
		add("argon2 parameters below minimum (memory>=%d KiB, time>=%d, parallelism>=%d)",
			password.Minimum.Memory, password.Minimum.Time, password.Minimum.Parallelism)
	}
	if c.Password.MinLength < 8 {
		add("password.min_length must be at least 8")
	}

	switch c.Rate.Store {
	case "memory":
	case "redis":
		if c.Rate.Redis.Addr == "" {
			add("rate.redis.addr is required for rate.store=redis")
		}
	default:
		add("rate.store must be memory or redis (got %q)", c.Rate.Store)
	}
	general, sensitive := c.RatePolicies()
	for _, p := range []rate.Policy{general, sensitive} {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	switch c.Email.Driver {
	case "log":
	case "smtp":
		if c.Email.SMTP.Host == "" || c.Email.SMTP.From == "" {
			add("email.smtp.host and email.smtp.from are required for email.driver=smtp")
		}
	default:
		add("email.driver must be log or smtp (got %q)", c.Email.Driver)
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		add("tracing.endpoint is required when tracing is enabled")
	}
	return errors.Join(errs...)
}

func (c *Config) Argon2Params() password.Params {
	return password.Params{
		Memory:      c.Argon2.Memory,
		Time:        c.Argon2.Time,
		Parallelism: c.Argon2.Parallelism,
		KeyLen:      c.Argon2.KeyLen,
		SaltLen:     c.Argon2.SaltLen,
	}
}

func (c *Config) PasswordPolicy() password.Policy {
	return password.Policy{
		MinLength:     c.Password.MinLength,
		RequireUpper:  c.Password.RequireUpper,
		RequireLower:  c.Password.RequireLower,
		RequireDigit:  c.Password.RequireDigit,
		RequireSymbol: c.Password.RequireSymbol,
	}
}

// RatePolicies devuelve las políticas general y sensitive.
func (c *Config) RatePolicies() (general, sensitive rate.Policy) {
	general = rate.Policy{Name: rate.General.Name, Limit: c.Rate.General.Limit, Window: c.Rate.General.Window}
	sensitive = rate.Policy{Name: rate.Sensitive.Name, Limit: c.Rate.Sensitive.Limit, Window: c.Rate.Sensitive.Window}
	return general, sensitive
}

func (c *Config) RedisOptions() rate.RedisOptions {
	return rate.RedisOptions{
		Addr:     c.Rate.Redis.Addr,
		Password: c.Rate.Redis.Password,
		DB:       c.Rate.Redis.DB,
		Prefix:   c.Rate.Redis.Prefix,
	}
}

// KeySource arma la fuente de la clave de firma, leyendo las públicas
// retiradas desde disco.
func (c *Config) KeySource() (jwt.KeySource, error) {
	src := jwt.KeySource{
		PrivateKeyPEM:  c.JWT.PrivateKeyPEM,
		PrivateKeyPath: c.JWT.PrivateKeyPath,
		GenerateDev:    c.JWT.GenerateDevKey && c.Env != EnvProd,
	}
	for _, p := range c.JWT.RetiringPublicKeyPaths {
		b, err := os.ReadFile(p)
		if err != nil {
			return jwt.KeySource{}, fmt.Errorf("config: retiring key %s: %w", p, err)
		}
		src.RetiringPublicKeysPEM = append(src.RetiringPublicKeysPEM, string(b))
	}
	return src, nil
}
