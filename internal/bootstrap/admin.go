// Package bootstrap crea el primer superadmin de una instalación nueva.
package bootstrap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dropDatabas3/rugi-auth/internal/auth"
	"github.com/dropDatabas3/rugi-auth/internal/authz"
	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/dropDatabas3/rugi-auth/internal/observability/logger"
	"github.com/dropDatabas3/rugi-auth/internal/security/password"
	"golang.org/x/term"
)

// DefaultAppName es la app donde vive el rol owner del primer admin.
const DefaultAppName = "rugi-admin"

// AdminSeedConfig configura el seed del superadmin.
type AdminSeedConfig struct {
	Repo   repository.Repository
	Hasher *password.Hasher
	Policy password.Policy

	AppName       string
	AdminEmail    string
	AdminPassword string
	// Role debe ser un rol superadmin (owner o admin). Default owner.
	Role string

	// SkipPrompt desactiva el prompt interactivo (tests, CI).
	SkipPrompt bool
	In         io.Reader
	Out        io.Writer
}

type AdminSeedResult struct {
	App         *repository.App
	User        *repository.User
	AppCreated  bool
	UserCreated bool
}

// SeedAdmin es idempotente: reutiliza la app y el usuario si ya existen y
// solo asigna el rol si falta.
func SeedAdmin(ctx context.Context, cfg AdminSeedConfig) (*AdminSeedResult, error) {
	if cfg.Repo == nil || cfg.Hasher == nil {
		return nil, errors.New("bootstrap: Repo and Hasher are required")
	}
	if cfg.AppName == "" {
		cfg.AppName = DefaultAppName
	}
	cfg.Role = strings.TrimSpace(cfg.Role)
	if cfg.Role == "" {
		cfg.Role = "owner"
	}
	if !authz.IsSuperAdminRole(cfg.Role) {
		return nil, fmt.Errorf("bootstrap: role %q does not grant superadmin (use one of %v)", cfg.Role, authz.SuperAdminRoles())
	}
	if cfg.Policy == (password.Policy{}) {
		cfg.Policy = password.DefaultPolicy
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}

	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		if cfg.SkipPrompt {
			return nil, errors.New("bootstrap: SkipPrompt requires AdminEmail and AdminPassword")
		}
		email, pwd, err := promptAdminCredentials(cfg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: prompt: %w", err)
		}
		cfg.AdminEmail, cfg.AdminPassword = email, pwd
	}
	cfg.AdminEmail = auth.NormalizeEmail(cfg.AdminEmail)

	log := logger.Service(ctx, "bootstrap", "SeedAdmin")
	res := &AdminSeedResult{}

	app, err := findApp(ctx, cfg.Repo, cfg.AppName)
	if err != nil {
		return nil, err
	}
	if app == nil {
		clients := authz.NewClientRegistry(cfg.Repo.Apps(), cfg.Hasher)
		if app, _, err = clients.RegisterApp(ctx, cfg.AppName, repository.AppPublic, nil); err != nil {
			return nil, fmt.Errorf("bootstrap: create app: %w", err)
		}
		res.AppCreated = true
	}
	res.App = app

	user, err := cfg.Repo.Users().GetByEmail(ctx, cfg.AdminEmail)
	switch {
	case err == nil:
	case repository.IsNotFound(err):
		if reason := cfg.Policy.Check(cfg.AdminPassword, nil); reason != "" {
			return nil, fmt.Errorf("bootstrap: weak password: %s", reason)
		}
		hash, herr := cfg.Hasher.Hash(cfg.AdminPassword)
		if herr != nil {
			return nil, fmt.Errorf("bootstrap: hash: %w", herr)
		}
		user, err = cfg.Repo.Users().Create(ctx, repository.CreateUserInput{
			Email:              cfg.AdminEmail,
			PasswordHash:       &hash,
			EmailVerified:      true,
			RegistrationMethod: repository.RegistrationInvite,
			OptInAppID:         app.ID,
		})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: create user: %w", err)
		}
		res.UserCreated = true
	default:
		return nil, fmt.Errorf("bootstrap: lookup user: %w", err)
	}
	res.User = user

	_, err = authz.NewResolver(cfg.Repo).AssignRole(ctx, user.ID, app.ID, cfg.Role, nil)
	if err != nil && autherr.KindOf(err) != autherr.KindConflict {
		return nil, fmt.Errorf("bootstrap: assign role: %w", err)
	}

	log.Info("superadmin ready",
		logger.UserID(user.ID), logger.AppID(app.ID), logger.Role(cfg.Role))
	return res, nil
}

func findApp(ctx context.Context, repo repository.Repository, name string) (*repository.App, error) {
	apps, err := repo.Apps().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: list apps: %w", err)
	}
	for i := range apps {
		if apps[i].Name == name {
			return &apps[i], nil
		}
	}
	return nil, nil
}

// promptAdminCredentials pide email y password. El password se lee sin eco
// cuando In es una terminal.
func promptAdminCredentials(cfg AdminSeedConfig) (email, pwd string, err error) {
	in := cfg.In
	if in == nil {
		in = os.Stdin
	}
	reader := bufio.NewReader(in)

	fmt.Fprint(cfg.Out, "Admin email: ")
	email, err = reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", "", err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return "", "", errors.New("email cannot be empty")
	}

	read := func(label string) (string, error) {
		fmt.Fprint(cfg.Out, label)
		if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(cfg.Out)
			return string(b), err
		}
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	if pwd, err = read("Admin password: "); err != nil {
		return "", "", err
	}
	confirm, err := read("Confirm password: ")
	if err != nil {
		return "", "", err
	}
	if pwd != confirm {
		return "", "", errors.New("passwords do not match")
	}
	return email, pwd, nil
}
