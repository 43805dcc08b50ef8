package bootstrap

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/authz"
	"github.com/dropDatabas3/rugi-auth/internal/clock"
	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/dropDatabas3/rugi-auth/internal/security/password"
	"github.com/dropDatabas3/rugi-auth/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSeedConfig() AdminSeedConfig {
	clk := clock.NewManual(time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC))
	return AdminSeedConfig{
		Repo:          memory.New(clk),
		Hasher:        password.NewHasher(password.Params{Memory: 1024, Time: 1, Parallelism: 1}),
		AdminEmail:    " Root@Example.com ",
		AdminPassword: "Sup3rSecret",
		SkipPrompt:    true,
		Out:           &bytes.Buffer{},
	}
}

func TestSeedAdminGrantsSuperAdmin(t *testing.T) {
	ctx := context.Background()
	cfg := newSeedConfig()

	res, err := SeedAdmin(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, res.AppCreated)
	assert.True(t, res.UserCreated)
	assert.Equal(t, "root@example.com", res.User.Email)
	assert.Equal(t, DefaultAppName, res.App.Name)

	ok, err := authz.NewResolver(cfg.Repo).IsSuperAdmin(ctx, res.User.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, cfg.Hasher.Verify(*res.User.PasswordHash, "Sup3rSecret"))
}

func TestSeedAdminIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cfg := newSeedConfig()

	first, err := SeedAdmin(ctx, cfg)
	require.NoError(t, err)
	second, err := SeedAdmin(ctx, cfg)
	require.NoError(t, err)

	assert.False(t, second.AppCreated)
	assert.False(t, second.UserCreated)
	assert.Equal(t, first.App.ID, second.App.ID)
	assert.Equal(t, first.User.ID, second.User.ID)

	apps, err := cfg.Repo.Apps().List(ctx)
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}

func TestSeedAdminRejects(t *testing.T) {
	ctx := context.Background()

	cfg := newSeedConfig()
	cfg.Role = "editor"
	_, err := SeedAdmin(ctx, cfg)
	assert.ErrorContains(t, err, "does not grant superadmin")

	cfg = newSeedConfig()
	cfg.Role = "Admin"
	_, err = SeedAdmin(ctx, cfg)
	assert.ErrorContains(t, err, "does not grant superadmin")
	_, err = cfg.Repo.Users().GetByEmail(ctx, "root@example.com")
	assert.True(t, repository.IsNotFound(err))

	cfg = newSeedConfig()
	cfg.AdminPassword = "short"
	_, err = SeedAdmin(ctx, cfg)
	assert.ErrorContains(t, err, "weak password")

	cfg = newSeedConfig()
	cfg.AdminPassword = ""
	_, err = SeedAdmin(ctx, cfg)
	assert.ErrorContains(t, err, "SkipPrompt")
}

func TestSeedAdminTrimmedRoleIsSuperAdmin(t *testing.T) {
	ctx := context.Background()
	cfg := newSeedConfig()
	cfg.Role = " admin "

	res, err := SeedAdmin(ctx, cfg)
	require.NoError(t, err)
	ok, err := authz.NewResolver(cfg.Repo).IsSuperAdmin(ctx, res.User.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSeedAdminPromptsWhenInteractive(t *testing.T) {
	cfg := newSeedConfig()
	cfg.SkipPrompt = false
	cfg.AdminEmail, cfg.AdminPassword = "", ""
	cfg.In = strings.NewReader("ops@example.com\nSup3rSecret\nSup3rSecret\n")

	res, err := SeedAdmin(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", res.User.Email)

	cfg = newSeedConfig()
	cfg.SkipPrompt = false
	cfg.AdminEmail, cfg.AdminPassword = "", ""
	cfg.In = strings.NewReader("ops@example.com\nSup3rSecret\nOther1234\n")
	_, err = SeedAdmin(context.Background(), cfg)
	assert.ErrorContains(t, err, "passwords do not match")
}
