// Package storetest contiene la suite de contrato que debe pasar toda
// implementación de domain/repository.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory devuelve un repositorio vacío (o aislado) para cada test.
type Factory func(t *testing.T) repository.Repository

func strp(s string) *string { return &s }

func uniqueEmail() string { return "u-" + uuid.NewString()[:8] + "@example.com" }

func seedApp(t *testing.T, repo repository.Repository, typ repository.AppType) *repository.App {
	t.Helper()
	in := repository.CreateAppInput{
		Name:     "app",
		ClientID: "client-" + uuid.NewString()[:8],
		Type:     typ,
	}
	if typ == repository.AppConfidential {
		in.ClientSecretHash = strp("hash")
	}
	app, err := repo.Apps().Create(context.Background(), in)
	require.NoError(t, err)
	return app
}

func seedUser(t *testing.T, repo repository.Repository, optIn string) *repository.User {
	t.Helper()
	u, err := repo.Users().Create(context.Background(), repository.CreateUserInput{
		Email:              uniqueEmail(),
		PasswordHash:       strp("$argon2id$dummy"),
		RegistrationMethod: repository.RegistrationPassword,
		OptInAppID:         optIn,
	})
	require.NoError(t, err)
	return u
}

// Run ejecuta la suite completa.
func Run(t *testing.T, newRepo Factory) {
	t.Run("UsersUniqueEmail", func(t *testing.T) { testUsersUniqueEmail(t, newRepo(t)) })
	t.Run("UsersOAuthLink", func(t *testing.T) { testUsersOAuthLink(t, newRepo(t)) })
	t.Run("UsersOptIn", func(t *testing.T) { testUsersOptIn(t, newRepo(t)) })
	t.Run("UsersDeleteCascades", func(t *testing.T) { testUsersDeleteCascades(t, newRepo(t)) })
	t.Run("AppsPromoteOnce", func(t *testing.T) { testAppsPromoteOnce(t, newRepo(t)) })
	t.Run("RolesAssign", func(t *testing.T) { testRolesAssign(t, newRepo(t)) })
	t.Run("RefreshRotateCAS", func(t *testing.T) { testRefreshRotateCAS(t, newRepo(t)) })
	t.Run("RefreshRevoke", func(t *testing.T) { testRefreshRevoke(t, newRepo(t)) })
	t.Run("SecretsIssueInvalidates", func(t *testing.T) { testSecretsIssueInvalidates(t, newRepo(t)) })
	t.Run("SecretsMarkUsedCAS", func(t *testing.T) { testSecretsMarkUsedCAS(t, newRepo(t)) })
	t.Run("AuditAppend", func(t *testing.T) { testAuditAppend(t, newRepo(t)) })
}

func testUsersUniqueEmail(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	u := seedUser(t, repo, "")

	_, err := repo.Users().Create(ctx, repository.CreateUserInput{
		Email:              u.Email,
		RegistrationMethod: repository.RegistrationPassword,
	})
	assert.ErrorIs(t, err, repository.ErrConflict)

	got, err := repo.Users().GetByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = repo.Users().GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testUsersOAuthLink(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	a := seedUser(t, repo, "")
	b := seedUser(t, repo, "")
	pid := uuid.NewString()

	require.NoError(t, repo.Users().LinkOAuth(ctx, a.ID, "github", pid))
	got, err := repo.Users().GetByOAuth(ctx, "github", pid)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	assert.ErrorIs(t, repo.Users().LinkOAuth(ctx, b.ID, "github", pid), repository.ErrConflict)

	_, err = repo.Users().GetByOAuth(ctx, "google", pid)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testUsersOptIn(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	app := seedApp(t, repo, repository.AppPublic)
	u := seedUser(t, repo, "")

	require.NoError(t, repo.Users().OptIn(ctx, u.ID, app.ID))
	require.NoError(t, repo.Users().OptIn(ctx, u.ID, app.ID))

	got, err := repo.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{app.ID}, got.OptedInApps)
	assert.True(t, got.HasOptedIn(app.ID))
}

func testUsersDeleteCascades(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	app := seedApp(t, repo, repository.AppPublic)
	u := seedUser(t, repo, app.ID)

	_, err := repo.RefreshTokens().Create(ctx, repository.CreateRefreshTokenInput{
		TokenHash: "h-" + uuid.NewString(), UserID: u.ID, AppID: app.ID, ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	role, err := repo.Roles().FindOrCreate(ctx, app.ID, "editor")
	require.NoError(t, err)
	_, err = repo.Roles().Assign(ctx, u.ID, role.ID, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Audit().Append(ctx, repository.AuditEvent{UserID: &u.ID, Action: repository.AuditLogin}))

	require.NoError(t, repo.Users().Delete(ctx, u.ID))

	_, err = repo.Users().GetByID(ctx, u.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	names, err := repo.Roles().RoleNamesForUser(ctx, u.ID, app.ID)
	require.NoError(t, err)
	assert.Empty(t, names)
	evs, err := repo.Audit().ListByUser(ctx, u.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, evs)

	assert.ErrorIs(t, repo.Users().Delete(ctx, u.ID), repository.ErrNotFound)
}

func testAppsPromoteOnce(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	app := seedApp(t, repo, repository.AppPublic)

	_, err := repo.Apps().Create(ctx, repository.CreateAppInput{Name: "dup", ClientID: app.ClientID, Type: repository.AppPublic})
	assert.ErrorIs(t, err, repository.ErrConflict)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		conflict int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Apps().PromoteToConfidential(ctx, app.ID, "secret-hash")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case repository.IsConflict(err):
				conflict++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, 7, conflict)

	got, err := repo.Apps().GetByClientID(ctx, app.ClientID)
	require.NoError(t, err)
	assert.Equal(t, repository.AppConfidential, got.Type)
	require.NotNil(t, got.ClientSecretHash)
}

func testRolesAssign(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	app := seedApp(t, repo, repository.AppPublic)
	other := seedApp(t, repo, repository.AppPublic)
	u := seedUser(t, repo, app.ID)

	r1, err := repo.Roles().FindOrCreate(ctx, app.ID, "admin")
	require.NoError(t, err)
	r2, err := repo.Roles().FindOrCreate(ctx, app.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, r1.ID, r2.ID)

	by := u.ID
	a, err := repo.Roles().Assign(ctx, u.ID, r1.ID, &by)
	require.NoError(t, err)
	require.NotNil(t, a.AssignedBy)

	_, err = repo.Roles().Assign(ctx, u.ID, r1.ID, nil)
	assert.ErrorIs(t, err, repository.ErrConflict)

	names, err := repo.Roles().RoleNamesForUser(ctx, u.ID, app.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, names)
	names, err = repo.Roles().RoleNamesForUser(ctx, u.ID, other.ID)
	require.NoError(t, err)
	assert.Empty(t, names)

	ok, err := repo.Roles().HasAnyRoleNamed(ctx, u.ID, []string{"owner", "admin"})
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, repo.Roles().Unassign(ctx, u.ID, r1.ID))
	assert.ErrorIs(t, repo.Roles().Unassign(ctx, u.ID, r1.ID), repository.ErrNotFound)
	ok, err = repo.Roles().HasAnyRoleNamed(ctx, u.ID, []string{"owner", "admin"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func testRefreshRotateCAS(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	app := seedApp(t, repo, repository.AppPublic)
	u := seedUser(t, repo, app.ID)
	exp := time.Now().Add(time.Hour)
	device := map[string]string{"ua": "test"}

	old, err := repo.RefreshTokens().Create(ctx, repository.CreateRefreshTokenInput{
		TokenHash: "old-" + uuid.NewString(), UserID: u.ID, AppID: app.ID, ExpiresAt: exp, DeviceInfo: device,
	})
	require.NoError(t, err)

	const n = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		consumed int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.RefreshTokens().Rotate(ctx, old.TokenHash, repository.CreateRefreshTokenInput{
				TokenHash: "new-" + uuid.NewString(), UserID: u.ID, AppID: app.ID, ExpiresAt: exp, DeviceInfo: device,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case repository.IsAlreadyConsumed(err):
				consumed++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, consumed)

	got, err := repo.RefreshTokens().GetByHash(ctx, old.TokenHash)
	require.NoError(t, err)
	assert.True(t, got.Revoked)
	assert.Equal(t, device, got.DeviceInfo)

	_, err = repo.RefreshTokens().Rotate(ctx, "missing", repository.CreateRefreshTokenInput{TokenHash: "x-" + uuid.NewString(), UserID: u.ID, AppID: app.ID, ExpiresAt: exp})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testRefreshRevoke(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	app := seedApp(t, repo, repository.AppPublic)
	u := seedUser(t, repo, app.ID)
	now := time.Now()

	live, err := repo.RefreshTokens().Create(ctx, repository.CreateRefreshTokenInput{
		TokenHash: "a-" + uuid.NewString(), UserID: u.ID, AppID: app.ID, ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)
	_, err = repo.RefreshTokens().Create(ctx, repository.CreateRefreshTokenInput{
		TokenHash: "b-" + uuid.NewString(), UserID: u.ID, AppID: app.ID, ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)
	expired, err := repo.RefreshTokens().Create(ctx, repository.CreateRefreshTokenInput{
		TokenHash: "c-" + uuid.NewString(), UserID: u.ID, AppID: app.ID, ExpiresAt: now.Add(-time.Hour),
	})
	require.NoError(t, err)

	require.NoError(t, repo.RefreshTokens().Revoke(ctx, live.TokenHash))
	require.NoError(t, repo.RefreshTokens().Revoke(ctx, live.TokenHash))
	assert.ErrorIs(t, repo.RefreshTokens().Revoke(ctx, "nope"), repository.ErrNotFound)

	n, err := repo.RefreshTokens().RevokeAllByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	purged, err := repo.RefreshTokens().DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, purged, 1)
	_, err = repo.RefreshTokens().GetByHash(ctx, expired.TokenHash)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testSecretsIssueInvalidates(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	u := seedUser(t, repo, "")
	exp := time.Now().Add(10 * time.Minute)

	first, err := repo.Secrets().Issue(ctx, repository.IssueSecretInput{UserID: u.ID, Kind: repository.SecretOTPLogin, SecretHash: "h1", ExpiresAt: exp})
	require.NoError(t, err)
	reset, err := repo.Secrets().Issue(ctx, repository.IssueSecretInput{UserID: u.ID, Kind: repository.SecretPasswordReset, SecretHash: "r-" + uuid.NewString(), ExpiresAt: exp})
	require.NoError(t, err)
	second, err := repo.Secrets().Issue(ctx, repository.IssueSecretInput{UserID: u.ID, Kind: repository.SecretOTPLogin, SecretHash: "h2", ExpiresAt: exp})
	require.NoError(t, err)

	latest, err := repo.Secrets().LatestUnused(ctx, u.ID, repository.SecretOTPLogin)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	// superseded secret cannot be consumed
	assert.ErrorIs(t, repo.Secrets().MarkUsed(ctx, first.ID, time.Now()), repository.ErrAlreadyConsumed)
	// other kinds are untouched
	require.NoError(t, repo.Secrets().MarkUsed(ctx, reset.ID, time.Now()))

	got, err := repo.Secrets().GetByHash(ctx, repository.SecretPasswordReset, reset.SecretHash)
	require.NoError(t, err)
	assert.True(t, got.Used)
}

func testSecretsMarkUsedCAS(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	u := seedUser(t, repo, "")
	now := time.Now()

	sec, err := repo.Secrets().Issue(ctx, repository.IssueSecretInput{UserID: u.ID, Kind: repository.SecretOTPLogin, SecretHash: "h", ExpiresAt: now.Add(time.Minute)})
	require.NoError(t, err)

	assert.ErrorIs(t, repo.Secrets().MarkUsed(ctx, sec.ID, now.Add(2*time.Minute)), repository.ErrAlreadyConsumed)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if repo.Secrets().MarkUsed(ctx, sec.ID, now) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	_, err = repo.Secrets().LatestUnused(ctx, u.ID, repository.SecretOTPLogin)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testAuditAppend(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	u := seedUser(t, repo, "")
	require.NoError(t, repo.Audit().Append(ctx, repository.AuditEvent{UserID: &u.ID, Action: repository.AuditLogin, Metadata: map[string]any{"ip": "1.1.1.1"}}))
	require.NoError(t, repo.Audit().Append(ctx, repository.AuditEvent{UserID: &u.ID, Action: repository.AuditRefresh}))
	require.NoError(t, repo.Audit().Append(ctx, repository.AuditEvent{Action: repository.AuditOTPRequest}))

	evs, err := repo.Audit().ListByUser(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, repository.AuditRefresh, evs[0].Action)
	assert.Equal(t, repository.AuditLogin, evs[1].Action)
}
