package authz

import (
	"context"
	"testing"

	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/dropDatabas3/rugi-auth/internal/security/password"
	"github.com/dropDatabas3/rugi-auth/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastHasher = password.NewHasher(password.Params{Memory: 1024, Time: 1, Parallelism: 1})

type fixture struct {
	repo    *memory.Store
	res     *Resolver
	clients *ClientRegistry
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := memory.New(nil)
	return fixture{repo: repo, res: NewResolver(repo), clients: NewClientRegistry(repo.Apps(), fastHasher)}
}

func (f fixture) app(t *testing.T, typ repository.AppType) (*repository.App, string) {
	t.Helper()
	app, secret, err := f.clients.RegisterApp(context.Background(), "app", typ, []string{"https://app.test/cb"})
	require.NoError(t, err)
	return app, secret
}

func (f fixture) user(t *testing.T, email string, optIn string) *repository.User {
	t.Helper()
	u, err := f.repo.Users().Create(context.Background(), repository.CreateUserInput{
		Email: email, RegistrationMethod: repository.RegistrationPassword, OptInAppID: optIn,
	})
	require.NoError(t, err)
	return u
}

func TestIsSuperAdminRole(t *testing.T) {
	assert.True(t, IsSuperAdminRole("owner"))
	assert.True(t, IsSuperAdminRole(" admin "))
	assert.False(t, IsSuperAdminRole("Admin"))
	assert.False(t, IsSuperAdminRole("OWNER"))
	assert.False(t, IsSuperAdminRole("editor"))
}

func TestSuperAdminRoleNamesAreCaseSensitive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app, _ := f.app(t, repository.AppPublic)
	u := f.user(t, "cap@example.com", app.ID)

	_, err := f.res.AssignRole(ctx, u.ID, app.ID, "Admin", nil)
	require.NoError(t, err)
	ok, err := f.res.IsSuperAdmin(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, IsSuperAdminRole("Admin"), ok)

	_, err = f.res.AssignRole(ctx, u.ID, app.ID, "admin", nil)
	require.NoError(t, err)
	ok, err = f.res.IsSuperAdmin(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResolveAccessMembershipGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appA, _ := f.app(t, repository.AppPublic)
	appB, _ := f.app(t, repository.AppPublic)

	member := f.user(t, "member@example.com", appA.ID)
	acc, err := f.res.ResolveAccess(ctx, member, appA.ID)
	require.NoError(t, err)
	assert.Empty(t, acc.Roles)
	assert.False(t, acc.SuperAdmin)

	_, err = f.res.ResolveAccess(ctx, member, appB.ID)
	assert.Equal(t, autherr.KindForbidden, autherr.KindOf(err))
}

func TestSuperAdminBypassesMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appA, _ := f.app(t, repository.AppPublic)
	appB, _ := f.app(t, repository.AppPublic)

	boss := f.user(t, "boss@example.com", appA.ID)
	_, err := f.res.AssignRole(ctx, boss.ID, appA.ID, "owner", nil)
	require.NoError(t, err)

	ok, err := f.res.IsSuperAdmin(ctx, boss.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	acc, err := f.res.ResolveAccess(ctx, boss, appB.ID)
	require.NoError(t, err)
	assert.True(t, acc.SuperAdmin)
	assert.Empty(t, acc.Roles)
}

func TestAssignRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app, _ := f.app(t, repository.AppPublic)
	u := f.user(t, "u@example.com", "")

	_, err := f.res.AssignRole(ctx, u.ID, app.ID, "editor", nil)
	require.NoError(t, err)
	_, err = f.res.AssignRole(ctx, u.ID, app.ID, "editor", nil)
	assert.Equal(t, autherr.KindConflict, autherr.KindOf(err))

	_, err = f.res.AssignRole(ctx, "missing", app.ID, "editor", nil)
	assert.Equal(t, autherr.KindNotFound, autherr.KindOf(err))
	_, err = f.res.AssignRole(ctx, u.ID, "missing", "editor", nil)
	assert.Equal(t, autherr.KindNotFound, autherr.KindOf(err))
	_, err = f.res.AssignRole(ctx, u.ID, app.ID, "  ", nil)
	assert.Equal(t, autherr.KindInvalidInput, autherr.KindOf(err))

	roles, err := f.res.GetRoles(ctx, u.ID, app.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"editor"}, roles)

	_, err = f.res.ResolveAccess(ctx, u, app.ID)
	assert.Equal(t, autherr.KindForbidden, autherr.KindOf(err))

	require.NoError(t, f.res.RemoveRole(ctx, u.ID, app.ID, "editor"))
	assert.Equal(t, autherr.KindNotFound, autherr.KindOf(f.res.RemoveRole(ctx, u.ID, app.ID, "editor")))
	assert.Equal(t, autherr.KindNotFound, autherr.KindOf(f.res.RemoveRole(ctx, u.ID, app.ID, "ghost")))
}

func TestOptIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app, _ := f.app(t, repository.AppPublic)
	u := f.user(t, "u@example.com", "")

	require.NoError(t, f.res.OptIn(ctx, u.ID, app.ID))
	require.NoError(t, f.res.OptIn(ctx, u.ID, app.ID))
	assert.Equal(t, autherr.KindNotFound, autherr.KindOf(f.res.OptIn(ctx, u.ID, "missing")))

	fresh, err := f.repo.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	_, err = f.res.ResolveAccess(ctx, fresh, app.ID)
	assert.NoError(t, err)
}

func TestVerifyClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pub, noSecret := f.app(t, repository.AppPublic)
	conf, secret := f.app(t, repository.AppConfidential)
	assert.Empty(t, noSecret)
	require.NotEmpty(t, secret)
	require.NotNil(t, conf.ClientSecretHash)
	assert.NotEqual(t, secret, *conf.ClientSecretHash)

	got, err := f.clients.VerifyClient(ctx, pub.ClientID, "")
	require.NoError(t, err)
	assert.Equal(t, pub.ID, got.ID)

	_, err = f.clients.VerifyClient(ctx, conf.ClientID, secret)
	require.NoError(t, err)

	_, err = f.clients.VerifyClient(ctx, conf.ClientID, "")
	assert.Equal(t, autherr.KindClientSecretRequired, autherr.KindOf(err))
	_, err = f.clients.VerifyClient(ctx, conf.ClientID, "wrong")
	assert.Equal(t, autherr.KindInvalidClient, autherr.KindOf(err))
	_, err = f.clients.VerifyClient(ctx, "unknown-client", "whatever")
	assert.Equal(t, autherr.KindInvalidCredentials, autherr.KindOf(err))
}

func TestPromoteToConfidentialOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app, _ := f.app(t, repository.AppPublic)

	secret, err := f.clients.PromoteToConfidential(ctx, app.ID)
	require.NoError(t, err)
	require.NotEmpty(t, secret)

	_, err = f.clients.VerifyClient(ctx, app.ClientID, secret)
	require.NoError(t, err)

	_, err = f.clients.PromoteToConfidential(ctx, app.ID)
	assert.Equal(t, autherr.KindConflict, autherr.KindOf(err))
	_, err = f.clients.PromoteToConfidential(ctx, "missing")
	assert.Equal(t, autherr.KindNotFound, autherr.KindOf(err))
}

func TestRegisterAppValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.clients.RegisterApp(ctx, "", repository.AppPublic, nil)
	assert.Equal(t, autherr.KindInvalidInput, autherr.KindOf(err))
	_, _, err = f.clients.RegisterApp(ctx, "x", "SECRETIVE", nil)
	assert.Equal(t, autherr.KindInvalidInput, autherr.KindOf(err))
	_, _, err = f.clients.RegisterApp(ctx, "x", repository.AppPublic, []string{"not a url"})
	assert.Equal(t, autherr.KindInvalidInput, autherr.KindOf(err))
}

func TestAssignRoleRejectsMalformedName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app, _ := f.app(t, repository.AppPublic)
	u := f.user(t, "ana@example.com", "")

	_, err := f.res.AssignRole(ctx, u.ID, app.ID, "two words", nil)
	assert.Equal(t, autherr.KindInvalidInput, autherr.KindOf(err))
}

func TestRoleWithoutOptInIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appA, _ := f.app(t, repository.AppPublic)
	appB, _ := f.app(t, repository.AppPublic)

	u := f.user(t, "viewer@example.com", appA.ID)
	_, err := f.res.AssignRole(ctx, u.ID, appB.ID, "viewer", nil)
	require.NoError(t, err)

	_, err = f.res.ResolveAccess(ctx, u, appB.ID)
	assert.Equal(t, autherr.KindForbidden, autherr.KindOf(err))

	require.NoError(t, f.res.OptIn(ctx, u.ID, appB.ID))
	u, err = f.repo.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	acc, err := f.res.ResolveAccess(ctx, u, appB.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"viewer"}, acc.Roles)
	assert.False(t, acc.SuperAdmin)
}
