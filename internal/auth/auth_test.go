package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/audit"
	"github.com/dropDatabas3/rugi-auth/internal/clock"
	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/dropDatabas3/rugi-auth/internal/email"
	jwtx "github.com/dropDatabas3/rugi-auth/internal/jwt"
	"github.com/dropDatabas3/rugi-auth/internal/oauth"
	"github.com/dropDatabas3/rugi-auth/internal/security/password"
	"github.com/dropDatabas3/rugi-auth/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	keyOnce sync.Once
	key     *rsa.PrivateKey
	keyErr  error

	fastHasher = password.NewHasher(password.Params{Memory: 1024, Time: 1, Parallelism: 1})
)

const goodPassword = "Sup3rSecret"

type captureAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureAuditor) Record(_ context.Context, ev audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureAuditor) actions() []repository.AuditAction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]repository.AuditAction, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Action)
	}
	return out
}

type stubProvider struct {
	ident *oauth.ExternalIdentity
}

func (p stubProvider) Kind() oauth.Kind               { return p.ident.Provider }
func (p stubProvider) AuthCodeURL(state string) string { return "https://idp.test/auth?state=" + state }
func (p stubProvider) ExchangeCodeForIdentity(_ context.Context, code string) (*oauth.ExternalIdentity, error) {
	if code != "ok" {
		return nil, autherr.ErrInvalidCredentials
	}
	cp := *p.ident
	return &cp, nil
}

type env struct {
	t      *testing.T
	clk    *clock.Manual
	repo   *memory.Store
	svc    *Service
	outbox *email.Outbox
	audit  *captureAuditor
	issuer *jwtx.Issuer
	app    *repository.App
}

func newEnv(t *testing.T, providers ...oauth.Provider) *env {
	t.Helper()
	keyOnce.Do(func() { key, keyErr = rsa.GenerateKey(rand.Reader, 2048) })
	require.NoError(t, keyErr)
	km, err := jwtx.NewKeyMaterial(key)
	require.NoError(t, err)

	clk := clock.NewManual(time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC))
	repo := memory.New(clk)
	issuer := jwtx.NewIssuer("https://auth.test", km, 15*time.Minute, clk)
	outbox := &email.Outbox{}
	aud := &captureAuditor{}

	svc, err := New(Deps{
		Repo:      repo,
		Hasher:    fastHasher,
		Blacklist: password.NewBlacklist("Password123"),
		Issuer:    issuer,
		Notifier:  outbox,
		Audit:     aud,
		OAuth:     oauth.NewRegistry(providers...),
		Clock:     clk,
	})
	require.NoError(t, err)

	app, _, err := svc.Clients().RegisterApp(context.Background(), "web", repository.AppPublic, nil)
	require.NoError(t, err)

	return &env{t: t, clk: clk, repo: repo, svc: svc, outbox: outbox, audit: aud, issuer: issuer, app: app}
}

func (e *env) client() Client { return Client{ClientID: e.app.ClientID} }

func (e *env) register(emailAddr string) *Tokens {
	e.t.Helper()
	tok, err := e.svc.Register(context.Background(), RegisterInput{Email: emailAddr, Password: goodPassword, Client: e.client()})
	require.NoError(e.t, err)
	return tok
}

func (e *env) superadmin(emailAddr string) string {
	e.t.Helper()
	tok := e.register(emailAddr)
	_, err := e.svc.authz.AssignRole(context.Background(), tok.UserID, e.app.ID, "owner", nil)
	require.NoError(e.t, err)
	return tok.UserID
}

func TestLoginRefreshReplay(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register("ana@example.com")

	tok, err := e.svc.Login(ctx, LoginInput{Email: " ANA@example.com ", Password: goodPassword, Client: e.client()})
	require.NoError(t, err)
	assert.Equal(t, TokenTypeBearer, tok.TokenType)
	assert.Equal(t, int64(900), tok.ExpiresIn)

	claims, err := e.issuer.VerifyAccessToken(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, tok.UserID, claims.Subject)
	assert.Equal(t, e.app.ID, claims.TenantID)
	assert.Equal(t, e.app.ClientID, claims.Audience)

	r1, err := e.svc.Refresh(ctx, tok.RefreshToken, e.app.ClientID)
	require.NoError(t, err)
	assert.NotEqual(t, tok.RefreshToken, r1.RefreshToken)

	// replay del token ya rotado
	_, err = e.svc.Refresh(ctx, tok.RefreshToken, e.app.ClientID)
	assert.Equal(t, autherr.KindTokenRevoked, autherr.KindOf(err))

	res, err := e.svc.Logout(ctx, r1.RefreshToken)
	require.NoError(t, err)
	assert.True(t, res.Revoked)
	_, err = e.svc.Refresh(ctx, r1.RefreshToken, e.app.ClientID)
	assert.Equal(t, autherr.KindTokenRevoked, autherr.KindOf(err))

	assert.Equal(t, []repository.AuditAction{
		repository.AuditRegister, repository.AuditLogin, repository.AuditRefresh, repository.AuditRevoke,
	}, e.audit.actions())
}

func TestLoginIsUndifferentiated(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register("ana@example.com")

	cases := []LoginInput{
		{Email: "nobody@example.com", Password: goodPassword, Client: e.client()},
		{Email: "ana@example.com", Password: "Wrong-pass1", Client: e.client()},
		{Email: "ana@example.com", Password: goodPassword, Client: Client{ClientID: "unknown"}},
	}
	for _, in := range cases {
		_, err := e.svc.Login(ctx, in)
		assert.Equal(t, autherr.KindInvalidCredentials, autherr.KindOf(err), in.Email)
	}
}

func TestLoginConfidentialClient(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register("ana@example.com")
	secret, err := e.svc.Clients().PromoteToConfidential(ctx, e.app.ID)
	require.NoError(t, err)

	in := LoginInput{Email: "ana@example.com", Password: goodPassword, Client: e.client()}
	_, err = e.svc.Login(ctx, in)
	assert.Equal(t, autherr.KindClientSecretRequired, autherr.KindOf(err))

	in.Client.ClientSecret = "nope"
	_, err = e.svc.Login(ctx, in)
	assert.Equal(t, autherr.KindInvalidClient, autherr.KindOf(err))

	in.Client.ClientSecret = secret
	_, err = e.svc.Login(ctx, in)
	assert.NoError(t, err)
}

func TestLoginMembershipAndSuperAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register("ana@example.com")
	bossID := e.superadmin("boss@example.com")

	other, _, err := e.svc.Clients().RegisterApp(ctx, "crm", repository.AppPublic, nil)
	require.NoError(t, err)
	otherClient := Client{ClientID: other.ClientID}

	_, err = e.svc.Login(ctx, LoginInput{Email: "ana@example.com", Password: goodPassword, Client: otherClient})
	assert.Equal(t, autherr.KindForbidden, autherr.KindOf(err))

	tok, err := e.svc.Login(ctx, LoginInput{Email: "boss@example.com", Password: goodPassword, Client: otherClient})
	require.NoError(t, err)
	assert.Equal(t, bossID, tok.UserID)
	assert.Empty(t, tok.Roles)
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register("ana@example.com")

	_, err := e.svc.Register(ctx, RegisterInput{Email: "Ana@Example.com", Password: goodPassword, Client: e.client()})
	assert.Equal(t, autherr.KindConflict, autherr.KindOf(err))

	_, err = e.svc.Register(ctx, RegisterInput{Email: "bob@example.com", Password: "short", Client: e.client()})
	assert.Equal(t, autherr.KindInvalidInput, autherr.KindOf(err))

	_, err = e.svc.Register(ctx, RegisterInput{Email: "bob@example.com", Password: "Password123", Client: e.client()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blacklisted")

	_, err = e.svc.Register(ctx, RegisterInput{Email: "not-an-email", Password: goodPassword, Client: e.client()})
	assert.Equal(t, autherr.KindInvalidInput, autherr.KindOf(err))
}

func TestOTPFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register("ana@example.com")

	// email desconocido: misma respuesta, sin mail
	require.NoError(t, e.svc.RequestOTP(ctx, "ghost@example.com"))
	assert.Empty(t, e.outbox.Messages())

	// email mal formado: INVALID_INPUT, no la respuesta uniforme
	assert.Equal(t, autherr.KindInvalidInput, autherr.KindOf(e.svc.RequestOTP(ctx, "not-an-email")))
	assert.Equal(t, autherr.KindInvalidInput, autherr.KindOf(e.svc.RequestPasswordReset(ctx, "not-an-email")))
	assert.Empty(t, e.outbox.Messages())

	require.NoError(t, e.svc.RequestOTP(ctx, "ana@example.com"))
	sent, ok := e.outbox.Last("ana@example.com")
	require.True(t, ok)
	code := sent.Data["Code"].(string)

	_, err := e.svc.LoginWithOTP(ctx, OTPLoginInput{Email: "ghost@example.com", Code: code, Client: e.client()})
	assert.Equal(t, autherr.KindInvalidOrExpired, autherr.KindOf(err))

	tok, err := e.svc.LoginWithOTP(ctx, OTPLoginInput{Email: "ana@example.com", Code: code, Client: e.client()})
	require.NoError(t, err)
	assert.NotEmpty(t, tok.RefreshToken)

	_, err = e.svc.LoginWithOTP(ctx, OTPLoginInput{Email: "ana@example.com", Code: code, Client: e.client()})
	assert.Equal(t, autherr.KindInvalidOrExpired, autherr.KindOf(err))
}

func TestPasswordResetScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register("ana@example.com")
	live, err := e.svc.Login(ctx, LoginInput{Email: "ana@example.com", Password: goodPassword, Client: e.client()})
	require.NoError(t, err)

	require.NoError(t, e.svc.RequestPasswordReset(ctx, "ana@example.com"))
	first, _ := e.outbox.Last("ana@example.com")
	require.NoError(t, e.svc.RequestPasswordReset(ctx, "ana@example.com"))
	second, _ := e.outbox.Last("ana@example.com")

	const newPassword = "N3wSecretPass"
	err = e.svc.ResetPassword(ctx, first.Data["Token"].(string), newPassword)
	assert.Equal(t, autherr.KindInvalidOrExpired, autherr.KindOf(err))

	// política inválida no quema el token
	err = e.svc.ResetPassword(ctx, second.Data["Token"].(string), "weak")
	assert.Equal(t, autherr.KindInvalidInput, autherr.KindOf(err))

	require.NoError(t, e.svc.ResetPassword(ctx, second.Data["Token"].(string), newPassword))

	_, err = e.svc.Refresh(ctx, live.RefreshToken, e.app.ClientID)
	assert.Equal(t, autherr.KindTokenRevoked, autherr.KindOf(err))

	_, err = e.svc.Login(ctx, LoginInput{Email: "ana@example.com", Password: goodPassword, Client: e.client()})
	assert.Equal(t, autherr.KindInvalidCredentials, autherr.KindOf(err))
	_, err = e.svc.Login(ctx, LoginInput{Email: "ana@example.com", Password: newPassword, Client: e.client()})
	assert.NoError(t, err)

	assert.Contains(t, e.audit.actions(), repository.AuditPasswordResetComplete)
}

func TestOAuthLogin(t *testing.T) {
	gh := stubProvider{ident: &oauth.ExternalIdentity{
		Provider: oauth.KindGitHub, ProviderID: "9001", Email: "gh@example.com", EmailVerified: true, Name: "GH",
	}}
	e := newEnv(t, gh)
	ctx := context.Background()

	first, err := e.svc.OAuthLogin(ctx, OAuthLoginInput{Provider: "github", Code: "ok", Client: e.client()})
	require.NoError(t, err)
	again, err := e.svc.OAuthLogin(ctx, OAuthLoginInput{Provider: "github", Code: "ok", Client: e.client()})
	require.NoError(t, err)
	assert.Equal(t, first.UserID, again.UserID)

	u, err := e.repo.Users().GetByID(ctx, first.UserID)
	require.NoError(t, err)
	assert.Equal(t, repository.RegistrationOAuth, u.RegistrationMethod)
	assert.Nil(t, u.PasswordHash)
	assert.True(t, u.HasOptedIn(e.app.ID))

	_, err = e.svc.OAuthLogin(ctx, OAuthLoginInput{Provider: "gitlab", Code: "ok", Client: e.client()})
	assert.Equal(t, autherr.KindNotFound, autherr.KindOf(err))

	_, err = e.svc.OAuthLogin(ctx, OAuthLoginInput{Provider: "github", Code: "bad", Client: e.client()})
	assert.Equal(t, autherr.KindInvalidCredentials, autherr.KindOf(err))

	// usuario OAuth sin password no puede loguear con password
	_, err = e.svc.Login(ctx, LoginInput{Email: "gh@example.com", Password: goodPassword, Client: e.client()})
	assert.Equal(t, autherr.KindInvalidCredentials, autherr.KindOf(err))
}

func TestOAuthLinksExistingEmail(t *testing.T) {
	verified := stubProvider{ident: &oauth.ExternalIdentity{
		Provider: oauth.KindGoogle, ProviderID: "g-1", Email: "ana@example.com", EmailVerified: true,
	}}
	e := newEnv(t, verified)
	ctx := context.Background()
	reg := e.register("ana@example.com")

	tok, err := e.svc.OAuthLogin(ctx, OAuthLoginInput{Provider: "google", Code: "ok", Client: e.client()})
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, tok.UserID)

	u, err := e.repo.Users().GetByOAuth(ctx, "google", "g-1")
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, u.ID)
	assert.True(t, u.EmailVerified)
}

func TestOAuthUnverifiedEmailDoesNotLink(t *testing.T) {
	unverified := stubProvider{ident: &oauth.ExternalIdentity{
		Provider: oauth.KindGoogle, ProviderID: "g-2", Email: "ana@example.com", EmailVerified: false,
	}}
	e := newEnv(t, unverified)
	e.register("ana@example.com")

	_, err := e.svc.OAuthLogin(context.Background(), OAuthLoginInput{Provider: "google", Code: "ok", Client: e.client()})
	assert.Equal(t, autherr.KindConflict, autherr.KindOf(err))
}

func TestInviteUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	plain := e.register("ana@example.com")
	bossID := e.superadmin("boss@example.com")

	_, err := e.svc.InviteUser(ctx, plain.UserID, InviteInput{Email: "new@example.com", AppID: e.app.ID})
	assert.Equal(t, autherr.KindForbidden, autherr.KindOf(err))

	inv, err := e.svc.InviteUser(ctx, bossID, InviteInput{Email: "New@Example.com", AppID: e.app.ID})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", inv.User.Email)
	assert.Equal(t, repository.RegistrationInvite, inv.User.RegistrationMethod)
	assert.Len(t, inv.TemporaryPassword, InvitePasswordLength)

	sent, ok := e.outbox.Last("new@example.com")
	require.True(t, ok)
	assert.Equal(t, email.TemplateUserInvite, sent.Template)

	_, err = e.svc.Login(ctx, LoginInput{Email: "new@example.com", Password: inv.TemporaryPassword, Client: e.client()})
	assert.NoError(t, err)

	_, err = e.svc.InviteUser(ctx, bossID, InviteInput{Email: "new@example.com", AppID: e.app.ID})
	assert.Equal(t, autherr.KindConflict, autherr.KindOf(err))
	_, err = e.svc.InviteUser(ctx, bossID, InviteInput{Email: "x@example.com", AppID: "missing"})
	assert.Equal(t, autherr.KindNotFound, autherr.KindOf(err))
}

func TestDeleteUserCascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	victim := e.register("ana@example.com")
	bossID := e.superadmin("boss@example.com")

	assert.Equal(t, autherr.KindForbidden, autherr.KindOf(e.svc.DeleteUser(ctx, victim.UserID, bossID)))
	assert.Equal(t, autherr.KindInvalidInput, autherr.KindOf(e.svc.DeleteUser(ctx, bossID, bossID)))

	require.NoError(t, e.svc.DeleteUser(ctx, bossID, victim.UserID))
	_, err := e.svc.Refresh(ctx, victim.RefreshToken, e.app.ClientID)
	assert.Equal(t, autherr.KindTokenInvalid, autherr.KindOf(err))

	assert.Equal(t, autherr.KindNotFound, autherr.KindOf(e.svc.DeleteUser(ctx, bossID, victim.UserID)))
}

func TestAssignRoleRecomputedOnRefresh(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana := e.register("ana@example.com")
	bossID := e.superadmin("boss@example.com")

	_, err := e.svc.AssignRole(ctx, ana.UserID, ana.UserID, e.app.ID, "editor")
	assert.Equal(t, autherr.KindForbidden, autherr.KindOf(err))

	_, err = e.svc.AssignRole(ctx, bossID, ana.UserID, e.app.ID, "editor")
	require.NoError(t, err)
	_, err = e.svc.AssignRole(ctx, bossID, ana.UserID, e.app.ID, "editor")
	assert.Equal(t, autherr.KindConflict, autherr.KindOf(err))

	tok, err := e.svc.Refresh(ctx, ana.RefreshToken, e.app.ClientID)
	require.NoError(t, err)
	claims, err := e.issuer.VerifyAccessToken(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"editor"}, claims.Roles)

	assert.Contains(t, e.audit.actions(), repository.AuditRoleAssign)
}
