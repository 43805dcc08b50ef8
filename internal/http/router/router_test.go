package router

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/auth"
	"github.com/dropDatabas3/rugi-auth/internal/clock"
	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/dropDatabas3/rugi-auth/internal/email"
	"github.com/dropDatabas3/rugi-auth/internal/http/controllers"
	jwtx "github.com/dropDatabas3/rugi-auth/internal/jwt"
	"github.com/dropDatabas3/rugi-auth/internal/metrics"
	"github.com/dropDatabas3/rugi-auth/internal/rate"
	"github.com/dropDatabas3/rugi-auth/internal/security/password"
	"github.com/dropDatabas3/rugi-auth/internal/store/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodPassword = "Sup3rSecret"

type harness struct {
	t      *testing.T
	clk    *clock.Manual
	repo   *memory.Store
	outbox *email.Outbox
	app    *repository.App
	h      http.Handler
	health error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	km, err := jwtx.NewKeyMaterial(key)
	require.NoError(t, err)

	clk := clock.NewManual(time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC))
	repo := memory.New(clk)
	outbox := &email.Outbox{}
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	svc, err := auth.New(auth.Deps{
		Repo:     repo,
		Hasher:   password.NewHasher(password.Params{Memory: 1024, Time: 1, Parallelism: 1}),
		Issuer:   jwtx.NewIssuer("https://auth.test", km, 15*time.Minute, clk),
		Notifier: outbox,
		Metrics:  m,
		Clock:    clk,
	})
	require.NoError(t, err)
	app, _, err := svc.Clients().RegisterApp(context.Background(), "web", repository.AppPublic, nil)
	require.NoError(t, err)

	hs := &harness{t: t, clk: clk, repo: repo, outbox: outbox, app: app}
	ctrl := controllers.New(svc, func(context.Context) error { return hs.health })
	hs.h = New(Deps{
		Controllers: ctrl,
		Issuer:      svc.Issuer(),
		Rate:        rate.NewController(rate.ControllerDeps{Clock: clk, Metrics: m}),
		General:     rate.Policy{Name: "general", Limit: 100, Window: time.Minute},
		Sensitive:   rate.Policy{Name: "sensitive", Limit: 5, Window: time.Minute},
		Metrics:     m,
	})
	return hs
}

func (hs *harness) do(method, path, bearer string, body any) *httptest.ResponseRecorder {
	hs.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(hs.t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	hs.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (hs *harness) register(emailAddr string) auth.Tokens {
	hs.t.Helper()
	rec := hs.do(http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email": emailAddr, "password": goodPassword, "client_id": hs.app.ClientID,
	})
	require.Equal(hs.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[auth.Tokens](hs.t, rec)
}

func TestSessionLifecycle(t *testing.T) {
	hs := newHarness(t)
	hs.register("ana@example.com")

	rec := hs.do(http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "ana@example.com", "password": goodPassword, "client_id": hs.app.ClientID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	tok := decode[auth.Tokens](t, rec)
	assert.Equal(t, "Bearer", tok.TokenType)

	rec = hs.do(http.MethodGet, "/v1/me", tok.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[map[string]any](t, rec)
	assert.Equal(t, tok.UserID, me["user_id"])
	assert.Equal(t, hs.app.ID, me["app_id"])
	assert.Equal(t, hs.app.ClientID, me["client_id"])

	rec = hs.do(http.MethodPost, "/v1/auth/refresh", "", map[string]string{
		"refresh_token": tok.RefreshToken, "client_id": hs.app.ClientID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	next := decode[auth.Tokens](t, rec)

	// replay of the rotated token
	rec = hs.do(http.MethodPost, "/v1/auth/refresh", "", map[string]string{
		"refresh_token": tok.RefreshToken, "client_id": hs.app.ClientID,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_REVOKED", decode[errBody](t, rec).Code)

	rec = hs.do(http.MethodPost, "/v1/auth/logout", "", map[string]string{"refresh_token": next.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"revoked":true}`, rec.Body.String())

	rec = hs.do(http.MethodPost, "/v1/auth/logout", "", map[string]string{"refresh_token": "never-issued"})
	assert.JSONEq(t, `{"revoked":true}`, rec.Body.String())
}

func TestLoginFailureIsUndifferentiated(t *testing.T) {
	hs := newHarness(t)
	hs.register("ana@example.com")

	wrong := hs.do(http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "ana@example.com", "password": "nope-nope-1", "client_id": hs.app.ClientID,
	})
	unknown := hs.do(http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "ghost@example.com", "password": goodPassword, "client_id": hs.app.ClientID,
	})
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.Equal(t, decode[errBody](t, wrong), decode[errBody](t, unknown))
	assert.Equal(t, "INVALID_CREDENTIALS", decode[errBody](t, wrong).Code)
}

func TestSensitiveRateLimit(t *testing.T) {
	hs := newHarness(t)
	body := map[string]string{"email": "x@example.com", "password": "whatever1", "client_id": hs.app.ClientID}

	for i := 0; i < 5; i++ {
		rec := hs.do(http.MethodPost, "/v1/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	}
	rec := hs.do(http.MethodPost, "/v1/auth/login", "", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decode[errBody](t, rec).Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// non-sensitive routes keep working
	rec = hs.do(http.MethodGet, "/v1/auth/oauth/providers", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	hs.clk.Advance(61 * time.Second)
	rec = hs.do(http.MethodPost, "/v1/auth/login", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOTPRequestIsUniform(t *testing.T) {
	hs := newHarness(t)
	hs.register("ana@example.com")

	known := hs.do(http.MethodPost, "/v1/auth/otp/request", "", map[string]string{"email": "ana@example.com"})
	unknown := hs.do(http.MethodPost, "/v1/auth/otp/request", "", map[string]string{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusAccepted, known.Code)
	assert.Equal(t, known.Code, unknown.Code)
	assert.JSONEq(t, known.Body.String(), unknown.Body.String())

	sent, ok := hs.outbox.Last("ana@example.com")
	require.True(t, ok)
	code, _ := sent.Data["Code"].(string)
	require.Len(t, code, 6)

	rec := hs.do(http.MethodPost, "/v1/auth/otp/login", "", map[string]string{
		"email": "ana@example.com", "code": code, "client_id": hs.app.ClientID,
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = hs.do(http.MethodPost, "/v1/auth/otp/login", "", map[string]string{
		"email": "ana@example.com", "code": code, "client_id": hs.app.ClientID,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_OR_EXPIRED", decode[errBody](t, rec).Code)
}

func TestAuthRequired(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(http.MethodGet, "/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_INVALID", decode[errBody](t, rec).Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	rec = hs.do(http.MethodGet, "/v1/me", "not.a.jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok := hs.register("ana@example.com")
	hs.clk.Advance(16 * time.Minute)
	rec = hs.do(http.MethodGet, "/v1/me", tok.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_EXPIRED", decode[errBody](t, rec).Code)
}

func TestAdminRequiresSuperAdmin(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	regular := hs.register("user@example.com")
	admin := hs.register("boss@example.com")

	role, err := hs.repo.Roles().FindOrCreate(ctx, hs.app.ID, "owner")
	require.NoError(t, err)
	_, err = hs.repo.Roles().Assign(ctx, admin.UserID, role.ID, nil)
	require.NoError(t, err)

	rec := hs.do(http.MethodGet, "/v1/admin/apps", regular.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decode[errBody](t, rec).Code)

	rec = hs.do(http.MethodPost, "/v1/admin/apps", admin.AccessToken, map[string]any{
		"name": "backoffice", "type": "CONFIDENTIAL", "redirect_uris": []string{"https://bo.example.com/cb"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	assert.NotEmpty(t, created["client_secret"])
	assert.Equal(t, "CONFIDENTIAL", created["type"])

	rec = hs.do(http.MethodGet, "/v1/admin/apps", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	apps := decode[[]map[string]any](t, rec)
	require.Len(t, apps, 2)
	for _, a := range apps {
		assert.NotContains(t, a, "client_secret")
	}

	rec = hs.do(http.MethodPost, "/v1/admin/apps/"+hs.app.ID+"/promote", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = hs.do(http.MethodPost, "/v1/admin/apps/"+hs.app.ID+"/promote", admin.AccessToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	path := "/v1/admin/apps/" + hs.app.ID + "/users/" + regular.UserID + "/roles"
	rec = hs.do(http.MethodPost, path, admin.AccessToken, map[string]string{"role": "editor"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = hs.do(http.MethodDelete, path+"/editor", admin.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = hs.do(http.MethodDelete, "/v1/admin/users/"+regular.UserID, admin.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = hs.do(http.MethodDelete, "/v1/admin/users/"+regular.UserID, admin.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInviteDoesNotLeakPassword(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	admin := hs.register("boss@example.com")
	role, err := hs.repo.Roles().FindOrCreate(ctx, hs.app.ID, "admin")
	require.NoError(t, err)
	_, err = hs.repo.Roles().Assign(ctx, admin.UserID, role.ID, nil)
	require.NoError(t, err)

	rec := hs.do(http.MethodPost, "/v1/admin/users/invite", admin.AccessToken, map[string]string{
		"email": "new@example.com", "app_id": hs.app.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, strings.ToLower(rec.Body.String()), "password")

	sent, ok := hs.outbox.Last("new@example.com")
	require.True(t, ok)
	assert.Equal(t, email.TemplateUserInvite, sent.Template)
}

func TestPublicEndpoints(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(http.MethodGet, "/.well-known/jwks.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var jwks struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jwks))
	require.Len(t, jwks.Keys, 1)
	assert.Equal(t, "RS256", jwks.Keys[0]["alg"])
	assert.NotContains(t, jwks.Keys[0], "d")

	rec = hs.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	hs.health = errors.New("db down")
	rec = hs.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = hs.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rugi_http_requests_total")

	rec = hs.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[errBody](t, rec).Code)

	rec = hs.do(http.MethodGet, "/v1/auth/oauth/gitlab/authorize", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMalformedJSON(t *testing.T) {
	hs := newHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	hs.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decode[errBody](t, rec).Code)
}
