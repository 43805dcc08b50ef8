package ots

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/clock"
	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/dropDatabas3/rugi-auth/internal/email"
	"github.com/dropDatabas3/rugi-auth/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	clk    *clock.Manual
	outbox *email.Outbox
	mgr    *Manager
	user   *repository.User
}

func newFixture(t *testing.T, cfg Config) fixture {
	t.Helper()
	clk := clock.NewManual(time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC))
	repo := memory.New(clk)
	u, err := repo.Users().Create(context.Background(), repository.CreateUserInput{
		Email: "ana@example.com", RegistrationMethod: repository.RegistrationPassword,
	})
	require.NoError(t, err)
	outbox := &email.Outbox{}
	return fixture{clk: clk, outbox: outbox, user: u, mgr: NewManager(repo.Secrets(), outbox, clk, cfg)}
}

func (f fixture) lastData(t *testing.T, key string) string {
	t.Helper()
	sent, ok := f.outbox.Last(f.user.Email)
	require.True(t, ok)
	v, _ := sent.Data[key].(string)
	return v
}

func TestOTPIssueAndConsume(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	require.NoError(t, f.mgr.Request(ctx, f.user, repository.SecretOTPLogin))
	code := f.lastData(t, "Code")
	assert.Len(t, code, DefaultOTPDigits)

	assert.Equal(t, autherr.KindInvalidOrExpired, autherr.KindOf(f.mgr.ConsumeOTP(ctx, f.user.ID, "000000x")))
	require.NoError(t, f.mgr.ConsumeOTP(ctx, f.user.ID, code))
	// un solo uso
	assert.Equal(t, autherr.KindInvalidOrExpired, autherr.KindOf(f.mgr.ConsumeOTP(ctx, f.user.ID, code)))
}

func TestOTPSupersededAndExpired(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	require.NoError(t, f.mgr.Request(ctx, f.user, repository.SecretOTPLogin))
	first := f.lastData(t, "Code")
	require.NoError(t, f.mgr.Request(ctx, f.user, repository.SecretOTPLogin))
	second := f.lastData(t, "Code")

	if first != second {
		assert.Equal(t, autherr.KindInvalidOrExpired, autherr.KindOf(f.mgr.ConsumeOTP(ctx, f.user.ID, first)))
	}

	f.clk.Advance(DefaultOTPTTL)
	assert.Equal(t, autherr.KindInvalidOrExpired, autherr.KindOf(f.mgr.ConsumeOTP(ctx, f.user.ID, second)))
}

func TestOTPNeverIssued(t *testing.T) {
	f := newFixture(t, Config{})
	err := f.mgr.ConsumeOTP(context.Background(), f.user.ID, "123456")
	assert.Equal(t, autherr.KindInvalidOrExpired, autherr.KindOf(err))
}

func TestResetTokenSecondRequestInvalidatesFirst(t *testing.T) {
	f := newFixture(t, Config{ResetURL: "https://app.test/reset?lang=es"})
	ctx := context.Background()

	require.NoError(t, f.mgr.Request(ctx, f.user, repository.SecretPasswordReset))
	first := f.lastData(t, "Token")
	require.NoError(t, f.mgr.Request(ctx, f.user, repository.SecretPasswordReset))
	second := f.lastData(t, "Token")
	require.NotEqual(t, first, second)

	link, err := url.Parse(f.lastData(t, "Link"))
	require.NoError(t, err)
	assert.Equal(t, second, link.Query().Get("token"))
	assert.Equal(t, "es", link.Query().Get("lang"))

	_, err = f.mgr.ConsumeResetToken(ctx, first)
	assert.Equal(t, autherr.KindInvalidOrExpired, autherr.KindOf(err))

	uid, err := f.mgr.ConsumeResetToken(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, uid)

	_, err = f.mgr.ConsumeResetToken(ctx, second)
	assert.Equal(t, autherr.KindInvalidOrExpired, autherr.KindOf(err))
}

func TestResetTokenExpires(t *testing.T) {
	f := newFixture(t, Config{ResetTTL: time.Minute})
	ctx := context.Background()
	require.NoError(t, f.mgr.Request(ctx, f.user, repository.SecretPasswordReset))
	tok := f.lastData(t, "Token")

	f.clk.Advance(time.Minute)
	_, err := f.mgr.ConsumeResetToken(ctx, tok)
	assert.Equal(t, autherr.KindInvalidOrExpired, autherr.KindOf(err))

	n, err := f.mgr.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNotifierFailureKeepsSecretValid(t *testing.T) {
	f := newFixture(t, Config{})
	f.outbox.Err = errors.New("smtp down")
	ctx := context.Background()

	require.NoError(t, f.mgr.Request(ctx, f.user, repository.SecretOTPLogin))
	assert.NoError(t, f.mgr.ConsumeOTP(ctx, f.user.ID, f.lastData(t, "Code")))
}

func TestUnknownKind(t *testing.T) {
	f := newFixture(t, Config{})
	err := f.mgr.Request(context.Background(), f.user, repository.SecretKind("magic_link"))
	assert.Equal(t, autherr.KindInvalidInput, autherr.KindOf(err))
}
