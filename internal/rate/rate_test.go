package rate

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/clock"
	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"github.com/dropDatabas3/rugi-auth/internal/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

func TestMemoryStoreSlidingWindow(t *testing.T) {
	s := NewMemoryStore()
	p := Policy{Name: "t", Limit: 3, Window: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := s.Hit(ctx, "1.2.3.4", p, t0.Add(time.Duration(i)*10*time.Second))
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, int64(2-i), res.Remaining)
	}

	// 4th at t0+30s is denied until the first hit (t0) leaves the window.
	res, err := s.Hit(ctx, "1.2.3.4", p, t0.Add(30*time.Second))
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 30*time.Second, res.RetryAfter)

	// sliding, not fixed: at t0+61s only the first hit has expired.
	res, _ = s.Hit(ctx, "1.2.3.4", p, t0.Add(61*time.Second))
	assert.True(t, res.Allowed)
	res, _ = s.Hit(ctx, "1.2.3.4", p, t0.Add(62*time.Second))
	assert.False(t, res.Allowed)
	assert.Equal(t, 8*time.Second, res.RetryAfter)
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	s := NewMemoryStore()
	p := Policy{Name: "t", Limit: 1, Window: time.Minute}
	ctx := context.Background()

	a, _ := s.Hit(ctx, "a", p, t0)
	b, _ := s.Hit(ctx, "b", p, t0)
	assert.True(t, a.Allowed)
	assert.True(t, b.Allowed)

	other := Policy{Name: "other", Limit: 1, Window: time.Minute}
	c, _ := s.Hit(ctx, "a", other, t0)
	assert.True(t, c.Allowed)
}

func TestMemoryStoreConcurrentNeverOverAdmits(t *testing.T) {
	s := NewMemoryStore()
	p := Policy{Name: "t", Limit: 10, Window: time.Minute}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Hit(context.Background(), "k", p, t0)
			if err == nil && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}

func TestMemoryStoreRecreatesEvictedWindowOnce(t *testing.T) {
	s := NewMemoryStore()
	p := Policy{Name: "t", Limit: 5, Window: time.Minute}

	for round := 0; round < 20; round++ {
		// lo que haría el janitor al expirar la clave
		s.c.Delete("t:k")

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			allowed int
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := s.Hit(context.Background(), "k", p, t0)
				if err == nil && res.Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		require.Equal(t, 5, allowed, "round %d", round)

		_, ok := s.c.Get("t:k")
		assert.True(t, ok)
	}
}

func TestControllerDeniesWithRetryAfter(t *testing.T) {
	clk := clock.NewManual(t0)
	c := NewController(ControllerDeps{Clock: clk})

	for i := 0; i < Sensitive.Limit; i++ {
		_, err := c.Check(context.Background(), Sensitive, "9.9.9.9")
		require.NoError(t, err)
	}
	res, err := c.Check(context.Background(), Sensitive, "9.9.9.9")
	require.Error(t, err)
	e, ok := autherr.As(err)
	require.True(t, ok)
	assert.Equal(t, autherr.KindRateLimited, e.Kind)
	assert.Equal(t, 15*time.Minute, e.RetryAfter)
	assert.False(t, res.Allowed)

	clk.Advance(15*time.Minute + time.Millisecond)
	_, err = c.Check(context.Background(), Sensitive, "9.9.9.9")
	assert.NoError(t, err)
}

type failingStore struct{ calls int }

func (f *failingStore) Hit(context.Context, string, Policy, time.Time) (Result, error) {
	f.calls++
	return Result{}, errors.New("connection refused")
}

func TestControllerFailsOpenToMemory(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	primary := &failingStore{}
	c := NewController(ControllerDeps{Primary: primary, Clock: clock.NewManual(t0), Metrics: m})

	p := Policy{Name: "general", Limit: 2, Window: time.Minute}
	for i := 0; i < 2; i++ {
		_, err := c.Check(context.Background(), p, "ip")
		require.NoError(t, err)
	}
	// limits still apply through the fallback
	_, err = c.Check(context.Background(), p, "ip")
	assert.Equal(t, autherr.KindRateLimited, autherr.KindOf(err))
	assert.Equal(t, 3, primary.calls)

	expected := `
# HELP rugi_rate_limit_store_fallbacks_total Veces que el store primario falló y se usó memoria
# TYPE rugi_rate_limit_store_fallbacks_total counter
rugi_rate_limit_store_fallbacks_total{policy="general"} 3
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "rugi_rate_limit_store_fallbacks_total"))
}

func TestControllerFallsBackWhenRedisUnreachable(t *testing.T) {
	client := rdb.NewClient(&rdb.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	c := NewController(ControllerDeps{Primary: NewRedisStore(client, "test:"), Clock: clock.NewManual(t0)})
	res, err := c.Check(context.Background(), General, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(General.Limit-1), res.Remaining)
}

func TestRedisStoreSlidingWindow(t *testing.T) {
	addr := os.Getenv("RUGI_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RUGI_TEST_REDIS_ADDR not set")
	}
	store, err := DialRedis(context.Background(), RedisOptions{Addr: addr, Prefix: "rugi-test:" + uuid.NewString() + ":"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	p := Policy{Name: "t", Limit: 2, Window: time.Minute}
	ctx := context.Background()

	r1, err := store.Hit(ctx, "ip", p, t0)
	require.NoError(t, err)
	assert.True(t, r1.Allowed)
	r2, _ := store.Hit(ctx, "ip", p, t0.Add(20*time.Second))
	assert.True(t, r2.Allowed)
	assert.Equal(t, int64(0), r2.Remaining)

	r3, err := store.Hit(ctx, "ip", p, t0.Add(30*time.Second))
	require.NoError(t, err)
	assert.False(t, r3.Allowed)
	assert.Equal(t, 30*time.Second, r3.RetryAfter)

	r4, _ := store.Hit(ctx, "ip", p, t0.Add(61*time.Second))
	assert.True(t, r4.Allowed)
}
