package rate

import (
	"context"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/clock"
	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"github.com/dropDatabas3/rugi-auth/internal/metrics"
	"github.com/dropDatabas3/rugi-auth/internal/observability/logger"
)

// DefaultStoreTimeout acota cuánto puede tardar el store primario antes de
// caer a memoria.
const DefaultStoreTimeout = 250 * time.Millisecond

// Controller decide la admisión de un request según una política.
type Controller struct {
	primary  Store // puede ser nil: solo memoria
	fallback *MemoryStore
	clock    clock.Clock
	metrics  *metrics.Metrics
	timeout  time.Duration
}

type ControllerDeps struct {
	Primary Store
	// Fallback se crea si es nil.
	Fallback     *MemoryStore
	Clock        clock.Clock
	Metrics      *metrics.Metrics
	StoreTimeout time.Duration
}

func NewController(d ControllerDeps) *Controller {
	if d.Fallback == nil {
		d.Fallback = NewMemoryStore()
	}
	if d.StoreTimeout <= 0 {
		d.StoreTimeout = DefaultStoreTimeout
	}
	return &Controller{
		primary:  d.Primary,
		fallback: d.Fallback,
		clock:    clock.OrSystem(d.Clock),
		metrics:  d.Metrics,
		timeout:  d.StoreTimeout,
	}
}

// Check registra un hit de identity bajo la política p.
// Si se excede el límite devuelve el Result y un error RATE_LIMITED con
// RetryAfter. Los errores del store primario nunca llegan al llamador.
func (c *Controller) Check(ctx context.Context, p Policy, identity string) (Result, error) {
	now := c.clock.Now()
	res, err := c.hit(ctx, p, identity, now)
	if err != nil {
		return Result{}, autherr.Internal(err)
	}
	c.metrics.RateDecision(p.Name, res.Allowed)
	if !res.Allowed {
		return res, autherr.RateLimited(res.RetryAfter)
	}
	return res, nil
}

func (c *Controller) hit(ctx context.Context, p Policy, identity string, now time.Time) (Result, error) {
	if c.primary == nil {
		return c.fallback.Hit(ctx, identity, p, now)
	}

	sctx, cancel := context.WithTimeout(ctx, c.timeout)
	res, err := c.primary.Hit(sctx, identity, p, now)
	cancel()
	if err == nil {
		return res, nil
	}

	logger.From(ctx).Warn("rate store unavailable, using in-memory fallback",
		logger.Component("rate"), logger.Policy(p.Name), logger.Err(err))
	c.metrics.RateFallback(p.Name)
	return c.fallback.Hit(ctx, identity, p, now)
}
