package email

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/metrics"
	"github.com/dropDatabas3/rugi-auth/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	defaultAsyncQueue = 256
	asyncSendTimeout  = 30 * time.Second
)

type job struct {
	to   string
	tpl  Template
	data map[string]any
	log  *zap.Logger
}

// Async entrega en background. Send nunca bloquea ni devuelve error del
// Notifier envuelto; las fallas se loguean y se cuentan.
type Async struct {
	next    Notifier
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
}

// NewAsync arranca workers sobre next.
func NewAsync(next Notifier, workers, queue int, m *metrics.Metrics) *Async {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = defaultAsyncQueue
	}
	a := &Async{next: next, metrics: m, queue: make(chan job, queue)}
	a.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go a.worker()
	}
	return a
}

func (a *Async) Send(ctx context.Context, to string, tpl Template, data map[string]any) error {
	j := job{to: to, tpl: tpl, data: data, log: logger.From(ctx)}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.fail(j, "notifier closed", nil)
		return nil
	}
	select {
	case a.queue <- j:
	default:
		a.fail(j, "queue full", nil)
	}
	return nil
}

func (a *Async) worker() {
	defer a.wg.Done()
	for j := range a.queue {
		ctx, cancel := context.WithTimeout(logger.ToContext(context.Background(), j.log), asyncSendTimeout)
		if err := a.next.Send(ctx, j.to, j.tpl, j.data); err != nil {
			a.fail(j, "send failed", err)
		}
		cancel()
	}
}

func (a *Async) fail(j job, reason string, err error) {
	a.metrics.NotifierFailure(string(j.tpl))
	fields := []zap.Field{logger.Component("email.async"), logger.Email(j.to), zap.String("template", string(j.tpl)), zap.String("reason", reason)}
	if err != nil {
		fields = append(fields, logger.Err(err))
	}
	j.log.Warn("notification not delivered", fields...)
}

// Close deja de aceptar envíos y espera a que se vacíe la cola o venza ctx.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
