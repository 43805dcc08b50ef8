// Package audit graba eventos de auditoría sin bloquear al llamador: Record
// encola en un buffer y un worker los persiste en el AuditRepository.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/clock"
	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/dropDatabas3/rugi-auth/internal/metrics"
	"github.com/dropDatabas3/rugi-auth/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	DefaultBufferSize = 1024
	appendTimeout     = 5 * time.Second
)

// Event es lo que graban los flows. UserID vacío = sin usuario conocido.
type Event struct {
	UserID   string
	Action   repository.AuditAction
	Metadata map[string]any
}

type Options struct {
	BufferSize int
	Clock      clock.Clock
	Metrics    *metrics.Metrics
}

type Recorder struct {
	repo    repository.AuditRepository
	clock   clock.Clock
	metrics *metrics.Metrics
	log     *zap.Logger

	mu     sync.RWMutex
	closed bool
	ch     chan repository.AuditEvent
	done   chan struct{}
}

// NewRecorder arranca el worker. Llamar Close al apagar para drenar.
func NewRecorder(repo repository.AuditRepository, opts Options) *Recorder {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	r := &Recorder{
		repo:    repo,
		clock:   clock.OrSystem(opts.Clock),
		metrics: opts.Metrics,
		log:     logger.L().With(logger.Component("audit")),
		ch:      make(chan repository.AuditEvent, opts.BufferSize),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Record encola el evento. Nunca bloquea: con el buffer lleno el evento se
// descarta y se loguea.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	row := repository.AuditEvent{
		Action:    ev.Action,
		Metadata:  ev.Metadata,
		CreatedAt: r.clock.Now(),
	}
	if ev.UserID != "" {
		uid := ev.UserID
		row.UserID = &uid
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(ctx, row, "recorder closed")
		return
	}
	select {
	case r.ch <- row:
	default:
		r.drop(ctx, row, "buffer full")
	}
}

func (r *Recorder) drop(ctx context.Context, row repository.AuditEvent, reason string) {
	r.metrics.AuditDropped()
	logger.From(ctx).Warn("audit event dropped",
		logger.Component("audit"), logger.Action(string(row.Action)), zap.String("reason", reason))
}

func (r *Recorder) run() {
	defer close(r.done)
	for row := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
		if err := r.repo.Append(ctx, row); err != nil {
			r.metrics.AuditDropped()
			r.log.Error("audit append failed", logger.Action(string(row.Action)), logger.Err(err))
		}
		cancel()
	}
}

// Close deja de aceptar eventos y espera a que el worker drene el buffer
// o a que ctx venza.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
