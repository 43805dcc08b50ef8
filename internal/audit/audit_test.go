package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureRepo struct {
	mu      sync.Mutex
	events  []repository.AuditEvent
	block   chan struct{}
	failErr error
}

func (c *captureRepo) Append(_ context.Context, ev repository.AuditEvent) error {
	if c.block != nil {
		<-c.block
	}
	if c.failErr != nil {
		return c.failErr
	}
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	return nil
}

func (c *captureRepo) ListByUser(context.Context, string, int) ([]repository.AuditEvent, error) {
	return nil, nil
}

func (c *captureRepo) all() []repository.AuditEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]repository.AuditEvent(nil), c.events...)
}

func TestRecordThenCloseDrains(t *testing.T) {
	repo := &captureRepo{}
	r := NewRecorder(repo, Options{BufferSize: 16})

	r.Record(context.Background(), Event{UserID: "u1", Action: repository.AuditLogin, Metadata: map[string]any{"app_id": "a"}})
	r.Record(context.Background(), Event{Action: repository.AuditOTPRequest})

	require.NoError(t, r.Close(context.Background()))
	evs := repo.all()
	require.Len(t, evs, 2)
	require.NotNil(t, evs[0].UserID)
	assert.Equal(t, "u1", *evs[0].UserID)
	assert.Nil(t, evs[1].UserID)
	assert.False(t, evs[0].CreatedAt.IsZero())
}

func TestRecordNeverBlocksWhenFull(t *testing.T) {
	repo := &captureRepo{block: make(chan struct{})}
	r := NewRecorder(repo, Options{BufferSize: 1})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			r.Record(context.Background(), Event{Action: repository.AuditRefresh})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked with a full buffer")
	}
	close(repo.block)
	require.NoError(t, r.Close(context.Background()))
	assert.Less(t, len(repo.all()), 50)
}

func TestRecordAfterCloseIsDropped(t *testing.T) {
	repo := &captureRepo{}
	r := NewRecorder(repo, Options{})
	require.NoError(t, r.Close(context.Background()))
	require.NoError(t, r.Close(context.Background()))

	assert.NotPanics(t, func() {
		r.Record(context.Background(), Event{Action: repository.AuditLogin})
	})
	assert.Empty(t, repo.all())
}

func TestAppendErrorDoesNotStopWorker(t *testing.T) {
	repo := &captureRepo{failErr: errors.New("db down")}
	r := NewRecorder(repo, Options{})
	r.Record(context.Background(), Event{Action: repository.AuditLogin})
	r.Record(context.Background(), Event{Action: repository.AuditLogin})
	require.NoError(t, r.Close(context.Background()))
}

func TestCloseHonoursContext(t *testing.T) {
	repo := &captureRepo{block: make(chan struct{})}
	r := NewRecorder(repo, Options{})
	r.Record(context.Background(), Event{Action: repository.AuditLogin})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Close(ctx), context.DeadlineExceeded)
	close(repo.block)
}
