// Package clock abstrae la hora actual para que los chequeos de expiración
// (tokens, secretos, ventanas de rate limit) sean deterministas en tests.
package clock

import (
	"sync"
	"time"
)

// Clock devuelve la hora actual.
type Clock interface {
	Now() time.Time
}

// System usa time.Now en UTC.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Manual es un reloj controlado a mano. Seguro para uso concurrente.
type Manual struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManual crea un reloj fijado en t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Advance mueve el reloj hacia adelante d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Set fija el reloj en t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t.UTC()
	m.mu.Unlock()
}

// OrSystem devuelve c, o System si c es nil.
func OrSystem(c Clock) Clock {
	if c == nil {
		return System{}
	}
	return c
}
