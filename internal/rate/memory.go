package rate

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type window struct {
	hits []time.Time // ordenados, solo admitidos
}

// MemoryStore mantiene las ventanas en el proceso. go-cache expira las
// claves inactivas para que el mapa no crezca sin límite.
//
// mu cubre el get-or-create, la actualización y la renovación del TTL de una
// ventana como una sola operación. Si el janitor expulsa la clave en el medio,
// el Set final la vuelve a insertar y ningún otro Hit pudo crear una ventana
// paralela.
type MemoryStore struct {
	mu sync.Mutex
	c  *gocache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: gocache.New(15*time.Minute, time.Minute)}
}

// window debe llamarse con s.mu tomado.
func (s *MemoryStore) window(key string) *window {
	if v, ok := s.c.Get(key); ok {
		return v.(*window)
	}
	return &window{}
}

func (s *MemoryStore) Hit(_ context.Context, key string, p Policy, now time.Time) (Result, error) {
	fullKey := p.Name + ":" + key

	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.window(fullKey)

	cutoff := now.Add(-p.Window)
	i := 0
	for i < len(w.hits) && !w.hits[i].After(cutoff) {
		i++
	}
	w.hits = w.hits[i:]

	res := Result{Limit: int64(p.Limit)}
	if len(w.hits) >= p.Limit {
		res.Hits = int64(len(w.hits))
		res.RetryAfter = retryAfter(w.hits[0], now, p.Window)
		s.c.Set(fullKey, w, p.Window)
		return res, nil
	}

	w.hits = append(w.hits, now)
	res.Allowed = true
	res.Hits = int64(len(w.hits))
	res.Remaining = res.Limit - res.Hits
	// renueva la expiración de la clave inactiva
	s.c.Set(fullKey, w, p.Window)
	return res, nil
}
