package rate

import (
	"context"
	"time"
)

// Store registra hits y decide dentro de la ventana de la política.
// Los hits rechazados no se registran.
type Store interface {
	Hit(ctx context.Context, key string, p Policy, now time.Time) (Result, error)
}
