// Package rate implementa el admission controller: ventanas deslizantes
// (sliding-window log) por identidad del caller, con Redis como store
// compartido y memoria local como respaldo cuando Redis falla.
package rate

import (
	"fmt"
	"time"
)

// Policy es un límite de Limit requests por Window.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

var (
	// General aplica a todos los endpoints.
	General = Policy{Name: "general", Limit: 60, Window: time.Minute}
	// Sensitive aplica a login, OTP y reset.
	Sensitive = Policy{Name: "sensitive", Limit: 3, Window: 15 * time.Minute}
)

func (p Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("rate: policy without name")
	}
	if p.Limit <= 0 || p.Window <= 0 {
		return fmt.Errorf("rate: policy %q needs positive limit and window", p.Name)
	}
	return nil
}

// Result es la decisión para un hit.
type Result struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration // solo si !Allowed
	Hits       int64         // hits dentro de la ventana, contando este si fue admitido
}

// retryAfter es lo que falta para que la entrada más vieja salga de la ventana.
func retryAfter(oldest, now time.Time, window time.Duration) time.Duration {
	d := oldest.Add(window).Sub(now)
	if d <= 0 {
		return time.Millisecond
	}
	return d
}
