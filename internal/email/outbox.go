package email

import (
	"context"
	"sync"
)

// Sent es un mensaje capturado por Outbox.
type Sent struct {
	To       string
	Template Template
	Data     map[string]any
}

// Outbox guarda los envíos en memoria. Err, si no es nil, se devuelve en
// cada Send después de registrar el intento.
type Outbox struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

func (o *Outbox) Send(_ context.Context, to string, tpl Template, data map[string]any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	cp := make(map[string]any, len(data))
	for k, v := range data {
		cp[k] = v
	}
	o.sent = append(o.sent, Sent{To: to, Template: tpl, Data: cp})
	return o.Err
}

// Messages devuelve una copia de lo enviado.
func (o *Outbox) Messages() []Sent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Sent(nil), o.sent...)
}

// Last devuelve el último envío a to.
func (o *Outbox) Last(to string) (Sent, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.sent) - 1; i >= 0; i-- {
		if o.sent[i].To == to {
			return o.sent[i], true
		}
	}
	return Sent{}, false
}
