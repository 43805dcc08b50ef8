package oauth

import (
	"sort"

	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
)

// Registry resuelve proveedores por Kind.
type Registry struct {
	providers map[Kind]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[Kind]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Kind()] = p
	}
	return r
}

// FromConfig registra los proveedores con credenciales.
func FromConfig(googleCfg, githubCfg Config) *Registry {
	var ps []Provider
	if googleCfg.Enabled() {
		ps = append(ps, NewGoogle(googleCfg))
	}
	if githubCfg.Enabled() {
		ps = append(ps, NewGitHub(githubCfg))
	}
	return NewRegistry(ps...)
}

// Get devuelve NOT_FOUND si el proveedor no está configurado.
func (r *Registry) Get(kind string) (Provider, error) {
	if r != nil {
		if p, ok := r.providers[Kind(kind)]; ok {
			return p, nil
		}
	}
	return nil, autherr.ErrNotFound.WithMessage("oauth provider not configured: " + kind)
}

// Kinds lista los proveedores configurados, ordenados.
func (r *Registry) Kinds() []string {
	out := make([]string, 0, len(r.providers))
	for k := range r.providers {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}
