package jwt

import (
	"encoding/json"
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// JWKS devuelve el set público (activa + retiring). Nunca incluye la privada.
func (k *KeyMaterial) JWKS() jose.JSONWebKeySet {
	set := jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, len(k.order))}
	for _, kid := range k.order {
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       k.pubs[kid],
			KeyID:     kid,
			Algorithm: string(jose.RS256),
			Use:       "sig",
		})
	}
	return set
}

// JWKSJSON devuelve el JWKS serializado; se calcula una sola vez.
func (k *KeyMaterial) JWKSJSON() []byte { return k.jwksJS }

func marshalJWKS(k *KeyMaterial) ([]byte, error) {
	b, err := json.Marshal(k.JWKS())
	if err != nil {
		return nil, fmt.Errorf("jwt: marshal jwks: %w", err)
	}
	return b, nil
}
