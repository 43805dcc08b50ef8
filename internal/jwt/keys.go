package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// MinRSABits es el tamaño mínimo aceptado para la clave de firma.
const MinRSABits = 2048

var ErrNoKeySource = errors.New("jwt: no signing key configured")

// KeySource indica de dónde sale la clave privada de firma.
// Se usa el primer campo no vacío: PrivateKeyPEM, PrivateKeyPath, GenerateDev.
type KeySource struct {
	PrivateKeyPEM  string
	PrivateKeyPath string
	// GenerateDev genera una clave efímera en memoria. Solo para dev/tests.
	GenerateDev bool
	// RetiringPublicKeysPEM son claves públicas viejas que todavía se aceptan
	// al verificar y se publican en el JWKS durante la rotación.
	RetiringPublicKeysPEM []string
}

// KeyMaterial es inmutable una vez construido. La privada nunca sale del
// paquete: solo el Issuer firma a través de sign.
type KeyMaterial struct {
	priv   *rsa.PrivateKey
	kid    string
	pubs   map[string]*rsa.PublicKey // activa + retiring
	order  []string                  // activa primero
	jwksJS []byte
}

// Provider carga KeyMaterial una única vez por proceso.
type Provider struct {
	src  KeySource
	once sync.Once
	km   *KeyMaterial
	err  error
}

func NewProvider(src KeySource) *Provider {
	return &Provider{src: src}
}

// Material devuelve el KeyMaterial, cargándolo en la primera llamada.
// Un error de carga es permanente: el proceso debe abortar el arranque.
func (p *Provider) Material() (*KeyMaterial, error) {
	p.once.Do(func() {
		p.km, p.err = Load(p.src)
	})
	return p.km, p.err
}

// Load construye el KeyMaterial desde src.
func Load(src KeySource) (*KeyMaterial, error) {
	var (
		priv *rsa.PrivateKey
		err  error
	)
	switch {
	case strings.TrimSpace(src.PrivateKeyPEM) != "":
		priv, err = ParsePrivateKeyPEM([]byte(src.PrivateKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("jwt: inline private key: %w", err)
		}
	case strings.TrimSpace(src.PrivateKeyPath) != "":
		raw, rerr := os.ReadFile(filepath.Clean(src.PrivateKeyPath))
		if rerr != nil {
			return nil, fmt.Errorf("jwt: read private key %q: %w", src.PrivateKeyPath, rerr)
		}
		priv, err = ParsePrivateKeyPEM(raw)
		if err != nil {
			return nil, fmt.Errorf("jwt: private key %q: %w", src.PrivateKeyPath, err)
		}
	case src.GenerateDev:
		priv, err = rsa.GenerateKey(rand.Reader, MinRSABits)
		if err != nil {
			return nil, fmt.Errorf("jwt: generate dev key: %w", err)
		}
	default:
		return nil, ErrNoKeySource
	}

	retiring := make([]*rsa.PublicKey, 0, len(src.RetiringPublicKeysPEM))
	for i, p := range src.RetiringPublicKeysPEM {
		pub, perr := ParsePublicKeyPEM([]byte(p))
		if perr != nil {
			return nil, fmt.Errorf("jwt: retiring key #%d: %w", i, perr)
		}
		retiring = append(retiring, pub)
	}
	return NewKeyMaterial(priv, retiring...)
}

// NewKeyMaterial arma el material a partir de una privada ya parseada.
func NewKeyMaterial(priv *rsa.PrivateKey, retiring ...*rsa.PublicKey) (*KeyMaterial, error) {
	if priv == nil {
		return nil, ErrNoKeySource
	}
	if priv.N.BitLen() < MinRSABits {
		return nil, fmt.Errorf("jwt: rsa key too small (%d bits)", priv.N.BitLen())
	}
	kid, err := ComputeKID(&priv.PublicKey)
	if err != nil {
		return nil, err
	}
	km := &KeyMaterial{
		priv:  priv,
		kid:   kid,
		pubs:  map[string]*rsa.PublicKey{kid: &priv.PublicKey},
		order: []string{kid},
	}
	for _, pub := range retiring {
		rk, err := ComputeKID(pub)
		if err != nil {
			return nil, err
		}
		if _, dup := km.pubs[rk]; dup {
			continue
		}
		km.pubs[rk] = pub
		km.order = append(km.order, rk)
	}
	km.jwksJS, err = marshalJWKS(km)
	if err != nil {
		return nil, err
	}
	return km, nil
}

// KID devuelve el kid de la clave activa.
func (k *KeyMaterial) KID() string { return k.kid }

// PublicKey devuelve la pública para kid (activa o retiring).
func (k *KeyMaterial) PublicKey(kid string) (*rsa.PublicKey, bool) {
	pub, ok := k.pubs[kid]
	return pub, ok
}

func (k *KeyMaterial) sign(tk *jwtv5.Token) (string, error) {
	tk.Header["kid"] = k.kid
	tk.Header["typ"] = "JWT"
	return tk.SignedString(k.priv)
}

// ComputeKID = primeros 16 hex de SHA-256(DER(SubjectPublicKeyInfo)).
func ComputeKID(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("jwt: marshal public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])[:16], nil
}

// ParsePrivateKeyPEM acepta PKCS#1 ("RSA PRIVATE KEY") o PKCS#8 ("PRIVATE KEY").
func ParsePrivateKeyPEM(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rk, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("PKCS#8 key is %T, want RSA", key)
		}
		return rk, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
	}
}

// ParsePublicKeyPEM acepta "PUBLIC KEY" (PKIX) o "RSA PUBLIC KEY" (PKCS#1).
func ParsePublicKeyPEM(raw []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rk, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("PKIX key is %T, want RSA", key)
		}
		return rk, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
	}
}

// GenerateRSAKeyPEM genera una privada nueva en PKCS#8 PEM (CLI `keys generate`).
func GenerateRSAKeyPEM(bits int) (privPEM, pubPEM []byte, kid string, err error) {
	if bits < MinRSABits {
		bits = MinRSABits
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, "", err
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, "", err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, nil, "", err
	}
	kid, err = ComputeKID(&priv.PublicKey)
	if err != nil {
		return nil, nil, "", err
	}
	privPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privPEM, pubPEM, kid, nil
}
