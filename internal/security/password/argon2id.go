package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

type Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	KeyLen      uint32
	SaltLen     uint32
}

// Default son los parámetros de producción: 64 MiB, 3 pasadas, 4 lanes.
var Default = Params{Memory: 64 * 1024, Time: 3, Parallelism: 4, KeyLen: 32, SaltLen: 16}

// Minimum es el piso que config.Validate exige fuera de dev.
var Minimum = Params{Memory: 64 * 1024, Time: 3, Parallelism: 1, KeyLen: 32, SaltLen: 16}

// límites al parsear hashes almacenados; un hash manipulado no debe poder
// pedir memoria o CPU arbitrarias.
const (
	maxMemoryKiB = 1 << 20 // 1 GiB
	maxTime      = 64
)

var errInvalidHash = errors.New("invalid password hash")

// AtLeast indica si p cumple el piso min en cada parámetro.
func (p Params) AtLeast(min Params) bool {
	return p.Memory >= min.Memory && p.Time >= min.Time &&
		p.Parallelism >= min.Parallelism && p.KeyLen >= min.KeyLen &&
		p.SaltLen >= min.SaltLen
}

// Hasher hashea y verifica passwords con parámetros fijos.
type Hasher struct {
	params Params
}

// NewHasher crea un Hasher; valores en cero toman el Default.
func NewHasher(p Params) *Hasher {
	if p.Memory == 0 {
		p.Memory = Default.Memory
	}
	if p.Time == 0 {
		p.Time = Default.Time
	}
	if p.Parallelism == 0 {
		p.Parallelism = Default.Parallelism
	}
	if p.KeyLen == 0 {
		p.KeyLen = Default.KeyLen
	}
	if p.SaltLen == 0 {
		p.SaltLen = Default.SaltLen
	}
	return &Hasher{params: p}
}

// Params devuelve los parámetros efectivos.
func (h *Hasher) Params() Params { return h.params }

// Hash devuelve un PHC string: $argon2id$v=19$m=...,t=...,p=...$<saltB64>$<dkB64>
func (h *Hasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", fmt.Errorf("empty password")
	}
	p := h.params
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	dk := argon2.IDKey([]byte(plain), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.Memory, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(dk),
	), nil
}

// Verify compara plain contra el PHC almacenado. Los parámetros salen del
// hash, no del Hasher, así que hashes viejos siguen verificando.
// Nunca falla: cualquier hash malformado da false.
func (h *Hasher) Verify(phc, plain string) bool {
	return Verify(phc, plain)
}

// Verify es la versión sin receiver de Hasher.Verify.
func Verify(phc, plain string) bool {
	dec, err := decode(phc)
	if err != nil {
		return false
	}
	key := argon2.IDKey([]byte(plain), dec.salt, dec.time, dec.memory, dec.threads, uint32(len(dec.key)))
	return subtle.ConstantTimeCompare(key, dec.key) == 1
}

type decoded struct {
	memory, time uint32
	threads      uint8
	salt, key    []byte
}

func decode(phc string) (decoded, error) {
	var d decoded
	parts := strings.Split(phc, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return d, errInvalidHash
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return d, errInvalidHash
	}

	params := strings.Split(parts[3], ",")
	if len(params) != 3 {
		return d, errInvalidHash
	}
	m, err := parseUint32(params[0], "m=")
	if err != nil || m < 8 || m > maxMemoryKiB {
		return d, errInvalidHash
	}
	t, err := parseUint32(params[1], "t=")
	if err != nil || t < 1 || t > maxTime {
		return d, errInvalidHash
	}
	p, err := parseUint32(params[2], "p=")
	if err != nil || p < 1 || p > 255 {
		return d, errInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return d, errInvalidHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) < 16 {
		return d, errInvalidHash
	}

	d.memory, d.time, d.threads = m, t, uint8(p)
	d.salt, d.key = salt, key
	return d, nil
}

func parseUint32(value, prefix string) (uint32, error) {
	if !strings.HasPrefix(value, prefix) {
		return 0, errInvalidHash
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(value, prefix), 10, 32)
	if err != nil {
		return 0, errInvalidHash
	}
	return uint32(v), nil
}
