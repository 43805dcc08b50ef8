// Package token genera los secretos opacos del core (refresh tokens, tokens
// de reset, OTP numéricos, client secrets) y el hash que se persiste.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
)

// OpaqueBytes es el tamaño de los tokens opacos (256 bits).
const OpaqueBytes = 32

// GenerateOpaque genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaque(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateNumeric genera un código de n dígitos; cada dígito es
// independiente y sale de crypto/rand.
func GenerateNumeric(digits int) (string, error) {
	if digits <= 0 {
		return "", fmt.Errorf("digits must be positive")
	}
	out := make([]byte, digits)
	ten := big.NewInt(10)
	for i := range out {
		v, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("crypto/rand: %w", err)
		}
		out[i] = byte('0' + v.Int64())
	}
	return string(out), nil
}

// Hash devuelve sha256(s) en hex (lo que se guarda en DB).
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Equal compara dos hashes en tiempo constante.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
