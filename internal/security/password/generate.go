package password

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	digitChars  = "0123456789"
	symbolChars = "!@#$%^&*()-_=+[]{}<>?"
	allChars    = upperChars + lowerChars + digitChars + symbolChars
)

// MinGeneratedLength es el largo mínimo que acepta GenerateSecurePassword.
const MinGeneratedLength = 8

// GenerateSecurePassword genera un password aleatorio con al menos una
// mayúscula, una minúscula, un dígito y un símbolo. Toda la aleatoriedad
// (incluido el shuffle) sale de crypto/rand.
func GenerateSecurePassword(length int) (string, error) {
	if length < MinGeneratedLength {
		return "", fmt.Errorf("password length must be at least %d", MinGeneratedLength)
	}
	out := make([]byte, 0, length)
	for _, set := range []string{upperChars, lowerChars, digitChars, symbolChars} {
		c, err := pick(set)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < length {
		c, err := pick(allChars)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	// Fisher-Yates
	for i := len(out) - 1; i > 0; i-- {
		j, err := randInt(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

func pick(set string) (byte, error) {
	i, err := randInt(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func randInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("crypto/rand: %w", err)
	}
	return int(v.Int64()), nil
}
