// Package password generates random passwords.
package password

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const (
	MinLength = 8
	MaxLength = 100

	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*-_=+"
)

// ErrLength is returned for lengths outside [MinLength, MaxLength]
var ErrLength = errors.New("password length must be between 8 and 100")

// Generate returns a random password of the given length
func Generate(length int) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", ErrLength
	}

	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
