// Package code generates numeric verification codes.
package code

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Length is the number of digits in a verification code.
const Length = 6

// Generator produces verification codes.
type Generator interface {
	Generate() (string, error)
}

// DigitGenerator draws every digit independently and uniformly from 0-9.
// Leading zeros are kept; codes are compared as strings.
type DigitGenerator struct {
	Digits int
}

// NewGenerator returns a generator for Length-digit codes.
func NewGenerator() DigitGenerator {
	return DigitGenerator{Digits: Length}
}

func (g DigitGenerator) Generate() (string, error) {
	n := g.Digits
	if n <= 0 {
		n = Length
	}
	var b strings.Builder
	b.Grow(n)
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

// Fixed always returns the same code. Useful in tests and local demos.
type Fixed string

func (f Fixed) Generate() (string, error) { return string(f), nil }
