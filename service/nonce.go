package service

import (
	"crypto/rand"
	"fmt"
	"io"
)

// NonceGenerator produces random byte strings from a secure source.
type NonceGenerator struct {
	size   int
	source io.Reader
}

// NewNonceGenerator returns a generator of size-byte nonces read from
// crypto/rand.
func NewNonceGenerator(size int) *NonceGenerator {
	return &NonceGenerator{size: size, source: rand.Reader}
}

// Generate returns a fresh nonce.
func (g *NonceGenerator) Generate() ([]byte, error) {
	b := make([]byte, g.size)
	if _, err := io.ReadFull(g.source, b); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return b, nil
}
