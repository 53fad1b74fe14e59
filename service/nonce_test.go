package service

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceGenerator(t *testing.T) {
	g := NewNonceGenerator(DefaultNonceSize)

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		n, err := g.Generate()
		require.NoError(t, err)
		require.Len(t, n, DefaultNonceSize)
		_, dup := seen[string(n)]
		require.False(t, dup, "nonce repeated")
		seen[string(n)] = struct{}{}
	}
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestNonceGenerator_SourceFailure(t *testing.T) {
	g := &NonceGenerator{size: MinNonceSize, source: brokenReader{}}
	_, err := g.Generate()
	assert.Error(t, err)

	g = &NonceGenerator{size: MinNonceSize, source: bytes.NewReader(make([]byte, MinNonceSize-1))}
	_, err = g.Generate()
	assert.Error(t, err, "short read must fail")
}
