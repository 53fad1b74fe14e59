package stellar

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/stellar/go-stellar-sdk/strkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zeroAccount = "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF"

func testKeyPair(t *testing.T, fill byte) *KeyPair {
	t.Helper()
	kp, err := FromRawSeed(bytes.Repeat([]byte{fill}, 32))
	require.NoError(t, err)
	return kp
}

func TestFromRawSeed(t *testing.T) {
	a := testKeyPair(t, 1)
	assert.Equal(t, a.Address(), testKeyPair(t, 1).Address())
	assert.NotEqual(t, a.Address(), testKeyPair(t, 2).Address())
	assert.Equal(t, byte('G'), a.Address()[0])

	_, err := FromRawSeed(make([]byte, 31))
	assert.Error(t, err)
}

func TestParseSeed(t *testing.T) {
	raw := bytes.Repeat([]byte{7}, 32)
	seed, err := strkey.Encode(strkey.VersionByteSeed, raw)
	require.NoError(t, err)

	kp, err := ParseSeed(seed)
	require.NoError(t, err)
	assert.Equal(t, testKeyPair(t, 7).Address(), kp.Address())

	_, err = ParseSeed(kp.Address())
	assert.Error(t, err, "an account id is not a seed")

	_, err = ParseSeed(seed[:len(seed)-1] + "A")
	assert.Error(t, err)
}

func TestVerifier(t *testing.T) {
	a := testKeyPair(t, 1)
	b := testKeyPair(t, 2)
	msg := []byte("challenge bytes")
	sig, err := a.Sign(msg)
	require.NoError(t, err)

	seed, err := strkey.Encode(strkey.VersionByteSeed, bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)

	v := Verifier{}
	assert.True(t, v.ValidAccount(a.Address()))
	assert.True(t, v.ValidAccount(zeroAccount))
	assert.False(t, v.ValidAccount(seed))
	assert.False(t, v.ValidAccount("not-an-account"))
	assert.False(t, v.ValidAccount(zeroAccount[:55]+"G"))

	assert.NoError(t, v.Verify(a.Address(), msg, sig))
	assert.ErrorIs(t, v.Verify(b.Address(), msg, sig), ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify(a.Address(), []byte("other"), sig), ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify(a.Address(), msg, sig[:10]), ErrInvalidSignature)
	assert.Error(t, v.Verify("bogus", msg, sig))
}

func TestNetwork(t *testing.T) {
	n, err := ParseNetwork("MainNet")
	require.NoError(t, err)
	assert.Equal(t, MainnetPassphrase, n.Passphrase())
	assert.Equal(t, MainnetHorizonURL, n.HorizonURL())

	_, err = ParseNetwork("futurenet")
	assert.Error(t, err)

	id := ID(TestnetPassphrase)
	assert.Equal(t, NetworkID(sha256.Sum256([]byte("Test SDF Network ; September 2015"))), id)
	assert.Len(t, id.String(), 64)
	assert.NotEqual(t, ID(MainnetPassphrase), id)
}
