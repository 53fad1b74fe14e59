package stellar

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/layer-3/keyauth/ports"
	"github.com/stellar/go-stellar-sdk/keypair"
	"github.com/stellar/go-stellar-sdk/strkey"
)

// ErrInvalidSignature is returned when a signature does not verify.
var ErrInvalidSignature = keypair.ErrInvalidSignature

var errSeedSize = errors.New("seed must be 32 bytes")

// KeyPair is an ed25519 key pair addressed by its StrKey account id.
type KeyPair struct {
	full *keypair.Full
}

var _ ports.Signer = (*KeyPair)(nil)

// ParseSeed builds a key pair from an S... secret seed.
func ParseSeed(seed string) (*KeyPair, error) {
	full, err := keypair.ParseFull(seed)
	if err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &KeyPair{full: full}, nil
}

// FromRawSeed builds a key pair from 32 seed bytes.
func FromRawSeed(raw []byte) (*KeyPair, error) {
	if len(raw) != ed25519.SeedSize {
		return nil, errSeedSize
	}
	var seed [ed25519.SeedSize]byte
	copy(seed[:], raw)

	full, err := keypair.FromRawSeed(seed)
	if err != nil {
		return nil, err
	}
	return &KeyPair{full: full}, nil
}

// Address returns the G... account id.
func (kp *KeyPair) Address() string {
	return kp.full.Address()
}

// Sign signs message with the private key.
func (kp *KeyPair) Sign(message []byte) ([]byte, error) {
	return kp.full.Sign(message)
}

// Verifier checks ed25519 signatures made by StrKey-addressed accounts.
type Verifier struct{}

var _ ports.KeyVerifier = Verifier{}

// ValidAccount reports whether accountID is a well-formed G... address.
func (Verifier) ValidAccount(accountID string) bool {
	return strkey.IsValidEd25519PublicKey(accountID)
}

// Verify checks signature over message against the G... publicKey.
func (Verifier) Verify(publicKey string, message, signature []byte) error {
	kp, err := keypair.ParseAddress(publicKey)
	if err != nil {
		return err
	}
	return kp.Verify(message, signature)
}
