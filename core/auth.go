package core

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// Challenge represents an authentication challenge
type Challenge struct {
	ID        string    // Unique identifier for the challenge
	AccountID string    // Account the client claims to control
	Domain    string    // Home domain the challenge is bound to
	Nonce     []byte    // Single-use random value
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge expires
	Issuer    string    // Signing account of the service
	NetworkID string    // Hex network identifier
}

// SealedChallenge is a challenge together with its service-signed wire form.
type SealedChallenge struct {
	Challenge
	// Token is the compact JWS carrying the challenge.
	Token string
	// Canonical is the byte string covered by the service signature.
	Canonical []byte
}

// Session represents an authenticated account session
type Session struct {
	Token     string            `json:"-"`
	AccountID string            `json:"account_id"`
	IssuedAt  time.Time         `json:"issued_at"`
	ExpiresAt time.Time         `json:"expires_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Revoked   bool              `json:"revoked"`
}

// VerifiedIdentity is the result of a successful challenge verification or
// session validation.
type VerifiedIdentity struct {
	AccountID string
	// ConsumedNonce is set only by challenge verification, after the nonce
	// has been consumed.
	ConsumedNonce string
	ExpiresAt     time.Time
}

// Signer is an account key with its weight
type Signer struct {
	PublicKey string
	Weight    uint32
}

// Thresholds are the account operation thresholds
type Thresholds struct {
	Low    uint32
	Medium uint32
	High   uint32
}

// SignerSet is the current signer configuration of an account as read from
// the ledger.
type SignerSet struct {
	AccountID  string
	Signers    []Signer
	Thresholds Thresholds
}

// ThresholdLevel selects which account threshold a verification must meet
type ThresholdLevel string

const (
	ThresholdLow    ThresholdLevel = "low"
	ThresholdMedium ThresholdLevel = "medium"
	ThresholdHigh   ThresholdLevel = "high"
)

// ParseThresholdLevel parses a configured threshold level.
func ParseThresholdLevel(s string) (ThresholdLevel, error) {
	switch l := ThresholdLevel(strings.ToLower(strings.TrimSpace(s))); l {
	case ThresholdLow, ThresholdMedium, ThresholdHigh:
		return l, nil
	default:
		return "", fmt.Errorf("invalid threshold level %q", s)
	}
}

// Threshold returns the account threshold for the given level.
func (t Thresholds) Threshold(level ThresholdLevel) uint32 {
	switch level {
	case ThresholdLow:
		return t.Low
	case ThresholdHigh:
		return t.High
	default:
		return t.Medium
	}
}

// Weight returns the weight of key in the signer set, or 0 when the key is not
// a signer of the account.
func (s *SignerSet) Weight(key string) uint32 {
	for _, signer := range s.Signers {
		if signer.PublicKey == key {
			return signer.Weight
		}
	}
	return 0
}

// SignatureBase is the message clients sign to answer a challenge:
// SHA-256(networkID || canonical). Prefixing the network id keeps a response
// for one network from verifying on another.
func SignatureBase(networkID, canonical []byte) []byte {
	h := sha256.New()
	h.Write(networkID)
	h.Write(canonical)
	return h.Sum(nil)
}

// Envelope is a challenge token together with the client signatures
// answering it.
type Envelope struct {
	Challenge  string               `json:"challenge"`
	Signatures []DecoratedSignature `json:"signatures"`
}

// DecoratedSignature is a signature together with the key that made it.
type DecoratedSignature struct {
	PublicKey string `json:"public_key"`
	Signature []byte `json:"signature"`
}

// SigningInput splits a compact token into the signed input and the encoded
// signature at the last dot. The signature encoding never contains a dot, so
// the split stays correct whatever happened to the signed input in transit.
func SigningInput(token string) (input, signature string, ok bool) {
	dot := strings.LastIndexByte(token, '.')
	if dot <= 0 {
		return "", "", false
	}
	return token[:dot], token[dot+1:], true
}
