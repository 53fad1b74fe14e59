package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

// MaxSignatures bounds how many client signatures one envelope may carry.
const MaxSignatures = 20

// EncodeEnvelope serializes an envelope to its JSON wire form.
func EncodeEnvelope(env *core.Envelope) ([]byte, error) {
	if env.Signatures == nil {
		env = &core.Envelope{Challenge: env.Challenge, Signatures: []core.DecoratedSignature{}}
	}
	return json.Marshal(env)
}

// DecodeEnvelope parses the JSON wire form strictly. Every failure wraps
// core.ErrMalformedEnvelope.
func DecodeEnvelope(raw []byte) (*core.Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var env core.Envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedEnvelope, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", core.ErrMalformedEnvelope)
	}
	if env.Challenge == "" {
		return nil, fmt.Errorf("%w: missing challenge", core.ErrMalformedEnvelope)
	}
	if len(env.Signatures) > MaxSignatures {
		return nil, fmt.Errorf("%w: too many signatures", core.ErrMalformedEnvelope)
	}
	for i, sig := range env.Signatures {
		if sig.PublicKey == "" || len(sig.Signature) == 0 {
			return nil, fmt.Errorf("%w: signature %d is incomplete", core.ErrMalformedEnvelope, i)
		}
	}
	return &env, nil
}

var errNoSigners = errors.New("no signers")

// SignEnvelope appends a signature by each signer over the signature base of
// the envelope's challenge.
func SignEnvelope(env *core.Envelope, networkID []byte, signers ...ports.Signer) error {
	if len(signers) == 0 {
		return errNoSigners
	}
	canonical, _, ok := core.SigningInput(env.Challenge)
	if !ok {
		return fmt.Errorf("%w: not a compact JWS", core.ErrMalformedEnvelope)
	}
	base := core.SignatureBase(networkID, []byte(canonical))
	for _, s := range signers {
		sig, err := s.Sign(base)
		if err != nil {
			return fmt.Errorf("sign as %s: %w", s.Address(), err)
		}
		env.Signatures = append(env.Signatures, core.DecoratedSignature{
			PublicKey: s.Address(),
			Signature: sig,
		})
	}
	return nil
}
