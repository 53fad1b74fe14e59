package tokenizer

import (
	"encoding/base64"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

// JWTTokenizer implements the Tokenizer interface with compact JWS challenges.
// The JWS signing input is the canonical byte string and the signature is made
// by the service signer, so any signer behind ports.Signer can seal challenges.
type JWTTokenizer struct {
	signer   ports.Signer
	verifier ports.KeyVerifier
	parser   *jwt.Parser
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signer ports.Signer, verifier ports.KeyVerifier) ports.Tokenizer {
	return &JWTTokenizer{
		signer:   signer,
		verifier: verifier,
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()})),
	}
}

// Seal converts a Challenge to a signed JWS
func (j *JWTTokenizer) Seal(challenge *core.Challenge) (*core.SealedChallenge, error) {
	claims := ChallengeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   challenge.AccountID,
			Issuer:    j.signer.Address(),
			ID:        challenge.ID,
			Audience:  jwt.ClaimStrings{challenge.Domain},
			IssuedAt:  jwt.NewNumericDate(challenge.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(challenge.ExpiresAt),
		},
		Nonce:   base64.RawURLEncoding.EncodeToString(challenge.Nonce),
		Network: challenge.NetworkID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signingString, err := token.SigningString()
	if err != nil {
		return nil, fmt.Errorf("failed to encode challenge: %w", err)
	}

	sig, err := j.signer.Sign([]byte(signingString))
	if err != nil {
		return nil, fmt.Errorf("failed to sign challenge: %w", err)
	}

	sealed := &core.SealedChallenge{
		Challenge: *challenge,
		Token:     signingString + "." + base64.RawURLEncoding.EncodeToString(sig),
		Canonical: []byte(signingString),
	}
	sealed.Issuer = claims.Issuer
	// Times travel with second precision; report what the client will see.
	sealed.IssuedAt = claims.IssuedAt.Time
	sealed.ExpiresAt = claims.ExpiresAt.Time
	return sealed, nil
}

// Open verifies the service signature and converts the JWS to a Challenge.
func (j *JWTTokenizer) Open(tokenStr string) (*core.SealedChallenge, error) {
	canonical, sigPart, ok := core.SigningInput(tokenStr)
	if !ok {
		return nil, fmt.Errorf("%w: not a compact JWS", core.ErrMalformedEnvelope)
	}

	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil {
		return nil, fmt.Errorf("%w: signature encoding", core.ErrMalformedEnvelope)
	}

	if err := j.verifier.Verify(j.signer.Address(), []byte(canonical), sig); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTamperedChallenge, err)
	}

	claims := &ChallengeClaims{}
	token, _, err := j.parser.ParseUnverified(tokenStr, claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedEnvelope, err)
	}
	if token.Method.Alg() != jwt.SigningMethodEdDSA.Alg() {
		return nil, fmt.Errorf("%w: unexpected signing method %v", core.ErrMalformedEnvelope, token.Header["alg"])
	}

	nonce, err := base64.RawURLEncoding.DecodeString(claims.Nonce)
	if err != nil || len(nonce) == 0 {
		return nil, fmt.Errorf("%w: nonce", core.ErrMalformedEnvelope)
	}
	if claims.Subject == "" || len(claims.Audience) != 1 || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing claims", core.ErrMalformedEnvelope)
	}
	if claims.Issuer != j.signer.Address() {
		return nil, fmt.Errorf("%w: issuer", core.ErrMalformedEnvelope)
	}

	return &core.SealedChallenge{
		Challenge: core.Challenge{
			ID:        claims.ID,
			AccountID: claims.Subject,
			Domain:    claims.Audience[0],
			Nonce:     nonce,
			IssuedAt:  claims.IssuedAt.Time,
			ExpiresAt: claims.ExpiresAt.Time,
			Issuer:    claims.Issuer,
			NetworkID: claims.Network,
		},
		Token:     tokenStr,
		Canonical: []byte(canonical),
	}, nil
}
