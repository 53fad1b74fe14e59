package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/internal/metrics"
	"github.com/layer-3/keyauth/ports"
)

// VerifyError annotates a verification failure with what was known about the
// challenge when it failed. It unwraps to a core taxonomy error.
type VerifyError struct {
	AccountID   string
	ChallengeID string
	Err         error
}

func (e *VerifyError) Error() string { return e.Err.Error() }
func (e *VerifyError) Unwrap() error { return e.Err }

// SignatureVerifier checks a co-signed envelope and consumes its nonce.
type SignatureVerifier struct {
	tokenizer     ports.Tokenizer
	keys          ports.KeyVerifier
	accounts      ports.AccountProvider
	replay        *ReplayGuard
	domains       map[string]struct{}
	level         core.ThresholdLevel
	networkID     []byte
	skew          time.Duration
	lookupTimeout time.Duration
	metrics       *metrics.Metrics
	now           func() time.Time
}

// VerifierConfig carries the policy of a SignatureVerifier.
type VerifierConfig struct {
	HomeDomains       []string
	RequiredThreshold core.ThresholdLevel
	NetworkID         []byte
	ClockSkew         time.Duration
	LookupTimeout     time.Duration
}

// NewSignatureVerifier creates a verifier.
func NewSignatureVerifier(tokenizer ports.Tokenizer, keys ports.KeyVerifier, accounts ports.AccountProvider, replay *ReplayGuard, cfg VerifierConfig, m *metrics.Metrics, now func() time.Time) *SignatureVerifier {
	return &SignatureVerifier{
		tokenizer:     tokenizer,
		keys:          keys,
		accounts:      accounts,
		replay:        replay,
		domains:       domainSet(cfg.HomeDomains),
		level:         cfg.RequiredThreshold,
		networkID:     cfg.NetworkID,
		skew:          cfg.ClockSkew,
		lookupTimeout: cfg.LookupTimeout,
		metrics:       m,
		now:           now,
	}
}

// Verify runs the checks in order and stops at the first failure. Consuming
// the nonce is the last step and the only side effect.
func (v *SignatureVerifier) Verify(ctx context.Context, raw []byte) (core.VerifiedIdentity, error) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		return core.VerifiedIdentity{}, &VerifyError{Err: err}
	}

	sealed, err := v.tokenizer.Open(env.Challenge)
	if err != nil {
		return core.VerifiedIdentity{}, &VerifyError{Err: err}
	}
	fail := func(err error) (core.VerifiedIdentity, error) {
		return core.VerifiedIdentity{}, &VerifyError{
			AccountID:   sealed.AccountID,
			ChallengeID: sealed.ID,
			Err:         err,
		}
	}

	now := v.now()
	if now.After(sealed.ExpiresAt) {
		return fail(core.ErrChallengeExpired)
	}
	if sealed.IssuedAt.After(now.Add(v.skew)) {
		return fail(fmt.Errorf("%w: issued in the future", core.ErrChallengeExpired))
	}

	if _, ok := v.domains[sealed.Domain]; !ok {
		return fail(fmt.Errorf("%w: %q is not a home domain", core.ErrDomainMismatch, sealed.Domain))
	}
	if sealed.NetworkID != fmt.Sprintf("%x", v.networkID) {
		return fail(fmt.Errorf("%w: challenge issued for another network", core.ErrDomainMismatch))
	}

	set, err := v.lookup(ctx, sealed.AccountID)
	if err != nil {
		return fail(err)
	}

	if err := v.checkWeight(set, env.Signatures, sealed.Canonical); err != nil {
		return fail(err)
	}

	consumed, err := v.replay.TryConsume(ctx, sealed.Nonce, sealed.ExpiresAt)
	if err != nil {
		return fail(err)
	}
	if !consumed {
		return fail(core.ErrReplayDetected)
	}

	return core.VerifiedIdentity{
		AccountID:     sealed.AccountID,
		ConsumedNonce: base64.RawURLEncoding.EncodeToString(sealed.Nonce),
	}, nil
}

func (v *SignatureVerifier) lookup(ctx context.Context, accountID string) (*core.SignerSet, error) {
	ctx, cancel := context.WithTimeout(ctx, v.lookupTimeout)
	defer cancel()

	start := time.Now()
	set, err := v.accounts.SignerSet(ctx, accountID)
	v.metrics.LedgerLookup(time.Since(start))

	switch {
	case err == nil:
		return set, nil
	case core.Kind(err) != nil:
		return nil, err
	case errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: %v", core.ErrAccountLookupTimeout, err)
	default:
		return nil, fmt.Errorf("%w: %v", core.ErrLedgerUnavailable, err)
	}
}

// checkWeight sums the weights of distinct account signers whose signatures
// verify. Signatures from keys outside the signer set add nothing.
func (v *SignatureVerifier) checkWeight(set *core.SignerSet, sigs []core.DecoratedSignature, canonical []byte) error {
	required := uint64(set.Thresholds.Threshold(v.level))
	if required == 0 {
		required = 1
	}

	base := core.SignatureBase(v.networkID, canonical)
	counted := make(map[string]struct{}, len(sigs))
	var total uint64
	for _, sig := range sigs {
		if _, dup := counted[sig.PublicKey]; dup {
			continue
		}
		weight := set.Weight(sig.PublicKey)
		if weight == 0 {
			continue
		}
		if err := v.keys.Verify(sig.PublicKey, base, sig.Signature); err != nil {
			continue
		}
		counted[sig.PublicKey] = struct{}{}
		total += uint64(weight)
	}

	if total < required {
		return fmt.Errorf("%w: have %d, need %d", core.ErrInsufficientWeight, total, required)
	}
	return nil
}
