package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

// ChallengeIssuer builds and seals challenges. Issuing a challenge writes
// nothing to the store; an abandoned challenge simply expires.
type ChallengeIssuer struct {
	tokenizer ports.Tokenizer
	keys      ports.KeyVerifier
	nonces    *NonceGenerator
	domains   map[string]struct{}
	ttl       time.Duration
	networkID string
	now       func() time.Time
}

// NewChallengeIssuer creates an issuer for challenges bound to one of domains.
func NewChallengeIssuer(tokenizer ports.Tokenizer, keys ports.KeyVerifier, nonces *NonceGenerator, domains []string, ttl time.Duration, networkID string, now func() time.Time) *ChallengeIssuer {
	return &ChallengeIssuer{
		tokenizer: tokenizer,
		keys:      keys,
		nonces:    nonces,
		domains:   domainSet(domains),
		ttl:       ttl,
		networkID: networkID,
		now:       now,
	}
}

// Issue creates a challenge for accountID bound to domain.
func (i *ChallengeIssuer) Issue(accountID, domain string) (*core.SealedChallenge, error) {
	if !i.keys.ValidAccount(accountID) {
		return nil, core.ErrInvalidAccount
	}
	if _, ok := i.domains[domain]; !ok {
		return nil, fmt.Errorf("%w: %q is not a home domain", core.ErrDomainMismatch, domain)
	}

	nonce, err := i.nonces.Generate()
	if err != nil {
		return nil, err
	}

	now := i.now()
	return i.tokenizer.Seal(&core.Challenge{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Domain:    domain,
		Nonce:     nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
		NetworkID: i.networkID,
	})
}

func domainSet(domains []string) map[string]struct{} {
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		set[d] = struct{}{}
	}
	return set
}
