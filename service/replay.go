package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

// ReplayGuard records consumed nonces. TryConsume is the only place a nonce
// moves from unconsumed to consumed.
type ReplayGuard struct {
	store   ports.Store
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

// NewReplayGuard creates a guard writing under "{prefix}:nonce:".
func NewReplayGuard(store ports.Store, prefix string, timeout time.Duration, now func() time.Time) *ReplayGuard {
	return &ReplayGuard{
		store:   store,
		prefix:  prefix + ":nonce:",
		timeout: timeout,
		now:     now,
	}
}

// TryConsume marks nonce consumed with one conditional write and reports
// whether this call performed the transition. The record lives until the
// challenge would have expired anyway.
func (g *ReplayGuard) TryConsume(ctx context.Context, nonce []byte, expiresAt time.Time) (bool, error) {
	now := g.now()
	ttl := expiresAt.Sub(now)
	if ttl < time.Second {
		ttl = time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ok, err := g.store.SetNX(ctx, g.prefix+base64.RawURLEncoding.EncodeToString(nonce), now.UTC().Format(time.RFC3339Nano), ttl)
	if err != nil {
		return false, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return ok, nil
}
