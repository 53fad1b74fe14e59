package ledger

import (
	"context"
	"sync"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

// StaticProvider serves signer sets from memory. Accounts that were not
// registered resolve to a master-key-only set when masterKeyFallback is on,
// which matches a fresh ledger account with default thresholds.
type StaticProvider struct {
	mu                sync.RWMutex
	accounts          map[string]core.SignerSet
	masterKeyFallback bool
}

// NewStaticProvider creates an in-memory provider.
func NewStaticProvider(masterKeyFallback bool) *StaticProvider {
	return &StaticProvider{
		accounts:          make(map[string]core.SignerSet),
		masterKeyFallback: masterKeyFallback,
	}
}

var _ ports.AccountProvider = (*StaticProvider)(nil)

// Put registers or replaces the signer set of an account.
func (p *StaticProvider) Put(set core.SignerSet) {
	set.Signers = append([]core.Signer(nil), set.Signers...)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[set.AccountID] = set
}

// SignerSet returns a copy of the registered signer set.
func (p *StaticProvider) SignerSet(ctx context.Context, accountID string) (*core.SignerSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	set, ok := p.accounts[accountID]
	p.mu.RUnlock()

	if !ok {
		if !p.masterKeyFallback {
			return nil, core.ErrAccountNotFound
		}
		return &core.SignerSet{
			AccountID: accountID,
			Signers:   []core.Signer{{PublicKey: accountID, Weight: 1}},
		}, nil
	}
	set.Signers = append([]core.Signer(nil), set.Signers...)
	return &set, nil
}
