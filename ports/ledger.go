package ports

import (
	"context"

	"github.com/layer-3/keyauth/core"
)

// AccountProvider reads an account's current signer set from the ledger.
// Implementations fail with core.ErrAccountNotFound when the account does not
// exist and must not cache results.
type AccountProvider interface {
	SignerSet(ctx context.Context, accountID string) (*core.SignerSet, error)
}
