package ledger

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
	hProtocol "github.com/stellar/go-stellar-sdk/protocols/horizon"
)

const signerTypeEd25519 = "ed25519_public_key"

// HorizonProvider reads signer sets from a Horizon server.
type HorizonProvider struct {
	horizonURL string
	client     *http.Client
}

// NewHorizonProvider creates a provider for the Horizon server at baseURL.
// The caller bounds each lookup with the request context.
func NewHorizonProvider(baseURL string, client *http.Client) ports.AccountProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HorizonProvider{
		horizonURL: strings.TrimRight(baseURL, "/") + "/",
		client:     client,
	}
}

// SignerSet fetches the account from Horizon and keeps its ed25519 signers.
func (p *HorizonProvider) SignerSet(ctx context.Context, accountID string) (*core.SignerSet, error) {
	// horizonclient has no context-aware calls, so the context rides on the
	// transport of a per-lookup client.
	hc := &horizonclient.Client{
		HorizonURL: p.horizonURL,
		HTTP:       contextHTTP{ctx: ctx, client: p.client},
	}

	acc, err := hc.AccountDetail(horizonclient.AccountRequest{AccountID: accountID})
	switch {
	case err == nil:
	case horizonclient.IsNotFoundError(err):
		return nil, core.ErrAccountNotFound
	case isTimeout(ctx, err):
		return nil, fmt.Errorf("%w: %v", core.ErrAccountLookupTimeout, err)
	default:
		return nil, fmt.Errorf("%w: %v", core.ErrLedgerUnavailable, err)
	}

	if acc.AccountID != accountID {
		return nil, fmt.Errorf("%w: horizon returned account %q", core.ErrLedgerUnavailable, acc.AccountID)
	}
	return signerSet(acc), nil
}

func signerSet(acc hProtocol.Account) *core.SignerSet {
	set := &core.SignerSet{
		AccountID: acc.AccountID,
		Thresholds: core.Thresholds{
			Low:    uint32(acc.Thresholds.LowThreshold),
			Medium: uint32(acc.Thresholds.MedThreshold),
			High:   uint32(acc.Thresholds.HighThreshold),
		},
	}
	for _, s := range acc.Signers {
		if s.Type != signerTypeEd25519 || s.Weight <= 0 {
			continue
		}
		set.Signers = append(set.Signers, core.Signer{PublicKey: s.Key, Weight: uint32(s.Weight)})
	}
	return set
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// contextHTTP binds every request horizonclient sends to ctx.
type contextHTTP struct {
	ctx    context.Context
	client *http.Client
}

func (c contextHTTP) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

func (c contextHTTP) Get(rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(c.ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return c.client.Do(req)
}

func (c contextHTTP) PostForm(rawURL string, data url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(c.ctx, http.MethodPost, rawURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.client.Do(req)
}
