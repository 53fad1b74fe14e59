package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/keyauth/adapters/ledger"
	"github.com/layer-3/keyauth/adapters/store"
	"github.com/layer-3/keyauth/adapters/tokenizer"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
	"github.com/stretchr/testify/require"
)

const testPassphrase = "Test SDF Network ; September 2015"

// fakeKey is a deterministic stand-in for a network key: its signature over m
// is SHA-256(name || m).
type fakeKey struct{ name string }

func (k fakeKey) Address() string { return "FAKE-" + k.name }

func (k fakeKey) Sign(message []byte) ([]byte, error) {
	return fakeSig(k.name, message), nil
}

func fakeSig(name string, message []byte) []byte {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write(message)
	return h.Sum(nil)
}

var errBadFakeSig = errors.New("bad fake signature")

type fakeKeys struct{}

func (fakeKeys) ValidAccount(id string) bool {
	return strings.HasPrefix(id, "FAKE-") && len(id) > len("FAKE-")
}

func (fakeKeys) Verify(publicKey string, message, signature []byte) error {
	name, ok := strings.CutPrefix(publicKey, "FAKE-")
	if !ok || string(fakeSig(name, message)) != string(signature) {
		return errBadFakeSig
	}
	return nil
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingPublisher struct {
	mu       sync.Mutex
	created  []string
	revoked  []string
	replayed []string
}

func (p *recordingPublisher) PublishSessionCreated(_ context.Context, account, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, account)
	return nil
}

func (p *recordingPublisher) PublishSessionRevoked(_ context.Context, account, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked = append(p.revoked, account)
	return nil
}

func (p *recordingPublisher) PublishReplayDetected(_ context.Context, account, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replayed = append(p.replayed, account)
	return nil
}

type harness struct {
	svc      *AuthService
	clock    *testClock
	store    ports.Store
	accounts *ledger.StaticProvider
	provider ports.AccountProvider
	events   *recordingPublisher
	opts     Options
	service  fakeKey
}

type harnessOption func(*harness)

func withOptions(f func(*Options)) harnessOption {
	return func(h *harness) { f(&h.opts) }
}

func withStore(s ports.Store) harnessOption {
	return func(h *harness) { h.store = s }
}

func withProvider(p ports.AccountProvider) harnessOption {
	return func(h *harness) { h.provider = p }
}

func withClock(c *testClock) harnessOption {
	return func(h *harness) { h.clock = c }
}

func newHarness(t *testing.T, mods ...harnessOption) *harness {
	t.Helper()

	opts := DefaultOptions()
	opts.HomeDomains = []string{"d.example"}
	opts.RequiredThreshold = core.ThresholdMedium
	opts.NetworkPassphrase = testPassphrase

	h := &harness{
		clock:    newTestClock(),
		store:    store.NewMemoryStore(),
		accounts: ledger.NewStaticProvider(false),
		events:   &recordingPublisher{},
		opts:     opts,
		service:  fakeKey{name: "service"},
	}
	h.provider = h.accounts
	for _, m := range mods {
		m(h)
	}

	svc, err := NewAuthService(
		h.opts,
		h.service,
		tokenizer.NewJWTTokenizer(h.service, fakeKeys{}),
		fakeKeys{},
		h.store,
		h.provider,
		h.events,
		WithClock(h.clock.Now),
	)
	require.NoError(t, err)
	h.svc = svc
	return h
}

// registerSingleKey registers an account whose only signer is its own key.
func (h *harness) registerSingleKey(k fakeKey) {
	h.accounts.Put(core.SignerSet{
		AccountID:  k.Address(),
		Signers:    []core.Signer{{PublicKey: k.Address(), Weight: 1}},
		Thresholds: core.Thresholds{Low: 1, Medium: 1, High: 1},
	})
}

func (h *harness) networkID() []byte {
	id := sha256.Sum256([]byte(testPassphrase))
	return id[:]
}

// signedEnvelope issues a challenge for account and co-signs it with signers.
func (h *harness) signedEnvelope(t *testing.T, account string, signers ...ports.Signer) []byte {
	t.Helper()
	challenge, err := h.svc.IssueChallenge(context.Background(), account, "d.example")
	require.NoError(t, err)
	return h.sign(t, challenge.Token, signers...)
}

func (h *harness) sign(t *testing.T, token string, signers ...ports.Signer) []byte {
	t.Helper()
	env := &core.Envelope{Challenge: token}
	if len(signers) > 0 {
		require.NoError(t, SignEnvelope(env, h.networkID(), signers...))
	}
	raw, err := EncodeEnvelope(env)
	require.NoError(t, err)
	return raw
}

// failingStore fails every call, standing in for an unreachable store.
type failingStore struct{}

var errStoreDown = errors.New("connection refused")

func (failingStore) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	return false, errStoreDown
}
func (failingStore) Set(context.Context, string, string, time.Duration) error { return errStoreDown }
func (failingStore) Get(context.Context, string) (string, error)              { return "", errStoreDown }
func (failingStore) Delete(context.Context, string) error                     { return errStoreDown }
func (failingStore) Close() error                                             { return nil }

// blockingProvider never answers before the context ends.
type blockingProvider struct{}

func (blockingProvider) SignerSet(ctx context.Context, _ string) (*core.SignerSet, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
