package keyauth_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/keyauth"
	"github.com/layer-3/keyauth/adapters/ledger"
	"github.com/layer-3/keyauth/adapters/stellar"
	"github.com/layer-3/keyauth/adapters/store"
	"github.com/layer-3/keyauth/adapters/tokenizer"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/service"
	transport "github.com/layer-3/keyauth/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func keyPair(t *testing.T, fill byte) *stellar.KeyPair {
	t.Helper()
	kp, err := stellar.FromRawSeed(bytes.Repeat([]byte{fill}, 32))
	require.NoError(t, err)
	return kp
}

func newServer(t *testing.T) (*keyauth.Client, *ledger.StaticProvider) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	signer := keyPair(t, 1)
	accounts := ledger.NewStaticProvider(true)

	opts := service.DefaultOptions()
	opts.HomeDomains = []string{"d.example"}
	opts.RequiredThreshold = core.ThresholdMedium
	opts.NetworkPassphrase = stellar.TestnetPassphrase

	svc, err := service.NewAuthService(
		opts,
		signer,
		tokenizer.NewJWTTokenizer(signer, stellar.Verifier{}),
		stellar.Verifier{},
		store.NewMemoryStore(),
		accounts,
		nil,
	)
	require.NoError(t, err)

	srv := httptest.NewServer(transport.SetupRouter(svc, zap.NewNop(), transport.Config{}))
	t.Cleanup(srv.Close)
	return keyauth.NewClient(srv.URL+"/", srv.Client()), accounts
}

func TestClient_Login(t *testing.T) {
	client, _ := newServer(t)
	ctx := context.Background()
	user := keyPair(t, 2)

	info, err := client.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, keyPair(t, 1).Address(), info.SigningAccount)

	session, err := client.Login(ctx, user.Address(), "d.example", user)
	require.NoError(t, err)
	assert.Equal(t, user.Address(), session.AccountID)
	assert.False(t, session.ExpiresAt.IsZero())

	me, err := client.Me(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.Address(), me.AccountID)

	require.NoError(t, client.Logout(ctx, session.Token))

	_, err = client.Me(ctx, session.Token)
	var apiErr *keyauth.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "authentication_failed", apiErr.Code)
	assert.False(t, apiErr.Temporary())
}

func TestClient_MultiSigLogin(t *testing.T) {
	client, accounts := newServer(t)
	ctx := context.Background()
	account, a, b := keyPair(t, 3), keyPair(t, 4), keyPair(t, 5)
	accounts.Put(core.SignerSet{
		AccountID:  account.Address(),
		Signers:    []core.Signer{{PublicKey: a.Address(), Weight: 1}, {PublicKey: b.Address(), Weight: 1}},
		Thresholds: core.Thresholds{Low: 1, Medium: 2, High: 2},
	})

	_, err := client.Login(ctx, account.Address(), "d.example", a)
	var apiErr *keyauth.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	session, err := client.Login(ctx, account.Address(), "d.example", a, b)
	require.NoError(t, err)
	assert.Equal(t, account.Address(), session.AccountID)
}

func TestClient_ReplayIsRejected(t *testing.T) {
	client, _ := newServer(t)
	ctx := context.Background()
	user := keyPair(t, 2)

	ch, err := client.Challenge(ctx, user.Address(), "d.example")
	require.NoError(t, err)
	require.NoError(t, keyauth.SignEnvelope(&ch.Envelope, ch.NetworkID, user))

	_, err = client.Verify(ctx, &ch.Envelope)
	require.NoError(t, err)

	_, err = client.Verify(ctx, &ch.Envelope)
	var apiErr *keyauth.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestClient_ChallengeRejected(t *testing.T) {
	client, _ := newServer(t)

	_, err := client.Challenge(context.Background(), keyPair(t, 2).Address(), "elsewhere.example")
	var apiErr *keyauth.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid_request", apiErr.Code)
}

func TestSignEnvelope_BadNetworkID(t *testing.T) {
	env := &core.Envelope{Challenge: "a.b.c"}
	assert.Error(t, keyauth.SignEnvelope(env, "zz", keyPair(t, 2)))
}
