// Package keyauth is a Go client for the keyauth challenge-response service.
//
// A login is three calls: Challenge fetches an unsigned envelope, SignEnvelope
// co-signs it with the account's keys, and Verify exchanges it for a session
// token.
package keyauth

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
	"github.com/layer-3/keyauth/service"
)

// Info describes the service signing key and network.
type Info = service.Info

// Challenge is an unsigned envelope returned by the service.
type Challenge struct {
	Envelope  core.Envelope `json:"envelope"`
	NetworkID string        `json:"network_id"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Session is a session token issued by Verify.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	AccountID string    `json:"account_id"`
}

// Identity is the account behind a session token.
type Identity struct {
	AccountID string    `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Code       string `json:"error_code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("keyauth: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Temporary reports whether the request may succeed if retried unchanged.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusServiceUnavailable
}

// Client talks to a keyauth service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the service at baseURL. A nil httpClient
// means http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Info returns the service description.
func (c *Client) Info(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.do(ctx, http.MethodGet, "/info", "", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Challenge requests a challenge for accountID bound to domain.
func (c *Client) Challenge(ctx context.Context, accountID, domain string) (*Challenge, error) {
	req := map[string]string{"account_id": accountID, "domain": domain}
	var ch Challenge
	if err := c.do(ctx, http.MethodPost, "/challenge", "", req, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// Verify submits a co-signed envelope and returns the new session.
func (c *Client) Verify(ctx context.Context, env *core.Envelope) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodPost, "/verify", "", map[string]any{"envelope": env}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Login runs the whole cycle for accountID, signing with signers.
func (c *Client) Login(ctx context.Context, accountID, domain string, signers ...ports.Signer) (*Session, error) {
	ch, err := c.Challenge(ctx, accountID, domain)
	if err != nil {
		return nil, err
	}
	if err := SignEnvelope(&ch.Envelope, ch.NetworkID, signers...); err != nil {
		return nil, err
	}
	return c.Verify(ctx, &ch.Envelope)
}

// Logout revokes the session behind token.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/logout", token, nil, nil)
}

// Me returns the identity behind token.
func (c *Client) Me(ctx context.Context, token string) (*Identity, error) {
	var id Identity
	if err := c.do(ctx, http.MethodGet, "/api/me", token, nil, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// SignEnvelope co-signs env for the network with the given hex id.
func SignEnvelope(env *core.Envelope, networkID string, signers ...ports.Signer) error {
	id, err := hex.DecodeString(networkID)
	if err != nil {
		return fmt.Errorf("keyauth: network id: %w", err)
	}
	return service.SignEnvelope(env, id, signers...)
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
