package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

// TokenSize is the number of random bytes in a session token.
const TokenSize = 32

var errNoConsumedNonce = errors.New("identity was not produced by a nonce consumption")

// SessionManager issues, validates and revokes opaque session tokens.
// Records are keyed by the SHA-256 of the token so the store never holds a
// usable credential.
type SessionManager struct {
	store   ports.Store
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	random  io.Reader
	now     func() time.Time
}

// NewSessionManager creates a manager writing under "{prefix}:session:".
func NewSessionManager(store ports.Store, prefix string, ttl, timeout time.Duration, now func() time.Time) *SessionManager {
	return &SessionManager{
		store:   store,
		prefix:  prefix + ":session:",
		ttl:     ttl,
		timeout: timeout,
		random:  rand.Reader,
		now:     now,
	}
}

// SessionID is a non-secret identifier of a session, safe for logs and events.
func SessionID(token string) string {
	return tokenHash(token)[:16]
}

func tokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Create starts a new independent session for a verified identity. The
// returned Session is the only place the token ever appears.
func (m *SessionManager) Create(ctx context.Context, identity core.VerifiedIdentity, metadata map[string]string) (*core.Session, error) {
	if identity.ConsumedNonce == "" {
		return nil, errNoConsumedNonce
	}

	raw := make([]byte, TokenSize)
	if _, err := io.ReadFull(m.random, raw); err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := m.now().UTC()
	session := &core.Session{
		Token:     base64.RawURLEncoding.EncodeToString(raw),
		AccountID: identity.AccountID,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
		Metadata:  metadata,
	}

	record, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	ok, err := m.store.SetNX(ctx, m.key(session.Token), string(record), m.ttl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	if !ok {
		// 256 random bits collided, or the random source is broken.
		return nil, errors.New("session token collision")
	}
	return session, nil
}

// Validate resolves a token to the identity it was issued to.
func (m *SessionManager) Validate(ctx context.Context, token string) (core.VerifiedIdentity, error) {
	session, err := m.load(ctx, token)
	if err != nil {
		return core.VerifiedIdentity{}, err
	}
	// The store expires records on its own; both checks stay in case its
	// clock and ours disagree.
	if session.Revoked {
		return core.VerifiedIdentity{}, core.ErrSessionRevoked
	}
	if !m.now().Before(session.ExpiresAt) {
		return core.VerifiedIdentity{}, core.ErrSessionNotFound
	}
	return core.VerifiedIdentity{
		AccountID: session.AccountID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Revoke marks the session revoked for the rest of its lifetime. Unknown,
// expired and already revoked tokens succeed without change; the returned
// session is nil in that case. Only store failures are reported.
func (m *SessionManager) Revoke(ctx context.Context, token string) (*core.Session, error) {
	if token == "" {
		return nil, nil
	}
	session, err := m.load(ctx, token)
	if errors.Is(err, core.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if session.Revoked {
		return nil, nil
	}

	remaining := session.ExpiresAt.Sub(m.now())
	if remaining <= 0 {
		return nil, nil
	}

	session.Revoked = true
	record, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.store.Set(ctx, m.key(token), string(record), remaining); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return session, nil
}

func (m *SessionManager) load(ctx context.Context, token string) (*core.Session, error) {
	if token == "" {
		return nil, core.ErrSessionNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	record, err := m.store.Get(ctx, m.key(token))
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	var session core.Session
	if err := json.Unmarshal([]byte(record), &session); err != nil {
		// A record we cannot read grants nothing; drop it so it stops
		// shadowing the key.
		if derr := m.store.Delete(ctx, m.key(token)); derr != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, derr)
		}
		return nil, fmt.Errorf("%w: unreadable record", core.ErrSessionNotFound)
	}
	session.Token = token
	return &session, nil
}

func (m *SessionManager) key(token string) string {
	return m.prefix + tokenHash(token)
}
