package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/internal/metrics"
	"github.com/layer-3/keyauth/ports"
	"go.uber.org/zap"
)

// Info describes the service to clients
type Info struct {
	SigningAccount    string `json:"signing_account"`
	NetworkPassphrase string `json:"network_passphrase"`
	NetworkID         string `json:"network_id"`
	SignatureVersion  string `json:"signature_version"`
}

// AuthService handles authentication business logic
type AuthService struct {
	issuer   *ChallengeIssuer
	verifier *SignatureVerifier
	sessions *SessionManager
	eventPub ports.EventPublisher
	info     Info

	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewAuthService creates a new authentication service. signer is the service
// authority key the tokenizer seals challenges with.
func NewAuthService(
	opts Options,
	signer ports.Signer,
	tokenizer ports.Tokenizer,
	keys ports.KeyVerifier,
	store ports.Store,
	accounts ports.AccountProvider,
	eventPub ports.EventPublisher,
	options ...Option,
) (*AuthService, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid auth service options: %w", err)
	}

	if eventPub == nil {
		eventPub = nopPublisher{}
	}

	s := &AuthService{
		eventPub: eventPub,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, o := range options {
		o(s)
	}

	networkID := sha256.Sum256([]byte(opts.NetworkPassphrase))
	s.info = Info{
		SigningAccount:    signer.Address(),
		NetworkPassphrase: opts.NetworkPassphrase,
		NetworkID:         fmt.Sprintf("%x", networkID),
		SignatureVersion:  SignatureVersion,
	}

	s.issuer = NewChallengeIssuer(tokenizer, keys, NewNonceGenerator(opts.NonceSize), opts.HomeDomains, opts.ChallengeTTL, s.info.NetworkID, s.now)
	replay := NewReplayGuard(store, opts.KeyPrefix, opts.StoreTimeout, s.now)
	s.verifier = NewSignatureVerifier(tokenizer, keys, accounts, replay, VerifierConfig{
		HomeDomains:       opts.HomeDomains,
		RequiredThreshold: opts.RequiredThreshold,
		NetworkID:         networkID[:],
		ClockSkew:         opts.ClockSkew,
		LookupTimeout:     opts.LookupTimeout,
	}, s.metrics, s.now)
	s.sessions = NewSessionManager(store, opts.KeyPrefix, opts.SessionTTL, opts.StoreTimeout, s.now)

	return s, nil
}

// Info returns the public description of the service.
func (s *AuthService) Info() Info {
	return s.info
}

// IssueChallenge generates a new authentication challenge
func (s *AuthService) IssueChallenge(ctx context.Context, accountID, domain string) (*core.SealedChallenge, error) {
	challenge, err := s.issuer.Issue(accountID, domain)
	if err != nil {
		s.logger.Info("challenge refused",
			zap.String("account", accountID),
			zap.String("domain", domain),
			zap.String("reason", core.Code(err)))
		return nil, err
	}

	state := s.transition(core.StateUnchallenged, core.EventIssueChallenge)
	s.metrics.ChallengeIssued()
	s.logger.Debug("challenge issued",
		zap.String("account", accountID),
		zap.String("challenge_id", challenge.ID),
		zap.String("state", string(state)),
		zap.Time("expires_at", challenge.ExpiresAt))
	return challenge, nil
}

// Verify checks a co-signed envelope and, on success, starts a new session.
func (s *AuthService) Verify(ctx context.Context, envelope []byte, metadata map[string]string) (*core.Session, error) {
	identity, err := s.verifier.Verify(ctx, envelope)
	s.metrics.Verification(err)
	if err != nil {
		s.logVerifyFailure(ctx, err)
		return nil, err
	}

	session, err := s.sessions.Create(ctx, identity, metadata)
	if err != nil {
		s.logger.Error("session creation failed after verification",
			zap.String("account", identity.AccountID),
			zap.Error(err))
		return nil, err
	}

	state := s.transition(s.transition(core.StateChallenged, core.EventVerifySuccess), core.EventCreateSession)
	sessionID := SessionID(session.Token)
	s.logger.Info("session created",
		zap.String("account", session.AccountID),
		zap.String("session_id", sessionID),
		zap.String("state", string(state)),
		zap.Time("expires_at", session.ExpiresAt))

	if err := s.eventPub.PublishSessionCreated(ctx, session.AccountID, sessionID); err != nil {
		s.logger.Warn("failed to publish session created event", zap.Error(err))
	}
	return session, nil
}

func (s *AuthService) logVerifyFailure(ctx context.Context, err error) {
	state := s.transition(core.StateChallenged, core.EventVerifyFailure)
	fields := []zap.Field{
		zap.String("reason", core.Code(err)),
		zap.String("state", string(state)),
		zap.Error(err),
	}
	var verr *VerifyError
	if errors.As(err, &verr) {
		fields = append(fields,
			zap.String("account", verr.AccountID),
			zap.String("challenge_id", verr.ChallengeID))
	}

	switch {
	case core.Suspicious(err):
		s.logger.Warn("verification rejected, possible attack", fields...)
	case core.Transient(err):
		s.logger.Error("verification failed on a dependency", fields...)
	default:
		s.logger.Info("verification rejected", fields...)
	}

	if errors.Is(err, core.ErrReplayDetected) && verr != nil {
		if perr := s.eventPub.PublishReplayDetected(ctx, verr.AccountID, verr.ChallengeID); perr != nil {
			s.logger.Warn("failed to publish replay event", zap.Error(perr))
		}
	}
}

// Validate resolves a session token to its identity.
func (s *AuthService) Validate(ctx context.Context, token string) (core.VerifiedIdentity, error) {
	identity, err := s.sessions.Validate(ctx, token)
	s.metrics.SessionValidation(err)
	if err != nil {
		if core.Transient(err) {
			s.logger.Error("session validation failed", zap.Error(err))
		} else {
			s.logger.Debug("session rejected", zap.String("reason", core.Code(err)))
		}
		return core.VerifiedIdentity{}, err
	}
	return identity, nil
}

// Logout revokes a session. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	session, err := s.sessions.Revoke(ctx, token)
	if err != nil {
		s.logger.Error("failed to revoke session", zap.Error(err))
		return err
	}
	if session == nil {
		return nil
	}

	state := s.transition(core.StateSessionActive, core.EventRevoke)
	sessionID := SessionID(token)
	s.logger.Info("session revoked",
		zap.String("account", session.AccountID),
		zap.String("session_id", sessionID),
		zap.String("state", string(state)))

	// The record is already revoked; a lost event only delays other instances.
	if err := s.eventPub.PublishSessionRevoked(ctx, session.AccountID, sessionID); err != nil {
		s.logger.Warn("failed to publish session revoked event", zap.Error(err))
	}
	return nil
}

// transition advances the cycle state for log labels. An illegal move is a
// programming error; it is logged and the state is left unchanged.
func (s *AuthService) transition(from core.State, e core.Event) core.State {
	next, err := core.Transition(from, e)
	if err != nil {
		s.logger.DPanic("illegal auth state transition", zap.Error(err))
		return from
	}
	return next
}

type nopPublisher struct{}

func (nopPublisher) PublishSessionCreated(context.Context, string, string) error { return nil }
func (nopPublisher) PublishSessionRevoked(context.Context, string, string) error { return nil }
func (nopPublisher) PublishReplayDetected(context.Context, string, string) error { return nil }
