package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/internal/metrics"
	"go.uber.org/zap"
)

const (
	DefaultChallengeTTL  = 5 * time.Minute
	DefaultSessionTTL    = 7 * 24 * time.Hour
	DefaultNonceSize     = 48
	DefaultClockSkew     = time.Minute
	DefaultStoreTimeout  = 2 * time.Second
	DefaultLookupTimeout = 5 * time.Second
	DefaultKeyPrefix     = "auth"

	MinNonceSize = 32
	MaxNonceSize = 64

	// SignatureVersion names the challenge format and signature scheme.
	SignatureVersion = "keyauth-ed25519-v1"
)

// Options is the immutable configuration of an AuthService.
type Options struct {
	ChallengeTTL time.Duration
	SessionTTL   time.Duration
	// HomeDomains lists the domains challenges may be bound to.
	HomeDomains []string
	// RequiredThreshold has no default and must be set explicitly.
	RequiredThreshold core.ThresholdLevel
	NetworkPassphrase string
	NonceSize         int
	// ClockSkew is how far in the future a challenge's issued_at may lie.
	ClockSkew     time.Duration
	StoreTimeout  time.Duration
	LookupTimeout time.Duration
	KeyPrefix     string
}

// DefaultOptions returns options with every default filled in except the
// fields that must come from configuration: HomeDomains, RequiredThreshold
// and NetworkPassphrase.
func DefaultOptions() Options {
	return Options{
		ChallengeTTL:  DefaultChallengeTTL,
		SessionTTL:    DefaultSessionTTL,
		NonceSize:     DefaultNonceSize,
		ClockSkew:     DefaultClockSkew,
		StoreTimeout:  DefaultStoreTimeout,
		LookupTimeout: DefaultLookupTimeout,
		KeyPrefix:     DefaultKeyPrefix,
	}
}

func (o Options) validate() error {
	var errs []error
	if o.ChallengeTTL <= 0 {
		errs = append(errs, errors.New("challenge ttl must be positive"))
	}
	if o.SessionTTL <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}
	if len(o.HomeDomains) == 0 {
		errs = append(errs, errors.New("at least one home domain is required"))
	}
	for _, d := range o.HomeDomains {
		if d == "" {
			errs = append(errs, errors.New("home domain must not be empty"))
		}
	}
	if _, err := core.ParseThresholdLevel(string(o.RequiredThreshold)); err != nil {
		errs = append(errs, fmt.Errorf("required threshold: %w", err))
	}
	if o.NetworkPassphrase == "" {
		errs = append(errs, errors.New("network passphrase is required"))
	}
	if o.NonceSize < MinNonceSize || o.NonceSize > MaxNonceSize {
		errs = append(errs, fmt.Errorf("nonce size must be between %d and %d bytes", MinNonceSize, MaxNonceSize))
	}
	if o.ClockSkew < 0 {
		errs = append(errs, errors.New("clock skew must not be negative"))
	}
	if o.StoreTimeout <= 0 || o.LookupTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	if o.KeyPrefix == "" {
		errs = append(errs, errors.New("key prefix is required"))
	}
	return errors.Join(errs...)
}

// Option customises collaborators of an AuthService.
type Option func(*AuthService)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *AuthService) { s.logger = l }
}

// WithMetrics sets the Prometheus instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *AuthService) { s.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}
