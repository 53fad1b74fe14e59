package core

import "errors"

var (
	ErrInvalidAccount       = errors.New("invalid account")
	ErrDomainMismatch       = errors.New("domain mismatch")
	ErrMalformedEnvelope    = errors.New("malformed envelope")
	ErrTamperedChallenge    = errors.New("tampered challenge")
	ErrChallengeExpired     = errors.New("challenge expired")
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountLookupTimeout = errors.New("account lookup timed out")
	ErrLedgerUnavailable    = errors.New("ledger state unavailable")
	ErrInsufficientWeight   = errors.New("insufficient signer weight")
	ErrReplayDetected       = errors.New("replay detected")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionRevoked       = errors.New("session revoked")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrIllegalTransition    = errors.New("illegal state transition")

	// ErrNotFound is returned by stores when a key is absent or expired.
	ErrNotFound = errors.New("not found")
)

// Kind returns the taxonomy error that err wraps, or nil when err is not an
// authentication error.
func Kind(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

var kinds = []error{
	ErrInvalidAccount,
	ErrDomainMismatch,
	ErrMalformedEnvelope,
	ErrTamperedChallenge,
	ErrChallengeExpired,
	ErrAccountNotFound,
	ErrAccountLookupTimeout,
	ErrLedgerUnavailable,
	ErrInsufficientWeight,
	ErrReplayDetected,
	ErrSessionNotFound,
	ErrSessionRevoked,
	ErrStoreUnavailable,
}

var codes = map[error]string{
	ErrInvalidAccount:       "invalid_account",
	ErrDomainMismatch:       "domain_mismatch",
	ErrMalformedEnvelope:    "malformed_envelope",
	ErrTamperedChallenge:    "tampered_challenge",
	ErrChallengeExpired:     "challenge_expired",
	ErrAccountNotFound:      "account_not_found",
	ErrAccountLookupTimeout: "account_lookup_timeout",
	ErrLedgerUnavailable:    "ledger_unavailable",
	ErrInsufficientWeight:   "insufficient_weight",
	ErrReplayDetected:       "replay_detected",
	ErrSessionNotFound:      "session_not_found",
	ErrSessionRevoked:       "session_revoked",
	ErrStoreUnavailable:     "store_unavailable",
}

// Code returns a stable snake_case name for the kind of err, "ok" for nil and
// "internal" for errors outside the taxonomy. Codes are for logs and metrics.
func Code(err error) string {
	if err == nil {
		return "ok"
	}
	if code, ok := codes[Kind(err)]; ok {
		return code
	}
	return "internal"
}

// Transient reports whether err is a retryable infrastructure failure rather
// than a rejected credential.
func Transient(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrAccountLookupTimeout) ||
		errors.Is(err, ErrLedgerUnavailable)
}

// Suspicious reports whether err may indicate an attack and deserves elevated
// log severity.
func Suspicious(err error) bool {
	return errors.Is(err, ErrReplayDetected) || errors.Is(err, ErrTamperedChallenge)
}
