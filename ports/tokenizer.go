package ports

import "github.com/layer-3/keyauth/core"

// Tokenizer converts between challenges and their service-signed wire form
type Tokenizer interface {
	// Seal signs the canonical bytes of challenge with the service key.
	Seal(challenge *core.Challenge) (*core.SealedChallenge, error)
	// Open checks the service signature over the canonical bytes before
	// decoding any claim. It fails with core.ErrMalformedEnvelope or
	// core.ErrTamperedChallenge.
	Open(token string) (*core.SealedChallenge, error)
}
