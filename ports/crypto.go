package ports

// Signer signs messages with a network key.
type Signer interface {
	// Address is the encoded public key of the signer.
	Address() string
	Sign(message []byte) ([]byte, error)
}

// KeyVerifier checks signatures and account identifiers in the network's
// native key format.
type KeyVerifier interface {
	ValidAccount(accountID string) bool
	Verify(publicKey string, message, signature []byte) error
}
