package stellar

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/stellar/go-stellar-sdk/network"
)

// Network is a Stellar network the service authenticates accounts on.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

const (
	MainnetPassphrase = network.PublicNetworkPassphrase
	TestnetPassphrase = network.TestNetworkPassphrase

	MainnetHorizonURL = "https://horizon.stellar.org"
	TestnetHorizonURL = "https://horizon-testnet.stellar.org"
)

// ParseNetwork parses "mainnet" or "testnet", case-insensitively.
func ParseNetwork(s string) (Network, error) {
	switch n := Network(strings.ToLower(strings.TrimSpace(s))); n {
	case Mainnet, Testnet:
		return n, nil
	default:
		return "", fmt.Errorf("invalid network %q: must be 'mainnet' or 'testnet'", s)
	}
}

// Passphrase returns the network passphrase.
func (n Network) Passphrase() string {
	if n == Mainnet {
		return MainnetPassphrase
	}
	return TestnetPassphrase
}

// HorizonURL returns the public Horizon endpoint of the network.
func (n Network) HorizonURL() string {
	if n == Mainnet {
		return MainnetHorizonURL
	}
	return TestnetHorizonURL
}

// NetworkID is SHA-256 of the network passphrase.
type NetworkID [32]byte

// ID derives the network id from a passphrase.
func ID(passphrase string) NetworkID {
	return network.ID(passphrase)
}

// String returns the hex form of the id.
func (id NetworkID) String() string {
	return hex.EncodeToString(id[:])
}
