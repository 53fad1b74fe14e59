// Package config loads and validates service config from flags, the
// environment and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/layer-3/keyauth/adapters/stellar"
	"github.com/layer-3/keyauth/core"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds service configuration.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :9000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the application environment; "development" switches to console logs.
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Network is "mainnet" or "testnet" and supplies the default passphrase
	// and Horizon URL.
	Network           string `mapstructure:"STELLAR_NETWORK"`
	NetworkPassphrase string `mapstructure:"NETWORK_PASSPHRASE"`
	HorizonURL        string `mapstructure:"HORIZON_URL"`

	// SigningSeed is the S... secret seed of the service authority key.
	SigningSeed string `mapstructure:"SIGNING_SEED"`
	// HomeDomains is a comma-separated list of domains challenges may bind to.
	HomeDomains string `mapstructure:"HOME_DOMAINS"`

	ChallengeTTL      time.Duration `mapstructure:"CHALLENGE_TTL"`
	SessionTTL        time.Duration `mapstructure:"SESSION_TTL"`
	RequiredThreshold string        `mapstructure:"REQUIRED_THRESHOLD"`
	NonceSize         int           `mapstructure:"NONCE_SIZE"`
	ClockSkew         time.Duration `mapstructure:"CLOCK_SKEW"`

	// StoreBackend is "redis" or "memory". Memory only suits a single instance.
	StoreBackend string        `mapstructure:"STORE_BACKEND"`
	RedisURL     string        `mapstructure:"REDIS_URL"`
	KeyPrefix    string        `mapstructure:"KEY_PREFIX"`
	StoreTimeout time.Duration `mapstructure:"STORE_TIMEOUT"`

	// LedgerBackend is "horizon" or "static". Static resolves every account to
	// its master key alone.
	LedgerBackend string        `mapstructure:"LEDGER_BACKEND"`
	LookupTimeout time.Duration `mapstructure:"LOOKUP_TIMEOUT"`

	// AccountNotFoundStatus is 404 to reveal unknown accounts, or 401.
	AccountNotFoundStatus int `mapstructure:"ACCOUNT_NOT_FOUND_STATUS"`

	// EventsEnabled publishes auth events to Redis streams.
	EventsEnabled bool `mapstructure:"EVENTS_ENABLED"`
}

var defaults = map[string]any{
	"HTTP_ADDR":                ":9000",
	"APP_ENV":                  "",
	"LOG_LEVEL":                "info",
	"STELLAR_NETWORK":          string(stellar.Testnet),
	"NETWORK_PASSPHRASE":       "",
	"HORIZON_URL":              "",
	"SIGNING_SEED":             "",
	"HOME_DOMAINS":             "",
	"CHALLENGE_TTL":            "5m",
	"SESSION_TTL":              "168h",
	"REQUIRED_THRESHOLD":       string(core.ThresholdMedium),
	"NONCE_SIZE":               48,
	"CLOCK_SKEW":               "1m",
	"STORE_BACKEND":            "redis",
	"REDIS_URL":                "redis://localhost:6379/0",
	"KEY_PREFIX":               "auth",
	"STORE_TIMEOUT":            "2s",
	"LEDGER_BACKEND":           "horizon",
	"LOOKUP_TIMEOUT":           "5s",
	"ACCOUNT_NOT_FOUND_STATUS": http.StatusUnauthorized,
	"EVENTS_ENABLED":           false,
}

// Load parses args, reads the config file (if present), then builds and
// validates Config. Env vars override the file and flags override both.
// A missing config file is ignored.
func Load(args []string) (*Config, error) {
	flags := pflag.NewFlagSet("keyauth", pflag.ContinueOnError)
	configFile := flags.String("config", ".env", "path to a .env config file")
	flags.String("addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()

	v.SetConfigFile(*configFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil && !configMissing(err) {
		return nil, fmt.Errorf("config: read %s: %w", *configFile, err)
	}

	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if addr := flags.Lookup("addr"); addr.Changed {
		v.Set("HTTP_ADDR", addr.Value.String())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configMissing(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// resolve fills network-derived defaults and validates the result.
func (c *Config) resolve() error {
	network, err := stellar.ParseNetwork(c.Network)
	if err != nil {
		return fmt.Errorf("config: STELLAR_NETWORK: %w", err)
	}
	if c.NetworkPassphrase == "" {
		c.NetworkPassphrase = network.Passphrase()
	}
	if c.HorizonURL == "" {
		c.HorizonURL = network.HorizonURL()
	}

	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR must be set"))
	}
	if c.SigningSeed == "" {
		errs = append(errs, errors.New("SIGNING_SEED must be set"))
	}
	if len(c.HomeDomainList()) == 0 {
		errs = append(errs, errors.New("HOME_DOMAINS must list at least one domain"))
	}
	if _, err := core.ParseThresholdLevel(c.RequiredThreshold); err != nil {
		errs = append(errs, fmt.Errorf("REQUIRED_THRESHOLD: %w", err))
	}
	if c.NonceSize < 32 || c.NonceSize > 64 {
		errs = append(errs, errors.New("NONCE_SIZE must be between 32 and 64"))
	}
	switch c.StoreBackend {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be 'redis' or 'memory', got %q", c.StoreBackend))
	}
	switch c.LedgerBackend {
	case "horizon", "static":
	default:
		errs = append(errs, fmt.Errorf("LEDGER_BACKEND must be 'horizon' or 'static', got %q", c.LedgerBackend))
	}
	if c.AccountNotFoundStatus != http.StatusUnauthorized && c.AccountNotFoundStatus != http.StatusNotFound {
		errs = append(errs, errors.New("ACCOUNT_NOT_FOUND_STATUS must be 401 or 404"))
	}
	if c.EventsEnabled && c.StoreBackend != "redis" {
		errs = append(errs, errors.New("EVENTS_ENABLED requires STORE_BACKEND=redis"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Threshold returns the parsed REQUIRED_THRESHOLD.
func (c *Config) Threshold() core.ThresholdLevel {
	l, _ := core.ParseThresholdLevel(c.RequiredThreshold)
	return l
}

// HomeDomainList returns the domains from the comma-separated HOME_DOMAINS.
func (c *Config) HomeDomainList() []string {
	if c == nil || c.HomeDomains == "" {
		return nil
	}
	parts := strings.Split(c.HomeDomains, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
