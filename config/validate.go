package config

import (
	"fmt"
	"math/big"
	"strings"

	"quickex/crypto"
)

// Validate checks the parts of the configuration that would otherwise fail
// late, at genesis or on the first request.
func Validate(cfg *Config) error {
	switch cfg.Backend {
	case BackendLevelDB:
		if strings.TrimSpace(cfg.DataDir) == "" {
			return fmt.Errorf("DataDir is required for the %s backend", BackendLevelDB)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown Backend %q", cfg.Backend)
	}
	if cfg.Auth.MaxSkewSeconds < 0 {
		return fmt.Errorf("Auth.MaxSkewSeconds must not be negative")
	}
	if cfg.Auth.ReplayCacheSize < 0 {
		return fmt.Errorf("Auth.ReplayCacheSize must not be negative")
	}
	if cfg.RateLimit.RequestsPerMinute < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("RateLimit values must not be negative")
	}
	if cfg.Telemetry.Enabled && !cfg.Telemetry.Traces && !cfg.Telemetry.Metrics {
		return fmt.Errorf("Telemetry is enabled but neither Traces nor Metrics is set")
	}
	if cfg.Genesis.Admin != "" {
		if _, err := crypto.ParseAccount(cfg.Genesis.Admin); err != nil {
			return fmt.Errorf("Genesis.Admin: %w", err)
		}
	}
	known := make(map[string]bool, len(cfg.Genesis.Tokens))
	for _, token := range cfg.Genesis.Tokens {
		symbol := strings.ToUpper(strings.TrimSpace(token.Symbol))
		if symbol == "" {
			return fmt.Errorf("Genesis.Tokens: empty symbol")
		}
		known[symbol] = true
	}
	for i, bal := range cfg.Genesis.Balances {
		if _, err := crypto.ParseAccount(bal.Account); err != nil {
			return fmt.Errorf("Genesis.Balances[%d].Account: %w", i, err)
		}
		if !known[strings.ToUpper(strings.TrimSpace(bal.Token))] {
			return fmt.Errorf("Genesis.Balances[%d]: token %q is not listed in Genesis.Tokens", i, bal.Token)
		}
		if _, err := ParseAmount(bal.Amount); err != nil {
			return fmt.Errorf("Genesis.Balances[%d].Amount: %w", i, err)
		}
	}
	return nil
}

// ParseAmount parses a non-negative base-10 integer amount.
func ParseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", s)
	}
	return amount, nil
}
