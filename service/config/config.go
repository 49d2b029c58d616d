package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Solana network configuration
	NetworkURL string
	Network    string

	// Monitored wallet and signing authority
	MonitoredAccount solana.PublicKey
	AuthorityKey     solana.PrivateKey

	// Tracked token mint
	Mint solana.PublicKey

	// Redistribution rules
	BurnPercentage     float64
	TreasuryPercentage float64
	FeePercentage      float64

	// Redistribution destinations (owning wallets, not token accounts)
	BurnAddress     solana.PublicKey
	TreasuryAddress solana.PublicKey
	FeeAddress      solana.PublicKey

	// Processing settings
	MinTransferAmount   uint64
	SignatureFetchLimit int
	ConfirmationTimeout time.Duration

	// Polling settings
	PollInterval                time.Duration
	ErrorRetryInterval          time.Duration
	LegPacingInterval           time.Duration
	ConfirmationPollInterval    time.Duration
	TokenAccountRefreshInterval time.Duration

	// Optional integrations (disabled when empty)
	NATSURL     string
	DatabaseURL string
}

// PercentageSumTolerance is the allowed deviation from 100 when validating
// the three redistribution percentages (floating point slack).
const PercentageSumTolerance = 0.01

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.NetworkURL = getEnvOrDefault("SOLANA_NETWORK_URL", "https://api.mainnet-beta.solana.com")
	cfg.Network = getEnvOrDefault("SOLANA_NETWORK", "mainnet-beta")

	if account := os.Getenv("MONITORED_ACCOUNT"); account == "" {
		errs = append(errs, fmt.Errorf("MONITORED_ACCOUNT is required"))
	} else if key, err := solana.PublicKeyFromBase58(account); err != nil {
		errs = append(errs, fmt.Errorf("MONITORED_ACCOUNT: invalid address: %w", err))
	} else {
		cfg.MonitoredAccount = key
	}

	// The raw key material is parsed here and never stored as a string so it
	// cannot leak through config dumps or logs.
	if raw := os.Getenv("PRIVATE_KEY"); raw == "" {
		errs = append(errs, fmt.Errorf("PRIVATE_KEY is required"))
	} else if key, err := solana.PrivateKeyFromBase58(raw); err != nil {
		errs = append(errs, fmt.Errorf("PRIVATE_KEY: invalid base58 key material: %w", err))
	} else {
		cfg.AuthorityKey = key
	}

	if mint := os.Getenv("NEXACOIN_MINT"); mint == "" {
		errs = append(errs, fmt.Errorf("NEXACOIN_MINT is required"))
	} else if key, err := solana.PublicKeyFromBase58(mint); err != nil {
		errs = append(errs, fmt.Errorf("NEXACOIN_MINT: invalid address: %w", err))
	} else {
		cfg.Mint = key
	}

	cfg.BurnPercentage = parseFloat("BURN_PERCENTAGE", 5.0, &errs)
	cfg.TreasuryPercentage = parseFloat("TREASURY_PERCENTAGE", 70.0, &errs)
	cfg.FeePercentage = parseFloat("FEE_PERCENTAGE", 25.0, &errs)

	if cfg.BurnPercentage < 0 || cfg.TreasuryPercentage < 0 || cfg.FeePercentage < 0 {
		errs = append(errs, fmt.Errorf("redistribution percentages must be non-negative"))
	}
	total := cfg.BurnPercentage + cfg.TreasuryPercentage + cfg.FeePercentage
	if math.Abs(total-100.0) > PercentageSumTolerance {
		errs = append(errs, fmt.Errorf("redistribution percentages must sum to 100 (got %g)", total))
	}

	cfg.BurnAddress = parseAddress("BURN_ADDRESS", &errs)
	cfg.TreasuryAddress = parseAddress("TREASURY_ADDRESS", &errs)
	cfg.FeeAddress = parseAddress("FEE_ADDRESS", &errs)

	cfg.MinTransferAmount = parseUint("MIN_TRANSFER_AMOUNT", 1000, &errs)
	cfg.SignatureFetchLimit = parseInt("SIGNATURE_FETCH_LIMIT", 20, &errs)
	if cfg.SignatureFetchLimit < 1 {
		errs = append(errs, fmt.Errorf("SIGNATURE_FETCH_LIMIT must be at least 1"))
	}

	cfg.ConfirmationTimeout = parseDuration("CONFIRMATION_TIMEOUT", "60s", &errs)
	cfg.PollInterval = parseDuration("POLLING_INTERVAL", "10s", &errs)
	cfg.ErrorRetryInterval = parseDuration("ERROR_RETRY_INTERVAL", "30s", &errs)
	cfg.LegPacingInterval = parseDuration("LEG_PACING_INTERVAL", "1s", &errs)
	cfg.ConfirmationPollInterval = parseDuration("CONFIRMATION_POLL_INTERVAL", "1s", &errs)
	cfg.TokenAccountRefreshInterval = parseDuration("TOKEN_ACCOUNT_REFRESH_INTERVAL", "1h", &errs)

	if cfg.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("POLLING_INTERVAL must be at least 1 second"))
	}
	if cfg.ErrorRetryInterval < cfg.PollInterval {
		errs = append(errs, fmt.Errorf("ERROR_RETRY_INTERVAL (%v) must not be shorter than POLLING_INTERVAL (%v)",
			cfg.ErrorRetryInterval, cfg.PollInterval))
	}

	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for service initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Percentages returns the redistribution percentages in leg order
// (burn, treasury, fee). The order is part of the submission contract.
func (c *Config) Percentages() []float64 {
	return []float64{c.BurnPercentage, c.TreasuryPercentage, c.FeePercentage}
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.MonitoredAccount.IsZero() {
		errs = append(errs, fmt.Errorf("MonitoredAccount is required"))
	}
	if len(c.AuthorityKey) == 0 {
		errs = append(errs, fmt.Errorf("AuthorityKey is required"))
	}
	if c.Mint.IsZero() {
		errs = append(errs, fmt.Errorf("Mint is required"))
	}
	if c.BurnAddress.IsZero() || c.TreasuryAddress.IsZero() || c.FeeAddress.IsZero() {
		errs = append(errs, fmt.Errorf("BurnAddress, TreasuryAddress, and FeeAddress are all required"))
	}

	total := c.BurnPercentage + c.TreasuryPercentage + c.FeePercentage
	if math.Abs(total-100.0) > PercentageSumTolerance {
		errs = append(errs, fmt.Errorf("redistribution percentages must sum to 100 (got %g)", total))
	}

	if c.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("PollInterval must be at least 1 second"))
	}
	if c.ErrorRetryInterval < c.PollInterval {
		errs = append(errs, fmt.Errorf("ErrorRetryInterval must not be shorter than PollInterval"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseAddress parses a required base58 address from an environment variable.
func parseAddress(key string, errs *[]error) solana.PublicKey {
	value := os.Getenv(key)
	if value == "" {
		*errs = append(*errs, fmt.Errorf("%s is required", key))
		return solana.PublicKey{}
	}
	addr, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid address: %w", key, err))
		return solana.PublicKey{}
	}
	return addr
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string, errs *[]error) time.Duration {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q: %w", key, value, err))
		return 0
	}
	return duration
}

// parseFloat parses a float from an environment variable or uses a default.
func parseFloat(key string, defaultValue float64, errs *[]error) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid number %q: %w", key, value, err))
		return 0
	}
	return result
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q: %w", key, value, err))
		return 0
	}
	return result
}

// parseUint parses an unsigned integer from an environment variable or uses a default.
func parseUint(key string, defaultValue uint64, errs *[]error) uint64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	result, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q: %w", key, value, err))
		return 0
	}
	return result
}
