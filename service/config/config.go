package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Browser origins allowed to call the API cross-origin. "*" is refused:
	// the API moves funds.
	CORSAllowedOrigins []string

	// NATS configuration. Empty disables session event publishing.
	NATSURL string

	// Solana configuration
	SolanaRPCURL        string
	SolanaNetwork       string
	SolanaCommitment    string
	ExplorerURLTemplate string
	ConfirmPollInterval time.Duration

	// Wallet provider configuration. An empty keypair path means no provider
	// is installed.
	WalletKeypairPath      string
	WalletProviderIdentity string
	WalletAutoApprove      bool

	// Session configuration
	NotificationTTL time.Duration
}

var validCommitments = []string{"processed", "confirmed", "finalized"}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.CORSAllowedOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))

	// NATS configuration
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Solana configuration
	cfg.SolanaRPCURL = getEnvOrDefault("SOLANA_RPC_URL", "https://api.devnet.solana.com")
	cfg.SolanaNetwork = getEnvOrDefault("SOLANA_NETWORK", "devnet")
	cfg.SolanaCommitment = getEnvOrDefault("SOLANA_COMMITMENT", "confirmed")
	cfg.ExplorerURLTemplate = getEnvOrDefault("EXPLORER_URL_TEMPLATE",
		"https://explorer.solana.com/tx/{signature}?cluster="+cfg.SolanaNetwork)

	confirmPoll, err := parseDuration("CONFIRM_POLL_INTERVAL", "500ms")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmPollInterval = confirmPoll
	}

	// Wallet provider configuration
	cfg.WalletKeypairPath = os.Getenv("WALLET_KEYPAIR_PATH")
	cfg.WalletProviderIdentity = getEnvOrDefault("WALLET_PROVIDER_IDENTITY", "solana-keypair")

	autoApprove, err := parseBool("WALLET_AUTO_APPROVE", false)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.WalletAutoApprove = autoApprove
	}

	// Session configuration
	ttl, err := parseDuration("NOTIFICATION_TTL", "30s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.NotificationTTL = ttl
	}

	// Return all parse errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.SolanaRPCURL) == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}
	// A comma-separated list picks one endpoint per process.
	for _, u := range strings.Split(c.SolanaRPCURL, ",") {
		u = strings.TrimSpace(u)
		if u != "" && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			errs = append(errs, fmt.Errorf("SolanaRPCURL must be an http(s) URL: %q", u))
		}
	}

	for _, o := range c.CORSAllowedOrigins {
		if o == "*" || (!strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://")) {
			errs = append(errs, fmt.Errorf("CORSAllowedOrigins entries must be http(s) origins: %q", o))
		}
	}

	if c.SolanaNetwork == "" {
		errs = append(errs, fmt.Errorf("SolanaNetwork is required"))
	}

	if !contains(validCommitments, c.SolanaCommitment) {
		errs = append(errs, fmt.Errorf("SolanaCommitment must be one of %v", validCommitments))
	}

	if c.ExplorerURLTemplate != "" && !strings.Contains(c.ExplorerURLTemplate, "{signature}") {
		errs = append(errs, fmt.Errorf("ExplorerURLTemplate must contain {signature}"))
	}

	if c.WalletProviderIdentity == "" {
		errs = append(errs, fmt.Errorf("WalletProviderIdentity is required"))
	}

	if c.NotificationTTL < time.Second {
		errs = append(errs, fmt.Errorf("NotificationTTL must be at least 1 second"))
	}

	if c.ConfirmPollInterval < 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("ConfirmPollInterval must be at least 100ms"))
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

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseBool parses a boolean from an environment variable or uses a default.
func parseBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return result, nil
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(value string) []string {
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
