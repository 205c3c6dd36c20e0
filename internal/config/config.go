// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all A2A server configuration.
type Config struct {
	// Server settings
	Port           string
	Env            string // "development", "staging", "production"
	LogLevel       string
	MaxConnections int

	// Rate limiting (per agent)
	RateLimit  int           // max requests per window
	RateWindow time.Duration // window length

	// Sessions
	AuthTimeout time.Duration // session token lifetime and idle disconnect

	// Feature flags
	X402Enabled       bool
	CoalitionsEnabled bool

	// x402 payments
	MinPayment     string        // minimum amount in minor units
	PaymentTimeout time.Duration // payment request lifetime

	// Blockchain settings
	RPCURL       string
	ChainID      int64
	USDCContract string

	// Audit store (optional, uses in-memory if not set)
	DatabaseURL string

	// Tracing (optional)
	OTLPEndpoint string
}

// Defaults. The chain defaults target Base Sepolia, matching the identity
// registry the agents are minted on.
const (
	DefaultPort           = "8090"
	DefaultEnv            = "development"
	DefaultLogLevel       = "info"
	DefaultMaxConnections = 1000
	DefaultRateLimit      = 100
	DefaultRateWindow     = time.Minute
	DefaultAuthTimeout    = 24 * time.Hour
	DefaultMinPayment     = "1000000000000000" // 0.001 in 18-decimal minor units
	DefaultPaymentTimeout = 5 * time.Minute
	DefaultRPCURL         = "https://sepolia.base.org"
	DefaultChainID        = 84532
	DefaultUSDCContract   = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", DefaultPort),
		Env:               getEnv("ENV", DefaultEnv),
		LogLevel:          getEnv("LOG_LEVEL", DefaultLogLevel),
		MaxConnections:    int(getEnvInt64("MAX_CONNECTIONS", DefaultMaxConnections)),
		RateLimit:         int(getEnvInt64("RATE_LIMIT", DefaultRateLimit)),
		RateWindow:        getEnvDuration("RATE_WINDOW", DefaultRateWindow),
		AuthTimeout:       getEnvDuration("AUTH_TIMEOUT", DefaultAuthTimeout),
		X402Enabled:       getEnvBool("X402_ENABLED", true),
		CoalitionsEnabled: getEnvBool("COALITIONS_ENABLED", true),
		MinPayment:        getEnv("MIN_PAYMENT", DefaultMinPayment),
		PaymentTimeout:    getEnvDuration("PAYMENT_TIMEOUT", DefaultPaymentTimeout),
		RPCURL:            getEnv("RPC_URL", DefaultRPCURL),
		ChainID:           getEnvInt64("CHAIN_ID", DefaultChainID),
		USDCContract:      getEnv("USDC_CONTRACT", DefaultUSDCContract),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.RateLimit <= 0 {
		return fmt.Errorf("RATE_LIMIT must be positive, got %d", c.RateLimit)
	}
	if c.RateWindow <= 0 {
		return fmt.Errorf("RATE_WINDOW must be positive, got %v", c.RateWindow)
	}
	if c.PaymentTimeout <= 0 {
		return fmt.Errorf("PAYMENT_TIMEOUT must be positive, got %v", c.PaymentTimeout)
	}
	if c.X402Enabled && c.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required when x402 is enabled")
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("MAX_CONNECTIONS must be positive, got %d", c.MaxConnections)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
