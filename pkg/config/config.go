// Copyright 2025 Certen Protocol

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ExecutorConfig holds the process-wide configuration for a contract-executor
// instance: the executor's own identity, the addresses of its collaborators,
// and the cohort-independent defaults a BatchExecutionTask.Config is built
// from (the recognized ExecutorConfig options). Per-contract overrides
// live in ContractConfig.
type ExecutorConfig struct {
	// Identity
	ExecutorKeyPath string // path to the ed25519 signing key (hex-encoded 64-byte private key)
	PoexKeyPath     string // path to the Bandersnatch (poex) secret scalar
	DataDir         string

	// Server addresses
	ListenAddr  string
	MetricsAddr string
	HealthAddr  string

	// Collaborator endpoints
	ChainClientAddr string // chain RPC endpoint; required by Validate, not read by cmd/contract-executor (it uses mocks.ChainClient)
	MessengerAddr   string // gossip transport listen address
	PeerAddrs       []string

	// VM pool sizing (pkg/vmpool)
	VMPoolSize int

	// Optional durable storage journal (pkg/storagejournal)
	PersistJournal    bool
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Recognized ExecutorConfig options
	SuccessfulExecutionDelay        time.Duration
	UnsuccessfulExecutionDelay      time.Duration
	ShareOpinionTimeout             time.Duration
	ExecutionPaymentToGasMultiplier uint64
	DownloadPaymentToGasMultiplier  uint64
	MaxInternetConnections          int
	NetworkIdentifier               string

	// Threshold settings in opinion.ThresholdConfig shape. Not read by
	// cmd/contract-executor: tasks use ContractConfig.Threshold, whose
	// defaults come from ContractConfig.applyDefaults.
	ThresholdNumerator   uint64
	ThresholdDenominator uint64
	ThresholdMinExecutors int

	LogLevel string
}

// Load reads ExecutorConfig from environment variables. Required fields have
// no defaults and must be explicitly set; call Validate() after Load() to
// enforce that.
func Load() (*ExecutorConfig, error) {
	cfg := &ExecutorConfig{
		ExecutorKeyPath: getEnv("EXECUTOR_KEY_PATH", ""),
		PoexKeyPath:     getEnv("POEX_KEY_PATH", ""),
		DataDir:         getEnv("DATA_DIR", "./data"),

		ListenAddr:  getEnv("LISTEN_ADDR", "0.0.0.0:7700"),
		MetricsAddr: getEnv("METRICS_ADDR", "0.0.0.0:9090"),
		HealthAddr:  getEnv("HEALTH_ADDR", "0.0.0.0:8081"),

		ChainClientAddr: getEnv("CHAIN_CLIENT_ADDR", ""),
		MessengerAddr:   getEnv("MESSENGER_ADDR", "0.0.0.0:7701"),
		PeerAddrs:       parseList(getEnv("PEER_ADDRS", "")),

		VMPoolSize: getEnvInt("VM_POOL_SIZE", 8),

		PersistJournal:    getEnvBool("PERSIST_JOURNAL", false),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),

		SuccessfulExecutionDelay:        getEnvDuration("SUCCESSFUL_EXECUTION_DELAY", 500*time.Millisecond),
		UnsuccessfulExecutionDelay:      getEnvDuration("UNSUCCESSFUL_EXECUTION_DELAY", 500*time.Millisecond),
		ShareOpinionTimeout:             getEnvDuration("SHARE_OPINION_TIMEOUT", 2*time.Second),
		ExecutionPaymentToGasMultiplier: uint64(getEnvInt64("EXECUTION_PAYMENT_TO_GAS_MULTIPLIER", 1)),
		DownloadPaymentToGasMultiplier:  uint64(getEnvInt64("DOWNLOAD_PAYMENT_TO_GAS_MULTIPLIER", 1)),
		MaxInternetConnections:          getEnvInt("MAX_INTERNET_CONNECTIONS", 16),
		NetworkIdentifier:               getEnv("NETWORK_IDENTIFIER", "devnet"),

		ThresholdNumerator:    uint64(getEnvInt64("THRESHOLD_NUMERATOR", 2)),
		ThresholdDenominator:  uint64(getEnvInt64("THRESHOLD_DENOMINATOR", 3)),
		ThresholdMinExecutors: getEnvInt("THRESHOLD_MIN_EXECUTORS", 1),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Validate enforces the fields a production executor cannot start without.
func (c *ExecutorConfig) Validate() error {
	var errs []string

	if c.ExecutorKeyPath == "" {
		errs = append(errs, "EXECUTOR_KEY_PATH is required but not set")
	}
	if c.PoexKeyPath == "" {
		errs = append(errs, "POEX_KEY_PATH is required but not set")
	}
	if c.ChainClientAddr == "" {
		errs = append(errs, "CHAIN_CLIENT_ADDR is required but not set")
	}
	if c.PersistJournal && c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required when PERSIST_JOURNAL is true")
	}
	if c.PersistJournal && strings.Contains(c.DatabaseURL, "sslmode=disable") {
		errs = append(errs, "DATABASE_URL must use sslmode=require for production security")
	}
	if c.ThresholdDenominator == 0 {
		errs = append(errs, "THRESHOLD_DENOMINATOR must be non-zero")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidateForDevelopment performs relaxed validation suitable for a single
// local executor exercising the mocks in pkg/executor/mocks.
func (c *ExecutorConfig) ValidateForDevelopment() error {
	if c.ThresholdDenominator == 0 {
		return fmt.Errorf("development configuration validation failed: THRESHOLD_DENOMINATOR must be non-zero")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseList splits a comma-separated environment value, trimming whitespace
// and dropping empty entries.
func parseList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
