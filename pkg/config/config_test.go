// Copyright 2025 Certen Protocol

package config

import (
	"os"
	"testing"
	"time"
)

func clearExecutorEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"EXECUTOR_KEY_PATH", "POEX_KEY_PATH", "CHAIN_CLIENT_ADDR",
		"PERSIST_JOURNAL", "DATABASE_URL", "THRESHOLD_DENOMINATOR",
		"SHARE_OPINION_TIMEOUT", "PEER_ADDRS",
	}
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	clearExecutorEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.ShareOpinionTimeout != 2*time.Second {
		t.Errorf("expected default ShareOpinionTimeout of 2s, got %v", cfg.ShareOpinionTimeout)
	}
	if cfg.ThresholdNumerator != 2 || cfg.ThresholdDenominator != 3 {
		t.Errorf("expected default threshold 2/3, got %d/%d", cfg.ThresholdNumerator, cfg.ThresholdDenominator)
	}
	if cfg.VMPoolSize != 8 {
		t.Errorf("expected default VMPoolSize of 8, got %d", cfg.VMPoolSize)
	}
}

func TestLoad_ReadsOverrides(t *testing.T) {
	clearExecutorEnv(t)
	os.Setenv("SHARE_OPINION_TIMEOUT", "5s")
	os.Setenv("PEER_ADDRS", "peer-a:7701, peer-b:7701 ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.ShareOpinionTimeout != 5*time.Second {
		t.Errorf("expected overridden ShareOpinionTimeout of 5s, got %v", cfg.ShareOpinionTimeout)
	}
	want := []string{"peer-a:7701", "peer-b:7701"}
	if len(cfg.PeerAddrs) != len(want) {
		t.Fatalf("expected %d peer addrs, got %v", len(want), cfg.PeerAddrs)
	}
	for i := range want {
		if cfg.PeerAddrs[i] != want[i] {
			t.Errorf("PeerAddrs[%d] = %q, want %q", i, cfg.PeerAddrs[i], want[i])
		}
	}
}

func TestValidate_RequiresExecutorIdentityAndChainClient(t *testing.T) {
	clearExecutorEnv(t)
	cfg, _ := Load()

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate() to reject a config missing required fields")
	}

	cfg.ExecutorKeyPath = "/etc/certen/executor.key"
	cfg.PoexKeyPath = "/etc/certen/poex.key"
	cfg.ChainClientAddr = "tcp://127.0.0.1:26657"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected Validate() to accept a fully populated config, got: %v", err)
	}
}

func TestValidate_RejectsJournalWithoutDatabaseURL(t *testing.T) {
	clearExecutorEnv(t)
	cfg, _ := Load()
	cfg.ExecutorKeyPath = "k"
	cfg.PoexKeyPath = "k"
	cfg.ChainClientAddr = "a"
	cfg.PersistJournal = true

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate() to reject PersistJournal without a DatabaseURL")
	}

	cfg.DatabaseURL = "postgres://user@host/db?sslmode=disable"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate() to reject sslmode=disable")
	}
}

func TestValidateForDevelopment_OnlyRequiresThreshold(t *testing.T) {
	clearExecutorEnv(t)
	cfg, _ := Load()

	if err := cfg.ValidateForDevelopment(); err != nil {
		t.Fatalf("expected relaxed validation to pass with defaults, got: %v", err)
	}

	cfg.ThresholdDenominator = 0
	if err := cfg.ValidateForDevelopment(); err == nil {
		t.Fatalf("expected relaxed validation to still reject a zero threshold denominator")
	}
}
