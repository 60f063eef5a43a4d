// Copyright 2025 Certen Protocol

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleContractYAML = `
contract_key: "aabbccddeeff00112233445566778899aabbccddeeff00112233445566778899"
drive_key: "00112233445566778899aabbccddeeff00112233445566778899aabbccddee"
unsuccessful_approval_delay: ${APPROVAL_DELAY:-750ms}
cohort:
  - executor_key: "1111111111111111111111111111111111111111111111111111111111111111"
    poex_public_key: "2222222222222222222222222222222222222222222222222222222222222222"
  - executor_key: "3333333333333333333333333333333333333333333333333333333333333333"
    poex_public_key: "4444444444444444444444444444444444444444444444444444444444444444"
threshold:
  numerator: 1
  denominator: 2
  min_executors: 1
`

func writeTempContractConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "contract.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write temp contract config: %v", err)
	}
	return path
}

func TestLoadContractConfig_ParsesCohortAndThreshold(t *testing.T) {
	os.Unsetenv("APPROVAL_DELAY")
	path := writeTempContractConfig(t, sampleContractYAML)

	cfg, err := LoadContractConfig(path)
	if err != nil {
		t.Fatalf("LoadContractConfig returned error: %v", err)
	}

	if len(cfg.Cohort) != 2 {
		t.Fatalf("expected 2 cohort members, got %d", len(cfg.Cohort))
	}
	if cfg.Threshold.Numerator != 1 || cfg.Threshold.Denominator != 2 {
		t.Errorf("expected threshold 1/2, got %d/%d", cfg.Threshold.Numerator, cfg.Threshold.Denominator)
	}
	if cfg.UnsuccessfulApprovalDelay.Duration() != 750*time.Millisecond {
		t.Errorf("expected default-substituted approval delay of 750ms, got %v", cfg.UnsuccessfulApprovalDelay.Duration())
	}
}

func TestLoadContractConfig_EnvVarSubstitution(t *testing.T) {
	os.Setenv("APPROVAL_DELAY", "2s")
	t.Cleanup(func() { os.Unsetenv("APPROVAL_DELAY") })

	path := writeTempContractConfig(t, sampleContractYAML)
	cfg, err := LoadContractConfig(path)
	if err != nil {
		t.Fatalf("LoadContractConfig returned error: %v", err)
	}

	if cfg.UnsuccessfulApprovalDelay.Duration() != 2*time.Second {
		t.Errorf("expected env-substituted approval delay of 2s, got %v", cfg.UnsuccessfulApprovalDelay.Duration())
	}
}

func TestContractConfig_ValidateRejectsMissingFields(t *testing.T) {
	cfg := &ContractConfig{}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate() to reject an empty ContractConfig")
	}

	cfg.ContractKeyHex = "aa"
	cfg.DriveKeyHex = "bb"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate() to reject a cohort-less config")
	}

	cfg.Cohort = []CohortMember{{ExecutorKeyHex: "cc", PoexPublicKeyHex: "dd"}}
	cfg.Threshold = ThresholdSettings{Numerator: 1, Denominator: 1, MinExecutors: 2}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate() to reject min_executors exceeding cohort size")
	}

	cfg.Threshold.MinExecutors = 1
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected a fully populated config to validate, got: %v", err)
	}
}

func TestContractConfig_ApplyDefaults(t *testing.T) {
	path := writeTempContractConfig(t, `
contract_key: "aa"
drive_key: "bb"
cohort:
  - executor_key: "cc"
    poex_public_key: "dd"
`)
	cfg, err := LoadContractConfig(path)
	if err != nil {
		t.Fatalf("LoadContractConfig returned error: %v", err)
	}

	if cfg.Threshold.Denominator != 3 || cfg.Threshold.Numerator != 2 {
		t.Errorf("expected default threshold 2/3, got %d/%d", cfg.Threshold.Numerator, cfg.Threshold.Denominator)
	}
	if cfg.UnsuccessfulApprovalDelay.Duration() != 500*time.Millisecond {
		t.Errorf("expected default approval delay of 500ms, got %v", cfg.UnsuccessfulApprovalDelay.Duration())
	}
}
