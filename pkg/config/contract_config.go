// Copyright 2025 Certen Protocol
//
// Contract Configuration Loader
//
// Layers a per-contract YAML overlay on top of ExecutorConfig: the cohort
// membership, drive/storage identity, and the one recognized
// ContractConfig option (unsuccessful_approval_delay, a duration string),
// plus the PoEx and
// threshold parameters a BatchExecutionTask.Config needs that are scoped to
// one contract rather than the whole executor process.

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// ContractConfig is the per-contract overlay loaded from a YAML file, one
// per contract a single executor process serves.
type ContractConfig struct {
	ContractKeyHex string `yaml:"contract_key"`
	DriveKeyHex    string `yaml:"drive_key"`

	// Cohort is the full set of executor public keys (hex-encoded ed25519),
	// self included, that must reach threshold on this contract's batches.
	Cohort []CohortMember `yaml:"cohort"`

	Threshold ThresholdSettings `yaml:"threshold"`

	// UnsuccessfulApprovalDelay is the recognized ContractConfig option for
	// how long a task waits after an unsuccessful-threshold is reached before
	// assembling the unsuccessful end-batch transaction. Opinions arriving
	// during the wait do not change the outcome.
	UnsuccessfulApprovalDelay Duration `yaml:"unsuccessful_approval_delay"`

	PersistJournal bool `yaml:"persist_journal"`
}

// CohortMember pairs a peer's ed25519 ExecutorKey (signs opinions) with its
// Bandersnatch PoEx public key (verifies proof-of-execution contributions) —
// the two are distinct keys over distinct curves.
type CohortMember struct {
	ExecutorKeyHex string `yaml:"executor_key"`
	PoexPublicKeyHex string `yaml:"poex_public_key"`
}

// ThresholdSettings mirrors opinion.ThresholdConfig for YAML loading.
type ThresholdSettings struct {
	Numerator    uint64 `yaml:"numerator"`
	Denominator  uint64 `yaml:"denominator"`
	MinExecutors int    `yaml:"min_executors"`
}

// Duration is a time.Duration that unmarshals from YAML duration strings
// ("500ms", "2s") instead of raw nanosecond integers.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// LoadContractConfig reads a contract overlay from a YAML file, expanding
// ${VAR_NAME} references against the process environment before parsing.
func LoadContractConfig(path string) (*ContractConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contract config %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(data))

	var cfg ContractConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse contract config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *ContractConfig) applyDefaults() {
	if c.Threshold.Denominator == 0 {
		c.Threshold = ThresholdSettings{Numerator: 2, Denominator: 3, MinExecutors: 1}
	}
	if c.UnsuccessfulApprovalDelay == 0 {
		c.UnsuccessfulApprovalDelay = Duration(500 * time.Millisecond)
	}
}

// Validate checks that the overlay names a contract, a drive, and a cohort
// large enough for its own threshold to ever be reachable.
func (c *ContractConfig) Validate() error {
	if c.ContractKeyHex == "" {
		return fmt.Errorf("contract_key is required")
	}
	if c.DriveKeyHex == "" {
		return fmt.Errorf("drive_key is required")
	}
	if len(c.Cohort) == 0 {
		return fmt.Errorf("cohort must list at least one executor")
	}
	if c.Threshold.Denominator == 0 {
		return fmt.Errorf("threshold.denominator must be non-zero")
	}
	if c.Threshold.MinExecutors > len(c.Cohort) {
		return fmt.Errorf("threshold.min_executors (%d) exceeds cohort size (%d)", c.Threshold.MinExecutors, len(c.Cohort))
	}
	for i, m := range c.Cohort {
		if m.ExecutorKeyHex == "" {
			return fmt.Errorf("cohort[%d]: executor_key is required", i)
		}
		if m.PoexPublicKeyHex == "" {
			return fmt.Errorf("cohort[%d]: poex_public_key is required", i)
		}
	}
	return nil
}
