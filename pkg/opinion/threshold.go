// Copyright 2025 Certen Protocol
//
// Threshold accounting, grounded on pkg/attestation/strategy's
// ThresholdConfig: opinions are counted toward the same ceil(2N/3) quorum
// shape already used there for attestation weights.

package opinion

// ThresholdConfig configures the fraction of a cohort whose matching
// opinions are required before a batch's outcome is accepted.
type ThresholdConfig struct {
	Numerator     uint64
	Denominator   uint64
	MinExecutors  int
}

// DefaultThresholdConfig returns the ceil(2N/3) quorum used by default.
func DefaultThresholdConfig() *ThresholdConfig {
	return &ThresholdConfig{
		Numerator:    2,
		Denominator:  3,
		MinExecutors: 1,
	}
}

// RequiredCount returns the number of matching opinions required out of a
// cohort of the given size: ceil(totalExecutors*Numerator/Denominator),
// ceil(2N/3) for the default 2/3 configuration.
func (c *ThresholdConfig) RequiredCount(totalExecutors int) int {
	num := totalExecutors * int(c.Numerator)
	den := int(c.Denominator)
	required := (num + den - 1) / den
	if required < c.MinExecutors {
		return c.MinExecutors
	}
	if required > totalExecutors {
		return totalExecutors
	}
	return required
}

// IsThresholdMet reports whether matchingCount matching opinions out of
// totalExecutors satisfies the configured quorum.
func (c *ThresholdConfig) IsThresholdMet(matchingCount, totalExecutors int) bool {
	return matchingCount >= c.RequiredCount(totalExecutors)
}
