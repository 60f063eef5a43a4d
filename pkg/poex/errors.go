// Copyright 2025 Certen Protocol

package poex

import "errors"

var (
	// ErrEmptyHistory marks a PopFromProof call with nothing left to pop.
	ErrEmptyHistory = errors.New("poex: no calls to pop")
	// ErrMissingVerificationInfo marks a VerifyProof call that needs a
	// batch's verification info the accumulator never received.
	ErrMissingVerificationInfo = errors.New("poex: missing verification info for batch range")
)
