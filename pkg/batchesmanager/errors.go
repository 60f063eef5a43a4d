// Copyright 2025 Certen Protocol

package batchesmanager

import "errors"

var (
	// ErrNoBatchReady is returned by NextBatch when the queue is empty.
	ErrNoBatchReady = errors.New("batchesmanager: no batch ready")
	// ErrNonMonotonicBlock is returned by AddBlock when h does not exceed
	// the highest height already observed.
	ErrNonMonotonicBlock = errors.New("batchesmanager: block heights must arrive monotonically")
	// ErrNilEvaluator is returned by New when no automatic evaluator is configured.
	ErrNilEvaluator = errors.New("batchesmanager: automatic evaluator must not be nil")
)
