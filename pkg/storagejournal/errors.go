// Copyright 2025 Certen Protocol

package storagejournal

import "errors"

var (
	// ErrNotFound is returned when a drive has no recorded journal entry.
	ErrNotFound = errors.New("storagejournal: no entry for drive")
)
