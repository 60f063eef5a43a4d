// Copyright 2025 Certen Protocol

package calltypes

import "errors"

var (
	// ErrInvalidCallRequest marks a structurally invalid CallRequest.
	ErrInvalidCallRequest = errors.New("calltypes: invalid call request")
	// ErrShortBuffer marks a wire-decode that ran out of input bytes.
	ErrShortBuffer = errors.New("calltypes: short buffer")
	// ErrTrailingBytes marks a wire-decode that left undecoded input bytes.
	ErrTrailingBytes = errors.New("calltypes: trailing bytes after decode")
)
