// Copyright 2025 Certen Protocol

package calltypes

import (
	"bytes"
	"testing"
)

func mkKey(b byte) (k [KeySize]byte) {
	for i := range k {
		k[i] = b
	}
	return k
}

func TestCallRequestRoundTrip(t *testing.T) {
	cr := CallRequest{
		CallId:      mkKey(1),
		Kind:        CallKindManual,
		CallerKey:   mkKey(2),
		BlockHash:   mkKey(3),
		BlockHeight: 42,
		Parameters:  []byte("hello"),
		ServicePayers: []MosaicAmount{
			{MosaicId: 1, Amount: 100},
			{MosaicId: 2, Amount: 200},
		},
	}
	if err := cr.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	got, err := DecodeCallRequest(cr.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.CallId != cr.CallId || got.Kind != cr.Kind || got.BlockHeight != cr.BlockHeight {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, cr)
	}
	if !bytes.Equal(got.Parameters, cr.Parameters) {
		t.Fatalf("parameters mismatch: got %q want %q", got.Parameters, cr.Parameters)
	}
	if len(got.ServicePayers) != 2 || got.ServicePayers[1].Amount != 200 {
		t.Fatalf("service payers mismatch: %+v", got.ServicePayers)
	}
}

func TestCallRequestValidateRejectsMismatchedCallerKey(t *testing.T) {
	manual := CallRequest{CallId: mkKey(1), Kind: CallKindManual}
	if err := manual.Validate(); err == nil {
		t.Fatalf("expected error for manual call with zero caller key")
	}
	automatic := CallRequest{CallId: mkKey(1), Kind: CallKindAutomatic, CallerKey: mkKey(9)}
	if err := automatic.Validate(); err == nil {
		t.Fatalf("expected error for automatic call with non-zero caller key")
	}
}

func TestBatchRoundTrip(t *testing.T) {
	b := Batch{
		BatchIndex:           3,
		AutomaticCheckedUpTo: 10,
		CallRequests: []CallRequest{
			{CallId: mkKey(1), Kind: CallKindManual, CallerKey: mkKey(2), BlockHeight: 1},
			{CallId: mkKey(3), Kind: CallKindAutomatic, BlockHeight: 2},
		},
	}
	if b.IsEmpty() {
		t.Fatalf("batch with calls reported empty")
	}
	got, err := DecodeBatch(b.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.BatchIndex != b.BatchIndex || len(got.CallRequests) != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.CallRequests[1].Kind != CallKindAutomatic {
		t.Fatalf("expected second call automatic, got %s", got.CallRequests[1].Kind)
	}

	empty := Batch{BatchIndex: 1}
	if !empty.IsEmpty() {
		t.Fatalf("expected empty batch to report empty")
	}
}

func TestStorageStateRoundTrip(t *testing.T) {
	s := StorageState{
		StorageHash:       mkKey(7),
		UsedDriveSize:     1000,
		MetaFilesSize:     200,
		FileStructureSize: 50,
	}
	got, err := DecodeStorageState(s.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Equal(s) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, s)
	}
}

func TestDecodeShortBufferError(t *testing.T) {
	_, err := DecodeStorageState([]byte{1, 2, 3})
	if err == nil {
		t.Fatalf("expected short buffer error")
	}
}

func TestDecodeTrailingBytesError(t *testing.T) {
	s := StorageState{StorageHash: mkKey(1)}
	raw := append(s.Encode(), 0xFF)
	_, err := DecodeStorageState(raw)
	if err == nil {
		t.Fatalf("expected trailing bytes error")
	}
}
