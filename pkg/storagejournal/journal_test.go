// Copyright 2025 Certen Protocol
//
// Exercises the journal against a real Postgres instance when one is
// configured; skipped otherwise, matching pkg/database's test-database gate.

package storagejournal

import (
	"context"
	"os"
	"testing"

	"github.com/certen/contract-executor/pkg/calltypes"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	connStr := os.Getenv("CERTEN_TEST_DB")
	if connStr == "" {
		t.Skip("CERTEN_TEST_DB not set, skipping storagejournal integration test")
	}

	client, err := NewClient(context.Background(), Config{DatabaseURL: connStr})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestLookup_ReturnsErrNotFoundForUnknownDrive(t *testing.T) {
	client := testClient(t)

	var drive calltypes.DriveKey
	drive[0] = 0xAB

	_, err := client.Lookup(context.Background(), drive)
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordThenLookup_RoundTripsState(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	var drive calltypes.DriveKey
	drive[0] = 0xCD

	state := calltypes.StorageState{
		UsedDriveSize:     1024,
		MetaFilesSize:     64,
		FileStructureSize: 32,
	}
	state.StorageHash[0] = 0xEF

	if err := client.Record(ctx, drive, 7, state); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	entry, err := client.Lookup(ctx, drive)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if entry.BatchIndex != 7 {
		t.Errorf("expected batch index 7, got %d", entry.BatchIndex)
	}
	if !entry.State.Equal(state) {
		t.Errorf("expected recorded state to round-trip, got %+v want %+v", entry.State, state)
	}
}

func TestRecord_OverwritesPreviousEntry(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	var drive calltypes.DriveKey
	drive[0] = 0x11

	first := calltypes.StorageState{UsedDriveSize: 1}
	second := calltypes.StorageState{UsedDriveSize: 2}

	if err := client.Record(ctx, drive, 1, first); err != nil {
		t.Fatalf("first Record returned error: %v", err)
	}
	if err := client.Record(ctx, drive, 2, second); err != nil {
		t.Fatalf("second Record returned error: %v", err)
	}

	entry, err := client.Lookup(ctx, drive)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if entry.BatchIndex != 2 || !entry.State.Equal(second) {
		t.Errorf("expected latest entry to win, got batch=%d state=%+v", entry.BatchIndex, entry.State)
	}
}
