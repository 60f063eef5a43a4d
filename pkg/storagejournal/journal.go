// Copyright 2025 Certen Protocol
//
// Durable journal of applied StorageState transitions per drive. Not
// required for correctness — an executor can always re-synchronize from
// the chain's published drive state — but recording
// every applied transition lets a restarted executor skip straight to its
// last-known-good state instead of re-downloading it, the same role
// pkg/database/repository_batch.go's batch table plays for anchor batches.

package storagejournal

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/certen/contract-executor/pkg/calltypes"
)

// Client wraps a connection pool to the journal's backing Postgres
// database, mirroring pkg/database/client.go's pooling/health-check shape.
type Client struct {
	db     *sql.DB
	logger *log.Logger
}

// Config configures the connection pool. Matches the pool-sizing fields
// config.ExecutorConfig already loads from the environment.
type Config struct {
	DatabaseURL       string
	MaxOpenConns      int
	MaxIdleConns      int
	ConnMaxLifetime   time.Duration
	Logger            *log.Logger
}

// NewClient opens and pings a connection pool, then ensures the journal
// table exists.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("storagejournal: DatabaseURL is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[StorageJournal] ", log.LstdFlags)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("storagejournal: open: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storagejournal: ping: %w", err)
	}

	client := &Client{db: db, logger: logger}
	if err := client.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Printf("connected (max_open=%d, max_idle=%d)", cfg.MaxOpenConns, cfg.MaxIdleConns)
	return client, nil
}

func (c *Client) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS drive_storage_states (
	drive_key           BYTEA PRIMARY KEY,
	batch_index         BIGINT NOT NULL,
	storage_hash        BYTEA NOT NULL,
	used_drive_size     BIGINT NOT NULL,
	meta_files_size     BIGINT NOT NULL,
	file_structure_size BIGINT NOT NULL,
	recorded_at         TIMESTAMPTZ NOT NULL
)`
	if _, err := c.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("storagejournal: ensure schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// Record upserts the drive's last-applied StorageState, keyed by drive and
// overwritten on every subsequent call — the journal only ever needs the
// most recent transition, never the full history.
func (c *Client) Record(ctx context.Context, drive calltypes.DriveKey, batchIndex uint64, state calltypes.StorageState) error {
	const query = `
INSERT INTO drive_storage_states (
	drive_key, batch_index, storage_hash, used_drive_size, meta_files_size, file_structure_size, recorded_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (drive_key) DO UPDATE SET
	batch_index = EXCLUDED.batch_index,
	storage_hash = EXCLUDED.storage_hash,
	used_drive_size = EXCLUDED.used_drive_size,
	meta_files_size = EXCLUDED.meta_files_size,
	file_structure_size = EXCLUDED.file_structure_size,
	recorded_at = EXCLUDED.recorded_at`

	_, err := c.db.ExecContext(ctx, query,
		drive[:], batchIndex, state.StorageHash[:],
		state.UsedDriveSize, state.MetaFilesSize, state.FileStructureSize, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("storagejournal: record: %w", err)
	}
	return nil
}

// Entry is a drive's last-recorded journal row.
type Entry struct {
	BatchIndex uint64
	State      calltypes.StorageState
	RecordedAt time.Time
}

// Lookup returns the last-recorded StorageState for a drive, or ErrNotFound
// if the drive has never had one recorded.
func (c *Client) Lookup(ctx context.Context, drive calltypes.DriveKey) (*Entry, error) {
	const query = `
SELECT batch_index, storage_hash, used_drive_size, meta_files_size, file_structure_size, recorded_at
FROM drive_storage_states WHERE drive_key = $1`

	var (
		entry      Entry
		storageHash []byte
	)
	err := c.db.QueryRowContext(ctx, query, drive[:]).Scan(
		&entry.BatchIndex, &storageHash,
		&entry.State.UsedDriveSize, &entry.State.MetaFilesSize, &entry.State.FileStructureSize,
		&entry.RecordedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storagejournal: lookup: %w", err)
	}
	copy(entry.State.StorageHash[:], storageHash)
	return &entry, nil
}
