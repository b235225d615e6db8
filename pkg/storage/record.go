package storage

import (
	"context"
	"time"
)

// EmbeddingRecord is the persisted unit: one embedding for one distinct
// file content. Records are immutable once written; the only mutations a
// store supports are Insert and Reset.
type EmbeddingRecord struct {
	// ID is the surrogate key, assigned by the store at insertion.
	ID int64

	// CreatedAt is the insertion timestamp.
	CreatedAt time.Time

	// FilePath and FileName record where the content came from.
	FilePath string
	FileName string

	// FileHash is the content fingerprint. Unique across all records;
	// the sole deduplication key.
	FileHash string

	// Embedding is the encoder output. Every record in a store instance
	// has the same length.
	Embedding []float32
}

// InsertParams carries the fields the caller supplies for a new record.
// ID and CreatedAt are assigned by the store.
type InsertParams struct {
	FilePath  string
	FileName  string
	FileHash  string
	Embedding []float32
}

// EmbeddingStore is the persistence contract for embedding records.
//
// Deduplication guarantee: for all files with identical content (same
// FileHash), at most one record is ever persisted, across any number of
// ingestion runs. Implementations exposed to concurrent writers must
// enforce this with a storage-layer uniqueness constraint; Exists is only
// a fast path to skip wasted embedding computation.
type EmbeddingStore interface {
	// EnsureSchema idempotently creates the underlying storage structure.
	// Safe to call on every startup; never destroys existing data.
	EnsureSchema(ctx context.Context) error

	// Exists reports whether a record with the given fingerprint is present.
	Exists(ctx context.Context, fileHash string) (bool, error)

	// Insert persists a new record. Returns (false, nil) when the
	// fingerprint already exists; a duplicate is not an error.
	Insert(ctx context.Context, p InsertParams) (bool, error)

	// AllRecords returns every stored record in insertion order.
	// The corpus is assumed to fit in memory.
	AllRecords(ctx context.Context) ([]EmbeddingRecord, error)

	// Reset destroys all records and the schema itself. Irreversible;
	// intended for teardown between ephemeral or test runs.
	Reset(ctx context.Context) error

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases the underlying connection. Further operations fail
	// with ErrNotConnected.
	Close() error
}
