// Package memory provides an in-memory implementation of storage.EmbeddingStore
// for testing and ephemeral runs. Records are lost when the process exits.
//
// The store enforces the same invariants as the durable backend: unique
// fingerprints and a fixed embedding dimensionality per store instance.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/visto-dev/visto/pkg/storage"
)

// Store is an in-memory EmbeddingStore.
type Store struct {
	mu      sync.RWMutex
	records []storage.EmbeddingRecord
	byHash  map[string]struct{}
	nextID  int64
	dim     int // 0 until the first insert fixes the dimensionality
	closed  bool
}

// Ensure Store implements storage.EmbeddingStore at compile time.
var _ storage.EmbeddingStore = (*Store)(nil)

// New creates a new empty in-memory store.
func New() *Store {
	return &Store{
		byHash: make(map[string]struct{}),
		nextID: 1,
	}
}

// EnsureSchema is a no-op for the in-memory store; the structures are
// created by New and recreated by Reset.
func (s *Store) EnsureSchema(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrNotConnected
	}
	return nil
}

// Exists reports whether a record with the given fingerprint is present.
func (s *Store) Exists(_ context.Context, fileHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, storage.ErrNotConnected
	}

	_, ok := s.byHash[fileHash]
	return ok, nil
}

// Insert persists a new record. Returns (false, nil) for a duplicate
// fingerprint. The first insert fixes the store's dimensionality; later
// inserts with a different embedding length are rejected.
func (s *Store) Insert(_ context.Context, p storage.InsertParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, storage.ErrNotConnected
	}

	if _, ok := s.byHash[p.FileHash]; ok {
		return false, nil
	}

	if s.dim == 0 {
		s.dim = len(p.Embedding)
	} else if len(p.Embedding) != s.dim {
		return false, fmt.Errorf("inserting %s: got dimension %d, store has %d: %w",
			p.FileName, len(p.Embedding), s.dim, storage.ErrDimensionMismatch)
	}

	// Copy the embedding so the caller cannot mutate stored state.
	emb := make([]float32, len(p.Embedding))
	copy(emb, p.Embedding)

	s.records = append(s.records, storage.EmbeddingRecord{
		ID:        s.nextID,
		CreatedAt: time.Now(),
		FilePath:  p.FilePath,
		FileName:  p.FileName,
		FileHash:  p.FileHash,
		Embedding: emb,
	})
	s.byHash[p.FileHash] = struct{}{}
	s.nextID++

	return true, nil
}

// AllRecords returns every stored record in insertion order.
func (s *Store) AllRecords(_ context.Context) ([]storage.EmbeddingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrNotConnected
	}

	out := make([]storage.EmbeddingRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Reset destroys all records. The dimensionality resets with them, so a
// fresh corpus may use a different encoder.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrNotConnected
	}

	s.records = nil
	s.byHash = make(map[string]struct{})
	s.nextID = 1
	s.dim = 0
	return nil
}

// HealthCheck reports whether the store is usable.
func (s *Store) HealthCheck(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrNotConnected
	}
	return nil
}

// Close marks the store as disconnected. Further operations fail with
// storage.ErrNotConnected.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
