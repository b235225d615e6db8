// Package storage defines the embedding record model, the EmbeddingStore
// interface, and shared sentinel errors.
//
// Implementations live in subpackages: postgres (durable, pgx-backed) and
// memory (ephemeral, for tests and throwaway runs).
package storage
