package storage

import "errors"

// Sentinel errors for store operations.
var (
	// ErrNotConnected is returned when an operation is attempted after the
	// store has been closed or before a connection was established.
	ErrNotConnected = errors.New("store not connected")

	// ErrDimensionMismatch is returned when an embedding's length does not
	// match the dimensionality already established for the store. A stored
	// record tripping this indicates corruption and is fatal for the query.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
