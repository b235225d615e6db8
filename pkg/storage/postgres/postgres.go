// Package postgres provides a PostgreSQL implementation of storage.EmbeddingStore.
// It uses pgx/v5 for connection pooling and a REAL[] column for embeddings.
// Deduplication rests on the UNIQUE constraint over file_hash; the Exists
// fast path only avoids wasted encoder calls.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/visto-dev/visto/pkg/storage"
)

//go:embed schema.sql
var schemaSQL string

// Store is a PostgreSQL-backed EmbeddingStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.EmbeddingStore at compile time.
var _ storage.EmbeddingStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If EnsureSchemaOnStart is true, the schema is created automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.EnsureSchemaOnStart {
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensuring schema: %w", err)
		}
	}

	return s, nil
}

// EnsureSchema creates the image_embeddings table if it does not exist.
// Idempotent and safe on every startup; existing data is never touched.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.pool == nil {
		return storage.ErrNotConnected
	}

	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("creating image_embeddings table: %w", err)
	}
	return nil
}

// Exists reports whether a record with the given fingerprint is present.
func (s *Store) Exists(ctx context.Context, fileHash string) (bool, error) {
	if s.pool == nil {
		return false, storage.ErrNotConnected
	}

	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM image_embeddings WHERE file_hash = $1)",
		fileHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking fingerprint: %w", err)
	}

	return exists, nil
}

// Insert persists a new embedding record. The uniqueness constraint over
// file_hash is the source of truth: a duplicate fingerprint results in
// (false, nil), never a partial write, even under concurrent writers.
func (s *Store) Insert(ctx context.Context, p storage.InsertParams) (bool, error) {
	if s.pool == nil {
		return false, storage.ErrNotConnected
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO image_embeddings (file_path, file_name, file_hash, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (file_hash) DO NOTHING
	`, p.FilePath, p.FileName, p.FileHash, p.Embedding)
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("inserting embedding: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// AllRecords returns every stored record in insertion order. The search
// engine scans the full result set; pagination is deliberately absent
// (bounded-corpus assumption).
func (s *Store) AllRecords(ctx context.Context) ([]storage.EmbeddingRecord, error) {
	if s.pool == nil {
		return nil, storage.ErrNotConnected
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, created_at, file_path, file_name, file_hash, embedding
		FROM image_embeddings
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var records []storage.EmbeddingRecord
	for rows.Next() {
		var r storage.EmbeddingRecord
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.FilePath, &r.FileName, &r.FileHash, &r.Embedding); err != nil {
			return nil, fmt.Errorf("scanning embedding row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading embedding rows: %w", err)
	}

	return records, nil
}

// Reset drops the image_embeddings table and everything in it. Irreversible.
func (s *Store) Reset(ctx context.Context) error {
	if s.pool == nil {
		return storage.ErrNotConnected
	}

	if _, err := s.pool.Exec(ctx, "DROP TABLE IF EXISTS image_embeddings"); err != nil {
		return fmt.Errorf("dropping image_embeddings table: %w", err)
	}
	return nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.pool == nil {
		return storage.ErrNotConnected
	}
	return s.pool.Ping(ctx)
}

// Close releases the connection pool. Subsequent operations fail with
// storage.ErrNotConnected.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
// ON CONFLICT already swallows duplicates on the insert path; this catches
// the violation if it surfaces through any other route.
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
