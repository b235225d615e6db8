package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/visto-dev/visto/pkg/storage"
)

func init() {
	// Configure testcontainers to use podman.
	// Detect the podman socket from `podman machine inspect`.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			sock := strings.TrimSpace(string(out))
			if sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	// Ryuk needs privileged mode with podman.
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

// setupTestDB starts a PostgreSQL container and returns a connected Store.
// Tests are skipped if a container runtime is not available.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}

	if _, err := exec.LookPath("podman"); err != nil {
		t.Skip("podman not found, skipping integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("visto_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container (is podman running?): %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	store, err := New(ctx, Config{
		DSN:                 connStr,
		MaxConns:            5,
		MinConns:            1,
		EnsureSchemaOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func makeTestParams(hash string) storage.InsertParams {
	return storage.InsertParams{
		FilePath:  "/images/processed/" + hash + ".jpg",
		FileName:  hash + ".jpg",
		FileHash:  hash,
		Embedding: []float32{0.1, 0.2, 0.3, 0.4},
	}
}

func TestPostgres_InsertAndExists(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	hash := fmt.Sprintf("hash_insert_%d", time.Now().UnixNano())

	exists, err := store.Exists(ctx, hash)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("fingerprint should not exist before insert")
	}

	inserted, err := store.Insert(ctx, makeTestParams(hash))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if !inserted {
		t.Error("expected inserted=true for a new fingerprint")
	}

	exists, err = store.Exists(ctx, hash)
	if err != nil {
		t.Fatalf("Exists after insert failed: %v", err)
	}
	if !exists {
		t.Error("fingerprint should exist after insert")
	}
}

func TestPostgres_DedupIdempotence(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	hash := fmt.Sprintf("hash_dup_%d", time.Now().UnixNano())

	inserted, err := store.Insert(ctx, makeTestParams(hash))
	if err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}
	if !inserted {
		t.Fatal("first insert should succeed")
	}

	// Same fingerprint again: no-op, not an error.
	inserted, err = store.Insert(ctx, makeTestParams(hash))
	if err != nil {
		t.Fatalf("duplicate Insert returned error: %v", err)
	}
	if inserted {
		t.Error("duplicate insert should report inserted=false")
	}

	records, err := store.AllRecords(ctx)
	if err != nil {
		t.Fatalf("AllRecords failed: %v", err)
	}
	count := 0
	for _, r := range records {
		if r.FileHash == hash {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly 1 record for fingerprint, found %d", count)
	}
}

func TestPostgres_AllRecordsRoundTrip(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	ts := time.Now().UnixNano()
	hashes := []string{
		fmt.Sprintf("hash_all_a_%d", ts),
		fmt.Sprintf("hash_all_b_%d", ts),
		fmt.Sprintf("hash_all_c_%d", ts),
	}
	for _, h := range hashes {
		if _, err := store.Insert(ctx, makeTestParams(h)); err != nil {
			t.Fatalf("Insert(%s) failed: %v", h, err)
		}
	}

	records, err := store.AllRecords(ctx)
	if err != nil {
		t.Fatalf("AllRecords failed: %v", err)
	}

	// Records come back in insertion order with all fields intact.
	var got []storage.EmbeddingRecord
	for _, r := range records {
		for _, h := range hashes {
			if r.FileHash == h {
				got = append(got, r)
			}
		}
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	for i, r := range got {
		if r.FileHash != hashes[i] {
			t.Errorf("record %d out of insertion order: %q", i, r.FileHash)
		}
		if r.ID == 0 {
			t.Errorf("record %d missing assigned ID", i)
		}
		if r.CreatedAt.IsZero() {
			t.Errorf("record %d missing CreatedAt", i)
		}
		if len(r.Embedding) != 4 {
			t.Errorf("record %d embedding length = %d, want 4", i, len(r.Embedding))
		}
		if r.Embedding[0] != 0.1 {
			t.Errorf("record %d embedding[0] = %v, want 0.1", i, r.Embedding[0])
		}
	}
}

func TestPostgres_EnsureSchemaIdempotent(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	hash := fmt.Sprintf("hash_schema_%d", time.Now().UnixNano())
	if _, err := store.Insert(ctx, makeTestParams(hash)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Calling EnsureSchema again must not destroy existing data.
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("second EnsureSchema failed: %v", err)
	}

	exists, err := store.Exists(ctx, hash)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("EnsureSchema destroyed existing data")
	}
}

func TestPostgres_Reset(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	hash := fmt.Sprintf("hash_reset_%d", time.Now().UnixNano())
	if _, err := store.Insert(ctx, makeTestParams(hash)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	// Schema is gone; recreate and verify emptiness.
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema after Reset failed: %v", err)
	}

	records, err := store.AllRecords(ctx)
	if err != nil {
		t.Fatalf("AllRecords after Reset failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty store after Reset, got %d records", len(records))
	}

	exists, err := store.Exists(ctx, hash)
	if err != nil {
		t.Fatalf("Exists after Reset failed: %v", err)
	}
	if exists {
		t.Error("fingerprint should not exist after Reset")
	}
}

func TestPostgres_HealthCheck(t *testing.T) {
	store := setupTestDB(t)
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}

func TestPostgres_OperationsAfterClose(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := store.Exists(ctx, "any"); !errors.Is(err, storage.ErrNotConnected) {
		t.Errorf("Exists after Close: expected ErrNotConnected, got %v", err)
	}
	if _, err := store.Insert(ctx, makeTestParams("any")); !errors.Is(err, storage.ErrNotConnected) {
		t.Errorf("Insert after Close: expected ErrNotConnected, got %v", err)
	}
	if _, err := store.AllRecords(ctx); !errors.Is(err, storage.ErrNotConnected) {
		t.Errorf("AllRecords after Close: expected ErrNotConnected, got %v", err)
	}
	if err := store.HealthCheck(ctx); !errors.Is(err, storage.ErrNotConnected) {
		t.Errorf("HealthCheck after Close: expected ErrNotConnected, got %v", err)
	}
}
