// Package ingest walks image directories and loads their embeddings into
// the store, deduplicating by content fingerprint.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/visto-dev/visto/pkg/encoder"
	"github.com/visto-dev/visto/pkg/fingerprint"
	"github.com/visto-dev/visto/pkg/observability"
	"github.com/visto-dev/visto/pkg/storage"
)

// imageExtensions lists the file extensions treated as images during a walk.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Stats summarizes an ingestion run.
type Stats struct {
	Scanned    int
	Inserted   int
	Duplicates int
	Failed     int
}

// Ingestor loads images from disk into an embedding store.
type Ingestor struct {
	store   storage.EmbeddingStore
	encoder encoder.ImageEncoder
	logger  *slog.Logger
}

// New creates an Ingestor. A nil logger falls back to slog.Default.
func New(store storage.EmbeddingStore, enc encoder.ImageEncoder, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{store: store, encoder: enc, logger: logger}
}

// Run walks dir recursively and ingests every image file found. A failure
// on one file is logged and counted, not fatal: the walk continues so one
// corrupt image cannot abort a large batch. Context cancellation stops the
// walk and is the only error Run itself returns besides an unreadable root.
func (g *Ingestor) Run(ctx context.Context, dir string) (Stats, error) {
	var stats Stats

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			// An unreadable entry gets the same treatment as a corrupt
			// image: log, count, move on.
			g.logger.Warn("skipping unreadable path", "path", path, "error", err)
			stats.Failed++
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if !imageExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		stats.Scanned++
		switch outcome := g.ingestFile(ctx, path); outcome {
		case outcomeInserted:
			stats.Inserted++
		case outcomeDuplicate:
			stats.Duplicates++
		case outcomeFailed:
			stats.Failed++
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("walking %s: %w", dir, err)
	}

	g.updateCorpusGauge(ctx)

	g.logger.Info("ingestion complete",
		"dir", dir,
		"scanned", stats.Scanned,
		"inserted", stats.Inserted,
		"duplicates", stats.Duplicates,
		"failed", stats.Failed)

	return stats, nil
}

type outcome int

const (
	outcomeInserted outcome = iota
	outcomeDuplicate
	outcomeFailed
)

func (g *Ingestor) ingestFile(ctx context.Context, path string) outcome {
	hash, err := fingerprint.File(path)
	if err != nil {
		g.logger.Warn("skipping file: fingerprint failed", "path", path, "error", err)
		observability.IngestFilesTotal.WithLabelValues("failed").Inc()
		return outcomeFailed
	}

	// Check before encoding: the fingerprint is cheap, the encoder is not.
	exists, err := g.store.Exists(ctx, hash)
	if err != nil {
		g.logger.Warn("skipping file: existence check failed", "path", path, "error", err)
		observability.IngestFilesTotal.WithLabelValues("failed").Inc()
		return outcomeFailed
	}
	if exists {
		g.logger.Debug("skipping duplicate", "path", path, "hash", hash)
		observability.IngestFilesTotal.WithLabelValues("duplicate").Inc()
		return outcomeDuplicate
	}

	embedding, err := g.encoder.EncodeImage(ctx, path)
	if err != nil {
		g.logger.Warn("skipping file: encoding failed", "path", path, "error", err)
		observability.IngestFilesTotal.WithLabelValues("failed").Inc()
		return outcomeFailed
	}

	inserted, err := g.store.Insert(ctx, storage.InsertParams{
		FilePath:  path,
		FileName:  filepath.Base(path),
		FileHash:  hash,
		Embedding: embedding,
	})
	if err != nil {
		g.logger.Warn("skipping file: insert failed", "path", path, "error", err)
		observability.IngestFilesTotal.WithLabelValues("failed").Inc()
		return outcomeFailed
	}
	if !inserted {
		// Another writer got there between Exists and Insert.
		observability.IngestFilesTotal.WithLabelValues("duplicate").Inc()
		return outcomeDuplicate
	}

	g.logger.Debug("ingested", "path", path, "hash", hash, "dimensions", len(embedding))
	observability.IngestFilesTotal.WithLabelValues("inserted").Inc()
	return outcomeInserted
}

func (g *Ingestor) updateCorpusGauge(ctx context.Context) {
	records, err := g.store.AllRecords(ctx)
	if err != nil {
		return
	}
	observability.CorpusRecords.Set(float64(len(records)))
}
