// Package export writes search results to timestamped run directories:
// a JSONL ranking, a JSON snapshot of the query parameters, and a copy
// of the best-matching image.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/visto-dev/visto/pkg/search"
)

// timestampLayout names run directories like 20260825-143015.
const timestampLayout = "20060102-150405"

// rankedResult is one line of the JSONL ranking.
type rankedResult struct {
	Rank       int     `json:"rank"`
	Similarity float64 `json:"similarity"`
	FileName   string  `json:"file_name"`
	FilePath   string  `json:"file_path"`
}

// QueryInfo is the parameter snapshot written next to the ranking so a
// run directory is self-describing.
type QueryInfo struct {
	QueryImage string    `json:"query_image"`
	TopK       int       `json:"top_k"`
	Encoder    string    `json:"encoder,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Writer exports search results under a base directory.
type Writer struct {
	BaseDir string

	// now is swappable for tests.
	now func() time.Time
}

// NewWriter creates a Writer that places run directories under baseDir.
func NewWriter(baseDir string) *Writer {
	return &Writer{BaseDir: baseDir, now: time.Now}
}

// Save writes one search run into a fresh timestamped directory and
// returns its path. The directory receives <query>.jsonl with the ranked
// results, <query>.json with the query snapshot, and a copy of the
// best-matching image when results are non-empty, where <query> is the
// query image's name without extension.
func (w *Writer) Save(info QueryInfo, results []search.Result) (string, error) {
	ts := w.now()
	if info.Timestamp.IsZero() {
		info.Timestamp = ts
	}

	runDir := filepath.Join(w.BaseDir, ts.Format(timestampLayout))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(info.QueryImage), filepath.Ext(info.QueryImage))

	if err := w.writeSnapshot(filepath.Join(runDir, stem+".json"), info); err != nil {
		return "", err
	}
	if err := w.writeRanking(filepath.Join(runDir, stem+".jsonl"), results); err != nil {
		return "", err
	}

	if len(results) > 0 {
		best := results[0].Record
		dst := filepath.Join(runDir, stem+filepath.Ext(best.FilePath))
		if err := copyFile(best.FilePath, dst); err != nil {
			// The ranking is already on disk; a missing source image
			// should not void the run.
			return runDir, fmt.Errorf("copying best match: %w", err)
		}
	}

	return runDir, nil
}

func (w *Writer) writeSnapshot(path string, info QueryInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling query snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing query snapshot: %w", err)
	}
	return nil
}

func (w *Writer) writeRanking(path string, results []search.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating ranking file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i, r := range results {
		line := rankedResult{
			Rank:       i + 1,
			Similarity: r.Similarity,
			FileName:   r.Record.FileName,
			FilePath:   r.Record.FilePath,
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("writing ranking line %d: %w", i+1, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
