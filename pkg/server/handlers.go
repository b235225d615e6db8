package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/visto-dev/visto/pkg/storage"
)

// searchRequest is the JSON body for POST /v1/search. Exactly one of
// ImagePath or Embedding must be set.
type searchRequest struct {
	ImagePath string    `json:"image_path,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
	TopK      int       `json:"top_k,omitempty"`
}

// searchResponse is the JSON body returned by POST /v1/search.
type searchResponse struct {
	Results []rankedResult `json:"results"`
}

type rankedResult struct {
	Rank       int     `json:"rank"`
	Similarity float64 `json:"similarity"`
	FileName   string  `json:"file_name"`
	FilePath   string  `json:"file_path"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodySize)

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if (req.ImagePath == "") == (len(req.Embedding) == 0) {
		writeError(w, http.StatusBadRequest, "exactly one of image_path or embedding is required")
		return
	}

	query := req.Embedding
	if req.ImagePath != "" {
		vec, err := s.encoder.EncodeImage(r.Context(), req.ImagePath)
		if err != nil {
			s.logger.Warn("encoding query image failed", "path", req.ImagePath, "error", err)
			writeError(w, http.StatusUnprocessableEntity, "encoding query image: "+err.Error())
			return
		}
		query = vec
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.topK
	}

	results, err := s.engine.Search(r.Context(), query, topK)
	if err != nil {
		if errors.Is(err, storage.ErrDimensionMismatch) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	resp := searchResponse{Results: make([]rankedResult, 0, len(results))}
	for i, res := range results {
		resp.Results = append(resp.Results, rankedResult{
			Rank:       i + 1,
			Similarity: res.Similarity,
			FileName:   res.Record.FileName,
			FilePath:   res.Record.FilePath,
		})
	}

	slog.Debug("search served",
		"results", len(resp.Results),
		"top_k", topK,
		"request_id", requestIDFrom(r.Context()))

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.HealthCheck(r.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
