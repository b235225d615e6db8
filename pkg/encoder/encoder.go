// Package encoder converts images into embedding vectors via an external
// vision model service.
package encoder

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/visto-dev/visto/pkg/observability"
)

// ImageEncoder produces embedding vectors for image files.
type ImageEncoder interface {
	// EncodeImage reads the image at path and returns its embedding vector.
	EncodeImage(ctx context.Context, path string) ([]float32, error)

	// Dimensions returns the dimensionality of the embedding vectors.
	// Returns 0 until the first successful EncodeImage call.
	Dimensions() int
}

// HTTPEncoder calls a vision embedding endpoint that accepts base64 image
// payloads and returns a single embedding vector per request.
type HTTPEncoder struct {
	URL        string
	Model      string
	APIKey     string
	HTTPClient *http.Client

	mu   sync.RWMutex
	dims int
}

// NewHTTPEncoder creates an encoder client for the given endpoint.
// apiKey may be empty for endpoints that do not require authentication.
func NewHTTPEncoder(url, model, apiKey string) *HTTPEncoder {
	return &HTTPEncoder{
		URL:        url,
		Model:      model,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// encodeRequest is the JSON request body for the embeddings endpoint.
type encodeRequest struct {
	Image  string `json:"image"`
	Format string `json:"format"`
	Model  string `json:"model,omitempty"`
}

// encodeResponse is the JSON response from the embeddings endpoint.
type encodeResponse struct {
	Embedding []float32 `json:"embedding"`
}

// EncodeImage reads the image at path, sends it to the embedding endpoint
// and returns the resulting vector.
func (c *HTTPEncoder) EncodeImage(ctx context.Context, path string) ([]float32, error) {
	start := time.Now()
	vec, err := c.encodeImage(ctx, path)

	status := "success"
	if err != nil {
		status = "error"
	}
	observability.EncodeDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	return vec, err
}

func (c *HTTPEncoder) encodeImage(ctx context.Context, path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	endpoint := c.URL
	if !strings.HasSuffix(endpoint, "/v1/embeddings") {
		endpoint = strings.TrimRight(endpoint, "/") + "/v1/embeddings"
	}

	reqBody := encodeRequest{
		Image:  base64.StdEncoding.EncodeToString(data),
		Format: strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		Model:  c.Model,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating encode request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("encode request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading encode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("encoder API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var encResp encodeResponse
	if err := json.Unmarshal(respBody, &encResp); err != nil {
		return nil, fmt.Errorf("parsing encode response: %w", err)
	}

	if len(encResp.Embedding) == 0 {
		return nil, fmt.Errorf("encode response contained no embedding")
	}

	// Set dimensions from the first successful response.
	c.mu.Lock()
	if c.dims == 0 {
		c.dims = len(encResp.Embedding)
	}
	c.mu.Unlock()

	return encResp.Embedding, nil
}

// Dimensions returns the dimensionality of the embedding vectors.
// Returns 0 until the first successful EncodeImage call.
func (c *HTTPEncoder) Dimensions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dims
}
