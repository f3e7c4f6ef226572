// Package embedding computes text embeddings through the hosted
// feature-extraction endpoint.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client calls the Hugging Face feature-extraction API.
type Client struct {
	apiKey    string
	baseURL   string
	model     string
	dimension int
	http      *http.Client
}

// NewClient builds an embedding client. baseURL is the inference root
// (".../models"); the model name is appended per request.
func NewClient(apiKey, baseURL, model string, dimension int) *Client {
	return &Client{
		apiKey:    apiKey,
		baseURL:   baseURL,
		model:     model,
		dimension: dimension,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

type extractionRequest struct {
	Inputs string `json:"inputs"`
}

// Embed computes the embedding for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(extractionRequest{Inputs: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding endpoint returned %d: %s", resp.StatusCode, truncate(body, 200))
	}

	vector, err := parseVector(body)
	if err != nil {
		return nil, err
	}
	if c.dimension > 0 && len(vector) != c.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vector), c.dimension)
	}

	return vector, nil
}

// parseVector accepts both response shapes the endpoint produces: a flat
// vector for single input, or a single-element batch.
func parseVector(body []byte) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(body, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}

	var nested [][]float32
	if err := json.Unmarshal(body, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}

	return nil, fmt.Errorf("unexpected embedding response shape: %s", truncate(body, 120))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
