package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// indexClient is a thin typed wrapper over the vector index data-plane REST
// API. All calls are namespace-scoped.
type indexClient struct {
	host      string
	apiKey    string
	namespace string
	http      *http.Client
}

const pineconeAPIVersion = "2024-07"

func newIndexClient(host, apiKey, namespace string) *indexClient {
	return &indexClient{
		host:      host,
		apiKey:    apiKey,
		namespace: namespace,
		http:      &http.Client{Timeout: 20 * time.Second},
	}
}

// vector is the wire representation of one stored record.
type vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

func (c *indexClient) upsert(ctx context.Context, vectors []vector) error {
	body := map[string]any{
		"vectors":   vectors,
		"namespace": c.namespace,
	}
	return c.post(ctx, "/vectors/upsert", body, nil)
}

func (c *indexClient) query(ctx context.Context, values []float32, topK int, filter map[string]any) ([]match, error) {
	body := map[string]any{
		"vector":          values,
		"topK":            topK,
		"includeMetadata": true,
		"namespace":       c.namespace,
	}
	if len(filter) > 0 {
		body["filter"] = filter
	}

	var out struct {
		Matches []match `json:"matches"`
	}
	if err := c.post(ctx, "/query", body, &out); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

// listIDs pages through every vector ID under the given prefix. The index has
// no filtered delete or scan, so ID prefixes are the only way to enumerate a
// user's records.
func (c *indexClient) listIDs(ctx context.Context, prefix string) ([]string, error) {
	var ids []string
	token := ""

	for {
		params := url.Values{}
		params.Set("namespace", c.namespace)
		params.Set("prefix", prefix)
		params.Set("limit", "99")
		if token != "" {
			params.Set("paginationToken", token)
		}

		var page struct {
			Vectors []struct {
				ID string `json:"id"`
			} `json:"vectors"`
			Pagination struct {
				Next string `json:"next"`
			} `json:"pagination"`
		}
		if err := c.get(ctx, "/vectors/list?"+params.Encode(), &page); err != nil {
			return nil, err
		}

		for _, v := range page.Vectors {
			ids = append(ids, v.ID)
		}

		token = page.Pagination.Next
		if token == "" {
			return ids, nil
		}
	}
}

func (c *indexClient) fetch(ctx context.Context, ids []string) (map[string]vector, error) {
	if len(ids) == 0 {
		return map[string]vector{}, nil
	}

	params := url.Values{}
	params.Set("namespace", c.namespace)
	for _, id := range ids {
		params.Add("ids", id)
	}

	var out struct {
		Vectors map[string]vector `json:"vectors"`
	}
	if err := c.get(ctx, "/vectors/fetch?"+params.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Vectors, nil
}

func (c *indexClient) deleteByID(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{
		"ids":       ids,
		"namespace": c.namespace,
	}
	return c.post(ctx, "/vectors/delete", body, nil)
}

func (c *indexClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal index request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build index request: %w", err)
	}
	return c.do(req, out)
}

func (c *indexClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+path, nil)
	if err != nil {
		return fmt.Errorf("build index request: %w", err)
	}
	return c.do(req, out)
}

func (c *indexClient) do(req *http.Request, out any) error {
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Pinecone-API-Version", pineconeAPIVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("index request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read index response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := string(body)
		if len(detail) > 200 {
			detail = detail[:200] + "..."
		}
		return fmt.Errorf("index endpoint returned %d: %s", resp.StatusCode, detail)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode index response: %w", err)
	}
	return nil
}
