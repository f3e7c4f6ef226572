// Package emotion classifies user text through the hosted text-classification
// endpoint. Classification is advisory context for the prompt, so every
// failure mode collapses to a neutral annotation instead of an error.
package emotion

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mindmend/backend/internal/model/chat"
)

// Classifier resolves an emotion annotation for a piece of text.
type Classifier interface {
	Classify(ctx context.Context, text string) chat.Annotation
}

// Client calls the Hugging Face text-classification API.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// NewClient builds a classifier client against the inference root.
func NewClient(apiKey, baseURL, model string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type classificationRequest struct {
	Inputs string `json:"inputs"`
}

type classificationResult struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify returns the top-scoring label for the text. Transport errors,
// bad status codes, and unparseable bodies all yield {neutral, 0}.
func (c *Client) Classify(ctx context.Context, text string) chat.Annotation {
	if strings.TrimSpace(text) == "" {
		return chat.Neutral()
	}

	payload, err := json.Marshal(classificationRequest{Inputs: text})
	if err != nil {
		return chat.Neutral()
	}

	url := c.baseURL + "/" + c.model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return chat.Neutral()
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("[emotion] classification request failed: %v", err)
		return chat.Neutral()
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		log.Printf("[emotion] classification endpoint status=%d err=%v", resp.StatusCode, err)
		return chat.Neutral()
	}

	results, err := parseResults(body)
	if err != nil || len(results) == 0 {
		log.Printf("[emotion] unparseable classification response: %v", err)
		return chat.Neutral()
	}

	top := results[0]
	for _, r := range results[1:] {
		if r.Score > top.Score {
			top = r
		}
	}

	return chat.Annotation{Label: strings.ToLower(top.Label), Score: top.Score}
}

// parseResults accepts both shapes the endpoint produces: a flat label list,
// or a single-element batch of label lists.
func parseResults(body []byte) ([]classificationResult, error) {
	var flat []classificationResult
	if err := json.Unmarshal(body, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}

	var nested [][]classificationResult
	if err := json.Unmarshal(body, &nested); err != nil {
		return nil, err
	}
	if len(nested) == 0 {
		return nil, nil
	}
	return nested[0], nil
}
