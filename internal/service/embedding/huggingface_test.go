package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func embeddingServer(t *testing.T, dimension int, nested bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vector := make([]float32, dimension)
		for i := range vector {
			vector[i] = 0.1
		}
		if nested {
			json.NewEncoder(w).Encode([][]float32{vector})
			return
		}
		json.NewEncoder(w).Encode(vector)
	}))
}

func TestEmbedFlatShape(t *testing.T) {
	server := embeddingServer(t, 8, false)
	defer server.Close()

	client := NewClient("k", server.URL, "embed-model", 8)
	vector, err := client.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed err: %v", err)
	}
	if len(vector) != 8 {
		t.Fatalf("dimension = %d, want 8", len(vector))
	}
}

func TestEmbedNestedShape(t *testing.T) {
	server := embeddingServer(t, 8, true)
	defer server.Close()

	client := NewClient("k", server.URL, "embed-model", 8)
	vector, err := client.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed err: %v", err)
	}
	if len(vector) != 8 {
		t.Fatalf("dimension = %d, want 8", len(vector))
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	server := embeddingServer(t, 4, false)
	defer server.Close()

	client := NewClient("k", server.URL, "embed-model", 8)
	if _, err := client.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestEmbedUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient("k", server.URL, "embed-model", 8)
	if _, err := client.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for upstream failure")
	}
}
