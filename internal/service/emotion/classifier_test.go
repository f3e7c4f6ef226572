package emotion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassifyPicksTopLabel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[{"label":"SADNESS","score":0.91},{"label":"fear","score":0.05}]]`))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "emotion-model")
	got := client.Classify(context.Background(), "I feel terrible today")

	if got.Label != "sadness" {
		t.Fatalf("label = %q, want sadness", got.Label)
	}
	if got.Score != 0.91 {
		t.Fatalf("score = %v, want 0.91", got.Score)
	}
}

func TestClassifyFlatResponseShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"label":"joy","score":0.4},{"label":"love","score":0.77}]`))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "emotion-model")
	got := client.Classify(context.Background(), "you make this easier")

	if got.Label != "love" || got.Score != 0.77 {
		t.Fatalf("got %+v, want love/0.77", got)
	}
}

func TestClassifyNeverRaises(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer garbage.Close()

	cases := []*Client{
		NewClient("k", failing.URL, "m"),
		NewClient("k", garbage.URL, "m"),
		NewClient("k", "http://127.0.0.1:1", "m"), // connection refused
	}

	for i, client := range cases {
		got := client.Classify(context.Background(), "anything")
		if got.Label != "neutral" || got.Score != 0 {
			t.Fatalf("case %d: got %+v, want neutral fallback", i, got)
		}
	}
}

func TestClassifyEmptyInput(t *testing.T) {
	client := NewClient("k", "http://unused", "m")
	got := client.Classify(context.Background(), "   ")
	if got.Label != "neutral" || got.Score != 0 {
		t.Fatalf("got %+v, want neutral for empty input", got)
	}
}
