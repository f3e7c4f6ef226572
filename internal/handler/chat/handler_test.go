package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	chatmodel "github.com/mindmend/backend/internal/model/chat"
)

type stubGenerator struct {
	mu        sync.Mutex
	response  string
	chunks    []string
	err       error
	streaming bool
	calls     int
	gotSystem string
}

func (g *stubGenerator) Generate(_ context.Context, system string, _ []chatmodel.Message, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.gotSystem = system
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func (g *stubGenerator) Stream(_ context.Context, system string, _ []chatmodel.Message, _ string) (*schema.StreamReader[*schema.Message], error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.gotSystem = system
	if g.err != nil {
		return nil, g.err
	}

	messages := make([]*schema.Message, 0, len(g.chunks))
	for _, chunk := range g.chunks {
		messages = append(messages, schema.AssistantMessage(chunk, nil))
	}
	return schema.StreamReaderFromArray(messages), nil
}

func (g *stubGenerator) StreamingEnabled() bool { return g.streaming }

type stubClassifier struct {
	mu         sync.Mutex
	annotation chatmodel.Annotation
	calls      int
}

func (c *stubClassifier) Classify(_ context.Context, _ string) chatmodel.Annotation {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.annotation
}

type storedTurn struct {
	userID  string
	content string
	role    string
	extra   map[string]any
}

type stubStore struct {
	mu        sync.Mutex
	records   []chatmodel.Record
	stored    []storedTurn
	retrieves int
}

func (s *stubStore) Store(_ context.Context, userID, content, role string, extra map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = append(s.stored, storedTurn{userID, content, role, extra})
	return "id", nil
}

func (s *stubStore) Retrieve(_ context.Context, _, _ string, _ int) ([]chatmodel.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retrieves++
	return s.records, nil
}

func newTestRouter(gen *stubGenerator, classifier *stubClassifier, store *stubStore) *chi.Mux {
	var st Store
	if store != nil {
		st = store
	}
	h := New(gen, classifier, st, nil, Options{GenerationTimeout: 5 * time.Second})

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func postChat(t *testing.T, r http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat?stream=0", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestChatHappyPath(t *testing.T) {
	gen := &stubGenerator{response: "Hi! How can I help?"}
	classifier := &stubClassifier{annotation: chatmodel.Neutral()}
	store := &stubStore{}
	r := newTestRouter(gen, classifier, store)

	resp := postChat(t, r, `{"messages":[{"role":"user","content":"Hello"}],"userId":"u1"}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.Code, resp.Body.String())
	}

	var payload struct {
		Role    string `json:"role"`
		Content string `json:"content"`
		Data    struct {
			Emotion []chatmodel.Annotation `json:"emotion"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Role != "assistant" || payload.Content != "Hi! How can I help?" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if len(payload.Data.Emotion) != 1 || payload.Data.Emotion[0].Label != "neutral" {
		t.Fatalf("unexpected emotion data: %+v", payload.Data)
	}

	if len(store.stored) != 2 {
		t.Fatalf("got %d store calls, want 2", len(store.stored))
	}
	if store.stored[0].userID != "u1" || store.stored[0].content != "Hello" || store.stored[0].role != "user" {
		t.Fatalf("first store call = %+v", store.stored[0])
	}
	if store.stored[1].userID != "u1" || store.stored[1].content != "Hi! How can I help?" || store.stored[1].role != "assistant" {
		t.Fatalf("second store call = %+v", store.stored[1])
	}
}

func TestChatMissingUserID(t *testing.T) {
	gen := &stubGenerator{response: "unused"}
	classifier := &stubClassifier{annotation: chatmodel.Neutral()}
	store := &stubStore{}
	r := newTestRouter(gen, classifier, store)

	resp := postChat(t, r, `{"messages":[{"role":"user","content":"Hello"}]}`)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "Valid user ID is required") {
		t.Fatalf("body = %s", resp.Body.String())
	}

	if gen.calls != 0 || classifier.calls != 0 || store.retrieves != 0 || len(store.stored) != 0 {
		t.Fatalf("upstream calls made on validation failure: gen=%d classifier=%d retrieves=%d stores=%d",
			gen.calls, classifier.calls, store.retrieves, len(store.stored))
	}
}

func TestChatEmptyMessages(t *testing.T) {
	r := newTestRouter(&stubGenerator{}, &stubClassifier{}, nil)
	resp := postChat(t, r, `{"messages":[],"userId":"u1"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.Code)
	}
}

func TestChatGeneratorFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.New("completion endpoint down")}
	classifier := &stubClassifier{annotation: chatmodel.Neutral()}
	store := &stubStore{}
	r := newTestRouter(gen, classifier, store)

	resp := postChat(t, r, `{"messages":[{"role":"user","content":"Hello"}],"userId":"u1"}`)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.Code)
	}
	// User-safe message only, no raw error detail outside development mode.
	if strings.Contains(resp.Body.String(), "completion endpoint down") {
		t.Fatalf("raw error leaked: %s", resp.Body.String())
	}
	// Persistence runs after generation, so a failed request stores nothing.
	if len(store.stored) != 0 {
		t.Fatalf("got %d store calls after failed generation, want 0", len(store.stored))
	}
}

func TestChatPartsShapedMessage(t *testing.T) {
	gen := &stubGenerator{response: "ok"}
	r := newTestRouter(gen, &stubClassifier{}, nil)

	resp := postChat(t, r, `{"messages":[{"role":"user","parts":[{"type":"text","text":"Hello"}]}],"userId":"u1"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.Code, resp.Body.String())
	}
}

func TestChatRetrievedContextReachesPrompt(t *testing.T) {
	gen := &stubGenerator{response: "ok"}
	classifier := &stubClassifier{annotation: chatmodel.Annotation{Label: "sadness", Score: 0.9}}
	store := &stubStore{records: []chatmodel.Record{
		{UserID: "u1", Role: "user", Content: "my dog died", Timestamp: time.Now()},
	}}
	r := newTestRouter(gen, classifier, store)

	resp := postChat(t, r, `{"messages":[{"role":"user","content":"still sad"}],"userId":"u1"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}

	if !strings.Contains(gen.gotSystem, "my dog died") {
		t.Fatalf("retrieved context missing from system prompt: %q", gen.gotSystem)
	}
	if !strings.Contains(gen.gotSystem, "The user sounds sad") {
		t.Fatalf("empathy directive missing from system prompt: %q", gen.gotSystem)
	}

	// The user turn carries its emotion annotation into storage.
	if len(store.stored) != 2 {
		t.Fatalf("got %d store calls, want 2", len(store.stored))
	}
	if store.stored[0].extra["emotion"] != "sadness" {
		t.Fatalf("user turn extra = %+v", store.stored[0].extra)
	}
	if store.stored[1].extra != nil {
		t.Fatalf("assistant turn extra = %+v", store.stored[1].extra)
	}
}

func TestChatStreamFraming(t *testing.T) {
	gen := &stubGenerator{chunks: []string{"Hi! ", "How can ", "I help?"}, streaming: true}
	classifier := &stubClassifier{annotation: chatmodel.Neutral()}
	store := &stubStore{}
	r := newTestRouter(gen, classifier, store)

	req := httptest.NewRequest(http.MethodPost, "/chat?stream=1",
		bytes.NewReader([]byte(`{"messages":[{"role":"user","content":"Hello"}],"userId":"u1"}`)))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	lines := strings.Split(strings.TrimSpace(resp.Body.String()), "\n")
	if len(lines) != 7 {
		t.Fatalf("got %d frames, want 7: %q", len(lines), lines)
	}

	wantTags := []string{"0", "a", "2", "2", "2", "d", "e"}
	var deltas strings.Builder
	for i, line := range lines {
		tag, payload, found := strings.Cut(line, ":")
		if !found || tag != wantTags[i] {
			t.Fatalf("frame %d = %q, want tag %q", i, line, wantTags[i])
		}
		if tag == "2" {
			var frame struct {
				Type      string `json:"type"`
				TextDelta string `json:"textDelta"`
			}
			if err := json.Unmarshal([]byte(payload), &frame); err != nil {
				t.Fatalf("decode delta frame %q: %v", line, err)
			}
			if frame.Type != "text-delta" {
				t.Fatalf("delta frame type = %q", frame.Type)
			}
			deltas.WriteString(frame.TextDelta)
		}
	}

	if deltas.String() != "Hi! How can I help?" {
		t.Fatalf("concatenated deltas = %q", deltas.String())
	}
	if !strings.Contains(lines[6], `"finishReason":"stop"`) {
		t.Fatalf("terminal frame = %q", lines[6])
	}

	// Both turns persisted with the full assembled response.
	if len(store.stored) != 2 || store.stored[1].content != "Hi! How can I help?" {
		t.Fatalf("stored turns = %+v", store.stored)
	}
}

func TestChatStatelessMode(t *testing.T) {
	gen := &stubGenerator{response: "ok"}
	r := newTestRouter(gen, &stubClassifier{}, nil)

	resp := postChat(t, r, `{"messages":[{"role":"user","content":"Hello"}],"userId":"u1"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("stateless request failed: %d %s", resp.Code, resp.Body.String())
	}
}
