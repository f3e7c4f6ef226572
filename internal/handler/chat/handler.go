// Package chat implements the conversational pipeline behind POST /api/chat:
// validate, retrieve context, classify emotion, build the prompt, generate,
// persist both turns, emit. Retrieval and classification are best-effort;
// generation is the only fatal step.
package chat

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mindmend/backend/internal/analysis/name"
	"github.com/mindmend/backend/internal/model/chat"
	"github.com/mindmend/backend/internal/service/ai"
	"github.com/mindmend/backend/pkg/utils"
)

// busyMessage is the only generation-failure text users ever see.
const busyMessage = "The assistant is busy right now — please try again in a moment."

// Generator produces assistant responses.
type Generator interface {
	Generate(ctx context.Context, system string, history []chat.Message, query string) (string, error)
	Stream(ctx context.Context, system string, history []chat.Message, query string) (*schema.StreamReader[*schema.Message], error)
	StreamingEnabled() bool
}

// Classifier resolves an advisory emotion annotation for user text.
type Classifier interface {
	Classify(ctx context.Context, text string) chat.Annotation
}

// Store persists and retrieves conversation turns scoped by user.
type Store interface {
	Store(ctx context.Context, userID, content, role string, extra map[string]any) (string, error)
	Retrieve(ctx context.Context, userID, query string, topK int) ([]chat.Record, error)
}

// Options tunes the pipeline.
type Options struct {
	TopK              int
	GenerationTimeout time.Duration
	Development       bool
}

// Handler orchestrates one chat request per call. All collaborators are
// stateless clients safe for concurrent reuse; store may be nil when the
// service runs without conversation memory.
type Handler struct {
	generator  Generator
	classifier Classifier
	store      Store
	extractor  name.Extractor
	opts       Options
}

// New creates the chat handler with injected collaborators.
func New(generator Generator, classifier Classifier, store Store, extractor name.Extractor, opts Options) *Handler {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = 30 * time.Second
	}
	if extractor == nil {
		extractor = name.NewExtractor()
	}
	return &Handler{
		generator:  generator,
		classifier: classifier,
		store:      store,
		extractor:  extractor,
		opts:       opts,
	}
}

// RegisterRoutes mounts the chat endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/chat/ws", h.handleWebSocket)
}

// turnContext is the assembled state of one validated request, ready for
// generation.
type turnContext struct {
	userID  string
	history []chat.Message
	query   string
	system  string
	emotion chat.Annotation
}

type requestError struct {
	status  int
	message string
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turn, reqErr := h.prepareTurn(r.Context(), req)
	if reqErr != nil {
		utils.RespondError(w, reqErr.status, reqErr.message)
		return
	}

	if h.wantsStream(r) {
		h.respondStream(w, r, turn)
		return
	}
	h.respondJSON(w, r, turn)
}

// prepareTurn runs validation and the best-effort context-gathering half of
// the pipeline. Validation failures make no upstream calls. Retrieval and
// classification are independent and run concurrently; prompt assembly waits
// for both.
func (h *Handler) prepareTurn(ctx context.Context, req chat.Request) (*turnContext, *requestError) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, &requestError{http.StatusBadRequest, "Valid user ID is required"}
	}
	if len(req.Messages) == 0 {
		return nil, &requestError{http.StatusBadRequest, "at least one message is required"}
	}

	latest := req.Messages[len(req.Messages)-1]
	query := strings.TrimSpace(latest.Text())
	if query == "" {
		return nil, &requestError{http.StatusBadRequest, "message text is required"}
	}

	if h.generator == nil {
		return nil, &requestError{http.StatusServiceUnavailable, "chat is not available"}
	}

	var (
		past       []chat.Record
		annotation = chat.Neutral()
		wg         sync.WaitGroup
	)

	if h.store != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			records, err := h.store.Retrieve(ctx, userID, query, h.opts.TopK)
			if err != nil {
				log.Printf("[chat] context retrieval skipped: %v", err)
				return
			}
			past = records
		}()
	}

	if h.classifier != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			annotation = h.classifier.Classify(ctx, query)
		}()
	}

	wg.Wait()

	detectedName, _ := h.extractor.Extract(query)

	system := ai.BuildSystemPrompt(ai.PromptContext{
		Past:    past,
		Name:    detectedName,
		Emotion: annotation,
	})

	return &turnContext{
		userID:  userID,
		history: req.Messages[:len(req.Messages)-1],
		query:   query,
		system:  system,
		emotion: annotation,
	}, nil
}

// respondJSON runs the non-streaming tail of the pipeline.
func (h *Handler) respondJSON(w http.ResponseWriter, r *http.Request, turn *turnContext) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.GenerationTimeout)
	defer cancel()

	content, err := h.generator.Generate(ctx, turn.system, turn.history, turn.query)
	if err != nil {
		log.Printf("[chat] generation failed for user=%s: %v", turn.userID, err)
		utils.RespondError(w, http.StatusInternalServerError, h.userFacingError(err))
		return
	}

	h.persistTurns(r.Context(), turn, content)

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"id":      uuid.NewString(),
		"role":    chat.RoleAssistant,
		"content": content,
		"data": map[string]any{
			"emotion": []chat.Annotation{turn.emotion},
		},
	})
}

// persistTurns stores the user turn (with its emotion annotation) and the
// assistant turn. Best-effort memory: failures are logged, never surfaced,
// and run only after generation succeeded so a failed request stores nothing.
func (h *Handler) persistTurns(ctx context.Context, turn *turnContext, response string) {
	if h.store == nil {
		return
	}

	var extra map[string]any
	if turn.emotion.Score > 0 {
		extra = map[string]any{
			"emotion":      turn.emotion.Label,
			"emotionScore": turn.emotion.Score,
		}
	}

	if _, err := h.store.Store(ctx, turn.userID, turn.query, chat.RoleUser, extra); err != nil {
		log.Printf("[chat] failed to store user turn: %v", err)
	}
	if _, err := h.store.Store(ctx, turn.userID, response, chat.RoleAssistant, nil); err != nil {
		log.Printf("[chat] failed to store assistant turn: %v", err)
	}
}

func (h *Handler) wantsStream(r *http.Request) bool {
	switch r.URL.Query().Get("stream") {
	case "1", "true":
		return true
	case "0", "false":
		return false
	}
	return h.generator.StreamingEnabled()
}

func (h *Handler) userFacingError(err error) string {
	if h.opts.Development {
		return busyMessage + " (" + err.Error() + ")"
	}
	return busyMessage
}
