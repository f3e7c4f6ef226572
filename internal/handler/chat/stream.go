package chat

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	chatmodel "github.com/mindmend/backend/internal/model/chat"
	"github.com/mindmend/backend/pkg/utils"
)

// Stream frame tags. One JSON object per line, prefixed tag-colon.
const (
	frameStart  = "0" // message start: {id, role, parts:[]}
	framePart   = "a" // text part start: {type:"text", id, text:""}
	frameDelta  = "2" // text delta: {type:"text-delta", id, textDelta}
	frameData   = "d" // metadata: {emotion:[{label,score}]}
	frameFinish = "e" // terminal: {finishReason}
)

// respondStream runs the streaming tail of the pipeline. Generation is
// incrementally streamed from the model, so one delta frame is emitted per
// upstream chunk. Failures before the first frame fall back to a plain JSON
// error; after that, the terminal frame carries finishReason "error".
func (h *Handler) respondStream(w http.ResponseWriter, r *http.Request, turn *turnContext) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.GenerationTimeout)
	defer cancel()

	stream, err := h.generator.Stream(ctx, turn.system, turn.history, turn.query)
	if err != nil {
		log.Printf("[chat] stream setup failed for user=%s: %v", turn.userID, err)
		utils.RespondError(w, http.StatusInternalServerError, h.userFacingError(err))
		return
	}
	defer stream.Close()

	utils.SetupStreamHeaders(w)

	messageID := uuid.NewString()
	utils.WriteFrame(w, flusher, frameStart, map[string]any{
		"id":    messageID,
		"role":  chatmodel.RoleAssistant,
		"parts": []any{},
	})
	utils.WriteFrame(w, flusher, framePart, map[string]any{
		"type": "text",
		"id":   messageID,
		"text": "",
	})

	var full strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			log.Printf("[chat] stream aborted for user=%s: %v", turn.userID, recvErr)
			utils.WriteFrame(w, flusher, frameFinish, map[string]any{"finishReason": "error"})
			return
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		full.WriteString(chunk.Content)
		utils.WriteFrame(w, flusher, frameDelta, map[string]any{
			"type":      "text-delta",
			"id":        messageID,
			"textDelta": chunk.Content,
		})
	}

	content := strings.TrimSpace(full.String())
	h.persistTurns(r.Context(), turn, content)

	utils.WriteFrame(w, flusher, frameData, map[string]any{
		"emotion": []chatmodel.Annotation{turn.emotion},
	})
	utils.WriteFrame(w, flusher, frameFinish, map[string]any{"finishReason": "stop"})
}
