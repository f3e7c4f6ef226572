package chat

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	chatmodel "github.com/mindmend/backend/internal/model/chat"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type wsInbound struct {
	Type     string              `json:"type"`
	UserID   string              `json:"userId"`
	Messages []chatmodel.Message `json:"messages"`
}

type wsOutbound struct {
	Type    string                 `json:"type"`
	Content string                 `json:"content,omitempty"`
	Emotion []chatmodel.Annotation `json:"emotion,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// handleWebSocket serves the bidirectional chat variant. Each inbound "chat"
// frame runs the identical pipeline; the response is pushed back as delta,
// message, emotion, and done frames.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[chat] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var inbound wsInbound
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[chat] websocket read failed: %v", err)
			}
			return
		}

		if inbound.Type != "chat" {
			h.writeWS(conn, wsOutbound{Type: "error", Error: "unsupported frame type"})
			continue
		}

		h.serveWSTurn(r.Context(), conn, inbound)
	}
}

func (h *Handler) serveWSTurn(ctx context.Context, conn *websocket.Conn, inbound wsInbound) {
	turn, reqErr := h.prepareTurn(ctx, chatmodel.Request{
		Messages: inbound.Messages,
		UserID:   inbound.UserID,
	})
	if reqErr != nil {
		h.writeWS(conn, wsOutbound{Type: "error", Error: reqErr.message})
		return
	}

	genCtx, cancel := context.WithTimeout(ctx, h.opts.GenerationTimeout)
	defer cancel()

	content, err := h.streamToWS(genCtx, conn, turn)
	if err != nil {
		log.Printf("[chat] websocket generation failed for user=%s: %v", turn.userID, err)
		h.writeWS(conn, wsOutbound{Type: "error", Error: h.userFacingError(err)})
		return
	}

	h.persistTurns(ctx, turn, content)

	h.writeWS(conn, wsOutbound{Type: "message", Content: content})
	h.writeWS(conn, wsOutbound{Type: "emotion", Emotion: []chatmodel.Annotation{turn.emotion}})
	h.writeWS(conn, wsOutbound{Type: "done"})
}

func (h *Handler) streamToWS(ctx context.Context, conn *websocket.Conn, turn *turnContext) (string, error) {
	if !h.generator.StreamingEnabled() {
		return h.generator.Generate(ctx, turn.system, turn.history, turn.query)
	}

	stream, err := h.generator.Stream(ctx, turn.system, turn.history, turn.query)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", recvErr
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		full.WriteString(chunk.Content)
		h.writeWS(conn, wsOutbound{Type: "delta", Content: chunk.Content})
	}

	return strings.TrimSpace(full.String()), nil
}

func (h *Handler) writeWS(conn *websocket.Conn, frame wsOutbound) {
	if err := conn.WriteJSON(frame); err != nil {
		log.Printf("[chat] websocket write failed: %v", err)
	}
}
