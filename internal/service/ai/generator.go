// Package ai generates assistant responses through an OpenAI-compatible
// chat-completion endpoint, composed as an eino prompt/model chain.
package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/mindmend/backend/internal/config"
	"github.com/mindmend/backend/internal/model/chat"
)

// historyLimit caps how many prior turns are replayed to the model.
const historyLimit = 8

// Service encapsulates response generation. Stateless and safe for
// concurrent reuse across requests.
type Service struct {
	chatModel model.ChatModel
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the generation service from configuration.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		chain:     runnable,
	}, nil
}

// StreamingEnabled reports whether responses should be streamed by default.
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// Generate produces a complete response for the conversation.
func (s *Service) Generate(ctx context.Context, system string, history []chat.Message, query string) (string, error) {
	response, err := s.chain.Invoke(ctx, buildChainInput(system, history, query))
	if err != nil {
		return "", fmt.Errorf("failed to run generation chain: %w", err)
	}

	log.Printf("[ai] generated response, length=%d", len(response.Content))
	return strings.TrimSpace(response.Content), nil
}

// Stream produces the response as an incremental sequence of message chunks.
// The reader is finite and non-restartable; the caller owns closing it.
func (s *Service) Stream(ctx context.Context, system string, history []chat.Message, query string) (*schema.StreamReader[*schema.Message], error) {
	stream, err := s.chain.Stream(ctx, buildChainInput(system, history, query))
	if err != nil {
		return nil, fmt.Errorf("failed to stream generation chain: %w", err)
	}
	return stream, nil
}

func buildChainInput(system string, history []chat.Message, query string) map[string]any {
	return map[string]any{
		"system":  system,
		"history": buildHistoryMessages(history),
		"query":   query,
	}
}

func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > historyLimit {
		startIdx = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		text := msg.Text()
		if text == "" {
			continue
		}
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(text))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(text, nil))
		}
	}

	return history
}
