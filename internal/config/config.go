package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every configuration section of the service.
type Config struct {
	Server ServerConfig
	App    AppConfig
	AI     AIConfig
	Memory MemoryConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	memory, err := loadMemoryConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		App:    loadAppConfig(),
		AI:     ai,
		Memory: memory,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow passing ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AppConfig holds deployment-wide flags.
type AppConfig struct {
	Env string
}

// Development reports whether raw error detail may be exposed to clients.
func (c AppConfig) Development() bool {
	return c.Env == "development"
}

func loadAppConfig() AppConfig {
	return AppConfig{Env: getEnvOrDefault("APP_ENV", "production")}
}

// AIConfig describes the hosted inference API used for generation and
// classification. The chat-completion endpoint is OpenAI-compatible.
type AIConfig struct {
	APIKey            string
	BaseURL           string
	InferenceBaseURL  string
	Model             string
	EmotionModel      string
	Temperature       *float64
	MaxTokens         *int
	StreamResponse    bool
	GenerationTimeout time.Duration
}

// Enabled reports whether the inference credentials were provided.
func (c AIConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

// NewChatModel builds a chat-completion model from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("inference API key or model missing, set HF_API_KEY and CHAT_MODEL")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	cfg := &openai.ChatModelConfig{
		BaseURL:     c.BaseURL,
		APIKey:      c.APIKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
	}

	return openai.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("CHAT_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature == nil {
		defaultTemp := 0.7
		temperature = &defaultTemp
	}

	maxTokens, err := parseOptionalIntEnv("CHAT_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}
	if maxTokens == nil {
		defaultMax := 300
		maxTokens = &defaultMax
	}

	stream, err := parseBoolEnv("CHAT_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	timeoutSeconds := 30
	if override, err := parseOptionalIntEnv("GENERATION_TIMEOUT"); err != nil {
		return AIConfig{}, err
	} else if override != nil && *override > 0 {
		timeoutSeconds = *override
	}

	return AIConfig{
		APIKey:            strings.TrimSpace(os.Getenv("HF_API_KEY")),
		BaseURL:           getEnvOrDefault("HF_BASE_URL", "https://router.huggingface.co/v1"),
		InferenceBaseURL:  getEnvOrDefault("HF_INFERENCE_URL", "https://api-inference.huggingface.co/models"),
		Model:             getEnvOrDefault("CHAT_MODEL", "Qwen/Qwen2.5-7B-Instruct"),
		EmotionModel:      getEnvOrDefault("EMOTION_MODEL", "bhadresh-savani/distilbert-base-uncased-emotion"),
		Temperature:       temperature,
		MaxTokens:         maxTokens,
		StreamResponse:    stream,
		GenerationTimeout: time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// MemoryConfig describes the hosted vector index holding conversation history.
type MemoryConfig struct {
	APIKey         string
	Host           string
	IndexName      string
	Namespace      string
	EmbeddingModel string
	Dimension      int
	TopK           int
}

// Enabled reports whether conversation memory is configured. Without it the
// service degrades to stateless chat instead of failing requests.
func (c MemoryConfig) Enabled() bool {
	return c.APIKey != "" && c.Host != "" && !strings.Contains(c.APIKey, "your-key")
}

func loadMemoryConfig() (MemoryConfig, error) {
	dimension := 1024
	if override, err := parseOptionalIntEnv("EMBEDDING_DIMENSION"); err != nil {
		return MemoryConfig{}, err
	} else if override != nil && *override > 0 {
		dimension = *override
	}

	topK := 5
	if override, err := parseOptionalIntEnv("MEMORY_TOP_K"); err != nil {
		return MemoryConfig{}, err
	} else if override != nil && *override > 0 {
		topK = *override
	}

	return MemoryConfig{
		APIKey:         strings.TrimSpace(os.Getenv("PINECONE_API_KEY")),
		Host:           strings.TrimRight(strings.TrimSpace(os.Getenv("PINECONE_HOST")), "/"),
		IndexName:      getEnvOrDefault("PINECONE_INDEX_NAME", "chat-conversations"),
		Namespace:      getEnvOrDefault("PINECONE_NAMESPACE", "conversations"),
		EmbeddingModel: getEnvOrDefault("EMBEDDING_MODEL", "BAAI/bge-large-en-v1.5"),
		Dimension:      dimension,
		TopK:           topK,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
