package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mindmend/backend/internal/analysis/name"
	"github.com/mindmend/backend/internal/config"
	"github.com/mindmend/backend/internal/handler"
	chatHandler "github.com/mindmend/backend/internal/handler/chat"
	memoryHandler "github.com/mindmend/backend/internal/handler/memory"
	"github.com/mindmend/backend/internal/service/ai"
	"github.com/mindmend/backend/internal/service/embedding"
	"github.com/mindmend/backend/internal/service/emotion"
	"github.com/mindmend/backend/internal/service/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize response generation
	var generator chatHandler.Generator
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize generation service: %v", err)
			log.Println("continuing without chat generation - check HF_API_KEY and CHAT_MODEL")
		} else {
			generator = aiService
			log.Println("generation service initialized successfully")
		}
	} else {
		log.Println("inference credentials not configured, chat endpoints will report unavailable")
	}

	// Emotion classification shares the inference credentials and degrades to
	// neutral on its own, so it is always constructed.
	classifier := emotion.NewClient(cfg.AI.APIKey, cfg.AI.InferenceBaseURL, cfg.AI.EmotionModel)

	// Initialize conversation memory
	var store *memory.Store
	if cfg.Memory.Enabled() {
		embedder := embedding.NewClient(cfg.AI.APIKey, cfg.AI.InferenceBaseURL, cfg.Memory.EmbeddingModel, cfg.Memory.Dimension)
		store = memory.NewStore(cfg.Memory, embedder)
		log.Printf("conversation memory initialized against index %s", cfg.Memory.IndexName)
	} else {
		log.Println("vector index credentials not configured, running stateless (no retrieval or storage)")
	}

	chatOpts := chatHandler.Options{
		TopK:              cfg.Memory.TopK,
		GenerationTimeout: cfg.AI.GenerationTimeout,
		Development:       cfg.App.Development(),
	}

	// The chat handler takes interfaces; a nil *memory.Store must stay a nil
	// interface so the pipeline skips retrieval entirely.
	var chatStore chatHandler.Store
	var adminStore memoryHandler.Store
	if store != nil {
		chatStore = store
		adminStore = store
	}

	chatH := chatHandler.New(generator, classifier, chatStore, name.NewExtractor(), chatOpts)
	memoryH := memoryHandler.New(adminStore)

	router := handler.NewRouter(chatH, memoryH, store != nil, generator != nil)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("MindMend backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
