package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"portfolio-backend/internal/config"
	"portfolio-backend/internal/database"
	"portfolio-backend/internal/handlers"
	"portfolio-backend/internal/middleware"
	"portfolio-backend/internal/repository"
	"portfolio-backend/internal/router"
	"portfolio-backend/internal/services"
	"portfolio-backend/internal/websocket"
)

const (
	assistantTemperature = 0.7
	shutdownTimeout      = 30 * time.Second
)

func main() {
	log.Println("🚀 Starting Portfolio Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("✗ Invalid configuration: %v", err)
	}
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Connect Redis (optional) ────
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer client.Close()
		redisClient = client
		log.Println("✓ Redis connected")
	}

	// ──── Step 3: Open Message Store ────
	store, closeStore, err := openStore(cfg, redisClient)
	if err != nil {
		log.Fatalf("✗ Message store failed: %v", err)
	}
	defer closeStore.Close()
	log.Printf("✓ Message store ready (%s)", cfg.StoreBackend)

	// ──── Step 4: Initialize Gemini Client ────
	geminiService, err := services.NewGeminiService(context.Background(), services.GeminiConfig{
		APIKey:         cfg.GeminiAPIKey,
		Model:          cfg.GeminiModel,
		SystemPrompt:   cfg.AssistantPrompt,
		Timeout:        cfg.GeminiTimeout,
		ConcurrentReqs: cfg.GeminiConcurrentReqs,
		Temperature:    assistantTemperature,
	})
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer geminiService.Close()
	if geminiService.Configured() {
		log.Printf("✓ Gemini client initialized (%s)", cfg.GeminiModel)
	} else {
		log.Println("⚠ GEMINI_API_KEY not set; chat requests will fail until it is configured")
	}

	// ──── Step 5: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClient, cfg.FrontendURL)
	if err := wsHub.Start(); err != nil {
		log.Fatalf("✗ WebSocket hub failed: %v", err)
	}
	log.Println("✓ WebSocket hub started")

	// ──── Initialize Handlers ────
	chatHandler := handlers.NewChatHandler(store, geminiService, wsHub, handlers.ChatOptions{
		HistoryContext:   cfg.HistoryContext,
		MaxContentLength: cfg.MaxContentLength,
	})
	chatLimiter := middleware.NewRateLimiter(cfg.ChatRequestsPerMinute, time.Minute)

	// ──── Step 6: Start HTTP Server ────
	r := router.New(chatHandler, wsHub, chatLimiter, cfg.FrontendURL)

	// A chat request may wait the full Gemini timeout before answering.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GeminiTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		log.Fatalf("✗ Listen failed: %v", err)
	}

	log.Printf("✓ Portfolio Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/chat", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/chat/ws", cfg.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	err = serve(server, ln, sigChan, shutdownTimeout, func() {
		log.Println("Shutting down...")
		chatLimiter.Stop()
		wsHub.Stop()
	})
	if err != nil {
		log.Printf("✗ %v", err)
		return
	}
	log.Println("✓ In-flight requests drained")
}

// serve runs server on ln until stop fires, then drains in-flight requests
// for up to timeout. It returns only once the drain has finished, so the
// caller's deferred closes never run under a live request.
func serve(server *http.Server, ln net.Listener, stop <-chan os.Signal, timeout time.Duration, beforeShutdown func()) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}

	if beforeShutdown != nil {
		beforeShutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown incomplete: %w", err)
	}

	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openStore builds the message store selected by STORE_BACKEND. The returned
// closer releases whatever the backend opened.
func openStore(cfg *config.Config, redisClient *redis.Client) (repository.MessageStore, io.Closer, error) {
	noop := closerFunc(func() error { return nil })

	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		migrations := database.EmbeddedMigrations()
		if cfg.MigrationsDir != "" {
			migrations = os.DirFS(cfg.MigrationsDir)
		}
		if err := database.RunMigrations(context.Background(), pool, migrations); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repository.NewPostgresMessageRepo(pool), closerFunc(func() error {
			pool.Close()
			return nil
		}), nil

	case config.StoreRedis:
		// Validate guarantees REDIS_URL, so the client is connected by now.
		return repository.NewRedisMessageRepo(redisClient, repository.DefaultRedisMessagesKey), noop, nil

	case config.StoreBadger:
		db, err := database.OpenBadger(cfg.BadgerPath)
		if err != nil {
			return nil, nil, err
		}
		repo, err := repository.NewBadgerMessageRepo(db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return repo, closerFunc(func() error {
			repo.Close()
			return db.Close()
		}), nil

	default:
		if cfg.MaxRetainedMessages > 0 {
			log.Printf("  keeping the latest %d messages in memory", cfg.MaxRetainedMessages)
		}
		return repository.NewMemoryMessageRepo(cfg.MaxRetainedMessages), noop, nil
	}
}
