package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/jwebster45206/npc-engine/internal/config"
	"github.com/jwebster45206/npc-engine/internal/handlers"
	"github.com/jwebster45206/npc-engine/internal/logger"
	"github.com/jwebster45206/npc-engine/internal/middleware"
	"github.com/jwebster45206/npc-engine/internal/services"
	"github.com/jwebster45206/npc-engine/internal/services/events"
	"github.com/jwebster45206/npc-engine/internal/session"
	"github.com/jwebster45206/npc-engine/internal/storage"
	"github.com/jwebster45206/npc-engine/pkg/world"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting NPC Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName,
		"session_backend", cfg.SessionBackend)

	if err := run(cfg, log); err != nil {
		log.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("Server exited")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers := providerFactory(cfg, log)

	var err error
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = storage.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		if cfg.SessionBackend != config.BackendRedis {
			// otherwise the redis store owns the client
			defer redisClient.Close()
		}
	}

	store, err := openStore(ctx, cfg, redisClient, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage connection", "error", err)
		}
	}()

	worldStore := world.NewStore(cfg.WorldStatePath, log)
	if err := worldStore.Init(&world.Document{}); err != nil {
		return err
	}

	var publisher events.Publisher = events.NopPublisher{}
	var broadcaster *events.Broadcaster
	if redisClient != nil {
		broadcaster = events.NewBroadcaster(redisClient, log)
		publisher = broadcaster
	}

	sessions := session.NewManager(session.Deps{
		Providers:  providers,
		Store:      store,
		World:      worldStore,
		Publisher:  publisher,
		UploadDir:  cfg.UploadDir,
		LoreDBPath: cfg.LoreDBPath,
		Logger:     log,
	})

	probe, err := providers(ctx)
	if err != nil {
		return err
	}
	defer probe.Close()

	mux := http.NewServeMux()
	mux.Handle("/health", handlers.NewHealthHandler(store, probe, log))
	mux.Handle("/v1/avatars", handlers.NewAvatarsHandler(store, log))
	mux.Handle("/v1/upload", handlers.NewUploadHandler(cfg.UploadDir, cfg.MaxUploadBytes, log))
	mux.Handle("/v1/initialize", handlers.NewInitializeHandler(sessions, log))
	mux.Handle("/ws/", handlers.NewWSHandler(sessions, log))
	if broadcaster != nil {
		mux.Handle("/v1/events/", handlers.NewEventsHandler(broadcaster, log))
	}

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(mux),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: websocket and SSE connections are long-lived
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Server is shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		// Hijacked websocket connections are not tracked by Shutdown, so
		// sessions are closed explicitly to persist them.
		sessions.CloseAll(shutdownCtx)
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func providerFactory(cfg *config.Config, log *slog.Logger) session.ProviderFactory {
	switch cfg.LLMProvider {
	case config.ProviderMock:
		log.Info("Using mock LLM provider")
		return func(ctx context.Context) (services.CompletionProvider, error) {
			return services.NewMockProvider(), nil
		}
	default:
		log.Info("Using OpenRouter LLM provider")
		return func(ctx context.Context) (services.CompletionProvider, error) {
			return services.NewOpenRouterService(cfg.OpenRouterAPIKey, cfg.LLMBaseURL, cfg.ModelName, log), nil
		}
	}
}

func openStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client, log *slog.Logger) (storage.SessionStore, error) {
	if cfg.SessionBackend == config.BackendRedis {
		store := storage.NewRedisStore(redisClient, log)
		waitCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := store.WaitForConnection(waitCtx, 10, 2*time.Second); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to connect to storage: %w", err)
		}
		log.Info("Storage connection established successfully", "backend", "redis")
		return store, nil
	}

	store, err := storage.NewFileStore(cfg.StateDir, log)
	if err != nil {
		return nil, err
	}
	log.Info("Storage ready", "backend", "file", "dir", cfg.StateDir)
	return store, nil
}
