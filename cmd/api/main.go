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

	"github.com/zhouzirui/gemini-chat/backend/internal/config"
	"github.com/zhouzirui/gemini-chat/backend/internal/handler"
	"github.com/zhouzirui/gemini-chat/backend/internal/render"
	"github.com/zhouzirui/gemini-chat/backend/internal/service/ai"
	"github.com/zhouzirui/gemini-chat/backend/internal/service/app"
	"github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
	"github.com/zhouzirui/gemini-chat/backend/internal/service/title"
	"github.com/zhouzirui/gemini-chat/backend/internal/storage"
)

// generator is what both the proxy endpoints and the application need.
type generator interface {
	app.Generator
	GenerateWithModel(ctx context.Context, prompt, model string) (string, error)
	ListModels(ctx context.Context) ([]ai.ModelInfo, error)
}

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

	resolveAPIKey(ctx, cfg)

	store, err := cfg.Storage.NewStore(ctx)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.Storage.Backend, err)
	}
	defer func() {
		if err := storage.Close(store); err != nil {
			log.Printf("warning: failed to close store: %v", err)
		}
	}()

	var gen generator = ai.Unavailable{}
	if cfg.AI.Enabled() {
		aiService, err := ai.NewServiceFromConfig(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI functionality")
		} else {
			gen = aiService
			log.Printf("AI service initialized provider=%s model=%s", cfg.AI.Provider, cfg.AI.Model)
		}
	} else {
		log.Printf("credentials for provider %s are not configured, prompts will return an error", cfg.AI.Provider)
	}

	application, err := app.New(chat.NewService(store), store, gen, title.NewService(gen))
	if err != nil {
		log.Fatalf("failed to create application: %v", err)
	}
	if _, err := application.Load(ctx); err != nil {
		log.Fatalf("failed to load chats: %v", err)
	}

	router := handler.NewRouter(handler.Dependencies{
		App:       application,
		Generator: gen,
		Revealer:  render.NewRevealer(cfg.Client.RevealInterval),
		Server:    cfg.Server,
	})

	startServer(ctx, cfg.Server, router)
}

// resolveAPIKey fetches the provider key from SSM when only its parameter name is configured.
func resolveAPIKey(ctx context.Context, cfg *config.Config) {
	if cfg.AI.APIKey != "" || cfg.AI.APIKeyParam == "" {
		return
	}

	params, err := cfg.AI.NewParamStore(ctx, cfg.Storage.AWSRegion)
	if err != nil {
		log.Printf("warning: parameter store unavailable: %v", err)
		return
	}
	if err := cfg.AI.ResolveAPIKey(ctx, params); err != nil {
		log.Printf("warning: %v", err)
		return
	}
	log.Printf("api key loaded from parameter %s", cfg.AI.APIKeyParam)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Server running on http://localhost%s", addr)
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
