package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mgp-travel/tourchat/internal/ai"
	"github.com/mgp-travel/tourchat/internal/chat"
	"github.com/mgp-travel/tourchat/internal/config"
	"github.com/mgp-travel/tourchat/internal/db"
	"github.com/mgp-travel/tourchat/internal/httpapi"
	"github.com/mgp-travel/tourchat/internal/httpapi/handlers"
	"github.com/mgp-travel/tourchat/internal/logging"
	"github.com/mgp-travel/tourchat/internal/session"
	"github.com/mgp-travel/tourchat/internal/store/rabbitmq"
	"github.com/mgp-travel/tourchat/internal/store/redisstore"
	"github.com/mgp-travel/tourchat/internal/stream"
)

// registerProviders wires every supported backend into the registry. An empty
// model falls back to the configured default for that backend.
func registerProviders(reg *ai.Registry, cfg config.Config) {
	reg.Register("ollama", func(_ context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, model), nil
	})
	reg.Register("openrouter", func(_ context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, model,
			cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})
	reg.Register("yandexgpt", func(_ context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.YandexModel
		}
		return ai.NewYandexGPTProvider(cfg.YandexBaseURL, cfg.YandexAPIKey, cfg.YandexFolderID, model), nil
	})
}

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Error("database connect failed", "err", err)
		os.Exit(1)
	}
	repo := chat.NewRepo(gdb)
	if err := repo.AutoMigrate(); err != nil {
		log.Error("migrate failed", "err", err)
		os.Exit(1)
	}

	usage := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if usage != nil {
		pctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := usage.Ping(pctx); err != nil {
			log.Warn("redis unreachable, usage counters degraded", "addr", cfg.RedisAddr, "err", err)
		}
		cancel()
	}

	reg := ai.NewRegistry()
	registerProviders(reg, cfg)

	provider, err := reg.Get(context.Background(), cfg.AIProvider, "")
	if err != nil {
		log.Error("ai provider init failed", "provider", cfg.AIProvider, "err", err)
		os.Exit(1)
	}

	sessions := session.NewRegistry(func() *session.Handler {
		return session.NewHandler(session.Config{
			Provider:     provider,
			Model:        cfg.AIProvider,
			SystemPrompt: cfg.SystemPrompt,
			Window:       cfg.ChatContextWindowSize,
		})
	})

	bridge := stream.NewBridge(cfg.StreamKeepAlive)

	chatSvc := chat.NewService(repo, reg, chat.ServiceConfig{
		ProviderName: cfg.AIProvider,
		SystemPrompt: cfg.SystemPrompt,
		Window:       cfg.ChatContextWindowSize,
	}, log)

	var rabbit *rabbitmq.Publisher
	if cfg.RabbitURL != "" {
		rabbit, err = rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Warn("rabbitmq unavailable, async chat disabled", "err", err)
			rabbit = nil
		} else {
			defer rabbit.Close()
		}
	}

	h := handlers.NewHandler(cfg, sessions, bridge, chatSvc, usage, rabbit, log)
	router := httpapi.NewRouter(h, log)

	srv := &http.Server{Addr: cfg.Addr, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server listening", "addr", cfg.Addr, "provider", cfg.AIProvider, "keepalive", cfg.StreamKeepAlive.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("serve failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "err", err)
	}
}
