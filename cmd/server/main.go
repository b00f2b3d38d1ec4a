package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/aigoflow/edubot/internal/config"
	"github.com/aigoflow/edubot/internal/llm"
	"github.com/aigoflow/edubot/internal/repository"
	"github.com/aigoflow/edubot/internal/services"
	"github.com/aigoflow/edubot/internal/store"
	"github.com/aigoflow/edubot/pkg/server"
)

func main() {
	var (
		envFile    = flag.String("env", "", "Optional .env file to load")
		configFile = flag.String("config", "", "Optional TOML config file")
		verbose    = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	cfg, err := config.LoadWithFile(*envFile, *configFile)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	dsn := cfg.DBPath
	if cfg.DBDriver == "postgres" {
		dsn = cfg.PGConn
	} else {
		_ = os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
	}
	db, err := store.OpenDriver(cfg.DBDriver, dsn)
	if err != nil {
		slog.Error("Failed to open database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := repository.NewSQLRepository(db)
	event := func(level, code, msg string, meta map[string]interface{}) {
		if err := repo.Event().LogEvent(context.Background(), level, code, msg, meta); err != nil {
			slog.Warn("Failed to store event", "code", code, "error", err)
		}
	}

	event("info", "startup", "Server starting", map[string]interface{}{
		"model_name": cfg.ModelName,
		"http_addr":  cfg.HTTPAddr,
		"db_driver":  cfg.DBDriver,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	event("info", "model.loading", "Model loading started", map[string]interface{}{
		"model_dir":   cfg.ModelDir,
		"runtime_url": cfg.RuntimeURL,
	})

	// The model handle is loaded once and shared read-only by every request.
	model, err := llm.Load(ctx, llm.Config{
		ModelDir:   cfg.ModelDir,
		ModelName:  cfg.ModelName,
		RuntimeURL: cfg.RuntimeURL,
		APIKey:     cfg.RuntimeAPIKey,
	})
	if err != nil {
		event("error", "model.failed", "Model loading failed", map[string]interface{}{
			"model_dir": cfg.ModelDir,
			"error":     err.Error(),
		})
		slog.Error("Failed to load model", "error", err)
		db.Close()
		os.Exit(1)
	}

	event("info", "model.loaded", "Model loaded successfully", map[string]interface{}{
		"model_dir":  cfg.ModelDir,
		"model_type": model.Artifacts().ModelType,
		"eos_token":  model.Artifacts().EOSToken,
	})
	if model.Artifacts().IsSpecial(cfg.SepToken) {
		slog.Warn("Separator is a special token and is removed on decode; answers will be the full decoded text",
			"sep_token", cfg.SepToken)
	}

	maxNewTokens, err := model.Artifacts().TokenBudget(cfg.MaxNewTokens, cfg.MaxNewTokensSet)
	if err != nil {
		event("error", "model.failed", "Token budget does not fit the model", map[string]interface{}{
			"max_new_tokens": cfg.MaxNewTokens,
			"error":          err.Error(),
		})
		slog.Error("Invalid token budget", "error", err)
		db.Close()
		os.Exit(1)
	}
	slog.Info("Token budget resolved", "max_new_tokens", maxNewTokens, "from_config", cfg.MaxNewTokensSet)

	chat := services.NewChatService(model, repo, services.ChatOptions{
		Separator:    cfg.SepToken,
		MaxNewTokens: maxNewTokens,
		CacheTTL:     cfg.AnswerCacheTTL,
	})
	defer chat.Close()

	if cfg.NatsURL != "" {
		natsService, err := services.NewNATSService(cfg, chat)
		if err != nil {
			event("error", "nats.failed", "NATS service initialization failed", map[string]interface{}{
				"nats_url": cfg.NatsURL,
				"error":    err.Error(),
			})
			slog.Error("Failed to create NATS service", "error", err)
			db.Close()
			os.Exit(1)
		}
		defer natsService.Close()

		healthService := services.NewHealthService(natsService.GetConnection(), cfg, model.Artifacts().ModelType, natsService.GetMonitoringService())

		go func() {
			if err := natsService.Start(ctx); err != nil {
				event("error", "nats.failed", "NATS service failed", map[string]interface{}{"error": err.Error()})
				slog.Error("NATS service failed", "error", err)
			}
		}()
		go func() {
			if err := healthService.Start(ctx); err != nil {
				event("error", "health.failed", "Health service failed", map[string]interface{}{"error": err.Error()})
				slog.Error("Health service failed", "error", err)
			}
		}()
	}

	event("info", "server.ready", "Server ready to accept requests", map[string]interface{}{
		"http_addr":  cfg.HTTPAddr,
		"model_name": cfg.ModelName,
		"nats_url":   cfg.NatsURL,
	})

	if err := server.NewServer(cfg.HTTPAddr, chat).Start(ctx); err != nil {
		event("error", "http.failed", "HTTP server failed", map[string]interface{}{"error": err.Error()})
		slog.Error("HTTP server failed", "error", err)
		cancel()
		return
	}

	event("info", "shutdown", "Server stopped", nil)
	slog.Info("Shutting down server")
}
