package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aigoflow/edubot/internal/config"
	"github.com/aigoflow/edubot/internal/ui"
	"github.com/aigoflow/edubot/pkg/client"
)

func main() {
	var (
		envFile    = flag.String("env", "", "Optional .env file to load")
		configFile = flag.String("config", "", "Optional TOML config file")
	)
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.LoadWithFile(*envFile, *configFile)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	app := ui.NewApp(client.NewHTTPClient(cfg.BackendURL))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	slog.Info("UI starting", "addr", cfg.UIAddr, "backend", cfg.BackendURL)
	if err := app.Listen(cfg.UIAddr); err != nil {
		slog.Error("UI server failed", "error", err)
		os.Exit(1)
	}
}
