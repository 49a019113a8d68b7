package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/amirrezam75/coinrace/gameserver"
	"github.com/amirrezam75/coinrace/pkg/logx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the variables directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	config := gameserver.DefaultConfig()
	if path := os.Getenv("COINRACE_CONFIG"); path != "" {
		loaded, err := gameserver.LoadConfig(path)
		if err != nil {
			return err
		}
		config = loaded
	}
	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return err
	}

	logx.NewLogger(config.Logging)
	defer logx.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logx.Logger.Infow(
		"starting coin race",
		zap.Float64("width", config.Game.Width),
		zap.Float64("height", config.Game.Height),
		zap.Duration("tickRate", config.Loop.TickRate),
		zap.Bool("publisher", config.Publisher.Redis.Host != ""),
	)

	if err := gameserver.NewGameServer(ctx, config).Run(ctx); err != nil {
		return err
	}

	logx.Logger.Infow("server stopped")
	return nil
}
