package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sni10/new-autotrade-sub001/internal/app"
)

func main() {
	// Secrets come from the environment; .env is a development nicety.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := app.NewApp()
	if err := engine.Initialize(ctx); err != nil {
		slog.Error("❌ bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}

	signals := make(chan app.TradeSignal)
	producer := app.NewSignalProducer(engine, 0)
	go producer.Run(ctx, signals)

	if err := engine.Run(ctx, signals); err != nil {
		slog.Error("engine stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}
