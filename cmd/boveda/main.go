package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/realarmaansidhu/NuestraBoveda/common/environment"
	"github.com/realarmaansidhu/NuestraBoveda/common/version"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/app"
)

func main() {
	// Read .env before the logger so BOVEDA_LOG_* from the file apply.
	loadedDotEnv := godotenv.Load() == nil

	slog.SetDefault(newLogger())
	if loadedDotEnv {
		slog.Info("loaded environment from .env file")
	}

	slog.Info("NuestraBoveda starting", "version", version.Version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	boveda, err := app.New(ctx, app.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize NuestraBoveda: %v\n", err)
		os.Exit(1)
	}
	defer boveda.Close()

	if err := boveda.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error running NuestraBoveda: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger from BOVEDA_LOG_FORMAT (text or
// json) and BOVEDA_LOG_LEVEL (debug, info, warn, error).
func newLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(environment.StringOr("BOVEDA_LOG_LEVEL", "info")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(environment.StringOr("BOVEDA_LOG_FORMAT", "text")) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
