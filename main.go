package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/colabtools/colabctl/internal/app"
	"github.com/colabtools/colabctl/internal/config"
	"github.com/colabtools/colabctl/internal/env"
	"github.com/colabtools/colabctl/internal/logger"
	"github.com/colabtools/colabctl/internal/version"
)

func main() {
	vlog := log.New(os.Stderr, "", 0)
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.PrintVersionInfo(true, vlog)
		os.Exit(0)
	}

	lcfg := buildLoggerConfig()
	logInstance, styledLogger, cleanup, err := logger.NewWithTheme(lcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	slog.SetDefault(logInstance)

	// a signal cancels the command context, which aborts in-flight
	// executions cleanly
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		styledLogger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	application := app.New(ctx, styledLogger)
	if err := application.Execute(os.Args[1:]); err != nil {
		styledLogger.Error(err.Error())
		os.Exit(1)
	}
}

// buildLoggerConfig creates logger config from environment variables
// with defaults; full config is not loaded yet at this point
func buildLoggerConfig() *logger.Config {
	return &logger.Config{
		Level:      env.GetEnvOrDefault("COLAB_LOG_LEVEL", "info"),
		FileOutput: env.GetEnvBoolOrDefault("COLAB_FILE_OUTPUT", false),
		LogDir:     env.GetEnvOrDefault("COLAB_LOG_DIR", config.DefaultStateDir()),
		MaxSize:    env.GetEnvIntOrDefault("COLAB_MAX_SIZE", 10),
		MaxBackups: env.GetEnvIntOrDefault("COLAB_MAX_BACKUPS", 3),
		MaxAge:     env.GetEnvIntOrDefault("COLAB_MAX_AGE", 28),
		Theme:      env.GetEnvOrDefault("COLAB_THEME", "default"),
	}
}
