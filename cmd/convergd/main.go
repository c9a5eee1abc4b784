// Convergd is the confidence convergence and score normalization daemon.
//
// It serves the convergence engine, the score bridge, the analysis-history
// store, and vector similarity search over an HTTP API, with optional NATS
// event publishing on convergence decisions.
//
// Configuration is loaded from ~/.config/convergd/config.yaml and
// overridden by CONVERGD_* environment variables. See internal/config.
//
// Usage:
//
//	# Start with defaults
//	convergd
//
//	# Explicit config file
//	convergd --config /etc/convergd/config.yaml
//
//	# Show version
//	convergd version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	otellog "go.opentelemetry.io/otel/log"
	"go.uber.org/zap"

	"github.com/chakssp/convergd/internal/config"
	"github.com/chakssp/convergd/internal/embeddings"
	"github.com/chakssp/convergd/internal/events"
	"github.com/chakssp/convergd/internal/history"
	"github.com/chakssp/convergd/internal/knowledge"
	"github.com/chakssp/convergd/internal/logging"
	"github.com/chakssp/convergd/internal/server"
	"github.com/chakssp/convergd/internal/telemetry"
	"github.com/chakssp/convergd/internal/vectorstore"
	"github.com/chakssp/convergd/pkg/convergence"
	"github.com/chakssp/convergd/pkg/normalize"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/convergd/config.yaml)")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  convergd           Start the convergd daemon\n")
			fmt.Fprintf(os.Stderr, "  convergd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("convergd: %v", err)
	}
}

func printVersion() {
	fmt.Printf("convergd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run initializes all dependencies and blocks until the context is
// cancelled or the HTTP server fails:
//
//  1. Configuration, telemetry, and the structured logger
//  2. The category registry (with optional file watching)
//  3. The history store, convergence engine, and score bridge
//  4. The vector search collaborator and event publisher (both optional)
//  5. The HTTP server, with graceful shutdown on signal
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	var otelProvider otellog.LoggerProvider
	if cfg.Observability.EnableTelemetry {
		tcfg := telemetry.NewDefaultConfig()
		tcfg.Enabled = true
		tcfg.ServiceName = cfg.Observability.ServiceName
		tcfg.ServiceVersion = version

		tel, err := telemetry.New(ctx, tcfg)
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer func() {
			if err := tel.Shutdown(context.Background()); err != nil {
				log.Printf("telemetry shutdown: %v", err)
			}
		}()
		otelProvider = tel.LoggerProvider()
	}

	appLogger, err := logging.NewLogger(logging.NewDefaultConfig(), otelProvider)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	logger := appLogger.Underlying()
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("starting convergd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("history_provider", cfg.History.Provider),
		zap.String("vector_store", cfg.VectorStore.Provider),
		zap.Bool("events", cfg.Events.Enabled))

	// Category registry. A missing registry file is not fatal; the engine
	// falls back to neutral category alignment.
	registry := knowledge.NewRegistry(logger)
	registryPath, err := config.ExpandPath(cfg.Knowledge.Path)
	if err != nil {
		return fmt.Errorf("resolving registry path: %w", err)
	}
	if err := registry.Load(registryPath); err != nil {
		logger.Warn("category registry unavailable",
			zap.String("path", registryPath), zap.Error(err))
	}
	if cfg.Knowledge.Watch {
		watcher, err := knowledge.NewWatcher(registry, registryPath, logger)
		if err != nil {
			logger.Warn("registry watcher unavailable", zap.Error(err))
		} else {
			watcher.Start(ctx)
			defer watcher.Stop()
		}
	}

	histStore, err := history.New(cfg.History, logger)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer func() {
		if err := histStore.Close(); err != nil {
			logger.Warn("closing history store", zap.Error(err))
		}
	}()

	engine, err := convergence.NewService(
		convergence.WithConfig(cfg.Engine.Evaluation),
		convergence.WithWeights(cfg.Engine.Weights),
		convergence.WithCache(convergence.NewCache(cfg.Engine.CacheTTL, cfg.Engine.CacheMaxEntries)),
		convergence.WithCategorySource(registry),
		convergence.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("creating convergence engine: %w", err)
	}

	normalizer, err := normalize.NewService(
		normalize.WithMethod(cfg.NormalizeMethod()),
		normalize.WithCalibration(cfg.Normalize.Calibration),
		normalize.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("creating score bridge: %w", err)
	}

	// The vector search collaborator is best-effort: without it the search
	// routes answer 503 and identity resolution takes inline records only.
	var search vectorstore.Store
	if embedder, err := embeddings.New(cfg.Embeddings, logger); err != nil {
		logger.Warn("embeddings provider unavailable, search disabled", zap.Error(err))
	} else if search, err = vectorstore.New(cfg.VectorStore, embedder, logger); err != nil {
		logger.Warn("vector store unavailable, search disabled", zap.Error(err))
		search = nil
	}
	if search != nil {
		defer func() {
			if err := search.Close(); err != nil {
				logger.Warn("closing vector store", zap.Error(err))
			}
		}()
	}

	publisher, err := events.New(cfg.Events, logger)
	if err != nil {
		logger.Warn("event publisher unavailable, events disabled", zap.Error(err))
		publisher = nil
	}
	defer publisher.Close()

	srv, err := server.NewServer(server.Config{Port: cfg.Server.Port}, server.Dependencies{
		Engine:     engine,
		Normalizer: normalizer,
		History:    histStore,
		Registry:   registry,
		Search:     search,
		Events:     publisher,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
