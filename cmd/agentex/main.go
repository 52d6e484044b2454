package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nichedotsol/agentex/internal/auth"
	"github.com/nichedotsol/agentex/internal/build"
	"github.com/nichedotsol/agentex/internal/catalog"
	"github.com/nichedotsol/agentex/internal/config"
	"github.com/nichedotsol/agentex/internal/deploy"
	"github.com/nichedotsol/agentex/internal/generate"
	"github.com/nichedotsol/agentex/internal/mcp"
	"github.com/nichedotsol/agentex/internal/ratelimit"
	"github.com/nichedotsol/agentex/internal/redact"
	"github.com/nichedotsol/agentex/internal/server"
	"github.com/nichedotsol/agentex/internal/telemetry"
	"github.com/nichedotsol/agentex/internal/validator"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	// Info until the config is loaded; run applies AGENTEX_LOG_LEVEL.
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, level); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger, level *slog.LevelVar) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level.Set(cfg.SlogLevel())

	slog.Info("agentex starting", "version", version, "port", cfg.Port, "store", cfg.StoreBackend)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, true)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Load the tool catalog: embedded specs by default, a directory override
	// for operators shipping their own.
	var cat *catalog.Catalog
	if cfg.ToolsDir != "" {
		cat, err = catalog.LoadFS(os.DirFS(cfg.ToolsDir), logger)
	} else {
		cat, err = catalog.Load(logger)
	}
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	logger.Info("tool catalog loaded", "tools", cat.Len())

	// Open the build store.
	store, err := newStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer func() { _ = store.Close() }()

	// Create JWT manager.
	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	redactor := redact.New(cfg.RedactKeySubstrings)

	// Build runner: drives generation jobs to a terminal state.
	runner := build.NewRunner(store, generate.NewTemplateGenerator(), cat, build.RunnerOptions{
		BaseURL:       cfg.BaseURL,
		JobTimeout:    cfg.GenerateTimeout,
		MaxConcurrent: cfg.MaxConcurrentJobs,
		EstimatedTime: cfg.GenerateEstimate,
		Logger:        logger,
	})

	// Deployment dispatcher.
	dispatcher := deploy.NewDispatcher(store, deploy.Options{
		BaseURL: cfg.BaseURL,
		Logger:  logger,
	})

	// Retention sweeper.
	go build.RunSweeper(ctx, store, cfg.SweepInterval, cfg.Retention, logger)

	v := validator.New(cat)

	// MCP server, mounted at /mcp by the HTTP server.
	mcpSrv := mcp.New(cat, v, store, redactor, logger)

	// Rate limiter.
	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		mem := ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		defer func() { _ = mem.Close() }()
		limiter = mem
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		logger.Info("rate limiting: disabled")
	}

	srv := server.New(server.ServerConfig{
		Store:               store,
		Catalog:             cat,
		Validator:           v,
		Runner:              runner,
		Dispatcher:          dispatcher,
		JWTMgr:              jwtMgr,
		Logger:              logger,
		Limiter:             limiter,
		MCPServer:           mcpSrv.MCPServer(),
		Redactor:            redactor,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		BaseURL:             cfg.BaseURL,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	// Start HTTP server in background.
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	// Graceful shutdown. Stop accepting requests first, then let in-flight
	// builds and deployments finish their terminal writes.
	slog.Info("agentex shutting down")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	httpCancel()

	runner.Close()
	dispatcher.Close()

	slog.Info("agentex stopped")
	return nil
}

// newStore opens the configured build store backend.
func newStore(ctx context.Context, cfg config.Config) (build.Store, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		return build.NewSQLiteStore(ctx, cfg.SQLitePath)
	case "postgres":
		return build.NewPostgresStore(ctx, cfg.DatabaseURL)
	default:
		return build.NewMemoryStore(), nil
	}
}
