package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/memoirhq/memoir-engine/pkg/auth"
	"github.com/memoirhq/memoir-engine/pkg/config"
	"github.com/memoirhq/memoir-engine/pkg/database"
	"github.com/memoirhq/memoir-engine/pkg/handlers"
	"github.com/memoirhq/memoir-engine/pkg/llm"
	"github.com/memoirhq/memoir-engine/pkg/logging"
	"github.com/memoirhq/memoir-engine/pkg/mcp"
	"github.com/memoirhq/memoir-engine/pkg/mcp/tools"
	"github.com/memoirhq/memoir-engine/pkg/middleware"
	"github.com/memoirhq/memoir-engine/pkg/ratelimit"
	"github.com/memoirhq/memoir-engine/pkg/repositories"
	"github.com/memoirhq/memoir-engine/pkg/retry"
	"github.com/memoirhq/memoir-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.Bool("ai_configured", cfg.AI.IsConfigured()),
		zap.Bool("mcp_enabled", cfg.MCP.Enabled))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database can start after us during deploys, so retry the initial connect.
	var db *database.DB
	err = retry.Do(ctx, retry.DefaultConfig(), func() error {
		var connErr error
		db, connErr = database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.ConnectionString(),
			MaxConnections: cfg.Database.MaxConnections,
		})
		return connErr
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.String("error", logging.SanitizeError(err)))
	}

	// Remote generation client; nil when unconfigured, which turns the
	// extraction pipeline into a no-op.
	llmClient, err := llm.NewFromConfig(&cfg.AI, logger)
	if err != nil {
		logger.Fatal("Failed to create generation client", zap.Error(err))
	}
	if llmClient == nil {
		logger.Warn("No generation credential configured, memory extraction disabled")
	}

	entityRepo := repositories.NewEntityRepository(db)
	relationshipRepo := repositories.NewRelationshipRepository(db)
	storyRepo := repositories.NewStoryRepository(db)

	limiter := ratelimit.New(cfg.RateLimit.MaxCalls, cfg.RateLimit.Window)
	extractionService := services.NewExtractionService(llmClient, cfg.Extraction, cfg.AI.Temperature, logger)
	graphService := services.NewGraphService(entityRepo, relationshipRepo, logger)
	contextService := services.NewContextService(entityRepo, relationshipRepo, cfg.Extraction.ContextBudget, logger)

	queue := services.NewExtractionQueue(extractionService, graphService, limiter,
		cfg.Extraction.Workers, cfg.Extraction.QueueSize, logger)

	validator, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSURL:            cfg.Auth.JWKSURL,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	authMiddleware := auth.NewMiddleware(validator, logger)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	memoryHandler := handlers.NewMemoryHandler(extractionService, graphService, contextService, entityRepo, limiter, logger)
	memoryHandler.RegisterRoutes(mux, authMiddleware)

	storyHandler := handlers.NewStoryHandler(storyRepo, queue, logger)
	storyHandler.RegisterRoutes(mux, authMiddleware)

	if cfg.MCP.Enabled {
		mcpServer := mcp.NewServer("memoir-engine", cfg.Version, logger)
		tools.RegisterMemoryTools(mcpServer.MCP(), &tools.MemoryToolDeps{
			ContextService: contextService,
			GraphService:   graphService,
			EntityRepo:     entityRepo,
			Logger:         logger.Named("mcp"),
		})
		mux.Handle("/mcp", mcpServer.NewStreamableHTTPServer())
		logger.Info("MCP server mounted at /mcp")
	}

	server := &http.Server{
		Addr:    cfg.BindAddr + ":" + cfg.Port,
		Handler: middleware.RequestLogger(logger)(mux),
	}

	go func() {
		logger.Info("Starting memoir-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	// Let queued extraction runs finish before the pool closes.
	queue.Close()
	logger.Info("Shutdown complete")
}

// runMigrations opens a short-lived database/sql connection for golang-migrate.
// The pgx pool is kept separate so migration locks never tie up request
// connections.
func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	db, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return database.RunMigrations(db, cfg.Database.MigrationsPath, logger)
}
