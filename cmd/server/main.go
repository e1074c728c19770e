package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"inkwell/backend/internal/api"
	"inkwell/backend/internal/config"
	"inkwell/backend/internal/logging"
	"inkwell/backend/internal/mcp"
	"inkwell/backend/internal/repository"
	"inkwell/backend/internal/services"
	"inkwell/backend/internal/tls"
)

func main() {
	var storeKind string

	rootCmd := &cobra.Command{
		Use:   "inkwell-server",
		Short: "Workflow orchestration service for multi-step AI writing pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), storeKind)
		},
	}
	rootCmd.Flags().StringVar(&storeKind, "store", "postgres", "Workflow store backend (postgres or memory)")

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func run(ctx context.Context, storeKind string) error {
	logger := logging.NewLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger.Info("Configuration loaded",
		"addr", cfg.Server.Addr,
		"store", storeKind,
		"optillm_url", cfg.OptiLLM.URL,
		"config_file", viper.ConfigFileUsed(),
	)

	logger.Info("Starting Inkwell Workflow Service")

	// Initialize the workflow store
	var store repository.WorkflowStore
	switch storeKind {
	case "memory":
		store = repository.NewMemoryWorkflowStore()
		logger.Warn("Using in-memory store; workflows will not survive a restart")
	case "postgres":
		dbPool, err := initDatabase(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		defer dbPool.Close()

		pgStore := repository.NewPostgresWorkflowStore(dbPool)
		if err := pgStore.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		store = pgStore
		logger.Info("Database connected")
	default:
		return fmt.Errorf("unknown store backend %q", storeKind)
	}

	// Initialize the service layer
	generator := services.NewOptiLLMClient(
		cfg.OptiLLM.URL, cfg.OptiLLM.APIKey, cfg.OptiLLM.DefaultModel,
		time.Duration(cfg.OptiLLM.TimeoutSecs)*time.Second,
	)
	humanizer := services.NewHTTPHumanizerClient(
		cfg.Humanizer.URL, cfg.Humanizer.APIKey,
		time.Duration(cfg.Humanizer.TimeoutSecs)*time.Second,
	)
	detector := services.NewGPTZeroClient(cfg.GPTZero.URL, cfg.GPTZero.APIKey)
	executor := services.NewStepExecutor(generator, humanizer, detector, services.NewTokenCounter())
	orchestrator := services.NewOrchestrator(store, executor, logger)
	workflowService := services.NewWorkflowService(store, logger)

	logger.Info("Service layer initialized")

	// Create Echo server
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Mount REST API handlers
	server := api.NewServer(workflowService, orchestrator, logger)
	server.Register(e.Group("/api/v1"))
	e.GET("/health", server.HandleHealth)

	logger.Info("REST API handlers mounted")

	// Mount MCP protocol handlers
	mcpServer := mcp.NewServer(workflowService, orchestrator)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	e.Any("/mcp/*", echo.WrapHandler(mcpHandlers))

	logger.Info("MCP protocol handlers mounted")

	addr := cfg.Server.Addr
	if cfg.TLS.Enable {
		addr = ":8443"
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
				logger.Error("TLS enabled but cert/key file not provided")
				serverErrors <- httpServer.ListenAndServe()
				return
			}
			if _, err := os.Stat(cfg.TLS.CertFile); os.IsNotExist(err) {
				if len(cfg.TLS.Hostnames) > 0 {
					if err := tls.GenerateSelfSignedCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames); err != nil {
						logger.Error("failed to generate self-signed cert", "error", err)
					}
				}
			}
			serverErrors <- httpServer.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- httpServer.ListenAndServe()
		}
	}()

	// Wait for shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := httpServer.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}

		logger.Info("Server stopped gracefully")
	}

	return nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection")

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
