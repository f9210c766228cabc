/*
main.go - Plan service entry point

PURPOSE:
  Runs the reference PeruGo plan service the reservation client talks to.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Initialize SQLite store
  3. Load the embedded destination catalog
  4. Create API handler with dependencies
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -addr    Listen address (default: HTTP_ADDR, PORT or :8080)
  -db      SQLite database path (default: DB_PATH or perugo.db)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/perugo.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on different port
  PORT=3000 ./server

ENVIRONMENT:
  See config/config.go.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/perugo/reservation-engine/api"
	"github.com/perugo/reservation-engine/catalog"
	"github.com/perugo/reservation-engine/config"
	"github.com/perugo/reservation-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags
	addr := flag.String("addr", cfg.Server.HTTPAddr, "HTTP listen address")
	dbPath := flag.String("db", cfg.Server.DBPath, "SQLite database path")
	flag.Parse()

	logger := cfg.Logger().With("app", "perugo-server")
	slog.SetDefault(logger)

	if cfg.Server.JWTSecret == config.DevSecret {
		logger.Warn("JWT_SECRET not set, signing tokens with the development secret")
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	cat, err := catalog.Default()
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}

	// Initialize handler
	handler := api.NewHandler(store, cat, api.NewTokens(cfg.Server.JWTSecret, cfg.Server.TokenTTL))
	handler.Logger = logger

	// Create router
	router := api.NewRouter(handler, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	})

	// Create server
	server := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", "addr", *addr, "db", *dbPath, "destinations", len(cat.All()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("server stopped")
}
