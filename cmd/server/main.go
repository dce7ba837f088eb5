/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the allowance engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Build the logger
  3. Initialize SQLite store (optionally seeding default rules)
  4. Create API handler and router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080)
  -db         SQLite database path (default: allowance.db)
              Use ":memory:" for an in-memory database
  -env        dev|local for colored text logs, anything else for JSON
  -log-level  debug|info|warn|error (default: info)
  -seed       Store the default rule definitions on startup
  -origins    Comma-separated CORS origins

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -db=":memory:" -seed -env=dev -log-level=debug
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/warp/allowance-engine/api"
	"github.com/warp/allowance-engine/internal/obs"
	"github.com/warp/allowance-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "allowance.db", "SQLite database path")
	env := flag.String("env", "prod", "Runtime environment (dev|local|prod)")
	logLevel := flag.String("log-level", "info", "Log level (debug|info|warn|error)")
	seed := flag.Bool("seed", false, "Seed default rule definitions on startup")
	origins := flag.String("origins", "http://localhost:5173,http://localhost:8080", "Comma-separated CORS origins")
	flag.Parse()

	level, err := obs.ParseLevel(*logLevel)
	logger := obs.NewLogger(*env, level)
	slog.SetDefault(logger)
	if err != nil {
		logger.Warn("falling back to info level", slog.Any("error", err))
	}

	if err := run(logger, *port, *dbPath, *seed, strings.Split(*origins, ",")); err != nil {
		logger.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, port int, dbPath string, seed bool, origins []string) error {
	// Initialize store
	store, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	if seed {
		n, err := api.SeedDefaults(context.Background(), store)
		if err != nil {
			return err
		}
		logger.Info("seeded rule definitions", slog.Int("count", n))
	}

	handler := api.NewHandler(store, logger)
	router := api.NewRouter(handler, origins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", server.Addr), slog.String("db", dbPath))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
