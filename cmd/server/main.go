/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Vero Finance engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Create API handler with dependencies
  4. Start the background settlement scheduler
  5. Start server with graceful shutdown

CONFIGURATION:
  Flags override environment variables; environment variables override
  defaults. A .env file in the working directory is loaded first.

  -port / PORT              HTTP server port (default: 8080)
  -db / DATABASE_PATH       SQLite database path (default: vero.db)
                            Use ":memory:" for an in-memory database
  -sweep / SWEEP_INTERVAL   Settlement sweep interval (default: 1m)
  -log-level / LOG_LEVEL    logrus level (default: info)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the settlement scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/vero.db"

  # Run with in-memory database and a fast sweep
  ./server -db=":memory:" -sweep=5s

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Background settlement
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/vero/finance-engine/api"
	"github.com/vero/finance-engine/rates"
	"github.com/vero/finance-engine/store/sqlite"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// .env is optional; absence is not an error
	_ = godotenv.Load()

	port := flag.String("port", getEnv("PORT", "8080"), "HTTP server port")
	dbPath := flag.String("db", getEnv("DATABASE_PATH", "vero.db"), "SQLite database path")
	sweep := flag.String("sweep", getEnv("SWEEP_INTERVAL", "1m"), "settlement sweep interval")
	logLevel := flag.String("log-level", getEnv("LOG_LEVEL", "info"), "log level")
	flag.Parse()

	log := logrus.StandardLogger()
	if level, err := logrus.ParseLevel(*logLevel); err == nil {
		log.SetLevel(level)
	}

	sweepInterval, err := time.ParseDuration(*sweep)
	if err != nil {
		log.Fatalf("Invalid sweep interval %q: %v", *sweep, err)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize handler and background settlement
	handler := api.NewHandler(store, rates.NewClient(log))

	scheduler := api.NewSettlementScheduler(handler.Settler)
	scheduler.CheckInterval = sweepInterval
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Server starting on http://localhost:%s", *port)
		log.Infof("API available at http://localhost:%s/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped")
}
