/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Initialize SQLite store
  3. Pick the earnings cache backend (sqlite, redis, memory)
  4. Create payroll service and API handler
  5. Start the drift scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database
  -cache   Cache backend: sqlite, redis, memory (overrides CACHE_BACKEND)

ENVIRONMENT:
  PORT, APP_ENV, LOG_LEVEL, DB_PATH, CACHE_BACKEND, CACHE_TTL,
  REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, DRIFT_CHECK_INTERVAL
  See config/config.go for defaults.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the drift scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database and cache connections

EXAMPLES:
  # Run with file database
  ./server -db="./data/payroll.db"

  # Run with in-memory database and cache
  ./server -db=":memory:" -cache=memory

  # Share the earnings cache through redis
  REDIS_ADDR=localhost:6379 ./server -cache=redis

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
  - store/rediscache/rediscache.go: Redis cache
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/generic"
	memstore "github.com/warp/payroll-engine/generic/store"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/rediscache"
	"github.com/warp/payroll-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override the environment
	port := flag.Int("port", cfg.App.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DB.Path, "SQLite database path")
	cacheBackend := flag.String("cache", cfg.Cache.Backend, "Earnings cache backend (sqlite, redis, memory)")
	flag.Parse()

	cfg.App.Port = *port
	cfg.DB.Path = *dbPath
	cfg.Cache.Backend = *cacheBackend
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := api.NewLogger(cfg.SlogLevel(), cfg.App.Env)
	slog.SetDefault(logger)

	// Initialize store
	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Pick cache
	var (
		snapshots generic.SnapshotStore = store
		cache     api.Resetter
	)
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		rdb, err := rediscache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		rc := rediscache.New(rdb, cfg.Cache.TTL)
		snapshots, cache = rc, rc
	case config.CacheMemory:
		mem := memstore.NewMemory()
		snapshots, cache = mem, mem
	}

	// Initialize service and handler
	svc := payroll.NewService(store, snapshots, logger)
	handler := api.NewHandler(store, svc, logger)
	handler.Cache = cache

	// Drift checks
	scheduler := api.NewDriftScheduler(handler.Drift, cfg.Drift.Interval)
	scheduler.Start()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.Int("port", cfg.App.Port),
			slog.String("db", cfg.DB.Path),
			slog.String("cache", cfg.Cache.Backend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("server stopped")
}
