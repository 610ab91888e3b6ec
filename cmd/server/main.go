package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/momoworks/momo-ops/internal/adapter/handler"
	"github.com/momoworks/momo-ops/internal/adapter/storage"
	"github.com/momoworks/momo-ops/internal/config"
	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/core/service"
	"github.com/momoworks/momo-ops/internal/port"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults to $MOMO_CONFIG)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, cache, closeBackends, err := openBackends(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "err", err)
		os.Exit(1)
	}

	svc := service.New(*cfg, store, cache, logger)

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(id, svc.Notifications.Queue(), svc.Notifications.Deliver, logger)
		}(i)
	}
	logger.Info("started notification workers", "count", cfg.WorkerCount)

	// Initialize gRPC server
	grpcServer := handler.NewGRPCServer(handler.NewGRPCHandler(svc, logger))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen", "addr", cfg.GRPCAddr, "err", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", "err", err)
		}
	}()

	// Initialize HTTP server
	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewHTTPHandler(svc, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "err", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown", "err", err)
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Close the notification queue and wait for workers
	svc.Notifications.Close()
	wg.Wait()
	logger.Info("workers stopped")

	closeBackends()
	logger.Info("connections closed")
}

// openBackends picks the store and cache named by cfg. The returned func
// closes whatever connections were opened.
func openBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (port.Store, port.CacheRepository, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var store port.Store
	switch cfg.StorageDriver {
	case "memory":
		store = storage.NewMemoryStore()
		logger.Warn("using in-memory storage; data is lost on exit")
	default:
		db, err := storage.OpenMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		closers = append(closers, func() { db.Close() })
		logger.Info("connected to mysql")

		if cfg.AutoMigrate {
			if err := storage.Migrate(ctx, db); err != nil {
				closeAll()
				return nil, nil, nil, fmt.Errorf("migrate: %w", err)
			}
			logger.Info("schema migrated")
		}
		store = storage.NewMySQLAdapter(db)
	}

	if cfg.RedisAddr == "" {
		return store, storage.NewMemoryCache(cfg.CacheFreshTTL, cfg.CacheStaleTTL), closeAll, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		closeAll()
		return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	closers = append(closers, func() { rdb.Close() })
	logger.Info("connected to redis")

	return store, storage.NewRedisAdapter(rdb, cfg.CacheFreshTTL, cfg.CacheStaleTTL, logger), closeAll, nil
}

func workerLoop(id int, queue <-chan domain.Notification, deliver func(context.Context, domain.Notification) error, logger *slog.Logger) {
	for n := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		if err := deliver(ctx, n); err != nil {
			logger.Error(fmt.Sprintf("worker %d: failed to save notification %s", id, n.ID),
				"recipient_id", n.RecipientID, "kind", n.Kind, "err", err)
		} else {
			logger.Debug(fmt.Sprintf("worker %d: saved notification %s", id, n.ID))
		}

		cancel()
	}
}
