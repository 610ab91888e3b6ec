package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/momoworks/momo-ops/internal/adapter/storage"
	"github.com/momoworks/momo-ops/internal/config"
	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/core/service"
	"github.com/momoworks/momo-ops/internal/port"
)

func TestWorkerLoopPersistsNotifications(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	cfg.JWTSecret = "s"
	cfg.AnonKey = "a"
	st := storage.NewMemoryStore()
	svc := service.New(cfg, st, storage.NewMemoryCache(time.Minute, time.Hour), logger)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(id, svc.Notifications.Queue(), svc.Notifications.Deliver, logger)
		}(i)
	}

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		svc.Notifications.Notify(ctx, "asha", "shop", domain.NotifyLowStock, "MOMO-VEG is running low")
	}
	svc.Notifications.Close()
	wg.Wait()

	got, err := st.ListNotifications(ctx, port.NotificationFilter{RecipientID: "asha"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("expected 10 notifications, got %d", len(got))
	}
}

func TestWorkerLoopKeepsGoingAfterFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	queue := make(chan domain.Notification, 3)
	queue <- domain.Notification{ID: "1"}
	queue <- domain.Notification{ID: "2"}
	queue <- domain.Notification{ID: "3"}
	close(queue)

	var delivered []string
	workerLoop(0, queue, func(_ context.Context, n domain.Notification) error {
		if n.ID == "2" {
			return errors.New("db down")
		}
		delivered = append(delivered, n.ID)
		return nil
	}, logger)

	if len(delivered) != 2 || delivered[0] != "1" || delivered[1] != "3" {
		t.Errorf("expected 1 and 3 delivered, got %v", delivered)
	}
}

func TestOpenBackendsMemory(t *testing.T) {
	cfg := config.Default()
	cfg.StorageDriver = "memory"
	cfg.RedisAddr = ""

	store, cache, closeFn, err := openBackends(context.Background(), &cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("openBackends: %v", err)
	}
	defer closeFn()
	if _, ok := store.(*storage.MemoryStore); !ok {
		t.Errorf("expected memory store, got %T", store)
	}
	if _, ok := cache.(*storage.MemoryCache); !ok {
		t.Errorf("expected memory cache, got %T", cache)
	}
}
