package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/momoworks/momo-ops/internal/adapter/storage"
	"github.com/momoworks/momo-ops/internal/config"
	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/core/service"
	"github.com/momoworks/momo-ops/internal/port"
)

const (
	initialStock  = 20
	totalRequests = 50
	queueSize     = 100
)

func main() {
	dsn := flag.String("mysql", "", "MySQL DSN; empty runs against the in-memory store")
	flag.Parse()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	var store port.Store = storage.NewMemoryStore()
	if *dsn != "" {
		db, err := storage.OpenMySQL(ctx, *dsn)
		if err != nil {
			log.Fatalf("failed to connect mysql: %v", err)
		}
		defer db.Close()
		if err := storage.Migrate(ctx, db); err != nil {
			log.Fatalf("failed to migrate: %v", err)
		}
		store = storage.NewMySQLAdapter(db)
	}

	cfg := config.Default()
	cfg.JWTSecret = "stress"
	cfg.AnonKey = "stress"
	cfg.QueueSize = queueSize
	svc := service.New(cfg, store, storage.NewMemoryCache(cfg.CacheFreshTTL, cfg.CacheStaleTTL), logger)
	defer svc.Notifications.Close()

	// Drain the notification queue in background
	go func() {
		for range svc.Notifications.Queue() {
		}
	}()

	// Fresh store and item for every run
	suffix := uuid.NewString()[:8]
	now := time.Now().UTC()
	loc := domain.Location{ID: "stress-" + suffix, Name: "Stress " + suffix, Kind: domain.LocationStore, CreatedAt: now}
	if err := store.CreateLocation(ctx, loc); err != nil {
		log.Fatalf("failed to create location: %v", err)
	}
	item := domain.InventoryItem{
		ID:              uuid.NewString(),
		LocationID:      loc.ID,
		SKU:             "MOMO-" + suffix,
		Name:            "Veg momo",
		Category:        domain.CategoryFinishedGood,
		Unit:            "plate",
		InitialQuantity: decimal.NewFromInt(initialStock),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := store.CreateItem(ctx, item); err != nil {
		log.Fatalf("failed to create item: %v", err)
	}

	staff := domain.Principal{EmployeeID: "stress-staff", Role: domain.RoleEmployee, LocationID: loc.ID}

	// Counters
	var successCount atomic.Int32
	var refusedCount atomic.Int32
	var errorCount atomic.Int32

	// Spawn concurrent consumptions
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := svc.Inventory.RecordMovement(ctx, staff, item.ID, service.MovementInput{
				Kind:     domain.MovementConsumption,
				Quantity: decimal.NewFromInt(1),
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, service.ErrInsufficientStock):
				refusedCount.Add(1)
			default:
				errorCount.Add(1)
				log.Printf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	refused := refusedCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Refused:          %d\n", refused)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialStock && refused == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d consumptions succeeded, %d refused\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d refused, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, refused)
	}

	// Verify the ledger
	rows, err := svc.Inventory.Summary(ctx, loc.ID, domain.MonthOf(time.Now().UTC()))
	if err != nil {
		log.Fatalf("failed to read summary: %v", err)
	}
	if len(rows) == 1 && rows[0].Closing.IsZero() {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected closing stock 0, got %+v\n", rows)
	}
}
