package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/momoworks/momo-ops/internal/adapter/storage"
	"github.com/momoworks/momo-ops/internal/config"
	"github.com/momoworks/momo-ops/internal/core/domain"
)

type integrationEnv struct {
	svc     *Services
	db      *sql.DB
	store   *storage.MySQLAdapter
	cleanup func()
}

func setupIntegrationEnv(t *testing.T) *integrationEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/momo?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	db, err := storage.OpenMySQL(ctx, mysqlDSN)
	if err != nil {
		rdb.Close()
		t.Skipf("MySQL not available: %v", err)
	}
	if err := storage.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Default()
	cfg.JWTSecret = "integration-secret"
	cfg.AnonKey = "integration-anon"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMySQLAdapter(db)
	cache := storage.NewRedisAdapter(rdb, cfg.CacheFreshTTL, cfg.CacheStaleTTL, logger)

	return &integrationEnv{
		svc:   New(cfg, store, cache, logger),
		db:    db,
		store: store,
		cleanup: func() {
			rdb.Close()
			db.Close()
		},
	}
}

// seedPair creates a fresh store and production house so runs never collide.
func (e *integrationEnv) seedPair(t *testing.T) (shop, house domain.Location) {
	t.Helper()
	ctx := context.Background()
	suffix := uuid.NewString()[:8]
	shop = domain.Location{ID: "shop-" + suffix, Name: "Shop " + suffix, Kind: domain.LocationStore, CreatedAt: time.Now().UTC()}
	house = domain.Location{ID: "house-" + suffix, Name: "House " + suffix, Kind: domain.LocationProductionHouse, CreatedAt: time.Now().UTC()}
	for _, loc := range []domain.Location{shop, house} {
		if err := e.store.CreateLocation(ctx, loc); err != nil {
			t.Fatalf("seed location: %v", err)
		}
	}
	return shop, house
}

func (e *integrationEnv) seedItem(t *testing.T, locationID, sku string, initial int64) domain.InventoryItem {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	item := domain.InventoryItem{
		ID:              uuid.NewString(),
		LocationID:      locationID,
		SKU:             sku,
		Name:            sku,
		Category:        domain.CategoryFinishedGood,
		Unit:            "pcs",
		UnitCost:        decimal.NewFromInt(10),
		Threshold:       decimal.Zero,
		InitialQuantity: decimal.NewFromInt(initial),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.store.CreateItem(context.Background(), item); err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item
}

// deliverLoop persists queued notifications the way the server's workers do.
func deliverLoop(svc *NotificationService) {
	for n := range svc.Queue() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = svc.Deliver(ctx, n)
		cancel()
	}
}

func TestIntegration_ConcurrentConsumptionNeverOversells(t *testing.T) {
	env := setupIntegrationEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	shop, _ := env.seedPair(t)
	initialStock := 10
	item := env.seedItem(t, shop.ID, "MOMO-VEG", int64(initialStock))

	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		deliverLoop(env.svc.Notifications)
	}()

	staff := domain.Principal{EmployeeID: "staff-" + shop.ID, Role: domain.RoleEmployee, LocationID: shop.ID}
	var successCount, conflictCount atomic.Int32
	var wg sync.WaitGroup
	totalRequests := 25
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Inventory.RecordMovement(ctx, staff, item.ID, MovementInput{
				Kind:     domain.MovementConsumption,
				Quantity: decimal.NewFromInt(1),
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, ErrInsufficientStock):
				conflictCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	env.svc.Notifications.Close()
	workers.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successful movements, got %d", initialStock, successCount.Load())
	}
	if conflictCount.Load() != int32(totalRequests-initialStock) {
		t.Errorf("expected %d refusals, got %d", totalRequests-initialStock, conflictCount.Load())
	}

	rows, err := env.svc.Inventory.Summary(ctx, shop.ID, domain.MonthOf(time.Now().UTC()))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(rows) != 1 || !rows[0].Closing.IsZero() {
		t.Errorf("expected stock depleted to 0, got %+v", rows)
	}
}

func TestIntegration_IdempotentProductionRequest(t *testing.T) {
	env := setupIntegrationEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	shop, house := env.seedPair(t)
	env.seedItem(t, house.ID, "MOMO-CHK", 50)
	go deliverLoop(env.svc.Notifications)
	defer env.svc.Notifications.Close()

	staff := domain.Principal{EmployeeID: "staff-" + shop.ID, Role: domain.RoleEmployee, LocationID: shop.ID}
	in := ProductionRequestInput{
		StoreID:           shop.ID,
		ProductionHouseID: house.ID,
		Lines:             []RequestLineInput{{SKU: "MOMO-CHK", Quantity: decimal.NewFromInt(20)}},
	}
	key := "submit-" + uuid.NewString()

	if _, err := env.svc.Production.Create(ctx, staff, key, in); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := env.svc.Production.Create(ctx, staff, key, in); !errors.Is(err, ErrDuplicateRequest) {
		t.Errorf("expected ErrDuplicateRequest, got: %v", err)
	}

	var count int
	if err := env.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM production_requests WHERE store_id = ?`, shop.ID).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 stored request, got %d", count)
	}
}
