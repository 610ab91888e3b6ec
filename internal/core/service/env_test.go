package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/momoworks/momo-ops/internal/adapter/storage"
	"github.com/momoworks/momo-ops/internal/config"
	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/port"
)

// Mock CacheRepository that never caches reads
type mockCacheRepo struct {
	mu             sync.Mutex
	idempotencySet map[string]bool
	invalidations  map[string]int
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{idempotencySet: map[string]bool{}, invalidations: map[string]int{}}
}

func (m *mockCacheRepo) Fetch(ctx context.Context, namespace, key string, load port.Loader) ([]byte, error) {
	return load(ctx)
}

func (m *mockCacheRepo) Invalidate(ctx context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidations[namespace]++
	return nil
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

type testEnv struct {
	svc   *Services
	store *storage.MemoryStore
	cache *mockCacheRepo
	now   time.Time

	shop  domain.Location // store
	house domain.Location // production house

	head, shopManager, shopStaff, houseManager domain.Employee
}

func (e *testEnv) principal(emp domain.Employee) domain.Principal {
	return domain.Principal{EmployeeID: emp.ID, Role: emp.Role, LocationID: emp.LocationID}
}

func (e *testEnv) setNow(t time.Time) {
	e.now = t
	e.svc.SetClock(func() time.Time { return e.now })
}

// drain returns the notifications queued so far.
func (e *testEnv) drain() []domain.Notification {
	var out []domain.Notification
	for {
		select {
		case n := <-e.svc.Notifications.Queue():
			out = append(out, n)
		default:
			return out
		}
	}
}

var testNow = time.Date(2024, time.March, 3, 10, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	cfg := config.Default()
	cfg.JWTSecret = "test-secret"
	cfg.AnonKey = "anon-key"

	st := storage.NewMemoryStore()
	cache := newMockCacheRepo()
	env := &testEnv{svc: New(cfg, st, cache, nil), store: st, cache: cache}
	env.setNow(testNow)

	env.head = domain.Employee{ID: "head", Name: "Tashi", Email: "tashi@momo.test", Role: domain.RoleClusterHead, Active: true, HourlyRate: decimal.NewFromInt(400)}
	env.shop = domain.Location{ID: "shop", Name: "Park Street", Kind: domain.LocationStore, ClusterHeadID: "head"}
	env.house = domain.Location{ID: "house", Name: "Central Kitchen", Kind: domain.LocationProductionHouse, ClusterHeadID: "head"}
	env.shopManager = domain.Employee{ID: "shop-mgr", Name: "Asha", Email: "asha@momo.test", Role: domain.RoleManager, ManagerID: "head", LocationID: "shop", Active: true, HourlyRate: decimal.NewFromInt(250)}
	env.houseManager = domain.Employee{ID: "house-mgr", Name: "Dorje", Email: "dorje@momo.test", Role: domain.RoleManager, ManagerID: "head", LocationID: "house", Active: true, HourlyRate: decimal.NewFromInt(250)}
	env.shopStaff = domain.Employee{ID: "shop-staff", Name: "Pema", Email: "pema@momo.test", Role: domain.RoleEmployee, ManagerID: "shop-mgr", LocationID: "shop", Active: true, HourlyRate: decimal.NewFromInt(120)}

	for _, loc := range []domain.Location{env.shop, env.house} {
		if err := st.CreateLocation(ctx, loc); err != nil {
			t.Fatalf("seed location: %v", err)
		}
	}
	for _, e := range []domain.Employee{env.head, env.shopManager, env.houseManager, env.shopStaff} {
		if err := st.CreateEmployee(ctx, e); err != nil {
			t.Fatalf("seed employee: %v", err)
		}
	}
	return env
}

func (e *testEnv) addItem(t *testing.T, locationID, sku string, initial, threshold int64) domain.InventoryItem {
	t.Helper()
	item := domain.InventoryItem{
		ID:              locationID + "-" + sku,
		LocationID:      locationID,
		SKU:             sku,
		Name:            sku,
		Category:        domain.CategoryFinishedGood,
		Unit:            "pcs",
		UnitCost:        decimal.NewFromInt(10),
		Threshold:       decimal.NewFromInt(threshold),
		InitialQuantity: decimal.NewFromInt(initial),
		CreatedAt:       e.now,
		UpdatedAt:       e.now,
	}
	if err := e.store.CreateItem(context.Background(), item); err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var errSerialization = errors.New("serialization failure")

// retryingStore runs every transaction twice, failing the first attempt the
// way a database reports a serialization conflict.
type retryingStore struct {
	*storage.MemoryStore
}

func (s retryingStore) Tx(ctx context.Context, fn func(tx port.Store) error) error {
	err := s.MemoryStore.Tx(ctx, func(tx port.Store) error {
		if err := fn(tx); err != nil {
			return err
		}
		return errSerialization
	})
	if !errors.Is(err, errSerialization) {
		return err
	}
	return s.MemoryStore.Tx(ctx, fn)
}

// retrying returns services over the same data whose transactions are retried once.
func (e *testEnv) retrying() *Services {
	svc := New(config.Default(), retryingStore{e.store}, e.cache, nil)
	svc.SetClock(func() time.Time { return e.now })
	return svc
}
