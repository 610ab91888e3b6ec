package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/port"
)

func TestMemoryStore_ItemVersioning(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	item := newTestItem("loc-1")

	if err := s.CreateItem(ctx, item); err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}
	if err := s.CreateItem(ctx, item); !errors.Is(err, port.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	item.Name = "Veg momo"
	if err := s.UpdateItem(ctx, item); err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}
	if err := s.UpdateItem(ctx, item); !errors.Is(err, port.ErrOptimisticLock) {
		t.Errorf("expected ErrOptimisticLock on stale version, got %v", err)
	}

	got, _ := s.GetItem(ctx, item.ID)
	if got.Version != 1 || got.Name != "Veg momo" {
		t.Errorf("unexpected stored item %+v", got)
	}
}

func TestMemoryStore_GetMissingReturnsNil(t *testing.T) {
	s := NewMemoryStore()
	got, err := s.GetEmployee(context.Background(), "nobody")
	if err != nil || got != nil {
		t.Errorf("expected (nil, nil), got (%v, %v)", got, err)
	}
	if err := s.DeleteLocation(context.Background(), "nowhere"); !errors.Is(err, port.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_TxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	boom := errors.New("boom")

	err := s.Tx(ctx, func(tx port.Store) error {
		if err := tx.CreateLocation(ctx, domain.Location{ID: "l1", Name: "Park St", Kind: domain.LocationStore}); err != nil {
			return err
		}
		// nested transactions join the outer one
		return tx.Tx(ctx, func(inner port.Store) error {
			if err := inner.CreateMovement(ctx, domain.StockMovement{ID: "m1", ItemID: "i1", LocationID: "l1", Kind: domain.MovementPurchase, Quantity: decimal.NewFromInt(3)}); err != nil {
				return err
			}
			return boom
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if loc, _ := s.GetLocation(ctx, "l1"); loc != nil {
		t.Error("expected location insert to be rolled back")
	}
	if n, _ := s.CountMovements(ctx, "i1"); n != 0 {
		t.Errorf("expected no movements after rollback, got %d", n)
	}
}

func TestMemoryStore_RollbackKeepsConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	boom := errors.New("boom")

	started := make(chan struct{})
	written := make(chan error, 1)
	go func() {
		<-started
		written <- s.CreateNotification(ctx, domain.Notification{ID: "n1", RecipientID: "e1", Kind: domain.NotifyLowStock})
	}()

	err := s.Tx(ctx, func(tx port.Store) error {
		if err := tx.CreateLocation(ctx, domain.Location{ID: "l1", Name: "Park St", Kind: domain.LocationStore}); err != nil {
			return err
		}
		close(started)
		time.Sleep(20 * time.Millisecond)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := <-written; err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}

	got, _ := s.ListNotifications(ctx, port.NotificationFilter{RecipientID: "e1"})
	if len(got) != 1 {
		t.Errorf("expected the notification written during the tx to survive, got %d", len(got))
	}
	if loc, _ := s.GetLocation(ctx, "l1"); loc != nil {
		t.Error("expected location insert to be rolled back")
	}
}

func TestMemoryStore_MovementFilterRange(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	day := func(d int) time.Time { return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC) }

	for i, d := range []int{1, 10, 31} {
		s.CreateMovement(ctx, domain.StockMovement{
			ID: string(rune('a' + i)), ItemID: "i1", LocationID: "l1",
			Kind: domain.MovementPurchase, Quantity: decimal.NewFromInt(1), OccurredOn: day(d),
		})
	}

	got, err := s.ListMovements(ctx, port.MovementFilter{ItemID: "i1", From: day(1), To: day(31)})
	if err != nil {
		t.Fatalf("ListMovements failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 movements in [1, 31), got %d", len(got))
	}
}

func TestMemoryStore_EmployeeEmailUnique(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.CreateEmployee(ctx, domain.Employee{ID: "e1", Email: "asha@momo.test", Role: domain.RoleEmployee}); err != nil {
		t.Fatalf("CreateEmployee failed: %v", err)
	}
	err := s.CreateEmployee(ctx, domain.Employee{ID: "e2", Email: "ASHA@momo.test", Role: domain.RoleEmployee})
	if !errors.Is(err, port.ErrDuplicate) {
		t.Errorf("expected case-insensitive duplicate, got %v", err)
	}

	got, _ := s.GetEmployeeByEmail(ctx, "Asha@Momo.test")
	if got == nil || got.ID != "e1" {
		t.Errorf("expected lookup by email to find e1, got %+v", got)
	}
}

func TestMemoryStore_RecalibrationReplacesSameMonth(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	month := domain.Month{Year: 2024, Month: time.April}

	s.SaveRecalibration(ctx, domain.Recalibration{ID: "r1", LocationID: "l1", Month: month})
	s.SaveRecalibration(ctx, domain.Recalibration{ID: "r2", LocationID: "l1", Month: month})

	all, _ := s.ListRecalibrations(ctx, "l1")
	if len(all) != 1 {
		t.Fatalf("expected one recalibration, got %d", len(all))
	}
	found, _ := s.FindRecalibration(ctx, "l1", month)
	if found == nil {
		t.Fatal("expected recalibration for month")
	}
}

func TestMemoryStore_MarkNotificationRead(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.CreateNotification(ctx, domain.Notification{ID: "n1", RecipientID: "e1", Kind: domain.NotifyLowStock})

	if err := s.MarkNotificationRead(ctx, "n1", "e2"); !errors.Is(err, port.ErrNotFound) {
		t.Errorf("expected ErrNotFound for another recipient, got %v", err)
	}
	if err := s.MarkNotificationRead(ctx, "n1", "e1"); err != nil {
		t.Fatalf("MarkNotificationRead failed: %v", err)
	}
	unread, _ := s.ListNotifications(ctx, port.NotificationFilter{RecipientID: "e1", UnreadOnly: true})
	if len(unread) != 0 {
		t.Errorf("expected no unread notifications, got %d", len(unread))
	}
}
