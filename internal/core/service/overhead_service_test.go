package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/momoworks/momo-ops/internal/apperr"
	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/port"
)

func TestCreateOverhead_Rules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mgr := env.principal(env.shopManager)

	tests := []struct {
		name  string
		in    OverheadInput
		field string
	}{
		{"missing category", OverheadInput{LocationID: "shop", Amount: dec("10"), IncurredOn: testNow}, "category"},
		{"zero amount", OverheadInput{LocationID: "shop", Category: "rent", IncurredOn: testNow}, "amount"},
		{"missing date", OverheadInput{LocationID: "shop", Category: "rent", Amount: dec("10")}, "incurred_on"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Overheads.Create(ctx, mgr, tt.in)
			ae, ok := apperr.As(err)
			if !ok || ae.Kind != apperr.Invalid || ae.Fields[tt.field] == "" {
				t.Errorf("expected invalid %s, got %v", tt.field, err)
			}
		})
	}

	valid := OverheadInput{LocationID: "shop", Category: "rent", Amount: dec("100"), IncurredOn: testNow}
	if _, err := env.svc.Overheads.Create(ctx, env.principal(env.shopStaff), valid); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected staff forbidden, got %v", err)
	}
	if _, err := env.svc.Overheads.Create(ctx, env.principal(env.houseManager), valid); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected another location's manager forbidden, got %v", err)
	}

	o, err := env.svc.Overheads.Create(ctx, mgr, OverheadInput{LocationID: "shop", Category: "  Rent ", Amount: dec("100"), IncurredOn: testNow})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if o.Category != "rent" || !o.IncurredOn.Equal(day(2024, 3, 3)) {
		t.Errorf("expected normalized category and date, got %+v", o)
	}
}

func TestOverheadUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mgr := env.principal(env.shopManager)

	o, err := env.svc.Overheads.Create(ctx, mgr, OverheadInput{LocationID: "shop", Category: "gas", Amount: dec("40"), IncurredOn: testNow})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := env.svc.Overheads.Update(ctx, env.principal(env.houseManager), o.ID, OverheadInput{LocationID: "house", Category: "gas", Amount: dec("40"), IncurredOn: testNow}); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected another location's manager forbidden, got %v", err)
	}
	updated, err := env.svc.Overheads.Update(ctx, mgr, o.ID, OverheadInput{LocationID: "shop", Category: "gas", Amount: dec("55.5"), IncurredOn: testNow, Note: "two cylinders"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !updated.Amount.Equal(dec("55.5")) || updated.Note != "two cylinders" {
		t.Errorf("unexpected overhead %+v", updated)
	}

	if err := env.svc.Overheads.Delete(ctx, env.principal(env.shopStaff), o.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected staff delete forbidden, got %v", err)
	}
	if err := env.svc.Overheads.Delete(ctx, mgr, o.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := env.svc.Overheads.Get(ctx, o.ID); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}

func TestOverheadSummary_MonthAndCategories(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mgr := env.principal(env.shopManager)

	entries := []struct {
		category string
		amount   string
		on       time.Time
	}{
		{"rent", "1000", day(2024, 3, 1)},
		{"gas", "40", day(2024, 3, 2)},
		{"gas", "35.5", day(2024, 3, 31)},
		{"gas", "99", day(2024, 2, 29)}, // previous month
		{"rent", "1000", day(2024, 4, 1)},
	}
	for _, e := range entries {
		if _, err := env.svc.Overheads.Create(ctx, mgr, OverheadInput{LocationID: "shop", Category: e.category, Amount: dec(e.amount), IncurredOn: e.on}); err != nil {
			t.Fatalf("Create %s failed: %v", e.category, err)
		}
	}
	if _, err := env.svc.Overheads.Create(ctx, env.principal(env.houseManager), OverheadInput{LocationID: "house", Category: "rent", Amount: dec("500"), IncurredOn: day(2024, 3, 5)}); err != nil {
		t.Fatalf("Create house overhead failed: %v", err)
	}

	march, err := env.svc.Overheads.List(ctx, mgr, port.OverheadFilter{LocationID: "shop", From: day(2024, 3, 1), To: day(2024, 4, 1)})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(march) != 3 {
		t.Errorf("expected 3 march overheads at the shop, got %d", len(march))
	}

	sum, err := env.svc.Overheads.Summary(ctx, mgr, "shop", domain.Month{})
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if sum.Month.String() != "2024-03" || !sum.Total.Equal(dec("1075.5")) {
		t.Errorf("expected march total 1075.5, got %s %s", sum.Month, sum.Total)
	}
	if len(sum.Categories) != 2 ||
		sum.Categories[0].Category != "gas" || !sum.Categories[0].Total.Equal(dec("75.5")) ||
		sum.Categories[1].Category != "rent" || !sum.Categories[1].Total.Equal(dec("1000")) {
		t.Errorf("unexpected category totals %+v", sum.Categories)
	}

	if _, err := env.svc.Overheads.Summary(ctx, env.principal(env.shopStaff), "shop", domain.Month{}); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected staff forbidden, got %v", err)
	}
}
