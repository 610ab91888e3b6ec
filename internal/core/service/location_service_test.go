package service

import (
	"context"
	"errors"
	"testing"

	"github.com/momoworks/momo-ops/internal/apperr"
	"github.com/momoworks/momo-ops/internal/core/domain"
)

func TestCreateLocation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	head := env.principal(env.head)

	if _, err := env.svc.Locations.Create(ctx, env.principal(env.shopManager), LocationInput{Name: "Mall Road", Kind: domain.LocationStore}); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected manager forbidden, got %v", err)
	}
	if _, err := env.svc.Locations.Create(ctx, head, LocationInput{Name: " ", Kind: "warehouse"}); !apperr.Is(err, apperr.Invalid) {
		t.Errorf("expected invalid name and kind, got %v", err)
	}
	_, err := env.svc.Locations.Create(ctx, head, LocationInput{Name: "Mall Road", Kind: domain.LocationStore, ClusterHeadID: "shop-mgr"})
	if ae, ok := apperr.As(err); !ok || ae.Fields["cluster_head_id"] == "" {
		t.Errorf("expected cluster_head_id rejected for a manager, got %v", err)
	}

	loc, err := env.svc.Locations.Create(ctx, head, LocationInput{Name: " Mall Road ", Kind: domain.LocationStore, ClusterHeadID: "head"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if loc.Name != "Mall Road" || loc.ID == "" {
		t.Errorf("unexpected location %+v", loc)
	}
	stores, _ := env.svc.Locations.List(ctx, domain.LocationStore)
	if len(stores) != 2 {
		t.Errorf("expected 2 stores, got %d", len(stores))
	}
}

func TestUpdateLocation_KindIsFixed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	head := env.principal(env.head)

	_, err := env.svc.Locations.Update(ctx, head, "shop", LocationInput{Name: "Park Street", Kind: domain.LocationProductionHouse})
	if ae, ok := apperr.As(err); !ok || ae.Kind != apperr.Invalid || ae.Fields["kind"] == "" {
		t.Errorf("expected kind change to be invalid, got %v", err)
	}

	loc, err := env.svc.Locations.Update(ctx, head, "shop", LocationInput{Name: "Park Street West", Address: "14 Park Street"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if loc.Kind != domain.LocationStore || loc.Name != "Park Street West" || loc.Address != "14 Park Street" {
		t.Errorf("unexpected location %+v", loc)
	}
}

func TestDeleteLocation_RefusedWhileReferenced(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	head := env.principal(env.head)

	item := env.addItem(t, "house", "FLOUR", 10, 0)
	if err := env.svc.Locations.Delete(ctx, head, "house"); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("expected conflict while items remain, got %v", err)
	}
	if err := env.store.DeleteItem(ctx, item.ID); err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}

	if err := env.svc.Locations.Delete(ctx, head, "house"); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("expected conflict while employees remain, got %v", err)
	}
	if err := env.svc.Employees.Deactivate(ctx, head, "house-mgr"); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}

	if err := env.svc.Locations.Delete(ctx, env.principal(env.shopManager), "house"); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected manager forbidden, got %v", err)
	}
	if err := env.svc.Locations.Delete(ctx, head, "house"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := env.svc.Locations.Get(ctx, "house"); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}
