package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/port"
)

type RequestLineInput struct {
	SKU      string
	Quantity decimal.Decimal
}

type ProductionRequestInput struct {
	StoreID           string
	ProductionHouseID string
	Lines             []RequestLineInput
	NeededBy          *time.Time
	Notes             string
}

type ProductionService struct {
	store     port.Store
	cache     port.CacheRepository
	inventory *InventoryService
	locations *LocationService
	notifier  *NotificationService
	logger    *slog.Logger
	now       func() time.Time
}

func NewProductionService(store port.Store, cache port.CacheRepository, inventory *InventoryService, locations *LocationService, notifier *NotificationService, logger *slog.Logger) *ProductionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductionService{
		store:     store,
		cache:     cache,
		inventory: inventory,
		locations: locations,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// Create files a request from a store. A non-empty idempotencyKey makes a
// repeated submission fail with ErrDuplicateRequest.
func (s *ProductionService) Create(ctx context.Context, p domain.Principal, idempotencyKey string, in ProductionRequestInput) (*domain.ProductionRequest, error) {
	if err := requireStaffAt(p, in.StoreID); err != nil {
		return nil, err
	}
	if _, err := s.locations.getKind(ctx, in.StoreID, domain.LocationStore, "store_id"); err != nil {
		return nil, err
	}
	house, err := s.locations.getKind(ctx, in.ProductionHouseID, domain.LocationProductionHouse, "production_house_id")
	if err != nil {
		return nil, err
	}
	if len(in.Lines) == 0 {
		return nil, invalid("lines", "at least one line is required")
	}
	now := s.now().UTC()
	if in.NeededBy != nil && domain.DateOnly(*in.NeededBy).Before(domain.DateOnly(now)) {
		return nil, invalid("needed_by", "cannot be in the past")
	}

	lines := make([]domain.RequestLine, 0, len(in.Lines))
	seen := map[string]bool{}
	for i, l := range in.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		sku := strings.TrimSpace(l.SKU)
		if !l.Quantity.IsPositive() {
			return nil, invalid(field+".quantity", "must be greater than zero")
		}
		if seen[sku] {
			return nil, invalid(field+".sku", "listed twice")
		}
		seen[sku] = true
		item, err := s.store.GetItemBySKU(ctx, house.ID, sku)
		if err != nil {
			return nil, storeErr(err, "item")
		}
		if item == nil {
			return nil, invalid(field+".sku", "not produced by "+house.Name)
		}
		lines = append(lines, domain.RequestLine{
			SKU:                sku,
			Quantity:           l.Quantity,
			DispatchedQuantity: decimal.Zero,
			ReceivedQuantity:   decimal.Zero,
		})
	}

	if idempotencyKey != "" {
		ok, err := s.cache.SetIdempotency(ctx, fmt.Sprintf("production-request:%s:%s", p.EmployeeID, idempotencyKey))
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, ErrDuplicateRequest
		}
	}

	r := domain.ProductionRequest{
		ID:                uuid.NewString(),
		StoreID:           in.StoreID,
		ProductionHouseID: house.ID,
		Status:            domain.RequestPending,
		Lines:             lines,
		NeededBy:          in.NeededBy,
		Notes:             in.Notes,
		RequestedBy:       p.EmployeeID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.CreateRequest(ctx, r); err != nil {
		return nil, storeErr(err, "production request")
	}
	s.notifier.NotifyLocation(ctx, house.ID, domain.NotifyProductionRequest,
		fmt.Sprintf("new production request %s with %d line(s)", shortID(r.ID), len(r.Lines)))
	return &r, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (s *ProductionService) Get(ctx context.Context, id string) (*domain.ProductionRequest, error) {
	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, storeErr(err, "production request")
	}
	if r == nil {
		return nil, notFound("production request")
	}
	return r, nil
}

func (s *ProductionService) List(ctx context.Context, p domain.Principal, f port.RequestFilter) ([]domain.ProductionRequest, error) {
	if p.Anonymous {
		return nil, ErrForbidden
	}
	out, err := s.store.ListRequests(ctx, f)
	if err != nil {
		return nil, storeErr(err, "production request")
	}
	return out, nil
}

// ListPending is the production house's inbox.
func (s *ProductionService) ListPending(ctx context.Context, p domain.Principal, houseID string) ([]domain.ProductionRequest, error) {
	if err := requireStaffAt(p, houseID); err != nil {
		return nil, err
	}
	return s.List(ctx, p, port.RequestFilter{ProductionHouseID: houseID, Status: domain.RequestPending})
}

// transition loads the request, checks the actor's side and the status
// graph, runs apply inside a transaction and persists the new version.
func (s *ProductionService) transition(ctx context.Context, p domain.Principal, id string, next domain.RequestStatus,
	side func(r *domain.ProductionRequest) string,
	apply func(tx port.Store, r *domain.ProductionRequest) error,
) (*domain.ProductionRequest, error) {
	var r *domain.ProductionRequest
	err := s.store.Tx(ctx, func(tx port.Store) error {
		var err error
		r, err = tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return notFound("production request")
		}
		if err := requireStaffAt(p, side(r)); err != nil {
			return err
		}
		if !r.Status.CanTransition(next) {
			return ErrInvalidTransition
		}
		if apply != nil {
			if err := apply(tx, r); err != nil {
				return err
			}
		}
		r.Status = next
		r.DecidedBy = p.EmployeeID
		r.UpdatedAt = s.now().UTC()
		if err := tx.UpdateRequest(ctx, *r); err != nil {
			return err
		}
		r.Version++
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "production request")
	}

	notify := r.StoreID
	if side(r) == r.StoreID {
		notify = r.ProductionHouseID
	}
	s.notifier.NotifyLocation(ctx, notify, domain.NotifyProductionRequest,
		fmt.Sprintf("production request %s is now %s", shortID(r.ID), next))
	return r, nil
}

func houseSide(r *domain.ProductionRequest) string { return r.ProductionHouseID }
func storeSide(r *domain.ProductionRequest) string { return r.StoreID }

func (s *ProductionService) Accept(ctx context.Context, p domain.Principal, id string) (*domain.ProductionRequest, error) {
	return s.transition(ctx, p, id, domain.RequestAccepted, houseSide, nil)
}

func (s *ProductionService) Reject(ctx context.Context, p domain.Principal, id string) (*domain.ProductionRequest, error) {
	return s.transition(ctx, p, id, domain.RequestRejected, houseSide, nil)
}

func (s *ProductionService) Cancel(ctx context.Context, p domain.Principal, id string) (*domain.ProductionRequest, error) {
	return s.transition(ctx, p, id, domain.RequestCancelled, storeSide, nil)
}

// resolveQuantities maps each line to the quantity being moved. Lines
// missing from given default to limit(line); no quantity may exceed it.
func resolveQuantities(lines []domain.RequestLine, given []RequestLineInput, limit func(domain.RequestLine) decimal.Decimal) ([]decimal.Decimal, error) {
	byLine := map[string]decimal.Decimal{}
	for _, g := range given {
		byLine[strings.TrimSpace(g.SKU)] = g.Quantity
	}
	qty := make([]decimal.Decimal, len(lines))
	for i, l := range lines {
		q, ok := byLine[l.SKU]
		delete(byLine, l.SKU)
		if !ok {
			q = limit(l)
		}
		if q.IsNegative() {
			return nil, invalid("lines", l.SKU+": quantity must not be negative")
		}
		if q.GreaterThan(limit(l)) {
			return nil, invalid("lines", fmt.Sprintf("%s: at most %s", l.SKU, limit(l)))
		}
		qty[i] = q
	}
	for sku := range byLine {
		return nil, invalid("lines", sku+" is not on this request")
	}
	return qty, nil
}

// Dispatch ships an accepted request, writing transfer_out movements at the
// production house. A nil quantities slice dispatches everything requested.
func (s *ProductionService) Dispatch(ctx context.Context, p domain.Principal, id string, quantities []RequestLineInput) (*domain.ProductionRequest, error) {
	var items []domain.InventoryItem
	r, err := s.transition(ctx, p, id, domain.RequestDispatched, houseSide, func(tx port.Store, r *domain.ProductionRequest) error {
		items = items[:0]
		qty, err := resolveQuantities(r.Lines, quantities, func(l domain.RequestLine) decimal.Decimal { return l.Quantity })
		if err != nil {
			return err
		}
		now := s.now().UTC()
		for i := range r.Lines {
			r.Lines[i].DispatchedQuantity = qty[i]
			if !qty[i].IsPositive() {
				continue
			}
			item, err := tx.GetItemBySKU(ctx, r.ProductionHouseID, r.Lines[i].SKU)
			if err != nil {
				return err
			}
			if item == nil {
				return invalid("lines", r.Lines[i].SKU+" no longer exists at the production house")
			}
			m := domain.StockMovement{
				ID:         uuid.NewString(),
				ItemID:     item.ID,
				LocationID: item.LocationID,
				Kind:       domain.MovementTransferOut,
				Quantity:   qty[i],
				OccurredOn: now,
				Reference:  "production:" + r.ID,
				CreatedBy:  p.EmployeeID,
				CreatedAt:  now,
			}
			if err := s.inventory.takeStock(ctx, tx, *item, m); err != nil {
				return err
			}
			items = append(items, *item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.inventory.invalidate(ctx)
	s.inventory.CheckThresholds(ctx, items...)
	return r, nil
}

// Receive books a dispatched request into the store with transfer_in
// movements. Store items missing for a SKU are created from the house item.
func (s *ProductionService) Receive(ctx context.Context, p domain.Principal, id string, quantities []RequestLineInput) (*domain.ProductionRequest, error) {
	r, err := s.transition(ctx, p, id, domain.RequestReceived, storeSide, func(tx port.Store, r *domain.ProductionRequest) error {
		qty, err := resolveQuantities(r.Lines, quantities, func(l domain.RequestLine) decimal.Decimal { return l.DispatchedQuantity })
		if err != nil {
			return err
		}
		now := s.now().UTC()
		for i := range r.Lines {
			r.Lines[i].ReceivedQuantity = qty[i]
			if !qty[i].IsPositive() {
				continue
			}
			item, err := s.storeItemFor(ctx, tx, r, r.Lines[i].SKU, now)
			if err != nil {
				return err
			}
			m := domain.StockMovement{
				ID:         uuid.NewString(),
				ItemID:     item.ID,
				LocationID: item.LocationID,
				Kind:       domain.MovementTransferIn,
				Quantity:   qty[i],
				OccurredOn: now,
				Reference:  "production:" + r.ID,
				CreatedBy:  p.EmployeeID,
				CreatedAt:  now,
			}
			if err := tx.CreateMovement(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.inventory.invalidate(ctx)
	return r, nil
}

func (s *ProductionService) storeItemFor(ctx context.Context, tx port.Store, r *domain.ProductionRequest, sku string, now time.Time) (*domain.InventoryItem, error) {
	item, err := tx.GetItemBySKU(ctx, r.StoreID, sku)
	if err != nil || item != nil {
		return item, err
	}
	src, err := tx.GetItemBySKU(ctx, r.ProductionHouseID, sku)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, invalid("lines", sku+" no longer exists at the production house")
	}
	created := domain.InventoryItem{
		ID:              uuid.NewString(),
		LocationID:      r.StoreID,
		SKU:             src.SKU,
		Name:            src.Name,
		Category:        src.Category,
		Unit:            src.Unit,
		UnitCost:        src.UnitCost,
		Threshold:       decimal.Zero,
		InitialQuantity: decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := tx.CreateItem(ctx, created); err != nil {
		return nil, err
	}
	s.logger.Info("store_item_created", slog.String("store_id", r.StoreID), slog.String("sku", sku))
	return &created, nil
}
