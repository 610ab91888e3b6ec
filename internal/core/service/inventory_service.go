package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/momoworks/momo-ops/internal/apperr"
	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/core/stock"
	"github.com/momoworks/momo-ops/internal/port"
)

// stockNamespace groups every cached read derived from the ledger.
const stockNamespace = "stock"

type ItemInput struct {
	LocationID      string
	SKU             string
	Name            string
	Category        domain.ItemCategory
	Unit            string
	UnitCost        decimal.Decimal
	Threshold       decimal.Decimal
	InitialQuantity decimal.Decimal
	Version         int
}

type MovementInput struct {
	Kind       domain.MovementKind
	Quantity   decimal.Decimal
	OccurredOn time.Time
	Reference  string
	Note       string
}

// manualKinds are the movements staff may record directly. Sales and
// transfers are written by their own flows.
var manualKinds = map[domain.MovementKind]bool{
	domain.MovementPurchase:    true,
	domain.MovementProduction:  true,
	domain.MovementConsumption: true,
	domain.MovementWastage:     true,
}

type InventoryService struct {
	store     port.Store
	cache     port.CacheRepository
	notifier  *NotificationService
	locations *LocationService
	logger    *slog.Logger
	now       func() time.Time
}

func NewInventoryService(store port.Store, cache port.CacheRepository, notifier *NotificationService, locations *LocationService, logger *slog.Logger) *InventoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InventoryService{
		store:     store,
		cache:     cache,
		notifier:  notifier,
		locations: locations,
		logger:    logger,
		now:       time.Now,
	}
}

func validateItem(in ItemInput) error {
	fields := map[string]string{}
	if strings.TrimSpace(in.SKU) == "" {
		fields["sku"] = "is required"
	}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "is required"
	}
	if !in.Category.Valid() {
		fields["category"] = "must be raw_material, finished_good or packaging"
	}
	if strings.TrimSpace(in.Unit) == "" {
		fields["unit"] = "is required"
	}
	if in.UnitCost.IsNegative() {
		fields["unit_cost"] = "must not be negative"
	}
	if in.Threshold.IsNegative() {
		fields["threshold"] = "must not be negative"
	}
	if in.InitialQuantity.IsNegative() {
		fields["initial_quantity"] = "must not be negative"
	}
	if len(fields) > 0 {
		return invalidFields(fields)
	}
	return nil
}

func (s *InventoryService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, stockNamespace); err != nil {
		s.logger.Warn("cache_invalidate_failed", slog.String("namespace", stockNamespace), slog.Any("err", err))
	}
}

func (s *InventoryService) CreateItem(ctx context.Context, p domain.Principal, in ItemInput) (*domain.InventoryItem, error) {
	if err := requireRole(p, domain.RoleManager); err != nil {
		return nil, err
	}
	if err := requireStaffAt(p, in.LocationID); err != nil {
		return nil, err
	}
	if err := validateItem(in); err != nil {
		return nil, err
	}
	if _, err := s.locations.Get(ctx, in.LocationID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	item := domain.InventoryItem{
		ID:              uuid.NewString(),
		LocationID:      in.LocationID,
		SKU:             strings.TrimSpace(in.SKU),
		Name:            strings.TrimSpace(in.Name),
		Category:        in.Category,
		Unit:            in.Unit,
		UnitCost:        in.UnitCost,
		Threshold:       in.Threshold,
		InitialQuantity: in.InitialQuantity,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateItem(ctx, item); err != nil {
		return nil, storeErr(err, "item with this sku")
	}
	s.invalidate(ctx)
	return &item, nil
}

func (s *InventoryService) GetItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, storeErr(err, "item")
	}
	if item == nil {
		return nil, notFound("item")
	}
	return item, nil
}

func (s *InventoryService) ListItems(ctx context.Context, f port.ItemFilter) ([]domain.InventoryItem, error) {
	out, err := s.store.ListItems(ctx, f)
	if err != nil {
		return nil, storeErr(err, "item")
	}
	return out, nil
}

// UpdateItem edits catalog fields. in.Version must match the stored version.
// The location and initial quantity are fixed once movements exist.
func (s *InventoryService) UpdateItem(ctx context.Context, p domain.Principal, id string, in ItemInput) (*domain.InventoryItem, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireRole(p, domain.RoleManager); err != nil {
		return nil, err
	}
	if err := requireStaffAt(p, item.LocationID); err != nil {
		return nil, err
	}
	in.LocationID = item.LocationID
	if err := validateItem(in); err != nil {
		return nil, err
	}
	if !in.InitialQuantity.Equal(item.InitialQuantity) {
		n, err := s.store.CountMovements(ctx, id)
		if err != nil {
			return nil, storeErr(err, "item")
		}
		if n > 0 {
			return nil, invalid("initial_quantity", "cannot change once movements exist")
		}
	}

	item.SKU = strings.TrimSpace(in.SKU)
	item.Name = strings.TrimSpace(in.Name)
	item.Category = in.Category
	item.Unit = in.Unit
	item.UnitCost = in.UnitCost
	item.Threshold = in.Threshold
	item.InitialQuantity = in.InitialQuantity
	item.Version = in.Version
	item.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateItem(ctx, *item); err != nil {
		return nil, storeErr(err, "item with this sku")
	}
	item.Version++
	s.invalidate(ctx)
	return item, nil
}

func (s *InventoryService) DeleteItem(ctx context.Context, p domain.Principal, id string) error {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if err := requireRole(p, domain.RoleManager); err != nil {
		return err
	}
	if err := requireStaffAt(p, item.LocationID); err != nil {
		return err
	}
	n, err := s.store.CountMovements(ctx, id)
	if err != nil {
		return storeErr(err, "item")
	}
	if n > 0 {
		return conflict("item has stock movements")
	}
	if err := s.store.DeleteItem(ctx, id); err != nil {
		return storeErr(err, "item")
	}
	s.invalidate(ctx)
	return nil
}

// currentBalance is the stock on hand for item at the end of the current
// month, read through st so it sees uncommitted writes of a transaction.
func (s *InventoryService) currentBalance(ctx context.Context, st port.Store, item domain.InventoryItem) (decimal.Decimal, error) {
	month := domain.MonthOf(s.now().UTC())
	recals, err := st.ListRecalibrations(ctx, item.LocationID)
	if err != nil {
		return decimal.Zero, err
	}
	movements, err := st.ListMovements(ctx, port.MovementFilter{ItemID: item.ID, To: month.End()})
	if err != nil {
		return decimal.Zero, err
	}
	return stock.Balance(item, recals, movements, month), nil
}

// takeStock records an outward movement, refusing when the balance would go
// negative.
func (s *InventoryService) takeStock(ctx context.Context, st port.Store, item domain.InventoryItem, m domain.StockMovement) error {
	if err := st.LockItem(ctx, item.ID); err != nil {
		return storeErr(err, "item")
	}
	bal, err := s.currentBalance(ctx, st, item)
	if err != nil {
		return apperr.Wrap(err)
	}
	if bal.LessThan(m.Quantity) {
		return &apperr.AppError{
			Kind:      apperr.Conflict,
			PublicMsg: fmt.Sprintf("insufficient stock for %s: %s on hand", item.SKU, bal),
			Err:       ErrInsufficientStock,
		}
	}
	return st.CreateMovement(ctx, m)
}

// occurredAt stamps movements dated today, or not dated at all, with the
// current time so they order correctly against a count taken earlier today.
func occurredAt(t, now time.Time) time.Time {
	if t.IsZero() || t.Equal(domain.DateOnly(now)) {
		return now
	}
	return t
}

func (s *InventoryService) RecordMovement(ctx context.Context, p domain.Principal, itemID string, in MovementInput) (*domain.StockMovement, error) {
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := requireStaffAt(p, item.LocationID); err != nil {
		return nil, err
	}
	if !manualKinds[in.Kind] {
		return nil, invalid("kind", "must be purchase, production, consumption or wastage")
	}
	if !in.Quantity.IsPositive() {
		return nil, invalid("quantity", "must be greater than zero")
	}
	now := s.now().UTC()
	in.OccurredOn = occurredAt(in.OccurredOn, now)
	if domain.DateOnly(in.OccurredOn).After(domain.DateOnly(now)) {
		return nil, invalid("occurred_on", "cannot be in the future")
	}

	m := domain.StockMovement{
		ID:         uuid.NewString(),
		ItemID:     item.ID,
		LocationID: item.LocationID,
		Kind:       in.Kind,
		Quantity:   in.Quantity,
		OccurredOn: in.OccurredOn.UTC(),
		Reference:  in.Reference,
		Note:       in.Note,
		CreatedBy:  p.EmployeeID,
		CreatedAt:  now,
	}
	err = s.store.Tx(ctx, func(tx port.Store) error {
		if in.Kind.Sign() < 0 {
			return s.takeStock(ctx, tx, *item, m)
		}
		return tx.CreateMovement(ctx, m)
	})
	if err != nil {
		return nil, storeErr(err, "movement")
	}
	s.invalidate(ctx)
	if in.Kind.Sign() < 0 {
		s.CheckThresholds(ctx, *item)
	}
	return &m, nil
}

func (s *InventoryService) Movements(ctx context.Context, itemID string, month domain.Month) ([]domain.StockMovement, error) {
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	f := port.MovementFilter{ItemID: itemID}
	if !month.IsZero() {
		f.From, f.To = month.Start(), month.End()
	}
	out, err := s.store.ListMovements(ctx, f)
	if err != nil {
		return nil, storeErr(err, "movement")
	}
	return out, nil
}

// CheckThresholds notifies the location's managers about every item whose
// current balance is below its threshold.
func (s *InventoryService) CheckThresholds(ctx context.Context, items ...domain.InventoryItem) {
	for _, item := range items {
		if !item.Threshold.IsPositive() {
			continue
		}
		bal, err := s.currentBalance(ctx, s.store, item)
		if err != nil {
			s.logger.Warn("threshold_check_failed", slog.String("item_id", item.ID), slog.Any("err", err))
			continue
		}
		if stock.IsLow(bal, item.Threshold) {
			msg := fmt.Sprintf("%s (%s) is low: %s %s left, threshold %s", item.Name, item.SKU, bal, item.Unit, item.Threshold)
			s.notifier.NotifyLocation(ctx, item.LocationID, domain.NotifyLowStock, msg)
		}
	}
}

// Summary is the month's stock summary for a location, served through the
// stale-while-revalidate cache.
func (s *InventoryService) Summary(ctx context.Context, locationID string, month domain.Month) ([]stock.Row, error) {
	if _, err := s.locations.Get(ctx, locationID); err != nil {
		return nil, err
	}
	if month.IsZero() {
		month = domain.MonthOf(s.now().UTC())
	}
	key := locationID + ":" + month.String()
	data, err := s.cache.Fetch(ctx, stockNamespace, key, func(ctx context.Context) ([]byte, error) {
		rows, err := s.buildSummary(ctx, locationID, month)
		if err != nil {
			return nil, err
		}
		return json.Marshal(rows)
	})
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	var rows []stock.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, apperr.Wrap(err)
	}
	return rows, nil
}

func (s *InventoryService) buildSummary(ctx context.Context, locationID string, month domain.Month) ([]stock.Row, error) {
	items, err := s.store.ListItems(ctx, port.ItemFilter{LocationID: locationID})
	if err != nil {
		return nil, err
	}
	recals, err := s.store.ListRecalibrations(ctx, locationID)
	if err != nil {
		return nil, err
	}
	movements, err := s.store.ListMovements(ctx, port.MovementFilter{LocationID: locationID, To: month.End()})
	if err != nil {
		return nil, err
	}
	return stock.Report(items, recals, movements, month), nil
}
