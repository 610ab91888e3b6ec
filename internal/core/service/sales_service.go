package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/momoworks/momo-ops/internal/apperr"
	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/port"
)

const salesNamespace = "sales"

type SaleInput struct {
	StoreID     string
	SoldOn      time.Time
	PaymentMode domain.PaymentMode
	Lines       []domain.SaleLine
}

// SaleImportRow is one spreadsheet row of a sales import.
type SaleImportRow struct {
	Row         int
	Date        time.Time
	SKU         string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	PaymentMode domain.PaymentMode
}

type DayTotal struct {
	Date  time.Time       `json:"date"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

type SalesSummary struct {
	StoreID       string                                `json:"store_id"`
	Month         domain.Month                          `json:"month"`
	Count         int                                   `json:"count"`
	Total         decimal.Decimal                       `json:"total"`
	ByDay         []DayTotal                            `json:"by_day"`
	ByPaymentMode map[domain.PaymentMode]decimal.Decimal `json:"by_payment_mode"`
}

type SalesService struct {
	store     port.Store
	cache     port.CacheRepository
	inventory *InventoryService
	locations *LocationService
	logger    *slog.Logger
	now       func() time.Time
}

func NewSalesService(store port.Store, cache port.CacheRepository, inventory *InventoryService, locations *LocationService, logger *slog.Logger) *SalesService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SalesService{
		store:     store,
		cache:     cache,
		inventory: inventory,
		locations: locations,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *SalesService) invalidate(ctx context.Context) {
	for _, ns := range []string{salesNamespace, stockNamespace} {
		if err := s.cache.Invalidate(ctx, ns); err != nil {
			s.logger.Warn("cache_invalidate_failed", slog.String("namespace", ns), slog.Any("err", err))
		}
	}
}

// prepare validates in against the store's catalog and returns the sale
// with its total plus the items it touches.
func (s *SalesService) prepare(ctx context.Context, st port.Store, p domain.Principal, in SaleInput) (domain.Sale, []domain.InventoryItem, error) {
	if !in.PaymentMode.Valid() {
		return domain.Sale{}, nil, invalid("payment_mode", "must be cash, card or upi")
	}
	if len(in.Lines) == 0 {
		return domain.Sale{}, nil, invalid("lines", "at least one line is required")
	}
	now := s.now().UTC()
	in.SoldOn = occurredAt(in.SoldOn, now)
	if domain.DateOnly(in.SoldOn).After(domain.DateOnly(now)) {
		return domain.Sale{}, nil, invalid("sold_on", "cannot be in the future")
	}

	total := decimal.Zero
	items := make([]domain.InventoryItem, 0, len(in.Lines))
	for i, l := range in.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		if !l.Quantity.IsPositive() {
			return domain.Sale{}, nil, invalid(field+".quantity", "must be greater than zero")
		}
		if l.UnitPrice.IsNegative() {
			return domain.Sale{}, nil, invalid(field+".unit_price", "must not be negative")
		}
		item, err := st.GetItem(ctx, l.ItemID)
		if err != nil {
			return domain.Sale{}, nil, err
		}
		if item == nil || item.LocationID != in.StoreID {
			return domain.Sale{}, nil, invalid(field+".item_id", "unknown item for this store")
		}
		items = append(items, *item)
		total = total.Add(l.Amount())
	}

	return domain.Sale{
		ID:          uuid.NewString(),
		StoreID:     in.StoreID,
		SoldOn:      in.SoldOn.UTC(),
		PaymentMode: in.PaymentMode,
		Lines:       in.Lines,
		Total:       total,
		RecordedBy:  p.EmployeeID,
		CreatedAt:   now,
	}, items, nil
}

// writeSale stores sale and one sale movement per line through st.
func writeSale(ctx context.Context, st port.Store, sale domain.Sale) error {
	if err := st.CreateSale(ctx, sale); err != nil {
		return err
	}
	for _, l := range sale.Lines {
		m := domain.StockMovement{
			ID:         uuid.NewString(),
			ItemID:     l.ItemID,
			LocationID: sale.StoreID,
			Kind:       domain.MovementSale,
			Quantity:   l.Quantity,
			OccurredOn: sale.SoldOn,
			Reference:  "sale:" + sale.ID,
			CreatedBy:  sale.RecordedBy,
			CreatedAt:  sale.CreatedAt,
		}
		if err := st.CreateMovement(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *SalesService) authorize(ctx context.Context, p domain.Principal, storeID string) error {
	if err := requireStaffAt(p, storeID); err != nil {
		return err
	}
	_, err := s.locations.getKind(ctx, storeID, domain.LocationStore, "store_id")
	return err
}

// Create records a sale. Sales are facts from the till, so they are not
// refused on a negative balance; thresholds are checked afterwards.
func (s *SalesService) Create(ctx context.Context, p domain.Principal, in SaleInput) (*domain.Sale, error) {
	if err := s.authorize(ctx, p, in.StoreID); err != nil {
		return nil, err
	}
	var (
		sale  domain.Sale
		items []domain.InventoryItem
	)
	err := s.store.Tx(ctx, func(tx port.Store) error {
		var err error
		sale, items, err = s.prepare(ctx, tx, p, in)
		if err != nil {
			return err
		}
		return writeSale(ctx, tx, sale)
	})
	if err != nil {
		return nil, storeErr(err, "sale")
	}
	s.invalidate(ctx)
	s.inventory.CheckThresholds(ctx, items...)
	return &sale, nil
}

func (s *SalesService) Get(ctx context.Context, id string) (*domain.Sale, error) {
	sale, err := s.store.GetSale(ctx, id)
	if err != nil {
		return nil, storeErr(err, "sale")
	}
	if sale == nil {
		return nil, notFound("sale")
	}
	return sale, nil
}

func (s *SalesService) List(ctx context.Context, p domain.Principal, f port.SaleFilter) ([]domain.Sale, error) {
	if p.Anonymous {
		return nil, ErrForbidden
	}
	out, err := s.store.ListSales(ctx, f)
	if err != nil {
		return nil, storeErr(err, "sale")
	}
	return out, nil
}

// Delete removes a sale and the movements it wrote.
func (s *SalesService) Delete(ctx context.Context, p domain.Principal, id string) error {
	sale, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := requireRole(p, domain.RoleManager); err != nil {
		return err
	}
	if err := requireStaffAt(p, sale.StoreID); err != nil {
		return err
	}
	err = s.store.Tx(ctx, func(tx port.Store) error {
		if err := tx.DeleteMovementsByReference(ctx, "sale:"+id); err != nil {
			return err
		}
		return tx.DeleteSale(ctx, id)
	})
	if err != nil {
		return storeErr(err, "sale")
	}
	s.invalidate(ctx)
	return nil
}

func (s *SalesService) Summary(ctx context.Context, p domain.Principal, storeID string, month domain.Month) (*SalesSummary, error) {
	if p.Anonymous {
		return nil, ErrForbidden
	}
	if _, err := s.locations.getKind(ctx, storeID, domain.LocationStore, "store_id"); err != nil {
		return nil, err
	}
	if month.IsZero() {
		month = domain.MonthOf(s.now().UTC())
	}
	data, err := s.cache.Fetch(ctx, salesNamespace, storeID+":"+month.String(), func(ctx context.Context) ([]byte, error) {
		sales, err := s.store.ListSales(ctx, port.SaleFilter{StoreID: storeID, From: month.Start(), To: month.End()})
		if err != nil {
			return nil, err
		}
		return json.Marshal(summarizeSales(storeID, month, sales))
	})
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	var out SalesSummary
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, apperr.Wrap(err)
	}
	return &out, nil
}

func summarizeSales(storeID string, month domain.Month, sales []domain.Sale) SalesSummary {
	out := SalesSummary{
		StoreID:       storeID,
		Month:         month,
		Total:         decimal.Zero,
		ByDay:         []DayTotal{},
		ByPaymentMode: map[domain.PaymentMode]decimal.Decimal{},
	}
	days := map[time.Time]*DayTotal{}
	for _, sale := range sales {
		out.Count++
		out.Total = out.Total.Add(sale.Total)
		out.ByPaymentMode[sale.PaymentMode] = out.ByPaymentMode[sale.PaymentMode].Add(sale.Total)
		d := domain.DateOnly(sale.SoldOn)
		dt, ok := days[d]
		if !ok {
			dt = &DayTotal{Date: d, Total: decimal.Zero}
			days[d] = dt
		}
		dt.Count++
		dt.Total = dt.Total.Add(sale.Total)
	}
	for _, dt := range days {
		out.ByDay = append(out.ByDay, *dt)
	}
	sort.Slice(out.ByDay, func(i, j int) bool { return out.ByDay[i].Date.Before(out.ByDay[j].Date) })
	return out
}

type importKey struct {
	date time.Time
	mode domain.PaymentMode
}

// Import turns spreadsheet rows into sales grouped by day and payment mode.
// The whole import is one transaction: any bad row rejects the file.
func (s *SalesService) Import(ctx context.Context, p domain.Principal, storeID string, rows []SaleImportRow) ([]domain.Sale, error) {
	if err := s.authorize(ctx, p, storeID); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, invalid("file", "no rows to import")
	}

	var order []importKey
	groups := map[importKey][]domain.SaleLine{}
	fields := map[string]string{}
	for _, r := range rows {
		item, err := s.store.GetItemBySKU(ctx, storeID, strings.TrimSpace(r.SKU))
		if err != nil {
			return nil, storeErr(err, "item")
		}
		if item == nil {
			fields[fmt.Sprintf("row %d", r.Row)] = "unknown sku " + r.SKU
			continue
		}
		k := importKey{date: domain.DateOnly(r.Date), mode: r.PaymentMode}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], domain.SaleLine{ItemID: item.ID, Quantity: r.Quantity, UnitPrice: r.UnitPrice})
	}
	if len(fields) > 0 {
		return nil, apperr.InvalidErr("import failed", fields)
	}

	var (
		sales   []domain.Sale
		touched = map[string]domain.InventoryItem{}
	)
	err := s.store.Tx(ctx, func(tx port.Store) error {
		sales = sales[:0]
		touched = map[string]domain.InventoryItem{}
		for _, k := range order {
			sale, items, err := s.prepare(ctx, tx, p, SaleInput{StoreID: storeID, SoldOn: k.date, PaymentMode: k.mode, Lines: groups[k]})
			if err != nil {
				return err
			}
			if err := writeSale(ctx, tx, sale); err != nil {
				return err
			}
			for _, it := range items {
				touched[it.ID] = it
			}
			sales = append(sales, sale)
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "sale")
	}
	s.invalidate(ctx)
	items := make([]domain.InventoryItem, 0, len(touched))
	for _, it := range touched {
		items = append(items, it)
	}
	s.inventory.CheckThresholds(ctx, items...)
	return sales, nil
}
