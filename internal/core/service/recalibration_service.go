package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/core/stock"
	"github.com/momoworks/momo-ops/internal/port"
)

type CountInput struct {
	ItemID  string
	Counted decimal.Decimal
}

type RecalibrationInput struct {
	LocationID string
	Month      domain.Month // zero means the current month
	Counts     []CountInput
}

// Window describes when counts for Month may be submitted.
type Window struct {
	Open     bool         `json:"open"`
	Month    domain.Month `json:"month"`
	ClosesOn time.Time    `json:"closes_on"`
}

type RecalibrationService struct {
	store      port.Store
	inventory  *InventoryService
	locations  *LocationService
	notifier   *NotificationService
	windowDays int
	logger     *slog.Logger
	now        func() time.Time
}

func NewRecalibrationService(store port.Store, inventory *InventoryService, locations *LocationService, notifier *NotificationService, windowDays int, logger *slog.Logger) *RecalibrationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecalibrationService{
		store:      store,
		inventory:  inventory,
		locations:  locations,
		notifier:   notifier,
		windowDays: windowDays,
		logger:     logger,
		now:        time.Now,
	}
}

// Window reports whether today falls in the first windowDays days of the
// month. ClosesOn is the last day counts are accepted.
func (s *RecalibrationService) Window() Window {
	now := s.now().UTC()
	month := domain.MonthOf(now)
	return Window{
		Open:     now.Day() <= s.windowDays,
		Month:    month,
		ClosesOn: month.Start().AddDate(0, 0, s.windowDays-1),
	}
}

// Submit stores the physical count of every item at a location, taken now.
// The count anchors the ledger from this moment on and fixes the opening of
// the current month. Resubmitting inside the window replaces the earlier
// count.
func (s *RecalibrationService) Submit(ctx context.Context, p domain.Principal, in RecalibrationInput) (*domain.Recalibration, error) {
	if err := requireRole(p, domain.RoleManager); err != nil {
		return nil, err
	}
	if err := requireStaffAt(p, in.LocationID); err != nil {
		return nil, err
	}
	w := s.Window()
	if in.Month.IsZero() {
		in.Month = w.Month
	}
	if in.Month != w.Month {
		return nil, invalid("month", "only the current month ("+w.Month.String()+") can be recalibrated")
	}
	if !w.Open {
		return nil, ErrRecalibrationWindowClosed
	}
	loc, err := s.locations.Get(ctx, in.LocationID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var rec domain.Recalibration
	err = s.store.Tx(ctx, func(tx port.Store) error {
		items, err := tx.ListItems(ctx, port.ItemFilter{LocationID: loc.ID})
		if err != nil {
			return err
		}
		counts, err := matchCounts(items, in.Counts)
		if err != nil {
			return err
		}
		all, err := tx.ListRecalibrations(ctx, loc.ID)
		if err != nil {
			return err
		}
		others := make([]domain.Recalibration, 0, len(all))
		var previous *domain.Recalibration
		for i := range all {
			if all[i].Month == in.Month {
				previous = &all[i]
				continue
			}
			others = append(others, all[i])
		}
		movements, err := tx.ListMovements(ctx, port.MovementFilter{LocationID: loc.ID, To: now})
		if err != nil {
			return err
		}

		rec = domain.Recalibration{
			ID:          uuid.NewString(),
			LocationID:  loc.ID,
			Month:       in.Month,
			Lines:       make([]domain.RecalibrationLine, 0, len(items)),
			SubmittedBy: p.EmployeeID,
			SubmittedAt: now,
		}
		if previous != nil {
			rec.ID = previous.ID
		}
		for _, item := range items {
			computed := stock.BalanceAt(item, stock.FindAnchor(others, item.ID, in.Month), movements, now)
			counted := counts[item.ID]
			rec.Lines = append(rec.Lines, domain.RecalibrationLine{
				ItemID:   item.ID,
				Computed: computed,
				Counted:  counted,
				Variance: stock.Variance(computed, counted),
			})
		}
		return tx.SaveRecalibration(ctx, rec)
	})
	if err != nil {
		return nil, storeErr(err, "recalibration")
	}
	s.inventory.invalidate(ctx)

	mismatched := 0
	for _, l := range rec.Lines {
		if !l.Variance.IsZero() {
			mismatched++
		}
	}
	if mismatched > 0 {
		s.notifier.Notify(ctx, loc.ClusterHeadID, loc.ID, domain.NotifyRecalibration,
			fmt.Sprintf("%s recalibrated %s: %d of %d item(s) differ from the ledger", loc.Name, rec.Month, mismatched, len(rec.Lines)))
	}
	return &rec, nil
}

// matchCounts requires exactly one non-negative count per item.
func matchCounts(items []domain.InventoryItem, counts []CountInput) (map[string]decimal.Decimal, error) {
	known := make(map[string]bool, len(items))
	for _, it := range items {
		known[it.ID] = true
	}
	out := make(map[string]decimal.Decimal, len(counts))
	fields := map[string]string{}
	for i, c := range counts {
		field := fmt.Sprintf("counts[%d]", i)
		switch {
		case !known[c.ItemID]:
			fields[field+".item_id"] = "unknown item for this location"
		case c.Counted.IsNegative():
			fields[field+".counted"] = "must not be negative"
		default:
			if _, dup := out[c.ItemID]; dup {
				fields[field+".item_id"] = "counted twice"
			}
			out[c.ItemID] = c.Counted
		}
	}
	for _, it := range items {
		if _, ok := out[it.ID]; !ok && len(fields) < 20 {
			fields["counts."+it.SKU] = "missing count"
		}
	}
	if len(fields) > 0 {
		return nil, invalidFields(fields)
	}
	return out, nil
}

func (s *RecalibrationService) Get(ctx context.Context, id string) (*domain.Recalibration, error) {
	r, err := s.store.GetRecalibration(ctx, id)
	if err != nil {
		return nil, storeErr(err, "recalibration")
	}
	if r == nil {
		return nil, notFound("recalibration")
	}
	return r, nil
}

// List returns a location's recalibrations, optionally only month.
func (s *RecalibrationService) List(ctx context.Context, p domain.Principal, locationID string, month domain.Month) ([]domain.Recalibration, error) {
	if p.Anonymous {
		return nil, ErrForbidden
	}
	if locationID == "" {
		return nil, invalid("location_id", "is required")
	}
	if !month.IsZero() {
		r, err := s.store.FindRecalibration(ctx, locationID, month)
		if err != nil {
			return nil, storeErr(err, "recalibration")
		}
		if r == nil {
			return []domain.Recalibration{}, nil
		}
		return []domain.Recalibration{*r}, nil
	}
	out, err := s.store.ListRecalibrations(ctx, locationID)
	if err != nil {
		return nil, storeErr(err, "recalibration")
	}
	return out, nil
}
