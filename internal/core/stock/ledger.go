// Package stock derives balances from the movement ledger. It performs no I/O.
package stock

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/momoworks/momo-ops/internal/core/domain"
)

// Anchor is a physical count of an item taken at At during Month.
type Anchor struct {
	Month   domain.Month
	Counted decimal.Decimal
	At      time.Time
}

// countedAt is when the count was taken. Records without a timestamp count
// as taken on the first day of their month.
func (a *Anchor) countedAt() time.Time {
	if a.At.IsZero() {
		return a.Month.Start()
	}
	return a.At
}

// Row is one line of a monthly stock summary.
type Row struct {
	ItemID    string          `json:"item_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Opening   decimal.Decimal `json:"opening"`
	Inward    decimal.Decimal `json:"inward"`
	Outward   decimal.Decimal `json:"outward"`
	Closing   decimal.Decimal `json:"closing"`
	Threshold decimal.Decimal `json:"threshold"`
	Low       bool            `json:"low"`
}

// FindAnchor picks the latest recalibration at or before month that counted
// itemID. Recalibrations may be in any order.
func FindAnchor(recals []domain.Recalibration, itemID string, month domain.Month) *Anchor {
	var best *Anchor
	for _, r := range recals {
		if month.Before(r.Month) {
			continue
		}
		counted, ok := r.Counted(itemID)
		if !ok {
			continue
		}
		if best == nil || best.Month.Before(r.Month) {
			best = &Anchor{Month: r.Month, Counted: counted, At: r.SubmittedAt}
		}
	}
	return best
}

// Opening returns the balance of item at the start of month.
func Opening(item domain.InventoryItem, anchor *Anchor, movements []domain.StockMovement, month domain.Month) decimal.Decimal {
	if anchor != nil && month.Before(anchor.Month) {
		anchor = nil
	}
	return BalanceAt(item, anchor, movements, month.Start())
}

// BalanceAt returns the stock of item at instant t.
//
// Without an anchor it is the initial quantity plus every movement before t.
// With one it is the counted quantity moved by the movements between the
// count and t, so movements stamped before the count are taken as already
// reflected on the shelf. For t before the count that walks backwards, which
// is how the opening of the counted month is derived.
func BalanceAt(item domain.InventoryItem, anchor *Anchor, movements []domain.StockMovement, t time.Time) decimal.Decimal {
	if anchor == nil {
		balance := item.InitialQuantity
		for _, m := range movements {
			if m.ItemID == item.ID && m.OccurredOn.Before(t) {
				balance = balance.Add(m.Signed())
			}
		}
		return balance
	}
	at := anchor.countedAt()
	balance := anchor.Counted
	for _, m := range movements {
		if m.ItemID != item.ID {
			continue
		}
		switch {
		case !m.OccurredOn.Before(at) && m.OccurredOn.Before(t):
			balance = balance.Add(m.Signed())
		case !m.OccurredOn.Before(t) && m.OccurredOn.Before(at):
			balance = balance.Sub(m.Signed())
		}
	}
	return balance
}

// Summarize folds the movements of month onto opening.
func Summarize(item domain.InventoryItem, opening decimal.Decimal, movements []domain.StockMovement, month domain.Month) Row {
	inward, outward := decimal.Zero, decimal.Zero
	start, end := month.Start(), month.End()
	for _, m := range movements {
		if m.ItemID != item.ID || m.OccurredOn.Before(start) || !m.OccurredOn.Before(end) {
			continue
		}
		if m.Kind.Sign() > 0 {
			inward = inward.Add(m.Quantity)
		} else {
			outward = outward.Add(m.Quantity)
		}
	}
	closing := opening.Add(inward).Sub(outward)
	return Row{
		ItemID:    item.ID,
		SKU:       item.SKU,
		Name:      item.Name,
		Unit:      item.Unit,
		Opening:   opening,
		Inward:    inward,
		Outward:   outward,
		Closing:   closing,
		Threshold: item.Threshold,
		Low:       IsLow(closing, item.Threshold),
	}
}

// Balance is the closing balance of month, i.e. the stock on hand at its end.
func Balance(item domain.InventoryItem, recals []domain.Recalibration, movements []domain.StockMovement, month domain.Month) decimal.Decimal {
	anchor := FindAnchor(recals, item.ID, month)
	opening := Opening(item, anchor, movements, month)
	return Summarize(item, opening, movements, month).Closing
}

// IsLow reports a threshold breach. A zero threshold disables alerts.
func IsLow(closing, threshold decimal.Decimal) bool {
	return threshold.IsPositive() && closing.LessThan(threshold)
}

// Variance is counted minus computed: positive means surplus on the shelf.
func Variance(computed, counted decimal.Decimal) decimal.Decimal {
	return counted.Sub(computed)
}

// Report builds summary rows for every item, sorted by SKU.
func Report(items []domain.InventoryItem, recals []domain.Recalibration, movements []domain.StockMovement, month domain.Month) []Row {
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		anchor := FindAnchor(recals, item.ID, month)
		opening := Opening(item, anchor, movements, month)
		rows = append(rows, Summarize(item, opening, movements, month))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SKU < rows[j].SKU })
	return rows
}
