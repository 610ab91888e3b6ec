package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemCategory string

const (
	CategoryRawMaterial  ItemCategory = "raw_material"
	CategoryFinishedGood ItemCategory = "finished_good"
	CategoryPackaging    ItemCategory = "packaging"
)

func (c ItemCategory) Valid() bool {
	switch c {
	case CategoryRawMaterial, CategoryFinishedGood, CategoryPackaging:
		return true
	}
	return false
}

// InventoryItem is one SKU stocked at one location. The on-hand quantity is
// never stored; it is derived from InitialQuantity, recalibrations and the
// movement ledger.
type InventoryItem struct {
	ID              string          `json:"id"`
	LocationID      string          `json:"location_id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Category        ItemCategory    `json:"category"`
	Unit            string          `json:"unit"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	Threshold       decimal.Decimal `json:"threshold"`
	InitialQuantity decimal.Decimal `json:"initial_quantity"`
	Version         int             `json:"version"` // optimistic locking
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type MovementKind string

const (
	MovementPurchase    MovementKind = "purchase"
	MovementProduction  MovementKind = "production"
	MovementConsumption MovementKind = "consumption"
	MovementTransferIn  MovementKind = "transfer_in"
	MovementTransferOut MovementKind = "transfer_out"
	MovementSale        MovementKind = "sale"
	MovementWastage     MovementKind = "wastage"
)

func (k MovementKind) Valid() bool {
	switch k {
	case MovementPurchase, MovementProduction, MovementConsumption,
		MovementTransferIn, MovementTransferOut, MovementSale, MovementWastage:
		return true
	}
	return false
}

// Sign is +1 for movements that add stock and -1 for those that remove it.
func (k MovementKind) Sign() int {
	switch k {
	case MovementPurchase, MovementProduction, MovementTransferIn:
		return 1
	default:
		return -1
	}
}

// StockMovement is an immutable ledger entry. Quantity is always positive;
// direction comes from Kind.
type StockMovement struct {
	ID         string          `json:"id"`
	ItemID     string          `json:"item_id"`
	LocationID string          `json:"location_id"`
	Kind       MovementKind    `json:"kind"`
	Quantity   decimal.Decimal `json:"quantity"`
	OccurredOn time.Time       `json:"occurred_on"`
	Reference  string          `json:"reference,omitempty"`
	Note       string          `json:"note,omitempty"`
	CreatedBy  string          `json:"created_by,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Signed returns the quantity with the direction of the movement applied.
func (m StockMovement) Signed() decimal.Decimal {
	if m.Kind.Sign() < 0 {
		return m.Quantity.Neg()
	}
	return m.Quantity
}
