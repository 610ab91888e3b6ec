package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMode string

const (
	PaymentCash PaymentMode = "cash"
	PaymentCard PaymentMode = "card"
	PaymentUPI  PaymentMode = "upi"
)

func (p PaymentMode) Valid() bool {
	return p == PaymentCash || p == PaymentCard || p == PaymentUPI
}

type SaleLine struct {
	ItemID    string          `json:"item_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (l SaleLine) Amount() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

type Sale struct {
	ID          string          `json:"id"`
	StoreID     string          `json:"store_id"`
	SoldOn      time.Time       `json:"sold_on"`
	PaymentMode PaymentMode     `json:"payment_mode"`
	Lines       []SaleLine      `json:"lines"`
	Total       decimal.Decimal `json:"total"`
	RecordedBy  string          `json:"recorded_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Overhead struct {
	ID         string          `json:"id"`
	LocationID string          `json:"location_id"`
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	IncurredOn time.Time       `json:"incurred_on"`
	Note       string          `json:"note,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
