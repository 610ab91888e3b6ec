package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestAccepted   RequestStatus = "accepted"
	RequestRejected   RequestStatus = "rejected"
	RequestCancelled  RequestStatus = "cancelled"
	RequestDispatched RequestStatus = "dispatched"
	RequestReceived   RequestStatus = "received"
)

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestPending:    {RequestAccepted, RequestRejected, RequestCancelled},
	RequestAccepted:   {RequestDispatched},
	RequestDispatched: {RequestReceived},
}

// CanTransition reports whether a request may move from s to next.
func (s RequestStatus) CanTransition(next RequestStatus) bool {
	for _, allowed := range requestTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type RequestLine struct {
	SKU                string          `json:"sku"`
	Quantity           decimal.Decimal `json:"quantity"`
	DispatchedQuantity decimal.Decimal `json:"dispatched_quantity"`
	ReceivedQuantity   decimal.Decimal `json:"received_quantity"`
}

// ProductionRequest is a store asking a production house for stock.
type ProductionRequest struct {
	ID                string        `json:"id"`
	StoreID           string        `json:"store_id"`
	ProductionHouseID string        `json:"production_house_id"`
	Status            RequestStatus `json:"status"`
	Lines             []RequestLine `json:"lines"`
	NeededBy          *time.Time    `json:"needed_by,omitempty"`
	Notes             string        `json:"notes,omitempty"`
	RequestedBy       string        `json:"requested_by"`
	DecidedBy         string        `json:"decided_by,omitempty"`
	Version           int           `json:"version"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

type RecalibrationLine struct {
	ItemID   string          `json:"item_id"`
	Computed decimal.Decimal `json:"computed"`
	Counted  decimal.Decimal `json:"counted"`
	Variance decimal.Decimal `json:"variance"`
}

// Recalibration is a physical count that becomes the opening balance of
// Month at LocationID.
type Recalibration struct {
	ID          string              `json:"id"`
	LocationID  string              `json:"location_id"`
	Month       Month               `json:"month"`
	Lines       []RecalibrationLine `json:"lines"`
	SubmittedBy string              `json:"submitted_by"`
	SubmittedAt time.Time           `json:"submitted_at"`
}

// Counted returns the counted quantity for itemID, if the item was counted.
func (r Recalibration) Counted(itemID string) (decimal.Decimal, bool) {
	for _, l := range r.Lines {
		if l.ItemID == itemID {
			return l.Counted, true
		}
	}
	return decimal.Zero, false
}

type NotificationKind string

const (
	NotifyLowStock          NotificationKind = "low_stock"
	NotifyProductionRequest NotificationKind = "production_request"
	NotifyTimesheet         NotificationKind = "timesheet"
	NotifyLeave             NotificationKind = "leave"
	NotifyRecalibration     NotificationKind = "recalibration"
)

type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipient_id"`
	LocationID  string           `json:"location_id,omitempty"`
	Kind        NotificationKind `json:"kind"`
	Message     string           `json:"message"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"created_at"`
}
