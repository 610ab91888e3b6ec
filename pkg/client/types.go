package client

import (
	"time"

	"github.com/shopspring/decimal"
)

type Location struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Kind          string    `json:"kind"`
	Address       string    `json:"address,omitempty"`
	ClusterHeadID string    `json:"cluster_head_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type LocationInput struct {
	Name          string `json:"name" yaml:"name"`
	Address       string `json:"address,omitempty" yaml:"address"`
	ClusterHeadID string `json:"cluster_head_id,omitempty" yaml:"cluster_head_id"`
}

type Employee struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Phone      string          `json:"phone,omitempty"`
	Role       string          `json:"role"`
	ManagerID  string          `json:"manager_id,omitempty"`
	LocationID string          `json:"location_id,omitempty"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
	Active     bool            `json:"active"`
}

type EmployeeInput struct {
	Name       string          `json:"name" yaml:"name"`
	Email      string          `json:"email" yaml:"email"`
	Phone      string          `json:"phone,omitempty" yaml:"phone"`
	Role       string          `json:"role" yaml:"role"`
	ManagerID  string          `json:"manager_id,omitempty" yaml:"manager_id"`
	LocationID string          `json:"location_id,omitempty" yaml:"location_id"`
	HourlyRate decimal.Decimal `json:"hourly_rate" yaml:"hourly_rate"`
	JoinedOn   string          `json:"joined_on,omitempty" yaml:"joined_on"`
	Password   string          `json:"password,omitempty" yaml:"password"`
}

type LoginResult struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Employee    Employee  `json:"employee"`
}

type Item struct {
	ID              string          `json:"id"`
	LocationID      string          `json:"location_id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	Unit            string          `json:"unit"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	Threshold       decimal.Decimal `json:"threshold"`
	InitialQuantity decimal.Decimal `json:"initial_quantity"`
	Version         int             `json:"version"`
}

type ItemInput struct {
	LocationID      string          `json:"location_id" yaml:"location_id"`
	SKU             string          `json:"sku" yaml:"sku"`
	Name            string          `json:"name" yaml:"name"`
	Category        string          `json:"category" yaml:"category"`
	Unit            string          `json:"unit" yaml:"unit"`
	UnitCost        decimal.Decimal `json:"unit_cost" yaml:"unit_cost"`
	Threshold       decimal.Decimal `json:"threshold" yaml:"threshold"`
	InitialQuantity decimal.Decimal `json:"initial_quantity" yaml:"initial_quantity"`
	Version         int             `json:"version" yaml:"-"`
}

type MovementInput struct {
	Kind       string          `json:"kind"`
	Quantity   decimal.Decimal `json:"quantity"`
	OccurredOn string          `json:"occurred_on,omitempty"`
	Reference  string          `json:"reference,omitempty"`
	Note       string          `json:"note,omitempty"`
}

type Movement struct {
	ID         string          `json:"id"`
	ItemID     string          `json:"item_id"`
	Kind       string          `json:"kind"`
	Quantity   decimal.Decimal `json:"quantity"`
	OccurredOn time.Time       `json:"occurred_on"`
}

type StockRow struct {
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

type RequestLine struct {
	SKU                string          `json:"sku"`
	Quantity           decimal.Decimal `json:"quantity"`
	DispatchedQuantity decimal.Decimal `json:"dispatched_quantity"`
	ReceivedQuantity   decimal.Decimal `json:"received_quantity"`
}

type ProductionRequest struct {
	ID                string        `json:"id"`
	StoreID           string        `json:"store_id"`
	ProductionHouseID string        `json:"production_house_id"`
	Status            string        `json:"status"`
	Lines             []RequestLine `json:"lines"`
	Notes             string        `json:"notes,omitempty"`
	Version           int           `json:"version"`
	CreatedAt         time.Time     `json:"created_at"`
}

type LineInput struct {
	SKU      string          `json:"sku"`
	Quantity decimal.Decimal `json:"quantity"`
}

type ProductionRequestInput struct {
	StoreID           string      `json:"store_id"`
	ProductionHouseID string      `json:"production_house_id"`
	Lines             []LineInput `json:"lines"`
	NeededBy          string      `json:"needed_by,omitempty"`
	Notes             string      `json:"notes,omitempty"`
}

type RequestFilter struct {
	StoreID           string
	ProductionHouseID string
	Status            string
}

type Window struct {
	Open     bool      `json:"open"`
	Month    string    `json:"month"`
	ClosesOn time.Time `json:"closes_on"`
}

type Count struct {
	ItemID  string          `json:"item_id" yaml:"item_id"`
	Counted decimal.Decimal `json:"counted" yaml:"counted"`
}

type RecalibrationInput struct {
	LocationID string  `json:"location_id"`
	Month      string  `json:"month,omitempty"`
	Counts     []Count `json:"counts"`
}

type RecalibrationLine struct {
	ItemID   string          `json:"item_id"`
	Computed decimal.Decimal `json:"computed"`
	Counted  decimal.Decimal `json:"counted"`
	Variance decimal.Decimal `json:"variance"`
}

type Recalibration struct {
	ID          string              `json:"id"`
	LocationID  string              `json:"location_id"`
	Month       string              `json:"month"`
	Lines       []RecalibrationLine `json:"lines"`
	SubmittedBy string              `json:"submitted_by"`
	SubmittedAt time.Time           `json:"submitted_at"`
}
