package handler

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/core/service"
)

// Date accepts "2006-01-02" or RFC 3339 in request bodies.
type Date struct{ time.Time }

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type passwordRequest struct {
	Password string `json:"password" binding:"required,min=8"`
}

type locationRequest struct {
	Name          string `json:"name" binding:"required"`
	Address       string `json:"address"`
	ClusterHeadID string `json:"cluster_head_id"`
}

func (r locationRequest) input(kind domain.LocationKind) service.LocationInput {
	return service.LocationInput{Name: r.Name, Kind: kind, Address: r.Address, ClusterHeadID: r.ClusterHeadID}
}

type itemRequest struct {
	LocationID      string              `json:"location_id" binding:"required"`
	SKU             string              `json:"sku" binding:"required"`
	Name            string              `json:"name" binding:"required"`
	Category        domain.ItemCategory `json:"category" binding:"required"`
	Unit            string              `json:"unit"`
	UnitCost        decimal.Decimal     `json:"unit_cost"`
	Threshold       decimal.Decimal     `json:"threshold"`
	InitialQuantity decimal.Decimal     `json:"initial_quantity"`
	Version         int                 `json:"version"`
}

func (r itemRequest) input() service.ItemInput {
	return service.ItemInput{
		LocationID:      r.LocationID,
		SKU:             r.SKU,
		Name:            r.Name,
		Category:        r.Category,
		Unit:            r.Unit,
		UnitCost:        r.UnitCost,
		Threshold:       r.Threshold,
		InitialQuantity: r.InitialQuantity,
		Version:         r.Version,
	}
}

type movementRequest struct {
	Kind       domain.MovementKind `json:"kind" binding:"required"`
	Quantity   decimal.Decimal     `json:"quantity"`
	OccurredOn Date                `json:"occurred_on"`
	Reference  string              `json:"reference"`
	Note       string              `json:"note"`
}

type saleRequest struct {
	StoreID     string             `json:"store_id" binding:"required"`
	SoldOn      Date               `json:"sold_on"`
	PaymentMode domain.PaymentMode `json:"payment_mode" binding:"required"`
	Lines       []domain.SaleLine  `json:"lines" binding:"required,min=1"`
}

type overheadRequest struct {
	LocationID string          `json:"location_id" binding:"required"`
	Category   string          `json:"category" binding:"required"`
	Amount     decimal.Decimal `json:"amount"`
	IncurredOn Date            `json:"incurred_on"`
	Note       string          `json:"note"`
}

func (r overheadRequest) input() service.OverheadInput {
	return service.OverheadInput{
		LocationID: r.LocationID,
		Category:   r.Category,
		Amount:     r.Amount,
		IncurredOn: r.IncurredOn.Time,
		Note:       r.Note,
	}
}

type employeeRequest struct {
	Name       string          `json:"name" binding:"required"`
	Email      string          `json:"email" binding:"required,email"`
	Phone      string          `json:"phone"`
	Role       domain.Role     `json:"role" binding:"required"`
	ManagerID  string          `json:"manager_id"`
	LocationID string          `json:"location_id"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
	JoinedOn   Date            `json:"joined_on"`
	Password   string          `json:"password"`
}

func (r employeeRequest) input() service.EmployeeInput {
	return service.EmployeeInput{
		Name:       r.Name,
		Email:      r.Email,
		Phone:      r.Phone,
		Role:       r.Role,
		ManagerID:  r.ManagerID,
		LocationID: r.LocationID,
		HourlyRate: r.HourlyRate,
		JoinedOn:   r.JoinedOn.Time,
		Password:   r.Password,
	}
}

type timesheetRequest struct {
	EmployeeID string          `json:"employee_id"`
	WorkDate   Date            `json:"work_date"`
	Hours      decimal.Decimal `json:"hours"`
	Note       string          `json:"note"`
}

type leaveRequest struct {
	EmployeeID string           `json:"employee_id"`
	Kind       domain.LeaveKind `json:"kind" binding:"required"`
	StartDate  Date             `json:"start_date"`
	EndDate    Date             `json:"end_date"`
	Reason     string           `json:"reason"`
}

type payoutRequest struct {
	EmployeeID string            `json:"employee_id" binding:"required"`
	Period     domain.Month      `json:"period"`
	Kind       domain.PayoutKind `json:"kind" binding:"required"`
	Amount     decimal.Decimal   `json:"amount"`
	PaidOn     Date              `json:"paid_on"`
	Note       string            `json:"note"`
}

type lineRequest struct {
	SKU      string          `json:"sku" binding:"required"`
	Quantity decimal.Decimal `json:"quantity"`
}

func lineInputs(lines []lineRequest) []service.RequestLineInput {
	out := make([]service.RequestLineInput, 0, len(lines))
	for _, l := range lines {
		out = append(out, service.RequestLineInput{SKU: l.SKU, Quantity: l.Quantity})
	}
	return out
}

type productionRequest struct {
	StoreID           string        `json:"store_id" binding:"required"`
	ProductionHouseID string        `json:"production_house_id" binding:"required"`
	Lines             []lineRequest `json:"lines" binding:"required,min=1,dive"`
	NeededBy          *Date         `json:"needed_by"`
	Notes             string        `json:"notes"`
}

func (r productionRequest) input() service.ProductionRequestInput {
	in := service.ProductionRequestInput{
		StoreID:           r.StoreID,
		ProductionHouseID: r.ProductionHouseID,
		Lines:             lineInputs(r.Lines),
		Notes:             r.Notes,
	}
	if r.NeededBy != nil && !r.NeededBy.IsZero() {
		t := r.NeededBy.Time
		in.NeededBy = &t
	}
	return in
}

// quantitiesRequest is the optional body of dispatch and receive. Omitted
// lines default to the full quantity.
type quantitiesRequest struct {
	Lines []lineRequest `json:"lines" binding:"dive"`
}

type countRequest struct {
	ItemID  string          `json:"item_id" binding:"required"`
	Counted decimal.Decimal `json:"counted"`
}

type recalibrationRequest struct {
	LocationID string         `json:"location_id" binding:"required"`
	Month      domain.Month   `json:"month"`
	Counts     []countRequest `json:"counts" binding:"required,min=1,dive"`
}

func (r recalibrationRequest) input() service.RecalibrationInput {
	in := service.RecalibrationInput{LocationID: r.LocationID, Month: r.Month}
	for _, c := range r.Counts {
		in.Counts = append(in.Counts, service.CountInput{ItemID: c.ItemID, Counted: c.Counted})
	}
	return in
}
