package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/port"
)

type OverheadInput struct {
	LocationID string
	Category   string
	Amount     decimal.Decimal
	IncurredOn time.Time
	Note       string
}

type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

type OverheadSummary struct {
	LocationID string          `json:"location_id"`
	Month      domain.Month    `json:"month"`
	Total      decimal.Decimal `json:"total"`
	Categories []CategoryTotal `json:"categories"`
}

type OverheadService struct {
	store     port.Store
	locations *LocationService
	now       func() time.Time
}

func NewOverheadService(store port.Store, locations *LocationService) *OverheadService {
	return &OverheadService{store: store, locations: locations, now: time.Now}
}

func (s *OverheadService) check(ctx context.Context, p domain.Principal, in OverheadInput) error {
	if err := requireRole(p, domain.RoleManager); err != nil {
		return err
	}
	if err := requireStaffAt(p, in.LocationID); err != nil {
		return err
	}
	fields := map[string]string{}
	if strings.TrimSpace(in.Category) == "" {
		fields["category"] = "is required"
	}
	if !in.Amount.IsPositive() {
		fields["amount"] = "must be greater than zero"
	}
	if in.IncurredOn.IsZero() {
		fields["incurred_on"] = "is required"
	}
	if len(fields) > 0 {
		return invalidFields(fields)
	}
	_, err := s.locations.Get(ctx, in.LocationID)
	return err
}

func (s *OverheadService) Create(ctx context.Context, p domain.Principal, in OverheadInput) (*domain.Overhead, error) {
	if err := s.check(ctx, p, in); err != nil {
		return nil, err
	}
	o := domain.Overhead{
		ID:         uuid.NewString(),
		LocationID: in.LocationID,
		Category:   strings.ToLower(strings.TrimSpace(in.Category)),
		Amount:     in.Amount,
		IncurredOn: domain.DateOnly(in.IncurredOn),
		Note:       in.Note,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.CreateOverhead(ctx, o); err != nil {
		return nil, storeErr(err, "overhead")
	}
	return &o, nil
}

func (s *OverheadService) Get(ctx context.Context, id string) (*domain.Overhead, error) {
	o, err := s.store.GetOverhead(ctx, id)
	if err != nil {
		return nil, storeErr(err, "overhead")
	}
	if o == nil {
		return nil, notFound("overhead")
	}
	return o, nil
}

func (s *OverheadService) List(ctx context.Context, p domain.Principal, f port.OverheadFilter) ([]domain.Overhead, error) {
	if err := requireRole(p, domain.RoleManager); err != nil {
		return nil, err
	}
	out, err := s.store.ListOverheads(ctx, f)
	if err != nil {
		return nil, storeErr(err, "overhead")
	}
	return out, nil
}

func (s *OverheadService) Update(ctx context.Context, p domain.Principal, id string, in OverheadInput) (*domain.Overhead, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireStaffAt(p, o.LocationID); err != nil {
		return nil, err
	}
	if err := s.check(ctx, p, in); err != nil {
		return nil, err
	}
	o.LocationID = in.LocationID
	o.Category = strings.ToLower(strings.TrimSpace(in.Category))
	o.Amount = in.Amount
	o.IncurredOn = domain.DateOnly(in.IncurredOn)
	o.Note = in.Note
	if err := s.store.UpdateOverhead(ctx, *o); err != nil {
		return nil, storeErr(err, "overhead")
	}
	return o, nil
}

func (s *OverheadService) Delete(ctx context.Context, p domain.Principal, id string) error {
	o, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := requireRole(p, domain.RoleManager); err != nil {
		return err
	}
	if err := requireStaffAt(p, o.LocationID); err != nil {
		return err
	}
	return storeErr(s.store.DeleteOverhead(ctx, id), "overhead")
}

func (s *OverheadService) Summary(ctx context.Context, p domain.Principal, locationID string, month domain.Month) (*OverheadSummary, error) {
	if month.IsZero() {
		month = domain.MonthOf(s.now().UTC())
	}
	list, err := s.List(ctx, p, port.OverheadFilter{LocationID: locationID, From: month.Start(), To: month.End()})
	if err != nil {
		return nil, err
	}
	byCat := map[string]decimal.Decimal{}
	out := &OverheadSummary{LocationID: locationID, Month: month, Total: decimal.Zero, Categories: []CategoryTotal{}}
	for _, o := range list {
		byCat[o.Category] = byCat[o.Category].Add(o.Amount)
		out.Total = out.Total.Add(o.Amount)
	}
	for c, t := range byCat {
		out.Categories = append(out.Categories, CategoryTotal{Category: c, Total: t})
	}
	sort.Slice(out.Categories, func(i, j int) bool { return out.Categories[i].Category < out.Categories[j].Category })
	return out, nil
}
