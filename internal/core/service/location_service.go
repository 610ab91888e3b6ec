package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/port"
)

type LocationInput struct {
	Name          string
	Kind          domain.LocationKind
	Address       string
	ClusterHeadID string
}

type LocationService struct {
	store port.Store
	now   func() time.Time
}

func NewLocationService(store port.Store) *LocationService {
	return &LocationService{store: store, now: time.Now}
}

func (s *LocationService) validate(ctx context.Context, in LocationInput) error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "is required"
	}
	if !in.Kind.Valid() {
		fields["kind"] = "must be store or production_house"
	}
	if len(fields) > 0 {
		return invalidFields(fields)
	}
	if in.ClusterHeadID != "" {
		head, err := s.store.GetEmployee(ctx, in.ClusterHeadID)
		if err != nil {
			return storeErr(err, "employee")
		}
		if head == nil || head.Role != domain.RoleClusterHead {
			return invalid("cluster_head_id", "must be a cluster head")
		}
	}
	return nil
}

func (s *LocationService) Create(ctx context.Context, p domain.Principal, in LocationInput) (*domain.Location, error) {
	if err := requireRole(p, domain.RoleClusterHead); err != nil {
		return nil, err
	}
	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}
	loc := domain.Location{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(in.Name),
		Kind:          in.Kind,
		Address:       in.Address,
		ClusterHeadID: in.ClusterHeadID,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.store.CreateLocation(ctx, loc); err != nil {
		return nil, storeErr(err, "location")
	}
	return &loc, nil
}

func (s *LocationService) Get(ctx context.Context, id string) (*domain.Location, error) {
	loc, err := s.store.GetLocation(ctx, id)
	if err != nil {
		return nil, storeErr(err, "location")
	}
	if loc == nil {
		return nil, notFound("location")
	}
	return loc, nil
}

// getKind loads id and checks it is of the wanted kind.
func (s *LocationService) getKind(ctx context.Context, id string, kind domain.LocationKind, field string) (*domain.Location, error) {
	loc, err := s.store.GetLocation(ctx, id)
	if err != nil {
		return nil, storeErr(err, "location")
	}
	if loc == nil || loc.Kind != kind {
		return nil, invalid(field, "must be a "+strings.ReplaceAll(string(kind), "_", " "))
	}
	return loc, nil
}

func (s *LocationService) List(ctx context.Context, kind domain.LocationKind) ([]domain.Location, error) {
	out, err := s.store.ListLocations(ctx, kind)
	if err != nil {
		return nil, storeErr(err, "location")
	}
	return out, nil
}

func (s *LocationService) Update(ctx context.Context, p domain.Principal, id string, in LocationInput) (*domain.Location, error) {
	if err := requireRole(p, domain.RoleClusterHead); err != nil {
		return nil, err
	}
	loc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Kind == "" {
		in.Kind = loc.Kind
	}
	if in.Kind != loc.Kind {
		return nil, invalid("kind", "cannot be changed")
	}
	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}
	loc.Name = strings.TrimSpace(in.Name)
	loc.Address = in.Address
	loc.ClusterHeadID = in.ClusterHeadID
	if err := s.store.UpdateLocation(ctx, *loc); err != nil {
		return nil, storeErr(err, "location")
	}
	return loc, nil
}

// Delete refuses while items or employees still reference the location.
func (s *LocationService) Delete(ctx context.Context, p domain.Principal, id string) error {
	if err := requireRole(p, domain.RoleClusterHead); err != nil {
		return err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	items, err := s.store.ListItems(ctx, port.ItemFilter{LocationID: id})
	if err != nil {
		return storeErr(err, "item")
	}
	if len(items) > 0 {
		return conflict("location still has inventory items")
	}
	staff, err := s.store.ListEmployees(ctx, port.EmployeeFilter{LocationID: id, ActiveOnly: true})
	if err != nil {
		return storeErr(err, "employee")
	}
	if len(staff) > 0 {
		return conflict("location still has employees")
	}
	return storeErr(s.store.DeleteLocation(ctx, id), "location")
}
