package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/port"
)

type EmployeeInput struct {
	Name       string
	Email      string
	Phone      string
	Role       domain.Role
	ManagerID  string
	LocationID string
	HourlyRate decimal.Decimal
	JoinedOn   time.Time
	Password   string
}

type EmployeeService struct {
	store port.Store
	now   func() time.Time
}

func NewEmployeeService(store port.Store) *EmployeeService {
	return &EmployeeService{store: store, now: time.Now}
}

func hashPassword(pw string) (string, error) {
	if len(pw) < 8 {
		return "", invalid("password", "must be at least 8 characters")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// mayManage reports whether p may create or edit an employee of role r.
func mayManage(p domain.Principal, r domain.Role) error {
	if err := requireRole(p, domain.RoleManager); err != nil {
		return err
	}
	if r != domain.RoleEmployee && p.Role != domain.RoleClusterHead {
		return ErrForbidden
	}
	return nil
}

func (s *EmployeeService) validate(ctx context.Context, in EmployeeInput) error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "is required"
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		fields["email"] = "must be a valid email"
	}
	if !in.Role.Valid() {
		fields["role"] = "must be employee, manager or cluster_head"
	}
	if in.HourlyRate.IsNegative() {
		fields["hourly_rate"] = "must not be negative"
	}
	if len(fields) > 0 {
		return invalidFields(fields)
	}

	superior, hasSuperior := in.Role.Superior()
	if !hasSuperior {
		if in.ManagerID != "" {
			return invalid("manager_id", "cluster heads do not report to anyone")
		}
	} else {
		if in.ManagerID == "" {
			return invalid("manager_id", "is required for role "+string(in.Role))
		}
		m, err := s.store.GetEmployee(ctx, in.ManagerID)
		if err != nil {
			return storeErr(err, "manager")
		}
		if m == nil || !m.Active {
			return invalid("manager_id", "unknown manager")
		}
		if m.Role != superior {
			return invalid("manager_id", "must be a "+string(superior))
		}
	}

	if in.LocationID != "" {
		loc, err := s.store.GetLocation(ctx, in.LocationID)
		if err != nil {
			return storeErr(err, "location")
		}
		if loc == nil {
			return invalid("location_id", "unknown location")
		}
	}
	return nil
}

func (s *EmployeeService) Create(ctx context.Context, p domain.Principal, in EmployeeInput) (*domain.Employee, error) {
	if err := mayManage(p, in.Role); err != nil {
		return nil, err
	}
	return s.create(ctx, in)
}

// Bootstrap creates the first cluster head of an empty installation. It is
// refused once any active cluster head exists.
func (s *EmployeeService) Bootstrap(ctx context.Context, in EmployeeInput) (*domain.Employee, error) {
	in.Role = domain.RoleClusterHead
	in.ManagerID = ""
	if in.Password == "" {
		return nil, invalid("password", "is required")
	}
	heads, err := s.store.ListEmployees(ctx, port.EmployeeFilter{Role: domain.RoleClusterHead, ActiveOnly: true})
	if err != nil {
		return nil, storeErr(err, "employee")
	}
	if len(heads) > 0 {
		return nil, conflict("a cluster head already exists")
	}
	return s.create(ctx, in)
}

func (s *EmployeeService) create(ctx context.Context, in EmployeeInput) (*domain.Employee, error) {
	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	e := domain.Employee{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(in.Name),
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:      in.Phone,
		Role:       in.Role,
		ManagerID:  in.ManagerID,
		LocationID: in.LocationID,
		HourlyRate: in.HourlyRate,
		JoinedOn:   domain.DateOnly(in.JoinedOn),
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if in.JoinedOn.IsZero() {
		e.JoinedOn = domain.DateOnly(now)
	}
	if in.Password != "" {
		hash, err := hashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		e.PasswordHash = hash
	}
	if err := s.store.CreateEmployee(ctx, e); err != nil {
		return nil, storeErr(err, "employee")
	}
	return &e, nil
}

func (s *EmployeeService) Get(ctx context.Context, id string) (*domain.Employee, error) {
	e, err := s.store.GetEmployee(ctx, id)
	if err != nil {
		return nil, storeErr(err, "employee")
	}
	if e == nil {
		return nil, notFound("employee")
	}
	return e, nil
}

func (s *EmployeeService) List(ctx context.Context, p domain.Principal, f port.EmployeeFilter) ([]domain.Employee, error) {
	if p.Anonymous {
		return nil, ErrForbidden
	}
	out, err := s.store.ListEmployees(ctx, f)
	if err != nil {
		return nil, storeErr(err, "employee")
	}
	return out, nil
}

func (s *EmployeeService) Update(ctx context.Context, p domain.Principal, id string, in EmployeeInput) (*domain.Employee, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mayManage(p, in.Role); err != nil {
		return nil, err
	}
	if err := mayManage(p, e.Role); err != nil {
		return nil, err
	}
	if in.ManagerID == id {
		return nil, invalid("manager_id", "an employee cannot report to themselves")
	}
	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}
	if in.Role != e.Role {
		reports, err := s.store.ListEmployees(ctx, port.EmployeeFilter{ManagerID: id, ActiveOnly: true})
		if err != nil {
			return nil, storeErr(err, "employee")
		}
		if len(reports) > 0 {
			return nil, conflict("cannot change the role of an employee with direct reports")
		}
	}

	e.Name = strings.TrimSpace(in.Name)
	e.Email = strings.ToLower(strings.TrimSpace(in.Email))
	e.Phone = in.Phone
	e.Role = in.Role
	e.ManagerID = in.ManagerID
	e.LocationID = in.LocationID
	e.HourlyRate = in.HourlyRate
	if !in.JoinedOn.IsZero() {
		e.JoinedOn = domain.DateOnly(in.JoinedOn)
	}
	e.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateEmployee(ctx, *e); err != nil {
		return nil, storeErr(err, "employee")
	}
	return e, nil
}

// Deactivate is the DELETE of an employee: history (timesheets, payouts)
// keeps referring to the record.
func (s *EmployeeService) Deactivate(ctx context.Context, p domain.Principal, id string) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := mayManage(p, e.Role); err != nil {
		return err
	}
	ok, err := s.CanApprove(ctx, p.EmployeeID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	reports, err := s.store.ListEmployees(ctx, port.EmployeeFilter{ManagerID: id, ActiveOnly: true})
	if err != nil {
		return storeErr(err, "employee")
	}
	if len(reports) > 0 {
		return conflict("reassign direct reports before deactivating")
	}
	e.Active = false
	e.UpdatedAt = s.now().UTC()
	return storeErr(s.store.UpdateEmployee(ctx, *e), "employee")
}

// Reports returns the direct and indirect reports of id, breadth first.
func (s *EmployeeService) Reports(ctx context.Context, id string) ([]domain.Employee, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	var out []domain.Employee
	seen := map[string]bool{id: true}
	frontier := []string{id}
	for len(frontier) > 0 {
		var next []string
		for _, mid := range frontier {
			direct, err := s.store.ListEmployees(ctx, port.EmployeeFilter{ManagerID: mid})
			if err != nil {
				return nil, storeErr(err, "employee")
			}
			for _, e := range direct {
				if seen[e.ID] {
					continue
				}
				seen[e.ID] = true
				out = append(out, e)
				next = append(next, e.ID)
			}
		}
		frontier = next
	}
	return out, nil
}

// CanApprove reports whether approverID sits above subjectID in the manager
// chain. A cluster head also approves anyone working at a location in their
// cluster.
func (s *EmployeeService) CanApprove(ctx context.Context, approverID, subjectID string) (bool, error) {
	if approverID == "" || approverID == subjectID {
		return false, nil
	}
	subject, err := s.Get(ctx, subjectID)
	if err != nil {
		return false, err
	}

	cur := subject
	for hops := 0; cur.ManagerID != "" && hops < 3; hops++ {
		if cur.ManagerID == approverID {
			return true, nil
		}
		next, err := s.store.GetEmployee(ctx, cur.ManagerID)
		if err != nil {
			return false, storeErr(err, "employee")
		}
		if next == nil {
			break
		}
		cur = next
	}

	if subject.LocationID != "" {
		loc, err := s.store.GetLocation(ctx, subject.LocationID)
		if err != nil {
			return false, storeErr(err, "location")
		}
		if loc != nil && loc.ClusterHeadID == approverID {
			return true, nil
		}
	}
	return false, nil
}

// requireApprover fails unless p may approve on behalf of subjectID.
func (s *EmployeeService) requireApprover(ctx context.Context, p domain.Principal, subjectID string) error {
	if p.Anonymous {
		return ErrForbidden
	}
	ok, err := s.CanApprove(ctx, p.EmployeeID, subjectID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// requireSelfOrApprover lets an employee act on their own records.
func (s *EmployeeService) requireSelfOrApprover(ctx context.Context, p domain.Principal, subjectID string) error {
	if !p.Anonymous && p.EmployeeID == subjectID {
		return nil
	}
	return s.requireApprover(ctx, p, subjectID)
}
