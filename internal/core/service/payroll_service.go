package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/port"
)

type PayoutInput struct {
	EmployeeID string
	Period     domain.Month
	Kind       domain.PayoutKind
	Amount     decimal.Decimal
	PaidOn     time.Time
	Note       string
}

type PayrollService struct {
	store     port.Store
	employees *EmployeeService
	now       func() time.Time
}

func NewPayrollService(store port.Store, employees *EmployeeService) *PayrollService {
	return &PayrollService{store: store, employees: employees, now: time.Now}
}

func (s *PayrollService) CreatePayout(ctx context.Context, p domain.Principal, in PayoutInput) (*domain.Payout, error) {
	if err := requireRole(p, domain.RoleManager); err != nil {
		return nil, err
	}
	fields := map[string]string{}
	if !in.Kind.Valid() {
		fields["kind"] = "must be salary, advance or bonus"
	}
	if !in.Amount.IsPositive() {
		fields["amount"] = "must be greater than zero"
	}
	if in.Period.IsZero() {
		fields["period"] = "is required"
	}
	if len(fields) > 0 {
		return nil, invalidFields(fields)
	}
	if err := s.employees.requireApprover(ctx, p, in.EmployeeID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	po := domain.Payout{
		ID:         uuid.NewString(),
		EmployeeID: in.EmployeeID,
		Period:     in.Period,
		Kind:       in.Kind,
		Amount:     in.Amount,
		PaidOn:     domain.DateOnly(in.PaidOn),
		Note:       in.Note,
		CreatedAt:  now,
	}
	if in.PaidOn.IsZero() {
		po.PaidOn = domain.DateOnly(now)
	}
	if err := s.store.CreatePayout(ctx, po); err != nil {
		return nil, storeErr(err, "payout")
	}
	return &po, nil
}

func (s *PayrollService) GetPayout(ctx context.Context, p domain.Principal, id string) (*domain.Payout, error) {
	po, err := s.store.GetPayout(ctx, id)
	if err != nil {
		return nil, storeErr(err, "payout")
	}
	if po == nil {
		return nil, notFound("payout")
	}
	if err := s.employees.requireSelfOrApprover(ctx, p, po.EmployeeID); err != nil {
		return nil, err
	}
	return po, nil
}

func (s *PayrollService) ListPayouts(ctx context.Context, p domain.Principal, f port.PayoutFilter) ([]domain.Payout, error) {
	if p.Anonymous {
		return nil, ErrForbidden
	}
	if !p.AtLeast(domain.RoleManager) {
		f.EmployeeID = p.EmployeeID
	}
	out, err := s.store.ListPayouts(ctx, f)
	if err != nil {
		return nil, storeErr(err, "payout")
	}
	return out, nil
}

func (s *PayrollService) DeletePayout(ctx context.Context, p domain.Principal, id string) error {
	po, err := s.GetPayout(ctx, p, id)
	if err != nil {
		return err
	}
	if err := s.employees.requireApprover(ctx, p, po.EmployeeID); err != nil {
		return err
	}
	return storeErr(s.store.DeletePayout(ctx, id), "payout")
}

// Payroll computes each employee's month: gross is approved hours times the
// hourly rate, due is gross minus every payout booked against the period.
func (s *PayrollService) Payroll(ctx context.Context, p domain.Principal, month domain.Month, locationID string) ([]domain.PayrollLine, error) {
	if err := requireRole(p, domain.RoleManager); err != nil {
		return nil, err
	}
	if locationID != "" {
		if err := requireStaffAt(p, locationID); err != nil {
			return nil, err
		}
	} else if p.Role != domain.RoleClusterHead {
		locationID = p.LocationID
	}
	if month.IsZero() {
		month = domain.MonthOf(s.now().UTC())
	}

	emps, err := s.store.ListEmployees(ctx, port.EmployeeFilter{LocationID: locationID})
	if err != nil {
		return nil, storeErr(err, "employee")
	}
	sheets, err := s.store.ListTimesheets(ctx, port.TimesheetFilter{Status: domain.StatusApproved, From: month.Start(), To: month.End()})
	if err != nil {
		return nil, storeErr(err, "timesheet")
	}
	payouts, err := s.store.ListPayouts(ctx, port.PayoutFilter{Period: month})
	if err != nil {
		return nil, storeErr(err, "payout")
	}

	hours := map[string]decimal.Decimal{}
	for _, ts := range sheets {
		hours[ts.EmployeeID] = hours[ts.EmployeeID].Add(ts.Hours)
	}
	paid := map[string]decimal.Decimal{}
	for _, po := range payouts {
		paid[po.EmployeeID] = paid[po.EmployeeID].Add(po.Amount)
	}

	lines := make([]domain.PayrollLine, 0, len(emps))
	for _, e := range emps {
		h, hasHours := hours[e.ID]
		pd, hasPaid := paid[e.ID]
		if !e.Active && !hasHours && !hasPaid {
			continue
		}
		gross := h.Mul(e.HourlyRate)
		lines = append(lines, domain.PayrollLine{
			EmployeeID:    e.ID,
			EmployeeName:  e.Name,
			ApprovedHours: h,
			HourlyRate:    e.HourlyRate,
			Gross:         gross,
			Paid:          pd,
			Due:           gross.Sub(pd),
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].EmployeeName < lines[j].EmployeeName })
	return lines, nil
}
