package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/momoworks/momo-ops/internal/apperr"
	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/port"
)

type LeaveInput struct {
	EmployeeID string // empty means the caller
	Kind       domain.LeaveKind
	StartDate  time.Time
	EndDate    time.Time
	Reason     string
}

// LeaveBalance is the yearly allowance position. Pending requests count
// against the balance so two requests cannot overdraw it together.
type LeaveBalance struct {
	EmployeeID string `json:"employee_id"`
	Year       int    `json:"year"`
	Allowance  int    `json:"allowance"`
	Approved   int    `json:"approved"`
	Pending    int    `json:"pending"`
	Remaining  int    `json:"remaining"`
}

type LeaveQuery struct {
	EmployeeID string
	Year       int
	Status     domain.ApprovalStatus
}

type LeaveService struct {
	store     port.Store
	employees *EmployeeService
	notifier  *NotificationService
	allowance int
	now       func() time.Time
}

func NewLeaveService(store port.Store, employees *EmployeeService, notifier *NotificationService, allowance int) *LeaveService {
	return &LeaveService{
		store:     store,
		employees: employees,
		notifier:  notifier,
		allowance: allowance,
		now:       time.Now,
	}
}

func yearRange(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}

// leaveDays counts calendar days in the inclusive range.
func leaveDays(start, end time.Time) int {
	return int(domain.DateOnly(end).Sub(domain.DateOnly(start)).Hours()/24) + 1
}

func (s *LeaveService) balance(ctx context.Context, st port.Store, employeeID string, year int) (LeaveBalance, error) {
	from, to := yearRange(year)
	leaves, err := st.ListLeaves(ctx, port.LeaveFilter{EmployeeID: employeeID, From: from, To: to})
	if err != nil {
		return LeaveBalance{}, err
	}
	b := LeaveBalance{EmployeeID: employeeID, Year: year, Allowance: s.allowance}
	for _, l := range leaves {
		switch l.Status {
		case domain.StatusApproved:
			b.Approved += l.Days
		case domain.StatusPending:
			b.Pending += l.Days
		}
	}
	b.Remaining = b.Allowance - b.Approved - b.Pending
	return b, nil
}

func (s *LeaveService) Balance(ctx context.Context, p domain.Principal, employeeID string, year int) (*LeaveBalance, error) {
	if employeeID == "" {
		employeeID = p.EmployeeID
	}
	if err := s.employees.requireSelfOrApprover(ctx, p, employeeID); err != nil {
		return nil, err
	}
	if year == 0 {
		year = s.now().UTC().Year()
	}
	b, err := s.balance(ctx, s.store, employeeID, year)
	if err != nil {
		return nil, storeErr(err, "leave")
	}
	return &b, nil
}

func (s *LeaveService) Request(ctx context.Context, p domain.Principal, in LeaveInput) (*domain.Leave, error) {
	if p.Anonymous {
		return nil, ErrForbidden
	}
	if in.EmployeeID == "" {
		in.EmployeeID = p.EmployeeID
	}
	if err := s.employees.requireSelfOrApprover(ctx, p, in.EmployeeID); err != nil {
		return nil, err
	}
	emp, err := s.employees.Get(ctx, in.EmployeeID)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if !in.Kind.Valid() {
		fields["kind"] = "must be casual, sick or earned"
	}
	if in.StartDate.IsZero() {
		fields["start_date"] = "is required"
	}
	if in.EndDate.IsZero() {
		fields["end_date"] = "is required"
	}
	if len(fields) > 0 {
		return nil, invalidFields(fields)
	}
	start, end := domain.DateOnly(in.StartDate), domain.DateOnly(in.EndDate)
	days := leaveDays(start, end)
	if days <= 0 {
		return nil, invalid("end_date", "must not be before start_date")
	}
	if start.Year() != end.Year() {
		return nil, invalid("end_date", "a leave cannot span two calendar years; split the request")
	}

	l := domain.Leave{
		ID:         uuid.NewString(),
		EmployeeID: emp.ID,
		Kind:       in.Kind,
		StartDate:  start,
		EndDate:    end,
		Days:       days,
		Reason:     in.Reason,
		Status:     domain.StatusPending,
		CreatedAt:  s.now().UTC(),
	}
	err = s.store.Tx(ctx, func(tx port.Store) error {
		existing, err := tx.ListLeaves(ctx, port.LeaveFilter{EmployeeID: emp.ID})
		if err != nil {
			return err
		}
		for _, other := range existing {
			if other.Status != domain.StatusRejected && l.Overlaps(other) {
				return conflict(fmt.Sprintf("overlaps leave %s to %s",
					other.StartDate.Format(time.DateOnly), other.EndDate.Format(time.DateOnly)))
			}
		}
		b, err := s.balance(ctx, tx, emp.ID, start.Year())
		if err != nil {
			return err
		}
		if days > b.Remaining {
			return insufficientLeave(b.Remaining)
		}
		return tx.CreateLeave(ctx, l)
	})
	if err != nil {
		return nil, storeErr(err, "leave")
	}
	s.notifier.Notify(ctx, emp.ManagerID, emp.LocationID, domain.NotifyLeave,
		fmt.Sprintf("%s requested %d day(s) of %s leave from %s", emp.Name, days, l.Kind, start.Format(time.DateOnly)))
	return &l, nil
}

func insufficientLeave(remaining int) error {
	return &apperr.AppError{
		Kind:      apperr.Invalid,
		PublicMsg: fmt.Sprintf("insufficient leave balance: %d day(s) remaining", remaining),
		Err:       ErrInsufficientLeave,
	}
}

func (s *LeaveService) Get(ctx context.Context, p domain.Principal, id string) (*domain.Leave, error) {
	l, err := s.store.GetLeave(ctx, id)
	if err != nil {
		return nil, storeErr(err, "leave")
	}
	if l == nil {
		return nil, notFound("leave")
	}
	if err := s.employees.requireSelfOrApprover(ctx, p, l.EmployeeID); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *LeaveService) List(ctx context.Context, p domain.Principal, q LeaveQuery) ([]domain.Leave, error) {
	if p.Anonymous {
		return nil, ErrForbidden
	}
	if !p.AtLeast(domain.RoleManager) {
		q.EmployeeID = p.EmployeeID
	}
	f := port.LeaveFilter{EmployeeID: q.EmployeeID, Status: q.Status}
	if q.Year != 0 {
		f.From, f.To = yearRange(q.Year)
	}
	out, err := s.store.ListLeaves(ctx, f)
	if err != nil {
		return nil, storeErr(err, "leave")
	}
	return out, nil
}

func (s *LeaveService) Approve(ctx context.Context, p domain.Principal, id string) (*domain.Leave, error) {
	return s.decide(ctx, p, id, domain.StatusApproved)
}

func (s *LeaveService) Reject(ctx context.Context, p domain.Principal, id string) (*domain.Leave, error) {
	return s.decide(ctx, p, id, domain.StatusRejected)
}

func (s *LeaveService) decide(ctx context.Context, p domain.Principal, id string, status domain.ApprovalStatus) (*domain.Leave, error) {
	var l *domain.Leave
	err := s.store.Tx(ctx, func(tx port.Store) error {
		var err error
		l, err = tx.GetLeave(ctx, id)
		if err != nil {
			return err
		}
		if l == nil {
			return notFound("leave")
		}
		if err := s.employees.requireApprover(ctx, p, l.EmployeeID); err != nil {
			return err
		}
		if l.Status != domain.StatusPending {
			return ErrNotPending
		}
		if status == domain.StatusApproved {
			// the leave is already counted as pending
			b, err := s.balance(ctx, tx, l.EmployeeID, l.StartDate.Year())
			if err != nil {
				return err
			}
			if b.Remaining < 0 {
				return insufficientLeave(b.Remaining + l.Days)
			}
		}
		now := s.now().UTC()
		l.Status = status
		l.ApproverID = p.EmployeeID
		l.DecidedAt = &now
		return tx.UpdateLeave(ctx, *l)
	})
	if err != nil {
		return nil, storeErr(err, "leave")
	}
	s.notifier.Notify(ctx, l.EmployeeID, "", domain.NotifyLeave,
		fmt.Sprintf("your leave from %s was %s", l.StartDate.Format(time.DateOnly), status))
	return l, nil
}

func (s *LeaveService) Delete(ctx context.Context, p domain.Principal, id string) error {
	l, err := s.Get(ctx, p, id)
	if err != nil {
		return err
	}
	if l.Status != domain.StatusPending {
		return ErrNotPending
	}
	return storeErr(s.store.DeleteLeave(ctx, id), "leave")
}
