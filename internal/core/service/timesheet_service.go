package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/port"
)

const maxTimesheetHours = 24

type TimesheetInput struct {
	EmployeeID string // empty means the caller
	WorkDate   time.Time
	Hours      decimal.Decimal
	Note       string
}

type TimesheetQuery struct {
	EmployeeID string
	Month      domain.Month
	Status     domain.ApprovalStatus
}

type TimesheetService struct {
	store     port.Store
	employees *EmployeeService
	notifier  *NotificationService
	minHours  decimal.Decimal
	now       func() time.Time
}

func NewTimesheetService(store port.Store, employees *EmployeeService, notifier *NotificationService, minHours int) *TimesheetService {
	return &TimesheetService{
		store:     store,
		employees: employees,
		notifier:  notifier,
		minHours:  decimal.NewFromInt(int64(minHours)),
		now:       time.Now,
	}
}

func (s *TimesheetService) Submit(ctx context.Context, p domain.Principal, in TimesheetInput) (*domain.Timesheet, error) {
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

	now := s.now().UTC()
	fields := map[string]string{}
	if in.Hours.LessThan(s.minHours) {
		fields["hours"] = fmt.Sprintf("must be at least %s", s.minHours)
	} else if in.Hours.GreaterThan(decimal.NewFromInt(maxTimesheetHours)) {
		fields["hours"] = fmt.Sprintf("must be at most %d", maxTimesheetHours)
	}
	if in.WorkDate.IsZero() {
		fields["work_date"] = "is required"
	} else if domain.DateOnly(in.WorkDate).After(domain.DateOnly(now)) {
		fields["work_date"] = "cannot be in the future"
	}
	if len(fields) > 0 {
		return nil, invalidFields(fields)
	}

	ts := domain.Timesheet{
		ID:         uuid.NewString(),
		EmployeeID: emp.ID,
		WorkDate:   domain.DateOnly(in.WorkDate),
		Hours:      in.Hours,
		Note:       in.Note,
		Status:     domain.StatusPending,
		CreatedAt:  now,
	}
	err = s.store.Tx(ctx, func(tx port.Store) error {
		same, err := tx.ListTimesheets(ctx, port.TimesheetFilter{EmployeeID: emp.ID, From: ts.WorkDate, To: ts.WorkDate.AddDate(0, 0, 1)})
		if err != nil {
			return err
		}
		// a rejected entry gives way to the resubmission
		for _, old := range same {
			if old.Status == domain.StatusRejected {
				if err := tx.DeleteTimesheet(ctx, old.ID); err != nil {
					return err
				}
			}
		}
		return tx.CreateTimesheet(ctx, ts)
	})
	if err != nil {
		return nil, storeErr(err, "timesheet for this date")
	}
	s.notifier.Notify(ctx, emp.ManagerID, emp.LocationID, domain.NotifyTimesheet,
		fmt.Sprintf("%s logged %s hours on %s", emp.Name, ts.Hours, ts.WorkDate.Format(time.DateOnly)))
	return &ts, nil
}

func (s *TimesheetService) Get(ctx context.Context, p domain.Principal, id string) (*domain.Timesheet, error) {
	ts, err := s.store.GetTimesheet(ctx, id)
	if err != nil {
		return nil, storeErr(err, "timesheet")
	}
	if ts == nil {
		return nil, notFound("timesheet")
	}
	if err := s.employees.requireSelfOrApprover(ctx, p, ts.EmployeeID); err != nil {
		return nil, err
	}
	return ts, nil
}

// List returns timesheets visible to p. Plain employees only see their own.
func (s *TimesheetService) List(ctx context.Context, p domain.Principal, q TimesheetQuery) ([]domain.Timesheet, error) {
	if p.Anonymous {
		return nil, ErrForbidden
	}
	if !p.AtLeast(domain.RoleManager) {
		q.EmployeeID = p.EmployeeID
	}
	f := port.TimesheetFilter{EmployeeID: q.EmployeeID, Status: q.Status}
	if !q.Month.IsZero() {
		f.From, f.To = q.Month.Start(), q.Month.End()
	}
	out, err := s.store.ListTimesheets(ctx, f)
	if err != nil {
		return nil, storeErr(err, "timesheet")
	}
	return out, nil
}

func (s *TimesheetService) Approve(ctx context.Context, p domain.Principal, id string) (*domain.Timesheet, error) {
	return s.decide(ctx, p, id, domain.StatusApproved)
}

func (s *TimesheetService) Reject(ctx context.Context, p domain.Principal, id string) (*domain.Timesheet, error) {
	return s.decide(ctx, p, id, domain.StatusRejected)
}

func (s *TimesheetService) decide(ctx context.Context, p domain.Principal, id string, status domain.ApprovalStatus) (*domain.Timesheet, error) {
	ts, err := s.store.GetTimesheet(ctx, id)
	if err != nil {
		return nil, storeErr(err, "timesheet")
	}
	if ts == nil {
		return nil, notFound("timesheet")
	}
	if err := s.employees.requireApprover(ctx, p, ts.EmployeeID); err != nil {
		return nil, err
	}
	if ts.Status != domain.StatusPending {
		return nil, ErrNotPending
	}
	now := s.now().UTC()
	ts.Status = status
	ts.ApproverID = p.EmployeeID
	ts.DecidedAt = &now
	if err := s.store.UpdateTimesheet(ctx, *ts); err != nil {
		return nil, storeErr(err, "timesheet")
	}
	s.notifier.Notify(ctx, ts.EmployeeID, "", domain.NotifyTimesheet,
		fmt.Sprintf("your timesheet for %s was %s", ts.WorkDate.Format(time.DateOnly), status))
	return ts, nil
}

func (s *TimesheetService) Delete(ctx context.Context, p domain.Principal, id string) error {
	ts, err := s.Get(ctx, p, id)
	if err != nil {
		return err
	}
	if ts.Status == domain.StatusApproved {
		return conflict("approved entries cannot be deleted")
	}
	return storeErr(s.store.DeleteTimesheet(ctx, id), "timesheet")
}
