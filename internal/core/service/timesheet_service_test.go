package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/momoworks/momo-ops/internal/apperr"
	"github.com/momoworks/momo-ops/internal/core/domain"
)

func TestSubmitTimesheet_Rules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	staff := env.principal(env.shopStaff)
	yesterday := testNow.AddDate(0, 0, -1)

	tests := []struct {
		name  string
		hours string
		date  time.Time
		field string
	}{
		{"below minimum", "3.5", yesterday, "hours"},
		{"above a day", "25", yesterday, "hours"},
		{"future date", "8", testNow.AddDate(0, 0, 1), "work_date"},
		{"missing date", "8", time.Time{}, "work_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Timesheets.Submit(ctx, staff, TimesheetInput{WorkDate: tt.date, Hours: dec(tt.hours)})
			ae, ok := apperr.As(err)
			if !ok || ae.Kind != apperr.Invalid || ae.Fields[tt.field] == "" {
				t.Errorf("expected invalid %s, got %v", tt.field, err)
			}
		})
	}

	ts, err := env.svc.Timesheets.Submit(ctx, staff, TimesheetInput{WorkDate: yesterday, Hours: dec("4")})
	if err != nil {
		t.Fatalf("expected exactly the minimum to be accepted, got %v", err)
	}
	if ts.Status != domain.StatusPending || ts.EmployeeID != "shop-staff" {
		t.Errorf("unexpected timesheet %+v", ts)
	}
	if _, err := env.svc.Timesheets.Submit(ctx, staff, TimesheetInput{WorkDate: yesterday, Hours: dec("6")}); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("expected one entry per date, got %v", err)
	}

	got := env.drain()
	if len(got) != 1 || got[0].RecipientID != "shop-mgr" {
		t.Errorf("expected the manager to be notified, got %+v", got)
	}
}

func TestApproveTimesheet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ts, err := env.svc.Timesheets.Submit(ctx, env.principal(env.shopStaff), TimesheetInput{WorkDate: testNow, Hours: dec("8")})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if _, err := env.svc.Timesheets.Approve(ctx, env.principal(env.shopStaff), ts.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected self approval to be forbidden, got %v", err)
	}
	if _, err := env.svc.Timesheets.Approve(ctx, env.principal(env.houseManager), ts.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected unrelated manager to be forbidden, got %v", err)
	}

	approved, err := env.svc.Timesheets.Approve(ctx, env.principal(env.shopManager), ts.ID)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != domain.StatusApproved || approved.ApproverID != "shop-mgr" || approved.DecidedAt == nil {
		t.Errorf("unexpected timesheet %+v", approved)
	}

	if _, err := env.svc.Timesheets.Reject(ctx, env.principal(env.head), ts.ID); !errors.Is(err, ErrNotPending) {
		t.Errorf("expected decided entry to be final, got %v", err)
	}
	if err := env.svc.Timesheets.Delete(ctx, env.principal(env.shopStaff), ts.ID); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("expected approved entry delete to fail, got %v", err)
	}
}

func TestRejectedTimesheet_CanBeResubmitted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	staff := env.principal(env.shopStaff)
	mgr := env.principal(env.shopManager)

	first, err := env.svc.Timesheets.Submit(ctx, staff, TimesheetInput{WorkDate: testNow, Hours: dec("12")})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := env.svc.Timesheets.Reject(ctx, mgr, first.ID); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	second, err := env.svc.Timesheets.Submit(ctx, staff, TimesheetInput{WorkDate: testNow, Hours: dec("8")})
	if err != nil {
		t.Fatalf("expected resubmission after rejection, got %v", err)
	}
	if second.Status != domain.StatusPending || second.ID == first.ID {
		t.Errorf("unexpected resubmitted timesheet %+v", second)
	}
	if _, err := env.svc.Timesheets.Get(ctx, staff, first.ID); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("expected the rejected entry to be replaced, got %v", err)
	}

	if _, err := env.svc.Timesheets.Reject(ctx, mgr, second.ID); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if err := env.svc.Timesheets.Delete(ctx, staff, second.ID); err != nil {
		t.Errorf("expected rejected entry to be deletable, got %v", err)
	}
	list, _ := env.svc.Timesheets.List(ctx, staff, TimesheetQuery{})
	if len(list) != 0 {
		t.Errorf("expected no timesheets left, got %+v", list)
	}
}

func TestListTimesheets_EmployeesSeeOwn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.svc.Timesheets.Submit(ctx, env.principal(env.shopStaff), TimesheetInput{WorkDate: testNow, Hours: dec("8")})
	env.svc.Timesheets.Submit(ctx, env.principal(env.shopManager), TimesheetInput{WorkDate: testNow, Hours: dec("9")})

	own, err := env.svc.Timesheets.List(ctx, env.principal(env.shopStaff), TimesheetQuery{EmployeeID: "shop-mgr"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(own) != 1 || own[0].EmployeeID != "shop-staff" {
		t.Errorf("expected only own timesheet, got %+v", own)
	}

	all, _ := env.svc.Timesheets.List(ctx, env.principal(env.head), TimesheetQuery{Month: domain.MonthOf(testNow)})
	if len(all) != 2 {
		t.Errorf("expected 2 timesheets for the month, got %d", len(all))
	}
}
