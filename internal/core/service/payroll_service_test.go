package service

import (
	"context"
	"errors"
	"testing"

	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/port"
)

func TestPayroll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mgr := env.principal(env.shopManager)
	month := domain.MonthOf(testNow)

	for i, hours := range []string{"8", "6.5"} {
		ts, err := env.svc.Timesheets.Submit(ctx, env.principal(env.shopStaff), TimesheetInput{WorkDate: testNow.AddDate(0, 0, -i), Hours: dec(hours)})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		env.svc.Timesheets.Approve(ctx, mgr, ts.ID)
	}
	// pending hours do not count
	env.svc.Timesheets.Submit(ctx, env.principal(env.shopStaff), TimesheetInput{WorkDate: testNow.AddDate(0, 0, -2), Hours: dec("5")})

	if _, err := env.svc.Payroll.CreatePayout(ctx, mgr, PayoutInput{EmployeeID: "shop-staff", Period: month, Kind: domain.PayoutAdvance, Amount: dec("500")}); err != nil {
		t.Fatalf("CreatePayout failed: %v", err)
	}

	lines, err := env.svc.Payroll.Payroll(ctx, mgr, month, "shop")
	if err != nil {
		t.Fatalf("Payroll failed: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected both shop employees, got %d", len(lines))
	}
	var staff domain.PayrollLine
	for _, l := range lines {
		if l.EmployeeID == "shop-staff" {
			staff = l
		}
	}
	if !staff.ApprovedHours.Equal(dec("14.5")) || !staff.Gross.Equal(dec("1740")) || !staff.Paid.Equal(dec("500")) || !staff.Due.Equal(dec("1240")) {
		t.Errorf("unexpected payroll line %+v", staff)
	}
}

func TestPayouts_Access(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	month := domain.MonthOf(testNow)

	if _, err := env.svc.Payroll.CreatePayout(ctx, env.principal(env.houseManager), PayoutInput{EmployeeID: "shop-staff", Period: month, Kind: domain.PayoutSalary, Amount: dec("1")}); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected unrelated manager forbidden, got %v", err)
	}
	po, err := env.svc.Payroll.CreatePayout(ctx, env.principal(env.head), PayoutInput{EmployeeID: "shop-staff", Period: month, Kind: domain.PayoutBonus, Amount: dec("100")})
	if err != nil {
		t.Fatalf("CreatePayout failed: %v", err)
	}
	env.svc.Payroll.CreatePayout(ctx, env.principal(env.head), PayoutInput{EmployeeID: "shop-mgr", Period: month, Kind: domain.PayoutBonus, Amount: dec("100")})

	own, _ := env.svc.Payroll.ListPayouts(ctx, env.principal(env.shopStaff), port.PayoutFilter{})
	if len(own) != 1 || own[0].ID != po.ID {
		t.Errorf("expected staff to see only their payout, got %+v", own)
	}
	if err := env.svc.Payroll.DeletePayout(ctx, env.principal(env.shopStaff), po.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected staff delete forbidden, got %v", err)
	}
	if _, err := env.svc.Payroll.Payroll(ctx, env.principal(env.shopStaff), month, ""); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected staff payroll forbidden, got %v", err)
	}
}
