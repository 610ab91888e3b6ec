package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/momoworks/momo-ops/internal/apperr"
	"github.com/momoworks/momo-ops/internal/core/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRequestLeave_Balance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	staff := env.principal(env.shopStaff)

	l, err := env.svc.Leaves.Request(ctx, staff, LeaveInput{Kind: domain.LeaveCasual, StartDate: day(2024, 4, 1), EndDate: day(2024, 4, 10)})
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if l.Days != 10 {
		t.Errorf("expected 10 days, got %d", l.Days)
	}

	b, _ := env.svc.Leaves.Balance(ctx, staff, "", 2024)
	if b.Pending != 10 || b.Remaining != 8 {
		t.Errorf("unexpected balance %+v", b)
	}

	_, err = env.svc.Leaves.Request(ctx, staff, LeaveInput{Kind: domain.LeaveCasual, StartDate: day(2024, 5, 1), EndDate: day(2024, 5, 9)})
	if !errors.Is(err, ErrInsufficientLeave) {
		t.Errorf("expected ErrInsufficientLeave, got %v", err)
	}

	if _, err := env.svc.Leaves.Request(ctx, staff, LeaveInput{Kind: domain.LeaveCasual, StartDate: day(2024, 5, 1), EndDate: day(2024, 5, 8)}); err != nil {
		t.Errorf("expected leave using the exact remaining balance to be accepted, got %v", err)
	}

	next, _ := env.svc.Leaves.Balance(ctx, staff, "", 2025)
	if next.Remaining != 18 {
		t.Errorf("expected balance to reset next year, got %d", next.Remaining)
	}
}

func TestRequestLeave_Rules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	staff := env.principal(env.shopStaff)
	env.svc.Leaves.Request(ctx, staff, LeaveInput{Kind: domain.LeaveSick, StartDate: day(2024, 6, 10), EndDate: day(2024, 6, 12)})

	tests := []struct {
		name string
		in   LeaveInput
		kind apperr.Kind
	}{
		{"end before start", LeaveInput{Kind: domain.LeaveCasual, StartDate: day(2024, 6, 5), EndDate: day(2024, 6, 4)}, apperr.Invalid},
		{"crosses a year", LeaveInput{Kind: domain.LeaveCasual, StartDate: day(2024, 12, 30), EndDate: day(2025, 1, 2)}, apperr.Invalid},
		{"unknown kind", LeaveInput{Kind: "sabbatical", StartDate: day(2024, 7, 1), EndDate: day(2024, 7, 1)}, apperr.Invalid},
		{"overlap", LeaveInput{Kind: domain.LeaveCasual, StartDate: day(2024, 6, 12), EndDate: day(2024, 6, 14)}, apperr.Conflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.Leaves.Request(ctx, staff, tt.in); !apperr.Is(err, tt.kind) {
				t.Errorf("expected %s, got %v", tt.kind, err)
			}
		})
	}
}

func TestDecideLeave(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	staff := env.principal(env.shopStaff)
	l, _ := env.svc.Leaves.Request(ctx, staff, LeaveInput{Kind: domain.LeaveEarned, StartDate: day(2024, 8, 1), EndDate: day(2024, 8, 3)})

	if _, err := env.svc.Leaves.Approve(ctx, staff, l.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected self approval forbidden, got %v", err)
	}
	approved, err := env.svc.Leaves.Approve(ctx, env.principal(env.head), l.ID)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != domain.StatusApproved {
		t.Errorf("expected approved, got %s", approved.Status)
	}
	b, _ := env.svc.Leaves.Balance(ctx, staff, "", 2024)
	if b.Approved != 3 || b.Remaining != 15 {
		t.Errorf("unexpected balance %+v", b)
	}

	rejected, _ := env.svc.Leaves.Request(ctx, staff, LeaveInput{Kind: domain.LeaveCasual, StartDate: day(2024, 9, 1), EndDate: day(2024, 9, 2)})
	if _, err := env.svc.Leaves.Reject(ctx, env.principal(env.shopManager), rejected.ID); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	// rejected leaves free both the balance and the dates
	if _, err := env.svc.Leaves.Request(ctx, staff, LeaveInput{Kind: domain.LeaveCasual, StartDate: day(2024, 9, 1), EndDate: day(2024, 9, 15)}); err != nil {
		t.Errorf("expected request over rejected dates to succeed, got %v", err)
	}
	if err := env.svc.Leaves.Delete(ctx, staff, l.ID); !errors.Is(err, ErrNotPending) {
		t.Errorf("expected approved leave delete to fail, got %v", err)
	}
}
