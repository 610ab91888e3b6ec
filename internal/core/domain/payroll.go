package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

type Timesheet struct {
	ID         string          `json:"id"`
	EmployeeID string          `json:"employee_id"`
	WorkDate   time.Time       `json:"work_date"`
	Hours      decimal.Decimal `json:"hours"`
	Note       string          `json:"note,omitempty"`
	Status     ApprovalStatus  `json:"status"`
	ApproverID string          `json:"approver_id,omitempty"`
	DecidedAt  *time.Time      `json:"decided_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type LeaveKind string

const (
	LeaveCasual LeaveKind = "casual"
	LeaveSick   LeaveKind = "sick"
	LeaveEarned LeaveKind = "earned"
)

func (k LeaveKind) Valid() bool {
	return k == LeaveCasual || k == LeaveSick || k == LeaveEarned
}

// Leave covers the inclusive date range [StartDate, EndDate].
type Leave struct {
	ID         string         `json:"id"`
	EmployeeID string         `json:"employee_id"`
	Kind       LeaveKind      `json:"kind"`
	StartDate  time.Time      `json:"start_date"`
	EndDate    time.Time      `json:"end_date"`
	Days       int            `json:"days"`
	Reason     string         `json:"reason,omitempty"`
	Status     ApprovalStatus `json:"status"`
	ApproverID string         `json:"approver_id,omitempty"`
	DecidedAt  *time.Time     `json:"decided_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Overlaps reports whether two leaves share at least one day.
func (l Leave) Overlaps(o Leave) bool {
	return !l.EndDate.Before(o.StartDate) && !o.EndDate.Before(l.StartDate)
}

type PayoutKind string

const (
	PayoutSalary  PayoutKind = "salary"
	PayoutAdvance PayoutKind = "advance"
	PayoutBonus   PayoutKind = "bonus"
)

func (k PayoutKind) Valid() bool {
	return k == PayoutSalary || k == PayoutAdvance || k == PayoutBonus
}

type Payout struct {
	ID         string          `json:"id"`
	EmployeeID string          `json:"employee_id"`
	Period     Month           `json:"period"`
	Kind       PayoutKind      `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
	PaidOn     time.Time       `json:"paid_on"`
	Note       string          `json:"note,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// PayrollLine is the computed monthly position of one employee.
type PayrollLine struct {
	EmployeeID    string          `json:"employee_id"`
	EmployeeName  string          `json:"employee_name"`
	ApprovedHours decimal.Decimal `json:"approved_hours"`
	HourlyRate    decimal.Decimal `json:"hourly_rate"`
	Gross         decimal.Decimal `json:"gross"`
	Paid          decimal.Decimal `json:"paid"`
	Due           decimal.Decimal `json:"due"`
}
