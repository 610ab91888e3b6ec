package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleEmployee    Role = "employee"
	RoleManager     Role = "manager"
	RoleClusterHead Role = "cluster_head"
)

// Rank orders the three tiers; 0 means unknown.
func (r Role) Rank() int {
	switch r {
	case RoleEmployee:
		return 1
	case RoleManager:
		return 2
	case RoleClusterHead:
		return 3
	}
	return 0
}

func (r Role) Valid() bool { return r.Rank() > 0 }

// Superior is the role an employee of role r must report to.
func (r Role) Superior() (Role, bool) {
	switch r {
	case RoleEmployee:
		return RoleManager, true
	case RoleManager:
		return RoleClusterHead, true
	}
	return "", false
}

type Employee struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Phone        string          `json:"phone,omitempty"`
	Role         Role            `json:"role"`
	ManagerID    string          `json:"manager_id,omitempty"`
	LocationID   string          `json:"location_id,omitempty"`
	HourlyRate   decimal.Decimal `json:"hourly_rate"`
	JoinedOn     time.Time       `json:"joined_on"`
	Active       bool            `json:"active"`
	PasswordHash string          `json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Principal is the caller resolved from a bearer token.
type Principal struct {
	EmployeeID string
	Role       Role
	LocationID string
	Anonymous  bool
}

func (p Principal) AtLeast(r Role) bool {
	return !p.Anonymous && p.Role.Rank() >= r.Rank()
}
