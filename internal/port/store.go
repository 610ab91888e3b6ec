package port

import (
	"context"
	"errors"
	"time"

	"github.com/momoworks/momo-ops/internal/core/domain"
)

var (
	// ErrNotFound is returned by update and delete operations on missing rows.
	// Get operations return (nil, nil) instead.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("duplicate record")

	// ErrOptimisticLock is returned when the stored version differs from the
	// version being written.
	ErrOptimisticLock = errors.New("optimistic lock conflict")
)

type LocationRepository interface {
	CreateLocation(ctx context.Context, loc domain.Location) error
	GetLocation(ctx context.Context, id string) (*domain.Location, error)
	// ListLocations lists every location of kind; an empty kind lists all.
	ListLocations(ctx context.Context, kind domain.LocationKind) ([]domain.Location, error)
	UpdateLocation(ctx context.Context, loc domain.Location) error
	DeleteLocation(ctx context.Context, id string) error
}

type EmployeeFilter struct {
	LocationID string
	ManagerID  string
	Role       domain.Role
	ActiveOnly bool
}

type EmployeeRepository interface {
	CreateEmployee(ctx context.Context, e domain.Employee) error
	GetEmployee(ctx context.Context, id string) (*domain.Employee, error)
	GetEmployeeByEmail(ctx context.Context, email string) (*domain.Employee, error)
	ListEmployees(ctx context.Context, f EmployeeFilter) ([]domain.Employee, error)
	UpdateEmployee(ctx context.Context, e domain.Employee) error
}

type ItemFilter struct {
	LocationID string
	Category   domain.ItemCategory
}

type InventoryRepository interface {
	CreateItem(ctx context.Context, item domain.InventoryItem) error
	GetItem(ctx context.Context, id string) (*domain.InventoryItem, error)
	GetItemBySKU(ctx context.Context, locationID, sku string) (*domain.InventoryItem, error)
	ListItems(ctx context.Context, f ItemFilter) ([]domain.InventoryItem, error)
	// UpdateItem writes item if the stored version equals item.Version and
	// bumps the stored version.
	UpdateItem(ctx context.Context, item domain.InventoryItem) error
	DeleteItem(ctx context.Context, id string) error
	// LockItem serializes balance checks on one item until the surrounding
	// transaction ends.
	LockItem(ctx context.Context, id string) error
}

// MovementFilter selects ledger entries; zero values are unbounded. To is
// exclusive.
type MovementFilter struct {
	ItemID     string
	LocationID string
	Reference  string
	From       time.Time
	To         time.Time
}

type MovementRepository interface {
	CreateMovement(ctx context.Context, m domain.StockMovement) error
	ListMovements(ctx context.Context, f MovementFilter) ([]domain.StockMovement, error)
	CountMovements(ctx context.Context, itemID string) (int, error)
	DeleteMovementsByReference(ctx context.Context, reference string) error
}

type SaleFilter struct {
	StoreID string
	From    time.Time
	To      time.Time
}

type SaleRepository interface {
	CreateSale(ctx context.Context, s domain.Sale) error
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, f SaleFilter) ([]domain.Sale, error)
	DeleteSale(ctx context.Context, id string) error
}

type OverheadFilter struct {
	LocationID string
	From       time.Time
	To         time.Time
}

type OverheadRepository interface {
	CreateOverhead(ctx context.Context, o domain.Overhead) error
	GetOverhead(ctx context.Context, id string) (*domain.Overhead, error)
	ListOverheads(ctx context.Context, f OverheadFilter) ([]domain.Overhead, error)
	UpdateOverhead(ctx context.Context, o domain.Overhead) error
	DeleteOverhead(ctx context.Context, id string) error
}

type PayoutFilter struct {
	EmployeeID string
	Period     domain.Month
}

type PayoutRepository interface {
	CreatePayout(ctx context.Context, p domain.Payout) error
	GetPayout(ctx context.Context, id string) (*domain.Payout, error)
	ListPayouts(ctx context.Context, f PayoutFilter) ([]domain.Payout, error)
	DeletePayout(ctx context.Context, id string) error
}

type TimesheetFilter struct {
	EmployeeID string
	Status     domain.ApprovalStatus
	From       time.Time
	To         time.Time
}

type TimesheetRepository interface {
	CreateTimesheet(ctx context.Context, ts domain.Timesheet) error
	GetTimesheet(ctx context.Context, id string) (*domain.Timesheet, error)
	ListTimesheets(ctx context.Context, f TimesheetFilter) ([]domain.Timesheet, error)
	UpdateTimesheet(ctx context.Context, ts domain.Timesheet) error
	DeleteTimesheet(ctx context.Context, id string) error
}

// LeaveFilter matches leaves whose start date falls in [From, To).
type LeaveFilter struct {
	EmployeeID string
	Status     domain.ApprovalStatus
	From       time.Time
	To         time.Time
}

type LeaveRepository interface {
	CreateLeave(ctx context.Context, l domain.Leave) error
	GetLeave(ctx context.Context, id string) (*domain.Leave, error)
	ListLeaves(ctx context.Context, f LeaveFilter) ([]domain.Leave, error)
	UpdateLeave(ctx context.Context, l domain.Leave) error
	DeleteLeave(ctx context.Context, id string) error
}

type RequestFilter struct {
	StoreID           string
	ProductionHouseID string
	Status            domain.RequestStatus
}

type ProductionRepository interface {
	CreateRequest(ctx context.Context, r domain.ProductionRequest) error
	GetRequest(ctx context.Context, id string) (*domain.ProductionRequest, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]domain.ProductionRequest, error)
	// UpdateRequest is version checked like UpdateItem.
	UpdateRequest(ctx context.Context, r domain.ProductionRequest) error
}

type RecalibrationRepository interface {
	// SaveRecalibration inserts r or replaces the record with the same
	// location and month.
	SaveRecalibration(ctx context.Context, r domain.Recalibration) error
	GetRecalibration(ctx context.Context, id string) (*domain.Recalibration, error)
	FindRecalibration(ctx context.Context, locationID string, month domain.Month) (*domain.Recalibration, error)
	ListRecalibrations(ctx context.Context, locationID string) ([]domain.Recalibration, error)
}

type NotificationFilter struct {
	RecipientID string
	UnreadOnly  bool
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n domain.Notification) error
	ListNotifications(ctx context.Context, f NotificationFilter) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id, recipientID string) error
}

// Store is the full persistence surface. Tx runs fn against a Store bound to
// a single transaction; fn's error rolls everything back.
type Store interface {
	LocationRepository
	EmployeeRepository
	InventoryRepository
	MovementRepository
	SaleRepository
	OverheadRepository
	PayoutRepository
	TimesheetRepository
	LeaveRepository
	ProductionRepository
	RecalibrationRepository
	NotificationRepository

	Tx(ctx context.Context, fn func(tx Store) error) error
}
