package service

import (
	"log/slog"
	"time"

	"github.com/momoworks/momo-ops/internal/config"
	"github.com/momoworks/momo-ops/internal/port"
)

// Services bundles every use case the transports expose.
type Services struct {
	Notifications  *NotificationService
	Locations      *LocationService
	Employees      *EmployeeService
	Auth           *AuthService
	Inventory      *InventoryService
	Sales          *SalesService
	Overheads      *OverheadService
	Timesheets     *TimesheetService
	Leaves         *LeaveService
	Payroll        *PayrollService
	Production     *ProductionService
	Recalibrations *RecalibrationService
}

func New(cfg config.Config, store port.Store, cache port.CacheRepository, logger *slog.Logger) *Services {
	notifications := NewNotificationService(store, cfg.QueueSize, logger)
	locations := NewLocationService(store)
	employees := NewEmployeeService(store)
	inventory := NewInventoryService(store, cache, notifications, locations, logger)
	return &Services{
		Notifications:  notifications,
		Locations:      locations,
		Employees:      employees,
		Auth:           NewAuthService(store, employees, cfg.JWTSecret, cfg.AnonKey, cfg.TokenTTL),
		Inventory:      inventory,
		Sales:          NewSalesService(store, cache, inventory, locations, logger),
		Overheads:      NewOverheadService(store, locations),
		Timesheets:     NewTimesheetService(store, employees, notifications, cfg.Rules.MinTimesheetHours),
		Leaves:         NewLeaveService(store, employees, notifications, cfg.Rules.LeaveAllowanceDays),
		Payroll:        NewPayrollService(store, employees),
		Production:     NewProductionService(store, cache, inventory, locations, notifications, logger),
		Recalibrations: NewRecalibrationService(store, inventory, locations, notifications, cfg.Rules.RecalibrationWindowDays, logger),
	}
}

// SetClock replaces the time source of every service.
func (s *Services) SetClock(now func() time.Time) {
	s.Notifications.now = now
	s.Locations.now = now
	s.Employees.now = now
	s.Auth.now = now
	s.Inventory.now = now
	s.Sales.now = now
	s.Overheads.now = now
	s.Timesheets.now = now
	s.Leaves.now = now
	s.Payroll.now = now
	s.Production.now = now
	s.Recalibrations.now = now
}
