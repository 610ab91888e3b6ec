package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/momoworks/momo-ops/internal/apperr"
	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/core/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type HTTPHandler struct {
	svc    *service.Services
	logger *slog.Logger
	now    func() time.Time
}

func NewHTTPHandler(svc *service.Services, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, logger: logger, now: time.Now}
}

// Router builds the gin engine with middleware and every route mounted.
func (h *HTTPHandler) Router() *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Logger(h.logger), ErrorHandler(h.logger), Recovery(h.logger))

	r.GET("/healthz", h.HealthCheck)
	r.POST("/auth/login", h.Login)

	// Catalog reads accept the anon key.
	catalog := r.Group("/", Authenticate(h.svc.Auth))
	catalog.GET("/stores", h.listLocations(domain.LocationStore))
	catalog.GET("/production-houses", h.listLocations(domain.LocationProductionHouse))
	catalog.GET("/locations/:id", h.GetLocation)
	catalog.GET("/inventory", h.ListItems)
	catalog.GET("/inventory/:id", h.GetItem)

	api := r.Group("/", Authenticate(h.svc.Auth), RequireUser())

	api.POST("/stores", h.createLocation(domain.LocationStore))
	api.POST("/production-houses", h.createLocation(domain.LocationProductionHouse))
	api.PUT("/locations/:id", h.UpdateLocation)
	api.DELETE("/locations/:id", h.DeleteLocation)

	api.POST("/inventory", h.CreateItem)
	api.PUT("/inventory/:id", h.UpdateItem)
	api.DELETE("/inventory/:id", h.DeleteItem)
	api.POST("/inventory/:id/movements", h.RecordMovement)
	api.GET("/inventory/:id/movements", h.ListMovements)
	api.GET("/stock/summary", h.StockSummary)
	api.GET("/stock/report", h.StockReport)

	api.GET("/sales", h.ListSales)
	api.POST("/sales", h.CreateSale)
	api.GET("/sales/summary", h.SalesSummary)
	api.POST("/sales/import", h.ImportSales)
	api.GET("/sales/:id", h.GetSale)
	api.DELETE("/sales/:id", h.DeleteSale)

	api.GET("/overheads", h.ListOverheads)
	api.POST("/overheads", h.CreateOverhead)
	api.GET("/overheads/summary", h.OverheadSummary)
	api.GET("/overheads/:id", h.GetOverhead)
	api.PUT("/overheads/:id", h.UpdateOverhead)
	api.DELETE("/overheads/:id", h.DeleteOverhead)

	api.GET("/employees", h.ListEmployees)
	api.POST("/employees", h.CreateEmployee)
	api.GET("/employees/:id", h.GetEmployee)
	api.PUT("/employees/:id", h.UpdateEmployee)
	api.DELETE("/employees/:id", h.DeactivateEmployee)
	api.GET("/employees/:id/reports", h.EmployeeReports)
	api.POST("/employees/:id/password", h.SetPassword)

	api.GET("/timesheets", h.ListTimesheets)
	api.POST("/timesheets", h.SubmitTimesheet)
	api.GET("/timesheets/:id", h.GetTimesheet)
	api.DELETE("/timesheets/:id", h.DeleteTimesheet)
	api.POST("/timesheets/:id/approve", h.ApproveTimesheet)
	api.POST("/timesheets/:id/reject", h.RejectTimesheet)

	api.GET("/leaves", h.ListLeaves)
	api.POST("/leaves", h.RequestLeave)
	api.GET("/leaves/balance", h.LeaveBalance)
	api.GET("/leaves/:id", h.GetLeave)
	api.DELETE("/leaves/:id", h.DeleteLeave)
	api.POST("/leaves/:id/approve", h.ApproveLeave)
	api.POST("/leaves/:id/reject", h.RejectLeave)

	api.GET("/payouts", h.ListPayouts)
	api.POST("/payouts", h.CreatePayout)
	api.GET("/payouts/:id", h.GetPayout)
	api.DELETE("/payouts/:id", h.DeletePayout)
	api.GET("/payroll", h.Payroll)
	api.GET("/payroll/export", h.ExportPayroll)

	api.GET("/production-requests", h.ListRequests)
	api.POST("/production-requests", h.CreateRequest)
	api.GET("/production-requests/:id", h.GetRequest)
	api.POST("/production-requests/:id/accept", h.AcceptRequest)
	api.POST("/production-requests/:id/reject", h.RejectRequest)
	api.POST("/production-requests/:id/cancel", h.CancelRequest)
	api.POST("/production-requests/:id/dispatch", h.DispatchRequest)
	api.POST("/production-requests/:id/receive", h.ReceiveRequest)

	api.GET("/recalibrations", h.ListRecalibrations)
	api.POST("/recalibrations", h.SubmitRecalibration)
	api.GET("/recalibrations/window", h.RecalibrationWindow)
	api.GET("/recalibrations/:id", h.GetRecalibration)

	api.GET("/notifications", h.ListNotifications)
	api.POST("/notifications/:id/read", h.MarkNotificationRead)

	return r
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, bindError(err, &req))
		return
	}
	res, err := h.svc.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		Fail(c, bindError(err, dst))
		return false
	}
	return true
}

// monthQuery reads a YYYY-MM query parameter, defaulting to the current month.
func (h *HTTPHandler) monthQuery(c *gin.Context, name string) (domain.Month, bool) {
	raw := c.Query(name)
	if raw == "" {
		return domain.MonthOf(h.now()), true
	}
	m, err := domain.ParseMonth(raw)
	if err != nil {
		Fail(c, apperr.InvalidErr("validation failed", map[string]string{name: "must be YYYY-MM"}))
		return domain.Month{}, false
	}
	return m, true
}

// optionalMonth is monthQuery without the default.
func optionalMonth(c *gin.Context, name string) (domain.Month, bool) {
	raw := c.Query(name)
	if raw == "" {
		return domain.Month{}, true
	}
	m, err := domain.ParseMonth(raw)
	if err != nil {
		Fail(c, apperr.InvalidErr("validation failed", map[string]string{name: "must be YYYY-MM"}))
		return domain.Month{}, false
	}
	return m, true
}

// dateRange reads from/to (inclusive dates) into a half-open range.
func dateRange(c *gin.Context) (from, to time.Time, ok bool) {
	parse := func(name string) (time.Time, bool) {
		raw := c.Query(name)
		if raw == "" {
			return time.Time{}, true
		}
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			Fail(c, apperr.InvalidErr("validation failed", map[string]string{name: "must be YYYY-MM-DD"}))
			return time.Time{}, false
		}
		return t, true
	}
	if from, ok = parse("from"); !ok {
		return
	}
	if to, ok = parse("to"); !ok {
		return
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}
	return from, to, true
}

func intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		Fail(c, apperr.InvalidErr("validation failed", map[string]string{name: "must be a number"}))
		return 0, false
	}
	return n, true
}
