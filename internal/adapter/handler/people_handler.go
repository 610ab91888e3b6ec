package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/momoworks/momo-ops/internal/adapter/report"
	"github.com/momoworks/momo-ops/internal/apperr"
	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/core/service"
	"github.com/momoworks/momo-ops/internal/port"
)

func (h *HTTPHandler) ListEmployees(c *gin.Context) {
	out, err := h.svc.Employees.List(c.Request.Context(), principal(c), port.EmployeeFilter{
		LocationID: c.Query("location_id"),
		ManagerID:  c.Query("manager_id"),
		Role:       domain.Role(c.Query("role")),
		ActiveOnly: c.Query("active") == "true",
	})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *HTTPHandler) CreateEmployee(c *gin.Context) {
	var req employeeRequest
	if !bind(c, &req) {
		return
	}
	e, err := h.svc.Employees.Create(c.Request.Context(), principal(c), req.input())
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *HTTPHandler) GetEmployee(c *gin.Context) {
	e, err := h.svc.Employees.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *HTTPHandler) UpdateEmployee(c *gin.Context) {
	var req employeeRequest
	if !bind(c, &req) {
		return
	}
	e, err := h.svc.Employees.Update(c.Request.Context(), principal(c), c.Param("id"), req.input())
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *HTTPHandler) DeactivateEmployee(c *gin.Context) {
	if err := h.svc.Employees.Deactivate(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) EmployeeReports(c *gin.Context) {
	out, err := h.svc.Employees.Reports(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *HTTPHandler) SetPassword(c *gin.Context) {
	var req passwordRequest
	if !bind(c, &req) {
		return
	}
	if err := h.svc.Auth.SetPassword(c.Request.Context(), principal(c), c.Param("id"), req.Password); err != nil {
		Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) ListTimesheets(c *gin.Context) {
	month, ok := optionalMonth(c, "month")
	if !ok {
		return
	}
	out, err := h.svc.Timesheets.List(c.Request.Context(), principal(c), service.TimesheetQuery{
		EmployeeID: c.Query("employee_id"),
		Month:      month,
		Status:     domain.ApprovalStatus(c.Query("status")),
	})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *HTTPHandler) SubmitTimesheet(c *gin.Context) {
	var req timesheetRequest
	if !bind(c, &req) {
		return
	}
	ts, err := h.svc.Timesheets.Submit(c.Request.Context(), principal(c), service.TimesheetInput{
		EmployeeID: req.EmployeeID,
		WorkDate:   req.WorkDate.Time,
		Hours:      req.Hours,
		Note:       req.Note,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ts)
}

func (h *HTTPHandler) GetTimesheet(c *gin.Context) {
	ts, err := h.svc.Timesheets.Get(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}

func (h *HTTPHandler) DeleteTimesheet(c *gin.Context) {
	if err := h.svc.Timesheets.Delete(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) ApproveTimesheet(c *gin.Context) {
	ts, err := h.svc.Timesheets.Approve(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}

func (h *HTTPHandler) RejectTimesheet(c *gin.Context) {
	ts, err := h.svc.Timesheets.Reject(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}

func (h *HTTPHandler) ListLeaves(c *gin.Context) {
	year, ok := intQuery(c, "year", 0)
	if !ok {
		return
	}
	out, err := h.svc.Leaves.List(c.Request.Context(), principal(c), service.LeaveQuery{
		EmployeeID: c.Query("employee_id"),
		Year:       year,
		Status:     domain.ApprovalStatus(c.Query("status")),
	})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *HTTPHandler) RequestLeave(c *gin.Context) {
	var req leaveRequest
	if !bind(c, &req) {
		return
	}
	l, err := h.svc.Leaves.Request(c.Request.Context(), principal(c), service.LeaveInput{
		EmployeeID: req.EmployeeID,
		Kind:       req.Kind,
		StartDate:  req.StartDate.Time,
		EndDate:    req.EndDate.Time,
		Reason:     req.Reason,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (h *HTTPHandler) LeaveBalance(c *gin.Context) {
	year, ok := intQuery(c, "year", h.now().Year())
	if !ok {
		return
	}
	employeeID := c.Query("employee_id")
	if employeeID == "" {
		employeeID = principal(c).EmployeeID
	}
	b, err := h.svc.Leaves.Balance(c.Request.Context(), principal(c), employeeID, year)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *HTTPHandler) GetLeave(c *gin.Context) {
	l, err := h.svc.Leaves.Get(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *HTTPHandler) DeleteLeave(c *gin.Context) {
	if err := h.svc.Leaves.Delete(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) ApproveLeave(c *gin.Context) {
	l, err := h.svc.Leaves.Approve(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *HTTPHandler) RejectLeave(c *gin.Context) {
	l, err := h.svc.Leaves.Reject(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *HTTPHandler) ListPayouts(c *gin.Context) {
	period, ok := optionalMonth(c, "period")
	if !ok {
		return
	}
	out, err := h.svc.Payroll.ListPayouts(c.Request.Context(), principal(c), port.PayoutFilter{
		EmployeeID: c.Query("employee_id"),
		Period:     period,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *HTTPHandler) CreatePayout(c *gin.Context) {
	var req payoutRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.svc.Payroll.CreatePayout(c.Request.Context(), principal(c), service.PayoutInput{
		EmployeeID: req.EmployeeID,
		Period:     req.Period,
		Kind:       req.Kind,
		Amount:     req.Amount,
		PaidOn:     req.PaidOn.Time,
		Note:       req.Note,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *HTTPHandler) GetPayout(c *gin.Context) {
	p, err := h.svc.Payroll.GetPayout(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *HTTPHandler) DeletePayout(c *gin.Context) {
	if err := h.svc.Payroll.DeletePayout(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) Payroll(c *gin.Context) {
	month, ok := h.monthQuery(c, "month")
	if !ok {
		return
	}
	lines, err := h.svc.Payroll.Payroll(c.Request.Context(), principal(c), month, c.Query("location_id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lines)
}

func (h *HTTPHandler) ExportPayroll(c *gin.Context) {
	month, ok := h.monthQuery(c, "month")
	if !ok {
		return
	}
	lines, err := h.svc.Payroll.Payroll(c.Request.Context(), principal(c), month, c.Query("location_id"))
	if err != nil {
		Fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := report.WritePayroll(&buf, month, lines); err != nil {
		Fail(c, apperr.Wrap(err))
		return
	}
	attachment(c, fmt.Sprintf("payroll-%s.xlsx", month), buf.Bytes())
}
