package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/port"
)

const HeaderIdempotencyKey = "Idempotency-Key"

func (h *HTTPHandler) ListRequests(c *gin.Context) {
	out, err := h.svc.Production.List(c.Request.Context(), principal(c), port.RequestFilter{
		StoreID:           c.Query("store_id"),
		ProductionHouseID: c.Query("production_house_id"),
		Status:            domain.RequestStatus(c.Query("status")),
	})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *HTTPHandler) CreateRequest(c *gin.Context) {
	var req productionRequest
	if !bind(c, &req) {
		return
	}
	r, err := h.svc.Production.Create(c.Request.Context(), principal(c), c.GetHeader(HeaderIdempotencyKey), req.input())
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *HTTPHandler) GetRequest(c *gin.Context) {
	r, err := h.svc.Production.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *HTTPHandler) AcceptRequest(c *gin.Context) {
	r, err := h.svc.Production.Accept(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *HTTPHandler) RejectRequest(c *gin.Context) {
	r, err := h.svc.Production.Reject(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *HTTPHandler) CancelRequest(c *gin.Context) {
	r, err := h.svc.Production.Cancel(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// bindQuantities accepts an empty body as "use the full quantities".
func bindQuantities(c *gin.Context) (quantitiesRequest, bool) {
	var req quantitiesRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		Fail(c, bindError(err, &req))
		return req, false
	}
	return req, true
}

func (h *HTTPHandler) DispatchRequest(c *gin.Context) {
	req, ok := bindQuantities(c)
	if !ok {
		return
	}
	r, err := h.svc.Production.Dispatch(c.Request.Context(), principal(c), c.Param("id"), lineInputs(req.Lines))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *HTTPHandler) ReceiveRequest(c *gin.Context) {
	req, ok := bindQuantities(c)
	if !ok {
		return
	}
	r, err := h.svc.Production.Receive(c.Request.Context(), principal(c), c.Param("id"), lineInputs(req.Lines))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *HTTPHandler) ListRecalibrations(c *gin.Context) {
	month, ok := optionalMonth(c, "month")
	if !ok {
		return
	}
	out, err := h.svc.Recalibrations.List(c.Request.Context(), principal(c), c.Query("location_id"), month)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *HTTPHandler) SubmitRecalibration(c *gin.Context) {
	var req recalibrationRequest
	if !bind(c, &req) {
		return
	}
	rc, err := h.svc.Recalibrations.Submit(c.Request.Context(), principal(c), req.input())
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rc)
}

func (h *HTTPHandler) RecalibrationWindow(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Recalibrations.Window())
}

func (h *HTTPHandler) GetRecalibration(c *gin.Context) {
	rc, err := h.svc.Recalibrations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rc)
}

func (h *HTTPHandler) ListNotifications(c *gin.Context) {
	out, err := h.svc.Notifications.List(c.Request.Context(), principal(c), c.Query("unread") == "true")
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *HTTPHandler) MarkNotificationRead(c *gin.Context) {
	if err := h.svc.Notifications.MarkRead(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
