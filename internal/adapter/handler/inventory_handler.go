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

const maxUploadBytes = 8 << 20

func (h *HTTPHandler) listLocations(kind domain.LocationKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := h.svc.Locations.List(c.Request.Context(), kind)
		if err != nil {
			Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func (h *HTTPHandler) createLocation(kind domain.LocationKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req locationRequest
		if !bind(c, &req) {
			return
		}
		loc, err := h.svc.Locations.Create(c.Request.Context(), principal(c), req.input(kind))
		if err != nil {
			Fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, loc)
	}
}

func (h *HTTPHandler) GetLocation(c *gin.Context) {
	loc, err := h.svc.Locations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loc)
}

func (h *HTTPHandler) UpdateLocation(c *gin.Context) {
	ctx := c.Request.Context()
	current, err := h.svc.Locations.Get(ctx, c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	var req locationRequest
	if !bind(c, &req) {
		return
	}
	loc, err := h.svc.Locations.Update(ctx, principal(c), current.ID, req.input(current.Kind))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loc)
}

func (h *HTTPHandler) DeleteLocation(c *gin.Context) {
	if err := h.svc.Locations.Delete(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) ListItems(c *gin.Context) {
	out, err := h.svc.Inventory.ListItems(c.Request.Context(), port.ItemFilter{
		LocationID: c.Query("location_id"),
		Category:   domain.ItemCategory(c.Query("category")),
	})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *HTTPHandler) GetItem(c *gin.Context) {
	item, err := h.svc.Inventory.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *HTTPHandler) CreateItem(c *gin.Context) {
	var req itemRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.svc.Inventory.CreateItem(c.Request.Context(), principal(c), req.input())
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *HTTPHandler) UpdateItem(c *gin.Context) {
	var req itemRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.svc.Inventory.UpdateItem(c.Request.Context(), principal(c), c.Param("id"), req.input())
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *HTTPHandler) DeleteItem(c *gin.Context) {
	if err := h.svc.Inventory.DeleteItem(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) RecordMovement(c *gin.Context) {
	var req movementRequest
	if !bind(c, &req) {
		return
	}
	m, err := h.svc.Inventory.RecordMovement(c.Request.Context(), principal(c), c.Param("id"), service.MovementInput{
		Kind:       req.Kind,
		Quantity:   req.Quantity,
		OccurredOn: req.OccurredOn.Time,
		Reference:  req.Reference,
		Note:       req.Note,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *HTTPHandler) ListMovements(c *gin.Context) {
	month, ok := optionalMonth(c, "month")
	if !ok {
		return
	}
	out, err := h.svc.Inventory.Movements(c.Request.Context(), c.Param("id"), month)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *HTTPHandler) StockSummary(c *gin.Context) {
	month, ok := h.monthQuery(c, "month")
	if !ok {
		return
	}
	locationID := c.Query("location_id")
	if locationID == "" {
		Fail(c, apperr.InvalidErr("validation failed", map[string]string{"location_id": "is required"}))
		return
	}
	rows, err := h.svc.Inventory.Summary(c.Request.Context(), locationID, month)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *HTTPHandler) StockReport(c *gin.Context) {
	ctx := c.Request.Context()
	month, ok := h.monthQuery(c, "month")
	if !ok {
		return
	}
	loc, err := h.svc.Locations.Get(ctx, c.Query("location_id"))
	if err != nil {
		Fail(c, err)
		return
	}
	rows, err := h.svc.Inventory.Summary(ctx, loc.ID, month)
	if err != nil {
		Fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := report.WriteStockReport(&buf, *loc, month, rows); err != nil {
		Fail(c, apperr.Wrap(err))
		return
	}
	attachment(c, fmt.Sprintf("stock-%s-%s.xlsx", loc.ID, month), buf.Bytes())
}

func attachment(c *gin.Context, name string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxContentType, body)
}

func (h *HTTPHandler) ListSales(c *gin.Context) {
	from, to, ok := dateRange(c)
	if !ok {
		return
	}
	out, err := h.svc.Sales.List(c.Request.Context(), principal(c), port.SaleFilter{
		StoreID: c.Query("store_id"),
		From:    from,
		To:      to,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *HTTPHandler) CreateSale(c *gin.Context) {
	var req saleRequest
	if !bind(c, &req) {
		return
	}
	sale, err := h.svc.Sales.Create(c.Request.Context(), principal(c), service.SaleInput{
		StoreID:     req.StoreID,
		SoldOn:      req.SoldOn.Time,
		PaymentMode: req.PaymentMode,
		Lines:       req.Lines,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

func (h *HTTPHandler) GetSale(c *gin.Context) {
	sale, err := h.svc.Sales.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (h *HTTPHandler) DeleteSale(c *gin.Context) {
	if err := h.svc.Sales.Delete(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) SalesSummary(c *gin.Context) {
	month, ok := h.monthQuery(c, "month")
	if !ok {
		return
	}
	out, err := h.svc.Sales.Summary(c.Request.Context(), principal(c), c.Query("store_id"), month)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// ImportSales takes a multipart upload with fields store_id and file.
func (h *HTTPHandler) ImportSales(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	storeID := c.PostForm("store_id")
	if storeID == "" {
		Fail(c, apperr.InvalidErr("validation failed", map[string]string{"store_id": "is required"}))
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		Fail(c, apperr.InvalidErr("validation failed", map[string]string{"file": "is required"}))
		return
	}
	f, err := fh.Open()
	if err != nil {
		Fail(c, apperr.Wrap(err))
		return
	}
	defer f.Close()

	rows, err := report.ParseSales(f)
	if err != nil {
		Fail(c, err)
		return
	}
	sales, err := h.svc.Sales.Import(c.Request.Context(), principal(c), storeID, rows)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"imported": len(sales), "sales": sales})
}

func (h *HTTPHandler) ListOverheads(c *gin.Context) {
	f := port.OverheadFilter{LocationID: c.Query("location_id")}
	month, ok := optionalMonth(c, "month")
	if !ok {
		return
	}
	if !month.IsZero() {
		f.From, f.To = month.Start(), month.End()
	}
	out, err := h.svc.Overheads.List(c.Request.Context(), principal(c), f)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *HTTPHandler) CreateOverhead(c *gin.Context) {
	var req overheadRequest
	if !bind(c, &req) {
		return
	}
	o, err := h.svc.Overheads.Create(c.Request.Context(), principal(c), req.input())
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *HTTPHandler) GetOverhead(c *gin.Context) {
	o, err := h.svc.Overheads.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *HTTPHandler) UpdateOverhead(c *gin.Context) {
	var req overheadRequest
	if !bind(c, &req) {
		return
	}
	o, err := h.svc.Overheads.Update(c.Request.Context(), principal(c), c.Param("id"), req.input())
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *HTTPHandler) DeleteOverhead(c *gin.Context) {
	if err := h.svc.Overheads.Delete(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) OverheadSummary(c *gin.Context) {
	month, ok := h.monthQuery(c, "month")
	if !ok {
		return
	}
	out, err := h.svc.Overheads.Summary(c.Request.Context(), principal(c), c.Query("location_id"), month)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
