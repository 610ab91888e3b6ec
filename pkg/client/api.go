package client

import (
	"context"
	"net/http"
	"net/url"
)

func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var out LoginResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out, nil); err != nil {
		return nil, err
	}
	c.SetToken(out.AccessToken)
	return &out, nil
}

func (c *Client) Stores(ctx context.Context) ([]Location, error) {
	var out []Location
	if err := c.do(ctx, http.MethodGet, "/stores", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ProductionHouses(ctx context.Context) ([]Location, error) {
	var out []Location
	if err := c.do(ctx, http.MethodGet, "/production-houses", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateStore(ctx context.Context, in LocationInput) (*Location, error) {
	var out Location
	if err := c.do(ctx, http.MethodPost, "/stores", in, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProductionHouse(ctx context.Context, in LocationInput) (*Location, error) {
	var out Location
	if err := c.do(ctx, http.MethodPost, "/production-houses", in, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateEmployee(ctx context.Context, in EmployeeInput) (*Employee, error) {
	var out Employee
	if err := c.do(ctx, http.MethodPost, "/employees", in, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// Employees lists active employees, optionally narrowed to one role.
func (c *Client) Employees(ctx context.Context, role string) ([]Employee, error) {
	q := url.Values{"active": {"true"}}
	if role != "" {
		q.Set("role", role)
	}
	var out []Employee
	if err := c.do(ctx, http.MethodGet, withQuery("/employees", q), nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Items(ctx context.Context, locationID string) ([]Item, error) {
	q := url.Values{}
	if locationID != "" {
		q.Set("location_id", locationID)
	}
	var out []Item
	if err := c.do(ctx, http.MethodGet, withQuery("/inventory", q), nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateItem(ctx context.Context, in ItemInput) (*Item, error) {
	var out Item
	if err := c.do(ctx, http.MethodPost, "/inventory", in, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RecordMovement(ctx context.Context, itemID string, in MovementInput) (*Movement, error) {
	var out Movement
	if err := c.do(ctx, http.MethodPost, "/inventory/"+url.PathEscape(itemID)+"/movements", in, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// StockSummary returns the ledger rows of every item at a location. An
// empty month means the current one.
func (c *Client) StockSummary(ctx context.Context, locationID, month string) ([]StockRow, error) {
	q := url.Values{"location_id": {locationID}}
	if month != "" {
		q.Set("month", month)
	}
	var out []StockRow
	if err := c.do(ctx, http.MethodGet, withQuery("/stock/summary", q), nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// StockReport downloads the XLSX stock report.
func (c *Client) StockReport(ctx context.Context, locationID, month string) ([]byte, error) {
	q := url.Values{"location_id": {locationID}}
	if month != "" {
		q.Set("month", month)
	}
	return c.send(ctx, http.MethodGet, withQuery("/stock/report", q), nil, "", nil)
}

func (c *Client) ProductionRequests(ctx context.Context, f RequestFilter) ([]ProductionRequest, error) {
	q := url.Values{}
	for k, v := range map[string]string{
		"store_id":            f.StoreID,
		"production_house_id": f.ProductionHouseID,
		"status":              f.Status,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	var out []ProductionRequest
	if err := c.do(ctx, http.MethodGet, withQuery("/production-requests", q), nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateProductionRequest files a request. A non-empty idempotencyKey makes
// retries of the same submission safe.
func (c *Client) CreateProductionRequest(ctx context.Context, idempotencyKey string, in ProductionRequestInput) (*ProductionRequest, error) {
	var header http.Header
	if idempotencyKey != "" {
		header = http.Header{"Idempotency-Key": {idempotencyKey}}
	}
	var out ProductionRequest
	if err := c.do(ctx, http.MethodPost, "/production-requests", in, &out, header); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) transition(ctx context.Context, id, action string, lines []LineInput) (*ProductionRequest, error) {
	var body any
	if lines != nil {
		body = map[string]any{"lines": lines}
	}
	var out ProductionRequest
	path := "/production-requests/" + url.PathEscape(id) + "/" + action
	if err := c.do(ctx, http.MethodPost, path, body, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AcceptRequest(ctx context.Context, id string) (*ProductionRequest, error) {
	return c.transition(ctx, id, "accept", nil)
}

func (c *Client) RejectRequest(ctx context.Context, id string) (*ProductionRequest, error) {
	return c.transition(ctx, id, "reject", nil)
}

func (c *Client) CancelRequest(ctx context.Context, id string) (*ProductionRequest, error) {
	return c.transition(ctx, id, "cancel", nil)
}

// DispatchRequest ships a request. Nil lines ship everything requested.
func (c *Client) DispatchRequest(ctx context.Context, id string, lines []LineInput) (*ProductionRequest, error) {
	return c.transition(ctx, id, "dispatch", lines)
}

func (c *Client) ReceiveRequest(ctx context.Context, id string, lines []LineInput) (*ProductionRequest, error) {
	return c.transition(ctx, id, "receive", lines)
}

func (c *Client) RecalibrationWindow(ctx context.Context) (*Window, error) {
	var out Window
	if err := c.do(ctx, http.MethodGet, "/recalibrations/window", nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Recalibrations(ctx context.Context, locationID, month string) ([]Recalibration, error) {
	q := url.Values{}
	if locationID != "" {
		q.Set("location_id", locationID)
	}
	if month != "" {
		q.Set("month", month)
	}
	var out []Recalibration
	if err := c.do(ctx, http.MethodGet, withQuery("/recalibrations", q), nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SubmitRecalibration(ctx context.Context, in RecalibrationInput) (*Recalibration, error) {
	var out Recalibration
	if err := c.do(ctx, http.MethodPost, "/recalibrations", in, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
