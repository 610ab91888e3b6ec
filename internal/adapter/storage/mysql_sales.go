package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/port"
)

// --- sales ---

const saleColumns = `id, store_id, sold_on, payment_mode, line_items, total, recorded_by, created_at`

func scanSale(s scanner) (domain.Sale, error) {
	var (
		sale  domain.Sale
		lines []byte
	)
	if err := s.Scan(&sale.ID, &sale.StoreID, &sale.SoldOn, &sale.PaymentMode, &lines, &sale.Total,
		&sale.RecordedBy, &sale.CreatedAt); err != nil {
		return sale, err
	}
	if err := json.Unmarshal(lines, &sale.Lines); err != nil {
		return sale, fmt.Errorf("decode sale lines: %w", err)
	}
	return sale, nil
}

func (m *MySQLAdapter) CreateSale(ctx context.Context, sale domain.Sale) error {
	lines, err := json.Marshal(sale.Lines)
	if err != nil {
		return fmt.Errorf("encode sale lines: %w", err)
	}
	_, err = m.q.ExecContext(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID, sale.StoreID, sale.SoldOn, sale.PaymentMode, lines, sale.Total, sale.RecordedBy, sale.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert sale: %w", classify(err))
	}
	return nil
}

func (m *MySQLAdapter) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	sale, err := scanSale(m.q.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query sale: %w", err)
	}
	return &sale, nil
}

func (m *MySQLAdapter) ListSales(ctx context.Context, f port.SaleFilter) ([]domain.Sale, error) {
	var w where
	w.add(f.StoreID != "", "store_id = ?", f.StoreID)
	w.add(!f.From.IsZero(), "sold_on >= ?", f.From)
	w.add(!f.To.IsZero(), "sold_on < ?", f.To)

	rows, err := m.q.QueryContext(ctx,
		`SELECT `+saleColumns+` FROM sales`+w.String()+` ORDER BY sold_on, created_at`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	defer rows.Close()

	var out []domain.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		out = append(out, sale)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) DeleteSale(ctx context.Context, id string) error {
	return mustAffect(m.q.ExecContext(ctx, `DELETE FROM sales WHERE id = ?`, id))
}

// --- overheads ---

const overheadColumns = `id, location_id, category, amount, incurred_on, note, created_at`

func scanOverhead(s scanner) (domain.Overhead, error) {
	var o domain.Overhead
	err := s.Scan(&o.ID, &o.LocationID, &o.Category, &o.Amount, &o.IncurredOn, &o.Note, &o.CreatedAt)
	return o, err
}

func (m *MySQLAdapter) CreateOverhead(ctx context.Context, o domain.Overhead) error {
	_, err := m.q.ExecContext(ctx, `
		INSERT INTO overheads (`+overheadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.LocationID, o.Category, o.Amount, o.IncurredOn, o.Note, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert overhead: %w", classify(err))
	}
	return nil
}

func (m *MySQLAdapter) GetOverhead(ctx context.Context, id string) (*domain.Overhead, error) {
	o, err := scanOverhead(m.q.QueryRowContext(ctx, `SELECT `+overheadColumns+` FROM overheads WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query overhead: %w", err)
	}
	return &o, nil
}

func (m *MySQLAdapter) ListOverheads(ctx context.Context, f port.OverheadFilter) ([]domain.Overhead, error) {
	var w where
	w.add(f.LocationID != "", "location_id = ?", f.LocationID)
	w.add(!f.From.IsZero(), "incurred_on >= ?", f.From)
	w.add(!f.To.IsZero(), "incurred_on < ?", f.To)

	rows, err := m.q.QueryContext(ctx,
		`SELECT `+overheadColumns+` FROM overheads`+w.String()+` ORDER BY incurred_on`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query overheads: %w", err)
	}
	defer rows.Close()

	var out []domain.Overhead
	for rows.Next() {
		o, err := scanOverhead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan overhead: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) UpdateOverhead(ctx context.Context, o domain.Overhead) error {
	return mustAffect(m.q.ExecContext(ctx, `
		UPDATE overheads SET location_id = ?, category = ?, amount = ?, incurred_on = ?, note = ?
		WHERE id = ?`,
		o.LocationID, o.Category, o.Amount, o.IncurredOn, o.Note, o.ID,
	))
}

func (m *MySQLAdapter) DeleteOverhead(ctx context.Context, id string) error {
	return mustAffect(m.q.ExecContext(ctx, `DELETE FROM overheads WHERE id = ?`, id))
}

// --- payouts ---

const payoutColumns = `id, employee_id, period, kind, amount, paid_on, note, created_at`

func scanPayout(s scanner) (domain.Payout, error) {
	var (
		p      domain.Payout
		period string
	)
	if err := s.Scan(&p.ID, &p.EmployeeID, &period, &p.Kind, &p.Amount, &p.PaidOn, &p.Note, &p.CreatedAt); err != nil {
		return p, err
	}
	parsed, err := domain.ParseMonth(period)
	if err != nil {
		return p, err
	}
	p.Period = parsed
	return p, nil
}

func (m *MySQLAdapter) CreatePayout(ctx context.Context, p domain.Payout) error {
	_, err := m.q.ExecContext(ctx, `
		INSERT INTO payouts (`+payoutColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.EmployeeID, p.Period.String(), p.Kind, p.Amount, p.PaidOn, p.Note, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payout: %w", classify(err))
	}
	return nil
}

func (m *MySQLAdapter) GetPayout(ctx context.Context, id string) (*domain.Payout, error) {
	p, err := scanPayout(m.q.QueryRowContext(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query payout: %w", err)
	}
	return &p, nil
}

func (m *MySQLAdapter) ListPayouts(ctx context.Context, f port.PayoutFilter) ([]domain.Payout, error) {
	var w where
	w.add(f.EmployeeID != "", "employee_id = ?", f.EmployeeID)
	w.add(!f.Period.IsZero(), "period = ?", f.Period.String())

	rows, err := m.q.QueryContext(ctx,
		`SELECT `+payoutColumns+` FROM payouts`+w.String()+` ORDER BY paid_on`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query payouts: %w", err)
	}
	defer rows.Close()

	var out []domain.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) DeletePayout(ctx context.Context, id string) error {
	return mustAffect(m.q.ExecContext(ctx, `DELETE FROM payouts WHERE id = ?`, id))
}
