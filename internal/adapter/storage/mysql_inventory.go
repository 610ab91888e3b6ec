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

const itemColumns = `id, location_id, sku, name, category, unit, unit_cost, threshold,
	initial_quantity, version, created_at, updated_at`

func scanItem(s scanner) (domain.InventoryItem, error) {
	var it domain.InventoryItem
	err := s.Scan(&it.ID, &it.LocationID, &it.SKU, &it.Name, &it.Category, &it.Unit, &it.UnitCost,
		&it.Threshold, &it.InitialQuantity, &it.Version, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

func (m *MySQLAdapter) CreateItem(ctx context.Context, it domain.InventoryItem) error {
	_, err := m.q.ExecContext(ctx, `
		INSERT INTO inventory_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.LocationID, it.SKU, it.Name, it.Category, it.Unit, it.UnitCost,
		it.Threshold, it.InitialQuantity, it.Version, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", classify(err))
	}
	return nil
}

func (m *MySQLAdapter) queryItem(ctx context.Context, query string, args ...any) (*domain.InventoryItem, error) {
	it, err := scanItem(m.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}
	return &it, nil
}

func (m *MySQLAdapter) GetItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	return m.queryItem(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = ?`, id)
}

func (m *MySQLAdapter) LockItem(ctx context.Context, id string) error {
	var got string
	err := m.q.QueryRowContext(ctx, `SELECT id FROM inventory_items WHERE id = ? FOR UPDATE`, id).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return port.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock item: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetItemBySKU(ctx context.Context, locationID, sku string) (*domain.InventoryItem, error) {
	return m.queryItem(ctx,
		`SELECT `+itemColumns+` FROM inventory_items WHERE location_id = ? AND sku = ?`, locationID, sku)
}

func (m *MySQLAdapter) ListItems(ctx context.Context, f port.ItemFilter) ([]domain.InventoryItem, error) {
	var w where
	w.add(f.LocationID != "", "location_id = ?", f.LocationID)
	w.add(f.Category != "", "category = ?", f.Category)

	rows, err := m.q.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM inventory_items`+w.String()+` ORDER BY location_id, sku`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var out []domain.InventoryItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) UpdateItem(ctx context.Context, it domain.InventoryItem) error {
	result, err := m.q.ExecContext(ctx, `
		UPDATE inventory_items
		SET sku = ?, name = ?, category = ?, unit = ?, unit_cost = ?, threshold = ?,
		    initial_quantity = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		it.SKU, it.Name, it.Category, it.Unit, it.UnitCost, it.Threshold,
		it.InitialQuantity, it.UpdatedAt, it.ID, it.Version,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", classify(err))
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		existing, err := m.GetItem(ctx, it.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return port.ErrNotFound
		}
		return ErrOptimisticLock
	}
	return nil
}

func (m *MySQLAdapter) DeleteItem(ctx context.Context, id string) error {
	return mustAffect(m.q.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = ?`, id))
}

// --- movements ---

const movementColumns = `id, item_id, location_id, kind, quantity, occurred_on, reference, note,
	created_by, created_at`

func (m *MySQLAdapter) CreateMovement(ctx context.Context, mv domain.StockMovement) error {
	_, err := m.q.ExecContext(ctx, `
		INSERT INTO stock_movements (`+movementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mv.ID, mv.ItemID, mv.LocationID, mv.Kind, mv.Quantity, mv.OccurredOn, mv.Reference, mv.Note,
		mv.CreatedBy, mv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert movement: %w", classify(err))
	}
	return nil
}

func (m *MySQLAdapter) ListMovements(ctx context.Context, f port.MovementFilter) ([]domain.StockMovement, error) {
	var w where
	w.add(f.ItemID != "", "item_id = ?", f.ItemID)
	w.add(f.LocationID != "", "location_id = ?", f.LocationID)
	w.add(f.Reference != "", "reference = ?", f.Reference)
	w.add(!f.From.IsZero(), "occurred_on >= ?", f.From)
	w.add(!f.To.IsZero(), "occurred_on < ?", f.To)

	rows, err := m.q.QueryContext(ctx,
		`SELECT `+movementColumns+` FROM stock_movements`+w.String()+` ORDER BY occurred_on, created_at`,
		w.args...)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()

	var out []domain.StockMovement
	for rows.Next() {
		var mv domain.StockMovement
		if err := rows.Scan(&mv.ID, &mv.ItemID, &mv.LocationID, &mv.Kind, &mv.Quantity, &mv.OccurredOn,
			&mv.Reference, &mv.Note, &mv.CreatedBy, &mv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		out = append(out, mv)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) CountMovements(ctx context.Context, itemID string) (int, error) {
	var n int
	err := m.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM stock_movements WHERE item_id = ?`, itemID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count movements: %w", err)
	}
	return n, nil
}

func (m *MySQLAdapter) DeleteMovementsByReference(ctx context.Context, reference string) error {
	if _, err := m.q.ExecContext(ctx, `DELETE FROM stock_movements WHERE reference = ?`, reference); err != nil {
		return fmt.Errorf("delete movements: %w", err)
	}
	return nil
}

// --- recalibrations ---

const recalColumns = `id, location_id, month, line_items, submitted_by, submitted_at`

func scanRecalibration(s scanner) (domain.Recalibration, error) {
	var (
		r     domain.Recalibration
		month string
		lines []byte
	)
	if err := s.Scan(&r.ID, &r.LocationID, &month, &lines, &r.SubmittedBy, &r.SubmittedAt); err != nil {
		return r, err
	}
	parsed, err := domain.ParseMonth(month)
	if err != nil {
		return r, err
	}
	r.Month = parsed
	if err := json.Unmarshal(lines, &r.Lines); err != nil {
		return r, fmt.Errorf("decode recalibration lines: %w", err)
	}
	return r, nil
}

func (m *MySQLAdapter) SaveRecalibration(ctx context.Context, r domain.Recalibration) error {
	lines, err := json.Marshal(r.Lines)
	if err != nil {
		return fmt.Errorf("encode recalibration lines: %w", err)
	}
	_, err = m.q.ExecContext(ctx, `
		INSERT INTO recalibrations (`+recalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = VALUES(id), line_items = VALUES(line_items),
		    submitted_by = VALUES(submitted_by), submitted_at = VALUES(submitted_at)`,
		r.ID, r.LocationID, r.Month.String(), lines, r.SubmittedBy, r.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("save recalibration: %w", classify(err))
	}
	return nil
}

func (m *MySQLAdapter) queryRecalibration(ctx context.Context, query string, args ...any) (*domain.Recalibration, error) {
	r, err := scanRecalibration(m.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query recalibration: %w", err)
	}
	return &r, nil
}

func (m *MySQLAdapter) GetRecalibration(ctx context.Context, id string) (*domain.Recalibration, error) {
	return m.queryRecalibration(ctx, `SELECT `+recalColumns+` FROM recalibrations WHERE id = ?`, id)
}

func (m *MySQLAdapter) FindRecalibration(ctx context.Context, locationID string, month domain.Month) (*domain.Recalibration, error) {
	return m.queryRecalibration(ctx,
		`SELECT `+recalColumns+` FROM recalibrations WHERE location_id = ? AND month = ?`,
		locationID, month.String())
}

func (m *MySQLAdapter) ListRecalibrations(ctx context.Context, locationID string) ([]domain.Recalibration, error) {
	var w where
	w.add(locationID != "", "location_id = ?", locationID)
	rows, err := m.q.QueryContext(ctx,
		`SELECT `+recalColumns+` FROM recalibrations`+w.String()+` ORDER BY month DESC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query recalibrations: %w", err)
	}
	defer rows.Close()

	var out []domain.Recalibration
	for rows.Next() {
		r, err := scanRecalibration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recalibration: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
