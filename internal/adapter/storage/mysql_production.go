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

const requestColumns = `id, store_id, production_house_id, status, line_items, needed_by, notes,
	requested_by, decided_by, version, created_at, updated_at`

func scanRequest(s scanner) (domain.ProductionRequest, error) {
	var (
		r        domain.ProductionRequest
		lines    []byte
		neededBy sql.NullTime
	)
	if err := s.Scan(&r.ID, &r.StoreID, &r.ProductionHouseID, &r.Status, &lines, &neededBy, &r.Notes,
		&r.RequestedBy, &r.DecidedBy, &r.Version, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return r, err
	}
	r.NeededBy = timePtr(neededBy)
	if err := json.Unmarshal(lines, &r.Lines); err != nil {
		return r, fmt.Errorf("decode request lines: %w", err)
	}
	return r, nil
}

func (m *MySQLAdapter) CreateRequest(ctx context.Context, r domain.ProductionRequest) error {
	lines, err := json.Marshal(r.Lines)
	if err != nil {
		return fmt.Errorf("encode request lines: %w", err)
	}
	_, err = m.q.ExecContext(ctx, `
		INSERT INTO production_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StoreID, r.ProductionHouseID, r.Status, lines, nullTime(r.NeededBy), r.Notes,
		r.RequestedBy, r.DecidedBy, r.Version, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", classify(err))
	}
	return nil
}

func (m *MySQLAdapter) GetRequest(ctx context.Context, id string) (*domain.ProductionRequest, error) {
	r, err := scanRequest(m.q.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM production_requests WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query request: %w", err)
	}
	return &r, nil
}

func (m *MySQLAdapter) ListRequests(ctx context.Context, f port.RequestFilter) ([]domain.ProductionRequest, error) {
	var w where
	w.add(f.StoreID != "", "store_id = ?", f.StoreID)
	w.add(f.ProductionHouseID != "", "production_house_id = ?", f.ProductionHouseID)
	w.add(f.Status != "", "status = ?", f.Status)

	rows, err := m.q.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM production_requests`+w.String()+` ORDER BY created_at DESC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var out []domain.ProductionRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) UpdateRequest(ctx context.Context, r domain.ProductionRequest) error {
	lines, err := json.Marshal(r.Lines)
	if err != nil {
		return fmt.Errorf("encode request lines: %w", err)
	}
	result, err := m.q.ExecContext(ctx, `
		UPDATE production_requests
		SET status = ?, line_items = ?, needed_by = ?, notes = ?, decided_by = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		r.Status, lines, nullTime(r.NeededBy), r.Notes, r.DecidedBy, r.UpdatedAt, r.ID, r.Version,
	)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		existing, err := m.GetRequest(ctx, r.ID)
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
