package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/port"
)

// --- timesheets ---

const timesheetColumns = `id, employee_id, work_date, hours, note, status, approver_id, decided_at, created_at`

func scanTimesheet(s scanner) (domain.Timesheet, error) {
	var (
		ts      domain.Timesheet
		decided sql.NullTime
	)
	err := s.Scan(&ts.ID, &ts.EmployeeID, &ts.WorkDate, &ts.Hours, &ts.Note, &ts.Status, &ts.ApproverID,
		&decided, &ts.CreatedAt)
	ts.DecidedAt = timePtr(decided)
	return ts, err
}

func (m *MySQLAdapter) CreateTimesheet(ctx context.Context, ts domain.Timesheet) error {
	_, err := m.q.ExecContext(ctx, `
		INSERT INTO timesheets (`+timesheetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.ID, ts.EmployeeID, ts.WorkDate, ts.Hours, ts.Note, ts.Status, ts.ApproverID,
		nullTime(ts.DecidedAt), ts.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert timesheet: %w", classify(err))
	}
	return nil
}

func (m *MySQLAdapter) GetTimesheet(ctx context.Context, id string) (*domain.Timesheet, error) {
	ts, err := scanTimesheet(m.q.QueryRowContext(ctx, `SELECT `+timesheetColumns+` FROM timesheets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query timesheet: %w", err)
	}
	return &ts, nil
}

func (m *MySQLAdapter) ListTimesheets(ctx context.Context, f port.TimesheetFilter) ([]domain.Timesheet, error) {
	var w where
	w.add(f.EmployeeID != "", "employee_id = ?", f.EmployeeID)
	w.add(f.Status != "", "status = ?", f.Status)
	w.add(!f.From.IsZero(), "work_date >= ?", f.From)
	w.add(!f.To.IsZero(), "work_date < ?", f.To)

	rows, err := m.q.QueryContext(ctx,
		`SELECT `+timesheetColumns+` FROM timesheets`+w.String()+` ORDER BY work_date, employee_id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query timesheets: %w", err)
	}
	defer rows.Close()

	var out []domain.Timesheet
	for rows.Next() {
		ts, err := scanTimesheet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan timesheet: %w", err)
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) UpdateTimesheet(ctx context.Context, ts domain.Timesheet) error {
	return mustAffect(m.q.ExecContext(ctx, `
		UPDATE timesheets SET hours = ?, note = ?, status = ?, approver_id = ?, decided_at = ?
		WHERE id = ?`,
		ts.Hours, ts.Note, ts.Status, ts.ApproverID, nullTime(ts.DecidedAt), ts.ID,
	))
}

func (m *MySQLAdapter) DeleteTimesheet(ctx context.Context, id string) error {
	return mustAffect(m.q.ExecContext(ctx, `DELETE FROM timesheets WHERE id = ?`, id))
}

// --- leaves ---

const leaveColumns = `id, employee_id, kind, start_date, end_date, days, reason, status, approver_id,
	decided_at, created_at`

func scanLeave(s scanner) (domain.Leave, error) {
	var (
		l       domain.Leave
		decided sql.NullTime
	)
	err := s.Scan(&l.ID, &l.EmployeeID, &l.Kind, &l.StartDate, &l.EndDate, &l.Days, &l.Reason, &l.Status,
		&l.ApproverID, &decided, &l.CreatedAt)
	l.DecidedAt = timePtr(decided)
	return l, err
}

func (m *MySQLAdapter) CreateLeave(ctx context.Context, l domain.Leave) error {
	_, err := m.q.ExecContext(ctx, `
		INSERT INTO leaves (`+leaveColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.EmployeeID, l.Kind, l.StartDate, l.EndDate, l.Days, l.Reason, l.Status, l.ApproverID,
		nullTime(l.DecidedAt), l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert leave: %w", classify(err))
	}
	return nil
}

func (m *MySQLAdapter) GetLeave(ctx context.Context, id string) (*domain.Leave, error) {
	l, err := scanLeave(m.q.QueryRowContext(ctx, `SELECT `+leaveColumns+` FROM leaves WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query leave: %w", err)
	}
	return &l, nil
}

func (m *MySQLAdapter) ListLeaves(ctx context.Context, f port.LeaveFilter) ([]domain.Leave, error) {
	var w where
	w.add(f.EmployeeID != "", "employee_id = ?", f.EmployeeID)
	w.add(f.Status != "", "status = ?", f.Status)
	w.add(!f.From.IsZero(), "start_date >= ?", f.From)
	w.add(!f.To.IsZero(), "start_date < ?", f.To)

	rows, err := m.q.QueryContext(ctx,
		`SELECT `+leaveColumns+` FROM leaves`+w.String()+` ORDER BY start_date`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query leaves: %w", err)
	}
	defer rows.Close()

	var out []domain.Leave
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, fmt.Errorf("scan leave: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) UpdateLeave(ctx context.Context, l domain.Leave) error {
	return mustAffect(m.q.ExecContext(ctx, `
		UPDATE leaves SET status = ?, approver_id = ?, decided_at = ?, reason = ?
		WHERE id = ?`,
		l.Status, l.ApproverID, nullTime(l.DecidedAt), l.Reason, l.ID,
	))
}

func (m *MySQLAdapter) DeleteLeave(ctx context.Context, id string) error {
	return mustAffect(m.q.ExecContext(ctx, `DELETE FROM leaves WHERE id = ?`, id))
}

// --- notifications ---

const notificationColumns = `id, recipient_id, location_id, kind, message, is_read, created_at`

func (m *MySQLAdapter) CreateNotification(ctx context.Context, n domain.Notification) error {
	_, err := m.q.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.RecipientID, n.LocationID, n.Kind, n.Message, n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", classify(err))
	}
	return nil
}

func (m *MySQLAdapter) ListNotifications(ctx context.Context, f port.NotificationFilter) ([]domain.Notification, error) {
	var w where
	w.add(f.RecipientID != "", "recipient_id = ?", f.RecipientID)
	w.add(f.UnreadOnly, "is_read = FALSE")

	rows, err := m.q.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications`+w.String()+` ORDER BY created_at DESC LIMIT 200`,
		w.args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.LocationID, &n.Kind, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) MarkNotificationRead(ctx context.Context, id, recipientID string) error {
	return mustAffect(m.q.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = ? AND recipient_id = ?`, id, recipientID))
}
