package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/port"
)

//go:embed schema.sql
var schemaSQL string

// ErrOptimisticLock is kept as an alias so storage callers can match on it
// without importing port.
var ErrOptimisticLock = port.ErrOptimisticLock

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// MySQLAdapter implements port.Store on database/sql. Inside Tx the same
// type is bound to a *sql.Tx.
type MySQLAdapter struct {
	db   *sql.DB
	q    querier
	inTx bool
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db, q: db}
}

var _ port.Store = (*MySQLAdapter)(nil)

// Migrate applies schema.sql. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

const txAttempts = 3

// Tx runs fn in a transaction, retrying on deadlock and lock wait timeout.
func (m *MySQLAdapter) Tx(ctx context.Context, fn func(tx port.Store) error) error {
	if m.inTx {
		return fn(m)
	}
	var lastErr error
	for i := 0; i < txAttempts; i++ {
		lastErr = m.runTx(ctx, fn)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) || i == txAttempts-1 {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(50*(i+1)) * time.Millisecond):
		}
	}
	return lastErr
}

func (m *MySQLAdapter) runTx(ctx context.Context, fn func(tx port.Store) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&MySQLAdapter{db: m.db, q: tx, inTx: true}); err != nil {
		return err
	}
	return tx.Commit()
}

func isRetryable(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		// 1213: deadlock found; 1205: lock wait timeout
		return me.Number == 1213 || me.Number == 1205
	}
	return false
}

// classify maps driver errors onto port sentinels.
func classify(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return fmt.Errorf("%w: %s", port.ErrDuplicate, me.Message)
	}
	return err
}

// mustAffect turns a zero-row update or delete into ErrNotFound.
func mustAffect(res sql.Result, err error) error {
	if err != nil {
		return classify(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return port.ErrNotFound
	}
	return nil
}

type where struct {
	clauses []string
	args    []any
}

func (w *where) add(cond bool, clause string, args ...any) {
	if !cond {
		return
	}
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// --- locations ---

const locationColumns = `id, name, kind, address, cluster_head_id, created_at`

func scanLocation(s scanner) (domain.Location, error) {
	var loc domain.Location
	err := s.Scan(&loc.ID, &loc.Name, &loc.Kind, &loc.Address, &loc.ClusterHeadID, &loc.CreatedAt)
	return loc, err
}

func (m *MySQLAdapter) CreateLocation(ctx context.Context, loc domain.Location) error {
	_, err := m.q.ExecContext(ctx, `
		INSERT INTO locations (`+locationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		loc.ID, loc.Name, loc.Kind, loc.Address, loc.ClusterHeadID, loc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert location: %w", classify(err))
	}
	return nil
}

func (m *MySQLAdapter) GetLocation(ctx context.Context, id string) (*domain.Location, error) {
	loc, err := scanLocation(m.q.QueryRowContext(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query location: %w", err)
	}
	return &loc, nil
}

func (m *MySQLAdapter) ListLocations(ctx context.Context, kind domain.LocationKind) ([]domain.Location, error) {
	var w where
	w.add(kind != "", "kind = ?", kind)
	rows, err := m.q.QueryContext(ctx,
		`SELECT `+locationColumns+` FROM locations`+w.String()+` ORDER BY name`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	var out []domain.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) UpdateLocation(ctx context.Context, loc domain.Location) error {
	return mustAffect(m.q.ExecContext(ctx, `
		UPDATE locations SET name = ?, kind = ?, address = ?, cluster_head_id = ?
		WHERE id = ?`,
		loc.Name, loc.Kind, loc.Address, loc.ClusterHeadID, loc.ID,
	))
}

func (m *MySQLAdapter) DeleteLocation(ctx context.Context, id string) error {
	return mustAffect(m.q.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id))
}

// --- employees ---

const employeeColumns = `id, name, email, phone, role, manager_id, location_id, hourly_rate,
	joined_on, active, password_hash, created_at, updated_at`

func scanEmployee(s scanner) (domain.Employee, error) {
	var e domain.Employee
	err := s.Scan(&e.ID, &e.Name, &e.Email, &e.Phone, &e.Role, &e.ManagerID, &e.LocationID,
		&e.HourlyRate, &e.JoinedOn, &e.Active, &e.PasswordHash, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (m *MySQLAdapter) CreateEmployee(ctx context.Context, e domain.Employee) error {
	_, err := m.q.ExecContext(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Email, e.Phone, e.Role, e.ManagerID, e.LocationID, e.HourlyRate,
		e.JoinedOn, e.Active, e.PasswordHash, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert employee: %w", classify(err))
	}
	return nil
}

func (m *MySQLAdapter) getEmployeeBy(ctx context.Context, column, value string) (*domain.Employee, error) {
	e, err := scanEmployee(m.q.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE `+column+` = ?`, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query employee: %w", err)
	}
	return &e, nil
}

func (m *MySQLAdapter) GetEmployee(ctx context.Context, id string) (*domain.Employee, error) {
	return m.getEmployeeBy(ctx, "id", id)
}

func (m *MySQLAdapter) GetEmployeeByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	return m.getEmployeeBy(ctx, "email", email)
}

func (m *MySQLAdapter) ListEmployees(ctx context.Context, f port.EmployeeFilter) ([]domain.Employee, error) {
	var w where
	w.add(f.LocationID != "", "location_id = ?", f.LocationID)
	w.add(f.ManagerID != "", "manager_id = ?", f.ManagerID)
	w.add(f.Role != "", "role = ?", f.Role)
	w.add(f.ActiveOnly, "active = TRUE")

	rows, err := m.q.QueryContext(ctx,
		`SELECT `+employeeColumns+` FROM employees`+w.String()+` ORDER BY name`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	var out []domain.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) UpdateEmployee(ctx context.Context, e domain.Employee) error {
	return mustAffect(m.q.ExecContext(ctx, `
		UPDATE employees
		SET name = ?, email = ?, phone = ?, role = ?, manager_id = ?, location_id = ?,
		    hourly_rate = ?, joined_on = ?, active = ?, password_hash = ?, updated_at = ?
		WHERE id = ?`,
		e.Name, e.Email, e.Phone, e.Role, e.ManagerID, e.LocationID,
		e.HourlyRate, e.JoinedOn, e.Active, e.PasswordHash, e.UpdatedAt, e.ID,
	))
}
