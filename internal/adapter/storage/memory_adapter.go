package storage

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/port"
)

// MemoryStore keeps everything in process. It backs the "memory" storage
// driver and the service tests. Transactions are serialized and roll back by
// restoring a snapshot; writes outside a transaction wait for the running one
// to finish so a rollback never discards them.
type MemoryStore struct {
	*memDB
	inTx bool
}

type memDB struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	d    *memData
}

type memData struct {
	locations     map[string]domain.Location
	employees     map[string]domain.Employee
	items         map[string]domain.InventoryItem
	movements     []domain.StockMovement
	sales         map[string]domain.Sale
	overheads     map[string]domain.Overhead
	payouts       map[string]domain.Payout
	timesheets    map[string]domain.Timesheet
	leaves        map[string]domain.Leave
	requests      map[string]domain.ProductionRequest
	recals        map[string]domain.Recalibration
	notifications map[string]domain.Notification
}

func newMemData() *memData {
	return &memData{
		locations:     map[string]domain.Location{},
		employees:     map[string]domain.Employee{},
		items:         map[string]domain.InventoryItem{},
		sales:         map[string]domain.Sale{},
		overheads:     map[string]domain.Overhead{},
		payouts:       map[string]domain.Payout{},
		timesheets:    map[string]domain.Timesheet{},
		leaves:        map[string]domain.Leave{},
		requests:      map[string]domain.ProductionRequest{},
		recals:        map[string]domain.Recalibration{},
		notifications: map[string]domain.Notification{},
	}
}

// clone copies the maps. Stored values are replaced wholesale on update and
// never mutated in place, so sharing their slices is safe.
func (d *memData) clone() *memData {
	return &memData{
		locations:     maps.Clone(d.locations),
		employees:     maps.Clone(d.employees),
		items:         maps.Clone(d.items),
		movements:     slices.Clone(d.movements),
		sales:         maps.Clone(d.sales),
		overheads:     maps.Clone(d.overheads),
		payouts:       maps.Clone(d.payouts),
		timesheets:    maps.Clone(d.timesheets),
		leaves:        maps.Clone(d.leaves),
		requests:      maps.Clone(d.requests),
		recals:        maps.Clone(d.recals),
		notifications: maps.Clone(d.notifications),
	}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{memDB: &memDB{d: newMemData()}}
}

var _ port.Store = (*MemoryStore)(nil)

func (s *MemoryStore) Tx(ctx context.Context, fn func(tx port.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.d.clone()
	s.mu.RUnlock()

	if err := fn(&MemoryStore{memDB: s.memDB, inTx: true}); err != nil {
		s.mu.Lock()
		s.d = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// lockWrite takes the write lock, first waiting for any running transaction
// unless s is that transaction's handle.
func (s *MemoryStore) lockWrite() func() {
	if !s.inTx {
		s.txMu.Lock()
	}
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		if !s.inTx {
			s.txMu.Unlock()
		}
	}
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

func cloneRequest(r domain.ProductionRequest) domain.ProductionRequest {
	r.Lines = slices.Clone(r.Lines)
	return r
}

func ptr[T any](v T, ok bool) *T {
	if !ok {
		return nil
	}
	return &v
}

// --- locations ---

func (s *MemoryStore) CreateLocation(ctx context.Context, loc domain.Location) error {
	defer s.lockWrite()()
	if _, ok := s.d.locations[loc.ID]; ok {
		return port.ErrDuplicate
	}
	s.d.locations[loc.ID] = loc
	return nil
}

func (s *MemoryStore) GetLocation(ctx context.Context, id string) (*domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.d.locations[id]
	return ptr(loc, ok), nil
}

func (s *MemoryStore) ListLocations(ctx context.Context, kind domain.LocationKind) ([]domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Location
	for _, loc := range s.d.locations {
		if kind == "" || loc.Kind == kind {
			out = append(out, loc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) UpdateLocation(ctx context.Context, loc domain.Location) error {
	defer s.lockWrite()()
	if _, ok := s.d.locations[loc.ID]; !ok {
		return port.ErrNotFound
	}
	s.d.locations[loc.ID] = loc
	return nil
}

func (s *MemoryStore) DeleteLocation(ctx context.Context, id string) error {
	defer s.lockWrite()()
	if _, ok := s.d.locations[id]; !ok {
		return port.ErrNotFound
	}
	delete(s.d.locations, id)
	return nil
}

// --- employees ---

func (s *MemoryStore) CreateEmployee(ctx context.Context, e domain.Employee) error {
	defer s.lockWrite()()
	if _, ok := s.d.employees[e.ID]; ok {
		return port.ErrDuplicate
	}
	for _, other := range s.d.employees {
		if strings.EqualFold(other.Email, e.Email) {
			return port.ErrDuplicate
		}
	}
	s.d.employees[e.ID] = e
	return nil
}

func (s *MemoryStore) GetEmployee(ctx context.Context, id string) (*domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.d.employees[id]
	return ptr(e, ok), nil
}

func (s *MemoryStore) GetEmployeeByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.d.employees {
		if strings.EqualFold(e.Email, email) {
			return &e, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListEmployees(ctx context.Context, f port.EmployeeFilter) ([]domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Employee
	for _, e := range s.d.employees {
		if f.LocationID != "" && e.LocationID != f.LocationID {
			continue
		}
		if f.ManagerID != "" && e.ManagerID != f.ManagerID {
			continue
		}
		if f.Role != "" && e.Role != f.Role {
			continue
		}
		if f.ActiveOnly && !e.Active {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) UpdateEmployee(ctx context.Context, e domain.Employee) error {
	defer s.lockWrite()()
	if _, ok := s.d.employees[e.ID]; !ok {
		return port.ErrNotFound
	}
	for _, other := range s.d.employees {
		if other.ID != e.ID && strings.EqualFold(other.Email, e.Email) {
			return port.ErrDuplicate
		}
	}
	s.d.employees[e.ID] = e
	return nil
}

// --- inventory ---

func (s *MemoryStore) CreateItem(ctx context.Context, item domain.InventoryItem) error {
	defer s.lockWrite()()
	for _, other := range s.d.items {
		if other.ID == item.ID || (other.LocationID == item.LocationID && other.SKU == item.SKU) {
			return port.ErrDuplicate
		}
	}
	s.d.items[item.ID] = item
	return nil
}

func (s *MemoryStore) GetItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.d.items[id]
	return ptr(item, ok), nil
}

func (s *MemoryStore) GetItemBySKU(ctx context.Context, locationID, sku string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.d.items {
		if item.LocationID == locationID && item.SKU == sku {
			return &item, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListItems(ctx context.Context, f port.ItemFilter) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.InventoryItem
	for _, item := range s.d.items {
		if f.LocationID != "" && item.LocationID != f.LocationID {
			continue
		}
		if f.Category != "" && item.Category != f.Category {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LocationID != out[j].LocationID {
			return out[i].LocationID < out[j].LocationID
		}
		return out[i].SKU < out[j].SKU
	})
	return out, nil
}

func (s *MemoryStore) UpdateItem(ctx context.Context, item domain.InventoryItem) error {
	defer s.lockWrite()()
	current, ok := s.d.items[item.ID]
	if !ok {
		return port.ErrNotFound
	}
	if current.Version != item.Version {
		return port.ErrOptimisticLock
	}
	for _, other := range s.d.items {
		if other.ID != item.ID && other.LocationID == item.LocationID && other.SKU == item.SKU {
			return port.ErrDuplicate
		}
	}
	item.Version++
	s.d.items[item.ID] = item
	return nil
}

func (s *MemoryStore) DeleteItem(ctx context.Context, id string) error {
	defer s.lockWrite()()
	if _, ok := s.d.items[id]; !ok {
		return port.ErrNotFound
	}
	delete(s.d.items, id)
	return nil
}

// LockItem only checks existence; transactions are already serialized by txMu.
func (s *MemoryStore) LockItem(ctx context.Context, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.d.items[id]; !ok {
		return port.ErrNotFound
	}
	return nil
}

// --- movements ---

func (s *MemoryStore) CreateMovement(ctx context.Context, m domain.StockMovement) error {
	defer s.lockWrite()()
	s.d.movements = append(s.d.movements, m)
	return nil
}

func (s *MemoryStore) ListMovements(ctx context.Context, f port.MovementFilter) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.StockMovement
	for _, m := range s.d.movements {
		if f.ItemID != "" && m.ItemID != f.ItemID {
			continue
		}
		if f.LocationID != "" && m.LocationID != f.LocationID {
			continue
		}
		if f.Reference != "" && m.Reference != f.Reference {
			continue
		}
		if !inRange(m.OccurredOn, f.From, f.To) {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredOn.Before(out[j].OccurredOn) })
	return out, nil
}

func (s *MemoryStore) CountMovements(ctx context.Context, itemID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.d.movements {
		if m.ItemID == itemID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeleteMovementsByReference(ctx context.Context, reference string) error {
	defer s.lockWrite()()
	s.d.movements = slices.DeleteFunc(s.d.movements, func(m domain.StockMovement) bool {
		return m.Reference == reference
	})
	return nil
}

// --- sales ---

func (s *MemoryStore) CreateSale(ctx context.Context, sale domain.Sale) error {
	defer s.lockWrite()()
	if _, ok := s.d.sales[sale.ID]; ok {
		return port.ErrDuplicate
	}
	s.d.sales[sale.ID] = sale
	return nil
}

func (s *MemoryStore) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sale, ok := s.d.sales[id]
	return ptr(sale, ok), nil
}

func (s *MemoryStore) ListSales(ctx context.Context, f port.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Sale
	for _, sale := range s.d.sales {
		if f.StoreID != "" && sale.StoreID != f.StoreID {
			continue
		}
		if !inRange(sale.SoldOn, f.From, f.To) {
			continue
		}
		out = append(out, sale)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SoldOn.Equal(out[j].SoldOn) {
			return out[i].SoldOn.Before(out[j].SoldOn)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) DeleteSale(ctx context.Context, id string) error {
	defer s.lockWrite()()
	if _, ok := s.d.sales[id]; !ok {
		return port.ErrNotFound
	}
	delete(s.d.sales, id)
	return nil
}

// --- overheads ---

func (s *MemoryStore) CreateOverhead(ctx context.Context, o domain.Overhead) error {
	defer s.lockWrite()()
	s.d.overheads[o.ID] = o
	return nil
}

func (s *MemoryStore) GetOverhead(ctx context.Context, id string) (*domain.Overhead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.d.overheads[id]
	return ptr(o, ok), nil
}

func (s *MemoryStore) ListOverheads(ctx context.Context, f port.OverheadFilter) ([]domain.Overhead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Overhead
	for _, o := range s.d.overheads {
		if f.LocationID != "" && o.LocationID != f.LocationID {
			continue
		}
		if !inRange(o.IncurredOn, f.From, f.To) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IncurredOn.Before(out[j].IncurredOn) })
	return out, nil
}

func (s *MemoryStore) UpdateOverhead(ctx context.Context, o domain.Overhead) error {
	defer s.lockWrite()()
	if _, ok := s.d.overheads[o.ID]; !ok {
		return port.ErrNotFound
	}
	s.d.overheads[o.ID] = o
	return nil
}

func (s *MemoryStore) DeleteOverhead(ctx context.Context, id string) error {
	defer s.lockWrite()()
	if _, ok := s.d.overheads[id]; !ok {
		return port.ErrNotFound
	}
	delete(s.d.overheads, id)
	return nil
}

// --- payouts ---

func (s *MemoryStore) CreatePayout(ctx context.Context, p domain.Payout) error {
	defer s.lockWrite()()
	s.d.payouts[p.ID] = p
	return nil
}

func (s *MemoryStore) GetPayout(ctx context.Context, id string) (*domain.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.d.payouts[id]
	return ptr(p, ok), nil
}

func (s *MemoryStore) ListPayouts(ctx context.Context, f port.PayoutFilter) ([]domain.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Payout
	for _, p := range s.d.payouts {
		if f.EmployeeID != "" && p.EmployeeID != f.EmployeeID {
			continue
		}
		if !f.Period.IsZero() && p.Period != f.Period {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidOn.Before(out[j].PaidOn) })
	return out, nil
}

func (s *MemoryStore) DeletePayout(ctx context.Context, id string) error {
	defer s.lockWrite()()
	if _, ok := s.d.payouts[id]; !ok {
		return port.ErrNotFound
	}
	delete(s.d.payouts, id)
	return nil
}

// --- timesheets ---

func (s *MemoryStore) CreateTimesheet(ctx context.Context, ts domain.Timesheet) error {
	defer s.lockWrite()()
	for _, other := range s.d.timesheets {
		if other.ID == ts.ID || (other.EmployeeID == ts.EmployeeID && other.WorkDate.Equal(ts.WorkDate)) {
			return port.ErrDuplicate
		}
	}
	s.d.timesheets[ts.ID] = ts
	return nil
}

func (s *MemoryStore) GetTimesheet(ctx context.Context, id string) (*domain.Timesheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.d.timesheets[id]
	return ptr(ts, ok), nil
}

func (s *MemoryStore) ListTimesheets(ctx context.Context, f port.TimesheetFilter) ([]domain.Timesheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Timesheet
	for _, ts := range s.d.timesheets {
		if f.EmployeeID != "" && ts.EmployeeID != f.EmployeeID {
			continue
		}
		if f.Status != "" && ts.Status != f.Status {
			continue
		}
		if !inRange(ts.WorkDate, f.From, f.To) {
			continue
		}
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WorkDate.Equal(out[j].WorkDate) {
			return out[i].WorkDate.Before(out[j].WorkDate)
		}
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out, nil
}

func (s *MemoryStore) UpdateTimesheet(ctx context.Context, ts domain.Timesheet) error {
	defer s.lockWrite()()
	if _, ok := s.d.timesheets[ts.ID]; !ok {
		return port.ErrNotFound
	}
	s.d.timesheets[ts.ID] = ts
	return nil
}

func (s *MemoryStore) DeleteTimesheet(ctx context.Context, id string) error {
	defer s.lockWrite()()
	if _, ok := s.d.timesheets[id]; !ok {
		return port.ErrNotFound
	}
	delete(s.d.timesheets, id)
	return nil
}

// --- leaves ---

func (s *MemoryStore) CreateLeave(ctx context.Context, l domain.Leave) error {
	defer s.lockWrite()()
	if _, ok := s.d.leaves[l.ID]; ok {
		return port.ErrDuplicate
	}
	s.d.leaves[l.ID] = l
	return nil
}

func (s *MemoryStore) GetLeave(ctx context.Context, id string) (*domain.Leave, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.d.leaves[id]
	return ptr(l, ok), nil
}

func (s *MemoryStore) ListLeaves(ctx context.Context, f port.LeaveFilter) ([]domain.Leave, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Leave
	for _, l := range s.d.leaves {
		if f.EmployeeID != "" && l.EmployeeID != f.EmployeeID {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if !inRange(l.StartDate, f.From, f.To) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (s *MemoryStore) UpdateLeave(ctx context.Context, l domain.Leave) error {
	defer s.lockWrite()()
	if _, ok := s.d.leaves[l.ID]; !ok {
		return port.ErrNotFound
	}
	s.d.leaves[l.ID] = l
	return nil
}

func (s *MemoryStore) DeleteLeave(ctx context.Context, id string) error {
	defer s.lockWrite()()
	if _, ok := s.d.leaves[id]; !ok {
		return port.ErrNotFound
	}
	delete(s.d.leaves, id)
	return nil
}

// --- production requests ---

func (s *MemoryStore) CreateRequest(ctx context.Context, r domain.ProductionRequest) error {
	defer s.lockWrite()()
	if _, ok := s.d.requests[r.ID]; ok {
		return port.ErrDuplicate
	}
	s.d.requests[r.ID] = cloneRequest(r)
	return nil
}

func (s *MemoryStore) GetRequest(ctx context.Context, id string) (*domain.ProductionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.d.requests[id]
	return ptr(cloneRequest(r), ok), nil
}

func (s *MemoryStore) ListRequests(ctx context.Context, f port.RequestFilter) ([]domain.ProductionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ProductionRequest
	for _, r := range s.d.requests {
		if f.StoreID != "" && r.StoreID != f.StoreID {
			continue
		}
		if f.ProductionHouseID != "" && r.ProductionHouseID != f.ProductionHouseID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, cloneRequest(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateRequest(ctx context.Context, r domain.ProductionRequest) error {
	defer s.lockWrite()()
	current, ok := s.d.requests[r.ID]
	if !ok {
		return port.ErrNotFound
	}
	if current.Version != r.Version {
		return port.ErrOptimisticLock
	}
	r.Version++
	s.d.requests[r.ID] = cloneRequest(r)
	return nil
}

// --- recalibrations ---

func (s *MemoryStore) SaveRecalibration(ctx context.Context, r domain.Recalibration) error {
	defer s.lockWrite()()
	for id, other := range s.d.recals {
		if other.LocationID == r.LocationID && other.Month == r.Month {
			delete(s.d.recals, id)
		}
	}
	r.Lines = slices.Clone(r.Lines)
	s.d.recals[r.ID] = r
	return nil
}

func (s *MemoryStore) GetRecalibration(ctx context.Context, id string) (*domain.Recalibration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.d.recals[id]
	return ptr(r, ok), nil
}

func (s *MemoryStore) FindRecalibration(ctx context.Context, locationID string, month domain.Month) (*domain.Recalibration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.d.recals {
		if r.LocationID == locationID && r.Month == month {
			return &r, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListRecalibrations(ctx context.Context, locationID string) ([]domain.Recalibration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Recalibration
	for _, r := range s.d.recals {
		if locationID == "" || r.LocationID == locationID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Month.Before(out[i].Month) })
	return out, nil
}

// --- notifications ---

func (s *MemoryStore) CreateNotification(ctx context.Context, n domain.Notification) error {
	defer s.lockWrite()()
	s.d.notifications[n.ID] = n
	return nil
}

func (s *MemoryStore) ListNotifications(ctx context.Context, f port.NotificationFilter) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Notification
	for _, n := range s.d.notifications {
		if f.RecipientID != "" && n.RecipientID != f.RecipientID {
			continue
		}
		if f.UnreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) MarkNotificationRead(ctx context.Context, id, recipientID string) error {
	defer s.lockWrite()()
	n, ok := s.d.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return port.ErrNotFound
	}
	n.Read = true
	s.d.notifications[id] = n
	return nil
}
