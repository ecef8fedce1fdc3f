// Package testutil provides in-memory stand-ins for the Postgres repositories
// and the Redis-backed helpers so use cases can be tested without services.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	invdto "github.com/fekuna/omnipos-billing-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-billing-service/internal/model"
	proddto "github.com/fekuna/omnipos-billing-service/internal/product/dto"
)

// Store keeps every table in memory. All methods are safe for concurrent use.
// Reads return copies so callers cannot mutate stored rows.
type Store struct {
	mu sync.Mutex

	products     map[string]model.Product
	customers    map[string]model.Customer
	movements    []model.StockMovement
	reservations map[string]model.StockReservation
	invoices     map[string]model.Invoice
	items        []model.InvoiceItem
	codes        map[string][]string

	failures map[string]*failure
	hooks    map[string]func(call int) error
	calls    map[string]int
}

type failure struct {
	err       error
	remaining int // <0 means every call
}

func NewStore() *Store {
	return &Store{
		products:     map[string]model.Product{},
		customers:    map[string]model.Customer{},
		reservations: map[string]model.StockReservation{},
		invoices:     map[string]model.Invoice{},
		codes:        map[string][]string{},
		failures:     map[string]*failure{},
		hooks:        map[string]func(call int) error{},
		calls:        map[string]int{},
	}
}

// Fail makes every later call to method return err.
func (s *Store) Fail(method string, err error) {
	s.FailN(method, err, -1)
}

// FailN makes the next n calls to method return err.
func (s *Store) FailN(method string, err error, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = &failure{err: err, remaining: n}
}

// OnCall runs hook on every call to method with the 1-based call number;
// a non-nil result is returned as the method's error.
func (s *Store) OnCall(method string, hook func(call int) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[method] = hook
}

// Heal clears any failure injected for method.
func (s *Store) Heal(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, method)
	delete(s.hooks, method)
}

// Calls reports how many times method was invoked.
func (s *Store) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// enter must be called with mu held.
func (s *Store) enter(method string) error {
	s.calls[method]++
	if hook, ok := s.hooks[method]; ok {
		if err := hook(s.calls[method]); err != nil {
			return err
		}
	}
	f, ok := s.failures[method]
	if !ok {
		return nil
	}
	if f.remaining == 0 {
		delete(s.failures, method)
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
	}
	return f.err
}

// Seeding helpers bypass failure injection.

func (s *Store) PutProduct(p model.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) PutCustomer(c model.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
}

// PutCodes registers existing codes for a table without a backing row type,
// such as suppliers.
func (s *Store) PutCodes(table string, codes ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[table] = append(s.codes[table], codes...)
}

func (s *Store) Product(id string) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id]
}

func (s *Store) Movements(productID string) []model.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.StockMovement
	for _, m := range s.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) Reservations() []model.StockReservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.StockReservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) InvoiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invoices)
}

func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Products and stock ledger.

func (s *Store) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetProduct"); err != nil {
		return nil, err
	}
	p, ok := s.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateProduct"); err != nil {
		return err
	}
	if _, ok := s.products[p.ID]; ok {
		return model.WriteFailure("insert product", errDuplicate, true)
	}
	if p.ProductCode != nil {
		for _, other := range s.products {
			if other.ProductCode != nil && *other.ProductCode == *p.ProductCode {
				return model.WriteFailure("insert product", errDuplicate, true)
			}
		}
	}
	s.products[p.ID] = *p
	return nil
}

func (s *Store) ListProducts(ctx context.Context, f *proddto.ProductFilters) ([]model.Product, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListProducts"); err != nil {
		return nil, 0, err
	}
	var out []model.Product
	q := strings.ToLower(f.SearchQuery)
	for _, p := range s.products {
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) {
			continue
		}
		if f.MaxStock != nil && p.StockQty > *f.MaxStock {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := len(out)
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * f.PageSize
		if start > len(out) {
			start = len(out)
		}
		end := start + f.PageSize
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, total, nil
}

func (s *Store) SumActiveReservations(ctx context.Context, productID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SumActiveReservations"); err != nil {
		return 0, err
	}
	return s.reservedLocked(productID), nil
}

func (s *Store) reservedLocked(productID string) int {
	total := 0
	for _, r := range s.reservations {
		if r.ProductID == productID && r.Status == model.ReservationActive {
			total += r.Qty
		}
	}
	return total
}

func (s *Store) InsertMovement(ctx context.Context, m *model.StockMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InsertMovement"); err != nil {
		return err
	}
	s.movements = append(s.movements, *m)
	return nil
}

func (s *Store) SumMovements(ctx context.Context, productID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SumMovements"); err != nil {
		return 0, err
	}
	total := 0
	for _, m := range s.movements {
		if m.ProductID == productID {
			total += m.Change
		}
	}
	return total, nil
}

func (s *Store) ListMovements(ctx context.Context, f *invdto.MovementFilters) ([]model.StockMovement, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListMovements"); err != nil {
		return nil, 0, err
	}
	var out []model.StockMovement
	for i := len(s.movements) - 1; i >= 0; i-- {
		m := s.movements[i]
		if f.ProductID != "" && m.ProductID != f.ProductID {
			continue
		}
		if f.Reason != "" && m.Reason != f.Reason {
			continue
		}
		if f.ReferenceType != "" && (m.ReferenceType == nil || *m.ReferenceType != f.ReferenceType) {
			continue
		}
		if f.ReferenceID != "" && (m.ReferenceID == nil || *m.ReferenceID != f.ReferenceID) {
			continue
		}
		out = append(out, m)
	}
	total := len(out)
	if f.PageSize > 0 && len(out) > f.PageSize {
		out = out[:f.PageSize]
	}
	return out, total, nil
}

func (s *Store) IncrementStock(ctx context.Context, productID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("IncrementStock"); err != nil {
		return err
	}
	p, ok := s.products[productID]
	if !ok {
		return model.ErrNotFound
	}
	p.StockQty += delta
	s.products[productID] = p
	return nil
}

func (s *Store) DecrementStock(ctx context.Context, productID string, qty int, allowNegative bool) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DecrementStock"); err != nil {
		return 0, 0, err
	}
	p, ok := s.products[productID]
	if !ok {
		return 0, 0, model.ErrNotFound
	}
	before := p.StockQty
	after := before - qty
	if !allowNegative && after < 0 {
		after = 0
	}
	p.StockQty = after
	s.products[productID] = p
	return before, after, nil
}

func (s *Store) RebuildStock(ctx context.Context, productID string) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("RebuildStock"); err != nil {
		return 0, 0, err
	}
	p, ok := s.products[productID]
	if !ok {
		return 0, 0, model.ErrNotFound
	}
	total := 0
	for _, m := range s.movements {
		if m.ProductID == productID {
			total += m.Change
		}
	}
	before := p.StockQty
	p.StockQty = total
	s.products[productID] = p
	return before, total, nil
}

// Reservations.

func (s *Store) CreateReservation(ctx context.Context, r *model.StockReservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateReservation"); err != nil {
		return err
	}
	if _, ok := s.reservations[r.ID]; ok {
		return model.WriteFailure("insert reservation", errDuplicate, true)
	}
	s.reservations[r.ID] = copyReservation(*r)
	return nil
}

func (s *Store) GetReservation(ctx context.Context, id string) (*model.StockReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetReservation"); err != nil {
		return nil, err
	}
	r, ok := s.reservations[id]
	if !ok {
		return nil, nil
	}
	r = copyReservation(r)
	return &r, nil
}

func (s *Store) TransitionReservation(ctx context.Context, id string, from, to model.ReservationStatus, meta model.ReservationMeta, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("TransitionReservation"); err != nil {
		return false, err
	}
	r, ok := s.reservations[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	r.Meta = r.Meta.Merge(meta)
	r.UpdatedAt = at
	s.reservations[id] = r
	return true, nil
}

func (s *Store) ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]model.StockReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListExpiredReservations"); err != nil {
		return nil, err
	}
	var out []model.StockReservation
	for _, r := range s.reservations {
		if r.Status == model.ReservationActive && r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
			out = append(out, copyReservation(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyReservation(r model.StockReservation) model.StockReservation {
	r.Meta = r.Meta.Merge(nil)
	return r
}

// Invoices.

func (s *Store) GetCustomer(ctx context.Context, customerID string) (*model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetCustomer"); err != nil {
		return nil, err
	}
	c, ok := s.customers[customerID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) CreateInvoice(ctx context.Context, inv *model.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateInvoice"); err != nil {
		return err
	}
	for _, other := range s.invoices {
		if other.ID == inv.ID || other.InvoiceNumber == inv.InvoiceNumber {
			return model.WriteFailure("insert invoice", errDuplicate, true)
		}
	}
	s.invoices[inv.ID] = *inv
	return nil
}

func (s *Store) InsertInvoiceItems(ctx context.Context, items []model.InvoiceItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InsertInvoiceItems"); err != nil {
		return err
	}
	s.items = append(s.items, items...)
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetInvoice"); err != nil {
		return nil, err
	}
	inv, ok := s.invoices[invoiceID]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (s *Store) InvoiceExists(ctx context.Context, invoiceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InvoiceExists"); err != nil {
		return false, err
	}
	_, ok := s.invoices[invoiceID]
	return ok, nil
}

func (s *Store) ListInvoiceItems(ctx context.Context, invoiceID string) ([]model.InvoiceItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListInvoiceItems"); err != nil {
		return nil, err
	}
	var out []model.InvoiceItem
	for _, it := range s.items {
		if it.InvoiceID == invoiceID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// Codes.

func (s *Store) ListCodes(ctx context.Context, table, column, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListCodes"); err != nil {
		return nil, err
	}
	var all []string
	switch table {
	case "products":
		for _, p := range s.products {
			if p.ProductCode != nil {
				all = append(all, *p.ProductCode)
			}
		}
	case "customers":
		for _, c := range s.customers {
			if c.CustomerCode != nil {
				all = append(all, *c.CustomerCode)
			}
		}
	case "invoices":
		for _, inv := range s.invoices {
			all = append(all, inv.InvoiceNumber)
		}
	}
	all = append(all, s.codes[table]...)

	var out []string
	for _, c := range all {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out, nil
}

// ConditionalStore adds the atomic check-and-insert capability to Store.
type ConditionalStore struct {
	*Store
}

func (s ConditionalStore) CreateReservationIfAvailable(ctx context.Context, r *model.StockReservation) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateReservationIfAvailable"); err != nil {
		return 0, false, err
	}
	p, ok := s.products[r.ProductID]
	if !ok {
		return 0, false, model.ErrNotFound
	}
	available := p.StockQty - s.reservedLocked(r.ProductID)
	if r.Qty > available {
		return available, false, nil
	}
	s.reservations[r.ID] = copyReservation(*r)
	return available, true, nil
}
