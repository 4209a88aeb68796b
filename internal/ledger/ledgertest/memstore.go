// Package ledgertest provides an in-memory ledger.Store for tests.
//
// Transactions are serialized by one mutex and work on a copy of the data that
// replaces the committed data only when the transaction function returns nil, so a
// failed transaction leaves no trace. Faults can be injected per operation name.
package ledgertest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/ledger"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/models"
	"github.com/shopspring/decimal"
)

// Operation names accepted by Fail.
const (
	OpCreditCreate      = "credits.create"
	OpAddApplication    = "credits.add_application"
	OpSaveApplied       = "credits.save_applied"
	OpSaveInvoiceCredit = "invoices.save_credit_applied"
	OpHistoryWrite      = "history.write"
)

type MemStore struct {
	mu     sync.Mutex
	data   *memData
	faults map[string][]error
	// Now stamps CreatedAt/UpdatedAt; defaults to time.Now.
	Now func() time.Time
}

type memData struct {
	nextID    uint
	suppliers map[uint]models.Supplier
	users     map[uint]models.User
	invoices  map[uint]models.SupplierInvoice
	credits   map[uint]models.Credit
	apps      []models.CreditApplication
	history   []ledger.HistoryEntry
}

func NewMemStore() *MemStore {
	return &MemStore{
		data: &memData{
			suppliers: map[uint]models.Supplier{},
			users:     map[uint]models.User{},
			invoices:  map[uint]models.SupplierInvoice{},
			credits:   map[uint]models.Credit{},
		},
		faults: map[string][]error{},
		Now:    time.Now,
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		nextID:    d.nextID,
		suppliers: make(map[uint]models.Supplier, len(d.suppliers)),
		users:     make(map[uint]models.User, len(d.users)),
		invoices:  make(map[uint]models.SupplierInvoice, len(d.invoices)),
		credits:   make(map[uint]models.Credit, len(d.credits)),
		apps:      append([]models.CreditApplication(nil), d.apps...),
		history:   append([]ledger.HistoryEntry(nil), d.history...),
	}
	for k, v := range d.suppliers {
		c.suppliers[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.invoices {
		c.invoices[k] = v
	}
	for k, v := range d.credits {
		c.credits[k] = v
	}
	return c
}

func (d *memData) newID() uint {
	d.nextID++
	return d.nextID
}

// Fail makes the next call of op return err. Calling it n times queues n failures.
func (s *MemStore) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = append(s.faults[op], err)
}

// fault must be called with mu held.
func (s *MemStore) fault(op string) error {
	q := s.faults[op]
	if len(q) == 0 {
		return nil
	}
	s.faults[op] = q[1:]
	return q[0]
}

func (s *MemStore) Repositories() ledger.Repositories {
	return s.repos(&memTx{store: s})
}

func (s *MemStore) WithinTx(ctx context.Context, fn func(r ledger.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.data.clone()
	if err := fn(s.repos(&memTx{store: s, data: work})); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *MemStore) repos(t *memTx) ledger.Repositories {
	return ledger.Repositories{
		Credits:   memCredits{t},
		Invoices:  memInvoices{t},
		Suppliers: memSuppliers{t},
		History:   memHistory{t},
	}
}

// memTx gives repositories their view of the data: the transaction copy, or the
// committed data under the lock for plain reads.
type memTx struct {
	store *MemStore
	data  *memData
}

func (t *memTx) run(fn func(d *memData) error) error {
	if t.data != nil {
		return fn(t.data)
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return fn(t.store.data)
}

// Seeding and inspection helpers.

func (s *MemStore) AddSupplier(name string, active bool) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.data.newID()
	s.data.suppliers[id] = models.Supplier{ID: id, Name: name, IsActive: active, CreatedAt: s.Now()}
	return id
}

func (s *MemStore) AddUser(name string, role models.UserRole) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.data.newID()
	s.data.users[id] = models.User{ID: id, Name: name, Role: role, IsActive: true, CreatedAt: s.Now()}
	return id
}

// AddInvoice stores an invoice with nothing paid yet and balance_due = total.
func (s *MemStore) AddInvoice(supplierID uint, number string, total decimal.Decimal) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.data.newID()
	s.data.invoices[id] = models.SupplierInvoice{
		ID:            id,
		SupplierID:    supplierID,
		InvoiceNumber: number,
		InvoiceDate:   s.Now(),
		TotalAmount:   total,
		AmountPaid:    decimal.Zero,
		CreditApplied: decimal.Zero,
		BalanceDue:    total,
		Status:        models.InvoiceStatusPending,
		CreatedAt:     s.Now(),
	}
	return id
}

// PutCredit stores c as is, assigning an ID when it has none.
func (s *MemStore) PutCredit(c models.Credit) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.data.newID()
	}
	s.data.credits[c.ID] = c
	return c.ID
}

func (s *MemStore) Credit(id uint) (models.Credit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data.credits[id]
	return c, ok
}

func (s *MemStore) Invoice(id uint) (models.SupplierInvoice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.data.invoices[id]
	return inv, ok
}

func (s *MemStore) ApplicationsOf(creditID uint) []models.CreditApplication {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CreditApplication
	for _, a := range s.data.apps {
		if a.CreditID == creditID {
			out = append(out, a)
		}
	}
	return out
}

func (s *MemStore) History() []ledger.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.HistoryEntry(nil), s.data.history...)
}

// Repositories.

type memSuppliers struct{ t *memTx }

func (r memSuppliers) Get(_ context.Context, id uint) (*models.Supplier, error) {
	var out *models.Supplier
	err := r.t.run(func(d *memData) error {
		s, ok := d.suppliers[id]
		if !ok {
			return ledger.ErrNotFound
		}
		out = &s
		return nil
	})
	return out, err
}

type memInvoices struct{ t *memTx }

func (r memInvoices) Get(_ context.Context, id uint) (*models.SupplierInvoice, error) {
	var out *models.SupplierInvoice
	err := r.t.run(func(d *memData) error {
		inv, ok := d.invoices[id]
		if !ok {
			return ledger.ErrNotFound
		}
		out = &inv
		return nil
	})
	return out, err
}

func (r memInvoices) GetForUpdate(ctx context.Context, id uint) (*models.SupplierInvoice, error) {
	return r.Get(ctx, id)
}

func (r memInvoices) SaveCreditApplied(_ context.Context, inv *models.SupplierInvoice, prevBalance decimal.Decimal) error {
	return r.t.run(func(d *memData) error {
		if err := r.t.store.fault(OpSaveInvoiceCredit); err != nil {
			return err
		}
		cur, ok := d.invoices[inv.ID]
		if !ok || !cur.BalanceDue.Equal(prevBalance) {
			return ledger.ErrStaleState
		}
		cur.CreditApplied = inv.CreditApplied
		cur.BalanceDue = inv.BalanceDue
		cur.Status = inv.Status
		cur.UpdatedAt = r.t.store.Now()
		d.invoices[inv.ID] = cur
		return nil
	})
}

type memCredits struct{ t *memTx }

func (r memCredits) Get(_ context.Context, id uint) (*models.Credit, error) {
	var out *models.Credit
	err := r.t.run(func(d *memData) error {
		c, ok := d.credits[id]
		if !ok {
			return ledger.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r memCredits) GetForUpdate(ctx context.Context, id uint) (*models.Credit, error) {
	return r.Get(ctx, id)
}

func (r memCredits) Create(_ context.Context, c *models.Credit) error {
	return r.t.run(func(d *memData) error {
		if err := r.t.store.fault(OpCreditCreate); err != nil {
			return err
		}
		for _, existing := range d.credits {
			if existing.CreditNumber == c.CreditNumber {
				return ledger.ErrDuplicateNumber
			}
		}
		c.ID = d.newID()
		c.CreatedAt = r.t.store.Now()
		c.UpdatedAt = c.CreatedAt
		d.credits[c.ID] = *c
		return nil
	})
}

func (r memCredits) NumberExists(_ context.Context, number string) (bool, error) {
	exists := false
	err := r.t.run(func(d *memData) error {
		for _, c := range d.credits {
			if c.CreditNumber == number {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func (r memCredits) LastNumber(_ context.Context, prefix string) (string, error) {
	last := ""
	err := r.t.run(func(d *memData) error {
		for _, c := range d.credits {
			if strings.HasPrefix(c.CreditNumber, prefix) && numberAfter(c.CreditNumber, last) {
				last = c.CreditNumber
			}
		}
		return nil
	})
	return last, err
}

func numberAfter(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}

func (r memCredits) SaveApplied(_ context.Context, c *models.Credit, prevApplied decimal.Decimal) error {
	return r.t.run(func(d *memData) error {
		if err := r.t.store.fault(OpSaveApplied); err != nil {
			return err
		}
		cur, ok := d.credits[c.ID]
		if !ok || !cur.AppliedAmount.Equal(prevApplied) {
			return ledger.ErrStaleState
		}
		if c.AppliedAmount.GreaterThan(cur.CreditAmount) {
			return fmt.Errorf("check constraint: applied_amount %s exceeds credit_amount %s", c.AppliedAmount, cur.CreditAmount)
		}
		cur.AppliedAmount = c.AppliedAmount
		cur.Status = c.Status
		cur.UpdatedAt = r.t.store.Now()
		d.credits[c.ID] = cur
		return nil
	})
}

func (r memCredits) AddApplication(_ context.Context, a *models.CreditApplication) error {
	return r.t.run(func(d *memData) error {
		if err := r.t.store.fault(OpAddApplication); err != nil {
			return err
		}
		a.ID = d.newID()
		a.CreatedAt = r.t.store.Now()
		d.apps = append(d.apps, *a)
		return nil
	})
}

func (r memCredits) Applications(_ context.Context, creditID uint) ([]ledger.ApplicationView, error) {
	var out []ledger.ApplicationView
	err := r.t.run(func(d *memData) error {
		for _, a := range d.apps {
			if a.CreditID != creditID {
				continue
			}
			out = append(out, ledger.ApplicationView{
				CreditApplication: a,
				InvoiceNumber:     d.invoices[a.InvoiceID].InvoiceNumber,
				AppliedByName:     d.users[a.AppliedBy].Name,
			})
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].AppliedAt.Equal(out[j].AppliedAt) {
			return out[i].AppliedAt.After(out[j].AppliedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, err
}

func (r memCredits) List(_ context.Context, f ledger.ListFilter) ([]ledger.CreditView, int64, error) {
	var matched []ledger.CreditView
	err := r.t.run(func(d *memData) error {
		search := strings.ToLower(f.Search)
		for _, c := range d.credits {
			supplierName := d.suppliers[c.SupplierID].Name
			if !matches(c, supplierName, f, search) {
				continue
			}
			matched = append(matched, ledger.CreditView{Credit: c, SupplierName: supplierName})
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreditDate.Equal(matched[j].CreditDate) {
			return matched[i].CreditDate.After(matched[j].CreditDate)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	start := min(f.Offset, len(matched))
	end := len(matched)
	if f.Limit > 0 {
		end = min(start+f.Limit, len(matched))
	}
	return matched[start:end], total, nil
}

func matches(c models.Credit, supplierName string, f ledger.ListFilter, search string) bool {
	if f.SupplierID != nil && c.SupplierID != *f.SupplierID {
		return false
	}
	if f.CreditType != "" && c.CreditType != f.CreditType {
		return false
	}
	switch f.Status {
	case "":
	case models.CreditStatusExpired:
		if c.Status == models.CreditStatusFullyApplied || !c.IsExpired(f.Today) {
			return false
		}
	case models.CreditStatusAvailable, models.CreditStatusPartiallyApplied:
		if c.Status != f.Status || c.IsExpired(f.Today) {
			return false
		}
	default:
		if c.Status != f.Status {
			return false
		}
	}
	if f.DateFrom != nil && c.CreditDate.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && c.CreditDate.After(*f.DateTo) {
		return false
	}
	if search != "" &&
		!strings.Contains(strings.ToLower(c.CreditNumber), search) &&
		!strings.Contains(strings.ToLower(supplierName), search) &&
		!strings.Contains(strings.ToLower(c.Reason), search) {
		return false
	}
	return true
}

func (r memCredits) Summary(_ context.Context, f ledger.SummaryFilter) ([]ledger.SummaryRow, error) {
	type key struct {
		t  models.CreditType
		st models.CreditStatus
	}
	acc := map[key]*ledger.SummaryRow{}
	err := r.t.run(func(d *memData) error {
		for _, c := range d.credits {
			if f.SupplierID != nil && c.SupplierID != *f.SupplierID {
				continue
			}
			k := key{c.CreditType, c.Status}
			row, ok := acc[k]
			if !ok {
				row = &ledger.SummaryRow{CreditType: c.CreditType, Status: c.Status, CreditAmount: decimal.Zero, AppliedAmount: decimal.Zero}
				acc[k] = row
			}
			row.Count++
			row.CreditAmount = row.CreditAmount.Add(c.CreditAmount)
			row.AppliedAmount = row.AppliedAmount.Add(c.AppliedAmount)
		}
		return nil
	})
	out := make([]ledger.SummaryRow, 0, len(acc))
	for _, row := range acc {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreditType != out[j].CreditType {
			return out[i].CreditType < out[j].CreditType
		}
		return out[i].Status < out[j].Status
	})
	return out, err
}

type memHistory struct{ t *memTx }

func (r memHistory) Write(_ context.Context, e ledger.HistoryEntry) error {
	return r.t.run(func(d *memData) error {
		if err := r.t.store.fault(OpHistoryWrite); err != nil {
			return err
		}
		d.history = append(d.history, e)
		return nil
	})
}
