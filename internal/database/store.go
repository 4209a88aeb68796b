package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/audit"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/ledger"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the PostgreSQL implementation of ledger.Store.
type Store struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewStore wraps db. A positive lockTimeout limits how long a transaction waits for
// a row lock before giving up with ledger.ErrStaleState.
func NewStore(db *gorm.DB, lockTimeout time.Duration) *Store {
	return &Store{db: db, lockTimeout: lockTimeout}
}

func (s *Store) Repositories() ledger.Repositories {
	return repositories(s.db)
}

func (s *Store) WithinTx(ctx context.Context, fn func(r ledger.Repositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(repositories(tx))
	})
	return translateError(err)
}

func repositories(db *gorm.DB) ledger.Repositories {
	return ledger.Repositories{
		Credits:   creditRepo{db},
		Invoices:  invoiceRepo{db},
		Suppliers: supplierRepo{db},
		History:   historyLog{db},
	}
}

// ---------------------------------------------------------------------
// Suppliers
// ---------------------------------------------------------------------

type supplierRepo struct{ db *gorm.DB }

func (r supplierRepo) Get(ctx context.Context, id uint) (*models.Supplier, error) {
	var s models.Supplier
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &s, nil
}

// ---------------------------------------------------------------------
// Invoices
// ---------------------------------------------------------------------

type invoiceRepo struct{ db *gorm.DB }

func (r invoiceRepo) Get(ctx context.Context, id uint) (*models.SupplierInvoice, error) {
	var inv models.SupplierInvoice
	if err := r.db.WithContext(ctx).First(&inv, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &inv, nil
}

func (r invoiceRepo) GetForUpdate(ctx context.Context, id uint) (*models.SupplierInvoice, error) {
	var inv models.SupplierInvoice
	if err := forUpdate(r.db.WithContext(ctx)).First(&inv, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &inv, nil
}

func (r invoiceRepo) SaveCreditApplied(ctx context.Context, inv *models.SupplierInvoice, prevBalance decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&models.SupplierInvoice{}).
		Where("id = ? AND balance_due = ?", inv.ID, prevBalance).
		Updates(map[string]any{
			"credit_applied": inv.CreditApplied,
			"balance_due":    inv.BalanceDue,
			"status":         inv.Status,
			"updated_at":     time.Now(),
		})
	return guarded(res)
}

// ---------------------------------------------------------------------
// Credits
// ---------------------------------------------------------------------

type creditRepo struct{ db *gorm.DB }

func (r creditRepo) Get(ctx context.Context, id uint) (*models.Credit, error) {
	var c models.Credit
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &c, nil
}

func (r creditRepo) GetForUpdate(ctx context.Context, id uint) (*models.Credit, error) {
	var c models.Credit
	if err := forUpdate(r.db.WithContext(ctx)).First(&c, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &c, nil
}

func (r creditRepo) Create(ctx context.Context, c *models.Credit) error {
	err := r.db.WithContext(ctx).Create(c).Error
	if isUniqueViolation(err) {
		return ledger.ErrDuplicateNumber
	}
	return translateError(err)
}

func (r creditRepo) NumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Credit{}).
		Where("credit_number = ?", number).
		Count(&count).Error
	return count > 0, translateError(err)
}

func (r creditRepo) LastNumber(ctx context.Context, prefix string) (string, error) {
	var numbers []string
	err := lastNumberQuery(r.db.WithContext(ctx), prefix).
		Pluck("credit_number", &numbers).Error
	if err != nil || len(numbers) == 0 {
		return "", translateError(err)
	}
	return numbers[0], nil
}

func (r creditRepo) SaveApplied(ctx context.Context, c *models.Credit, prevApplied decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&models.Credit{}).
		Where("id = ? AND applied_amount = ?", c.ID, prevApplied).
		Updates(map[string]any{
			"applied_amount": c.AppliedAmount,
			"status":         c.Status,
			"updated_at":     time.Now(),
		})
	return guarded(res)
}

func (r creditRepo) AddApplication(ctx context.Context, a *models.CreditApplication) error {
	return translateError(r.db.WithContext(ctx).Create(a).Error)
}

func (r creditRepo) Applications(ctx context.Context, creditID uint) ([]ledger.ApplicationView, error) {
	var rows []ledger.ApplicationView
	err := applicationsQuery(r.db.WithContext(ctx), creditID).Scan(&rows).Error
	return rows, translateError(err)
}

func (r creditRepo) List(ctx context.Context, f ledger.ListFilter) ([]ledger.CreditView, int64, error) {
	db := r.db.WithContext(ctx)

	var total int64
	if err := creditListQuery(db, f).Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var rows []ledger.CreditView
	q := creditListQuery(db, f).
		Select("c.*, s.name AS supplier_name").
		Order("c.credit_date DESC, c.id DESC").
		Offset(f.Offset)
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, 0, translateError(err)
	}
	return rows, total, nil
}

func (r creditRepo) Summary(ctx context.Context, f ledger.SummaryFilter) ([]ledger.SummaryRow, error) {
	var rows []ledger.SummaryRow
	err := summaryQuery(r.db.WithContext(ctx), f).Scan(&rows).Error
	return rows, translateError(err)
}

// ---------------------------------------------------------------------
// History
// ---------------------------------------------------------------------

type historyLog struct{ db *gorm.DB }

func (h historyLog) Write(ctx context.Context, e ledger.HistoryEntry) error {
	return translateError(audit.WriteLog(h.db.WithContext(ctx), audit.LogOptions{
		UserID:          e.UserID,
		UserName:        e.UserName,
		EntityType:      e.ReferenceTable,
		EntityID:        e.ReferenceID,
		TransactionType: e.TransactionType,
		Action:          audit.ActionFor(e.TransactionType),
		OldValue:        e.OldValue,
		NewValue:        e.NewValue,
		Description:     e.Description,
		Before:          e.Before,
		After:           e.After,
		At:              e.At,
	}))
}

// ---------------------------------------------------------------------
// Query builders
// ---------------------------------------------------------------------

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}

// guarded turns an update that matched no row into ledger.ErrStaleState.
func guarded(res *gorm.DB) error {
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ledger.ErrStaleState
	}
	return nil
}

func applicationsQuery(db *gorm.DB, creditID uint) *gorm.DB {
	return db.Table("supplier_credit_applications AS a").
		Select("a.*, i.invoice_number, u.name AS applied_by_name").
		Joins("LEFT JOIN supplier_invoices i ON i.id = a.invoice_id").
		Joins("LEFT JOIN users u ON u.id = a.applied_by").
		Where("a.credit_id = ?", creditID).
		Order("a.applied_at DESC, a.id DESC")
}

func creditListQuery(db *gorm.DB, f ledger.ListFilter) *gorm.DB {
	q := db.Table("supplier_credits AS c").
		Joins("LEFT JOIN suppliers s ON s.id = c.supplier_id")

	if f.SupplierID != nil {
		q = q.Where("c.supplier_id = ?", *f.SupplierID)
	}
	if f.CreditType != "" {
		q = q.Where("c.credit_type = ?", string(f.CreditType))
	}
	switch f.Status {
	case "":
	case models.CreditStatusExpired:
		q = q.Where("c.status <> ? AND c.expiry_date IS NOT NULL AND c.expiry_date < ?",
			string(models.CreditStatusFullyApplied), f.Today)
	case models.CreditStatusAvailable, models.CreditStatusPartiallyApplied:
		// süresi geçmiş krediler "expired" olarak listelenir
		q = q.Where("c.status = ? AND (c.expiry_date IS NULL OR c.expiry_date >= ?)",
			string(f.Status), f.Today)
	default:
		q = q.Where("c.status = ?", string(f.Status))
	}
	if f.DateFrom != nil {
		q = q.Where("c.credit_date >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		q = q.Where("c.credit_date <= ?", *f.DateTo)
	}
	if f.Search != "" {
		like := "%" + escapeLike(f.Search) + "%"
		q = q.Where("(c.credit_number ILIKE ? OR s.name ILIKE ? OR c.reason ILIKE ?)", like, like, like)
	}
	return q
}

// lastNumberQuery picks the highest number of a year. Longer numbers sort first so a
// sequence past 999999 still wins over six-digit ones.
func lastNumberQuery(db *gorm.DB, prefix string) *gorm.DB {
	return db.Model(&models.Credit{}).
		Where("credit_number LIKE ?", likePrefix(prefix)).
		Order("length(credit_number) DESC, credit_number DESC").
		Limit(1)
}

func summaryQuery(db *gorm.DB, f ledger.SummaryFilter) *gorm.DB {
	q := db.Model(&models.Credit{}).
		Select("credit_type, status, COUNT(*) AS count, " +
			"COALESCE(SUM(credit_amount), 0) AS credit_amount, " +
			"COALESCE(SUM(applied_amount), 0) AS applied_amount")
	if f.SupplierID != nil {
		q = q.Where("supplier_id = ?", *f.SupplierID)
	}
	return q.Group("credit_type, status").Order("credit_type, status")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func likePrefix(prefix string) string {
	return escapeLike(prefix) + "%"
}
