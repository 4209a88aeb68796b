package ledger

import (
	"context"
	"time"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/models"
	"github.com/shopspring/decimal"
)

// Store hands out repositories. Repositories() is for plain reads; WithinTx runs fn
// in one transaction and commits only when fn returns nil.
type Store interface {
	Repositories() Repositories
	WithinTx(ctx context.Context, fn func(r Repositories) error) error
}

type Repositories struct {
	Credits   CreditRepository
	Invoices  InvoiceRepository
	Suppliers SupplierDirectory
	History   HistoryLog
}

type SupplierDirectory interface {
	Get(ctx context.Context, id uint) (*models.Supplier, error)
}

type InvoiceRepository interface {
	Get(ctx context.Context, id uint) (*models.SupplierInvoice, error)
	// GetForUpdate locks the invoice row until the transaction ends.
	GetForUpdate(ctx context.Context, id uint) (*models.SupplierInvoice, error)
	// SaveCreditApplied writes credit_applied, balance_due and status, provided the
	// stored balance_due still equals prevBalance. Otherwise ErrStaleState.
	SaveCreditApplied(ctx context.Context, inv *models.SupplierInvoice, prevBalance decimal.Decimal) error
}

type CreditRepository interface {
	Get(ctx context.Context, id uint) (*models.Credit, error)
	// GetForUpdate locks the credit row until the transaction ends.
	GetForUpdate(ctx context.Context, id uint) (*models.Credit, error)
	Create(ctx context.Context, c *models.Credit) error
	NumberExists(ctx context.Context, number string) (bool, error)
	// LastNumber returns the highest credit number starting with prefix, or "".
	LastNumber(ctx context.Context, prefix string) (string, error)
	// SaveApplied writes applied_amount and status, provided the stored
	// applied_amount still equals prevApplied. Otherwise ErrStaleState.
	SaveApplied(ctx context.Context, c *models.Credit, prevApplied decimal.Decimal) error
	AddApplication(ctx context.Context, a *models.CreditApplication) error
	// Applications returns the applications of a credit, newest first.
	Applications(ctx context.Context, creditID uint) ([]ApplicationView, error)
	List(ctx context.Context, f ListFilter) ([]CreditView, int64, error)
	Summary(ctx context.Context, f SummaryFilter) ([]SummaryRow, error)
}

type HistoryLog interface {
	Write(ctx context.Context, e HistoryEntry) error
}

// HistoryEntry is one row of the generic transaction log.
type HistoryEntry struct {
	TransactionType string
	ReferenceTable  string
	ReferenceID     uint
	OldValue        string
	NewValue        string
	Description     string
	UserID          uint
	UserName        string
	Before          any
	After           any
	At              time.Time
}

type CreditView struct {
	models.Credit
	SupplierName string
}

type ApplicationView struct {
	models.CreditApplication
	InvoiceNumber string
	AppliedByName string
}

type ListFilter struct {
	SupplierID *uint
	CreditType models.CreditType
	// Status is one of the stored statuses or "expired", which matches credits past
	// their expiry date that are not fully applied.
	Status   models.CreditStatus
	DateFrom *time.Time
	DateTo   *time.Time
	Search   string
	Today    time.Time
	Offset   int
	Limit    int
}

type SummaryFilter struct {
	SupplierID *uint
}

type SummaryRow struct {
	CreditType    models.CreditType
	Status        models.CreditStatus
	Count         int64
	CreditAmount  decimal.Decimal
	AppliedAmount decimal.Decimal
}
