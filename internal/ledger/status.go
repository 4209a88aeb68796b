package ledger

import (
	"time"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/models"
	"github.com/shopspring/decimal"
)

// CreditStatusFor derives the persisted status purely from the amounts.
func CreditStatusFor(creditAmount, appliedAmount decimal.Decimal) models.CreditStatus {
	switch {
	case !appliedAmount.IsPositive():
		return models.CreditStatusAvailable
	case appliedAmount.LessThan(creditAmount):
		return models.CreditStatusPartiallyApplied
	default:
		return models.CreditStatusFullyApplied
	}
}

// DisplayStatus overlays the expiry date on the stored status. A fully applied credit
// stays fully applied even after its expiry date.
func DisplayStatus(c models.Credit, today time.Time) models.CreditStatus {
	if c.Status != models.CreditStatusFullyApplied && c.IsExpired(today) {
		return models.CreditStatusExpired
	}
	return c.Status
}

// InvoiceStatusAfterCredit recomputes an invoice status after its balance changed:
// nothing left is paid, something paid off is partial, otherwise unchanged.
func InvoiceStatusAfterCredit(inv models.SupplierInvoice) models.InvoiceStatus {
	switch {
	case !inv.BalanceDue.IsPositive():
		return models.InvoiceStatusPaid
	case inv.BalanceDue.LessThan(inv.TotalAmount):
		return models.InvoiceStatusPartial
	default:
		return inv.Status
	}
}

// dateOf maps the calendar day of t (in t's own location) to UTC midnight.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const dateLayout = "2006-01-02"

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}
