package ledger

import (
	"testing"
	"time"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCreditStatusFor(t *testing.T) {
	d := decimal.RequireFromString
	tests := []struct {
		credit, applied string
		want            models.CreditStatus
	}{
		{"100", "0", models.CreditStatusAvailable},
		{"100", "0.01", models.CreditStatusPartiallyApplied},
		{"100", "99.99", models.CreditStatusPartiallyApplied},
		{"100", "100", models.CreditStatusFullyApplied},
		{"100.00", "100", models.CreditStatusFullyApplied},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CreditStatusFor(d(tt.credit), d(tt.applied)), "%s/%s", tt.credit, tt.applied)
	}
}

func TestDisplayStatus(t *testing.T) {
	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	c := models.Credit{Status: models.CreditStatusPartiallyApplied}
	assert.Equal(t, models.CreditStatusPartiallyApplied, DisplayStatus(c, today))

	c.ExpiryDate = &today
	assert.Equal(t, models.CreditStatusPartiallyApplied, DisplayStatus(c, today))

	c.ExpiryDate = &yesterday
	assert.Equal(t, models.CreditStatusExpired, DisplayStatus(c, today))

	c.Status = models.CreditStatusFullyApplied
	assert.Equal(t, models.CreditStatusFullyApplied, DisplayStatus(c, today))
}

func TestInvoiceStatusAfterCredit(t *testing.T) {
	d := decimal.RequireFromString
	inv := models.SupplierInvoice{TotalAmount: d("300"), BalanceDue: d("300"), Status: models.InvoiceStatusOverdue}
	assert.Equal(t, models.InvoiceStatusOverdue, InvoiceStatusAfterCredit(inv))

	inv.BalanceDue = d("100")
	assert.Equal(t, models.InvoiceStatusPartial, InvoiceStatusAfterCredit(inv))

	inv.BalanceDue = decimal.Zero
	assert.Equal(t, models.InvoiceStatusPaid, InvoiceStatusAfterCredit(inv))
}

func TestDateOfKeepsLocalCalendarDay(t *testing.T) {
	ist := time.FixedZone("TRT", 3*60*60)
	late := time.Date(2025, 3, 10, 23, 30, 0, 0, ist)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), dateOf(late))
}

func TestCreditNumbers(t *testing.T) {
	prefix := creditNumberPrefixFor(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "CR-2025-", prefix)
	assert.Equal(t, "CR-2025-000007", formatCreditNumber(prefix, 7))
	assert.Equal(t, "CR-2025-1234567", formatCreditNumber(prefix, 1234567))

	assert.EqualValues(t, 41, sequenceOf(prefix, "CR-2025-000041"))
	assert.EqualValues(t, 0, sequenceOf(prefix, "CR-2024-000041"))
	assert.EqualValues(t, 0, sequenceOf(prefix, "CR-2025-abc"))
	assert.EqualValues(t, 0, sequenceOf(prefix, ""))
}

func TestNormalizePage(t *testing.T) {
	page, size := normalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultPageSize, size)

	page, size = normalizePage(3, 500)
	assert.Equal(t, 3, page)
	assert.Equal(t, MaxPageSize, size)
}
