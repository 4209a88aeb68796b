package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/ledger"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/ledger/ledgertest"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type LedgerSuite struct {
	suite.Suite

	ctx      context.Context
	store    *ledgertest.MemStore
	clock    *clock
	ledger   *ledger.Ledger
	actor    ledger.Actor
	supplier uint
	other    uint
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = &clock{t: time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)}
	s.store = ledgertest.NewMemStore()
	s.store.Now = s.clock.Now
	s.ledger = ledger.New(s.store, ledger.WithClock(s.clock.Now), ledger.WithLogger(zerolog.Nop()))

	userID := s.store.AddUser("Ayşe Manager", models.RoleManager)
	s.actor = ledger.Actor{ID: userID, Name: "Ayşe Manager"}
	s.supplier = s.store.AddSupplier("Fresh Farms", true)
	s.other = s.store.AddSupplier("Dairy Co", true)
}

func (s *LedgerSuite) createCredit(amount string) *models.Credit {
	c, err := s.ledger.CreateCredit(s.ctx, ledger.CreateCreditInput{
		SupplierID: s.supplier,
		CreditType: models.CreditTypeReturn,
		CreditDate: "2025-03-01",
		Amount:     dec(amount),
		Reason:     "Damaged crates returned",
		Actor:      s.actor,
	})
	s.Require().NoError(err)
	return c
}

func (s *LedgerSuite) apply(creditID, invoiceID uint, amount string) (*ledger.ApplyResult, error) {
	return s.ledger.ApplyCredit(s.ctx, ledger.ApplyCreditInput{
		CreditID:  creditID,
		InvoiceID: invoiceID,
		Amount:    dec(amount),
		Actor:     s.actor,
	})
}

// requireUnchanged asserts that a credit and an invoice still hold the given amounts.
func (s *LedgerSuite) requireUnchanged(creditID, invoiceID uint, applied, balance string, apps int) {
	c, ok := s.store.Credit(creditID)
	s.Require().True(ok)
	inv, ok := s.store.Invoice(invoiceID)
	s.Require().True(ok)
	s.True(c.AppliedAmount.Equal(dec(applied)), "applied_amount = %s", c.AppliedAmount)
	s.True(inv.BalanceDue.Equal(dec(balance)), "balance_due = %s", inv.BalanceDue)
	s.Len(s.store.ApplicationsOf(creditID), apps)
}

func (s *LedgerSuite) TestCreateCredit() {
	c := s.createCredit("500.00")

	s.Equal("CR-2025-000001", c.CreditNumber)
	s.True(c.CreditAmount.Equal(dec("500")))
	s.True(c.AppliedAmount.IsZero())
	s.Equal(models.CreditStatusAvailable, c.Status)
	s.Equal(s.actor.ID, c.CreatedBy)
	s.Equal(day("2025-03-01"), c.CreditDate)
	s.Nil(c.ExpiryDate)

	hist := s.store.History()
	s.Require().Len(hist, 1)
	s.Equal(models.TxTypeCreditCreated, hist[0].TransactionType)
	s.Equal("supplier_credits", hist[0].ReferenceTable)
	s.Equal(c.ID, hist[0].ReferenceID)
	s.Equal("500.00", hist[0].NewValue)
	s.Equal(s.actor.ID, hist[0].UserID)
}

func (s *LedgerSuite) TestCreateCreditNumbersAreSequential() {
	s.store.PutCredit(models.Credit{CreditNumber: "CR-2025-000041", SupplierID: s.supplier, CreditAmount: dec("1"), AppliedAmount: decimal.Zero})
	s.store.PutCredit(models.Credit{CreditNumber: "CR-2024-000900", SupplierID: s.supplier, CreditAmount: dec("1"), AppliedAmount: decimal.Zero})

	first := s.createCredit("10")
	second := s.createCredit("20")

	s.Equal("CR-2025-000042", first.CreditNumber)
	s.Equal("CR-2025-000043", second.CreditNumber)
}

func (s *LedgerSuite) TestCreateCreditNumbersGrowPastSixDigits() {
	s.store.PutCredit(models.Credit{CreditNumber: "CR-2025-999999", SupplierID: s.supplier, CreditAmount: dec("1"), AppliedAmount: decimal.Zero})

	first := s.createCredit("10")
	s.Equal("CR-2025-1000000", first.CreditNumber)

	second := s.createCredit("20")
	s.Equal("CR-2025-1000001", second.CreditNumber)
}

func (s *LedgerSuite) TestCreateCreditRetriesAfterDuplicateInsert() {
	s.store.Fail(ledgertest.OpCreditCreate, ledger.ErrDuplicateNumber)

	c := s.createCredit("10")

	s.Equal("CR-2025-000001", c.CreditNumber)
	s.Len(s.store.History(), 1)
}

func (s *LedgerSuite) TestCreateCreditGivesUpAfterBoundedAttempts() {
	for range 5 {
		s.store.Fail(ledgertest.OpCreditCreate, ledger.ErrDuplicateNumber)
	}

	_, err := s.ledger.CreateCredit(s.ctx, ledger.CreateCreditInput{
		SupplierID: s.supplier,
		CreditType: models.CreditTypeDiscount,
		CreditDate: "2025-03-01",
		Amount:     dec("10"),
		Reason:     "Volume discount",
		Actor:      s.actor,
	})

	s.Require().Error(err)
	s.ErrorIs(err, ledger.ErrCreditNumberExhausted)
	var oerr *ledger.OperationError
	s.ErrorAs(err, &oerr)
	s.Empty(s.store.History())
}

func (s *LedgerSuite) TestCreateCreditReportsEveryProblem() {
	refInvoice := s.store.AddInvoice(s.other, "INV-OTHER-1", dec("50"))

	_, err := s.ledger.CreateCredit(s.ctx, ledger.CreateCreditInput{
		SupplierID:         s.supplier,
		CreditType:         "gift",
		CreditDate:         "2025-03-01",
		ExpiryDate:         "2025-02-01",
		Amount:             dec("10.005"),
		Reason:             "   ",
		ReferenceInvoiceID: &refInvoice,
	})

	msgs, ok := ledger.IsValidation(err)
	s.Require().True(ok, "expected validation error, got %v", err)
	s.Len(msgs, 6)
	s.Contains(msgs, `credit type "gift" is not one of return, discount, overpayment, adjustment, other`)
	s.Contains(msgs, "amount 10.005 has more than 2 decimal places")
	s.Contains(msgs, "reason is required")
	s.Contains(msgs, "expiry date 2025-02-01 is before the credit date 2025-03-01")
	s.Contains(msgs, "reference invoice INV-OTHER-1 belongs to another supplier")
	s.Contains(msgs, "acting user is required")
	s.Empty(s.store.History())
}

func (s *LedgerSuite) TestCreateCreditRejectsUnknownAndInactiveSuppliers() {
	inactive := s.store.AddSupplier("Closed Bakery", false)

	for name, tc := range map[string]struct {
		supplier uint
		want     string
	}{
		"missing":  {0, "supplier is required"},
		"unknown":  {9999, "supplier #9999 does not exist"},
		"inactive": {inactive, `supplier "Closed Bakery" is inactive`},
	} {
		s.Run(name, func() {
			_, err := s.ledger.CreateCredit(s.ctx, ledger.CreateCreditInput{
				SupplierID: tc.supplier,
				CreditType: models.CreditTypeOther,
				CreditDate: "2025-03-01",
				Amount:     dec("5"),
				Reason:     "x",
				Actor:      s.actor,
			})
			msgs, ok := ledger.IsValidation(err)
			s.Require().True(ok)
			s.Equal([]string{tc.want}, msgs)
		})
	}
}

func (s *LedgerSuite) TestCreateCreditRejectsNonPositiveAmount() {
	for _, amount := range []string{"0", "-10"} {
		_, err := s.ledger.CreateCredit(s.ctx, ledger.CreateCreditInput{
			SupplierID: s.supplier,
			CreditType: models.CreditTypeOther,
			CreditDate: "2025-03-01",
			Amount:     dec(amount),
			Reason:     "x",
			Actor:      s.actor,
		})
		msgs, ok := ledger.IsValidation(err)
		s.Require().True(ok)
		s.Equal([]string{"amount must be greater than zero"}, msgs)
	}
}

// 500 credit: 200 against a 300 invoice, 300 against a 400 invoice, then 1 more is refused.
func (s *LedgerSuite) TestApplyLifecycle() {
	credit := s.createCredit("500.00")
	inv1 := s.store.AddInvoice(s.supplier, "INV-1001", dec("300.00"))
	inv2 := s.store.AddInvoice(s.supplier, "INV-1002", dec("400.00"))
	inv3 := s.store.AddInvoice(s.supplier, "INV-1003", dec("50.00"))

	res, err := s.apply(credit.ID, inv1, "200.00")
	s.Require().NoError(err)
	s.True(res.Credit.AppliedAmount.Equal(dec("200")))
	s.Equal(models.CreditStatusPartiallyApplied, res.Credit.Status)
	s.True(res.Invoice.BalanceDue.Equal(dec("100")))
	s.True(res.Invoice.CreditApplied.Equal(dec("200")))
	s.Equal(models.InvoiceStatusPartial, res.Invoice.Status)
	s.NotZero(res.Application.ID)

	res, err = s.apply(credit.ID, inv2, "300.00")
	s.Require().NoError(err)
	s.True(res.Credit.AppliedAmount.Equal(dec("500")))
	s.True(res.Credit.AvailableAmount().IsZero())
	s.Equal(models.CreditStatusFullyApplied, res.Credit.Status)
	s.True(res.Invoice.BalanceDue.Equal(dec("100")))

	_, err = s.apply(credit.ID, inv3, "1.00")
	msgs, ok := ledger.IsValidation(err)
	s.Require().True(ok)
	s.Contains(msgs, "credit CR-2025-000001 is fully applied")
	s.Contains(msgs, "amount 1.00 exceeds the available credit 0.00")
	s.requireUnchanged(credit.ID, inv3, "500", "50", 2)

	hist := s.store.History()
	s.Require().Len(hist, 3)
	s.Equal(models.TxTypeCreditApplied, hist[1].TransactionType)
	s.Equal("0.00", hist[1].OldValue)
	s.Equal("200.00", hist[1].NewValue)
	s.Equal("200.00", hist[2].OldValue)
	s.Equal("500.00", hist[2].NewValue)
}

func (s *LedgerSuite) TestApplyPaysOffInvoice() {
	credit := s.createCredit("100")
	inv := s.store.AddInvoice(s.supplier, "INV-2001", dec("80"))

	res, err := s.apply(credit.ID, inv, "80")
	s.Require().NoError(err)
	s.True(res.Invoice.BalanceDue.IsZero())
	s.Equal(models.InvoiceStatusPaid, res.Invoice.Status)

	_, err = s.apply(credit.ID, inv, "10")
	msgs, ok := ledger.IsValidation(err)
	s.Require().True(ok)
	s.Equal([]string{"invoice INV-2001 has no balance due"}, msgs)
}

func (s *LedgerSuite) TestApplyRejectsInvalidRequests() {
	credit := s.createCredit("100")
	own := s.store.AddInvoice(s.supplier, "INV-3001", dec("30"))
	foreign := s.store.AddInvoice(s.other, "INV-3002", dec("500"))

	cases := map[string]struct {
		in   ledger.ApplyCreditInput
		want []string
	}{
		"amount above balance due": {
			in:   ledger.ApplyCreditInput{CreditID: credit.ID, InvoiceID: own, Amount: dec("30.01"), Actor: s.actor},
			want: []string{"amount 30.01 exceeds the invoice balance due 30.00"},
		},
		"amount above available": {
			in: ledger.ApplyCreditInput{CreditID: credit.ID, InvoiceID: foreign, Amount: dec("150"), Actor: s.actor},
			want: []string{
				"amount 150.00 exceeds the available credit 100.00",
				"invoice INV-3002 belongs to another supplier than credit CR-2025-000001",
			},
		},
		"zero amount without actor": {
			in:   ledger.ApplyCreditInput{CreditID: credit.ID, InvoiceID: own, Amount: decimal.Zero},
			want: []string{"amount must be greater than zero", "acting user is required"},
		},
		"unknown records": {
			in:   ledger.ApplyCreditInput{CreditID: 777, InvoiceID: 888, Amount: dec("1"), Actor: s.actor},
			want: []string{"credit #777 does not exist", "invoice #888 does not exist"},
		},
	}
	for name, tc := range cases {
		s.Run(name, func() {
			_, err := s.ledger.ApplyCredit(s.ctx, tc.in)
			msgs, ok := ledger.IsValidation(err)
			s.Require().True(ok, "got %v", err)
			s.ElementsMatch(tc.want, msgs)
		})
	}
	s.requireUnchanged(credit.ID, own, "0", "30", 0)
	s.Len(s.store.History(), 1)
}

func (s *LedgerSuite) TestExpiredCreditIsBlocked() {
	expiry := day("2025-03-09")
	id := s.store.PutCredit(models.Credit{
		CreditNumber:  "CR-2025-000100",
		SupplierID:    s.supplier,
		CreditType:    models.CreditTypeDiscount,
		CreditDate:    day("2025-01-15"),
		CreditAmount:  dec("75"),
		AppliedAmount: decimal.Zero,
		Status:        models.CreditStatusAvailable,
		ExpiryDate:    &expiry,
		Reason:        "Promo",
	})
	inv := s.store.AddInvoice(s.supplier, "INV-4001", dec("75"))

	_, err := s.apply(id, inv, "10")
	msgs, ok := ledger.IsValidation(err)
	s.Require().True(ok)
	s.Equal([]string{"credit CR-2025-000100 expired on 2025-03-09"}, msgs)
	s.requireUnchanged(id, inv, "0", "75", 0)

	st, err := s.ledger.GetCreditState(s.ctx, id)
	s.Require().NoError(err)
	s.True(st.IsExpired)
	s.Equal(models.CreditStatusExpired, st.DisplayStatus)
	s.Equal(models.CreditStatusAvailable, st.Credit.Status)
	s.True(st.AvailableAmount.Equal(dec("75")))
}

func (s *LedgerSuite) TestCreditExpiringTodayCanStillBeApplied() {
	c, err := s.ledger.CreateCredit(s.ctx, ledger.CreateCreditInput{
		SupplierID: s.supplier,
		CreditType: models.CreditTypeOverpayment,
		CreditDate: "2025-03-01",
		ExpiryDate: "2025-03-10",
		Amount:     dec("40"),
		Reason:     "Paid twice",
		Actor:      s.actor,
	})
	s.Require().NoError(err)
	inv := s.store.AddInvoice(s.supplier, "INV-4101", dec("40"))

	res, err := s.apply(c.ID, inv, "40")
	s.Require().NoError(err)
	s.Equal(models.CreditStatusFullyApplied, res.Credit.Status)

	s.clock.Advance(48 * time.Hour)
	st, err := s.ledger.GetCreditState(s.ctx, c.ID)
	s.Require().NoError(err)
	s.True(st.IsExpired)
	s.Equal(models.CreditStatusFullyApplied, st.DisplayStatus)
}

func (s *LedgerSuite) TestFailedStepRollsBackEverything() {
	for _, op := range []string{
		ledgertest.OpAddApplication,
		ledgertest.OpSaveApplied,
		ledgertest.OpSaveInvoiceCredit,
		ledgertest.OpHistoryWrite,
	} {
		s.Run(op, func() {
			credit := s.createCredit("100")
			inv := s.store.AddInvoice(s.supplier, "INV-"+op, dec("60"))
			historyBefore := len(s.store.History())
			s.store.Fail(op, errors.New("connection reset by peer"))

			_, err := s.apply(credit.ID, inv, "25")

			var oerr *ledger.OperationError
			s.Require().ErrorAs(err, &oerr)
			s.Equal("apply credit", oerr.Op)
			s.NotErrorIs(err, ledger.ErrStaleState)
			s.requireUnchanged(credit.ID, inv, "0", "60", 0)
			s.Len(s.store.History(), historyBefore)

			c, _ := s.store.Credit(credit.ID)
			s.Equal(models.CreditStatusAvailable, c.Status)
		})
	}
}

func (s *LedgerSuite) TestStaleStateIsReportedDistinctly() {
	credit := s.createCredit("100")
	inv := s.store.AddInvoice(s.supplier, "INV-5001", dec("60"))
	s.store.Fail(ledgertest.OpSaveInvoiceCredit, ledger.ErrStaleState)

	_, err := s.apply(credit.ID, inv, "25")

	s.Require().ErrorIs(err, ledger.ErrStaleState)
	var oerr *ledger.OperationError
	s.False(errors.As(err, &oerr))
	_, isValidation := ledger.IsValidation(err)
	s.False(isValidation)
	s.requireUnchanged(credit.ID, inv, "0", "60", 0)

	// a retry goes through once the conflict is gone
	_, err = s.apply(credit.ID, inv, "25")
	s.Require().NoError(err)
	s.requireUnchanged(credit.ID, inv, "25", "35", 1)
}

func (s *LedgerSuite) TestConcurrentApplicationsCannotOverdraw() {
	credit := s.createCredit("100")
	invoices := []uint{
		s.store.AddInvoice(s.supplier, "INV-6001", dec("100")),
		s.store.AddInvoice(s.supplier, "INV-6002", dec("100")),
	}

	var wg sync.WaitGroup
	errs := make([]error, len(invoices))
	for i, inv := range invoices {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.apply(credit.ID, inv, "60")
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		msgs, ok := ledger.IsValidation(err)
		s.Require().True(ok, "unexpected error %v", err)
		s.Contains(msgs, "amount 60.00 exceeds the available credit 40.00")
	}
	s.Equal(1, succeeded)

	c, _ := s.store.Credit(credit.ID)
	s.True(c.AppliedAmount.Equal(dec("60")))
	s.Len(s.store.ApplicationsOf(credit.ID), 1)
}

// Sum of applications always equals applied_amount, which never exceeds the credit.
func (s *LedgerSuite) TestAppliedAmountMatchesApplications() {
	credit := s.createCredit("250.00")
	var invoices []uint
	for _, n := range []string{"INV-7001", "INV-7002", "INV-7003"} {
		invoices = append(invoices, s.store.AddInvoice(s.supplier, n, dec("100")))
	}

	prev := decimal.Zero
	for i, amount := range []string{"40.50", "99.99", "60.00", "100.00", "49.51"} {
		_, _ = s.apply(credit.ID, invoices[i%len(invoices)], amount)

		c, _ := s.store.Credit(credit.ID)
		sum := decimal.Zero
		for _, a := range s.store.ApplicationsOf(credit.ID) {
			s.True(a.AppliedAmount.IsPositive())
			sum = sum.Add(a.AppliedAmount)
		}
		s.True(sum.Equal(c.AppliedAmount), "sum %s != applied %s", sum, c.AppliedAmount)
		s.False(c.AppliedAmount.GreaterThan(c.CreditAmount))
		s.False(c.AppliedAmount.LessThan(prev), "applied amount decreased")
		s.Equal(ledger.CreditStatusFor(c.CreditAmount, c.AppliedAmount), c.Status)
		prev = c.AppliedAmount
	}

	for _, id := range invoices {
		inv, _ := s.store.Invoice(id)
		s.True(inv.BalanceDue.Equal(inv.TotalAmount.Sub(inv.AmountPaid).Sub(inv.CreditApplied)))
		s.False(inv.BalanceDue.IsNegative())
	}
}

func (s *LedgerSuite) TestGetCreditState() {
	credit := s.createCredit("300")
	inv1 := s.store.AddInvoice(s.supplier, "INV-8001", dec("100"))
	inv2 := s.store.AddInvoice(s.supplier, "INV-8002", dec("100"))

	_, err := s.apply(credit.ID, inv1, "50")
	s.Require().NoError(err)
	s.clock.Advance(time.Hour)
	_, err = s.apply(credit.ID, inv2, "70")
	s.Require().NoError(err)

	st, err := s.ledger.GetCreditState(s.ctx, credit.ID)
	s.Require().NoError(err)
	s.Equal("Fresh Farms", st.SupplierName)
	s.True(st.AvailableAmount.Equal(dec("180")))
	s.False(st.IsExpired)
	s.Equal(models.CreditStatusPartiallyApplied, st.DisplayStatus)
	s.Equal(day("2025-03-10"), st.AsOf)

	s.Require().Len(st.Applications, 2)
	s.Equal("INV-8002", st.Applications[0].InvoiceNumber)
	s.Equal("INV-8001", st.Applications[1].InvoiceNumber)
	s.Equal("Ayşe Manager", st.Applications[0].AppliedByName)
	s.True(st.Applications[0].AppliedAmount.Equal(dec("70")))

	_, err = s.ledger.GetCreditState(s.ctx, 4242)
	s.ErrorIs(err, ledger.ErrNotFound)
}

func (s *LedgerSuite) TestListCredits() {
	a := s.createCredit("100")
	_, err := s.ledger.CreateCredit(s.ctx, ledger.CreateCreditInput{
		SupplierID: s.other,
		CreditType: models.CreditTypeDiscount,
		CreditDate: "2025-02-10",
		ExpiryDate: "2025-03-01",
		Amount:     dec("20"),
		Reason:     "Early payment discount",
		Actor:      s.actor,
	})
	s.Require().NoError(err)
	_, err = s.ledger.CreateCredit(s.ctx, ledger.CreateCreditInput{
		SupplierID: s.supplier,
		CreditType: models.CreditTypeAdjustment,
		CreditDate: "2025-03-05",
		Amount:     dec("15"),
		Reason:     "Price correction",
		Actor:      s.actor,
	})
	s.Require().NoError(err)
	inv := s.store.AddInvoice(s.supplier, "INV-9001", dec("100"))
	_, err = s.apply(a.ID, inv, "100")
	s.Require().NoError(err)

	numbers := func(p *ledger.CreditPage) []string {
		var out []string
		for _, it := range p.Items {
			out = append(out, it.CreditNumber)
		}
		return out
	}

	all, err := s.ledger.ListCredits(s.ctx, ledger.ListQuery{})
	s.Require().NoError(err)
	s.EqualValues(3, all.Total)
	s.Equal([]string{"CR-2025-000003", "CR-2025-000001", "CR-2025-000002"}, numbers(all))
	s.Equal("Dairy Co", all.Items[2].SupplierName)
	s.True(all.Items[2].IsExpired)
	s.Equal(models.CreditStatusExpired, all.Items[2].DisplayStatus)
	s.True(all.Items[1].AvailableAmount.IsZero())

	expired, err := s.ledger.ListCredits(s.ctx, ledger.ListQuery{Status: "expired"})
	s.Require().NoError(err)
	s.Equal([]string{"CR-2025-000002"}, numbers(expired))

	fully, err := s.ledger.ListCredits(s.ctx, ledger.ListQuery{Status: "fully_applied"})
	s.Require().NoError(err)
	s.Equal([]string{"CR-2025-000001"}, numbers(fully))

	// the expired discount is still stored as available but is not listed as such
	available, err := s.ledger.ListCredits(s.ctx, ledger.ListQuery{Status: "available"})
	s.Require().NoError(err)
	s.Equal([]string{"CR-2025-000003"}, numbers(available))
	for _, it := range available.Items {
		s.Equal(models.CreditStatusAvailable, it.DisplayStatus)
	}

	bySupplier, err := s.ledger.ListCredits(s.ctx, ledger.ListQuery{SupplierID: &s.supplier, CreditType: "adjustment"})
	s.Require().NoError(err)
	s.Equal([]string{"CR-2025-000003"}, numbers(bySupplier))

	searched, err := s.ledger.ListCredits(s.ctx, ledger.ListQuery{Search: "dairy"})
	s.Require().NoError(err)
	s.Equal([]string{"CR-2025-000002"}, numbers(searched))

	ranged, err := s.ledger.ListCredits(s.ctx, ledger.ListQuery{DateFrom: "2025-03-01", DateTo: "2025-03-04"})
	s.Require().NoError(err)
	s.Equal([]string{"CR-2025-000001"}, numbers(ranged))

	page2, err := s.ledger.ListCredits(s.ctx, ledger.ListQuery{Page: 2, PageSize: 2})
	s.Require().NoError(err)
	s.Equal(2, page2.TotalPages)
	s.Equal([]string{"CR-2025-000002"}, numbers(page2))

	everything, err := s.ledger.AllCredits(s.ctx, ledger.ListQuery{SupplierID: &s.supplier, Page: 5, PageSize: 1})
	s.Require().NoError(err)
	s.Len(everything, 2)

	_, err = s.ledger.ListCredits(s.ctx, ledger.ListQuery{Status: "void", DateFrom: "yesterday"})
	msgs, ok := ledger.IsValidation(err)
	s.Require().True(ok)
	s.Len(msgs, 2)
}

func (s *LedgerSuite) TestSummary() {
	a := s.createCredit("100")
	s.createCredit("50")
	inv := s.store.AddInvoice(s.supplier, "INV-9101", dec("500"))
	_, err := s.apply(a.ID, inv, "30")
	s.Require().NoError(err)
	_, err = s.ledger.CreateCredit(s.ctx, ledger.CreateCreditInput{
		SupplierID: s.other,
		CreditType: models.CreditTypeDiscount,
		CreditDate: "2025-03-02",
		Amount:     dec("5"),
		Reason:     "Rounding",
		Actor:      s.actor,
	})
	s.Require().NoError(err)

	sum, err := s.ledger.Summary(s.ctx, ledger.SummaryQuery{})
	s.Require().NoError(err)
	s.EqualValues(3, sum.Count)
	s.True(sum.CreditAmount.Equal(dec("155")))
	s.True(sum.AppliedAmount.Equal(dec("30")))
	s.True(sum.AvailableTotal.Equal(dec("125")))
	s.Len(sum.Lines, 3)

	own, err := s.ledger.Summary(s.ctx, ledger.SummaryQuery{SupplierID: &s.supplier})
	s.Require().NoError(err)
	s.EqualValues(2, own.Count)
	s.True(own.AvailableTotal.Equal(dec("120")))
}

type recordingCache struct {
	states      map[uint]*ledger.CreditState
	invalidated []uint
}

func (c *recordingCache) Get(_ context.Context, id uint) (*ledger.CreditState, bool) {
	st, ok := c.states[id]
	return st, ok
}

func (c *recordingCache) Set(_ context.Context, st *ledger.CreditState) {
	c.states[st.Credit.ID] = st
}

func (c *recordingCache) Invalidate(_ context.Context, id uint) {
	delete(c.states, id)
	c.invalidated = append(c.invalidated, id)
}

func TestStateCacheIsInvalidatedByApply(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	store := ledgertest.NewMemStore()
	cache := &recordingCache{states: map[uint]*ledger.CreditState{}}
	l := ledger.New(store,
		ledger.WithClock(func() time.Time { return now }),
		ledger.WithLogger(zerolog.Nop()),
		ledger.WithStateCache(cache),
	)
	user := store.AddUser("Can", models.RoleAdmin)
	supplier := store.AddSupplier("Olive House", true)
	inv := store.AddInvoice(supplier, "INV-1", dec("100"))

	c, err := l.CreateCredit(ctx, ledger.CreateCreditInput{
		SupplierID: supplier, CreditType: models.CreditTypeReturn, CreditDate: "2025-05-30",
		Amount: dec("80"), Reason: "Spoiled olives", Actor: ledger.Actor{ID: user, Name: "Can"},
	})
	require.NoError(t, err)

	st, err := l.GetCreditState(ctx, c.ID)
	require.NoError(t, err)
	assert.Same(t, st, cache.states[c.ID])

	again, err := l.GetCreditState(ctx, c.ID)
	require.NoError(t, err)
	assert.Same(t, st, again)

	_, err = l.ApplyCredit(ctx, ledger.ApplyCreditInput{CreditID: c.ID, InvoiceID: inv, Amount: dec("30"), Actor: ledger.Actor{ID: user, Name: "Can"}})
	require.NoError(t, err)
	assert.Equal(t, []uint{c.ID}, cache.invalidated)

	fresh, err := l.GetCreditState(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, fresh.AvailableAmount.Equal(dec("50")))

	// an entry computed for another day is ignored
	cache.states[c.ID].AsOf = now.AddDate(0, 0, -1)
	cache.states[c.ID].AvailableAmount = dec("999")
	recomputed, err := l.GetCreditState(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, recomputed.AvailableAmount.Equal(dec("50")))
}

// hookedStore runs beforeApplications once, in the middle of a plain read of a
// credit's applications, and can make supplier lookups fail.
type hookedStore struct {
	*ledgertest.MemStore
	beforeApplications func()
	supplierErr        error
}

func (s *hookedStore) Repositories() ledger.Repositories {
	r := s.MemStore.Repositories()
	r.Credits = hookedCredits{CreditRepository: r.Credits, store: s}
	r.Suppliers = hookedSuppliers{SupplierDirectory: r.Suppliers, store: s}
	return r
}

type hookedCredits struct {
	ledger.CreditRepository
	store *hookedStore
}

func (c hookedCredits) Applications(ctx context.Context, creditID uint) ([]ledger.ApplicationView, error) {
	if hook := c.store.beforeApplications; hook != nil {
		c.store.beforeApplications = nil
		hook()
	}
	return c.CreditRepository.Applications(ctx, creditID)
}

type hookedSuppliers struct {
	ledger.SupplierDirectory
	store *hookedStore
}

func (s hookedSuppliers) Get(ctx context.Context, id uint) (*models.Supplier, error) {
	if s.store.supplierErr != nil {
		return nil, s.store.supplierErr
	}
	return s.SupplierDirectory.Get(ctx, id)
}

func TestStateCacheRejectsEntryWrittenBackAfterApply(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	mem := ledgertest.NewMemStore()
	mem.Now = clk.Now
	store := &hookedStore{MemStore: mem}
	cache := &recordingCache{states: map[uint]*ledger.CreditState{}}
	l := ledger.New(store,
		ledger.WithClock(clk.Now),
		ledger.WithLogger(zerolog.Nop()),
		ledger.WithStateCache(cache),
	)
	actor := ledger.Actor{ID: mem.AddUser("Can", models.RoleAdmin), Name: "Can"}
	supplier := mem.AddSupplier("Olive House", true)
	inv := mem.AddInvoice(supplier, "INV-1", dec("100"))

	c, err := l.CreateCredit(ctx, ledger.CreateCreditInput{
		SupplierID: supplier, CreditType: models.CreditTypeReturn, CreditDate: "2025-05-30",
		Amount: dec("80"), Reason: "Spoiled olives", Actor: actor,
	})
	require.NoError(t, err)

	// the apply commits after the reader loaded the credit and before it caches
	store.beforeApplications = func() {
		clk.Advance(time.Minute)
		_, err := l.ApplyCredit(ctx, ledger.ApplyCreditInput{CreditID: c.ID, InvoiceID: inv, Amount: dec("30"), Actor: actor})
		require.NoError(t, err)
	}
	_, err = l.GetCreditState(ctx, c.ID)
	require.NoError(t, err)
	require.Contains(t, cache.states, c.ID, "the outdated state was cached")

	st, err := l.GetCreditState(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, st.Credit.AppliedAmount.Equal(dec("30")))
	assert.True(t, st.AvailableAmount.Equal(dec("50")))
	assert.Equal(t, models.CreditStatusPartiallyApplied, st.DisplayStatus)
	assert.Len(t, st.Applications, 1)
	assert.Same(t, st, cache.states[c.ID])
}

func TestGetCreditStateSupplierLookup(t *testing.T) {
	ctx := context.Background()
	mem := ledgertest.NewMemStore()
	store := &hookedStore{MemStore: mem}
	l := ledger.New(store, ledger.WithLogger(zerolog.Nop()))

	id := mem.PutCredit(models.Credit{
		CreditNumber: "CR-2025-000001", SupplierID: 4242, CreditType: models.CreditTypeOther,
		CreditAmount: dec("10"), AppliedAmount: decimal.Zero, Status: models.CreditStatusAvailable,
		Reason: "Orphaned",
	})

	st, err := l.GetCreditState(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, st.SupplierName)

	outage := errors.New("connection reset by peer")
	store.supplierErr = outage
	_, err = l.GetCreditState(ctx, id)
	require.Error(t, err)
	assert.ErrorIs(t, err, outage)
	var oerr *ledger.OperationError
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, "get credit state", oerr.Op)

	_, err = l.GetCreditState(ctx, id+1000)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
