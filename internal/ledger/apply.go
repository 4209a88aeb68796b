package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/models"
	"github.com/shopspring/decimal"
)

type ApplyCreditInput struct {
	CreditID  uint
	InvoiceID uint
	Amount    decimal.Decimal
	Note      string
	Actor     Actor
}

type ApplyResult struct {
	Credit      models.Credit
	Invoice     models.SupplierInvoice
	Application models.CreditApplication
}

// ApplyCredit offsets part of an invoice's balance with a credit. The credit and the
// invoice are locked, in that order, and every precondition is checked against the
// locked rows. The application insert, both updates and the history entry commit
// together or not at all.
func (l *Ledger) ApplyCredit(ctx context.Context, in ApplyCreditInput) (*ApplyResult, error) {
	var res ApplyResult
	now := l.now()
	today := dateOf(now)

	err := l.store.WithinTx(ctx, func(r Repositories) error {
		var p problems
		checkAmount(&p, in.Amount)
		if in.Actor.ID == 0 {
			p.add("acting user is required")
		}

		credit, err := r.Credits.GetForUpdate(ctx, in.CreditID)
		if errors.Is(err, ErrNotFound) {
			p.add("credit #%d does not exist", in.CreditID)
			credit = nil
		} else if err != nil {
			return fmt.Errorf("lock credit: %w", err)
		}

		invoice, err := r.Invoices.GetForUpdate(ctx, in.InvoiceID)
		if errors.Is(err, ErrNotFound) {
			p.add("invoice #%d does not exist", in.InvoiceID)
			invoice = nil
		} else if err != nil {
			return fmt.Errorf("lock invoice: %w", err)
		}

		if credit != nil {
			available := credit.AvailableAmount()
			switch {
			case credit.Status == models.CreditStatusFullyApplied || !available.IsPositive():
				p.add("credit %s is fully applied", credit.CreditNumber)
			case credit.IsExpired(today):
				p.add("credit %s expired on %s", credit.CreditNumber, credit.ExpiryDate.Format(dateLayout))
			}
			if in.Amount.IsPositive() && in.Amount.GreaterThan(available) {
				p.add("amount %s exceeds the available credit %s", in.Amount.StringFixed(2), available.StringFixed(2))
			}
		}

		if invoice != nil {
			if credit != nil && invoice.SupplierID != credit.SupplierID {
				p.add("invoice %s belongs to another supplier than credit %s", invoice.InvoiceNumber, credit.CreditNumber)
			}
			if !invoice.BalanceDue.IsPositive() {
				p.add("invoice %s has no balance due", invoice.InvoiceNumber)
			} else if in.Amount.IsPositive() && in.Amount.GreaterThan(invoice.BalanceDue) {
				p.add("amount %s exceeds the invoice balance due %s", in.Amount.StringFixed(2), invoice.BalanceDue.StringFixed(2))
			}
		}

		if err := p.err(); err != nil {
			return err
		}

		app := models.CreditApplication{
			CreditID:      credit.ID,
			InvoiceID:     invoice.ID,
			AppliedAmount: in.Amount,
			AppliedAt:     now,
			AppliedBy:     in.Actor.ID,
			Notes:         strings.TrimSpace(in.Note),
		}
		if err := r.Credits.AddApplication(ctx, &app); err != nil {
			return fmt.Errorf("insert application: %w", err)
		}

		prevApplied := credit.AppliedAmount
		credit.AppliedAmount = prevApplied.Add(in.Amount)
		credit.Status = CreditStatusFor(credit.CreditAmount, credit.AppliedAmount)
		if err := r.Credits.SaveApplied(ctx, credit, prevApplied); err != nil {
			return fmt.Errorf("update credit: %w", err)
		}

		prevBalance := invoice.BalanceDue
		invoice.CreditApplied = invoice.CreditApplied.Add(in.Amount)
		invoice.BalanceDue = prevBalance.Sub(in.Amount)
		invoice.Status = InvoiceStatusAfterCredit(*invoice)
		if err := r.Invoices.SaveCreditApplied(ctx, invoice, prevBalance); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}

		if err := r.History.Write(ctx, HistoryEntry{
			TransactionType: models.TxTypeCreditApplied,
			ReferenceTable:  credit.TableName(),
			ReferenceID:     credit.ID,
			OldValue:        prevApplied.StringFixed(2),
			NewValue:        credit.AppliedAmount.StringFixed(2),
			Description: fmt.Sprintf("Applied %s of credit %s to invoice %s",
				in.Amount.StringFixed(2), credit.CreditNumber, invoice.InvoiceNumber),
			UserID:   in.Actor.ID,
			UserName: in.Actor.Name,
			Before: map[string]any{
				"applied_amount":      prevApplied.StringFixed(2),
				"invoice_balance_due": prevBalance.StringFixed(2),
			},
			After: map[string]any{
				"applied_amount":      credit.AppliedAmount.StringFixed(2),
				"status":              string(credit.Status),
				"invoice_id":          invoice.ID,
				"invoice_balance_due": invoice.BalanceDue.StringFixed(2),
				"invoice_status":      string(invoice.Status),
				"application_id":      app.ID,
			},
			At: now,
		}); err != nil {
			return fmt.Errorf("write history: %w", err)
		}

		res = ApplyResult{Credit: *credit, Invoice: *invoice, Application: app}
		return nil
	})
	if err != nil {
		if _, ok := IsValidation(err); !ok {
			l.log.Error().Err(err).
				Uint("credit_id", in.CreditID).
				Uint("invoice_id", in.InvoiceID).
				Str("amount", in.Amount.String()).
				Msg("apply credit failed, transaction rolled back")
		}
		return nil, wrapOp("apply credit", err)
	}

	if l.cache != nil {
		l.cache.Invalidate(ctx, res.Credit.ID)
	}
	l.log.Info().
		Uint("credit_id", res.Credit.ID).
		Uint("invoice_id", res.Invoice.ID).
		Str("amount", in.Amount.StringFixed(2)).
		Str("status", string(res.Credit.Status)).
		Uint("user_id", in.Actor.ID).
		Msg("credit applied")
	return &res, nil
}
