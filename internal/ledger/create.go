package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/models"
	"github.com/shopspring/decimal"
)

type CreateCreditInput struct {
	SupplierID uint
	CreditType models.CreditType
	// CreditDate and ExpiryDate are calendar dates, YYYY-MM-DD. ExpiryDate is optional.
	CreditDate         string
	ExpiryDate         string
	Amount             decimal.Decimal
	Reason             string
	ReferenceInvoiceID *uint
	ReturnReference    string
	Actor              Actor
}

// CreateCredit records a new supplier credit with nothing applied yet.
func (l *Ledger) CreateCredit(ctx context.Context, in CreateCreditInput) (*models.Credit, error) {
	credit, err := l.validateNewCredit(ctx, in)
	if err != nil {
		return nil, wrapOp("create credit", err)
	}

	prefix := creditNumberPrefixFor(l.now())
	attempts := 0
	for attempts < maxNumberAttempts {
		candidate := *credit
		err := l.store.WithinTx(ctx, func(r Repositories) error {
			last, err := r.Credits.LastNumber(ctx, prefix)
			if err != nil {
				return err
			}
			seq := sequenceOf(prefix, last)
			for attempts < maxNumberAttempts {
				attempts++
				seq++
				number := formatCreditNumber(prefix, seq)
				exists, err := r.Credits.NumberExists(ctx, number)
				if err != nil {
					return err
				}
				if exists {
					l.log.Debug().Str("credit_number", number).Msg("credit number taken, trying next")
					continue
				}
				candidate.CreditNumber = number
				if err := r.Credits.Create(ctx, &candidate); err != nil {
					return err
				}
				return r.History.Write(ctx, HistoryEntry{
					TransactionType: models.TxTypeCreditCreated,
					ReferenceTable:  candidate.TableName(),
					ReferenceID:     candidate.ID,
					OldValue:        "0",
					NewValue:        candidate.CreditAmount.StringFixed(2),
					Description: fmt.Sprintf("Credit %s created for supplier #%d: %s (%s)",
						candidate.CreditNumber, candidate.SupplierID, candidate.CreditAmount.StringFixed(2), candidate.CreditType),
					UserID:   in.Actor.ID,
					UserName: in.Actor.Name,
					After:    creditSnapshot(candidate),
					At:       l.now(),
				})
			}
			return ErrCreditNumberExhausted
		})
		if errors.Is(err, ErrDuplicateNumber) {
			l.log.Warn().Str("prefix", prefix).Int("attempts", attempts).Msg("credit number collided on insert, retrying")
			continue
		}
		if err != nil {
			l.log.Error().Err(err).Uint("supplier_id", in.SupplierID).Msg("create credit failed")
			return nil, wrapOp("create credit", err)
		}

		l.log.Info().
			Uint("credit_id", candidate.ID).
			Str("credit_number", candidate.CreditNumber).
			Str("amount", candidate.CreditAmount.StringFixed(2)).
			Uint("user_id", in.Actor.ID).
			Msg("credit created")
		return &candidate, nil
	}

	l.log.Error().Str("prefix", prefix).Int("attempts", attempts).Msg("credit number allocation exhausted")
	return nil, &OperationError{Op: "create credit", Err: ErrCreditNumberExhausted}
}

// validateNewCredit checks every input rule and returns the credit to insert, or a
// *ValidationError listing all problems found.
func (l *Ledger) validateNewCredit(ctx context.Context, in CreateCreditInput) (*models.Credit, error) {
	var p problems
	repos := l.store.Repositories()

	if in.SupplierID == 0 {
		p.add("supplier is required")
	} else {
		supplier, err := repos.Suppliers.Get(ctx, in.SupplierID)
		switch {
		case errors.Is(err, ErrNotFound):
			p.add("supplier #%d does not exist", in.SupplierID)
		case err != nil:
			return nil, err
		case !supplier.IsActive:
			p.add("supplier %q is inactive", supplier.Name)
		}
	}

	if !in.CreditType.Valid() {
		p.add("credit type %q is not one of return, discount, overpayment, adjustment, other", in.CreditType)
	}

	checkAmount(&p, in.Amount)

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		p.add("reason is required")
	}

	creditDate, err := parseDate(strings.TrimSpace(in.CreditDate))
	if err != nil {
		p.add("credit date %q is not a valid date (YYYY-MM-DD)", in.CreditDate)
	}

	credit := &models.Credit{
		SupplierID:      in.SupplierID,
		CreditType:      in.CreditType,
		CreditDate:      creditDate,
		CreditAmount:    in.Amount,
		AppliedAmount:   decimal.Zero,
		Status:          models.CreditStatusAvailable,
		Reason:          reason,
		ReturnReference: strings.TrimSpace(in.ReturnReference),
		CreatedBy:       in.Actor.ID,
	}

	if s := strings.TrimSpace(in.ExpiryDate); s != "" {
		expiry, err := parseDate(s)
		switch {
		case err != nil:
			p.add("expiry date %q is not a valid date (YYYY-MM-DD)", in.ExpiryDate)
		case !creditDate.IsZero() && expiry.Before(creditDate):
			p.add("expiry date %s is before the credit date %s", s, creditDate.Format(dateLayout))
		default:
			credit.ExpiryDate = &expiry
		}
	}

	if in.ReferenceInvoiceID != nil {
		inv, err := repos.Invoices.Get(ctx, *in.ReferenceInvoiceID)
		switch {
		case errors.Is(err, ErrNotFound):
			p.add("reference invoice #%d does not exist", *in.ReferenceInvoiceID)
		case err != nil:
			return nil, err
		case inv.SupplierID != in.SupplierID:
			p.add("reference invoice %s belongs to another supplier", inv.InvoiceNumber)
		default:
			id := inv.ID
			credit.ReferenceInvoiceID = &id
		}
	}

	if in.Actor.ID == 0 {
		p.add("acting user is required")
	}

	if err := p.err(); err != nil {
		return nil, err
	}
	return credit, nil
}

func checkAmount(p *problems, amount decimal.Decimal) {
	if !amount.IsPositive() {
		p.add("amount must be greater than zero")
		return
	}
	if !amount.Equal(amount.Round(2)) {
		p.add("amount %s has more than 2 decimal places", amount.String())
	}
}

func creditSnapshot(c models.Credit) map[string]any {
	snap := map[string]any{
		"id":             c.ID,
		"credit_number":  c.CreditNumber,
		"supplier_id":    c.SupplierID,
		"credit_type":    string(c.CreditType),
		"credit_date":    c.CreditDate.Format(dateLayout),
		"credit_amount":  c.CreditAmount.StringFixed(2),
		"applied_amount": c.AppliedAmount.StringFixed(2),
		"status":         string(c.Status),
		"reason":         c.Reason,
	}
	if c.ExpiryDate != nil {
		snap["expiry_date"] = c.ExpiryDate.Format(dateLayout)
	}
	return snap
}
