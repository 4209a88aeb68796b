package ledger

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/models"
	"github.com/shopspring/decimal"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// CreditState is the read model of one credit with its application history.
type CreditState struct {
	Credit          models.Credit
	SupplierName    string
	AvailableAmount decimal.Decimal
	IsExpired       bool
	DisplayStatus   models.CreditStatus
	Applications    []ApplicationView
	// AsOf is the day IsExpired and DisplayStatus were computed for.
	AsOf time.Time
}

// GetCreditState returns the current amounts, status and applications of a credit.
// It never writes. A cached state is served only when it was computed today and the
// credit row still carries the same applied amount, status and update time.
func (l *Ledger) GetCreditState(ctx context.Context, creditID uint) (*CreditState, error) {
	today := l.today()
	repos := l.store.Repositories()

	credit, err := repos.Credits.Get(ctx, creditID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, wrapOp("get credit state", err)
	}

	if l.cache != nil {
		if st, ok := l.cache.Get(ctx, creditID); ok && st.AsOf.Equal(today) && st.matches(credit) {
			return st, nil
		}
	}

	supplierName := ""
	s, err := repos.Suppliers.Get(ctx, credit.SupplierID)
	switch {
	case err == nil:
		supplierName = s.Name
	case !errors.Is(err, ErrNotFound):
		return nil, wrapOp("get credit state", err)
	}
	apps, err := repos.Credits.Applications(ctx, creditID)
	if err != nil {
		return nil, wrapOp("get credit state", err)
	}

	st := &CreditState{
		Credit:          *credit,
		SupplierName:    supplierName,
		AvailableAmount: credit.AvailableAmount(),
		IsExpired:       credit.IsExpired(today),
		DisplayStatus:   DisplayStatus(*credit, today),
		Applications:    apps,
		AsOf:            today,
	}
	if l.cache != nil {
		l.cache.Set(ctx, st)
	}
	return st, nil
}

// matches reports whether st was computed from the current version of the credit row.
// An entry written back after a concurrent apply fails this check.
func (st *CreditState) matches(c *models.Credit) bool {
	return st.Credit.AppliedAmount.Equal(c.AppliedAmount) &&
		st.Credit.Status == c.Status &&
		st.Credit.UpdatedAt.Equal(c.UpdatedAt)
}

type ListQuery struct {
	SupplierID *uint
	CreditType string
	Status     string
	DateFrom   string
	DateTo     string
	Search     string
	Page       int
	PageSize   int
}

type CreditListItem struct {
	CreditView
	AvailableAmount decimal.Decimal
	IsExpired       bool
	DisplayStatus   models.CreditStatus
}

type CreditPage struct {
	Items      []CreditListItem
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
}

// ListCredits filters and paginates credits, newest credit date first.
func (l *Ledger) ListCredits(ctx context.Context, q ListQuery) (*CreditPage, error) {
	var p problems
	today := l.today()
	f := ListFilter{
		SupplierID: q.SupplierID,
		Search:     strings.TrimSpace(q.Search),
		Today:      today,
	}

	if q.CreditType != "" {
		f.CreditType = models.CreditType(q.CreditType)
		if !f.CreditType.Valid() {
			p.add("unknown credit type %q", q.CreditType)
		}
	}
	if q.Status != "" {
		f.Status = models.CreditStatus(q.Status)
		switch f.Status {
		case models.CreditStatusAvailable, models.CreditStatusPartiallyApplied,
			models.CreditStatusFullyApplied, models.CreditStatusExpired:
		default:
			p.add("unknown status %q", q.Status)
		}
	}
	if q.DateFrom != "" {
		if d, err := parseDate(q.DateFrom); err != nil {
			p.add("date_from %q is not a valid date (YYYY-MM-DD)", q.DateFrom)
		} else {
			f.DateFrom = &d
		}
	}
	if q.DateTo != "" {
		if d, err := parseDate(q.DateTo); err != nil {
			p.add("date_to %q is not a valid date (YYYY-MM-DD)", q.DateTo)
		} else {
			f.DateTo = &d
		}
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		p.add("date_to is before date_from")
	}
	if err := p.err(); err != nil {
		return nil, err
	}

	page, size := normalizePage(q.Page, q.PageSize)
	f.Offset = (page - 1) * size
	f.Limit = size

	rows, total, err := l.store.Repositories().Credits.List(ctx, f)
	if err != nil {
		return nil, wrapOp("list credits", err)
	}

	items := make([]CreditListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, CreditListItem{
			CreditView:      row,
			AvailableAmount: row.AvailableAmount(),
			IsExpired:       row.IsExpired(today),
			DisplayStatus:   DisplayStatus(row.Credit, today),
		})
	}

	totalPages := 0
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(size)))
	}
	return &CreditPage{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
	}, nil
}

// AllCredits returns every credit matching q, walking the pages of ListCredits.
// q.Page and q.PageSize are ignored.
func (l *Ledger) AllCredits(ctx context.Context, q ListQuery) ([]CreditListItem, error) {
	q.PageSize = MaxPageSize
	var out []CreditListItem
	for q.Page = 1; ; q.Page++ {
		page, err := l.ListCredits(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if q.Page >= page.TotalPages {
			return out, nil
		}
	}
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	switch {
	case size > MaxPageSize:
		size = MaxPageSize
	case size <= 0:
		size = DefaultPageSize
	}
	return page, size
}

type SummaryQuery struct {
	SupplierID *uint
}

type SummaryLine struct {
	SummaryRow
	AvailableAmount decimal.Decimal
}

type CreditSummary struct {
	Lines          []SummaryLine
	Count          int64
	CreditAmount   decimal.Decimal
	AppliedAmount  decimal.Decimal
	AvailableTotal decimal.Decimal
}

// Summary totals credits by type and stored status.
func (l *Ledger) Summary(ctx context.Context, q SummaryQuery) (*CreditSummary, error) {
	rows, err := l.store.Repositories().Credits.Summary(ctx, SummaryFilter{SupplierID: q.SupplierID})
	if err != nil {
		return nil, wrapOp("summarize credits", err)
	}
	sum := &CreditSummary{
		Lines:          make([]SummaryLine, 0, len(rows)),
		CreditAmount:   decimal.Zero,
		AppliedAmount:  decimal.Zero,
		AvailableTotal: decimal.Zero,
	}
	for _, row := range rows {
		available := row.CreditAmount.Sub(row.AppliedAmount)
		sum.Lines = append(sum.Lines, SummaryLine{SummaryRow: row, AvailableAmount: available})
		sum.Count += row.Count
		sum.CreditAmount = sum.CreditAmount.Add(row.CreditAmount)
		sum.AppliedAmount = sum.AppliedAmount.Add(row.AppliedAmount)
		sum.AvailableTotal = sum.AvailableTotal.Add(available)
	}
	return sum, nil
}
