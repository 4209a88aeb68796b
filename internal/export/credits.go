// Package export renders credit listings as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/ledger"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	SheetName   = "Credits"
)

var creditHeaders = []string{
	"Credit Number", "Supplier", "Type", "Credit Date", "Amount",
	"Applied", "Available", "Status", "Expiry Date", "Reason",
}

// FileName is the download name for an export made at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("supplier_credits_%s.xlsx", t.Format("20060102_150405"))
}

// CreditsWorkbook builds one sheet with a row per credit and a totals row.
func CreditsWorkbook(items []ledger.CreditListItem) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		f.Close()
		return nil, err
	}

	header := lo.Map(creditHeaders, func(h string, _ int) any { return h })
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		f.Close()
		return nil, err
	}

	total, applied, available := decimal.Zero, decimal.Zero, decimal.Zero
	for i, it := range items {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := creditRow(it)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
		total = total.Add(it.CreditAmount)
		applied = applied.Add(it.AppliedAmount)
		available = available.Add(it.AvailableAmount)
	}

	last := len(items) + 2
	totals := []any{"Total", "", "", "", total.InexactFloat64(), applied.InexactFloat64(), available.InexactFloat64()}
	if err := f.SetSheetRow(SheetName, fmt.Sprintf("A%d", last), &totals); err != nil {
		f.Close()
		return nil, err
	}

	lastCol, _ := excelize.ColumnNumberToName(len(creditHeaders))
	_ = f.SetCellStyle(SheetName, "A1", lastCol+"1", bold)
	_ = f.SetCellStyle(SheetName, fmt.Sprintf("A%d", last), fmt.Sprintf("G%d", last), bold)
	_ = f.SetCellStyle(SheetName, "E2", fmt.Sprintf("G%d", last), money)
	_ = f.SetColWidth(SheetName, "A", "C", 18)
	_ = f.SetColWidth(SheetName, "J", "J", 40)
	return f, nil
}

// WriteCredits writes the workbook for items to w.
func WriteCredits(w io.Writer, items []ledger.CreditListItem) error {
	f, err := CreditsWorkbook(items)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func creditRow(it ledger.CreditListItem) []any {
	expiry := ""
	if it.ExpiryDate != nil {
		expiry = it.ExpiryDate.Format("2006-01-02")
	}
	return []any{
		it.CreditNumber,
		it.SupplierName,
		string(it.CreditType),
		it.CreditDate.Format("2006-01-02"),
		it.CreditAmount.InexactFloat64(),
		it.AppliedAmount.InexactFloat64(),
		it.AvailableAmount.InexactFloat64(),
		string(it.DisplayStatus),
		expiry,
		it.Reason,
	}
}
