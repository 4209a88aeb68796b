package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPartial InvoiceStatus = "partial"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

// SupplierInvoice - tedarikçi faturası (borçlar tarafı).
// Kredi uygulaması yalnızca CreditApplied, BalanceDue ve Status alanlarını değiştirir.
type SupplierInvoice struct {
	ID            uint            `gorm:"primaryKey"`
	SupplierID    uint            `gorm:"index;not null"`
	InvoiceNumber string          `gorm:"size:64;uniqueIndex;not null"`
	InvoiceDate   time.Time       `gorm:"type:date;not null;index"`
	DueDate       *time.Time      `gorm:"type:date"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(15,2);not null"`
	AmountPaid    decimal.Decimal `gorm:"type:numeric(15,2);not null;default:0"`
	CreditApplied decimal.Decimal `gorm:"type:numeric(15,2);not null;default:0"`
	BalanceDue    decimal.Decimal `gorm:"type:numeric(15,2);not null"`
	Status        InvoiceStatus   `gorm:"size:20;not null;index"`
	Notes         string          `gorm:"size:500"`
	CreatedBy     uint            `gorm:"index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InitialStatus is the status of a freshly recorded invoice: overdue when its due
// date has passed with money still owed, otherwise by how much is outstanding.
func (inv SupplierInvoice) InitialStatus(today time.Time) InvoiceStatus {
	switch {
	case !inv.BalanceDue.IsPositive():
		return InvoiceStatusPaid
	case inv.DueDate != nil && inv.DueDate.Before(today):
		return InvoiceStatusOverdue
	case inv.BalanceDue.LessThan(inv.TotalAmount):
		return InvoiceStatusPartial
	default:
		return InvoiceStatusPending
	}
}
