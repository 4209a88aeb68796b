package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditApplication - bir kredinin bir faturaya uygulanması. Sadece eklenir, hiç
// güncellenmez veya silinmez.
type CreditApplication struct {
	ID            uint            `gorm:"primaryKey"`
	CreditID      uint            `gorm:"index;not null"`
	InvoiceID     uint            `gorm:"index;not null"`
	AppliedAmount decimal.Decimal `gorm:"type:numeric(15,2);not null"`
	AppliedAt     time.Time       `gorm:"index;not null"`
	AppliedBy     uint            `gorm:"index;not null"`
	Notes         string          `gorm:"size:500"`
	CreatedAt     time.Time
}

func (CreditApplication) TableName() string { return "supplier_credit_applications" }
