package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreditType string

const (
	CreditTypeReturn      CreditType = "return"
	CreditTypeDiscount    CreditType = "discount"
	CreditTypeOverpayment CreditType = "overpayment"
	CreditTypeAdjustment  CreditType = "adjustment"
	CreditTypeOther       CreditType = "other"
)

// CreditTypes lists every accepted credit type in display order.
var CreditTypes = []CreditType{
	CreditTypeReturn,
	CreditTypeDiscount,
	CreditTypeOverpayment,
	CreditTypeAdjustment,
	CreditTypeOther,
}

func (t CreditType) Valid() bool {
	for _, ct := range CreditTypes {
		if ct == t {
			return true
		}
	}
	return false
}

type CreditStatus string

const (
	CreditStatusAvailable        CreditStatus = "available"
	CreditStatusPartiallyApplied CreditStatus = "partially_applied"
	CreditStatusFullyApplied     CreditStatus = "fully_applied"
	// Expired is never persisted; it is derived from the expiry date.
	CreditStatusExpired CreditStatus = "expired"
)

// Credit - tedarikçi kredi notu (iade, indirim, fazla ödeme, düzeltme).
// Kullanılabilir tutar saklanmaz, CreditAmount - AppliedAmount olarak hesaplanır.
type Credit struct {
	ID                 uint            `gorm:"primaryKey"`
	CreditNumber       string          `gorm:"size:32;uniqueIndex;not null"`
	SupplierID         uint            `gorm:"index;not null"`
	CreditType         CreditType      `gorm:"size:20;not null;index"`
	CreditDate         time.Time       `gorm:"type:date;not null;index"`
	CreditAmount       decimal.Decimal `gorm:"type:numeric(15,2);not null"`
	AppliedAmount      decimal.Decimal `gorm:"type:numeric(15,2);not null;default:0"`
	Status             CreditStatus    `gorm:"size:20;not null;index"`
	ExpiryDate         *time.Time      `gorm:"type:date;index"`
	Reason             string          `gorm:"type:text;not null"`
	ReferenceInvoiceID *uint           `gorm:"index"`
	ReturnReference    string          `gorm:"size:64"`
	CreatedBy          uint            `gorm:"index;not null"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (Credit) TableName() string { return "supplier_credits" }

func (c Credit) AvailableAmount() decimal.Decimal {
	return c.CreditAmount.Sub(c.AppliedAmount)
}

// IsExpired reports whether the expiry date lies strictly before today.
func (c Credit) IsExpired(today time.Time) bool {
	return c.ExpiryDate != nil && c.ExpiryDate.Before(today)
}
