package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionApply  AuditAction = "apply"
)

// Transaction types written to the audit log.
const (
	TxTypeCreditCreated   = "credit_created"
	TxTypeCreditApplied   = "credit_applied"
	TxTypeSupplierCreated = "supplier_created"
	TxTypeSupplierUpdated = "supplier_updated"
	TxTypeInvoiceCreated  = "invoice_created"
)

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	// Hangi kullanıcı?
	UserID   uint   `gorm:"index" json:"user_id"`
	UserName string `gorm:"size:100" json:"user_name"` // Kullanıcı adı (denormalize)

	// Hangi kayıt? (ör: "supplier_credits", "supplier_invoices")
	EntityType string `gorm:"size:50;index" json:"entity_type"`
	EntityID   uint   `gorm:"index" json:"entity_id"`

	TransactionType string      `gorm:"size:40;index" json:"transaction_type"`
	Action          AuditAction `gorm:"size:20" json:"action"`

	// Değişen tutarın eski ve yeni hali (ör: applied_amount)
	OldValue string `gorm:"size:64" json:"old_value"`
	NewValue string `gorm:"size:64" json:"new_value"`

	Description string `gorm:"size:255" json:"description"`

	// Önceki ve sonraki hal (JSON)
	BeforeData datatypes.JSON `gorm:"type:jsonb" json:"before_data"`
	AfterData  datatypes.JSON `gorm:"type:jsonb" json:"after_data"`
}
