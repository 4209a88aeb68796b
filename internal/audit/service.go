package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type LogOptions struct {
	UserID          uint
	UserName        string
	EntityType      string
	EntityID        uint
	TransactionType string
	Action          models.AuditAction
	OldValue        string
	NewValue        string
	Description     string
	Before          any
	After           any
	// At is the event time; zero means now.
	At time.Time
}

// WriteLog appends one audit entry on db, which may be a transaction handle.
// Entries are never updated or deleted.
func WriteLog(db *gorm.DB, opts LogOptions) error {
	before, err := toJSON(opts.Before)
	if err != nil {
		return fmt.Errorf("audit before data: %w", err)
	}
	after, err := toJSON(opts.After)
	if err != nil {
		return fmt.Errorf("audit after data: %w", err)
	}

	entry := models.AuditLog{
		CreatedAt:       opts.At,
		UserID:          opts.UserID,
		UserName:        opts.UserName,
		EntityType:      opts.EntityType,
		EntityID:        opts.EntityID,
		TransactionType: opts.TransactionType,
		Action:          opts.Action,
		OldValue:        opts.OldValue,
		NewValue:        opts.NewValue,
		Description:     truncate(opts.Description, 255),
		BeforeData:      before,
		AfterData:       after,
	}

	if err := db.Create(&entry).Error; err != nil {
		return fmt.Errorf("audit log kaydedilemedi: %w", err)
	}
	return nil
}

// ActionFor maps a transaction type to the coarse audit action.
func ActionFor(txType string) models.AuditAction {
	switch txType {
	case models.TxTypeCreditApplied:
		return models.AuditActionApply
	case models.TxTypeSupplierUpdated:
		return models.AuditActionUpdate
	default:
		return models.AuditActionCreate
	}
}

// PostgreSQL jsonb için boş değer yerine "null" yazılır.
func toJSON(v any) (datatypes.JSON, error) {
	if v == nil {
		return datatypes.JSON("null"), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
