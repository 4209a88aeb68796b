package audit

import (
	"strings"
	"testing"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.Open("host=localhost user=test dbname=test sslmode=disable"), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               gormlogger.Discard,
	})
	require.NoError(t, err)
	return db
}

func TestActionFor(t *testing.T) {
	assert.Equal(t, models.AuditActionApply, ActionFor(models.TxTypeCreditApplied))
	assert.Equal(t, models.AuditActionUpdate, ActionFor(models.TxTypeSupplierUpdated))
	assert.Equal(t, models.AuditActionCreate, ActionFor(models.TxTypeCreditCreated))
	assert.Equal(t, models.AuditActionCreate, ActionFor(models.TxTypeInvoiceCreated))
}

func TestToJSON(t *testing.T) {
	b, err := toJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))

	b, err = toJSON(map[string]any{"applied_amount": "200.00"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"applied_amount":"200.00"}`, string(b))

	_, err = toJSON(make(chan int))
	assert.Error(t, err)
}

func TestTruncateCountsRunes(t *testing.T) {
	assert.Equal(t, "kısa", truncate("kısa", 10))
	assert.Equal(t, "şşş", truncate("şşşşş", 3))
	assert.Len(t, []rune(truncate(strings.Repeat("ö", 300), 255)), 255)
}

func TestWriteLogRejectsUnencodableData(t *testing.T) {
	err := WriteLog(dryRunDB(t), LogOptions{TransactionType: models.TxTypeCreditCreated, After: func() {}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit after data")
}

func TestWriteLogInsertsEntry(t *testing.T) {
	err := WriteLog(dryRunDB(t), LogOptions{
		UserID:          3,
		UserName:        "Ayşe Manager",
		EntityType:      "supplier_credits",
		EntityID:        7,
		TransactionType: models.TxTypeCreditCreated,
		Action:          models.AuditActionCreate,
		Description:     strings.Repeat("x", 400),
	})
	assert.NoError(t, err)
}

func TestFilterApply(t *testing.T) {
	db := dryRunDB(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var logs []models.AuditLog
		return Filter{}.apply(tx.Model(&models.AuditLog{})).Find(&logs)
	})
	assert.NotContains(t, sql, "WHERE")

	sql = db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var logs []models.AuditLog
		f := Filter{EntityType: "supplier_credits", EntityID: 7, TransactionType: models.TxTypeCreditApplied, UserID: 3}
		return f.apply(tx.Model(&models.AuditLog{})).Find(&logs)
	})
	assert.Contains(t, sql, "entity_type = 'supplier_credits'")
	assert.Contains(t, sql, "entity_id = 7")
	assert.Contains(t, sql, "transaction_type = 'credit_applied'")
	assert.Contains(t, sql, "user_id = 3")
}
