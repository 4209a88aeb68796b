package audit

import (
	"math"
	"strconv"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type AuditLogResponse struct {
	ID              uint               `json:"id"`
	CreatedAt       string             `json:"created_at"`
	UserID          uint               `json:"user_id"`
	UserName        string             `json:"user_name"`
	EntityType      string             `json:"entity_type"`
	EntityID        uint               `json:"entity_id"`
	TransactionType string             `json:"transaction_type"`
	Action          models.AuditAction `json:"action"`
	OldValue        string             `json:"old_value"`
	NewValue        string             `json:"new_value"`
	Description     string             `json:"description"`
	BeforeData      any                `json:"before_data"`
	AfterData       any                `json:"after_data"`
}

// Filter narrows the audit log listing. Zero values match everything.
type Filter struct {
	EntityType      string
	EntityID        uint
	TransactionType string
	UserID          uint
}

func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID > 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.TransactionType != "" {
		q = q.Where("transaction_type = ?", f.TransactionType)
	}
	if f.UserID > 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	return q
}

func toResponse(l models.AuditLog, _ int) AuditLogResponse {
	return AuditLogResponse{
		ID:              l.ID,
		CreatedAt:       l.CreatedAt.Format("2006-01-02 15:04:05"),
		UserID:          l.UserID,
		UserName:        l.UserName,
		EntityType:      l.EntityType,
		EntityID:        l.EntityID,
		TransactionType: l.TransactionType,
		Action:          l.Action,
		OldValue:        l.OldValue,
		NewValue:        l.NewValue,
		Description:     l.Description,
		BeforeData:      l.BeforeData,
		AfterData:       l.AfterData,
	}
}

// GET /api/audit-logs?entity_type=supplier_credits&entity_id=1&transaction_type=credit_applied&user_id=2&page=1&page_size=50
func ListAuditLogsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := Filter{
			EntityType:      c.Query("entity_type"),
			EntityID:        queryUint(c, "entity_id"),
			TransactionType: c.Query("transaction_type"),
			UserID:          queryUint(c, "user_id"),
		}
		page := max(c.QueryInt("page", 1), 1)
		size := c.QueryInt("page_size", 50)
		if size <= 0 || size > 200 {
			size = 50
		}

		var total int64
		if err := f.apply(db.Model(&models.AuditLog{})).Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Audit logs could not be listed")
		}

		var logs []models.AuditLog
		if err := f.apply(db.Model(&models.AuditLog{})).
			Order("created_at DESC, id DESC").
			Offset((page - 1) * size).
			Limit(size).
			Find(&logs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Audit logs could not be listed")
		}

		return c.JSON(fiber.Map{
			"items":       lo.Map(logs, toResponse),
			"total":       total,
			"page":        page,
			"page_size":   size,
			"total_pages": int(math.Ceil(float64(total) / float64(size))),
		})
	}
}

func queryUint(c *fiber.Ctx, key string) uint {
	v, err := strconv.ParseUint(c.Query(key), 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}
