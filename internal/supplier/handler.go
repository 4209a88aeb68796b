package supplier

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/audit"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/auth"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/logger"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// -------------------------
// Request/Response Types
// -------------------------

type CreateSupplierRequest struct {
	Name        string `json:"name"`
	ContactName string `json:"contact_name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
}

type UpdateSupplierRequest struct {
	Name        *string `json:"name"`
	ContactName *string `json:"contact_name"`
	Phone       *string `json:"phone"`
	Email       *string `json:"email"`
	IsActive    *bool   `json:"is_active"`
}

type SupplierResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	ContactName string `json:"contact_name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toResponse(s models.Supplier, _ int) SupplierResponse {
	return SupplierResponse{
		ID:          s.ID,
		Name:        s.Name,
		ContactName: s.ContactName,
		Phone:       s.Phone,
		Email:       s.Email,
		IsActive:    s.IsActive,
		CreatedAt:   s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:   s.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func snapshot(s models.Supplier) map[string]any {
	return map[string]any{
		"id":           s.ID,
		"name":         s.Name,
		"contact_name": s.ContactName,
		"phone":        s.Phone,
		"email":        s.Email,
		"is_active":    s.IsActive,
	}
}

// Register mounts the supplier directory on r, which must already be authenticated.
func Register(r fiber.Router, db *gorm.DB) {
	writers := auth.RequireRole(models.RoleAdmin, models.RoleManager)

	g := r.Group("/suppliers")
	g.Post("/", writers, CreateSupplierHandler(db))
	g.Get("/", ListSuppliersHandler(db))
	g.Get("/:id", GetSupplierHandler(db))
	g.Put("/:id", writers, UpdateSupplierHandler(db))
}

// -------------------------
// Supplier CRUD
// -------------------------

// POST /api/suppliers
func CreateSupplierHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateSupplierRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		supplier := models.Supplier{
			Name:        strings.TrimSpace(body.Name),
			ContactName: strings.TrimSpace(body.ContactName),
			Phone:       strings.TrimSpace(body.Phone),
			Email:       strings.ToLower(strings.TrimSpace(body.Email)),
			IsActive:    true,
		}
		if err := validate(supplier); err != nil {
			return err
		}

		userID, userName, _ := auth.CurrentUser(c)
		err := db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&supplier).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				UserID:          userID,
				UserName:        userName,
				EntityType:      "suppliers",
				EntityID:        supplier.ID,
				TransactionType: models.TxTypeSupplierCreated,
				Action:          models.AuditActionCreate,
				Description:     fmt.Sprintf("Supplier added: %s", supplier.Name),
				After:           snapshot(supplier),
			})
		})
		if err != nil {
			log := logger.WithComponent("supplier")
			log.Error().Err(err).Msg("supplier could not be saved")
			return fiber.NewError(fiber.StatusInternalServerError, "Supplier could not be saved")
		}

		return c.Status(fiber.StatusCreated).JSON(toResponse(supplier, 0))
	}
}

// GET /api/suppliers?search=farm&active=true
func ListSuppliersHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := db.WithContext(c.UserContext()).Model(&models.Supplier{})
		if s := strings.TrimSpace(c.Query("search")); s != "" {
			like := "%" + s + "%"
			q = q.Where("name ILIKE ? OR contact_name ILIKE ?", like, like)
		}
		switch c.Query("active") {
		case "true":
			q = q.Where("is_active = ?", true)
		case "false":
			q = q.Where("is_active = ?", false)
		}

		var suppliers []models.Supplier
		if err := q.Order("name asc").Find(&suppliers).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Suppliers could not be listed")
		}
		return c.JSON(lo.Map(suppliers, toResponse))
	}
}

// GET /api/suppliers/:id
func GetSupplierHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		supplier, err := load(c, db)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(*supplier, 0))
	}
}

// PUT /api/suppliers/:id
func UpdateSupplierHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		supplier, err := load(c, db)
		if err != nil {
			return err
		}

		var body UpdateSupplierRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		before := snapshot(*supplier)
		if !applyUpdate(supplier, body) {
			return c.JSON(toResponse(*supplier, 0))
		}
		if err := validate(*supplier); err != nil {
			return err
		}

		userID, userName, _ := auth.CurrentUser(c)
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			// Save yerine Updates: is_active=false da yazılmalı
			if err := tx.Model(supplier).Updates(map[string]any{
				"name":         supplier.Name,
				"contact_name": supplier.ContactName,
				"phone":        supplier.Phone,
				"email":        supplier.Email,
				"is_active":    supplier.IsActive,
			}).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				UserID:          userID,
				UserName:        userName,
				EntityType:      "suppliers",
				EntityID:        supplier.ID,
				TransactionType: models.TxTypeSupplierUpdated,
				Action:          models.AuditActionUpdate,
				Description:     fmt.Sprintf("Supplier updated: %s", supplier.Name),
				Before:          before,
				After:           snapshot(*supplier),
			})
		})
		if err != nil {
			log := logger.WithComponent("supplier")
			log.Error().Err(err).Uint("supplier_id", supplier.ID).Msg("supplier could not be updated")
			return fiber.NewError(fiber.StatusInternalServerError, "Supplier could not be updated")
		}

		return c.JSON(toResponse(*supplier, 0))
	}
}

// -------------------------
// Yardımcılar
// -------------------------

func load(c *fiber.Ctx, db *gorm.DB) (*models.Supplier, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid supplier ID")
	}
	var supplier models.Supplier
	if err := db.WithContext(c.UserContext()).First(&supplier, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Supplier not found")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Supplier could not be loaded")
	}
	return &supplier, nil
}

// applyUpdate copies the fields present in body and reports whether any was given.
func applyUpdate(s *models.Supplier, body UpdateSupplierRequest) bool {
	updated := false
	if body.Name != nil {
		s.Name = strings.TrimSpace(*body.Name)
		updated = true
	}
	if body.ContactName != nil {
		s.ContactName = strings.TrimSpace(*body.ContactName)
		updated = true
	}
	if body.Phone != nil {
		s.Phone = strings.TrimSpace(*body.Phone)
		updated = true
	}
	if body.Email != nil {
		s.Email = strings.ToLower(strings.TrimSpace(*body.Email))
		updated = true
	}
	if body.IsActive != nil {
		s.IsActive = *body.IsActive
		updated = true
	}
	return updated
}

func validate(s models.Supplier) error {
	if s.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Supplier name is required")
	}
	if len(s.Name) > 200 {
		return fiber.NewError(fiber.StatusBadRequest, "Supplier name is too long")
	}
	if s.Email != "" {
		if _, err := mail.ParseAddress(s.Email); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Supplier email is not valid")
		}
	}
	return nil
}
