// Package payables exposes supplier invoices, the balances credits are applied to.
package payables

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/audit"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/auth"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/logger"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// -------------------------
// Request/Response Types
// -------------------------

type CreateInvoiceRequest struct {
	SupplierID    uint            `json:"supplier_id"`
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceDate   string          `json:"invoice_date"` // "2025-03-01"
	DueDate       string          `json:"due_date"`     // opsiyonel
	TotalAmount   decimal.Decimal `json:"total_amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Notes         string          `json:"notes"`
}

type InvoiceResponse struct {
	ID            uint    `json:"id"`
	SupplierID    uint    `json:"supplier_id"`
	InvoiceNumber string  `json:"invoice_number"`
	InvoiceDate   string  `json:"invoice_date"`
	DueDate       *string `json:"due_date"`
	TotalAmount   string  `json:"total_amount"`
	AmountPaid    string  `json:"amount_paid"`
	CreditApplied string  `json:"credit_applied"`
	BalanceDue    string  `json:"balance_due"`
	Status        string  `json:"status"`
	Notes         string  `json:"notes"`
	CreatedAt     string  `json:"created_at"`
}

type InvoiceCreditResponse struct {
	ApplicationID uint   `json:"application_id"`
	CreditID      uint   `json:"credit_id"`
	CreditNumber  string `json:"credit_number"`
	AppliedAmount string `json:"applied_amount"`
	AppliedAt     string `json:"applied_at"`
	AppliedByName string `json:"applied_by_name"`
}

// invoiceCreditRow is one credit application made to an invoice.
type invoiceCreditRow struct {
	ID            uint
	CreditID      uint
	CreditNumber  string
	AppliedAmount decimal.Decimal
	AppliedAt     time.Time
	AppliedByName string
}

const dateLayout = "2006-01-02"

func toResponse(inv models.SupplierInvoice, _ int) InvoiceResponse {
	var due *string
	if inv.DueDate != nil {
		s := inv.DueDate.Format(dateLayout)
		due = &s
	}
	return InvoiceResponse{
		ID:            inv.ID,
		SupplierID:    inv.SupplierID,
		InvoiceNumber: inv.InvoiceNumber,
		InvoiceDate:   inv.InvoiceDate.Format(dateLayout),
		DueDate:       due,
		TotalAmount:   inv.TotalAmount.StringFixed(2),
		AmountPaid:    inv.AmountPaid.StringFixed(2),
		CreditApplied: inv.CreditApplied.StringFixed(2),
		BalanceDue:    inv.BalanceDue.StringFixed(2),
		Status:        string(inv.Status),
		Notes:         inv.Notes,
		CreatedAt:     inv.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Register mounts the supplier invoice routes on r, which must already be authenticated.
func Register(r fiber.Router, db *gorm.DB) {
	g := r.Group("/supplier-invoices")
	g.Post("/", auth.RequireRole(models.RoleAdmin, models.RoleManager), CreateInvoiceHandler(db, time.Now))
	g.Get("/", ListInvoicesHandler(db))
	g.Get("/:id", GetInvoiceHandler(db))
}

// -------------------------
// Handlers
// -------------------------

// POST /api/supplier-invoices
func CreateInvoiceHandler(db *gorm.DB, now func() time.Time) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateInvoiceRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		userID, userName, _ := auth.CurrentUser(c)
		inv, problems := newInvoice(body, now())
		inv.CreatedBy = userID

		ctx := c.UserContext()
		if body.SupplierID != 0 {
			var supplier models.Supplier
			err := db.WithContext(ctx).First(&supplier, body.SupplierID).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				problems = append(problems, fmt.Sprintf("supplier #%d does not exist", body.SupplierID))
			case err != nil:
				return fiber.NewError(fiber.StatusInternalServerError, "Supplier could not be loaded")
			case !supplier.IsActive:
				problems = append(problems, fmt.Sprintf("supplier %q is inactive", supplier.Name))
			}
		}
		if inv.InvoiceNumber != "" {
			var count int64
			if err := db.WithContext(ctx).Model(&models.SupplierInvoice{}).
				Where("invoice_number = ?", inv.InvoiceNumber).Count(&count).Error; err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Invoice could not be checked")
			}
			if count > 0 {
				problems = append(problems, fmt.Sprintf("invoice number %s already exists", inv.InvoiceNumber))
			}
		}
		if len(problems) > 0 {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":    "Validation failed",
				"messages": problems,
			})
		}

		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&inv).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				UserID:          userID,
				UserName:        userName,
				EntityType:      "supplier_invoices",
				EntityID:        inv.ID,
				TransactionType: models.TxTypeInvoiceCreated,
				Action:          models.AuditActionCreate,
				NewValue:        inv.BalanceDue.StringFixed(2),
				Description:     fmt.Sprintf("Supplier invoice %s recorded: %s", inv.InvoiceNumber, inv.TotalAmount.StringFixed(2)),
				After:           toResponse(inv, 0),
			})
		})
		if err != nil {
			log := logger.WithComponent("payables")
			log.Error().Err(err).Str("invoice_number", inv.InvoiceNumber).Msg("invoice could not be saved")
			return fiber.NewError(fiber.StatusInternalServerError, "Invoice could not be saved")
		}

		return c.Status(fiber.StatusCreated).JSON(toResponse(inv, 0))
	}
}

// GET /api/supplier-invoices?supplier_id=1&status=partial&open=true
func ListInvoicesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := db.WithContext(c.UserContext()).Model(&models.SupplierInvoice{})
		if v := c.QueryInt("supplier_id", 0); v > 0 {
			q = q.Where("supplier_id = ?", v)
		}
		if s := c.Query("status"); s != "" {
			q = q.Where("status = ?", s)
		}
		if c.QueryBool("open", false) {
			q = q.Where("balance_due > 0")
		}

		var invoices []models.SupplierInvoice
		if err := q.Order("invoice_date DESC, id DESC").Limit(500).Find(&invoices).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Invoices could not be listed")
		}
		return c.JSON(lo.Map(invoices, toResponse))
	}
}

// GET /api/supplier-invoices/:id
func GetInvoiceHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid invoice ID")
		}
		ctx := c.UserContext()

		var inv models.SupplierInvoice
		if err := db.WithContext(ctx).First(&inv, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "Invoice not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Invoice could not be loaded")
		}

		var rows []invoiceCreditRow
		if err := db.WithContext(ctx).Table("supplier_credit_applications AS a").
			Select("a.id, a.credit_id, c.credit_number, a.applied_amount, a.applied_at, u.name AS applied_by_name").
			Joins("JOIN supplier_credits c ON c.id = a.credit_id").
			Joins("LEFT JOIN users u ON u.id = a.applied_by").
			Where("a.invoice_id = ?", inv.ID).
			Order("a.applied_at DESC, a.id DESC").
			Scan(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Invoice credits could not be loaded")
		}

		return c.JSON(fiber.Map{
			"invoice": toResponse(inv, 0),
			"credits": lo.Map(rows, func(r invoiceCreditRow, _ int) InvoiceCreditResponse {
				return InvoiceCreditResponse{
					ApplicationID: r.ID,
					CreditID:      r.CreditID,
					CreditNumber:  r.CreditNumber,
					AppliedAmount: r.AppliedAmount.StringFixed(2),
					AppliedAt:     r.AppliedAt.Format(time.RFC3339),
					AppliedByName: r.AppliedByName,
				}
			}),
		})
	}
}

// newInvoice validates the request without touching the database and derives the
// balance and initial status.
func newInvoice(body CreateInvoiceRequest, now time.Time) (models.SupplierInvoice, []string) {
	var problems []string
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	inv := models.SupplierInvoice{
		SupplierID:    body.SupplierID,
		InvoiceNumber: strings.TrimSpace(body.InvoiceNumber),
		TotalAmount:   body.TotalAmount,
		AmountPaid:    body.AmountPaid,
		CreditApplied: decimal.Zero,
		Notes:         strings.TrimSpace(body.Notes),
	}

	if body.SupplierID == 0 {
		problems = append(problems, "supplier is required")
	}
	if inv.InvoiceNumber == "" {
		problems = append(problems, "invoice number is required")
	}
	date, err := time.Parse(dateLayout, strings.TrimSpace(body.InvoiceDate))
	if err != nil {
		problems = append(problems, fmt.Sprintf("invoice date %q is not a valid date (YYYY-MM-DD)", body.InvoiceDate))
	}
	inv.InvoiceDate = date
	if s := strings.TrimSpace(body.DueDate); s != "" {
		due, err := time.Parse(dateLayout, s)
		switch {
		case err != nil:
			problems = append(problems, fmt.Sprintf("due date %q is not a valid date (YYYY-MM-DD)", body.DueDate))
		case !date.IsZero() && due.Before(date):
			problems = append(problems, "due date is before the invoice date")
		default:
			inv.DueDate = &due
		}
	}

	switch {
	case !inv.TotalAmount.IsPositive():
		problems = append(problems, "total amount must be greater than zero")
	case !inv.TotalAmount.Equal(inv.TotalAmount.Round(2)):
		problems = append(problems, "total amount has more than 2 decimal places")
	}
	switch {
	case inv.AmountPaid.IsNegative():
		problems = append(problems, "amount paid must not be negative")
	case inv.AmountPaid.GreaterThan(inv.TotalAmount):
		problems = append(problems, "amount paid exceeds the total amount")
	}

	inv.BalanceDue = inv.TotalAmount.Sub(inv.AmountPaid)
	inv.Status = inv.InitialStatus(today)
	return inv, problems
}
