package credit

import (
	"errors"
	"strings"
	"time"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/auth"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/export"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/ledger"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/logger"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// -------------------------
// Request/Response Types
// -------------------------

type CreateCreditRequest struct {
	SupplierID         uint            `json:"supplier_id"`
	CreditType         string          `json:"credit_type"` // return, discount, overpayment, adjustment, other
	CreditDate         string          `json:"credit_date"` // "2025-03-01"
	ExpiryDate         string          `json:"expiry_date"` // opsiyonel
	Amount             decimal.Decimal `json:"amount"`
	Reason             string          `json:"reason"`
	ReferenceInvoiceID *uint           `json:"reference_invoice_id"`
	ReturnReference    string          `json:"return_reference"`
}

type ApplyCreditRequest struct {
	InvoiceID uint            `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note"`
}

type CreditResponse struct {
	ID                 uint    `json:"id"`
	CreditNumber       string  `json:"credit_number"`
	SupplierID         uint    `json:"supplier_id"`
	SupplierName       string  `json:"supplier_name,omitempty"`
	CreditType         string  `json:"credit_type"`
	CreditDate         string  `json:"credit_date"`
	CreditAmount       string  `json:"credit_amount"`
	AppliedAmount      string  `json:"applied_amount"`
	AvailableAmount    string  `json:"available_amount"`
	Status             string  `json:"status"`
	DisplayStatus      string  `json:"display_status"`
	IsExpired          bool    `json:"is_expired"`
	ExpiryDate         *string `json:"expiry_date"`
	Reason             string  `json:"reason"`
	ReferenceInvoiceID *uint   `json:"reference_invoice_id"`
	ReturnReference    string  `json:"return_reference,omitempty"`
	CreatedBy          uint    `json:"created_by"`
	CreatedAt          string  `json:"created_at"`
}

type ApplicationResponse struct {
	ID            uint   `json:"id"`
	InvoiceID     uint   `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	AppliedAmount string `json:"applied_amount"`
	AppliedAt     string `json:"applied_at"`
	AppliedBy     uint   `json:"applied_by"`
	AppliedByName string `json:"applied_by_name"`
	Notes         string `json:"notes"`
}

type CreditStateResponse struct {
	CreditResponse
	Applications []ApplicationResponse `json:"applications"`
}

type ApplyCreditResponse struct {
	Credit      CreditResponse      `json:"credit"`
	Application ApplicationResponse `json:"application"`
	Invoice     InvoiceBalance      `json:"invoice"`
}

type InvoiceBalance struct {
	ID            uint   `json:"id"`
	InvoiceNumber string `json:"invoice_number"`
	CreditApplied string `json:"credit_applied"`
	BalanceDue    string `json:"balance_due"`
	Status        string `json:"status"`
}

type SummaryLineResponse struct {
	CreditType      string `json:"credit_type"`
	Status          string `json:"status"`
	Count           int64  `json:"count"`
	CreditAmount    string `json:"credit_amount"`
	AppliedAmount   string `json:"applied_amount"`
	AvailableAmount string `json:"available_amount"`
}

// -------------------------
// Handlers
// -------------------------

// Register mounts the credit routes on r, which must already be authenticated.
func Register(r fiber.Router, l *ledger.Ledger) {
	writers := auth.RequireRole(models.RoleAdmin, models.RoleManager)

	g := r.Group("/credits")
	g.Post("/", writers, CreateCreditHandler(l))
	g.Get("/", ListCreditsHandler(l))
	g.Get("/summary", SummaryHandler(l))
	g.Get("/export", writers, ExportCreditsHandler(l, time.Now))
	g.Get("/:id", GetCreditHandler(l))
	g.Post("/:id/applications", writers, ApplyCreditHandler(l))
}

// POST /api/credits
func CreateCreditHandler(l *ledger.Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, userName, ok := auth.CurrentUser(c)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "User information is missing")
		}

		var body CreateCreditRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		credit, err := l.CreateCredit(c.UserContext(), ledger.CreateCreditInput{
			SupplierID:         body.SupplierID,
			CreditType:         models.CreditType(strings.TrimSpace(body.CreditType)),
			CreditDate:         body.CreditDate,
			ExpiryDate:         body.ExpiryDate,
			Amount:             body.Amount,
			Reason:             body.Reason,
			ReferenceInvoiceID: body.ReferenceInvoiceID,
			ReturnReference:    body.ReturnReference,
			Actor:              ledger.Actor{ID: userID, Name: userName},
		})
		if err != nil {
			return respondError(c, err, "Credit could not be created, nothing was changed. Please try again.")
		}

		return c.Status(fiber.StatusCreated).JSON(toCreditResponse(*credit, "", time.Time{}))
	}
}

// GET /api/credits?supplier_id=1&credit_type=return&status=expired&date_from=2025-01-01&date_to=2025-03-31&search=CR-2025&page=1&page_size=20
func ListCreditsHandler(l *ledger.Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := listQueryFrom(c)
		if err != nil {
			return err
		}

		page, err := l.ListCredits(c.UserContext(), q)
		if err != nil {
			return respondError(c, err, "Credits could not be listed")
		}

		return c.JSON(fiber.Map{
			"items":       lo.Map(page.Items, toListItemResponse),
			"total":       page.Total,
			"page":        page.Page,
			"page_size":   page.PageSize,
			"total_pages": page.TotalPages,
		})
	}
}

// GET /api/credits/summary?supplier_id=1
func SummaryHandler(l *ledger.Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		supplierID, err := optionalUint(c, "supplier_id")
		if err != nil {
			return err
		}

		sum, err := l.Summary(c.UserContext(), ledger.SummaryQuery{SupplierID: supplierID})
		if err != nil {
			return respondError(c, err, "Credit summary could not be calculated")
		}

		return c.JSON(fiber.Map{
			"lines": lo.Map(sum.Lines, func(line ledger.SummaryLine, _ int) SummaryLineResponse {
				return SummaryLineResponse{
					CreditType:      string(line.CreditType),
					Status:          string(line.Status),
					Count:           line.Count,
					CreditAmount:    money(line.CreditAmount),
					AppliedAmount:   money(line.AppliedAmount),
					AvailableAmount: money(line.AvailableAmount),
				}
			}),
			"count":            sum.Count,
			"credit_amount":    money(sum.CreditAmount),
			"applied_amount":   money(sum.AppliedAmount),
			"available_amount": money(sum.AvailableTotal),
		})
	}
}

// GET /api/credits/export (aynı filtreler, sayfalama yok)
func ExportCreditsHandler(l *ledger.Ledger, now func() time.Time) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := listQueryFrom(c)
		if err != nil {
			return err
		}

		items, err := l.AllCredits(c.UserContext(), q)
		if err != nil {
			return respondError(c, err, "Credits could not be exported")
		}

		c.Attachment(export.FileName(now()))
		c.Set(fiber.HeaderContentType, export.ContentType)
		if err := export.WriteCredits(c.Response().BodyWriter(), items); err != nil {
			log := logger.WithComponent("credit")
			log.Error().Err(err).Msg("credit export failed")
			return fiber.NewError(fiber.StatusInternalServerError, "Excel file could not be created")
		}
		return nil
	}
}

// GET /api/credits/:id
func GetCreditHandler(l *ledger.Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid credit ID")
		}

		st, err := l.GetCreditState(c.UserContext(), uint(id))
		if err != nil {
			return respondError(c, err, "Credit could not be loaded")
		}

		resp := toCreditResponse(st.Credit, st.SupplierName, st.AsOf)
		resp.DisplayStatus = string(st.DisplayStatus)
		resp.IsExpired = st.IsExpired
		return c.JSON(CreditStateResponse{
			CreditResponse: resp,
			Applications:   lo.Map(st.Applications, toApplicationResponse),
		})
	}
}

// POST /api/credits/:id/applications
func ApplyCreditHandler(l *ledger.Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid credit ID")
		}

		userID, userName, ok := auth.CurrentUser(c)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "User information is missing")
		}

		var body ApplyCreditRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		res, err := l.ApplyCredit(c.UserContext(), ledger.ApplyCreditInput{
			CreditID:  uint(id),
			InvoiceID: body.InvoiceID,
			Amount:    body.Amount,
			Note:      body.Note,
			Actor:     ledger.Actor{ID: userID, Name: userName},
		})
		if err != nil {
			return respondError(c, err, "Credit could not be applied, nothing was changed. Please try again.")
		}

		app := ledger.ApplicationView{
			CreditApplication: res.Application,
			InvoiceNumber:     res.Invoice.InvoiceNumber,
			AppliedByName:     userName,
		}
		return c.Status(fiber.StatusCreated).JSON(ApplyCreditResponse{
			Credit:      toCreditResponse(res.Credit, "", time.Time{}),
			Application: toApplicationResponse(app, 0),
			Invoice: InvoiceBalance{
				ID:            res.Invoice.ID,
				InvoiceNumber: res.Invoice.InvoiceNumber,
				CreditApplied: money(res.Invoice.CreditApplied),
				BalanceDue:    money(res.Invoice.BalanceDue),
				Status:        string(res.Invoice.Status),
			},
		})
	}
}

// -------------------------
// Yardımcılar
// -------------------------

// respondError maps ledger errors to HTTP. Causes of unexpected failures are logged
// and replaced by generic.
func respondError(c *fiber.Ctx, err error, generic string) error {
	if msgs, ok := ledger.IsValidation(err); ok {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":    "Validation failed",
			"messages": msgs,
		})
	}
	switch {
	case errors.Is(err, ledger.ErrStaleState):
		return fiber.NewError(fiber.StatusConflict, "Credit state changed, please retry")
	case errors.Is(err, ledger.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Credit not found")
	}

	log := logger.WithComponent("credit")
	log.Error().Err(err).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Msg("credit request failed")
	return fiber.NewError(fiber.StatusInternalServerError, generic)
}

func listQueryFrom(c *fiber.Ctx) (ledger.ListQuery, error) {
	supplierID, err := optionalUint(c, "supplier_id")
	if err != nil {
		return ledger.ListQuery{}, err
	}
	return ledger.ListQuery{
		SupplierID: supplierID,
		CreditType: c.Query("credit_type"),
		Status:     c.Query("status"),
		DateFrom:   c.Query("date_from"),
		DateTo:     c.Query("date_to"),
		Search:     c.Query("search"),
		Page:       c.QueryInt("page", 1),
		PageSize:   c.QueryInt("page_size", ledger.DefaultPageSize),
	}, nil
}

func optionalUint(c *fiber.Ctx, key string) (*uint, error) {
	if c.Query(key) == "" {
		return nil, nil
	}
	v := c.QueryInt(key, 0)
	if v <= 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid "+key)
	}
	id := uint(v)
	return &id, nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// toCreditResponse fills the derived fields for asOf; a zero asOf means the
// credit was just written and its stored status is current.
func toCreditResponse(cr models.Credit, supplierName string, asOf time.Time) CreditResponse {
	var expiry *string
	if cr.ExpiryDate != nil {
		s := cr.ExpiryDate.Format("2006-01-02")
		expiry = &s
	}
	display := cr.Status
	expired := false
	if !asOf.IsZero() {
		display = ledger.DisplayStatus(cr, asOf)
		expired = cr.IsExpired(asOf)
	}
	return CreditResponse{
		ID:                 cr.ID,
		CreditNumber:       cr.CreditNumber,
		SupplierID:         cr.SupplierID,
		SupplierName:       supplierName,
		CreditType:         string(cr.CreditType),
		CreditDate:         cr.CreditDate.Format("2006-01-02"),
		CreditAmount:       money(cr.CreditAmount),
		AppliedAmount:      money(cr.AppliedAmount),
		AvailableAmount:    money(cr.AvailableAmount()),
		Status:             string(cr.Status),
		DisplayStatus:      string(display),
		IsExpired:          expired,
		ExpiryDate:         expiry,
		Reason:             cr.Reason,
		ReferenceInvoiceID: cr.ReferenceInvoiceID,
		ReturnReference:    cr.ReturnReference,
		CreatedBy:          cr.CreatedBy,
		CreatedAt:          cr.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func toListItemResponse(it ledger.CreditListItem, _ int) CreditResponse {
	resp := toCreditResponse(it.Credit, it.SupplierName, time.Time{})
	resp.AvailableAmount = money(it.AvailableAmount)
	resp.IsExpired = it.IsExpired
	resp.DisplayStatus = string(it.DisplayStatus)
	return resp
}

func toApplicationResponse(a ledger.ApplicationView, _ int) ApplicationResponse {
	return ApplicationResponse{
		ID:            a.ID,
		InvoiceID:     a.InvoiceID,
		InvoiceNumber: a.InvoiceNumber,
		AppliedAmount: money(a.AppliedAmount),
		AppliedAt:     a.AppliedAt.Format(time.RFC3339),
		AppliedBy:     a.AppliedBy,
		AppliedByName: a.AppliedByName,
		Notes:         a.Notes,
	}
}
