// Package server assembles the HTTP application.
package server

import (
	"errors"
	"strings"
	"time"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/audit"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/auth"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/config"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/credit"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/ledger"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/logger"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/models"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/payables"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/supplier"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const requestIDHeader = "X-Request-ID"

type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	Ledger *ledger.Ledger
}

// New builds the fiber app with every route mounted.
func New(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler,
	})

	app.Use(requestid.New(requestid.Config{
		Header:    requestIDHeader,
		Generator: uuid.NewString,
	}))
	app.Use(AccessLog())

	// CORS origins virgülle ayrılmış olarak gelir
	origins := strings.Split(d.Config.CORSOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(origins, ","),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + requestIDHeader,
		AllowMethods:  "GET,POST,PUT,OPTIONS",
		ExposeHeaders: "Content-Disposition, " + requestIDHeader,
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/login", auth.LoginHandler(d.DB, d.Config.JWTSecret))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(d.Config.JWTSecret))

	protected.Get("/auth/me", auth.MeHandler())

	credit.Register(protected, d.Ledger)
	supplier.Register(protected, d.DB)
	payables.Register(protected, d.DB)

	// Audit logs
	protected.Get("/audit-logs",
		auth.RequireRole(models.RoleAdmin, models.RoleManager),
		audit.ListAuditLogsHandler(d.DB))

	return app
}

// ErrorHandler renders every error as {"error": message}. Errors that are not
// *fiber.Error are logged and reported as a generic 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var e *fiber.Error
	if errors.As(err, &e) {
		return c.Status(e.Code).JSON(fiber.Map{
			"error": e.Message,
		})
	}
	log := logger.WithRequestID(requestID(c))
	log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("unexpected error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Unexpected server error",
	})
}

// AccessLog writes one line per request with its status and latency.
func AccessLog() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		chainErr := c.Next()
		if chainErr != nil {
			// Hata yanıtı burada yazılır ki durum kodu loga doğru düşsün
			if err := c.App().Config().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		log := logger.WithRequestID(requestID(c))
		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}
		ev.Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
		return nil
	}
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
		return id
	}
	return c.GetRespHeader(requestIDHeader)
}
