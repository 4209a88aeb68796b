package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/config"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/logger"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/models"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ledgerConstraints back the ledger's amount rules in the schema itself.
var ledgerConstraints = []struct {
	table, name, check string
}{
	{"supplier_credits", "chk_supplier_credits_amount_positive", "credit_amount > 0"},
	{"supplier_credits", "chk_supplier_credits_applied_range", "applied_amount >= 0 AND applied_amount <= credit_amount"},
	{"supplier_credits", "chk_supplier_credits_status", "status IN ('available', 'partially_applied', 'fully_applied')"},
	{"supplier_credit_applications", "chk_supplier_credit_applications_amount_positive", "applied_amount > 0"},
	{"supplier_invoices", "chk_supplier_invoices_balance_non_negative", "balance_due >= 0"},
}

// goMigrations lists the versioned migrations in order. They run after AutoMigrate
// has created the tables.
func goMigrations(cfg *config.Config) []*goose.Migration {
	return []*goose.Migration{
		goose.NewGoMigration(1,
			&goose.GoFunc{RunTx: upLedgerConstraints},
			&goose.GoFunc{RunTx: downLedgerConstraints},
		),
		goose.NewGoMigration(2,
			&goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error {
				return upDefaultAdmin(ctx, tx, cfg.AdminEmail, cfg.AdminPassword)
			}},
			&goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error {
				return downDefaultAdmin(ctx, tx, cfg.AdminEmail)
			}},
		),
	}
}

func newProvider(db *gorm.DB, cfg *config.Config) (*goose.Provider, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB from gorm.DB: %w", err)
	}
	return goose.NewProvider(goose.DialectPostgres, sqlDB, nil,
		goose.WithGoMigrations(goMigrations(cfg)...),
		goose.WithDisableGlobalRegistry(true),
		goose.WithLogger(gooseLogger{log: logger.WithComponent("goose")}),
	)
}

func runMigrations(ctx context.Context, db *gorm.DB, cfg *config.Config) ([]*goose.MigrationResult, error) {
	provider, err := newProvider(db, cfg)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return results, fmt.Errorf("failed to run migrations: %w", err)
	}
	return results, nil
}

func upLedgerConstraints(ctx context.Context, tx *sql.Tx) error {
	for _, c := range ledgerConstraints {
		stmt := fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", c.table, c.name)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("drop %s: %w", c.name, err)
		}
		stmt = fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s)", c.table, c.name, c.check)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add %s: %w", c.name, err)
		}
	}
	return nil
}

func downLedgerConstraints(ctx context.Context, tx *sql.Tx) error {
	for _, c := range ledgerConstraints {
		stmt := fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", c.table, c.name)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("drop %s: %w", c.name, err)
		}
	}
	return nil
}

// upDefaultAdmin creates the first admin account when none exists. Without
// ADMIN_EMAIL the step is recorded but does nothing.
func upDefaultAdmin(ctx context.Context, tx *sql.Tx, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE role = $1", string(models.RoleAdmin)).Scan(&count); err != nil {
		return fmt.Errorf("failed to check existing admin: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (name, email, password_hash, role, is_active, created_at, updated_at)
		VALUES ('Administrator', $1, $2, $3, true, NOW(), NOW())`,
		email, string(hash), string(models.RoleAdmin))
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	return nil
}

func downDefaultAdmin(ctx context.Context, tx *sql.Tx, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM users WHERE email = $1 AND role = $2", email, string(models.RoleAdmin)); err != nil {
		return fmt.Errorf("failed to delete admin user: %w", err)
	}
	return nil
}

type gooseLogger struct {
	log zerolog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Info().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Fatal().Msgf(format, v...)
}
