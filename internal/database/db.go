package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/config"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/logger"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect opens the PostgreSQL connection without touching the schema.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: newGormLogger(logger.WithComponent("gorm"), cfg.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("veritabanına bağlanılamadı: %w", err)
	}
	return db, nil
}

// Open connects and brings the schema up to date.
func Open(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db, cfg); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate runs AutoMigrate for every model, then the versioned migrations.
func Migrate(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	log := logger.WithComponent("database")

	err := db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Supplier{},
		&models.SupplierInvoice{},
		&models.Credit{},
		&models.CreditApplication{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	results, err := runMigrations(ctx, db, cfg)
	if err != nil {
		return err
	}
	for _, r := range results {
		log.Info().Str("migration", r.Source.Path).Int64("version", r.Source.Version).
			Dur("took", r.Duration).Msg("migration applied")
	}

	log.Info().Msg("veritabanı migration tamamlandı")
	return nil
}

// gormWriter sends gorm's log lines to zerolog.
type gormWriter struct {
	log   zerolog.Logger
	level zerolog.Level
}

func (w gormWriter) Printf(format string, args ...any) {
	w.log.WithLevel(w.level).Msgf(format, args...)
}

func newGormLogger(log zerolog.Logger, level string) gormlogger.Interface {
	gormLevel, lineLevel := gormlogger.Warn, zerolog.WarnLevel
	switch level {
	case "trace", "debug":
		// SQL trace
		gormLevel, lineLevel = gormlogger.Info, zerolog.DebugLevel
	case "error":
		gormLevel, lineLevel = gormlogger.Error, zerolog.ErrorLevel
	}
	return gormlogger.New(gormWriter{log: log, level: lineLevel}, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  gormLevel,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
	})
}
