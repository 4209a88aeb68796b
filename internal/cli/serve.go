package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/cache"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/database"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/ledger"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/logger"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API. The schema is migrated before the server starts listening.
When REDIS_ADDR is set, credit states are cached in Redis for CACHE_TTL.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")
	cfg.Warn()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	opts := []ledger.Option{}
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			// Önbellek opsiyonel, Redis yoksa doğrudan veritabanından okunur
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, credit state cache disabled")
		} else {
			defer rdb.Close()
			opts = append(opts, ledger.WithStateCache(cache.NewCreditStateCache(rdb, cfg.CacheTTL)))
		}
	}

	l := ledger.New(database.NewStore(db, cfg.LedgerLockTimeout), opts...)
	app := server.New(server.Deps{Config: cfg, DB: db, Ledger: l})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("server listening")
		errCh <- app.Listen(":" + cfg.HTTPPort)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh
	return nil
}
