package cli

import (
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/database"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the database schema up to date and exit",
	Long: `Create or update the ledger tables, add the ledger check constraints and,
when ADMIN_EMAIL is set, create the first admin account.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Connect(cfg)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		if err := database.Migrate(cmd.Context(), db, cfg); err != nil {
			return err
		}
		log := logger.WithComponent("migrate")
		log.Info().Msg("schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
