package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/database"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/export"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/ledger"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/logger"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export-credits",
	Short: "Write the filtered credit list to an Excel workbook",
	Example: `  # Every credit
  creditledger export-credits

  # Open credits of one supplier in March
  creditledger export-credits --supplier 4 --status available --from 2025-03-01 --to 2025-03-31 -o march.xlsx`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	addExportFlags(exportCmd)
}

func addExportFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "Output file (default: supplier_credits_<timestamp>.xlsx)")
	cmd.Flags().Uint("supplier", 0, "Only credits of this supplier ID")
	cmd.Flags().String("type", "", "Credit type filter")
	cmd.Flags().String("status", "", "Status filter (available, partially_applied, fully_applied, expired)")
	cmd.Flags().String("from", "", "Credit date from (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Credit date to (YYYY-MM-DD)")
	cmd.Flags().String("search", "", "Search in credit number, supplier name and reason")
}

func exportQuery(cmd *cobra.Command) ledger.ListQuery {
	flags := cmd.Flags()
	var q ledger.ListQuery
	if id, _ := flags.GetUint("supplier"); id > 0 {
		q.SupplierID = &id
	}
	q.CreditType, _ = flags.GetString("type")
	q.Status, _ = flags.GetString("status")
	q.DateFrom, _ = flags.GetString("from")
	q.DateTo, _ = flags.GetString("to")
	q.Search, _ = flags.GetString("search")
	return q
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("export")
	ctx := cmd.Context()

	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		out = export.FileName(time.Now())
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	l := ledger.New(database.NewStore(db, cfg.LedgerLockTimeout))
	items, err := l.AllCredits(ctx, exportQuery(cmd))
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	if err := export.WriteCredits(f, items); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	log.Info().Str("file", out).Int("credits", len(items)).Msg("credits exported")
	return nil
}
