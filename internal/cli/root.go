// Package cli holds the command line entry points of the ledger service.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/config"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/logger"
	"github.com/spf13/cobra"
)

var version = "1.0.0"

var (
	cfg       *config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "creditledger",
	Short: "Supplier credit ledger service",
	Long: `Supplier credit ledger: records credits received from suppliers and applies
them against supplier invoices.

Configuration is read from the environment and from a .env file in the working
directory. JWT_SECRET is required.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		if logCloser, err = logger.Setup(cfg.GetLoggerConfig()); err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().Err(err).Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
