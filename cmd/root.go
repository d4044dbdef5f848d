package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"billdesk/internal/config"
	"billdesk/internal/logger"
)

var version = "1.0.0"

// cfg is set by Execute before any command runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "billdesk",
	Short: "Billdesk - issue, track and document invoices",
	Long: `Billdesk is the command-line front of the billing desk. It issues
invoices with gapless INV-<year>-<sequence> numbers, records lump-sum or
installment payment plans, cancels and deletes invoices, and renders each
invoice to a PDF under a stable client/year directory layout.

Invoices are stored in SQLite by default (DATABASE_URL) or PostgreSQL
(DB_DRIVER=postgres). The schema is created on first use.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with the loaded configuration.
func Execute(c *config.Config) {
	log := logger.WithComponent("cmd")
	cfg = c

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
