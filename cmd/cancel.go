package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"billdesk/internal/logger"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel [invoice-number]",
	Short: "Cancel an active invoice",
	Long: `Move an invoice from ACTIVE to CANCELLED. Cancelling is one way and
cancelling an already cancelled invoice changes nothing.`,
	Example: `  billdesk cancel INV-2025-000042`,
	Args:    cobra.ExactArgs(1),
	RunE:    runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)

	cancelCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

func runCancel(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("cancel")
	outputPath, _ := cmd.Flags().GetString("output")
	number := args[0]

	ctx, cancel := createCommandContext(30*time.Second, log)
	defer cancel()

	a, err := openApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	inv, err := a.ledger.Cancel(ctx, number)
	if err != nil {
		return handleLedgerError(err, number, log)
	}

	return writeJSON(inv, outputPath, log)
}
