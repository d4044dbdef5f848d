package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"billdesk/internal/invoice"
	"billdesk/internal/logger"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [invoice-number]",
	Short: "Delete an invoice, its installments and its PDF",
	Long: `Delete an invoice and its installments in one transaction, then remove
its PDF (and archived copy) if one was generated.

The command succeeds once the rows are gone. A PDF that could not be
removed is reported in cleanup_error.`,
	Example: `  billdesk delete INV-2025-000042`,
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

// DeleteOutput is the JSON shape of the delete command
type DeleteOutput struct {
	*invoice.DeleteResult
	CleanupError string `json:"cleanup_error,omitempty"`
}

func init() {
	rootCmd.AddCommand(deleteCmd)

	deleteCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

func runDelete(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("delete")
	outputPath, _ := cmd.Flags().GetString("output")
	number := args[0]

	ctx, cancel := createCommandContext(30*time.Second, log)
	defer cancel()

	a, err := openApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.ledger.Delete(ctx, number)
	if err != nil {
		return handleLedgerError(err, number, log)
	}

	output := DeleteOutput{DeleteResult: result}
	if result.CleanupErr != nil {
		output.CleanupError = result.CleanupErr.Error()
	}
	return writeJSON(output, outputPath, log)
}
