package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"billdesk/internal/logger"
	"billdesk/pkg/models"
)

var showCmd = &cobra.Command{
	Use:   "show [invoice-number]",
	Short: "Show an invoice with its installments",
	Example: `  billdesk show INV-2025-000042`,
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

// ShowOutput is the JSON shape of the show command
type ShowOutput struct {
	Invoice      *models.Invoice      `json:"invoice"`
	Installments []models.Installment `json:"installments"`
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

func runShow(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("show")
	outputPath, _ := cmd.Flags().GetString("output")
	number := args[0]

	ctx, cancel := createCommandContext(30*time.Second, log)
	defer cancel()

	a, err := openApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	inv, items, err := a.ledger.Get(ctx, number)
	if err != nil {
		return handleLedgerError(err, number, log)
	}

	return writeJSON(ShowOutput{Invoice: inv, Installments: items}, outputPath, log)
}
