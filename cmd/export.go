package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"billdesk/internal/invoice"
	"billdesk/internal/logger"
	"billdesk/internal/sheets"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the invoice register to Google Sheets",
	Long: `Write the invoice register to a Google Sheets worksheet, replacing the
rows written by the previous export. The header row is created on first
use.

Required environment variables:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  GOOGLE_SHEET_URL - Spreadsheet URL (or pass --sheet)`,
	Example: `  # Export every invoice to the configured sheet
  billdesk export

  # Export active invoices to another worksheet
  billdesk export --show active --worksheet Open`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("sheet", "", "Google Sheets URL (default: GOOGLE_SHEET_URL)")
	exportCmd.Flags().String("worksheet", "", "Worksheet name (default: GOOGLE_SHEET_WORKSHEET)")
	exportCmd.Flags().String("show", "all", "Filter: all, active or cancelled")
	exportCmd.Flags().Int("timeout", 120, "Export timeout in seconds")
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("export")

	sheetURL, _ := cmd.Flags().GetString("sheet")
	worksheet, _ := cmd.Flags().GetString("worksheet")
	show, _ := cmd.Flags().GetString("show")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	if sheetURL == "" {
		sheetURL = cfg.GoogleSheetURL
	}
	if worksheet == "" {
		worksheet = cfg.GoogleSheetWorksheet
	}
	if sheetURL == "" {
		return fmt.Errorf("no spreadsheet configured. Set GOOGLE_SHEET_URL or pass --sheet")
	}

	ctx, cancel := createCommandContext(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	a, err := openApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.ledger.List(ctx, invoice.ParseFilter(show))
	if err != nil {
		return handleLedgerError(err, "", log)
	}

	svc, err := sheets.NewSheetsService(ctx, sheetURL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create Google Sheets service")
		return fmt.Errorf("failed to connect to Google Sheets: %w", err)
	}

	if err := svc.WriteInvoices(ctx, result.Invoices, worksheet); err != nil {
		return fmt.Errorf("failed to export invoice register: %w", err)
	}

	log.Info().
		Str("worksheet", worksheet).
		Int("invoices", len(result.Invoices)).
		Msg("Invoice register exported")
	fmt.Printf("Exported %d invoices to worksheet %q\n", len(result.Invoices), worksheet)
	return nil
}
