package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"billdesk/internal/invoice"
	"billdesk/internal/logger"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List invoices, newest first, with per-status counts",
	Long: `List invoices newest first. The --show filter selects all, active
or cancelled invoices; the counts summary always covers every invoice.

If the counts cannot be computed the list is still printed with zero
counts and a counts_error field.`,
	Example: `  # All invoices
  billdesk list

  # Only active invoices, written to a file
  billdesk list --show active -o active.json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

// ListOutput is the JSON shape of the list command
type ListOutput struct {
	*invoice.ListResult
	CountsError string `json:"counts_error,omitempty"`
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().String("show", "all", "Filter: all, active or cancelled")
	listCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

func runList(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("list")

	show, _ := cmd.Flags().GetString("show")
	outputPath, _ := cmd.Flags().GetString("output")

	ctx, cancel := createCommandContext(30*time.Second, log)
	defer cancel()

	a, err := openApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	filter := invoice.ParseFilter(show)
	result, err := a.ledger.List(ctx, filter)
	if err != nil {
		return handleLedgerError(err, "", log)
	}

	output := ListOutput{ListResult: result}
	if result.CountsErr != nil {
		output.CountsError = result.CountsErr.Error()
	}

	log.Debug().
		Str("filter", string(filter)).
		Int("invoices", len(result.Invoices)).
		Msg("Listed invoices")

	return writeJSON(output, outputPath, log)
}
