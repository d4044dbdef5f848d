package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"billdesk/internal/invoice"
	"billdesk/internal/logger"
	"billdesk/pkg/models"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a new invoice with an optional installment plan",
	Long: `Issue a new invoice. The invoice number is allocated from the
per-year counter in the same transaction that stores the invoice and its
installments, so numbers stay gapless.

Amounts are integers in minor currency units (cents).

Installment modes:
  NONE    single payment (default)
  EQUAL   --months monthly installments of total/months, the first due one
          month after today. The remainder is dropped unless
          INSTALLMENT_REMAINDER=last adds it to the final installment.
  MANUAL  pairs of --amount and --due, matched by position. Pairs with a
          blank or malformed side are skipped with a warning.`,
	Example: `  # Single payment
  billdesk create --client "Acme GmbH" --total 120000 --due-date 2025-04-30

  # Three equal monthly installments
  billdesk create --client "Acme GmbH" --total 100000 --mode equal --months 3

  # Manual plan
  billdesk create --client "Acme GmbH" --total 80000 --mode manual \
    --amount 50000 --due 2025-04-01 --amount 30000 --due 2025-05-01`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

// CreateOutput is the JSON shape of the create command
type CreateOutput struct {
	Invoice        *models.Invoice      `json:"invoice"`
	Installments   []models.Installment `json:"installments"`
	InstallmentSum int64                `json:"installment_sum"`
	Unscheduled    int64                `json:"unscheduled"`
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().String("client", "", "Client name (required)")
	createCmd.Flags().Int64("total", 0, "Invoice total in minor units (required)")
	createCmd.Flags().String("description", "", "Description")
	createCmd.Flags().String("reference", "", "Reference")
	createCmd.Flags().String("invoice-date", "", "Invoice date (YYYY-MM-DD)")
	createCmd.Flags().String("due-date", "", "Due date (YYYY-MM-DD)")
	createCmd.Flags().String("terms", "", "Payment terms")
	createCmd.Flags().String("mode", "NONE", "Installment mode: NONE, EQUAL or MANUAL")
	createCmd.Flags().Int("months", 0, "Number of monthly installments for EQUAL mode")
	createCmd.Flags().StringArray("amount", nil, "Installment amount for MANUAL mode (repeatable)")
	createCmd.Flags().StringArray("due", nil, "Installment due date for MANUAL mode (repeatable)")
	createCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")

	_ = createCmd.MarkFlagRequired("client")
	_ = createCmd.MarkFlagRequired("total")
}

func runCreate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("create")

	flags := cmd.Flags()
	client, _ := flags.GetString("client")
	total, _ := flags.GetInt64("total")
	description, _ := flags.GetString("description")
	reference, _ := flags.GetString("reference")
	invoiceDate, _ := flags.GetString("invoice-date")
	dueDate, _ := flags.GetString("due-date")
	terms, _ := flags.GetString("terms")
	mode, _ := flags.GetString("mode")
	months, _ := flags.GetInt("months")
	amounts, _ := flags.GetStringArray("amount")
	dues, _ := flags.GetStringArray("due")
	outputPath, _ := flags.GetString("output")

	req := invoice.CreateRequest{
		Client:      client,
		Total:       total,
		Description: description,
		Reference:   reference,
		InvoiceDate: invoiceDate,
		DueDate:     dueDate,
		Terms:       terms,
		Mode:        models.InstallmentMode(mode),
		Params: invoice.ScheduleParams{
			Months:   months,
			Amounts:  amounts,
			DueDates: dues,
		},
	}

	ctx, cancel := createCommandContext(30*time.Second, log)
	defer cancel()

	a, err := openApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	inv, items, err := a.ledger.Create(ctx, req)
	if err != nil {
		return handleLedgerError(err, "", log)
	}

	sum := models.Sum(items)
	output := CreateOutput{
		Invoice:        inv,
		Installments:   items,
		InstallmentSum: sum,
	}
	if len(items) > 0 {
		output.Unscheduled = inv.Total - sum
	}

	return writeJSON(output, outputPath, log)
}
