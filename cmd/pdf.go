package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"billdesk/internal/logger"
)

var pdfCmd = &cobra.Command{
	Use:   "pdf [invoice-number]",
	Short: "Render an invoice to PDF",
	Long: `Render the invoice detail view (VIEW_BASE_URL/<invoice-number>) with
headless Chrome and store it as

  INVOICES_DIR/<client>/<year>/<client>_<invoice-number>.pdf

The file is replaced atomically, so the path never holds a partial PDF.
Rendering is bounded by RENDER_TIMEOUT. When REDIS_ADDR is set, renders
of the same invoice are serialised across processes; when MINIO_ENDPOINT
is set, the PDF is mirrored to the archive bucket.`,
	Example: `  billdesk pdf INV-2025-000042`,
	Args:    cobra.ExactArgs(1),
	RunE:    runPDF,
}

// PDFOutput is the JSON shape of the pdf command
type PDFOutput struct {
	InvoiceNumber string `json:"invoice_number"`
	PDFPath       string `json:"pdf_path"`
}

func init() {
	rootCmd.AddCommand(pdfCmd)

	pdfCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

func runPDF(cmd *cobra.Command, args []string) error {
	log := logger.WithInvoice("pdf", args[0])
	outputPath, _ := cmd.Flags().GetString("output")
	number := args[0]

	// Leave headroom over the render budget for the lookups and the write.
	ctx, cancel := createCommandContext(cfg.RenderTimeout+30*time.Second, log)
	defer cancel()

	a, err := openApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	pipeline, err := a.pipeline(ctx)
	if err != nil {
		return err
	}

	path, err := pipeline.Render(ctx, number)
	if err != nil {
		return handleLedgerError(err, number, log)
	}

	return writeJSON(PDFOutput{InvoiceNumber: number, PDFPath: path}, outputPath, log)
}
