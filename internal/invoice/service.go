// Package invoice implements the invoice lifecycle and numbering engine of
// the billing desk.
//
// The package is split into four cooperating parts:
//   - Allocator: mints INV-<year>-<6-digit> numbers from a per-year counter
//     that the store advances in one atomic statement
//   - Scheduler: turns a total and an installment mode into due obligations
//   - Ledger: owns invoice state (ACTIVE → CANCELLED, deletion) and composes
//     the allocator and scheduler at creation time
//   - Pipeline: renders an invoice's detail view to a PDF at a deterministic
//     path and records that path on the invoice
//
// Persistence, the HTML detail view and the headless browser are
// collaborators behind the interfaces declared in this file.
//
// Store Requirements:
//   - NextSequence must be an atomic upsert-and-return; never read-then-write
//   - InTx must run fn inside one transaction and roll back on error
//   - Not-found lookups must return an error matching ErrNotFound
//   - A duplicate invoice number must return an error matching
//     ErrConcurrencyConflict
package invoice

import (
	"context"
	"time"

	"billdesk/pkg/models"
)

// SequenceStore advances the per-year invoice counter.
type SequenceStore interface {
	// NextSequence atomically increments the counter for year (creating it
	// at 1 when absent) and returns the new value.
	NextSequence(ctx context.Context, year int) (int64, error)
}

// Repository is the set of single-statement persistence operations the
// ledger and the pipeline need.
type Repository interface {
	SequenceStore

	// InsertInvoice stores inv and returns its store-assigned id.
	InsertInvoice(ctx context.Context, inv *models.Invoice) (int64, error)

	// InsertInstallments stores items as one batch owned by invoiceID.
	InsertInstallments(ctx context.Context, invoiceID int64, items []models.Installment) error

	// GetInvoice loads an invoice by number.
	GetInvoice(ctx context.Context, invoiceNumber string) (*models.Invoice, error)

	// ListInstallments returns the installments of an invoice ordered by due date.
	ListInstallments(ctx context.Context, invoiceID int64) ([]models.Installment, error)

	// ListInvoices returns invoices newest first; an empty status means all.
	ListInvoices(ctx context.Context, status models.Status) ([]models.Invoice, error)

	// CountByStatus returns the number of invoices per status.
	CountByStatus(ctx context.Context) (map[models.Status]int, error)

	// CancelInvoice moves an ACTIVE invoice to CANCELLED and reports whether
	// a row changed.
	CancelInvoice(ctx context.Context, invoiceNumber string) (bool, error)

	// DeleteInstallments removes every installment of an invoice.
	DeleteInstallments(ctx context.Context, invoiceID int64) error

	// DeleteInvoice removes the invoice row.
	DeleteInvoice(ctx context.Context, invoiceID int64) error

	// SetPDFPath records the generated artifact path of an invoice.
	SetPDFPath(ctx context.Context, invoiceNumber, path string) error
}

// Store is a Repository that can also scope a Repository to a transaction.
type Store interface {
	Repository

	// InTx runs fn against a transaction-scoped Repository, committing when
	// fn returns nil and rolling back otherwise.
	InTx(ctx context.Context, fn func(Repository) error) error
}

// Renderer converts an addressable HTML view to PDF bytes.
type Renderer interface {
	// RenderPDF loads url and prints it as a paginated A4 PDF with
	// backgrounds. It must honour ctx cancellation.
	RenderPDF(ctx context.Context, url string) ([]byte, error)
}

// ViewLocator resolves the detail view of an invoice.
type ViewLocator interface {
	InvoiceURL(invoiceNumber string) string
}

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// CreateRequest carries everything needed to issue an invoice.
type CreateRequest struct {
	Client      string
	Total       int64
	Description string
	Reference   string
	InvoiceDate string // YYYY-MM-DD, optional
	DueDate     string // YYYY-MM-DD, optional
	Terms       string

	Mode   models.InstallmentMode
	Params ScheduleParams
}

// ListFilter selects which invoices List returns.
type ListFilter string

const (
	FilterAll       ListFilter = "all"
	FilterActive    ListFilter = "active"
	FilterCancelled ListFilter = "cancelled"
)

// StatusCounts is the per-status summary shown next to a list.
type StatusCounts struct {
	Active    int `json:"active"`
	Cancelled int `json:"cancelled"`
}

// Total returns the number of invoices counted.
func (c StatusCounts) Total() int {
	return c.Active + c.Cancelled
}

// ListResult is the outcome of List.
type ListResult struct {
	Filter   ListFilter       `json:"filter"`
	Invoices []models.Invoice `json:"invoices"`
	Counts   StatusCounts     `json:"counts"`

	// CountsErr is set when the summary could not be computed and Counts
	// was degraded to zero.
	CountsErr error `json:"-"`
}

// DeleteResult reports the two independent outcomes of a delete.
type DeleteResult struct {
	InvoiceNumber string `json:"invoice_number"`

	// RowsDeleted is the primary success signal.
	RowsDeleted bool `json:"rows_deleted"`

	// PDFPath is the artifact that was targeted for removal, if any.
	PDFPath string `json:"pdf_path,omitempty"`

	// FileRemoved is true when a PDF existed on disk and was removed.
	FileRemoved bool `json:"file_removed"`

	// CleanupErr matches ErrPartialCleanup when artifact removal failed.
	CleanupErr error `json:"-"`
}
