package invoice

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"billdesk/internal/logger"
	"billdesk/pkg/models"
)

// Ledger owns the lifecycle of invoices: creation with numbering and
// scheduling, cancellation, deletion and read-only projections.
type Ledger struct {
	store     Store
	allocator *Allocator
	scheduler *Scheduler
	artifacts *Artifacts
	clock     Clock
	log       zerolog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the clock used for allocation years and EQUAL due dates.
func WithClock(clock Clock) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithScheduler replaces the default (RemainderDrop) scheduler.
func WithScheduler(s *Scheduler) Option {
	return func(l *Ledger) {
		if s != nil {
			l.scheduler = s
		}
	}
}

// WithArtifacts sets the artifact layout used to clean up PDFs on delete.
func WithArtifacts(a *Artifacts) Option {
	return func(l *Ledger) {
		if a != nil {
			l.artifacts = a
		}
	}
}

// WithLogger sets the logger lifecycle events are written to.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Ledger) {
		l.log = log
	}
}

// NewLedger creates a ledger over store.
func NewLedger(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:     store,
		scheduler: NewScheduler(RemainderDrop),
		artifacts: &Artifacts{},
		clock:     time.Now,
		log:       logger.WithComponent("ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.allocator = NewAllocator(store, l.clock)
	return l
}

// Allocator returns the allocator the ledger issues numbers with.
func (l *Ledger) Allocator() *Allocator {
	return l.allocator
}

// Create validates req, allocates a number and stores the invoice together
// with its installment schedule. Either all rows are written, counter
// included, or none are.
func (l *Ledger) Create(ctx context.Context, req CreateRequest) (*models.Invoice, []models.Installment, error) {
	const op = "Create"

	req = req.normalize()
	if err := req.Validate(); err != nil {
		return nil, nil, newLedgerError(op, "", ErrValidation, err)
	}

	items, err := l.scheduler.Schedule(req.Total, req.Mode, req.Params, l.clock())
	if err != nil {
		return nil, nil, newLedgerError(op, "", ErrValidation, err)
	}

	inv := &models.Invoice{
		Client:          req.Client,
		Total:           req.Total,
		Paid:            0,
		Balance:         req.Total,
		Status:          models.StatusActive,
		Description:     req.Description,
		Reference:       req.Reference,
		InvoiceDate:     req.InvoiceDate,
		DueDate:         req.DueDate,
		Terms:           req.Terms,
		InstallmentMode: req.Mode,
	}

	err = l.store.InTx(ctx, func(tx Repository) error {
		number, err := l.allocator.NextIn(ctx, tx)
		if err != nil {
			return err
		}
		inv.InvoiceNumber = number

		id, err := tx.InsertInvoice(ctx, inv)
		if err != nil {
			return storageError(op, number, err)
		}
		inv.ID = id

		for i := range items {
			items[i].InvoiceID = id
		}
		if len(items) > 0 {
			if err := tx.InsertInstallments(ctx, id, items); err != nil {
				return storageError(op, number, err)
			}
		}
		return nil
	})
	if err != nil {
		err = storageError(op, inv.InvoiceNumber, err)
		logger.Failure(l.log, logger.EventInvoiceCreated, err).
			Str("client", req.Client).
			Msg("Failed to create invoice")
		return nil, nil, err
	}

	logger.Success(l.log, logger.EventInvoiceCreated).
		Str("invoice_number", inv.InvoiceNumber).
		Str("client", inv.Client).
		Int64("total", inv.Total).
		Str("installment_mode", string(inv.InstallmentMode)).
		Int("installments", len(items)).
		Msg("Invoice created")

	return inv, items, nil
}

// Cancel moves an ACTIVE invoice to CANCELLED. Cancelling an invoice that
// is already CANCELLED changes nothing and is not an error.
func (l *Ledger) Cancel(ctx context.Context, invoiceNumber string) (*models.Invoice, error) {
	const op = "Cancel"

	changed, err := l.store.CancelInvoice(ctx, invoiceNumber)
	if err != nil {
		err = storageError(op, invoiceNumber, err)
		logger.Failure(l.log, logger.EventInvoiceCancelled, err).
			Str("invoice_number", invoiceNumber).
			Msg("Failed to cancel invoice")
		return nil, err
	}

	inv, err := l.store.GetInvoice(ctx, invoiceNumber)
	if err != nil {
		return nil, storageError(op, invoiceNumber, err)
	}

	if changed {
		logger.Success(l.log, logger.EventInvoiceCancelled).
			Str("invoice_number", inv.InvoiceNumber).
			Str("client", inv.Client).
			Msg("Invoice cancelled")
	} else {
		l.log.Debug().
			Str("invoice_number", invoiceNumber).
			Msg("Invoice already cancelled")
	}
	return inv, nil
}

// Delete removes an invoice, its installments and its PDF. Row deletion is
// the operation's outcome; artifact cleanup is best effort and reported in
// the result only.
func (l *Ledger) Delete(ctx context.Context, invoiceNumber string) (*DeleteResult, error) {
	const op = "Delete"

	inv, err := l.store.GetInvoice(ctx, invoiceNumber)
	if err != nil {
		return nil, storageError(op, invoiceNumber, err)
	}

	err = l.store.InTx(ctx, func(tx Repository) error {
		if err := tx.DeleteInstallments(ctx, inv.ID); err != nil {
			return err
		}
		return tx.DeleteInvoice(ctx, inv.ID)
	})
	if err != nil {
		err = storageError(op, invoiceNumber, err)
		logger.Failure(l.log, logger.EventInvoiceDeleted, err).
			Str("invoice_number", invoiceNumber).
			Msg("Failed to delete invoice")
		return nil, err
	}

	result := &DeleteResult{InvoiceNumber: invoiceNumber, RowsDeleted: true}
	if inv.HasPDF() {
		result.PDFPath = *inv.PDFPath
		result.FileRemoved, result.CleanupErr = l.artifacts.Remove(ctx, result.PDFPath)
		if result.CleanupErr != nil {
			l.log.Warn().
				Err(result.CleanupErr).
				Str("invoice_number", invoiceNumber).
				Str("pdf_path", result.PDFPath).
				Msg("Invoice deleted but PDF cleanup failed")
		}
	}

	logger.Success(l.log, logger.EventInvoiceDeleted).
		Str("invoice_number", invoiceNumber).
		Str("client", inv.Client).
		Bool("file_removed", result.FileRemoved).
		Msg("Invoice deleted")

	return result, nil
}

// Get returns an invoice and its installments.
func (l *Ledger) Get(ctx context.Context, invoiceNumber string) (*models.Invoice, []models.Installment, error) {
	const op = "Get"

	inv, err := l.store.GetInvoice(ctx, invoiceNumber)
	if err != nil {
		return nil, nil, storageError(op, invoiceNumber, err)
	}
	items, err := l.store.ListInstallments(ctx, inv.ID)
	if err != nil {
		return nil, nil, storageError(op, invoiceNumber, err)
	}
	return inv, items, nil
}

// List returns the invoices selected by filter, newest first, with a
// per-status summary. A failing summary degrades to zero counts.
func (l *Ledger) List(ctx context.Context, filter ListFilter) (*ListResult, error) {
	const op = "List"

	invoices, err := l.store.ListInvoices(ctx, filter.status())
	if err != nil {
		err = storageError(op, "", err)
		l.log.Error().Err(err).Str("filter", string(filter)).Msg("Failed to list invoices")
		return nil, err
	}
	if invoices == nil {
		invoices = []models.Invoice{}
	}

	result := &ListResult{Filter: filter, Invoices: invoices}
	counts, err := l.store.CountByStatus(ctx)
	if err != nil {
		result.CountsErr = storageError(op, "", err)
		l.log.Error().Err(err).Msg("Failed to count invoices by status")
		return result, nil
	}
	result.Counts = StatusCounts{
		Active:    counts[models.StatusActive],
		Cancelled: counts[models.StatusCancelled],
	}
	return result, nil
}
