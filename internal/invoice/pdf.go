package invoice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"

	"billdesk/internal/logger"
	"billdesk/pkg/models"
)

// DefaultRenderTimeout bounds a single render when none is configured.
const DefaultRenderTimeout = 60 * time.Second

// persistTimeout bounds writing, recording and archiving a rendered file.
const persistTimeout = 30 * time.Second

// PDFValidator rejects bytes that are not a usable PDF.
type PDFValidator func(data []byte) error

var disableConfigDir sync.Once

// PDFCheck validates data with pdfcpu in relaxed mode and requires at
// least one page.
func PDFCheck(data []byte) error {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return errors.New("missing %PDF- header")
	}

	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return fmt.Errorf("pdf validation: %w", err)
	}
	pages, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return fmt.Errorf("pdf page count: %w", err)
	}
	if pages < 1 {
		return errors.New("pdf has no pages")
	}
	return nil
}

// URLViews locates invoice detail views below a base URL.
type URLViews struct {
	BaseURL string
}

// InvoiceURL implements ViewLocator.
func (v URLViews) InvoiceURL(invoiceNumber string) string {
	return strings.TrimRight(v.BaseURL, "/") + "/" + url.PathEscape(invoiceNumber)
}

// Pipeline renders invoices to PDF files at their deterministic path and
// records the path on the invoice.
type Pipeline struct {
	repo      Repository
	renderer  Renderer
	views     ViewLocator
	artifacts *Artifacts
	guard     RenderGuard
	validate  PDFValidator
	timeout   time.Duration
	log       zerolog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithRenderTimeout bounds each render. Non-positive values are ignored.
func WithRenderTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithRenderGuard replaces the in-process de-duplication guard, typically
// with a lock shared between processes.
func WithRenderGuard(g RenderGuard) PipelineOption {
	return func(p *Pipeline) {
		if g != nil {
			p.guard = g
		}
	}
}

// WithPDFValidator replaces PDFCheck.
func WithPDFValidator(v PDFValidator) PipelineOption {
	return func(p *Pipeline) {
		if v != nil {
			p.validate = v
		}
	}
}

// WithPipelineLogger sets the logger lifecycle events are written to.
func WithPipelineLogger(log zerolog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.log = log
	}
}

// NewPipeline creates a PDF pipeline.
func NewPipeline(repo Repository, renderer Renderer, views ViewLocator, artifacts *Artifacts, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		repo:      repo,
		renderer:  renderer,
		views:     views,
		artifacts: artifacts,
		guard:     NewLocalGuard(),
		validate:  PDFCheck,
		timeout:   DefaultRenderTimeout,
		log:       logger.WithComponent("pdf"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Render produces the PDF of an invoice and returns its path. An unknown
// invoice fails with ErrNotFound before anything is rendered or written.
func (p *Pipeline) Render(ctx context.Context, invoiceNumber string) (string, error) {
	const op = "Render"

	inv, err := p.repo.GetInvoice(ctx, invoiceNumber)
	if err != nil {
		return "", storageError(op, invoiceNumber, err)
	}

	target, err := p.artifacts.Path(inv.Client, inv.InvoiceNumber)
	if err != nil {
		return "", newLedgerError(op, invoiceNumber, ErrValidation, err)
	}

	path, err := p.guard.Do(ctx, inv.InvoiceNumber, func() (string, error) {
		// Coalesced callers share this render; it must not end with the
		// context of whichever caller started it.
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout+persistTimeout)
		defer cancel()
		return p.render(wctx, inv, target)
	})
	if err != nil {
		if errors.Is(err, ErrRenderInProgress) {
			err = newLedgerError(op, invoiceNumber, ErrRenderInProgress, nil)
		} else if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrRenderTimeout) {
			err = newLedgerError(op, invoiceNumber, ErrRenderTimeout, fmt.Errorf("%w: %w", ErrRender, err))
		}
		logger.Failure(p.log, logger.EventPDFFailed, err).
			Str("invoice_number", invoiceNumber).
			Str("client", inv.Client).
			Msg("PDF generation failed")
		return "", err
	}
	return path, nil
}

func (p *Pipeline) render(ctx context.Context, inv *models.Invoice, target string) (string, error) {
	const op = "Render"
	number := inv.InvoiceNumber

	rctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	data, err := p.renderer.RenderPDF(rctx, p.views.InvoiceURL(number))
	if err == nil && rctx.Err() != nil {
		err = rctx.Err()
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(rctx.Err(), context.DeadlineExceeded) {
			return "", newLedgerError(op, number, ErrRenderTimeout, fmt.Errorf("%w: after %s: %w", ErrRender, p.timeout, err))
		}
		return "", newLedgerError(op, number, ErrRender, err)
	}

	if err := p.validate(data); err != nil {
		return "", newLedgerError(op, number, ErrRender, err)
	}

	if err := writeFileAtomic(target, data); err != nil {
		return "", newLedgerError(op, number, ErrStorage, err)
	}

	if err := p.repo.SetPDFPath(ctx, number, target); err != nil {
		// An unrecorded file is unreachable by Delete.
		if inv.PDFPath == nil || *inv.PDFPath != target {
			if rmErr := os.Remove(target); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				p.log.Warn().
					Err(rmErr).
					Str("invoice_number", number).
					Str("pdf_path", target).
					Msg("Failed to remove unrecorded PDF")
			}
		}
		return "", storageError(op, number, err)
	}

	if p.artifacts.Archive != nil {
		if err := p.artifacts.Archive.Put(ctx, p.artifacts.Key(target), target); err != nil {
			p.log.Warn().
				Err(err).
				Str("invoice_number", number).
				Str("pdf_path", target).
				Msg("Failed to archive PDF")
		}
	}

	logger.Success(p.log, logger.EventPDFGenerated).
		Str("invoice_number", number).
		Str("client", inv.Client).
		Str("pdf_path", target).
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("PDF generated")

	return target, nil
}

// writeFileAtomic publishes data at path through a synced temp file in the
// same directory, so path never holds a partial file.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
