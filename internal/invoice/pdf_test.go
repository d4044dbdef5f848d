package invoice_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billdesk/internal/invoice"
)

// minimalPDF builds a one-page PDF with a correct cross-reference table.
func minimalPDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << >> >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

type fakeRenderer struct {
	mu    sync.Mutex
	calls int
	urls  []string
	fn    func(ctx context.Context) ([]byte, error)
}

func (r *fakeRenderer) RenderPDF(ctx context.Context, url string) ([]byte, error) {
	r.mu.Lock()
	r.calls++
	r.urls = append(r.urls, url)
	r.mu.Unlock()
	return r.fn(ctx)
}

func (r *fakeRenderer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type memoryArchive struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (a *memoryArchive) Put(_ context.Context, key, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.keys == nil {
		a.keys = map[string]bool{}
	}
	a.keys[key] = true
	return nil
}

func (a *memoryArchive) Remove(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.keys, key)
	return nil
}

type pdfFixture struct {
	ledger   *invoice.Ledger
	pipeline *invoice.Pipeline
	renderer *fakeRenderer
	archive  *memoryArchive
	baseDir  string
	logs     *syncBuffer
}

func newPDFFixture(t *testing.T, fn func(ctx context.Context) ([]byte, error), opts ...invoice.PipelineOption) *pdfFixture {
	t.Helper()

	f := &pdfFixture{
		renderer: &fakeRenderer{fn: fn},
		archive:  &memoryArchive{},
		baseDir:  filepath.Join(t.TempDir(), "invoices"),
		logs:     &syncBuffer{},
	}
	artifacts := invoice.NewArtifacts(f.baseDir, f.archive)

	ledger, store, _ := newTestLedger(t, invoice.WithArtifacts(artifacts))
	f.ledger = ledger

	opts = append([]invoice.PipelineOption{invoice.WithPipelineLogger(zerolog.New(f.logs))}, opts...)
	f.pipeline = invoice.NewPipeline(store, f.renderer,
		invoice.URLViews{BaseURL: "http://desk.local/invoice/"}, artifacts, opts...)
	return f
}

func staticPDF(data []byte) func(context.Context) ([]byte, error) {
	return func(context.Context) ([]byte, error) { return data, nil }
}

func TestPipelineRender(t *testing.T) {
	f := newPDFFixture(t, staticPDF(minimalPDF()))
	ctx := context.Background()
	inv := createInvoice(t, f.ledger, "Acme GmbH", 1000)

	path, err := f.pipeline.Render(ctx, inv.InvoiceNumber)
	require.NoError(t, err)

	want := filepath.Join(f.baseDir, "acme_gmbh", "2025", "acme_gmbh_INV-2025-000001.pdf")
	assert.Equal(t, want, path)
	assert.FileExists(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, minimalPDF(), data)

	assert.Equal(t, []string{"http://desk.local/invoice/INV-2025-000001"}, f.renderer.urls)
	assert.True(t, f.archive.keys["acme_gmbh/2025/acme_gmbh_INV-2025-000001.pdf"])

	got, _, err := f.ledger.Get(ctx, inv.InvoiceNumber)
	require.NoError(t, err)
	require.True(t, got.HasPDF())
	assert.Equal(t, path, *got.PDFPath)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	events := f.logs.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, "pdf.generated", events[0]["event"])
	assert.Equal(t, path, events[0]["pdf_path"])
}

func TestPipelineRenderIsRepeatable(t *testing.T) {
	f := newPDFFixture(t, staticPDF(minimalPDF()))
	ctx := context.Background()
	inv := createInvoice(t, f.ledger, "Acme", 1000)

	first, err := f.pipeline.Render(ctx, inv.InvoiceNumber)
	require.NoError(t, err)
	second, err := f.pipeline.Render(ctx, inv.InvoiceNumber)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, f.renderer.Calls())
}

func TestPipelineRenderNotFound(t *testing.T) {
	f := newPDFFixture(t, staticPDF(minimalPDF()))

	_, err := f.pipeline.Render(context.Background(), "INV-2025-000404")
	assert.ErrorIs(t, err, invoice.ErrNotFound)
	assert.Equal(t, 0, f.renderer.Calls())
	assert.NoDirExists(t, f.baseDir)
}

func TestPipelineRenderRejectsNonPDF(t *testing.T) {
	f := newPDFFixture(t, staticPDF([]byte("<html>500 Internal Server Error</html>")))
	ctx := context.Background()
	inv := createInvoice(t, f.ledger, "Acme", 1000)

	_, err := f.pipeline.Render(ctx, inv.InvoiceNumber)
	require.ErrorIs(t, err, invoice.ErrRender)
	assert.False(t, errors.Is(err, invoice.ErrRenderTimeout))

	assert.NoFileExists(t, filepath.Join(f.baseDir, "acme", "2025", "acme_INV-2025-000001.pdf"))
	got, _, err := f.ledger.Get(ctx, inv.InvoiceNumber)
	require.NoError(t, err)
	assert.False(t, got.HasPDF())

	events := f.logs.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, "pdf.failed", events[0]["event"])
	assert.Equal(t, "Acme", events[0]["client"])
}

func TestPipelineRenderFailureKeepsPreviousFile(t *testing.T) {
	fail := false
	f := newPDFFixture(t, func(context.Context) ([]byte, error) {
		if fail {
			return nil, errors.New("net::ERR_CONNECTION_REFUSED")
		}
		return minimalPDF(), nil
	})
	ctx := context.Background()
	inv := createInvoice(t, f.ledger, "Acme", 1000)

	path, err := f.pipeline.Render(ctx, inv.InvoiceNumber)
	require.NoError(t, err)

	fail = true
	_, err = f.pipeline.Render(ctx, inv.InvoiceNumber)
	require.ErrorIs(t, err, invoice.ErrRender)
	assert.Contains(t, err.Error(), "ERR_CONNECTION_REFUSED")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, minimalPDF(), data)
}

type failingPathRepo struct {
	invoice.Repository
}

func (failingPathRepo) SetPDFPath(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestPipelineRenderUnrecordedFileIsRemoved(t *testing.T) {
	baseDir := filepath.Join(t.TempDir(), "invoices")
	artifacts := invoice.NewArtifacts(baseDir, nil)
	ledger, store, _ := newTestLedger(t, invoice.WithArtifacts(artifacts))
	pipeline := invoice.NewPipeline(failingPathRepo{store}, &fakeRenderer{fn: staticPDF(minimalPDF())},
		invoice.URLViews{BaseURL: "http://desk.local/invoice"}, artifacts,
		invoice.WithPipelineLogger(zerolog.Nop()))

	ctx := context.Background()
	inv := createInvoice(t, ledger, "Acme", 1000)

	_, err := pipeline.Render(ctx, inv.InvoiceNumber)
	require.ErrorIs(t, err, invoice.ErrStorage)
	assert.Contains(t, err.Error(), "disk full")

	target, err := artifacts.Path("Acme", inv.InvoiceNumber)
	require.NoError(t, err)
	assert.NoFileExists(t, target)

	got, _, err := ledger.Get(ctx, inv.InvoiceNumber)
	require.NoError(t, err)
	assert.Nil(t, got.PDFPath)
}

func TestPipelineRenderTimeout(t *testing.T) {
	f := newPDFFixture(t, func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, invoice.WithRenderTimeout(20*time.Millisecond))
	inv := createInvoice(t, f.ledger, "Acme", 1000)

	_, err := f.pipeline.Render(context.Background(), inv.InvoiceNumber)
	require.ErrorIs(t, err, invoice.ErrRenderTimeout)
	assert.ErrorIs(t, err, invoice.ErrRender)
	assert.NoDirExists(t, filepath.Join(f.baseDir, "acme"))
}

func TestPipelineRenderOutlivesCancelledCaller(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f := newPDFFixture(t, func(ctx context.Context) ([]byte, error) {
		once.Do(func() { close(started) })
		select {
		case <-release:
			return minimalPDF(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	inv := createInvoice(t, f.ledger, "Acme", 1000)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.pipeline.Render(firstCtx, inv.InvoiceNumber)
		firstErr <- err
	}()
	<-started

	type outcome struct {
		path string
		err  error
	}
	second := make(chan outcome, 1)
	go func() {
		path, err := f.pipeline.Render(context.Background(), inv.InvoiceNumber)
		second <- outcome{path, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.FileExists(t, got.path)
	assert.Equal(t, 1, f.renderer.Calls())
}

func TestPipelineRenderInProgress(t *testing.T) {
	f := newPDFFixture(t, staticPDF(minimalPDF()), invoice.WithRenderGuard(busyGuard{}))
	inv := createInvoice(t, f.ledger, "Acme", 1000)

	_, err := f.pipeline.Render(context.Background(), inv.InvoiceNumber)
	assert.ErrorIs(t, err, invoice.ErrRenderInProgress)
	assert.Equal(t, 0, f.renderer.Calls())
}

type busyGuard struct{}

func (busyGuard) Do(context.Context, string, func() (string, error)) (string, error) {
	return "", invoice.ErrRenderInProgress
}

func TestPipelineThenDeleteRemovesArtifacts(t *testing.T) {
	f := newPDFFixture(t, staticPDF(minimalPDF()))
	ctx := context.Background()
	inv := createInvoice(t, f.ledger, "Acme", 1000)

	path, err := f.pipeline.Render(ctx, inv.InvoiceNumber)
	require.NoError(t, err)
	require.Len(t, f.archive.keys, 1)

	result, err := f.ledger.Delete(ctx, inv.InvoiceNumber)
	require.NoError(t, err)
	assert.True(t, result.FileRemoved)
	assert.NoFileExists(t, path)
	assert.Empty(t, f.archive.keys)
}

func TestPDFCheck(t *testing.T) {
	assert.NoError(t, invoice.PDFCheck(minimalPDF()))
	assert.Error(t, invoice.PDFCheck(nil))
	assert.Error(t, invoice.PDFCheck([]byte("%PDF-1.4\ngarbage")))
}

func TestURLViews(t *testing.T) {
	v := invoice.URLViews{BaseURL: "http://localhost:3000/invoice/"}
	assert.Equal(t, "http://localhost:3000/invoice/INV-2025-000001", v.InvoiceURL("INV-2025-000001"))
}
