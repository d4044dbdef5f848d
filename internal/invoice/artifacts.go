package invoice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Archive mirrors generated PDFs to secondary storage.
type Archive interface {
	Put(ctx context.Context, key, path string) error
	Remove(ctx context.Context, key string) error
}

var unsafeRun = regexp.MustCompile(`[^a-z0-9]+`)

// SafeFileName lower-cases text, collapses every run of characters outside
// [a-z0-9] to a single underscore and trims leading/trailing underscores.
func SafeFileName(text string) string {
	return strings.Trim(unsafeRun.ReplaceAllString(strings.ToLower(text), "_"), "_")
}

// Artifacts owns the on-disk layout of invoice PDFs:
//
//	<BaseDir>/<client>/<year>/<client>_<invoice number>.pdf
//
// Downstream tooling relies on this shape.
type Artifacts struct {
	BaseDir string

	// Archive is optional.
	Archive Archive
}

// NewArtifacts creates an artifact layout rooted at baseDir.
func NewArtifacts(baseDir string, archive Archive) *Artifacts {
	return &Artifacts{BaseDir: baseDir, Archive: archive}
}

// Path returns the target file for an invoice. The year segment is the
// allocation year carried in the invoice number, so the path never moves.
func (a *Artifacts) Path(client, invoiceNumber string) (string, error) {
	year, _, err := ParseNumber(invoiceNumber)
	if err != nil {
		return "", err
	}
	dir := SafeFileName(client)
	if dir == "" {
		return "", NewValidationError("client", client, "produces an empty file name")
	}
	name := fmt.Sprintf("%s_%s.pdf", dir, invoiceNumber)
	return filepath.Join(a.BaseDir, dir, strconv.Itoa(year), name), nil
}

// Key returns the archive object key for a file under BaseDir.
func (a *Artifacts) Key(path string) string {
	rel, err := filepath.Rel(a.BaseDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

// Remove deletes the PDF at path and its archived copy. It reports whether
// a file was present and removed. A missing file is not an error.
func (a *Artifacts) Remove(ctx context.Context, path string) (bool, error) {
	var removed bool
	var errs []error

	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
		} else {
			removed = true
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, err)
	}

	if a.Archive != nil {
		if err := a.Archive.Remove(ctx, a.Key(path)); err != nil {
			errs = append(errs, fmt.Errorf("archive: %w", err))
		}
	}

	if len(errs) > 0 {
		return removed, fmt.Errorf("%w: %w", ErrPartialCleanup, errors.Join(errs...))
	}
	return removed, nil
}
