package invoice

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"billdesk/internal/logger"
)

// NumberPrefix starts every invoice number.
const NumberPrefix = "INV"

var numberPattern = regexp.MustCompile(`^INV-(\d{4})-(\d{6,})$`)

// FormatNumber renders an invoice number as INV-<year>-<6-digit sequence>.
func FormatNumber(year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%06d", NumberPrefix, year, seq)
}

// ParseNumber splits an invoice number into its year and sequence.
func ParseNumber(number string) (int, int64, error) {
	m := numberPattern.FindStringSubmatch(number)
	if m == nil {
		return 0, 0, NewValidationError("invoice_number", number, "expected INV-<year>-<6-digit sequence>")
	}
	year, _ := strconv.Atoi(m[1])
	seq, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0, 0, NewValidationError("invoice_number", number, "sequence out of range")
	}
	return year, seq, nil
}

// Allocator issues invoice numbers. It holds no counter state of its own:
// every call delegates to the store's atomic increment, so numbers stay
// unique across goroutines and processes sharing the store.
type Allocator struct {
	store SequenceStore
	clock Clock
	log   zerolog.Logger
}

// NewAllocator creates an allocator over store. A nil clock uses time.Now.
func NewAllocator(store SequenceStore, clock Clock) *Allocator {
	if clock == nil {
		clock = time.Now
	}
	return &Allocator{
		store: store,
		clock: clock,
		log:   logger.WithComponent("allocator"),
	}
}

// Next allocates the next invoice number for the current calendar year.
func (a *Allocator) Next(ctx context.Context) (string, error) {
	return a.NextIn(ctx, a.store)
}

// NextIn allocates against seq instead of the allocator's own store. The
// ledger passes a transaction-scoped repository so that a failed create
// also rolls the counter back.
func (a *Allocator) NextIn(ctx context.Context, seq SequenceStore) (string, error) {
	const op = "Allocate"

	year := a.clock().Year()
	n, err := seq.NextSequence(ctx, year)
	if err != nil {
		a.log.Error().
			Err(err).
			Int("year", year).
			Msg("Failed to advance invoice counter")
		return "", storageError(op, "", err)
	}

	number := FormatNumber(year, n)
	a.log.Debug().
		Int("year", year).
		Int64("sequence", n).
		Str("invoice_number", number).
		Msg("Allocated invoice number")
	return number, nil
}
