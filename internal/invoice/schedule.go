package invoice

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"billdesk/internal/logger"
	"billdesk/pkg/models"
)

// RemainderPolicy decides what happens to total % months in EQUAL mode.
type RemainderPolicy int

const (
	// RemainderDrop floors every installment and leaves the remainder
	// unscheduled: the installments may sum to up to months-1 less than the
	// total. This is how the desk has always split invoices.
	RemainderDrop RemainderPolicy = iota

	// RemainderToLast adds the remainder to the final installment so the
	// schedule sums exactly to the total.
	RemainderToLast
)

// String returns the configuration name of the policy.
func (p RemainderPolicy) String() string {
	switch p {
	case RemainderToLast:
		return "last"
	default:
		return "drop"
	}
}

// ParseRemainderPolicy maps a configuration value to a policy.
func ParseRemainderPolicy(s string) (RemainderPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop":
		return RemainderDrop, nil
	case "last":
		return RemainderToLast, nil
	default:
		return RemainderDrop, NewValidationError("remainder_policy", s, "must be drop or last")
	}
}

// ScheduleParams are the mode-specific inputs of Schedule.
type ScheduleParams struct {
	// Months is the installment count for EQUAL mode.
	Months int

	// Amounts and DueDates are paired positionally for MANUAL mode.
	Amounts  []string
	DueDates []string
}

// SkippedEntry describes a MANUAL pair that was not materialised.
type SkippedEntry struct {
	Index  int
	Amount string
	DueOn  string
	Reason string
}

// Scheduler materialises installment obligations. It never touches the
// store; the ledger persists what it returns.
type Scheduler struct {
	Remainder RemainderPolicy
	log       zerolog.Logger
}

// NewScheduler creates a scheduler with the given remainder policy.
func NewScheduler(policy RemainderPolicy) *Scheduler {
	return &Scheduler{
		Remainder: policy,
		log:       logger.WithComponent("scheduler"),
	}
}

// Schedule returns the installments for total under mode, ordered as they
// will be stored. createdOn anchors EQUAL due dates.
func (s *Scheduler) Schedule(total int64, mode models.InstallmentMode, params ScheduleParams, createdOn time.Time) ([]models.Installment, error) {
	items, skipped, err := s.schedule(total, mode, params, createdOn)
	if err != nil {
		return nil, err
	}
	for _, sk := range skipped {
		s.log.Warn().
			Int("index", sk.Index).
			Str("amount", sk.Amount).
			Str("due_on", sk.DueOn).
			Str("reason", sk.Reason).
			Msg("Skipped manual installment entry")
	}
	return items, nil
}

func (s *Scheduler) schedule(total int64, mode models.InstallmentMode, params ScheduleParams, createdOn time.Time) ([]models.Installment, []SkippedEntry, error) {
	switch mode {
	case models.ModeNone, "":
		return []models.Installment{}, nil, nil
	case models.ModeEqual:
		items, err := s.equal(total, params.Months, createdOn)
		return items, nil, err
	case models.ModeManual:
		items, skipped := manual(params.Amounts, params.DueDates)
		return items, skipped, nil
	default:
		return nil, nil, NewValidationError("installment_mode", mode, "must be NONE, EQUAL or MANUAL")
	}
}

func (s *Scheduler) equal(total int64, months int, createdOn time.Time) ([]models.Installment, error) {
	if months <= 0 {
		return nil, NewValidationError("months", months, "must be a positive integer")
	}

	per := total / int64(months)
	items := make([]models.Installment, months)
	for i := 1; i <= months; i++ {
		items[i-1] = models.Installment{
			Amount: per,
			DueOn:  createdOn.AddDate(0, i, 0).Format(models.DateLayout),
		}
	}

	if s.Remainder == RemainderToLast {
		items[months-1].Amount += total % int64(months)
	}
	return items, nil
}

// manual pairs amounts with due dates. Blank or malformed entries are
// skipped rather than rejected; reconciling the sum against the invoice
// total is left to the caller.
func manual(amounts, dueDates []string) ([]models.Installment, []SkippedEntry) {
	n := len(amounts)
	if len(dueDates) > n {
		n = len(dueDates)
	}

	items := make([]models.Installment, 0, n)
	var skipped []SkippedEntry
	for i := 0; i < n; i++ {
		amount := strings.TrimSpace(at(amounts, i))
		due := strings.TrimSpace(at(dueDates, i))

		if amount == "" || due == "" {
			skipped = append(skipped, SkippedEntry{Index: i, Amount: amount, DueOn: due, Reason: "missing amount or due date"})
			continue
		}
		value, err := strconv.ParseInt(amount, 10, 64)
		if err != nil {
			skipped = append(skipped, SkippedEntry{Index: i, Amount: amount, DueOn: due, Reason: "amount is not an integer"})
			continue
		}
		if _, err := time.Parse(models.DateLayout, due); err != nil {
			skipped = append(skipped, SkippedEntry{Index: i, Amount: amount, DueOn: due, Reason: fmt.Sprintf("due date is not %s", models.DateLayout)})
			continue
		}

		items = append(items, models.Installment{Amount: value, DueOn: due})
	}
	return items, skipped
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}
