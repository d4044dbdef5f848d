package invoice

import (
	"strings"
	"time"

	"billdesk/pkg/models"
)

// normalize trims the free-text fields of a request and upper-cases the mode.
func (r CreateRequest) normalize() CreateRequest {
	r.Client = strings.TrimSpace(r.Client)
	r.Description = strings.TrimSpace(r.Description)
	r.Reference = strings.TrimSpace(r.Reference)
	r.InvoiceDate = strings.TrimSpace(r.InvoiceDate)
	r.DueDate = strings.TrimSpace(r.DueDate)
	r.Terms = strings.TrimSpace(r.Terms)
	r.Mode = models.InstallmentMode(strings.ToUpper(strings.TrimSpace(string(r.Mode))))
	if r.Mode == "" {
		r.Mode = models.ModeNone
	}
	return r
}

// Validate checks a creation request before any number is allocated, so
// rejected input never consumes a sequence value.
func (r CreateRequest) Validate() error {
	if r.Client == "" {
		return NewValidationError("client", r.Client, "is required")
	}
	if r.Total <= 0 {
		return NewValidationError("total", r.Total, "must be a positive amount in minor units")
	}
	if err := validateDate("invoice_date", r.InvoiceDate); err != nil {
		return err
	}
	if err := validateDate("due_date", r.DueDate); err != nil {
		return err
	}
	if _, err := ParseMode(string(r.Mode)); err != nil {
		return err
	}
	return nil
}

func validateDate(field, value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.Parse(models.DateLayout, value); err != nil {
		return NewValidationError(field, value, "must be a date in YYYY-MM-DD format")
	}
	return nil
}

// ParseMode maps user input to an installment mode. Empty input means NONE.
func ParseMode(s string) (models.InstallmentMode, error) {
	switch m := models.InstallmentMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case "":
		return models.ModeNone, nil
	case models.ModeNone, models.ModeEqual, models.ModeManual:
		return m, nil
	default:
		return "", NewValidationError("installment_mode", s, "must be NONE, EQUAL or MANUAL")
	}
}

// ParseFilter maps the list selector (all, active, cancelled) to a filter.
// Unknown values fall back to all, as the desk's list view always did.
func ParseFilter(s string) ListFilter {
	switch ListFilter(strings.ToLower(strings.TrimSpace(s))) {
	case FilterActive:
		return FilterActive
	case FilterCancelled:
		return FilterCancelled
	default:
		return FilterAll
	}
}

func (f ListFilter) status() models.Status {
	switch f {
	case FilterActive:
		return models.StatusActive
	case FilterCancelled:
		return models.StatusCancelled
	default:
		return ""
	}
}
