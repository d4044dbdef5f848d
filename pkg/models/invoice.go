package models

// Status is the lifecycle state of an invoice.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCancelled Status = "CANCELLED"
)

// InstallmentMode selects how an invoice's total is split into obligations.
type InstallmentMode string

const (
	ModeNone   InstallmentMode = "NONE"   // paid in full by the invoice due date
	ModeEqual  InstallmentMode = "EQUAL"  // N monthly installments of equal size
	ModeManual InstallmentMode = "MANUAL" // caller-supplied amounts and due dates
)

// DateLayout is the on-disk and on-the-wire format of every date field.
const DateLayout = "2006-01-02"

type Invoice struct {
	// Core identifiers
	ID            int64  `db:"id" json:"id"`                         // Store-assigned surrogate key
	InvoiceNumber string `db:"invoice_number" json:"invoice_number"` // INV-<year>-<6-digit sequence>

	// Party
	Client string `db:"client" json:"client"`

	// Amounts (minor currency units to avoid float issues)
	Total   int64 `db:"total" json:"total"`     // Immutable after creation
	Paid    int64 `db:"paid" json:"paid"`       // Starts at 0
	Balance int64 `db:"balance" json:"balance"` // Always Total - Paid

	// Status
	Status Status `db:"status" json:"status"`

	// Free-text metadata
	Description string `db:"description" json:"description,omitempty"`
	Reference   string `db:"reference" json:"reference,omitempty"`
	Terms       string `db:"terms" json:"terms,omitempty"`

	// Dates (YYYY-MM-DD, may be empty)
	InvoiceDate string `db:"invoice_date" json:"invoice_date,omitempty"`
	DueDate     string `db:"due_date" json:"due_date,omitempty"`

	InstallmentMode InstallmentMode `db:"installment_mode" json:"installment_mode"`

	// PDFPath is set once a PDF artifact has been generated
	PDFPath *string `db:"pdf_path" json:"pdf_path,omitempty"`
}

// Installment is one scheduled partial-payment obligation owned by an invoice.
type Installment struct {
	ID        int64   `db:"id" json:"id"`
	InvoiceID int64   `db:"invoice_id" json:"invoice_id"`
	Amount    int64   `db:"amount" json:"amount"`
	DueOn     string  `db:"due_on" json:"due_on"`
	PaidOn    *string `db:"paid_on" json:"paid_on,omitempty"`
}

// InvoiceNumberCounter is the per-year sequence row behind invoice numbering.
type InvoiceNumberCounter struct {
	Year    int   `db:"year" json:"year"`
	Counter int64 `db:"counter" json:"counter"`
}

// HasPDF reports whether a PDF path has been recorded for the invoice.
func (i *Invoice) HasPDF() bool {
	return i.PDFPath != nil && *i.PDFPath != ""
}

// IsCancelled reports whether the invoice has been cancelled.
func (i *Invoice) IsCancelled() bool {
	return i.Status == StatusCancelled
}

// Sum returns the total of the installment amounts.
func Sum(items []Installment) int64 {
	var total int64
	for _, it := range items {
		total += it.Amount
	}
	return total
}
