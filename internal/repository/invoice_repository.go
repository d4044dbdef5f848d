// Package repository persists invoices, installments and the per-year
// invoice counters with sqlx.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"billdesk/internal/invoice"
	"billdesk/pkg/models"
)

// compile-time interface checks
var (
	_ invoice.Repository = (*InvoiceRepository)(nil)
	_ invoice.Store      = (*SQLStore)(nil)
)

const invoiceColumns = `id, invoice_number, client, total, paid, balance, status,
    description, reference, terms, invoice_date, due_date, installment_mode, pdf_path`

// InvoiceRepository runs single statements against a database or an open
// transaction. Queries are written with ? placeholders and rebound for the
// driver in use.
type InvoiceRepository struct {
	ext sqlx.ExtContext
}

// NewInvoiceRepository creates a repository over ext.
func NewInvoiceRepository(ext sqlx.ExtContext) *InvoiceRepository {
	return &InvoiceRepository{ext: ext}
}

// NextSequence advances the counter for year in one statement.
func (r *InvoiceRepository) NextSequence(ctx context.Context, year int) (int64, error) {
	query := r.ext.Rebind(`
        INSERT INTO invoice_counters (year, counter) VALUES (?, 1)
        ON CONFLICT (year) DO UPDATE SET counter = invoice_counters.counter + 1
        RETURNING counter`)

	var counter int64
	if err := r.ext.QueryRowxContext(ctx, query, year).Scan(&counter); err != nil {
		return 0, fmt.Errorf("advance counter for %d: %w", year, mapError(err))
	}
	return counter, nil
}

func (r *InvoiceRepository) InsertInvoice(ctx context.Context, inv *models.Invoice) (int64, error) {
	query, args, err := sqlx.Named(`
        INSERT INTO invoices (
            invoice_number, client, total, paid, balance, status,
            description, reference, terms, invoice_date, due_date,
            installment_mode, pdf_path
        ) VALUES (
            :invoice_number, :client, :total, :paid, :balance, :status,
            :description, :reference, :terms, :invoice_date, :due_date,
            :installment_mode, :pdf_path
        ) RETURNING id`, inv)
	if err != nil {
		return 0, fmt.Errorf("bind invoice: %w", err)
	}

	var id int64
	if err := r.ext.QueryRowxContext(ctx, r.ext.Rebind(query), args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert invoice %s: %w", inv.InvoiceNumber, mapError(err))
	}
	return id, nil
}

func (r *InvoiceRepository) InsertInstallments(ctx context.Context, invoiceID int64, items []models.Installment) error {
	query := r.ext.Rebind(`INSERT INTO installments (invoice_id, amount, due_on, paid_on) VALUES (?, ?, ?, ?)`)
	for i, it := range items {
		if _, err := r.ext.ExecContext(ctx, query, invoiceID, it.Amount, it.DueOn, it.PaidOn); err != nil {
			return fmt.Errorf("insert installment %d of invoice %d: %w", i, invoiceID, mapError(err))
		}
	}
	return nil
}

func (r *InvoiceRepository) GetInvoice(ctx context.Context, invoiceNumber string) (*models.Invoice, error) {
	var inv models.Invoice
	query := r.ext.Rebind(`SELECT ` + invoiceColumns + ` FROM invoices WHERE invoice_number = ?`)
	if err := sqlx.GetContext(ctx, r.ext, &inv, query, invoiceNumber); err != nil {
		return nil, fmt.Errorf("get invoice %s: %w", invoiceNumber, mapError(err))
	}
	return &inv, nil
}

func (r *InvoiceRepository) ListInstallments(ctx context.Context, invoiceID int64) ([]models.Installment, error) {
	items := []models.Installment{}
	query := r.ext.Rebind(`
        SELECT id, invoice_id, amount, due_on, paid_on
        FROM installments WHERE invoice_id = ? ORDER BY due_on, id`)
	if err := sqlx.SelectContext(ctx, r.ext, &items, query, invoiceID); err != nil {
		return nil, fmt.Errorf("list installments of invoice %d: %w", invoiceID, mapError(err))
	}
	return items, nil
}

func (r *InvoiceRepository) ListInvoices(ctx context.Context, status models.Status) ([]models.Invoice, error) {
	invoices := []models.Invoice{}

	var err error
	if status == "" {
		err = sqlx.SelectContext(ctx, r.ext, &invoices,
			`SELECT `+invoiceColumns+` FROM invoices ORDER BY id DESC`)
	} else {
		err = sqlx.SelectContext(ctx, r.ext, &invoices,
			r.ext.Rebind(`SELECT `+invoiceColumns+` FROM invoices WHERE status = ? ORDER BY id DESC`), string(status))
	}
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", mapError(err))
	}
	return invoices, nil
}

func (r *InvoiceRepository) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	var rows []struct {
		Status models.Status `db:"status"`
		Count  int           `db:"n"`
	}
	if err := sqlx.SelectContext(ctx, r.ext, &rows,
		`SELECT status, COUNT(*) AS n FROM invoices GROUP BY status`); err != nil {
		return nil, fmt.Errorf("count invoices: %w", mapError(err))
	}

	counts := make(map[models.Status]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// CancelInvoice only touches ACTIVE rows, so a second cancel reports false.
func (r *InvoiceRepository) CancelInvoice(ctx context.Context, invoiceNumber string) (bool, error) {
	query := r.ext.Rebind(`UPDATE invoices SET status = ? WHERE invoice_number = ? AND status = ?`)
	res, err := r.ext.ExecContext(ctx, query, string(models.StatusCancelled), invoiceNumber, string(models.StatusActive))
	if err != nil {
		return false, fmt.Errorf("cancel invoice %s: %w", invoiceNumber, mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel invoice %s: %w", invoiceNumber, err)
	}
	return n > 0, nil
}

func (r *InvoiceRepository) DeleteInstallments(ctx context.Context, invoiceID int64) error {
	query := r.ext.Rebind(`DELETE FROM installments WHERE invoice_id = ?`)
	if _, err := r.ext.ExecContext(ctx, query, invoiceID); err != nil {
		return fmt.Errorf("delete installments of invoice %d: %w", invoiceID, mapError(err))
	}
	return nil
}

func (r *InvoiceRepository) DeleteInvoice(ctx context.Context, invoiceID int64) error {
	query := r.ext.Rebind(`DELETE FROM invoices WHERE id = ?`)
	return r.execOne(ctx, fmt.Sprintf("delete invoice %d", invoiceID), query, invoiceID)
}

func (r *InvoiceRepository) SetPDFPath(ctx context.Context, invoiceNumber, path string) error {
	query := r.ext.Rebind(`UPDATE invoices SET pdf_path = ? WHERE invoice_number = ?`)
	return r.execOne(ctx, "set pdf path of "+invoiceNumber, query, path, invoiceNumber)
}

// execOne runs a statement that must affect a row; zero rows is ErrNotFound.
func (r *InvoiceRepository) execOne(ctx context.Context, what, query string, args ...interface{}) error {
	res, err := r.ext.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, invoice.ErrNotFound)
	}
	return nil
}

// SQLStore is the database-backed invoice.Store.
type SQLStore struct {
	*InvoiceRepository
	db *sqlx.DB
}

// NewSQLStore creates a store over db.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{
		InvoiceRepository: NewInvoiceRepository(db),
		db:                db,
	}
}

// DB returns the underlying database.
func (s *SQLStore) DB() *sqlx.DB { return s.db }

// InTx runs fn inside one transaction.
func (s *SQLStore) InTx(ctx context.Context, fn func(invoice.Repository) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(NewInvoiceRepository(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", mapError(err))
	}
	return nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return invoice.ErrNotFound
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %w", invoice.ErrConcurrencyConflict, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		switch sqErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			// Extended codes disabled
			return strings.Contains(sqErr.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}
