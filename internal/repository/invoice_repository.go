package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/jkimaru/registrar-api/internal/models"
)

// InvoiceRepository handles invoice persistence and number sequencing.
type InvoiceRepository struct {
	db *sqlx.DB
}

// NewInvoiceRepository constructs the repository.
func NewInvoiceRepository(db *sqlx.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

const invoiceColumns = `id, invoice_number, student_id, academic_year_id, term_id, total_amount, amount_paid, balance, status, created_at, updated_at`

// CreateWithItems inserts an invoice, its items and the next sequence value
// for the (year, term) scope in one transaction. The sequence row is bumped
// with an upsert-returning so numbers are monotonic and never reused, even
// across concurrent commits. Returns false without writing anything when the
// student already holds an invoice for the term.
func (r *InvoiceRepository) CreateWithItems(ctx context.Context, invoice *models.Invoice, items []models.InvoiceItem, yearLabel string, termOrdinal int) (bool, error) {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	invoice.CreatedAt = now
	invoice.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin create invoice tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var seq int64
	const seqQuery = `INSERT INTO invoice_sequences (academic_year_id, term_id, last_value)
        VALUES ($1, $2, 1)
        ON CONFLICT (academic_year_id, term_id)
        DO UPDATE SET last_value = invoice_sequences.last_value + 1
        RETURNING last_value`
	if err = tx.GetContext(ctx, &seq, seqQuery, invoice.AcademicYearID, invoice.TermID); err != nil {
		return false, fmt.Errorf("next invoice sequence: %w", err)
	}
	invoice.InvoiceNumber = fmt.Sprintf("INV-%s-T%d-%06d", yearLabel, termOrdinal, seq)

	const invoiceQuery = `INSERT INTO invoices (id, invoice_number, student_id, academic_year_id, term_id, total_amount, amount_paid, balance, status, created_at, updated_at)
        VALUES (:id, :invoice_number, :student_id, :academic_year_id, :term_id, :total_amount, :amount_paid, :balance, :status, :created_at, :updated_at)
        ON CONFLICT (student_id, term_id) DO NOTHING`
	var res sql.Result
	res, err = tx.NamedExecContext(ctx, invoiceQuery, invoice)
	if err != nil {
		return false, fmt.Errorf("create invoice: %w", err)
	}
	var affected int64
	affected, err = res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("invoice rows affected: %w", err)
	}
	if affected == 0 {
		// Another commit got there first. Rolling back also abandons the
		// sequence bump, so the number is simply never issued.
		_ = tx.Rollback()
		return false, nil
	}

	const itemQuery = `INSERT INTO invoice_items (id, invoice_id, name, description, amount)
        VALUES (:id, :invoice_id, :name, :description, :amount)`
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		items[i].InvoiceID = invoice.ID
		if _, err = tx.NamedExecContext(ctx, itemQuery, items[i]); err != nil {
			return false, fmt.Errorf("create invoice item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit create invoice tx: %w", err)
	}
	return true, nil
}

// FindByID returns an invoice by its ID.
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE id = $1`, invoiceColumns)
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, id); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListItems returns the line items of an invoice.
func (r *InvoiceRepository) ListItems(ctx context.Context, invoiceID string) ([]models.InvoiceItem, error) {
	const query = `SELECT id, invoice_id, name, description, amount FROM invoice_items WHERE invoice_id = $1 ORDER BY name ASC`
	var items []models.InvoiceItem
	if err := r.db.SelectContext(ctx, &items, query, invoiceID); err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	return items, nil
}

// List returns invoices filtered by the provided criteria.
func (r *InvoiceRepository) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error) {
	base := `FROM invoices i`
	conditions := []string{}
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("i.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.AcademicYearID != "" {
		conditions = append(conditions, fmt.Sprintf("i.academic_year_id = $%d", len(args)+1))
		args = append(args, filter.AcademicYearID)
	}
	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("i.term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("i.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	for i, c := range conditions {
		if i == 0 {
			clause = " WHERE " + c
		} else {
			clause += " AND " + c
		}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT i.id, i.invoice_number, i.student_id, i.academic_year_id, i.term_id, i.total_amount, i.amount_paid, i.balance, i.status, i.created_at, i.updated_at
        %s ORDER BY i.invoice_number ASC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var invoices []models.Invoice
	if err := r.db.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	return invoices, total, nil
}

// RecordPayment bumps amount_paid and recomputes balance and status in one
// transaction. The invoice row is locked for the duration.
func (r *InvoiceRepository) RecordPayment(ctx context.Context, id string, amount decimal.Decimal) (*models.Invoice, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin record payment tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE id = $1 FOR UPDATE`, invoiceColumns)
	var invoice models.Invoice
	if err = tx.GetContext(ctx, &invoice, query, id); err != nil {
		return nil, err
	}

	invoice.AmountPaid = invoice.AmountPaid.Add(amount)
	invoice.Balance = invoice.TotalAmount.Sub(invoice.AmountPaid)
	switch {
	case invoice.AmountPaid.GreaterThanOrEqual(invoice.TotalAmount):
		invoice.Status = models.InvoiceStatusPaid
	case invoice.AmountPaid.GreaterThan(decimal.Zero):
		invoice.Status = models.InvoiceStatusPartial
	default:
		invoice.Status = models.InvoiceStatusUnpaid
	}
	invoice.UpdatedAt = time.Now().UTC()

	const update = `UPDATE invoices SET amount_paid = :amount_paid, balance = :balance, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, update, &invoice); err != nil {
		return nil, fmt.Errorf("update invoice payment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit record payment tx: %w", err)
	}
	return &invoice, nil
}

// ExistsForStudentTerm reports whether a student already holds an invoice
// for the term.
func (r *InvoiceRepository) ExistsForStudentTerm(ctx context.Context, studentID, termID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM invoices WHERE student_id = $1 AND term_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, termID); err != nil {
		return false, fmt.Errorf("check invoice existence: %w", err)
	}
	return count > 0, nil
}
