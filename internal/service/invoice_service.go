package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jkimaru/registrar-api/internal/models"
	appErrors "github.com/jkimaru/registrar-api/pkg/errors"
)

type invoiceRepository interface {
	CreateWithItems(ctx context.Context, invoice *models.Invoice, items []models.InvoiceItem, yearLabel string, termOrdinal int) (bool, error)
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
	ListItems(ctx context.Context, invoiceID string) ([]models.InvoiceItem, error)
	List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error)
	RecordPayment(ctx context.Context, id string, amount decimal.Decimal) (*models.Invoice, error)
	ExistsForStudentTerm(ctx context.Context, studentID, termID string) (bool, error)
}

type assignmentReader interface {
	ListUninvoicedAssignments(ctx context.Context, yearID, termID string) ([]models.AssignmentWithStudent, error)
	CountAssigned(ctx context.Context, yearID, termID string) (int, error)
	ListItems(ctx context.Context, structureID string) ([]models.FeeItem, error)
}

type calendarReader interface {
	FindYearByID(ctx context.Context, id string) (*models.AcademicYear, error)
	FindTermByID(ctx context.Context, id string) (*models.Term, error)
}

// InvoiceService converts committed fee assignments into sequentially
// numbered invoices.
type InvoiceService struct {
	repo        invoiceRepository
	assignments assignmentReader
	calendar    calendarReader
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewInvoiceService constructs InvoiceService.
func NewInvoiceService(repo invoiceRepository, assignments assignmentReader, calendar calendarReader, metrics *MetricsService, logger *zap.Logger) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{repo: repo, assignments: assignments, calendar: calendar, metrics: metrics, logger: logger}
}

// Preview reports what Commit would generate: un-invoiced assignments split
// by student type with decimal totals, plus how many assignments already
// carry an invoice.
func (s *InvoiceService) Preview(ctx context.Context, yearID, termID string) (*models.InvoicePreview, error) {
	pending, err := s.assignments.ListUninvoicedAssignments(ctx, yearID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending assignments")
	}
	totalAssigned, err := s.assignments.CountAssigned(ctx, yearID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assignments")
	}

	preview := &models.InvoicePreview{
		TotalPending:     len(pending),
		TotalAmount:      decimal.Zero,
		AlreadyGenerated: totalAssigned - len(pending),
	}
	internal := models.FeeTypePreview{AmountPerStudent: decimal.Zero, Total: decimal.Zero}
	external := models.FeeTypePreview{AmountPerStudent: decimal.Zero, Total: decimal.Zero}
	for _, assignment := range pending {
		preview.TotalAmount = preview.TotalAmount.Add(assignment.TotalAmount)
		if assignment.StudentType == models.StudentTypeInternal {
			internal.Count++
			internal.Total = internal.Total.Add(assignment.TotalAmount)
		} else {
			external.Count++
			external.Total = external.Total.Add(assignment.TotalAmount)
		}
	}
	if internal.Count > 0 {
		internal.AmountPerStudent = internal.Total.Div(decimal.NewFromInt(int64(internal.Count)))
		preview.Internal = &internal
	}
	if external.Count > 0 {
		external.AmountPerStudent = external.Total.Div(decimal.NewFromInt(int64(external.Count)))
		preview.External = &external
	}
	return preview, nil
}

// Commit generates one invoice per un-invoiced assignment. Invoice numbers
// are monotonic per (year, term) and never reused; items are a snapshot of
// the structure's fee items at generation time. Assignments whose invoice
// appeared since the preview are counted as skipped.
func (s *InvoiceService) Commit(ctx context.Context, yearID, termID string) (*models.InvoiceCommitResult, error) {
	year, err := s.calendar.FindYearByID(ctx, yearID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load year")
	}
	term, err := s.calendar.FindTermByID(ctx, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}

	pending, err := s.assignments.ListUninvoicedAssignments(ctx, yearID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending assignments")
	}

	result := &models.InvoiceCommitResult{}
	for _, assignment := range pending {
		feeItems, err := s.assignments.ListItems(ctx, assignment.FeeStructureID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee items")
		}
		items := make([]models.InvoiceItem, 0, len(feeItems))
		for _, feeItem := range feeItems {
			items = append(items, models.InvoiceItem{
				Name:        feeItem.Name,
				Description: feeItem.Description,
				Amount:      feeItem.Amount,
			})
		}

		invoice := &models.Invoice{
			StudentID:      assignment.StudentID,
			AcademicYearID: yearID,
			TermID:         termID,
			TotalAmount:    assignment.TotalAmount,
			AmountPaid:     decimal.Zero,
			Balance:        assignment.TotalAmount,
			Status:         models.InvoiceStatusUnpaid,
		}
		created, err := s.repo.CreateWithItems(ctx, invoice, items, year.Name, term.Ordinal)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate invoice")
		}
		if created {
			result.Generated++
		} else {
			result.Skipped++
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveInvoicesGenerated(result.Generated)
	}
	return result, nil
}

// StudentInvoiced reports whether a student already holds an invoice for
// the term.
func (s *InvoiceService) StudentInvoiced(ctx context.Context, studentID, termID string) (bool, error) {
	invoiced, err := s.repo.ExistsForStudentTerm(ctx, studentID, termID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check invoice")
	}
	return invoiced, nil
}

// Get returns an invoice with its line items.
func (s *InvoiceService) Get(ctx context.Context, id string) (*models.Invoice, []models.InvoiceItem, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice items")
	}
	return invoice, items, nil
}

// List returns invoices with pagination metadata.
func (s *InvoiceService) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, *models.Pagination, error) {
	invoices, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return invoices, pagination, nil
}

// RecordPayment applies a payment to an invoice, recomputing balance and
// status. Amounts must be positive decimals.
func (s *InvoiceService) RecordPayment(ctx context.Context, id, rawAmount string) (*models.Invoice, error) {
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be a positive decimal")
	}
	invoice, err := s.repo.RecordPayment(ctx, id, amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}
	return invoice, nil
}
