package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jkimaru/registrar-api/internal/models"
	appErrors "github.com/jkimaru/registrar-api/pkg/errors"
)

type mockInvoiceRepo struct {
	invoiced map[string]bool
	created  []*models.Invoice
	items    map[string][]models.InvoiceItem
	seq      int
	payments []decimal.Decimal
}

func (m *mockInvoiceRepo) CreateWithItems(ctx context.Context, invoice *models.Invoice, items []models.InvoiceItem, yearLabel string, termOrdinal int) (bool, error) {
	if m.invoiced == nil {
		m.invoiced = make(map[string]bool)
	}
	key := invoice.StudentID + "|" + invoice.TermID
	m.seq++
	if m.invoiced[key] {
		// Sequence values consumed by losing inserts are never reissued.
		return false, nil
	}
	m.invoiced[key] = true
	invoice.ID = fmt.Sprintf("inv-%d", m.seq)
	invoice.InvoiceNumber = fmt.Sprintf("INV-%s-T%d-%06d", yearLabel, termOrdinal, m.seq)
	m.created = append(m.created, invoice)
	if m.items == nil {
		m.items = make(map[string][]models.InvoiceItem)
	}
	m.items[invoice.ID] = items
	return true, nil
}

func (m *mockInvoiceRepo) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	for _, inv := range m.created {
		if inv.ID == id {
			return inv, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockInvoiceRepo) ListItems(ctx context.Context, invoiceID string) ([]models.InvoiceItem, error) {
	return m.items[invoiceID], nil
}

func (m *mockInvoiceRepo) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error) {
	out := make([]models.Invoice, 0, len(m.created))
	for _, inv := range m.created {
		out = append(out, *inv)
	}
	return out, len(out), nil
}

func (m *mockInvoiceRepo) RecordPayment(ctx context.Context, id string, amount decimal.Decimal) (*models.Invoice, error) {
	m.payments = append(m.payments, amount)
	inv, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.AmountPaid = inv.AmountPaid.Add(amount)
	inv.Balance = inv.TotalAmount.Sub(inv.AmountPaid)
	return inv, nil
}

func (m *mockInvoiceRepo) ExistsForStudentTerm(ctx context.Context, studentID, termID string) (bool, error) {
	return m.invoiced[studentID+"|"+termID], nil
}

type mockAssignmentReader struct {
	pending   []models.AssignmentWithStudent
	total     int
	feeItems  map[string][]models.FeeItem
	drainedBy *mockInvoiceRepo
}

func (m *mockAssignmentReader) ListUninvoicedAssignments(ctx context.Context, yearID, termID string) ([]models.AssignmentWithStudent, error) {
	if m.drainedBy == nil {
		return m.pending, nil
	}
	var out []models.AssignmentWithStudent
	for _, a := range m.pending {
		if !m.drainedBy.invoiced[a.StudentID+"|"+termID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAssignmentReader) CountAssigned(ctx context.Context, yearID, termID string) (int, error) {
	return m.total, nil
}

func (m *mockAssignmentReader) ListItems(ctx context.Context, structureID string) ([]models.FeeItem, error) {
	return m.feeItems[structureID], nil
}

type mockCalendarReader struct {
	years map[string]*models.AcademicYear
	terms map[string]*models.Term
}

func (m *mockCalendarReader) FindYearByID(ctx context.Context, id string) (*models.AcademicYear, error) {
	if y, ok := m.years[id]; ok {
		return y, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCalendarReader) FindTermByID(ctx context.Context, id string) (*models.Term, error) {
	if t, ok := m.terms[id]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func pendingAssignment(studentID string, studentType models.StudentType, amount string) models.AssignmentWithStudent {
	return models.AssignmentWithStudent{
		StudentFeeAssignment: models.StudentFeeAssignment{
			ID:             "asg-" + studentID,
			StudentID:      studentID,
			AcademicYearID: "y2025",
			TermID:         "t1",
			FeeStructureID: "fs-int",
			TotalAmount:    decimal.RequireFromString(amount),
		},
		StudentType: studentType,
	}
}

func invoiceFixture(pending []models.AssignmentWithStudent, totalAssigned int) (*InvoiceService, *mockInvoiceRepo, *mockAssignmentReader) {
	repo := &mockInvoiceRepo{}
	assignments := &mockAssignmentReader{
		pending:   pending,
		total:     totalAssigned,
		drainedBy: repo,
		feeItems: map[string][]models.FeeItem{
			"fs-int": {
				{Name: "Tuition", Amount: decimal.RequireFromString("1000.00")},
				{Name: "Library", Amount: decimal.RequireFromString("300.00")},
			},
		},
	}
	calendar := &mockCalendarReader{
		years: map[string]*models.AcademicYear{"y2025": {ID: "y2025", Name: "2025"}},
		terms: map[string]*models.Term{"t1": {ID: "t1", Name: "Term 1", Ordinal: 1}},
	}
	return NewInvoiceService(repo, assignments, calendar, nil, zap.NewNop()), repo, assignments
}

func TestInvoicePreviewSplitsByType(t *testing.T) {
	svc, _, _ := invoiceFixture([]models.AssignmentWithStudent{
		pendingAssignment("s1", models.StudentTypeInternal, "1300.00"),
		pendingAssignment("s2", models.StudentTypeInternal, "1300.00"),
		pendingAssignment("s3", models.StudentTypeExternal, "2000.00"),
	}, 5)

	preview, err := svc.Preview(context.Background(), "y2025", "t1")
	require.NoError(t, err)

	assert.Equal(t, 3, preview.TotalPending)
	assert.Equal(t, 2, preview.AlreadyGenerated)
	assert.True(t, preview.TotalAmount.Equal(decimal.RequireFromString("4600.00")))
	require.NotNil(t, preview.Internal)
	assert.Equal(t, 2, preview.Internal.Count)
	assert.True(t, preview.Internal.Total.Equal(decimal.RequireFromString("2600.00")))
	require.NotNil(t, preview.External)
	assert.Equal(t, 1, preview.External.Count)
}

func TestInvoiceCommitGeneratesNumberedInvoices(t *testing.T) {
	svc, repo, _ := invoiceFixture([]models.AssignmentWithStudent{
		pendingAssignment("s1", models.StudentTypeInternal, "1300.00"),
		pendingAssignment("s2", models.StudentTypeInternal, "1300.00"),
	}, 2)

	result, err := svc.Commit(context.Background(), "y2025", "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Generated)
	assert.Zero(t, result.Skipped)

	require.Len(t, repo.created, 2)
	assert.Equal(t, "INV-2025-T1-000001", repo.created[0].InvoiceNumber)
	assert.Equal(t, "INV-2025-T1-000002", repo.created[1].InvoiceNumber)

	first := repo.created[0]
	assert.Equal(t, models.InvoiceStatusUnpaid, first.Status)
	assert.True(t, first.AmountPaid.IsZero())
	assert.True(t, first.Balance.Equal(first.TotalAmount))
	// Items are snapshotted from the structure at generation time.
	require.Len(t, repo.items[first.ID], 2)
	assert.Equal(t, "Tuition", repo.items[first.ID][0].Name)
}

func TestInvoiceCommitIsIdempotent(t *testing.T) {
	svc, repo, _ := invoiceFixture([]models.AssignmentWithStudent{
		pendingAssignment("s1", models.StudentTypeInternal, "1300.00"),
	}, 1)

	first, err := svc.Commit(context.Background(), "y2025", "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Generated)

	second, err := svc.Commit(context.Background(), "y2025", "t1")
	require.NoError(t, err)
	assert.Zero(t, second.Generated)
	assert.Zero(t, second.Skipped)
	require.Len(t, repo.created, 1)
}

func TestInvoiceCommitCountsRaceLosersAsSkipped(t *testing.T) {
	svc, repo, assignments := invoiceFixture([]models.AssignmentWithStudent{
		pendingAssignment("s1", models.StudentTypeInternal, "1300.00"),
		pendingAssignment("s2", models.StudentTypeInternal, "1300.00"),
	}, 2)
	// s2 gets invoiced between the pending read and the insert.
	assignments.drainedBy = nil
	repo.invoiced = map[string]bool{"s2|t1": true}

	result, err := svc.Commit(context.Background(), "y2025", "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Generated)
	assert.Equal(t, 1, result.Skipped)
}

func TestInvoiceCommitUnknownTerm(t *testing.T) {
	svc, _, _ := invoiceFixture(nil, 0)

	_, err := svc.Commit(context.Background(), "y2025", "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestRecordPaymentValidatesAmount(t *testing.T) {
	svc, _, _ := invoiceFixture(nil, 0)

	_, err := svc.RecordPayment(context.Background(), "inv-1", "0")
	require.Error(t, err)
	_, err = svc.RecordPayment(context.Background(), "inv-1", "-20")
	require.Error(t, err)
	_, err = svc.RecordPayment(context.Background(), "inv-1", "twenty")
	require.Error(t, err)
}

func TestRecordPaymentAppliesDecimal(t *testing.T) {
	svc, repo, _ := invoiceFixture([]models.AssignmentWithStudent{
		pendingAssignment("s1", models.StudentTypeInternal, "1300.00"),
	}, 1)
	_, err := svc.Commit(context.Background(), "y2025", "t1")
	require.NoError(t, err)
	invoiceID := repo.created[0].ID

	updated, err := svc.RecordPayment(context.Background(), invoiceID, "500.25")
	require.NoError(t, err)
	assert.True(t, updated.AmountPaid.Equal(decimal.RequireFromString("500.25")))
	assert.True(t, updated.Balance.Equal(decimal.RequireFromString("799.75")))
}

func TestStudentInvoiced(t *testing.T) {
	svc, _, _ := invoiceFixture([]models.AssignmentWithStudent{
		pendingAssignment("s1", models.StudentTypeInternal, "1300.00"),
	}, 1)
	_, err := svc.Commit(context.Background(), "y2025", "t1")
	require.NoError(t, err)

	invoiced, err := svc.StudentInvoiced(context.Background(), "s1", "t1")
	require.NoError(t, err)
	assert.True(t, invoiced)

	invoiced, err = svc.StudentInvoiced(context.Background(), "s2", "t1")
	require.NoError(t, err)
	assert.False(t, invoiced)
}
