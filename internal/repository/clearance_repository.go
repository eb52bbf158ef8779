package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jkimaru/registrar-api/internal/models"
)

// ClearanceRepository handles clearance types and requests.
type ClearanceRepository struct {
	db *sqlx.DB
}

// NewClearanceRepository constructs the repository.
func NewClearanceRepository(db *sqlx.DB) *ClearanceRepository {
	return &ClearanceRepository{db: db}
}

// ListTypes returns active clearance types in display order.
func (r *ClearanceRepository) ListTypes(ctx context.Context) ([]models.ClearanceType, error) {
	const query = `SELECT id, name, min_payment_percentage, is_active, display_order
        FROM clearance_types WHERE is_active = TRUE ORDER BY display_order ASC`
	var types []models.ClearanceType
	if err := r.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("list clearance types: %w", err)
	}
	return types, nil
}

// FindType returns a clearance type by its ID.
func (r *ClearanceRepository) FindType(ctx context.Context, id string) (*models.ClearanceType, error) {
	const query = `SELECT id, name, min_payment_percentage, is_active, display_order FROM clearance_types WHERE id = $1`
	var clearanceType models.ClearanceType
	if err := r.db.GetContext(ctx, &clearanceType, query, id); err != nil {
		return nil, err
	}
	return &clearanceType, nil
}

// CreateRequest persists a new pending clearance request.
func (r *ClearanceRepository) CreateRequest(ctx context.Context, request *models.ClearanceRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.ClearanceStatusPending
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO clearance_requests (id, student_id, clearance_type_id, academic_year_id, term_id, status, approver_id, reason, created_at, decided_at)
        VALUES (:id, :student_id, :clearance_type_id, :academic_year_id, :term_id, :status, :approver_id, :reason, :created_at, :decided_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create clearance request: %w", err)
	}
	return nil
}

// FindRequest returns a clearance request by its ID.
func (r *ClearanceRepository) FindRequest(ctx context.Context, id string) (*models.ClearanceRequest, error) {
	const query = `SELECT id, student_id, clearance_type_id, academic_year_id, term_id, status, approver_id, reason, created_at, decided_at
        FROM clearance_requests WHERE id = $1`
	var request models.ClearanceRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// HasPending reports whether the student already has a pending request of
// the type for the term.
func (r *ClearanceRepository) HasPending(ctx context.Context, studentID, typeID, termID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM clearance_requests
        WHERE student_id = $1 AND clearance_type_id = $2 AND term_id = $3 AND status = $4`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, typeID, termID, models.ClearanceStatusPending); err != nil {
		return false, fmt.Errorf("check pending clearance: %w", err)
	}
	return count > 0, nil
}

// ListPending returns pending requests joined with the student's invoice
// totals for the request's year and term. Payment percentage is computed by
// the service in exact decimal arithmetic.
func (r *ClearanceRepository) ListPending(ctx context.Context, filter models.ClearanceFilter) ([]models.PendingClearance, error) {
	base := `SELECT cr.id, cr.student_id, cr.clearance_type_id, cr.academic_year_id, cr.term_id, cr.status, cr.approver_id, cr.reason, cr.created_at, cr.decided_at,
        s.student_no AS student_no, s.full_name AS student_name, s.class_id AS class_id,
        ct.name AS clearance_type_name, ct.min_payment_percentage AS min_payment_percentage,
        COALESCE(SUM(i.total_amount), 0) AS total_billed,
        COALESCE(SUM(i.amount_paid), 0) AS total_paid
        FROM clearance_requests cr
        JOIN students s ON s.id = cr.student_id
        JOIN clearance_types ct ON ct.id = cr.clearance_type_id
        LEFT JOIN invoices i ON i.student_id = cr.student_id AND i.academic_year_id = cr.academic_year_id AND i.term_id = cr.term_id`

	conditions := []string{"cr.status = $1"}
	args := []interface{}{models.ClearanceStatusPending}

	if filter.AcademicYearID != "" {
		conditions = append(conditions, fmt.Sprintf("cr.academic_year_id = $%d", len(args)+1))
		args = append(args, filter.AcademicYearID)
	}
	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("cr.term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.ClearanceTypeID != "" {
		conditions = append(conditions, fmt.Sprintf("cr.clearance_type_id = $%d", len(args)+1))
		args = append(args, filter.ClearanceTypeID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}

	query := base + " WHERE " + strings.Join(conditions, " AND ") +
		` GROUP BY cr.id, s.student_no, s.full_name, s.class_id, ct.name, ct.min_payment_percentage
        ORDER BY cr.created_at ASC`

	var pending []models.PendingClearance
	if err := r.db.SelectContext(ctx, &pending, query, args...); err != nil {
		return nil, fmt.Errorf("list pending clearances: %w", err)
	}
	return pending, nil
}

// UpdateDecision transitions a pending request to a terminal state. The
// status guard in the WHERE clause makes terminal states immutable; the
// return value reports whether the transition happened.
func (r *ClearanceRepository) UpdateDecision(ctx context.Context, id string, status models.ClearanceStatus, approverID string, reason *string) (bool, error) {
	const query = `UPDATE clearance_requests
        SET status = $2, approver_id = $3, reason = $4, decided_at = $5
        WHERE id = $1 AND status = $6`
	res, err := r.db.ExecContext(ctx, query, id, status, approverID, reason, time.Now().UTC(), models.ClearanceStatusPending)
	if err != nil {
		return false, fmt.Errorf("update clearance decision: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("clearance decision rows affected: %w", err)
	}
	return affected > 0, nil
}
