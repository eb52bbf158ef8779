package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jkimaru/registrar-api/internal/models"
)

// FeeRepository handles fee structures and student fee assignments.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository constructs the repository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// FindStructure returns the latest fee structure matching
// (year, term, student type).
func (r *FeeRepository) FindStructure(ctx context.Context, yearID, termID string, studentType models.StudentType) (*models.FeeStructure, error) {
	const query = `SELECT id, academic_year_id, term_id, student_type, name, created_at
        FROM fee_structures
        WHERE academic_year_id = $1 AND term_id = $2 AND student_type = $3
        ORDER BY created_at DESC LIMIT 1`
	var structure models.FeeStructure
	if err := r.db.GetContext(ctx, &structure, query, yearID, termID, studentType); err != nil {
		return nil, err
	}
	return &structure, nil
}

// ListItems returns the fee items of a structure in insertion order.
func (r *FeeRepository) ListItems(ctx context.Context, structureID string) ([]models.FeeItem, error) {
	const query = `SELECT id, fee_structure_id, name, description, amount, is_mandatory
        FROM fee_items WHERE fee_structure_id = $1 ORDER BY name ASC`
	var items []models.FeeItem
	if err := r.db.SelectContext(ctx, &items, query, structureID); err != nil {
		return nil, fmt.Errorf("list fee items: %w", err)
	}
	return items, nil
}

// CreateStructure persists a fee structure together with its items in one
// transaction.
func (r *FeeRepository) CreateStructure(ctx context.Context, structure *models.FeeStructure, items []models.FeeItem) error {
	if structure.ID == "" {
		structure.ID = uuid.NewString()
	}
	structure.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create fee structure tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const structureQuery = `INSERT INTO fee_structures (id, academic_year_id, term_id, student_type, name, created_at)
        VALUES (:id, :academic_year_id, :term_id, :student_type, :name, :created_at)`
	if _, err = tx.NamedExecContext(ctx, structureQuery, structure); err != nil {
		return fmt.Errorf("create fee structure: %w", err)
	}

	const itemQuery = `INSERT INTO fee_items (id, fee_structure_id, name, description, amount, is_mandatory)
        VALUES (:id, :fee_structure_id, :name, :description, :amount, :is_mandatory)`
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		items[i].FeeStructureID = structure.ID
		if _, err = tx.NamedExecContext(ctx, itemQuery, items[i]); err != nil {
			return fmt.Errorf("create fee item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create fee structure tx: %w", err)
	}
	return nil
}

// ListStructures returns the fee structures configured for a (year, term).
func (r *FeeRepository) ListStructures(ctx context.Context, yearID, termID string) ([]models.FeeStructure, error) {
	const query = `SELECT id, academic_year_id, term_id, student_type, name, created_at
        FROM fee_structures WHERE academic_year_id = $1 AND term_id = $2 ORDER BY student_type ASC, created_at DESC`
	var structures []models.FeeStructure
	if err := r.db.SelectContext(ctx, &structures, query, yearID, termID); err != nil {
		return nil, fmt.Errorf("list fee structures: %w", err)
	}
	return structures, nil
}

// CountAssigned counts students already holding an assignment for the term.
func (r *FeeRepository) CountAssigned(ctx context.Context, yearID, termID string) (int, error) {
	const query = `SELECT COUNT(*) FROM student_fee_assignments WHERE academic_year_id = $1 AND term_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, yearID, termID); err != nil {
		return 0, fmt.Errorf("count fee assignments: %w", err)
	}
	return count, nil
}

// ListAssignedStudentIDs returns the IDs of students already assigned for
// the term.
func (r *FeeRepository) ListAssignedStudentIDs(ctx context.Context, yearID, termID string) (map[string]bool, error) {
	const query = `SELECT student_id FROM student_fee_assignments WHERE academic_year_id = $1 AND term_id = $2`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, yearID, termID); err != nil {
		return nil, fmt.Errorf("list assigned students: %w", err)
	}
	assigned := make(map[string]bool, len(ids))
	for _, id := range ids {
		assigned[id] = true
	}
	return assigned, nil
}

// CreateAssignment inserts a fee assignment unless the (student, year, term)
// key is already taken. Existing rows are never overwritten; the return value
// reports whether a row was inserted.
func (r *FeeRepository) CreateAssignment(ctx context.Context, assignment *models.StudentFeeAssignment) (bool, error) {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO student_fee_assignments (id, student_id, academic_year_id, term_id, fee_structure_id, total_amount, created_at)
        VALUES (:id, :student_id, :academic_year_id, :term_id, :fee_structure_id, :total_amount, :created_at)
        ON CONFLICT (student_id, academic_year_id, term_id) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, assignment)
	if err != nil {
		return false, fmt.Errorf("create fee assignment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fee assignment rows affected: %w", err)
	}
	return affected > 0, nil
}

// ExistsAssignment reports whether a student holds an assignment for the term.
func (r *FeeRepository) ExistsAssignment(ctx context.Context, studentID, yearID, termID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM student_fee_assignments WHERE student_id = $1 AND academic_year_id = $2 AND term_id = $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, yearID, termID); err != nil {
		return false, fmt.Errorf("check fee assignment: %w", err)
	}
	return count > 0, nil
}

// ListUninvoicedAssignments returns assignments for the term that have no
// invoice yet, joined with the student type for preview splits.
func (r *FeeRepository) ListUninvoicedAssignments(ctx context.Context, yearID, termID string) ([]models.AssignmentWithStudent, error) {
	const query = `SELECT a.id, a.student_id, a.academic_year_id, a.term_id, a.fee_structure_id, a.total_amount, a.created_at,
        s.student_type AS student_type
        FROM student_fee_assignments a
        JOIN students s ON s.id = a.student_id
        LEFT JOIN invoices i ON i.student_id = a.student_id AND i.term_id = a.term_id
        WHERE a.academic_year_id = $1 AND a.term_id = $2 AND i.id IS NULL
        ORDER BY a.created_at ASC`
	var assignments []models.AssignmentWithStudent
	if err := r.db.SelectContext(ctx, &assignments, query, yearID, termID); err != nil {
		return nil, fmt.Errorf("list uninvoiced assignments: %w", err)
	}
	return assignments, nil
}
