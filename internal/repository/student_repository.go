package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jkimaru/registrar-api/internal/models"
)

// StudentRepository handles persistence of student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, student_no, full_name, gender, class_id, student_type, grade_level, stream, guardian_email, guardian_phone, created_at, updated_at`

// ExistsByStudentNo reports whether a student already holds the number.
func (r *StudentRepository) ExistsByStudentNo(ctx context.Context, studentNo string) (bool, error) {
	const query = `SELECT 1 FROM students WHERE student_no = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentNo); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student number: %w", err)
	}
	return true, nil
}

// FindByID returns a student by its ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create persists a new student row. The ID is the backing identity's ID and
// must be supplied by the caller.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, student_no, full_name, gender, class_id, student_type, grade_level, stream, guardian_email, guardian_phone, created_at, updated_at)
        VALUES (:id, :student_no, :full_name, :gender, :class_id, :student_type, :grade_level, :stream, :guardian_email, :guardian_phone, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// List returns students filtered by the provided criteria.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := `FROM students s`
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(s.full_name ILIKE $%d OR s.student_no ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.StudentType != "" {
		conditions = append(conditions, fmt.Sprintf("s.student_type = $%d", len(args)+1))
		args = append(args, filter.StudentType)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf(`SELECT s.%s %s ORDER BY s.student_no ASC LIMIT %d OFFSET %d`,
		strings.ReplaceAll(studentColumns, ", ", ", s."), base+clause, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// ListEnrolledByType returns students of a type actively enrolled in a year.
func (r *StudentRepository) ListEnrolledByType(ctx context.Context, yearID string, studentType models.StudentType) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT s.%s FROM students s
        JOIN enrollments e ON e.student_id = s.id
        WHERE e.academic_year_id = $1 AND e.status = $2 AND s.student_type = $3
        ORDER BY s.student_no ASC`, strings.ReplaceAll(studentColumns, ", ", ", s."))
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, yearID, models.EnrollmentStatusActive, studentType); err != nil {
		return nil, fmt.Errorf("list enrolled students: %w", err)
	}
	return students, nil
}
