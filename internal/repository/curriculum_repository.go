package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jkimaru/registrar-api/internal/models"
)

// CurriculumRepository reads curriculum reference data and writes subject
// enrollments.
type CurriculumRepository struct {
	db *sqlx.DB
}

// NewCurriculumRepository constructs the repository.
func NewCurriculumRepository(db *sqlx.DB) *CurriculumRepository {
	return &CurriculumRepository{db: db}
}

const curriculumColumns = `id, subject_id, subject_name, level, stream, is_compulsory`

// ListCore returns the compulsory stream-less subjects of a band.
func (r *CurriculumRepository) ListCore(ctx context.Context, level models.CurriculumLevel) ([]models.CurriculumSubject, error) {
	query := fmt.Sprintf(`SELECT %s FROM curriculum_subjects
        WHERE level = $1 AND is_compulsory = TRUE AND stream IS NULL
        ORDER BY subject_name ASC`, curriculumColumns)
	var subjects []models.CurriculumSubject
	if err := r.db.SelectContext(ctx, &subjects, query, level); err != nil {
		return nil, fmt.Errorf("list core curriculum subjects: %w", err)
	}
	return subjects, nil
}

// ListByStream returns all senior subjects attached to a stream, regardless
// of the compulsory flag.
func (r *CurriculumRepository) ListByStream(ctx context.Context, stream string) ([]models.CurriculumSubject, error) {
	query := fmt.Sprintf(`SELECT %s FROM curriculum_subjects
        WHERE level = $1 AND stream = $2
        ORDER BY subject_name ASC`, curriculumColumns)
	var subjects []models.CurriculumSubject
	if err := r.db.SelectContext(ctx, &subjects, query, models.CurriculumLevelSenior, stream); err != nil {
		return nil, fmt.Errorf("list stream curriculum subjects: %w", err)
	}
	return subjects, nil
}

// ListByLevel returns the full curriculum of a band for admin listings.
func (r *CurriculumRepository) ListByLevel(ctx context.Context, level models.CurriculumLevel) ([]models.CurriculumSubject, error) {
	query := fmt.Sprintf(`SELECT %s FROM curriculum_subjects WHERE level = $1 ORDER BY stream NULLS FIRST, subject_name ASC`, curriculumColumns)
	var subjects []models.CurriculumSubject
	if err := r.db.SelectContext(ctx, &subjects, query, level); err != nil {
		return nil, fmt.Errorf("list curriculum subjects: %w", err)
	}
	return subjects, nil
}

// UpsertSubjectEnrollment inserts a subject enrollment if the
// (student, subject, year, term) key is not taken. Returns true when a row
// was actually inserted so callers can report enrolled counts accurately.
//
// term_id is NULL during a term-less calendar state, and the unique index
// cannot arbitrate NULL-term rows (NULLs never conflict), so the guard
// clause carries idempotence for that state via IS NOT DISTINCT FROM.
// ON CONFLICT still closes the concurrent-insert race for termed rows.
func (r *CurriculumRepository) UpsertSubjectEnrollment(ctx context.Context, enrollment *models.SubjectEnrollment) (bool, error) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO student_subject_enrollments (id, student_id, subject_id, academic_year_id, term_id, is_optional, enrolled_by, created_at)
        SELECT :id, :student_id, :subject_id, :academic_year_id, :term_id, :is_optional, :enrolled_by, :created_at
        WHERE NOT EXISTS (
            SELECT 1 FROM student_subject_enrollments
            WHERE student_id = :student_id AND subject_id = :subject_id
              AND academic_year_id = :academic_year_id
              AND term_id IS NOT DISTINCT FROM :term_id)
        ON CONFLICT (student_id, subject_id, academic_year_id, term_id) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, enrollment)
	if err != nil {
		return false, fmt.Errorf("upsert subject enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("subject enrollment rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListSubjectEnrollments returns a student's subject enrollments for a year.
func (r *CurriculumRepository) ListSubjectEnrollments(ctx context.Context, studentID, yearID string) ([]models.SubjectEnrollment, error) {
	const query = `SELECT id, student_id, subject_id, academic_year_id, term_id, is_optional, enrolled_by, created_at
        FROM student_subject_enrollments WHERE student_id = $1 AND academic_year_id = $2 ORDER BY created_at ASC`
	var enrollments []models.SubjectEnrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID, yearID); err != nil {
		return nil, fmt.Errorf("list subject enrollments: %w", err)
	}
	return enrollments, nil
}
