package models

import "time"

// CurriculumLevel is the band a grade level maps to.
type CurriculumLevel string

const (
	CurriculumLevelJunior CurriculumLevel = "junior"
	CurriculumLevelSenior CurriculumLevel = "senior"
)

// LevelForGrade maps a grade level to its curriculum band.
func LevelForGrade(gradeLevel int) CurriculumLevel {
	if gradeLevel <= 2 {
		return CurriculumLevelJunior
	}
	return CurriculumLevelSenior
}

// SubjectRequirement tags why a resolved subject attaches to a student.
// Stream electives are exposed externally as optional, but the tag keeps the
// distinction visible to new code.
type SubjectRequirement string

const (
	RequirementCore   SubjectRequirement = "core"
	RequirementStream SubjectRequirement = "stream"
)

// CurriculumSubject is static reference data binding subjects to a band and
// optionally a stream.
type CurriculumSubject struct {
	ID           string          `db:"id" json:"id"`
	SubjectID    string          `db:"subject_id" json:"subject_id"`
	SubjectName  string          `db:"subject_name" json:"subject_name"`
	Level        CurriculumLevel `db:"level" json:"level"`
	Stream       *string         `db:"stream" json:"stream,omitempty"`
	IsCompulsory bool            `db:"is_compulsory" json:"is_compulsory"`
}

// ResolvedSubject is the resolver output for one subject.
type ResolvedSubject struct {
	SubjectID   string             `json:"subject_id"`
	SubjectName string             `json:"subject_name"`
	IsOptional  bool               `json:"is_optional"`
	Requirement SubjectRequirement `json:"requirement"`
}

// SubjectEnrollment attaches a student to a subject for a year and,
// optionally, a term. Upserts are keyed on (student, subject, year, term) so
// re-running enrollment never duplicates rows.
type SubjectEnrollment struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	SubjectID      string    `db:"subject_id" json:"subject_id"`
	AcademicYearID string    `db:"academic_year_id" json:"academic_year_id"`
	TermID         *string   `db:"term_id" json:"term_id,omitempty"`
	IsOptional     bool      `db:"is_optional" json:"is_optional"`
	EnrolledBy     string    `db:"enrolled_by" json:"enrolled_by"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
