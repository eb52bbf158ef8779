package models

import "time"

// EnrollmentStatus represents the lifecycle of a year enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusActive      EnrollmentStatus = "active"
	EnrollmentStatusCompleted   EnrollmentStatus = "completed"
	EnrollmentStatusDropped     EnrollmentStatus = "dropped"
	EnrollmentStatusTransferred EnrollmentStatus = "transferred"
	EnrollmentStatusExpelled    EnrollmentStatus = "expelled"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusActive, EnrollmentStatusCompleted, EnrollmentStatusDropped,
		EnrollmentStatusTransferred, EnrollmentStatusExpelled:
		return true
	}
	return false
}

// Enrollment links a student to a class cohort for an academic year.
// Uniqueness on (student_id, academic_year_id) makes concurrent registration
// retries collapse to a single row.
type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	ClassID        string           `db:"class_id" json:"class_id"`
	AcademicYearID string           `db:"academic_year_id" json:"academic_year_id"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt     time.Time        `db:"enrolled_at" json:"enrolled_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}
