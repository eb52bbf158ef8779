package models

import "time"

// StudentType distinguishes fee treatment of learners.
type StudentType string

const (
	StudentTypeInternal StudentType = "internal"
	StudentTypeExternal StudentType = "external"
)

// Student represents a learner registered in the institution. The row shares
// its primary key with the identity record that backs it.
type Student struct {
	ID            string      `db:"id" json:"id"`
	StudentNo     string      `db:"student_no" json:"student_no"`
	FullName      string      `db:"full_name" json:"full_name"`
	Gender        string      `db:"gender" json:"gender"`
	ClassID       string      `db:"class_id" json:"class_id"`
	StudentType   StudentType `db:"student_type" json:"student_type"`
	GradeLevel    int         `db:"grade_level" json:"grade_level"`
	Stream        *string     `db:"stream" json:"stream,omitempty"`
	GuardianEmail *string     `db:"guardian_email" json:"guardian_email,omitempty"`
	GuardianPhone *string     `db:"guardian_phone" json:"guardian_phone,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search      string
	ClassID     string
	StudentType StudentType
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}
