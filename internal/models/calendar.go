package models

import "time"

// AcademicYear models a school year in the institution calendar. At most one
// year is active at a time; activation is transactional (see repository).
type AcademicYear struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Term models a term within an academic year. The single-active invariant is
// scoped per year. Ordinal is the term position used in invoice numbers.
type Term struct {
	ID             string    `db:"id" json:"id"`
	AcademicYearID string    `db:"academic_year_id" json:"academic_year_id"`
	Name           string    `db:"name" json:"name"`
	Ordinal        int       `db:"ordinal" json:"ordinal"`
	StartDate      time.Time `db:"start_date" json:"start_date"`
	EndDate        time.Time `db:"end_date" json:"end_date"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ActiveContext bundles the current year and, when one is active, the term.
type ActiveContext struct {
	Year *AcademicYear `json:"year"`
	Term *Term         `json:"term,omitempty"`
}
