package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeStructure names the list of fee items applicable to a
// (year, term, student type) triple.
type FeeStructure struct {
	ID             string      `db:"id" json:"id"`
	AcademicYearID string      `db:"academic_year_id" json:"academic_year_id"`
	TermID         string      `db:"term_id" json:"term_id"`
	StudentType    StudentType `db:"student_type" json:"student_type"`
	Name           string      `db:"name" json:"name"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

// FeeItem is one line of a fee structure.
type FeeItem struct {
	ID             string          `db:"id" json:"id"`
	FeeStructureID string          `db:"fee_structure_id" json:"fee_structure_id"`
	Name           string          `db:"name" json:"name"`
	Description    *string         `db:"description" json:"description,omitempty"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	IsMandatory    bool            `db:"is_mandatory" json:"is_mandatory"`
}

// Total sums the item amounts of a structure using exact decimal arithmetic.
func FeeItemsTotal(items []FeeItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount)
	}
	return total
}

// StudentFeeAssignment records the fee obligation of one student for a term.
// Unique on (student_id, academic_year_id, term_id); commits never overwrite
// an existing row so manually adjusted amounts survive re-runs.
type StudentFeeAssignment struct {
	ID             string          `db:"id" json:"id"`
	StudentID      string          `db:"student_id" json:"student_id"`
	AcademicYearID string          `db:"academic_year_id" json:"academic_year_id"`
	TermID         string          `db:"term_id" json:"term_id"`
	FeeStructureID string          `db:"fee_structure_id" json:"fee_structure_id"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// AssignmentWithStudent joins an assignment with its student's type for
// invoice preview splits.
type AssignmentWithStudent struct {
	StudentFeeAssignment
	StudentType StudentType `db:"student_type" json:"student_type"`
}

// FeeTypePreview summarises one student type in an assignment preview.
type FeeTypePreview struct {
	Count            int             `json:"count"`
	AmountPerStudent decimal.Decimal `json:"amount_per_student"`
	Total            decimal.Decimal `json:"total"`
	StructureName    string          `json:"structure_name"`
}

// FeeAssignmentPreview is the read-only projection of a pending bulk commit.
type FeeAssignmentPreview struct {
	Internal             *FeeTypePreview `json:"internal,omitempty"`
	External             *FeeTypePreview `json:"external,omitempty"`
	TotalStudents        int             `json:"total_students"`
	TotalExpectedRevenue decimal.Decimal `json:"total_expected_revenue"`
	AlreadyAssigned      int             `json:"already_assigned"`
}

// FeeCommitResult reports what a bulk assignment commit actually did.
// Notes calls out student types the commit could not cover, such as a
// type with no structure configured for the term.
type FeeCommitResult struct {
	Assigned int      `json:"assigned"`
	Skipped  int      `json:"skipped"`
	Notes    []string `json:"notes,omitempty"`
}
