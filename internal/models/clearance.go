package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClearanceStatus is the state of a clearance request. Approved and rejected
// are terminal; a retry creates a new request.
type ClearanceStatus string

const (
	ClearanceStatusPending  ClearanceStatus = "pending"
	ClearanceStatusApproved ClearanceStatus = "approved"
	ClearanceStatusRejected ClearanceStatus = "rejected"
)

// ClearanceType defines an administrative sign-off gated on payment progress.
type ClearanceType struct {
	ID                   string          `db:"id" json:"id"`
	Name                 string          `db:"name" json:"name"`
	MinPaymentPercentage decimal.Decimal `db:"min_payment_percentage" json:"min_payment_percentage"`
	IsActive             bool            `db:"is_active" json:"is_active"`
	DisplayOrder         int             `db:"display_order" json:"display_order"`
}

// ClearanceRequest is a student's petition for one clearance type.
type ClearanceRequest struct {
	ID              string          `db:"id" json:"id"`
	StudentID       string          `db:"student_id" json:"student_id"`
	ClearanceTypeID string          `db:"clearance_type_id" json:"clearance_type_id"`
	AcademicYearID  string          `db:"academic_year_id" json:"academic_year_id"`
	TermID          string          `db:"term_id" json:"term_id"`
	Status          ClearanceStatus `db:"status" json:"status"`
	ApproverID      *string         `db:"approver_id" json:"approver_id,omitempty"`
	Reason          *string         `db:"reason" json:"reason,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	DecidedAt       *time.Time      `db:"decided_at" json:"decided_at,omitempty"`
}

// PendingClearance joins a pending request with the student's payment
// progress for the relevant term and the threshold it is judged against.
type PendingClearance struct {
	ClearanceRequest
	StudentNo            string          `db:"student_no" json:"student_no"`
	StudentName          string          `db:"student_name" json:"student_name"`
	ClassID              string          `db:"class_id" json:"class_id"`
	ClearanceTypeName    string          `db:"clearance_type_name" json:"clearance_type_name"`
	MinPaymentPercentage decimal.Decimal `db:"min_payment_percentage" json:"min_payment_percentage"`
	TotalBilled          decimal.Decimal `db:"total_billed" json:"total_billed"`
	TotalPaid            decimal.Decimal `db:"total_paid" json:"total_paid"`
	PaymentPercentage    decimal.Decimal `json:"payment_percentage"`
	Eligible             bool            `json:"eligible"`
}

// ClearanceFilter narrows pending clearance listings.
type ClearanceFilter struct {
	AcademicYearID  string
	TermID          string
	ClearanceTypeID string
	ClassID         string
}
