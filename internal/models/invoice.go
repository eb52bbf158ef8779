package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus reflects payment progress on an invoice.
type InvoiceStatus string

const (
	InvoiceStatusUnpaid  InvoiceStatus = "unpaid"
	InvoiceStatusPartial InvoiceStatus = "partial"
	InvoiceStatusPaid    InvoiceStatus = "paid"
)

// Invoice is the billed snapshot of a student fee assignment. Items are
// copied from the fee structure at generation time; later structure edits
// never change an issued invoice.
type Invoice struct {
	ID             string          `db:"id" json:"id"`
	InvoiceNumber  string          `db:"invoice_number" json:"invoice_number"`
	StudentID      string          `db:"student_id" json:"student_id"`
	AcademicYearID string          `db:"academic_year_id" json:"academic_year_id"`
	TermID         string          `db:"term_id" json:"term_id"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	AmountPaid     decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	Balance        decimal.Decimal `db:"balance" json:"balance"`
	Status         InvoiceStatus   `db:"status" json:"status"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// InvoiceItem is one line of an invoice.
type InvoiceItem struct {
	ID          string          `db:"id" json:"id"`
	InvoiceID   string          `db:"invoice_id" json:"invoice_id"`
	Name        string          `db:"name" json:"name"`
	Description *string         `db:"description" json:"description,omitempty"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	StudentID      string
	AcademicYearID string
	TermID         string
	Status         InvoiceStatus
	Page           int
	PageSize       int
}

// InvoicePreview is the read-only projection of a pending generation run.
type InvoicePreview struct {
	Internal         *FeeTypePreview `json:"internal,omitempty"`
	External         *FeeTypePreview `json:"external,omitempty"`
	TotalPending     int             `json:"total_pending"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	AlreadyGenerated int             `json:"already_generated"`
}

// InvoiceCommitResult reports what a generation run actually did.
type InvoiceCommitResult struct {
	Generated int `json:"generated"`
	Skipped   int `json:"skipped"`
}
