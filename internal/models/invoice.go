package models

import (
	"time"

	"github.com/uptrace/bun"
)

type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "pending"
	InvoiceIssued  InvoiceStatus = "issued"
	InvoiceVoided  InvoiceStatus = "voided"
)

// InvoiceRequest is created at settlement time when the patron asks for a
// fiscal invoice. One row per order affected by the settlement; the amount is
// only the portion of that order paid inside one payment-method bucket, so
// invoices never span orders. PaymentID links the row to the payment record
// of that bucket.
type InvoiceRequest struct {
	bun.BaseModel `bun:"table:invoices"`

	InvoiceID  string        `bun:"invoice_id,pk" json:"invoice_id"`
	OrderID    string        `bun:"order_id" json:"order_id"`
	PaymentID  string        `bun:"payment_id,nullzero" json:"payment_id,omitempty"`
	TableID    string        `bun:"table_id" json:"table_id"`
	BranchID   string        `bun:"branch_id" json:"branch_id"`
	BilledName string        `bun:"billed_name" json:"billed_name"`
	TaxID      string        `bun:"tax_id" json:"tax_id"`
	Email      string        `bun:"email,nullzero" json:"email,omitempty"`
	Phone      string        `bun:"phone,nullzero" json:"phone,omitempty"`
	Address    string        `bun:"address,nullzero" json:"address,omitempty"`
	Method     PaymentMethod `bun:"method" json:"method"`
	Amount     float64       `bun:"amount" json:"amount"`
	Status     InvoiceStatus `bun:"status" json:"status"`
	CreatedAt  time.Time     `bun:"created_at" json:"created_at"`
}

// InvoiceInfo is the billed-to identity captured in the settlement dialog.
type InvoiceInfo struct {
	BilledName string `json:"billed_name"`
	TaxID      string `json:"tax_id"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
}
