package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentMethod string

const (
	MethodCash     PaymentMethod = "cash"
	MethodCard     PaymentMethod = "card"
	MethodTransfer PaymentMethod = "transfer"
)

// PaymentRecord is one row per (table, method) bucket inside a single
// settlement commit.
type PaymentRecord struct {
	bun.BaseModel `bun:"table:payments"`

	PaymentID string        `bun:"payment_id,pk" json:"payment_id"`
	TableID   string        `bun:"table_id" json:"table_id"`
	BranchID  string        `bun:"branch_id" json:"branch_id"`
	Method    PaymentMethod `bun:"method" json:"method"`
	Total     float64       `bun:"total" json:"total"`
	CreatedAt time.Time     `bun:"created_at" json:"created_at"`
}

func ValidMethod(m PaymentMethod) bool {
	switch m {
	case MethodCash, MethodCard, MethodTransfer:
		return true
	}
	return false
}
