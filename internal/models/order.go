package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusCancelled OrderStatus = "cancelled"
)

type OrderType string

const (
	OrderProducts OrderType = "products"
	OrderSongs    OrderType = "songs"
	OrderMixed    OrderType = "mixed"
)

type LineState string

const (
	LinePending   LineState = "PENDING"
	LinePreparing LineState = "PREPARING"
	LinePaid      LineState = "PAID"
)

// Order is one cart submission tied to one table. Total is the sum of the
// payable line subtotals at creation time; song lines contribute zero.
// Settled is monotonic: it flips to true once and never reverts.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID   string      `bun:"order_id,pk" json:"order_id"`
	TableID   string      `bun:"table_id" json:"table_id"`
	BranchID  string      `bun:"branch_id" json:"branch_id"`
	Type      OrderType   `bun:"type" json:"type"`
	Status    OrderStatus `bun:"status" json:"status"`
	Total     float64     `bun:"total" json:"total"`
	Settled   bool        `bun:"settled" json:"settled"`
	CreatedAt time.Time   `bun:"created_at" json:"created_at"`
}

// OrderLine is one row within an order. PaidQty counts units that were paid
// off this line by earlier partial settlements of the same (order, item) pair.
type OrderLine struct {
	bun.BaseModel `bun:"table:order_lines"`

	LineID   string    `bun:"line_id,pk" json:"line_id"`
	OrderID  string    `bun:"order_id" json:"order_id"`
	ItemID   string    `bun:"item_id" json:"item_id"`
	Quantity int       `bun:"quantity" json:"quantity"`
	Note     string    `bun:"note,nullzero" json:"note,omitempty"`
	State    LineState `bun:"state" json:"state"`
	PaidQty  int       `bun:"paid_qty" json:"paid_qty"`
}

type CartLine struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
	Note     string `json:"note,omitempty"`
}

type OrderRequest struct {
	Slug  string     `json:"slug"`
	Token string     `json:"token"`
	PIN   string     `json:"pin,omitempty"`
	Cart  []CartLine `json:"cart"`
}

type OrderWithLines struct {
	Order
	Lines []OrderLine `json:"lines"`
}
