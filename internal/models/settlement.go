package models

import "time"

// PendingLine is one unpaid line surfaced to the settlement dialog. Payable
// is false for song-request lines, which may be listed for visibility but can
// never be charged.
type PendingLine struct {
	LineID     string    `json:"line_id"`
	OrderID    string    `json:"order_id"`
	ItemID     string    `json:"item_id"`
	ItemName   string    `json:"item_name"`
	ItemType   ItemType  `json:"item_type"`
	UnitPrice  float64   `json:"unit_price"`
	OrderedQty int       `json:"ordered_qty"`
	Note       string    `json:"note,omitempty"`
	Payable    bool      `json:"payable"`
	OrderedAt  time.Time `json:"ordered_at"`
}

// PendingTable groups the unsettled ready orders of one table.
type PendingTable struct {
	Table      Table   `json:"table"`
	OrderCount int     `json:"order_count"`
	Total      float64 `json:"total"`
}

type CommitResult struct {
	Total     float64                   `json:"total"`
	PerMethod map[PaymentMethod]float64 `json:"per_method"`
	UnitsPaid int                       `json:"units_paid"`
	Settled   []string                  `json:"settled_orders"`
}
