package models

import "time"

// DailyClosingReport is a derived aggregate over one local calendar day.
// It is a pure read projection and is never persisted.
type DailyClosingReport struct {
	Date     string         `json:"date"`
	Timezone string         `json:"timezone"`
	BranchID string         `json:"branch_id"`
	Songs    SongSummary    `json:"songs"`
	Revenue  RevenueSummary `json:"revenue"`
	Orders   []ClosingOrder `json:"orders"`
}

type SongSummary struct {
	Total int         `json:"total"`
	Tally []SongTally `json:"tally"`
}

type SongTally struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type RevenueSummary struct {
	ByMethod []MethodTotal `json:"by_method"`
	Total    float64       `json:"total"`
}

type MethodTotal struct {
	Method PaymentMethod `json:"method"`
	Total  float64       `json:"total"`
}

type ClosingOrder struct {
	OrderID   string        `json:"order_id"`
	TableID   string        `json:"table_id"`
	TableName string        `json:"table_name"`
	Type      OrderType     `json:"type"`
	Status    OrderStatus   `json:"status"`
	Total     float64       `json:"total"`
	CreatedAt time.Time     `json:"created_at"`
	Lines     []ClosingLine `json:"lines"`
}

type ClosingLine struct {
	ItemID    string   `json:"item_id"`
	Name      string   `json:"name"`
	Type      ItemType `json:"type"`
	Quantity  int      `json:"quantity"`
	UnitPrice float64  `json:"unit_price"`
	Subtotal  float64  `json:"subtotal"`
}
