package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ItemType string

const (
	ItemProduct ItemType = "product"
	ItemSong    ItemType = "song"
)

// MenuItem is a sellable unit. Song requests always carry a zero price and
// can never be selected for payment.
type MenuItem struct {
	bun.BaseModel `bun:"table:menu_items"`

	ItemID    string    `bun:"item_id,pk" json:"item_id"`
	Name      string    `bun:"name" json:"name"`
	Category  string    `bun:"category" json:"category"`
	Type      ItemType  `bun:"type" json:"type"`
	Price     float64   `bun:"price" json:"price"`
	CreatedAt time.Time `bun:"created_at" json:"created_at"`
}

// ItemAvailability scopes a menu item to a branch.
type ItemAvailability struct {
	bun.BaseModel `bun:"table:item_availability"`

	ItemID    string `bun:"item_id,pk" json:"item_id"`
	BranchID  string `bun:"branch_id,pk" json:"branch_id"`
	Available bool   `bun:"available" json:"available"`
}

func (m *MenuItem) Payable() bool {
	return m.Type == ItemProduct
}
