package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Table struct {
	bun.BaseModel `bun:"table:venue_tables"`

	TableID   string    `bun:"table_id,pk" json:"table_id"`
	BranchID  string    `bun:"branch_id" json:"branch_id"`
	Name      string    `bun:"name" json:"name"`
	Slug      string    `bun:"slug" json:"slug"`
	Token     string    `bun:"token" json:"token"`
	Active    bool      `bun:"active" json:"active"`
	PIN       string    `bun:"pin,nullzero" json:"-"`
	CreatedAt time.Time `bun:"created_at" json:"created_at"`
}

type TableRequest struct {
	Name string `json:"name"`
	PIN  string `json:"pin,omitempty"`
}
