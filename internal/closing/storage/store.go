package storage

import (
	"context"
	"time"

	"mesa-pos/internal/models"
)

// OrderRow is one order of the closing window with its table name resolved.
type OrderRow struct {
	models.Order
	TableName string
}

// LineRow is one order line with its item metadata joined.
type LineRow struct {
	OrderID   string
	ItemID    string
	Name      string
	Type      models.ItemType
	Quantity  int
	UnitPrice float64
}

// Store is the read surface of the daily closing aggregator. All queries are
// bounded by a UTC [start, end) instant range.
type Store interface {
	OrdersInRange(ctx context.Context, branchID string, start, end time.Time) ([]OrderRow, error)
	LinesForOrders(ctx context.Context, orderIDs []string) ([]LineRow, error)
	PaymentsInRange(ctx context.Context, branchID string, start, end time.Time) ([]models.PaymentRecord, error)

	Close() error
	HealthCheck() error
}
