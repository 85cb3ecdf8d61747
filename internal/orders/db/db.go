package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"mesa-pos/internal/models"
	"mesa-pos/internal/orders"
)

type DB struct {
	Bun *bun.DB
}

// ResolveTable → slug+token must resolve to exactly one active table;
// inactive tables look like "not found" to patrons.
func (d *DB) ResolveTable(ctx context.Context, slug, token string) (*models.Table, error) {
	var table models.Table
	err := d.Bun.NewSelect().
		Model(&table).
		Where("slug = ?", slug).
		Where("token = ?", token).
		Where("active = ?", true).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orders.ErrTableNotFound
	}
	if err != nil {
		return nil, err
	}
	return &table, nil
}

// AvailableItemsByID → menu items available at the branch
func (d *DB) AvailableItemsByID(ctx context.Context, branchID string, ids []string) (map[string]models.MenuItem, error) {
	out := make(map[string]models.MenuItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []models.MenuItem
	err := d.Bun.NewSelect().
		Model(&items).
		Join("JOIN item_availability AS ia ON ia.item_id = menu_item.item_id").
		Where("menu_item.item_id IN (?)", bun.In(ids)).
		Where("ia.branch_id = ?", branchID).
		Where("ia.available = ?", true).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it.ItemID] = it
	}
	return out, nil
}

// CreateOrder inserts the order and its lines in one transaction.
func (d *DB) CreateOrder(ctx context.Context, order *models.Order, lines []models.OrderLine) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if len(lines) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&lines).Exec(ctx); err != nil {
			return fmt.Errorf("insert order lines: %w", err)
		}
		return nil
	})
}

func (d *DB) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orders.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetOrderWithLines(ctx context.Context, orderID string) (*models.OrderWithLines, error) {
	order, err := d.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var lines []models.OrderLine
	err = d.Bun.NewSelect().
		Model(&lines).
		Where("order_id = ?", orderID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &models.OrderWithLines{Order: *order, Lines: lines}, nil
}

// UpdateOrderStatus → single forward step, conditional on the status the
// caller read. A raced transition affects zero rows and is reported.
func (d *DB) UpdateOrderStatus(ctx context.Context, orderID string, from, to models.OrderStatus) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", to).
		Where("order_id = ?", orderID).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("order %s is no longer %s", orderID, from)
	}
	return nil
}
