package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"mesa-pos/internal/models"
	"mesa-pos/internal/settlement"
)

type DB struct {
	Bun *bun.DB
}

// GetTable → fetch one table by its ID
func (d *DB) GetTable(ctx context.Context, tableID string) (*models.Table, error) {
	var table models.Table
	err := d.Bun.NewSelect().
		Model(&table).
		Where("table_id = ?", tableID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, settlement.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &table, nil
}

// PendingTables → tables of the branch with ready, unsettled orders and
// their outstanding totals
func (d *DB) PendingTables(ctx context.Context, branchID string) ([]models.PendingTable, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("branch_id = ?", branchID).
		Where("status = ?", models.StatusReady).
		Where("settled = ?", false).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return []models.PendingTable{}, nil
	}

	tableIDs := make([]string, 0, len(orders))
	seen := map[string]bool{}
	for _, o := range orders {
		if !seen[o.TableID] {
			seen[o.TableID] = true
			tableIDs = append(tableIDs, o.TableID)
		}
	}

	var tables []models.Table
	err = d.Bun.NewSelect().
		Model(&tables).
		Where("table_id IN (?)", bun.In(tableIDs)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Table, len(tables))
	for _, t := range tables {
		byID[t.TableID] = t
	}

	grouped := map[string]*models.PendingTable{}
	var result []models.PendingTable
	ordering := []string{}
	for _, o := range orders {
		entry, ok := grouped[o.TableID]
		if !ok {
			table, found := byID[o.TableID]
			if !found {
				continue
			}
			grouped[o.TableID] = &models.PendingTable{Table: table}
			entry = grouped[o.TableID]
			ordering = append(ordering, o.TableID)
		}
		entry.OrderCount++
		entry.Total += o.Total
	}
	for _, id := range ordering {
		result = append(result, *grouped[id])
	}
	return result, nil
}

// ReadyUnsettledOrders → orders of one table eligible for settlement
func (d *DB) ReadyUnsettledOrders(ctx context.Context, tableID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("table_id = ?", tableID).
		Where("status = ?", models.StatusReady).
		Where("settled = ?", false).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// UnpaidLinesByOrder → lines of one order that have not reached PAID
func (d *DB) UnpaidLinesByOrder(ctx context.Context, orderID string) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := d.Bun.NewSelect().
		Model(&lines).
		Where("order_id = ?", orderID).
		Where("state != ?", models.LinePaid).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// ItemsByID → resolve menu item metadata for a set of item IDs
func (d *DB) ItemsByID(ctx context.Context, ids []string) (map[string]models.MenuItem, error) {
	out := make(map[string]models.MenuItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []models.MenuItem
	err := d.Bun.NewSelect().
		Model(&items).
		Where("item_id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it.ItemID] = it
	}
	return out, nil
}

// LatestInvoiceByTaxID → most recent invoice recorded for an identity
func (d *DB) LatestInvoiceByTaxID(ctx context.Context, taxID string) (*models.InvoiceRequest, error) {
	var inv models.InvoiceRequest
	err := d.Bun.NewSelect().
		Model(&inv).
		Where("tax_id = ?", taxID).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, settlement.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// RunInTx runs one settlement commit inside a database transaction.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx settlement.TxLayer) error) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Tx{tx: tx})
	})
}

// Tx is the write surface of one commit transaction.
type Tx struct {
	tx bun.Tx
}

func (t *Tx) InsertPayment(ctx context.Context, p *models.PaymentRecord) error {
	_, err := t.tx.NewInsert().Model(p).Exec(ctx)
	return err
}

func (t *Tx) InsertInvoice(ctx context.Context, inv *models.InvoiceRequest) error {
	_, err := t.tx.NewInsert().Model(inv).Exec(ctx)
	return err
}

// MarkLinePaid flips a whole line to PAID. The quantity guard makes the
// update conditional on the value the selection was built from, so a
// concurrent commit that already touched the line aborts this one.
func (t *Tx) MarkLinePaid(ctx context.Context, lineID string, expectQty int) error {
	res, err := t.tx.NewUpdate().
		Model((*models.OrderLine)(nil)).
		Set("state = ?", models.LinePaid).
		Set("paid_qty = quantity").
		Where("line_id = ?", lineID).
		Where("state != ?", models.LinePaid).
		Where("quantity = ?", expectQty).
		Exec(ctx)
	if err != nil {
		return err
	}
	return affectedOrConflict(res)
}

// ReduceLine shrinks the unpaid line to its remainder, same quantity guard.
func (t *Tx) ReduceLine(ctx context.Context, lineID string, remaining, expectQty, paidDelta int) error {
	res, err := t.tx.NewUpdate().
		Model((*models.OrderLine)(nil)).
		Set("quantity = ?", remaining).
		Set("paid_qty = paid_qty + ?", paidDelta).
		Where("line_id = ?", lineID).
		Where("state != ?", models.LinePaid).
		Where("quantity = ?", expectQty).
		Exec(ctx)
	if err != nil {
		return err
	}
	return affectedOrConflict(res)
}

func (t *Tx) InsertLine(ctx context.Context, line *models.OrderLine) error {
	_, err := t.tx.NewInsert().Model(line).Exec(ctx)
	return err
}

// UnpaidPayableCount → unpaid product lines of an order. Song lines are
// excluded: they never block settlement.
func (t *Tx) UnpaidPayableCount(ctx context.Context, orderID string) (int, error) {
	return t.tx.NewSelect().
		Model((*models.OrderLine)(nil)).
		Join("JOIN menu_items AS mi ON mi.item_id = order_line.item_id").
		Where("order_line.order_id = ?", orderID).
		Where("order_line.state != ?", models.LinePaid).
		Where("mi.type = ?", models.ItemProduct).
		Count(ctx)
}

// MarkOrderSettled flips the monotonic settled flag; it is never unset.
func (t *Tx) MarkOrderSettled(ctx context.Context, orderID string) error {
	res, err := t.tx.NewUpdate().
		Model((*models.Order)(nil)).
		Set("settled = ?", true).
		Where("order_id = ?", orderID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("order %s: %w", orderID, settlement.ErrNotFound)
	}
	return nil
}

func affectedOrConflict(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return settlement.ErrConflict
	}
	return nil
}
