package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"mesa-pos/internal/models"
	"mesa-pos/internal/tables"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateTable(ctx context.Context, table *models.Table) error {
	_, err := d.Bun.NewInsert().Model(table).Exec(ctx)
	return err
}

func (d *DB) GetTable(ctx context.Context, tableID string) (*models.Table, error) {
	var table models.Table
	err := d.Bun.NewSelect().
		Model(&table).
		Where("table_id = ?", tableID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tables.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &table, nil
}

func (d *DB) ListTables(ctx context.Context, branchID string) ([]models.Table, error) {
	var out []models.Table
	err := d.Bun.NewSelect().
		Model(&out).
		Where("branch_id = ?", branchID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) UpdateToken(ctx context.Context, tableID, token string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Table)(nil)).
		Set("token = ?", token).
		Where("table_id = ?", tableID).
		Exec(ctx)
	return err
}

func (d *DB) SetActive(ctx context.Context, tableID string, active bool) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Table)(nil)).
		Set("active = ?", active).
		Where("table_id = ?", tableID).
		Exec(ctx)
	return err
}

func (d *DB) UpdatePIN(ctx context.Context, tableID, pin string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Table)(nil)).
		Set("pin = ?", pin).
		Where("table_id = ?", tableID).
		Exec(ctx)
	return err
}
