package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"mesa-pos/internal/models"
	"mesa-pos/internal/orders"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.Table)(nil),
		(*models.MenuItem)(nil),
		(*models.ItemAvailability)(nil),
		(*models.Order)(nil),
		(*models.OrderLine)(nil),
	} {
		require.NoError(t, bunDB.ResetModel(ctx, model))
	}
	t.Cleanup(func() { bunDB.Close() })
	return &DB{Bun: bunDB}
}

func TestResolveTable(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	tables := []models.Table{
		{TableID: "t1", BranchID: "b1", Name: "Mesa 1", Slug: "mesa-1", Token: "tok-1", Active: true, CreatedAt: time.Now().UTC()},
		{TableID: "t2", BranchID: "b1", Name: "Mesa 2", Slug: "mesa-2", Token: "tok-2", Active: false, CreatedAt: time.Now().UTC()},
	}
	_, err := d.Bun.NewInsert().Model(&tables).Exec(ctx)
	require.NoError(t, err)

	table, err := d.ResolveTable(ctx, "mesa-1", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "t1", table.TableID)

	_, err = d.ResolveTable(ctx, "mesa-1", "wrong-token")
	assert.ErrorIs(t, err, orders.ErrTableNotFound)

	_, err = d.ResolveTable(ctx, "mesa-2", "tok-2")
	assert.ErrorIs(t, err, orders.ErrTableNotFound, "inactive tables must not resolve")
}

func TestAvailableItemsByID(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	items := []models.MenuItem{
		{ItemID: "beer", Name: "Beer", Type: models.ItemProduct, Price: 5},
		{ItemID: "wings", Name: "Wings", Type: models.ItemProduct, Price: 6},
	}
	_, err := d.Bun.NewInsert().Model(&items).Exec(ctx)
	require.NoError(t, err)

	availability := []models.ItemAvailability{
		{ItemID: "beer", BranchID: "b1", Available: true},
		{ItemID: "wings", BranchID: "b1", Available: false},
		{ItemID: "beer", BranchID: "b2", Available: false},
	}
	_, err = d.Bun.NewInsert().Model(&availability).Exec(ctx)
	require.NoError(t, err)

	out, err := d.AvailableItemsByID(ctx, "b1", []string{"beer", "wings"})
	require.NoError(t, err)
	assert.Contains(t, out, "beer")
	assert.NotContains(t, out, "wings", "branch-disabled items are invisible")

	out, err = d.AvailableItemsByID(ctx, "b2", []string{"beer"})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCreateOrderWithLines(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	order := models.Order{
		OrderID: "o1", TableID: "t1", BranchID: "b1",
		Type: models.OrderProducts, Status: models.StatusPending,
		Total: 10, CreatedAt: time.Now().UTC(),
	}
	lines := []models.OrderLine{
		{LineID: "l1", OrderID: "o1", ItemID: "beer", Quantity: 2, State: models.LinePending},
	}
	require.NoError(t, d.CreateOrder(ctx, &order, lines))

	got, err := d.GetOrderWithLines(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, 2, got.Lines[0].Quantity)

	_, err = d.GetOrderWithLines(ctx, "missing")
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
}

func TestUpdateOrderStatusConditional(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	order := models.Order{OrderID: "o1", TableID: "t1", BranchID: "b1", Status: models.StatusPending, CreatedAt: time.Now().UTC()}
	require.NoError(t, d.CreateOrder(ctx, &order, nil))

	require.NoError(t, d.UpdateOrderStatus(ctx, "o1", models.StatusPending, models.StatusPreparing))

	// The caller's view is stale now; the guarded update must refuse.
	err := d.UpdateOrderStatus(ctx, "o1", models.StatusPending, models.StatusPreparing)
	assert.Error(t, err)

	got, err := d.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPreparing, got.Status)
}
