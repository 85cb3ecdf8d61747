package settlement_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesa-pos/internal/logger"
	"mesa-pos/internal/models"
	"mesa-pos/internal/settlement"
)

// Mock implementations for testing

type MockSettlementDB struct {
	tables       map[string]*models.Table
	orders       map[string]*models.Order
	lines        map[string]*models.OrderLine
	items        map[string]models.MenuItem
	invoices     []models.InvoiceRequest
	payments     []models.PaymentRecord
	shouldFailOn string
	errorMsg     string
}

func NewMockSettlementDB() *MockSettlementDB {
	return &MockSettlementDB{
		tables: make(map[string]*models.Table),
		orders: make(map[string]*models.Order),
		lines:  make(map[string]*models.OrderLine),
		items:  make(map[string]models.MenuItem),
	}
}

func (m *MockSettlementDB) GetTable(ctx context.Context, tableID string) (*models.Table, error) {
	if m.shouldFailOn == "GetTable" {
		return nil, errors.New(m.errorMsg)
	}
	table, exists := m.tables[tableID]
	if !exists {
		return nil, settlement.ErrNotFound
	}
	return table, nil
}

func (m *MockSettlementDB) PendingTables(ctx context.Context, branchID string) ([]models.PendingTable, error) {
	if m.shouldFailOn == "PendingTables" {
		return nil, errors.New(m.errorMsg)
	}
	var out []models.PendingTable
	for _, table := range m.tables {
		if table.BranchID != branchID {
			continue
		}
		pt := models.PendingTable{Table: *table}
		for _, o := range m.orders {
			if o.TableID == table.TableID && o.Status == models.StatusReady && !o.Settled {
				pt.OrderCount++
				pt.Total += o.Total
			}
		}
		if pt.OrderCount > 0 {
			out = append(out, pt)
		}
	}
	return out, nil
}

func (m *MockSettlementDB) ReadyUnsettledOrders(ctx context.Context, tableID string) ([]models.Order, error) {
	if m.shouldFailOn == "ReadyUnsettledOrders" {
		return nil, errors.New(m.errorMsg)
	}
	var out []models.Order
	for _, o := range m.orders {
		if o.TableID == tableID && o.Status == models.StatusReady && !o.Settled {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *MockSettlementDB) UnpaidLinesByOrder(ctx context.Context, orderID string) ([]models.OrderLine, error) {
	if m.shouldFailOn == "UnpaidLinesByOrder" {
		return nil, errors.New(m.errorMsg)
	}
	var out []models.OrderLine
	for _, l := range m.lines {
		if l.OrderID == orderID && l.State != models.LinePaid {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *MockSettlementDB) ItemsByID(ctx context.Context, ids []string) (map[string]models.MenuItem, error) {
	if m.shouldFailOn == "ItemsByID" {
		return nil, errors.New(m.errorMsg)
	}
	out := make(map[string]models.MenuItem)
	for _, id := range ids {
		if item, exists := m.items[id]; exists {
			out[id] = item
		}
	}
	return out, nil
}

func (m *MockSettlementDB) LatestInvoiceByTaxID(ctx context.Context, taxID string) (*models.InvoiceRequest, error) {
	if m.shouldFailOn == "LatestInvoiceByTaxID" {
		return nil, errors.New(m.errorMsg)
	}
	for i := len(m.invoices) - 1; i >= 0; i-- {
		if m.invoices[i].TaxID == taxID {
			return &m.invoices[i], nil
		}
	}
	return nil, settlement.ErrNotFound
}

func (m *MockSettlementDB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx settlement.TxLayer) error) error {
	if m.shouldFailOn == "RunInTx" {
		return errors.New(m.errorMsg)
	}
	return fn(ctx, &mockTx{db: m})
}

type mockTx struct {
	db *MockSettlementDB
}

func (t *mockTx) InsertPayment(ctx context.Context, p *models.PaymentRecord) error {
	if t.db.shouldFailOn == "InsertPayment" {
		return errors.New(t.db.errorMsg)
	}
	t.db.payments = append(t.db.payments, *p)
	return nil
}

func (t *mockTx) InsertInvoice(ctx context.Context, inv *models.InvoiceRequest) error {
	if t.db.shouldFailOn == "InsertInvoice" {
		return errors.New(t.db.errorMsg)
	}
	t.db.invoices = append(t.db.invoices, *inv)
	return nil
}

func (t *mockTx) MarkLinePaid(ctx context.Context, lineID string, expectQty int) error {
	line, exists := t.db.lines[lineID]
	if !exists || line.Quantity != expectQty {
		return settlement.ErrConflict
	}
	line.State = models.LinePaid
	line.PaidQty = line.Quantity
	return nil
}

func (t *mockTx) ReduceLine(ctx context.Context, lineID string, remaining, expectQty, paidDelta int) error {
	line, exists := t.db.lines[lineID]
	if !exists || line.Quantity != expectQty {
		return settlement.ErrConflict
	}
	line.Quantity = remaining
	line.PaidQty += paidDelta
	return nil
}

func (t *mockTx) InsertLine(ctx context.Context, line *models.OrderLine) error {
	cp := *line
	t.db.lines[line.LineID] = &cp
	return nil
}

func (t *mockTx) UnpaidPayableCount(ctx context.Context, orderID string) (int, error) {
	count := 0
	for _, l := range t.db.lines {
		if l.OrderID != orderID || l.State == models.LinePaid {
			continue
		}
		if t.db.items[l.ItemID].Type == models.ItemProduct {
			count++
		}
	}
	return count, nil
}

func (t *mockTx) MarkOrderSettled(ctx context.Context, orderID string) error {
	order, exists := t.db.orders[orderID]
	if !exists {
		return settlement.ErrNotFound
	}
	order.Settled = true
	return nil
}

type MockTableLock struct {
	locked       map[string]string
	shouldFailOn string
	errorMsg     string
	refuse       bool
}

func NewMockTableLock() *MockTableLock {
	return &MockTableLock{locked: make(map[string]string)}
}

func (m *MockTableLock) LockTable(tableID, owner string) (bool, error) {
	if m.shouldFailOn == "LockTable" {
		return false, errors.New(m.errorMsg)
	}
	if m.refuse {
		return false, nil
	}
	if _, exists := m.locked[tableID]; exists {
		return false, nil
	}
	m.locked[tableID] = owner
	return true, nil
}

func (m *MockTableLock) UnlockTable(tableID, owner string) error {
	if m.shouldFailOn == "UnlockTable" {
		return errors.New(m.errorMsg)
	}
	if m.locked[tableID] == owner {
		delete(m.locked, tableID)
	}
	return nil
}

type MockPublisher struct {
	payments []models.PaymentRecord
	settled  []string
}

func (m *MockPublisher) PublishPaymentRecorded(p models.PaymentRecord) error {
	m.payments = append(m.payments, p)
	return nil
}

func (m *MockPublisher) PublishOrderSettled(orderID, tableID string) error {
	m.settled = append(m.settled, orderID)
	return nil
}

func seedTwoOrderTable(db *MockSettlementDB) {
	db.tables["t1"] = &models.Table{TableID: "t1", BranchID: "b1", Name: "Mesa 1", Active: true}
	db.items["beer"] = models.MenuItem{ItemID: "beer", Name: "Beer", Type: models.ItemProduct, Price: 5}
	db.items["wings"] = models.MenuItem{ItemID: "wings", Name: "Wings", Type: models.ItemProduct, Price: 6}
	db.items["song"] = models.MenuItem{ItemID: "song", Name: "La Bamba", Type: models.ItemSong}

	now := time.Now().UTC()
	db.orders["o1"] = &models.Order{OrderID: "o1", TableID: "t1", BranchID: "b1", Status: models.StatusReady, CreatedAt: now}
	db.orders["o2"] = &models.Order{OrderID: "o2", TableID: "t1", BranchID: "b1", Status: models.StatusReady, CreatedAt: now.Add(time.Minute)}

	db.lines["l1"] = &models.OrderLine{LineID: "l1", OrderID: "o1", ItemID: "beer", Quantity: 6, State: models.LinePending}
	db.lines["l2"] = &models.OrderLine{LineID: "l2", OrderID: "o2", ItemID: "wings", Quantity: 3, State: models.LinePending}
	db.lines["l3"] = &models.OrderLine{LineID: "l3", OrderID: "o2", ItemID: "song", Quantity: 1, State: models.LinePending}
}

func newService(db *MockSettlementDB, lock *MockTableLock, events *MockPublisher) *settlement.Service {
	return settlement.NewService(db, lock, events, logger.NewLogger())
}

func staff() models.StaffContext {
	return models.StaffContext{UserID: "u1", BranchID: "b1", Role: "admin"}
}

func TestListPendingLinesMarksSongsNonPayable(t *testing.T) {
	db := NewMockSettlementDB()
	seedTwoOrderTable(db)
	svc := newService(db, NewMockTableLock(), &MockPublisher{})

	pending, err := svc.ListPendingLines(context.Background(), staff(), "t1")
	require.NoError(t, err)
	require.Len(t, pending, 3)

	byLine := map[string]models.PendingLine{}
	for _, pl := range pending {
		byLine[pl.LineID] = pl
	}
	assert.True(t, byLine["l1"].Payable)
	assert.Equal(t, 5.0, byLine["l1"].UnitPrice)
	assert.False(t, byLine["l3"].Payable)
	assert.Equal(t, 0.0, byLine["l3"].UnitPrice, "song lines must price at zero")
}

func TestCommitAggregatesPerMethod(t *testing.T) {
	db := NewMockSettlementDB()
	seedTwoOrderTable(db)
	svc := newService(db, NewMockTableLock(), &MockPublisher{})

	pending, err := svc.ListPendingLines(context.Background(), staff(), "t1")
	require.NoError(t, err)

	// 6 beers cash (30.00) + 3 wings card (18.00): one payment per method.
	sel := settlement.NewSelection(pending)
	sel.SelectQuantity("l1", 6)
	sel.AssignMethodToLine("l1", models.MethodCash)
	sel.SelectQuantity("l2", 3)
	sel.AssignMethodToLine("l2", models.MethodCard)

	result, err := svc.Commit(context.Background(), staff(), "t1", sel, nil)
	require.NoError(t, err)

	assert.Equal(t, 48.0, result.Total)
	assert.Equal(t, 30.0, result.PerMethod[models.MethodCash])
	assert.Equal(t, 18.0, result.PerMethod[models.MethodCard])
	require.Len(t, db.payments, 2)
}

func TestCommitPartialSplitConservesQuantity(t *testing.T) {
	db := NewMockSettlementDB()
	seedTwoOrderTable(db)
	svc := newService(db, NewMockTableLock(), &MockPublisher{})

	pending, err := svc.ListPendingLines(context.Background(), staff(), "t1")
	require.NoError(t, err)

	sel := settlement.NewSelection(pending)
	sel.SelectQuantity("l1", 2)
	sel.AssignMethodToLine("l1", models.MethodCash)

	result, err := svc.Commit(context.Background(), staff(), "t1", sel, nil)
	require.NoError(t, err)
	assert.Equal(t, 10.0, result.Total)
	assert.Equal(t, 2, result.UnitsPaid)

	// Original line shrank to 4, a PAID fragment of 2 appeared.
	assert.Equal(t, 4, db.lines["l1"].Quantity)
	totalQty, paidQty := 0, 0
	for _, l := range db.lines {
		if l.OrderID == "o1" && l.ItemID == "beer" {
			totalQty += l.Quantity
			if l.State == models.LinePaid {
				paidQty += l.Quantity
			}
		}
	}
	assert.Equal(t, 6, totalQty, "split must conserve total quantity")
	assert.Equal(t, 2, paidQty)
	assert.False(t, db.orders["o1"].Settled, "partially paid order stays open")
}

func TestCommitSettlesFullyPaidOrders(t *testing.T) {
	db := NewMockSettlementDB()
	seedTwoOrderTable(db)
	events := &MockPublisher{}
	svc := newService(db, NewMockTableLock(), events)

	pending, err := svc.ListPendingLines(context.Background(), staff(), "t1")
	require.NoError(t, err)

	sel := settlement.NewSelection(pending)
	sel.SelectAll()
	sel.AssignMethod(models.MethodCash)

	result, err := svc.Commit(context.Background(), staff(), "t1", sel, nil)
	require.NoError(t, err)

	// o2 carries a song line, but songs never block settlement.
	assert.ElementsMatch(t, []string{"o1", "o2"}, result.Settled)
	assert.True(t, db.orders["o1"].Settled)
	assert.True(t, db.orders["o2"].Settled)
	assert.ElementsMatch(t, []string{"o1", "o2"}, events.settled)
}

func TestCommitScopesInvoicesPerOrder(t *testing.T) {
	db := NewMockSettlementDB()
	seedTwoOrderTable(db)
	svc := newService(db, NewMockTableLock(), &MockPublisher{})

	pending, err := svc.ListPendingLines(context.Background(), staff(), "t1")
	require.NoError(t, err)

	// Lines from two orders paid with one method: one invoice per order,
	// each carrying only that order's share.
	sel := settlement.NewSelection(pending)
	sel.SelectQuantity("l1", 2) // o1, 10.00
	sel.SelectQuantity("l2", 3) // o2, 18.00
	sel.AssignMethod(models.MethodTransfer)

	info := &models.InvoiceInfo{BilledName: "Ana Perez", TaxID: "1712345678"}
	result, err := svc.Commit(context.Background(), staff(), "t1", sel, info)
	require.NoError(t, err)
	assert.Equal(t, 28.0, result.Total)

	require.Len(t, db.payments, 1)
	require.Len(t, db.invoices, 2)
	amounts := map[string]float64{}
	for _, inv := range db.invoices {
		amounts[inv.OrderID] = inv.Amount
		assert.Equal(t, "1712345678", inv.TaxID)
		assert.Equal(t, models.InvoicePending, inv.Status)
		assert.Equal(t, db.payments[0].PaymentID, inv.PaymentID, "invoice links to its method bucket's payment")
	}
	assert.Equal(t, 10.0, amounts["o1"])
	assert.Equal(t, 18.0, amounts["o2"])
}

func TestCommitValidation(t *testing.T) {
	db := NewMockSettlementDB()
	seedTwoOrderTable(db)
	svc := newService(db, NewMockTableLock(), &MockPublisher{})

	pending, err := svc.ListPendingLines(context.Background(), staff(), "t1")
	require.NoError(t, err)

	empty := settlement.NewSelection(pending)
	_, err = svc.Commit(context.Background(), staff(), "t1", empty, nil)
	assert.ErrorIs(t, err, settlement.ErrEmptySelection)

	// Song-only selections collapse to empty.
	songOnly := settlement.NewSelection(pending)
	songOnly.SelectQuantity("l3", 1)
	songOnly.AssignMethodToLine("l3", models.MethodCash)
	_, err = svc.Commit(context.Background(), staff(), "t1", songOnly, nil)
	assert.ErrorIs(t, err, settlement.ErrEmptySelection)

	noMethod := settlement.NewSelection(pending)
	noMethod.SelectQuantity("l1", 1)
	_, err = svc.Commit(context.Background(), staff(), "t1", noMethod, nil)
	assert.ErrorIs(t, err, settlement.ErrMissingMethod)

	withQty := settlement.NewSelection(pending)
	withQty.SelectQuantity("l1", 1)
	withQty.AssignMethod(models.MethodCash)

	_, err = svc.Commit(context.Background(), staff(), "t1", withQty, &models.InvoiceInfo{BilledName: "Ana", TaxID: "12345"})
	assert.ErrorIs(t, err, settlement.ErrInvalidTaxID)

	_, err = svc.Commit(context.Background(), staff(), "t1", withQty, &models.InvoiceInfo{TaxID: "1712345678"})
	assert.ErrorIs(t, err, settlement.ErrMissingBilled)
}

func TestCommitRefusedWhileTableLocked(t *testing.T) {
	db := NewMockSettlementDB()
	seedTwoOrderTable(db)
	lock := NewMockTableLock()
	lock.refuse = true
	svc := newService(db, lock, &MockPublisher{})

	pending, err := svc.ListPendingLines(context.Background(), staff(), "t1")
	require.NoError(t, err)

	sel := settlement.NewSelection(pending)
	sel.SelectQuantity("l1", 1)
	sel.AssignMethod(models.MethodCash)

	_, err = svc.Commit(context.Background(), staff(), "t1", sel, nil)
	assert.ErrorIs(t, err, settlement.ErrTableLocked)
	assert.Empty(t, db.payments)
}

func TestCommitReleasesLock(t *testing.T) {
	db := NewMockSettlementDB()
	seedTwoOrderTable(db)
	lock := NewMockTableLock()
	svc := newService(db, lock, &MockPublisher{})

	pending, err := svc.ListPendingLines(context.Background(), staff(), "t1")
	require.NoError(t, err)

	sel := settlement.NewSelection(pending)
	sel.SelectQuantity("l1", 1)
	sel.AssignMethod(models.MethodCash)

	_, err = svc.Commit(context.Background(), staff(), "t1", sel, nil)
	require.NoError(t, err)
	assert.Empty(t, lock.locked, "commit must release the table lock")
}

func TestLookupInvoiceIdentity(t *testing.T) {
	db := NewMockSettlementDB()
	db.invoices = append(db.invoices, models.InvoiceRequest{
		BilledName: "Ana Perez", TaxID: "1712345678", Email: "ana@example.com",
	})
	svc := newService(db, NewMockTableLock(), &MockPublisher{})

	info, err := svc.LookupInvoiceIdentity(context.Background(), "1712345678")
	require.NoError(t, err)
	assert.Equal(t, "Ana Perez", info.BilledName)
	assert.Equal(t, "ana@example.com", info.Email)

	_, err = svc.LookupInvoiceIdentity(context.Background(), "not-digits")
	assert.ErrorIs(t, err, settlement.ErrInvalidTaxID)

	// 13-digit business IDs are valid too.
	_, err = svc.LookupInvoiceIdentity(context.Background(), "1712345678001")
	assert.ErrorIs(t, err, settlement.ErrNotFound)
}
