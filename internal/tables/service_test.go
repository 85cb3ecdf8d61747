package tables_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesa-pos/internal/logger"
	"mesa-pos/internal/models"
	"mesa-pos/internal/tables"
	"mesa-pos/internal/tables/qr"
)

type MockTablesDB struct {
	tables       map[string]*models.Table
	shouldFailOn string
	errorMsg     string
}

func NewMockTablesDB() *MockTablesDB {
	return &MockTablesDB{tables: make(map[string]*models.Table)}
}

func (m *MockTablesDB) CreateTable(ctx context.Context, table *models.Table) error {
	if m.shouldFailOn == "CreateTable" {
		return errors.New(m.errorMsg)
	}
	cp := *table
	m.tables[table.TableID] = &cp
	return nil
}

func (m *MockTablesDB) GetTable(ctx context.Context, tableID string) (*models.Table, error) {
	if m.shouldFailOn == "GetTable" {
		return nil, errors.New(m.errorMsg)
	}
	table, exists := m.tables[tableID]
	if !exists {
		return nil, tables.ErrNotFound
	}
	cp := *table
	return &cp, nil
}

func (m *MockTablesDB) ListTables(ctx context.Context, branchID string) ([]models.Table, error) {
	var out []models.Table
	for _, table := range m.tables {
		if table.BranchID == branchID {
			out = append(out, *table)
		}
	}
	return out, nil
}

func (m *MockTablesDB) UpdateToken(ctx context.Context, tableID, token string) error {
	if m.shouldFailOn == "UpdateToken" {
		return errors.New(m.errorMsg)
	}
	m.tables[tableID].Token = token
	return nil
}

func (m *MockTablesDB) SetActive(ctx context.Context, tableID string, active bool) error {
	m.tables[tableID].Active = active
	return nil
}

func (m *MockTablesDB) UpdatePIN(ctx context.Context, tableID, pin string) error {
	m.tables[tableID].PIN = pin
	return nil
}

func setupTables() (*MockTablesDB, *tables.Service) {
	db := NewMockTablesDB()
	svc := tables.NewService(db, qr.NewGenerator("https://pos.example.com"), logger.NewLogger())
	return db, svc
}

func staff() models.StaffContext {
	return models.StaffContext{UserID: "u1", BranchID: "b1", Role: "admin"}
}

func TestCreateTable(t *testing.T) {
	db, svc := setupTables()

	table, err := svc.Create(context.Background(), staff(), models.TableRequest{Name: "  Mesa 1  ", PIN: "12-34"})
	require.NoError(t, err)

	assert.Equal(t, "Mesa 1", table.Name)
	assert.Equal(t, "b1", table.BranchID)
	assert.True(t, table.Active)
	assert.NotEmpty(t, table.Slug)
	assert.Len(t, table.Token, 32, "token is 16 random bytes hex encoded")
	assert.Equal(t, "1234", table.PIN, "PIN keeps digits only")
	assert.Contains(t, db.tables, table.TableID)
}

func TestCreateTableRequiresName(t *testing.T) {
	_, svc := setupTables()

	_, err := svc.Create(context.Background(), staff(), models.TableRequest{Name: "   "})
	assert.ErrorIs(t, err, tables.ErrMissingName)
}

func TestRotateTokenInvalidatesOldQR(t *testing.T) {
	db, svc := setupTables()
	created, err := svc.Create(context.Background(), staff(), models.TableRequest{Name: "Mesa 1"})
	require.NoError(t, err)
	oldToken := created.Token

	rotated, err := svc.RotateToken(context.Background(), created.TableID)
	require.NoError(t, err)
	assert.NotEqual(t, oldToken, rotated.Token)
	assert.Equal(t, rotated.Token, db.tables[created.TableID].Token)

	_, err = svc.RotateToken(context.Background(), "missing")
	assert.ErrorIs(t, err, tables.ErrNotFound)
}

func TestDeactivate(t *testing.T) {
	db, svc := setupTables()
	created, err := svc.Create(context.Background(), staff(), models.TableRequest{Name: "Mesa 1"})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), created.TableID))
	assert.False(t, db.tables[created.TableID].Active)
}

func TestQRCodeEncodesSlugAndToken(t *testing.T) {
	_, svc := setupTables()
	created, err := svc.Create(context.Background(), staff(), models.TableRequest{Name: "Mesa 1"})
	require.NoError(t, err)

	png, err := svc.QRCode(context.Background(), created.TableID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")), "QR must render as PNG")
}

func TestTableURL(t *testing.T) {
	gen := qr.NewGenerator("https://pos.example.com")
	url := gen.TableURL(models.Table{Slug: "mesa-7", Token: "abc123"})
	assert.Equal(t, "https://pos.example.com/m/mesa-7?t=abc123", url)
}
