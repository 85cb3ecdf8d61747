package tables

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mesa-pos/internal/logger"
	"mesa-pos/internal/models"
	"mesa-pos/internal/tables/qr"
)

var (
	ErrNotFound    = errors.New("table not found")
	ErrMissingName = errors.New("table name is required")
)

type DBLayer interface {
	CreateTable(ctx context.Context, table *models.Table) error
	GetTable(ctx context.Context, tableID string) (*models.Table, error)
	ListTables(ctx context.Context, branchID string) ([]models.Table, error)
	UpdateToken(ctx context.Context, tableID, token string) error
	SetActive(ctx context.Context, tableID string, active bool) error
	UpdatePIN(ctx context.Context, tableID, pin string) error
}

// Service provisions tables: each one gets a routing slug and an access
// token, and the slug+token pair is what the printed QR encodes.
type Service struct {
	DB     DBLayer
	QR     *qr.Generator
	Logger *logger.Logger
}

func NewService(db DBLayer, qrGen *qr.Generator, log *logger.Logger) *Service {
	return &Service{DB: db, QR: qrGen, Logger: log}
}

func (s *Service) Create(ctx context.Context, staff models.StaffContext, req models.TableRequest) (*models.Table, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrMissingName
	}

	table := &models.Table{
		TableID:   uuid.NewString(),
		BranchID:  staff.BranchID,
		Name:      name,
		Slug:      fmt.Sprintf("mesa-%d", time.Now().UnixMilli()),
		Token:     newToken(),
		Active:    true,
		PIN:       sanitizePIN(req.PIN),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.DB.CreateTable(ctx, table); err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}

	s.Logger.Info("TABLES", fmt.Sprintf("table %q created with slug %s", name, table.Slug))
	return table, nil
}

func (s *Service) List(ctx context.Context, staff models.StaffContext) ([]models.Table, error) {
	return s.DB.ListTables(ctx, staff.BranchID)
}

// RotateToken invalidates every printed QR of the table.
func (s *Service) RotateToken(ctx context.Context, tableID string) (*models.Table, error) {
	table, err := s.DB.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	table.Token = newToken()
	if err := s.DB.UpdateToken(ctx, tableID, table.Token); err != nil {
		return nil, fmt.Errorf("rotate token: %w", err)
	}
	s.Logger.Info("TABLES", fmt.Sprintf("token rotated for table %s", tableID))
	return table, nil
}

func (s *Service) Deactivate(ctx context.Context, tableID string) error {
	if _, err := s.DB.GetTable(ctx, tableID); err != nil {
		return err
	}
	return s.DB.SetActive(ctx, tableID, false)
}

func (s *Service) SetPIN(ctx context.Context, tableID, pin string) error {
	if _, err := s.DB.GetTable(ctx, tableID); err != nil {
		return err
	}
	return s.DB.UpdatePIN(ctx, tableID, sanitizePIN(pin))
}

// QRCode renders the patron QR PNG for one table.
func (s *Service) QRCode(ctx context.Context, tableID string) ([]byte, error) {
	table, err := s.DB.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	png, err := s.QR.GenerateTableQR(*table)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	return png, nil
}

func newToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return hex.EncodeToString(buf)
}

func sanitizePIN(pin string) string {
	var b strings.Builder
	for _, r := range pin {
		if r >= '0' && r <= '9' && b.Len() < 6 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
