package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mesa-pos/internal/logger"
	"mesa-pos/internal/models"
)

var (
	ErrTableNotFound   = errors.New("table not found or inactive")
	ErrInvalidPIN      = errors.New("wrong table pin")
	ErrEmptyCart       = errors.New("cart has no units to order")
	ErrItemUnavailable = errors.New("item is not available at this branch")
	ErrOrderNotFound   = errors.New("order not found")
)

type DBLayer interface {
	ResolveTable(ctx context.Context, slug, token string) (*models.Table, error)
	AvailableItemsByID(ctx context.Context, branchID string, ids []string) (map[string]models.MenuItem, error)
	CreateOrder(ctx context.Context, order *models.Order, lines []models.OrderLine) error
	GetOrderWithLines(ctx context.Context, orderID string) (*models.OrderWithLines, error)
}

type EventPublisher interface {
	PublishOrderCreated(order models.OrderWithLines) error
}

// Service handles patron cart submissions: one submission becomes one order
// with its lines in PENDING state.
type Service struct {
	DB     DBLayer
	Events EventPublisher
	Logger *logger.Logger
}

func NewService(db DBLayer, events EventPublisher, log *logger.Logger) *Service {
	return &Service{DB: db, Events: events, Logger: log}
}

// PlaceOrder resolves the table from its slug+token pair, checks the PIN
// when the table has one, prices the cart and writes order plus lines.
// Song requests are ordered like anything else but contribute zero to the
// total.
func (s *Service) PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.OrderWithLines, error) {
	table, err := s.DB.ResolveTable(ctx, req.Slug, req.Token)
	if err != nil {
		return nil, err
	}
	if table.PIN != "" && sanitizePIN(req.PIN) != table.PIN {
		return nil, ErrInvalidPIN
	}

	cart := make([]models.CartLine, 0, len(req.Cart))
	var itemIDs []string
	seen := map[string]bool{}
	for _, cl := range req.Cart {
		if cl.Quantity <= 0 {
			continue
		}
		cart = append(cart, cl)
		if !seen[cl.ItemID] {
			seen[cl.ItemID] = true
			itemIDs = append(itemIDs, cl.ItemID)
		}
	}
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}

	items, err := s.DB.AvailableItemsByID(ctx, table.BranchID, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve cart items: %w", err)
	}

	var total float64
	hasProducts, hasSongs := false, false
	order := models.Order{
		OrderID:   uuid.NewString(),
		TableID:   table.TableID,
		BranchID:  table.BranchID,
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	var lines []models.OrderLine
	for _, cl := range cart {
		item, ok := items[cl.ItemID]
		if !ok {
			return nil, fmt.Errorf("item %s: %w", cl.ItemID, ErrItemUnavailable)
		}
		if item.Payable() {
			hasProducts = true
			total += float64(cl.Quantity) * item.Price
		} else {
			hasSongs = true
		}
		lines = append(lines, models.OrderLine{
			LineID:   uuid.NewString(),
			OrderID:  order.OrderID,
			ItemID:   cl.ItemID,
			Quantity: cl.Quantity,
			Note:     cl.Note,
			State:    models.LinePending,
		})
	}
	order.Total = total
	order.Type = orderType(hasProducts, hasSongs)

	if err := s.DB.CreateOrder(ctx, &order, lines); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	result := &models.OrderWithLines{Order: order, Lines: lines}
	if err := s.Events.PublishOrderCreated(*result); err != nil {
		s.Logger.Error("ORDERS", fmt.Sprintf("publish order created %s: %v", order.OrderID, err))
	}

	s.Logger.Info("ORDERS", fmt.Sprintf("order %s (%s) placed on table %s for %.2f",
		order.OrderID, order.Type, table.Name, total))
	return result, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*models.OrderWithLines, error) {
	return s.DB.GetOrderWithLines(ctx, orderID)
}

func orderType(hasProducts, hasSongs bool) models.OrderType {
	switch {
	case hasProducts && hasSongs:
		return models.OrderMixed
	case hasSongs:
		return models.OrderSongs
	default:
		return models.OrderProducts
	}
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
