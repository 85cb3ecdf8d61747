package lifecycle

import (
	"context"
	"fmt"

	"mesa-pos/internal/logger"
	"mesa-pos/internal/models"
)

type DBLayer interface {
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	// UpdateOrderStatus moves an order from one status to the next,
	// conditional on the current status still matching.
	UpdateOrderStatus(ctx context.Context, orderID string, from, to models.OrderStatus) error
}

type EventPublisher interface {
	PublishOrderStatusChanged(order models.Order) error
}

// Service advances orders through the kitchen state machine. Only the single
// forward edge from the current state is allowed; ready orders belong to the
// settlement engine and are immutable here.
type Service struct {
	DB     DBLayer
	Events EventPublisher
	Logger *logger.Logger
}

func NewService(db DBLayer, events EventPublisher, log *logger.Logger) *Service {
	return &Service{DB: db, Events: events, Logger: log}
}

// NextStatus reports the single permitted forward transition, if any.
func NextStatus(status models.OrderStatus) (models.OrderStatus, bool) {
	switch status {
	case models.StatusPending:
		return models.StatusPreparing, true
	case models.StatusPreparing:
		return models.StatusReady, true
	default:
		return "", false
	}
}

// Advance moves the order one step forward. A terminal or already-ready
// order is a no-op: the current status comes back with advanced=false.
func (s *Service) Advance(ctx context.Context, staff models.StaffContext, orderID string) (models.OrderStatus, bool, error) {
	order, err := s.DB.GetOrder(ctx, orderID)
	if err != nil {
		return "", false, fmt.Errorf("order %s: %w", orderID, err)
	}

	next, ok := NextStatus(order.Status)
	if !ok {
		return order.Status, false, nil
	}

	if err := s.DB.UpdateOrderStatus(ctx, orderID, order.Status, next); err != nil {
		return "", false, fmt.Errorf("advance order %s: %w", orderID, err)
	}

	order.Status = next
	if err := s.Events.PublishOrderStatusChanged(*order); err != nil {
		s.Logger.Error("LIFECYCLE", fmt.Sprintf("publish status change for %s: %v", orderID, err))
	}

	s.Logger.Info("LIFECYCLE", fmt.Sprintf("order %s is now %s", orderID, next))
	return next, true, nil
}
