package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mesa-pos/internal/auth"
	"mesa-pos/internal/lifecycle"
	"mesa-pos/internal/logger"
	"mesa-pos/internal/models"
	"mesa-pos/internal/orders"
	"mesa-pos/internal/sse"
)

type Handler struct {
	OrderService     *orders.Service
	LifecycleService *lifecycle.Service
	Changes          *sse.ChangeEmitter
	Logger           *logger.Logger
}

func NewHandler(orderService *orders.Service, lifecycleService *lifecycle.Service, changes *sse.ChangeEmitter, log *logger.Logger) *Handler {
	return &Handler{
		OrderService:     orderService,
		LifecycleService: lifecycleService,
		Changes:          changes,
		Logger:           log,
	}
}

// CreateOrder is the patron endpoint. The table is resolved from the
// slug+token pair in the body, not from any auth context.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	h.Logger.Info("API", "CreateOrder: received request")

	var req models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: failed to decode request body: %v", err))
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	order, err := h.OrderService.PlaceOrder(r.Context(), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: %v", err))
		switch {
		case errors.Is(err, orders.ErrTableNotFound):
			http.Error(w, "Table not found", http.StatusNotFound)
		case errors.Is(err, orders.ErrInvalidPIN):
			http.Error(w, "Wrong table PIN", http.StatusForbidden)
		case errors.Is(err, orders.ErrEmptyCart), errors.Is(err, orders.ErrItemUnavailable):
			http.Error(w, "Could not place order: "+err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, "Could not place order: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	h.Changes.Emit(sse.ChangeEvent{Entity: "orders", Action: "created", EntityID: order.OrderID, BranchID: order.BranchID})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(order); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: failed to encode response: %v", err))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateOrder: order %s created", order.OrderID))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("GetOrder: orderId=%s", orderID))

	order, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetOrder: order not found: %v", err))
		http.Error(w, "Order not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(order); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetOrder: failed to encode response: %v", err))
	}
}

// AdvanceOrder moves the order one step through the kitchen state machine.
// An order that cannot advance comes back unchanged with advanced=false.
func (h *Handler) AdvanceOrder(w http.ResponseWriter, r *http.Request) {
	staff, ok := auth.StaffFromContext(r.Context())
	if !ok {
		http.Error(w, "missing staff context", http.StatusUnauthorized)
		return
	}
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("AdvanceOrder: orderId=%s", orderID))

	status, advanced, err := h.LifecycleService.Advance(r.Context(), staff, orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("AdvanceOrder: %v", err))
		http.Error(w, "Could not advance order: "+err.Error(), http.StatusConflict)
		return
	}

	if advanced {
		h.Changes.Emit(sse.ChangeEvent{Entity: "orders", Action: "updated", EntityID: orderID, BranchID: staff.BranchID})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"order_id": orderID,
		"status":   status,
		"advanced": advanced,
	}); err != nil {
		h.Logger.Error("API", fmt.Sprintf("AdvanceOrder: failed to encode response: %v", err))
	}
}
