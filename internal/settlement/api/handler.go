package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mesa-pos/internal/auth"
	"mesa-pos/internal/logger"
	"mesa-pos/internal/models"
	"mesa-pos/internal/settlement"
	"mesa-pos/internal/sse"
)

type Handler struct {
	Service *settlement.Service
	Changes *sse.ChangeEmitter
	Logger  *logger.Logger
}

func NewHandler(service *settlement.Service, changes *sse.ChangeEmitter, log *logger.Logger) *Handler {
	return &Handler{Service: service, Changes: changes, Logger: log}
}

// CommitRequest is the settlement dialog payload: the chosen portion and
// payment method per line, plus the optional billing identity.
type CommitRequest struct {
	Lines   []CommitLine        `json:"lines"`
	Invoice *models.InvoiceInfo `json:"invoice,omitempty"`
}

type CommitLine struct {
	LineID   string               `json:"line_id"`
	Quantity float64              `json:"quantity"`
	Method   models.PaymentMethod `json:"method"`
}

func (h *Handler) PendingTables(w http.ResponseWriter, r *http.Request) {
	staff, ok := auth.StaffFromContext(r.Context())
	if !ok {
		http.Error(w, "missing staff context", http.StatusUnauthorized)
		return
	}

	tables, err := h.Service.PendingTables(r.Context(), staff)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("PendingTables: %v", err))
		http.Error(w, "Failed to list pending tables: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(tables); err != nil {
		h.Logger.Error("API", fmt.Sprintf("PendingTables: failed to encode response: %v", err))
	}
}

func (h *Handler) PendingLines(w http.ResponseWriter, r *http.Request) {
	staff, ok := auth.StaffFromContext(r.Context())
	if !ok {
		http.Error(w, "missing staff context", http.StatusUnauthorized)
		return
	}
	tableID := chi.URLParam(r, "tableId")
	h.Logger.Info("API", fmt.Sprintf("PendingLines: tableId=%s", tableID))

	lines, err := h.Service.ListPendingLines(r.Context(), staff, tableID)
	if err != nil {
		if errors.Is(err, settlement.ErrNotFound) {
			http.Error(w, "Table not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("PendingLines: %v", err))
		http.Error(w, "Failed to list pending lines: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(lines); err != nil {
		h.Logger.Error("API", fmt.Sprintf("PendingLines: failed to encode response: %v", err))
	}
}

// Commit rebuilds the selection server-side from the table's current pending
// lines, so a stale dialog can never pay more than a line still holds.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	staff, ok := auth.StaffFromContext(r.Context())
	if !ok {
		http.Error(w, "missing staff context", http.StatusUnauthorized)
		return
	}
	tableID := chi.URLParam(r, "tableId")
	h.Logger.Info("API", fmt.Sprintf("Commit: tableId=%s", tableID))

	var req CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Commit: failed to decode request body: %v", err))
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	pending, err := h.Service.ListPendingLines(r.Context(), staff, tableID)
	if err != nil {
		if errors.Is(err, settlement.ErrNotFound) {
			http.Error(w, "Table not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("Commit: %v", err))
		http.Error(w, "Failed to load pending lines: "+err.Error(), http.StatusInternalServerError)
		return
	}

	sel := settlement.NewSelection(pending)
	for _, l := range req.Lines {
		sel.SelectQuantity(l.LineID, l.Quantity)
		sel.AssignMethodToLine(l.LineID, l.Method)
	}

	result, err := h.Service.Commit(r.Context(), staff, tableID, sel, req.Invoice)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Commit: %v", err))
		http.Error(w, "Settlement failed: "+err.Error(), commitStatus(err))
		return
	}

	h.Changes.Emit(sse.ChangeEvent{Entity: "payments", Action: "created", EntityID: tableID, BranchID: staff.BranchID})
	for _, orderID := range result.Settled {
		h.Changes.Emit(sse.ChangeEvent{Entity: "orders", Action: "settled", EntityID: orderID, BranchID: staff.BranchID})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Commit: failed to encode response: %v", err))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("Commit: table %s settled %.2f at %s", tableID, result.Total, time.Now().Format(time.RFC3339)))
}

func (h *Handler) LookupInvoiceIdentity(w http.ResponseWriter, r *http.Request) {
	taxID := chi.URLParam(r, "taxId")
	h.Logger.Info("API", fmt.Sprintf("LookupInvoiceIdentity: taxId=%s", taxID))

	info, err := h.Service.LookupInvoiceIdentity(r.Context(), taxID)
	if err != nil {
		if errors.Is(err, settlement.ErrInvalidTaxID) {
			http.Error(w, "Tax ID must be 10 or 13 digits", http.StatusBadRequest)
			return
		}
		if errors.Is(err, settlement.ErrNotFound) {
			http.Error(w, "No invoice on record for this tax ID", http.StatusNotFound)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("LookupInvoiceIdentity: %v", err))
		http.Error(w, "Lookup failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(info); err != nil {
		h.Logger.Error("API", fmt.Sprintf("LookupInvoiceIdentity: failed to encode response: %v", err))
	}
}

func commitStatus(err error) int {
	switch {
	case errors.Is(err, settlement.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, settlement.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, settlement.ErrTableLocked):
		return http.StatusLocked
	case errors.Is(err, settlement.ErrEmptySelection),
		errors.Is(err, settlement.ErrMissingMethod),
		errors.Is(err, settlement.ErrInvalidTaxID),
		errors.Is(err, settlement.ErrMissingBilled),
		errors.Is(err, settlement.ErrNotPayable):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
