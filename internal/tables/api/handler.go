package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mesa-pos/internal/auth"
	"mesa-pos/internal/logger"
	"mesa-pos/internal/models"
	"mesa-pos/internal/sse"
	"mesa-pos/internal/tables"
)

type Handler struct {
	Service *tables.Service
	Changes *sse.ChangeEmitter
	Logger  *logger.Logger
}

func NewHandler(service *tables.Service, changes *sse.ChangeEmitter, log *logger.Logger) *Handler {
	return &Handler{Service: service, Changes: changes, Logger: log}
}

func (h *Handler) CreateTable(w http.ResponseWriter, r *http.Request) {
	staff, ok := auth.StaffFromContext(r.Context())
	if !ok {
		http.Error(w, "missing staff context", http.StatusUnauthorized)
		return
	}

	var req models.TableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateTable: failed to decode request body: %v", err))
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	table, err := h.Service.Create(r.Context(), staff, req)
	if err != nil {
		if errors.Is(err, tables.ErrMissingName) {
			http.Error(w, "Table name is required", http.StatusBadRequest)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("CreateTable: %v", err))
		http.Error(w, "Could not create table: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.Changes.Emit(sse.ChangeEvent{Entity: "tables", Action: "created", EntityID: table.TableID, BranchID: staff.BranchID})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(table); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateTable: failed to encode response: %v", err))
	}
}

func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	staff, ok := auth.StaffFromContext(r.Context())
	if !ok {
		http.Error(w, "missing staff context", http.StatusUnauthorized)
		return
	}

	list, err := h.Service.List(r.Context(), staff)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListTables: %v", err))
		http.Error(w, "Could not list tables: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(list); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListTables: failed to encode response: %v", err))
	}
}

// RotateToken reissues the table token. Every previously printed QR stops
// resolving once this returns.
func (h *Handler) RotateToken(w http.ResponseWriter, r *http.Request) {
	staff, ok := auth.StaffFromContext(r.Context())
	if !ok {
		http.Error(w, "missing staff context", http.StatusUnauthorized)
		return
	}
	tableID := chi.URLParam(r, "tableId")
	h.Logger.Info("API", fmt.Sprintf("RotateToken: tableId=%s", tableID))

	table, err := h.Service.RotateToken(r.Context(), tableID)
	if err != nil {
		if errors.Is(err, tables.ErrNotFound) {
			http.Error(w, "Table not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("RotateToken: %v", err))
		http.Error(w, "Could not rotate token: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.Changes.Emit(sse.ChangeEvent{Entity: "tables", Action: "updated", EntityID: tableID, BranchID: staff.BranchID})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(table); err != nil {
		h.Logger.Error("API", fmt.Sprintf("RotateToken: failed to encode response: %v", err))
	}
}

func (h *Handler) DeactivateTable(w http.ResponseWriter, r *http.Request) {
	staff, ok := auth.StaffFromContext(r.Context())
	if !ok {
		http.Error(w, "missing staff context", http.StatusUnauthorized)
		return
	}
	tableID := chi.URLParam(r, "tableId")
	h.Logger.Info("API", fmt.Sprintf("DeactivateTable: tableId=%s", tableID))

	if err := h.Service.Deactivate(r.Context(), tableID); err != nil {
		if errors.Is(err, tables.ErrNotFound) {
			http.Error(w, "Table not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("DeactivateTable: %v", err))
		http.Error(w, "Could not deactivate table: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.Changes.Emit(sse.ChangeEvent{Entity: "tables", Action: "updated", EntityID: tableID, BranchID: staff.BranchID})
	w.WriteHeader(http.StatusNoContent)
}

// TableQR serves the printable QR PNG of the table.
func (h *Handler) TableQR(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableId")
	h.Logger.Info("API", fmt.Sprintf("TableQR: tableId=%s", tableID))

	png, err := h.Service.QRCode(r.Context(), tableID)
	if err != nil {
		if errors.Is(err, tables.ErrNotFound) {
			http.Error(w, "Table not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("TableQR: %v", err))
		http.Error(w, "Could not render QR: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("TableQR: failed to write PNG: %v", err))
	}
}
