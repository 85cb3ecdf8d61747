package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"mesa-pos/internal/auth"
	"mesa-pos/internal/closing"
	"mesa-pos/internal/logger"
)

type Handler struct {
	Service *closing.Service
	Logger  *logger.Logger
}

func NewHandler(service *closing.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// CloseDay computes the closing report for ?date=YYYY-MM-DD&tz=<IANA zone>.
// The zone defaults to the venue's home zone when omitted.
func (h *Handler) CloseDay(w http.ResponseWriter, r *http.Request) {
	staff, ok := auth.StaffFromContext(r.Context())
	if !ok {
		http.Error(w, "missing staff context", http.StatusUnauthorized)
		return
	}

	tz := r.URL.Query().Get("tz")
	if tz == "" {
		tz = "America/Guayaquil"
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		http.Error(w, "date query parameter is required", http.StatusBadRequest)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CloseDay: date=%s tz=%s branch=%s", date, tz, staff.BranchID))

	report, err := h.Service.CloseDay(r.Context(), date, tz, staff)
	if err != nil {
		if errors.Is(err, closing.ErrBadDate) {
			http.Error(w, "Date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("CloseDay: %v", err))
		http.Error(w, "Closing failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CloseDay: failed to encode response: %v", err))
	}
}
