package sse

import (
	"encoding/json"
	"fmt"
	"net/http"

	"mesa-pos/internal/auth"
	"mesa-pos/internal/logger"
)

// Handler streams branch change events to admin clients over SSE.
type Handler struct {
	Logger  *logger.Logger
	Emitter *ChangeEmitter
}

func NewHandler(log *logger.Logger, emitter *ChangeEmitter) *Handler {
	return &Handler{Logger: log, Emitter: emitter}
}

// HandleChanges streams the change feed of the staff member's branch.
func (h *Handler) HandleChanges(w http.ResponseWriter, r *http.Request) {
	staff, ok := auth.StaffFromContext(r.Context())
	if !ok {
		http.Error(w, "missing staff context", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	eventChan := h.Emitter.Subscribe(ctx, staff.BranchID)

	fmt.Fprintf(w, "event: connected\ndata: {\"branch_id\":%q}\n\n", staff.BranchID)
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("client connected to change feed of branch %s", staff.BranchID))

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			jsonData, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("failed to serialize change event: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", jsonData)
			flusher.Flush()
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("client left change feed of branch %s", staff.BranchID))
			return
		}
	}
}
