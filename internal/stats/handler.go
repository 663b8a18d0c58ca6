package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/wolfman30/clinic-agenda/internal/rowstore"
	"github.com/wolfman30/clinic-agenda/pkg/logging"
)

// Summarizer is the read side the handler needs.
type Summarizer interface {
	Summary(ctx context.Context, start, end civil.Date) (Summary, error)
}

// Handler serves appointment statistics over HTTP.
type Handler struct {
	svc    Summarizer
	logger *logging.Logger
	today  func() civil.Date
}

func NewHandler(svc Summarizer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		svc:    svc,
		logger: logger,
		today:  func() civil.Date { return civil.DateOf(time.Now()) },
	}
}

// GetStats returns a summary for a date range.
// GET /stats
// Query params:
//   - start: YYYY-MM-DD (optional)
//   - end: YYYY-MM-DD (optional)
//
// Without both, the last seven days up to today are summarized.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	startParam := r.URL.Query().Get("start")
	endParam := r.URL.Query().Get("end")
	if (startParam == "") != (endParam == "") {
		http.Error(w, `{"error": "both start and end must be provided, or neither"}`, http.StatusBadRequest)
		return
	}

	start, end := DefaultRange(h.today())
	if startParam != "" {
		var err error
		if start, err = rowstore.ParseDate(startParam); err != nil {
			http.Error(w, `{"error": "invalid start date, use YYYY-MM-DD"}`, http.StatusBadRequest)
			return
		}
		if end, err = rowstore.ParseDate(endParam); err != nil {
			http.Error(w, `{"error": "invalid end date, use YYYY-MM-DD"}`, http.StatusBadRequest)
			return
		}
	}

	summary, err := h.svc.Summary(r.Context(), start, end)
	if errors.Is(err, ErrInvalidRange) {
		http.Error(w, `{"error": "start date is after end date"}`, http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.Error("failed to compute stats", "start", start, "end", end, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		h.logger.Error("failed to encode stats", "error", err)
	}
}
