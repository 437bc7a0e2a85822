package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Muhiddinjon/call-center-crm/internal/stats"
)

// StatsHandler serves aggregated call statistics
type StatsHandler struct {
	service *stats.Service
	logger  zerolog.Logger
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(service *stats.Service, logger zerolog.Logger) *StatsHandler {
	return &StatsHandler{
		service: service,
		logger:  logger.With().Str("component", "stats_handler").Logger(),
	}
}

// Daily handles GET /api/stats/daily?date=YYYY-MM-DD (today when omitted)
func (h *StatsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")

	snap, err := h.service.Daily(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Range handles GET /api/stats/range?dateFrom=&dateTo=
func (h *StatsHandler) Range(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dateFrom := q.Get("dateFrom")
	dateTo := q.Get("dateTo")
	if dateFrom == "" || dateTo == "" {
		writeError(w, http.StatusBadRequest, "dateFrom and dateTo are required")
		return
	}

	sum, err := h.service.Range(r.Context(), dateFrom, dateTo)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
