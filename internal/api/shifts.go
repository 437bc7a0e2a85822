package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Muhiddinjon/call-center-crm/internal/shifts"
	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

// ShiftsHandler provides REST endpoints for the shift schedule
type ShiftsHandler struct {
	service *shifts.Service
	logger  zerolog.Logger
}

// NewShiftsHandler creates a new ShiftsHandler
func NewShiftsHandler(service *shifts.Service, logger zerolog.Logger) *ShiftsHandler {
	return &ShiftsHandler{
		service: service,
		logger:  logger.With().Str("component", "shifts_handler").Logger(),
	}
}

// List handles GET /api/shifts
func (h *ShiftsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := types.ShiftFilters{
		OperatorID: q.Get("operatorId"),
		DateFrom:   q.Get("dateFrom"),
		DateTo:     q.Get("dateTo"),
		Status:     types.ShiftStatus(q.Get("status")),
	}

	list, err := h.service.Query(r.Context(), filters)
	if err != nil {
		if errors.Is(err, shifts.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("failed to query shifts")
		writeError(w, http.StatusInternalServerError, "failed to retrieve shifts")
		return
	}
	if list == nil {
		list = []types.Shift{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Create handles POST /api/shifts
func (h *ShiftsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.ShiftCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sh, err := h.service.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, shifts.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("failed to create shift")
		writeError(w, http.StatusInternalServerError, "failed to create shift")
		return
	}
	writeJSON(w, http.StatusCreated, sh)
}

// Get handles GET /api/shifts/{id}
func (h *ShiftsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sh, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("shift_id", id).Msg("failed to get shift")
		writeError(w, http.StatusInternalServerError, "failed to retrieve shift")
		return
	}
	if sh == nil {
		writeError(w, http.StatusNotFound, "shift not found")
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

// Update handles PATCH /api/shifts/{id}
func (h *ShiftsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var upd types.ShiftUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sh, err := h.service.Update(r.Context(), id, upd)
	if err != nil {
		switch {
		case errors.Is(err, shifts.ErrNotFound):
			writeError(w, http.StatusNotFound, "shift not found")
		case errors.Is(err, shifts.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error().Err(err).Str("shift_id", id).Msg("failed to update shift")
			writeError(w, http.StatusInternalServerError, "failed to update shift")
		}
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

// Delete handles DELETE /api/shifts/{id}
func (h *ShiftsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, shifts.ErrNotFound) {
			writeError(w, http.StatusNotFound, "shift not found")
			return
		}
		h.logger.Error().Err(err).Str("shift_id", id).Msg("failed to delete shift")
		writeError(w, http.StatusInternalServerError, "failed to delete shift")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Coverage handles GET /api/shifts/coverage?date=YYYY-MM-DD
func (h *ShiftsHandler) Coverage(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date query parameter is required (YYYY-MM-DD)")
		return
	}

	cov, err := h.service.Coverage(r.Context(), date)
	if err != nil {
		if errors.Is(err, shifts.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("date", date).Msg("failed to compute coverage")
		writeError(w, http.StatusInternalServerError, "failed to compute coverage")
		return
	}
	writeJSON(w, http.StatusOK, cov)
}

// OnDuty handles GET /api/shifts/onduty?date=YYYY-MM-DD&hour=N. Both
// parameters are optional and default to the current instant.
func (h *ShiftsHandler) OnDuty(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := q.Get("date")

	hour := -1
	if raw := q.Get("hour"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "hour must be an integer")
			return
		}
		hour = parsed
	}

	ops, err := h.service.OnDuty(r.Context(), date, hour)
	if err != nil {
		if errors.Is(err, shifts.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("date", date).Msg("failed to read on duty set")
		writeError(w, http.StatusInternalServerError, "failed to read on duty set")
		return
	}
	writeJSON(w, http.StatusOK, ops)
}

// Report handles GET /api/shifts/report?operatorId=&dateFrom=&dateTo=
func (h *ShiftsHandler) Report(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	operatorID := q.Get("operatorId")
	dateFrom := q.Get("dateFrom")
	dateTo := q.Get("dateTo")
	if operatorID == "" || dateFrom == "" || dateTo == "" {
		writeError(w, http.StatusBadRequest, "operatorId, dateFrom and dateTo are required")
		return
	}

	report, err := h.service.Report(r.Context(), operatorID, dateFrom, dateTo)
	if err != nil {
		if errors.Is(err, shifts.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("operator_id", operatorID).Msg("failed to build report")
		writeError(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
