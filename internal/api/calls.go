package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Muhiddinjon/call-center-crm/internal/bus"
	"github.com/Muhiddinjon/call-center-crm/internal/clock"
	"github.com/Muhiddinjon/call-center-crm/internal/phone"
	"github.com/Muhiddinjon/call-center-crm/internal/store"
	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

// CallsHandler provides REST endpoints for call records
type CallsHandler struct {
	store  store.Store
	bus    *bus.Bus
	clock  *clock.Clock
	logger zerolog.Logger
}

// NewCallsHandler creates a new CallsHandler
func NewCallsHandler(st store.Store, b *bus.Bus, ck *clock.Clock, logger zerolog.Logger) *CallsHandler {
	return &CallsHandler{
		store:  st,
		bus:    b,
		clock:  ck,
		logger: logger.With().Str("component", "calls_handler").Logger(),
	}
}

// List handles GET /api/calls with optional filters
func (h *CallsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := types.CallFilters{
		Region:       q.Get("region"),
		Direction:    types.Direction(q.Get("direction")),
		CallerType:   types.CallerType(q.Get("callerType")),
		OperatorName: q.Get("operator"),
		PhoneNumber:  q.Get("phone"),
	}

	// Date filters arrive as YYYY-MM-DD and resolve to local day bounds.
	if date := q.Get("dateFrom"); date != "" {
		from, _, err := h.clock.DayBounds(date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid dateFrom")
			return
		}
		filters.DateFrom = from
	}
	if date := q.Get("dateTo"); date != "" {
		_, to, err := h.clock.DayBounds(date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid dateTo")
			return
		}
		filters.DateTo = to - 1
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filters.Limit = n
	}
	if offset := q.Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filters.Offset = n
	}

	calls, err := h.store.QueryCalls(r.Context(), filters)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to query calls")
		writeError(w, http.StatusInternalServerError, "failed to retrieve calls")
		return
	}
	if calls == nil {
		calls = []types.CallRecord{}
	}
	writeJSON(w, http.StatusOK, calls)
}

// Active handles GET /api/calls/active
func (h *CallsHandler) Active(w http.ResponseWriter, r *http.Request) {
	calls, err := h.store.ActiveCalls(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get active calls")
		writeError(w, http.StatusInternalServerError, "failed to retrieve active calls")
		return
	}
	if calls == nil {
		calls = []types.CallRecord{}
	}
	writeJSON(w, http.StatusOK, calls)
}

// Get handles GET /api/calls/{id}
func (h *CallsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.store.GetCall(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("call_id", id).Msg("failed to get call")
		writeError(w, http.StatusInternalServerError, "failed to retrieve call")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "call not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Update handles PATCH /api/calls/{id} with operator annotations
func (h *CallsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var upd types.CallUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.store.UpdateCall(r.Context(), id, upd, h.clock.NowMillis())
	if err != nil {
		h.logger.Error().Err(err).Str("call_id", id).Msg("failed to update call")
		writeError(w, http.StatusInternalServerError, "failed to update call")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "call not found")
		return
	}

	if _, err := h.bus.Publish(r.Context(), types.EventCallUpdated, rec); err != nil {
		h.logger.Error().Err(err).Str("call_id", id).Msg("publish call.updated")
	}
	writeJSON(w, http.StatusOK, rec)
}

// SearchResult is the phone search payload: matching calls plus the caller
// profile assembled from them
type SearchResult struct {
	Contact types.ContactSummary `json:"contact"`
	Calls   []types.CallRecord   `json:"calls"`
}

// Search handles GET /api/calls/search?phone=...
func (h *CallsHandler) Search(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("phone")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "phone query parameter is required")
		return
	}

	variants := phone.SearchVariants(raw)
	calls, err := h.store.CallsByPhoneVariants(r.Context(), variants)
	if err != nil {
		h.logger.Error().Err(err).Str("phone", raw).Msg("failed to search calls")
		writeError(w, http.StatusInternalServerError, "failed to search calls")
		return
	}
	if calls == nil {
		calls = []types.CallRecord{}
	}

	summary := types.ContactSummary{
		PhoneNumber: phone.Normalize(raw),
		TotalCalls:  len(calls),
	}
	for i := range calls {
		c := &calls[i]
		if c.StartedAt > summary.LastCall {
			summary.LastCall = c.StartedAt
		}
		if c.IsDriver && summary.DriverInfo == nil {
			summary.IsDriver = true
			summary.DriverInfo = &types.DriverInfo{
				IsDriver:     true,
				DriverID:     c.DriverID,
				DriverName:   c.DriverName,
				DriverCar:    c.DriverCar,
				DriverRating: c.DriverRating,
			}
		}
	}
	if contact, err := h.store.GetContact(r.Context(), variants); err == nil && contact != nil {
		summary.ContactName = contact.Name
	}

	writeJSON(w, http.StatusOK, SearchResult{Contact: summary, Calls: calls})
}
