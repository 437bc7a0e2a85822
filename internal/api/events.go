package api

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/Muhiddinjon/call-center-crm/internal/bus"
	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

// EventsHandler serves the polled tail of the event log for consumers
// without a websocket connection
type EventsHandler struct {
	bus    *bus.Bus
	logger zerolog.Logger
}

// NewEventsHandler creates a new EventsHandler
func NewEventsHandler(b *bus.Bus, logger zerolog.Logger) *EventsHandler {
	return &EventsHandler{
		bus:    b,
		logger: logger.With().Str("component", "events_handler").Logger(),
	}
}

// PollResponse carries one page of the event tail. NewLastSequenceID is
// the cursor for the next poll; with no new events it echoes the since
// value so the caller never moves backwards.
type PollResponse struct {
	Events            []types.EventEnvelope `json:"events"`
	NewLastSequenceID int64                 `json:"newLastSequenceId"`
}

// Poll handles GET /api/events?since=<sequenceId>&limit=<n>. Omitting
// since returns the recent window; events come back oldest first.
func (h *EventsHandler) Poll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var since int64
	if raw := q.Get("since"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid since")
			return
		}
		since = n
	}

	limit := 100
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	events, err := h.bus.ReadSince(r.Context(), since, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read events")
		writeError(w, http.StatusInternalServerError, "failed to retrieve events")
		return
	}
	if events == nil {
		events = []types.EventEnvelope{}
	}

	cursor := since
	if len(events) > 0 {
		cursor = events[len(events)-1].SequenceID
	}
	writeJSON(w, http.StatusOK, PollResponse{Events: events, NewLastSequenceID: cursor})
}
