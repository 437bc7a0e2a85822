package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Muhiddinjon/call-center-crm/internal/assign"
	"github.com/Muhiddinjon/call-center-crm/internal/auth"
	"github.com/Muhiddinjon/call-center-crm/internal/bus"
	"github.com/Muhiddinjon/call-center-crm/internal/metrics"
	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

// TicketsHandler provides REST endpoints for missed-call tickets
type TicketsHandler struct {
	engine *assign.Engine
	bus    *bus.Bus
	logger zerolog.Logger
}

// NewTicketsHandler creates a new TicketsHandler
func NewTicketsHandler(engine *assign.Engine, b *bus.Bus, logger zerolog.Logger) *TicketsHandler {
	return &TicketsHandler{
		engine: engine,
		bus:    b,
		logger: logger.With().Str("component", "tickets_handler").Logger(),
	}
}

func parseLimit(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return 50
}

// List handles GET /api/tickets
func (h *TicketsHandler) List(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.engine.List(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list tickets")
		writeError(w, http.StatusInternalServerError, "failed to retrieve tickets")
		return
	}
	if tickets == nil {
		tickets = []types.MissedCallTicket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

// Unhandled handles GET /api/tickets/unhandled
func (h *TicketsHandler) Unhandled(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.engine.Unhandled(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list unhandled tickets")
		writeError(w, http.StatusInternalServerError, "failed to retrieve tickets")
		return
	}
	if tickets == nil {
		tickets = []types.MissedCallTicket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

// Mine handles GET /api/tickets/mine: the authenticated operator's open
// tickets
func (h *TicketsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	if claims == nil || claims.OperatorID == "" {
		writeError(w, http.StatusUnauthorized, "operator identity required")
		return
	}

	tickets, err := h.engine.ForOperator(r.Context(), claims.OperatorID)
	if err != nil {
		h.logger.Error().Err(err).Str("operator_id", claims.OperatorID).Msg("failed to list operator tickets")
		writeError(w, http.StatusInternalServerError, "failed to retrieve tickets")
		return
	}
	if tickets == nil {
		tickets = []types.MissedCallTicket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

// Assign handles POST /api/tickets/{id}/assign. An empty body assigns to
// the current rotation; {"operatorId": "..."} assigns explicitly.
func (h *TicketsHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		OperatorID string `json:"operatorId"`
	}
	if r.Body != nil {
		// Body is optional.
		json.NewDecoder(r.Body).Decode(&req)
	}

	ticket, err := h.engine.AssignNext(r.Context(), id, req.OperatorID)
	if err != nil {
		h.respondTicketError(w, err, id, "assign")
		return
	}

	metrics.Get().RecordTicketAssigned()
	if _, err := h.bus.Publish(r.Context(), types.EventTicketAssigned, ticket); err != nil {
		h.logger.Error().Err(err).Str("ticket_id", id).Msg("publish ticket.assigned")
	}
	writeJSON(w, http.StatusOK, ticket)
}

// CalledBack handles POST /api/tickets/{id}/called-back
func (h *TicketsHandler) CalledBack(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	by := ""
	if claims := auth.FromContext(r.Context()); claims != nil {
		by = claims.OperatorID
	}

	ticket, err := h.engine.MarkCalledBack(r.Context(), id, by)
	if err != nil {
		h.respondTicketError(w, err, id, "mark called back")
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// Resolve handles POST /api/tickets/{id}/resolve
func (h *TicketsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ticket, err := h.engine.MarkResolved(r.Context(), id)
	if err != nil {
		h.respondTicketError(w, err, id, "resolve")
		return
	}
	metrics.Get().RecordTicketResolved()
	writeJSON(w, http.StatusOK, ticket)
}

// Remove handles DELETE /api/tickets/{id}
func (h *TicketsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.engine.Remove(r.Context(), id); err != nil {
		h.respondTicketError(w, err, id, "remove")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *TicketsHandler) respondTicketError(w http.ResponseWriter, err error, id, action string) {
	switch {
	case errors.Is(err, assign.ErrNotFound):
		writeError(w, http.StatusNotFound, "ticket not found")
	case errors.Is(err, assign.ErrBadTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error().Err(err).Str("ticket_id", id).Msgf("failed to %s ticket", action)
		writeError(w, http.StatusInternalServerError, "ticket operation failed")
	}
}
