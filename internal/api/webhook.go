package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Muhiddinjon/call-center-crm/internal/webhook"
)

// WebhookHandler receives PBX events
type WebhookHandler struct {
	processor *webhook.Processor
	logger    zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(p *webhook.Processor, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor: p,
		logger:    logger.With().Str("component", "webhook_handler").Logger(),
	}
}

// Handle handles POST /internal/webhook. The PBX retries on non-2xx, so
// only malformed payloads are rejected; processing failures return 500 to
// provoke a redelivery.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var ev webhook.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	rec, err := h.processor.Process(r.Context(), ev)
	if err != nil {
		if errors.Is(err, webhook.ErrBadEvent) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("provider_call_id", ev.ProviderCallID).Msg("webhook processing failed")
		writeError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	resp := map[string]any{"status": "ok"}
	if rec != nil {
		resp["callId"] = rec.ID
	}
	writeJSON(w, http.StatusOK, resp)
}
