package api

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Muhiddinjon/call-center-crm/internal/auth"
	"github.com/Muhiddinjon/call-center-crm/internal/clock"
	"github.com/Muhiddinjon/call-center-crm/internal/phone"
	"github.com/Muhiddinjon/call-center-crm/internal/store"
	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

// DirectoryHandler provides REST endpoints for saved contacts and the
// operator directory
type DirectoryHandler struct {
	store  store.Store
	clock  *clock.Clock
	logger zerolog.Logger
}

// NewDirectoryHandler creates a new DirectoryHandler
func NewDirectoryHandler(st store.Store, ck *clock.Clock, logger zerolog.Logger) *DirectoryHandler {
	return &DirectoryHandler{
		store:  st,
		clock:  ck,
		logger: logger.With().Str("component", "directory_handler").Logger(),
	}
}

// ============= CONTACTS =============

// ListContacts handles GET /api/contacts
func (h *DirectoryHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.store.AllContacts(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list contacts")
		writeError(w, http.StatusInternalServerError, "failed to retrieve contacts")
		return
	}
	if contacts == nil {
		contacts = []types.Contact{}
	}
	writeJSON(w, http.StatusOK, contacts)
}

// SaveContact handles PUT /api/contacts: upsert keyed by normalized phone
func (h *DirectoryHandler) SaveContact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
		Name        string `json:"name"`
		Notes       string `json:"notes,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PhoneNumber == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "phoneNumber and name are required")
		return
	}

	normalized := phone.Normalize(req.PhoneNumber)
	now := h.clock.NowMillis()

	contact := types.Contact{
		PhoneNumber: normalized,
		Name:        req.Name,
		Notes:       req.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if claims := auth.FromContext(r.Context()); claims != nil {
		contact.CreatedBy = claims.OperatorID
	}
	if existing, err := h.store.GetContact(r.Context(), []string{normalized}); err == nil && existing != nil {
		contact.CreatedAt = existing.CreatedAt
		contact.CreatedBy = existing.CreatedBy
	}

	if err := h.store.SaveContact(r.Context(), contact); err != nil {
		h.logger.Error().Err(err).Str("phone", normalized).Msg("failed to save contact")
		writeError(w, http.StatusInternalServerError, "failed to save contact")
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// GetContact handles GET /api/contacts/{phone}
func (h *DirectoryHandler) GetContact(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(chi.URLParam(r, "phone"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid phone")
		return
	}

	contact, err := h.store.GetContact(r.Context(), phone.SearchVariants(raw))
	if err != nil {
		h.logger.Error().Err(err).Str("phone", raw).Msg("failed to get contact")
		writeError(w, http.StatusInternalServerError, "failed to retrieve contact")
		return
	}
	if contact == nil {
		writeError(w, http.StatusNotFound, "contact not found")
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// DeleteContact handles DELETE /api/contacts/{phone}
func (h *DirectoryHandler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(chi.URLParam(r, "phone"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid phone")
		return
	}

	if err := h.store.DeleteContact(r.Context(), phone.Normalize(raw)); err != nil {
		h.logger.Error().Err(err).Str("phone", raw).Msg("failed to delete contact")
		writeError(w, http.StatusInternalServerError, "failed to delete contact")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ============= OPERATORS =============

// ListOperators handles GET /api/operators
func (h *DirectoryHandler) ListOperators(w http.ResponseWriter, r *http.Request) {
	ops, err := h.store.AllOperators(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list operators")
		writeError(w, http.StatusInternalServerError, "failed to retrieve operators")
		return
	}
	if ops == nil {
		ops = []types.OperatorInfo{}
	}
	writeJSON(w, http.StatusOK, ops)
}

// SaveOperator handles PUT /api/operators: upsert a directory entry
func (h *DirectoryHandler) SaveOperator(w http.ResponseWriter, r *http.Request) {
	var req types.OperatorInfo
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required")
		return
	}

	if existing, err := h.store.GetOperator(r.Context(), req.ID); err == nil && existing != nil {
		req.CreatedAt = existing.CreatedAt
	} else {
		req.CreatedAt = h.clock.NowMillis()
	}

	if err := h.store.SaveOperator(r.Context(), req); err != nil {
		h.logger.Error().Err(err).Str("operator_id", req.ID).Msg("failed to save operator")
		writeError(w, http.StatusInternalServerError, "failed to save operator")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// GetOperator handles GET /api/operators/{id}
func (h *DirectoryHandler) GetOperator(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	op, err := h.store.GetOperator(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("operator_id", id).Msg("failed to get operator")
		writeError(w, http.StatusInternalServerError, "failed to retrieve operator")
		return
	}
	if op == nil {
		writeError(w, http.StatusNotFound, "operator not found")
		return
	}
	writeJSON(w, http.StatusOK, op)
}

// DeleteOperator handles DELETE /api/operators/{id}
func (h *DirectoryHandler) DeleteOperator(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteOperator(r.Context(), id); err != nil {
		h.logger.Error().Err(err).Str("operator_id", id).Msg("failed to delete operator")
		writeError(w, http.StatusInternalServerError, "failed to delete operator")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
