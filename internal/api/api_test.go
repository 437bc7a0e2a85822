package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Muhiddinjon/call-center-crm/internal/assign"
	"github.com/Muhiddinjon/call-center-crm/internal/auth"
	"github.com/Muhiddinjon/call-center-crm/internal/bus"
	"github.com/Muhiddinjon/call-center-crm/internal/clock"
	"github.com/Muhiddinjon/call-center-crm/internal/config"
	"github.com/Muhiddinjon/call-center-crm/internal/lookup"
	"github.com/Muhiddinjon/call-center-crm/internal/shifts"
	"github.com/Muhiddinjon/call-center-crm/internal/stats"
	"github.com/Muhiddinjon/call-center-crm/internal/store"
	"github.com/Muhiddinjon/call-center-crm/internal/types"
	"github.com/Muhiddinjon/call-center-crm/internal/webhook"
)

// 2026-08-28 15:30 in Asia/Tashkent. Shifts in these tests cover hour 15.
var testInstant = time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)

func setupRouter(t *testing.T) (*chi.Mux, store.Store) {
	t.Helper()
	logger := zerolog.Nop()

	ck, err := clock.NewFixed("Asia/Tashkent", testInstant)
	if err != nil {
		t.Fatalf("failed to build clock: %v", err)
	}

	st := store.NewMemory(100)
	eventBus := bus.New(st, nil, ck, 5*time.Minute, logger)
	assignEngine := assign.New(st, ck, logger)
	shiftService := shifts.New(st, ck, logger)
	statsService := stats.New(st, ck, logger)
	processor := webhook.New(st, lookup.New("", time.Second, logger), assignEngine, eventBus, ck, logger)

	webhookHandler := NewWebhookHandler(processor, logger)
	callsHandler := NewCallsHandler(st, eventBus, ck, logger)
	shiftsHandler := NewShiftsHandler(shiftService, logger)
	ticketsHandler := NewTicketsHandler(assignEngine, eventBus, logger)
	eventsHandler := NewEventsHandler(eventBus, logger)
	statsHandler := NewStatsHandler(statsService, logger)
	directoryHandler := NewDirectoryHandler(st, ck, logger)

	cfg := &config.Config{AuthMode: "none"}

	r := chi.NewRouter()
	r.Post("/internal/webhook", webhookHandler.Handle)
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg, logger))
		r.Route("/api", func(r chi.Router) {
			r.Route("/calls", func(r chi.Router) {
				r.Get("/", callsHandler.List)
				r.Get("/active", callsHandler.Active)
				r.Get("/search", callsHandler.Search)
				r.Get("/{id}", callsHandler.Get)
				r.Patch("/{id}", callsHandler.Update)
			})
			r.Route("/shifts", func(r chi.Router) {
				r.Get("/", shiftsHandler.List)
				r.Post("/", shiftsHandler.Create)
				r.Get("/coverage", shiftsHandler.Coverage)
				r.Get("/onduty", shiftsHandler.OnDuty)
				r.Get("/report", shiftsHandler.Report)
				r.Get("/{id}", shiftsHandler.Get)
				r.Patch("/{id}", shiftsHandler.Update)
				r.Delete("/{id}", shiftsHandler.Delete)
			})
			r.Route("/tickets", func(r chi.Router) {
				r.Get("/", ticketsHandler.List)
				r.Get("/unhandled", ticketsHandler.Unhandled)
				r.Get("/mine", ticketsHandler.Mine)
				r.Post("/{id}/assign", ticketsHandler.Assign)
				r.Post("/{id}/called-back", ticketsHandler.CalledBack)
				r.Post("/{id}/resolve", ticketsHandler.Resolve)
				r.Delete("/{id}", ticketsHandler.Remove)
			})
			r.Route("/contacts", func(r chi.Router) {
				r.Get("/", directoryHandler.ListContacts)
				r.Put("/", directoryHandler.SaveContact)
				r.Get("/{phone}", directoryHandler.GetContact)
				r.Delete("/{phone}", directoryHandler.DeleteContact)
			})
			r.Route("/operators", func(r chi.Router) {
				r.Get("/", directoryHandler.ListOperators)
				r.Put("/", directoryHandler.SaveOperator)
				r.Get("/{id}", directoryHandler.GetOperator)
				r.Delete("/{id}", directoryHandler.DeleteOperator)
			})
			r.Get("/events", eventsHandler.Poll)
			r.Route("/stats", func(r chi.Router) {
				r.Get("/daily", statsHandler.Daily)
				r.Get("/range", statsHandler.Range)
			})
		})
	})
	return r, st
}

func doJSON(t *testing.T, router *chi.Mux, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookToTicketFlow(t *testing.T) {
	router, _ := setupRouter(t)

	// Put an operator on duty for the current hour
	w := doJSON(t, router, http.MethodPut, "/api/operators", `{"id":"op-1","name":"Aziz","isActive":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 saving operator, got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, router, http.MethodPost, "/api/shifts",
		`{"operatorId":"op-1","date":"2026-08-28","startTime":"09:00","endTime":"18:00"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating shift, got %d: %s", w.Code, w.Body.String())
	}

	// Incoming call rings and ends unanswered
	w = doJSON(t, router, http.MethodPost, "/internal/webhook",
		`{"event":"start","providerCallId":"pbx-1","phoneNumber":"90 123 45 67","direction":"incoming"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, router, http.MethodPost, "/internal/webhook",
		`{"event":"end","providerCallId":"pbx-1","durationSeconds":0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on end, got %d: %s", w.Code, w.Body.String())
	}

	// The missed call produced a ticket assigned to the on-duty operator
	w = doJSON(t, router, http.MethodGet, "/api/tickets/unhandled", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var tickets []types.MissedCallTicket
	if err := json.NewDecoder(w.Body).Decode(&tickets); err != nil {
		t.Fatalf("failed to parse tickets: %v", err)
	}
	if len(tickets) != 1 {
		t.Fatalf("expected 1 unhandled ticket, got %d", len(tickets))
	}
	if tickets[0].AssignedOperatorID != "op-1" {
		t.Errorf("expected ticket assigned to op-1, got %q", tickets[0].AssignedOperatorID)
	}

	// Resolve it through the lifecycle endpoints
	id := tickets[0].CallRecordID
	w = doJSON(t, router, http.MethodPost, "/api/tickets/"+id+"/called-back", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on called-back, got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, router, http.MethodPost, "/api/tickets/"+id+"/resolve", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on resolve, got %d: %s", w.Code, w.Body.String())
	}

	// Resolved is terminal
	w = doJSON(t, router, http.MethodPost, "/api/tickets/"+id+"/called-back", "")
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 reopening resolved ticket, got %d", w.Code)
	}
}

func TestCallListAndAnnotate(t *testing.T) {
	router, _ := setupRouter(t)

	doJSON(t, router, http.MethodPost, "/internal/webhook",
		`{"event":"start","providerCallId":"pbx-2","phoneNumber":"+998901112233"}`)

	w := doJSON(t, router, http.MethodGet, "/api/calls/active", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var active []types.CallRecord
	if err := json.NewDecoder(w.Body).Decode(&active); err != nil {
		t.Fatalf("failed to parse calls: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active call, got %d", len(active))
	}

	id := active[0].ID
	w = doJSON(t, router, http.MethodPatch, "/api/calls/"+id,
		`{"region":"Tashkent","topic":"payment"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on annotate, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/calls/"+id, "")
	var rec types.CallRecord
	if err := json.NewDecoder(w.Body).Decode(&rec); err != nil {
		t.Fatalf("failed to parse call: %v", err)
	}
	if rec.Region != "Tashkent" || rec.Topic != "payment" {
		t.Errorf("annotation not persisted: region=%q topic=%q", rec.Region, rec.Topic)
	}

	w = doJSON(t, router, http.MethodGet, "/api/calls/no-such-id", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown call, got %d", w.Code)
	}
}

func TestCallSearchByPhoneVariant(t *testing.T) {
	router, _ := setupRouter(t)

	doJSON(t, router, http.MethodPut, "/api/contacts",
		`{"phoneNumber":"90 111 22 33","name":"Dilnoza"}`)
	doJSON(t, router, http.MethodPost, "/internal/webhook",
		`{"event":"start","providerCallId":"pbx-3","phoneNumber":"+998901112233"}`)

	w := doJSON(t, router, http.MethodGet, "/api/calls/search?phone=901112233", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var result SearchResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to parse search result: %v", err)
	}
	if len(result.Calls) != 1 {
		t.Fatalf("expected 1 matching call, got %d", len(result.Calls))
	}
	if result.Contact.ContactName != "Dilnoza" {
		t.Errorf("expected contact name from directory, got %q", result.Contact.ContactName)
	}
}

func TestShiftCoverageEndpoint(t *testing.T) {
	router, _ := setupRouter(t)

	doJSON(t, router, http.MethodPost, "/api/shifts",
		`{"operatorId":"op-1","date":"2026-08-28","startTime":"22:00","endTime":"06:00"}`)

	w := doJSON(t, router, http.MethodGet, "/api/shifts/coverage?date=2026-08-28", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var cov []types.HourCoverage
	if err := json.NewDecoder(w.Body).Decode(&cov); err != nil {
		t.Fatalf("failed to parse coverage: %v", err)
	}
	if len(cov) != 24 {
		t.Fatalf("expected 24 hour rows, got %d", len(cov))
	}
	for _, h := range []int{22, 23, 0, 1, 2, 3, 4, 5} {
		if len(cov[h].Operators) != 1 {
			t.Errorf("hour %d: expected overnight shift to cover it", h)
		}
	}
	if len(cov[12].Operators) != 0 {
		t.Errorf("hour 12 should be uncovered")
	}

	w = doJSON(t, router, http.MethodGet, "/api/shifts/coverage", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without date, got %d", w.Code)
	}
}

func TestOnDutyDefaultsToNow(t *testing.T) {
	router, _ := setupRouter(t)

	doJSON(t, router, http.MethodPut, "/api/operators", `{"id":"op-9","name":"Malika","isActive":true}`)
	doJSON(t, router, http.MethodPost, "/api/shifts",
		`{"operatorId":"op-9","date":"2026-08-28","startTime":"14:00","endTime":"16:00"}`)

	w := doJSON(t, router, http.MethodGet, "/api/shifts/onduty", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var ops []types.HourOperator
	if err := json.NewDecoder(w.Body).Decode(&ops); err != nil {
		t.Fatalf("failed to parse on duty set: %v", err)
	}
	if len(ops) != 1 || ops[0].OperatorID != "op-9" {
		t.Fatalf("expected op-9 on duty now, got %+v", ops)
	}
	if ops[0].OperatorName != "Malika" {
		t.Errorf("expected name from directory, got %q", ops[0].OperatorName)
	}
}

func TestEventsPoll(t *testing.T) {
	router, _ := setupRouter(t)

	doJSON(t, router, http.MethodPost, "/internal/webhook",
		`{"event":"start","providerCallId":"pbx-4","phoneNumber":"+998900000001"}`)

	w := doJSON(t, router, http.MethodGet, "/api/events", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var page PollResponse
	if err := json.NewDecoder(w.Body).Decode(&page); err != nil {
		t.Fatalf("failed to parse events: %v", err)
	}
	if len(page.Events) != 1 || page.Events[0].Type != types.EventCallStarted {
		t.Fatalf("expected one call.started event, got %+v", page.Events)
	}
	if page.NewLastSequenceID != page.Events[0].SequenceID {
		t.Errorf("expected cursor %d, got %d", page.Events[0].SequenceID, page.NewLastSequenceID)
	}

	// Strictly-after semantics: polling from the last seq returns nothing
	// and the cursor stays put
	w = doJSON(t, router, http.MethodGet, "/api/events?since=1", "")
	var after PollResponse
	if err := json.NewDecoder(w.Body).Decode(&after); err != nil {
		t.Fatalf("failed to parse events: %v", err)
	}
	if len(after.Events) != 0 {
		t.Errorf("expected empty slice after last seq, got %d events", len(after.Events))
	}
	if after.NewLastSequenceID != 1 {
		t.Errorf("expected cursor to echo since=1, got %d", after.NewLastSequenceID)
	}

	w = doJSON(t, router, http.MethodGet, "/api/events?since=bogus", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid since, got %d", w.Code)
	}
}

func TestStatsDailyEndpoint(t *testing.T) {
	router, _ := setupRouter(t)

	doJSON(t, router, http.MethodPost, "/internal/webhook",
		`{"event":"start","providerCallId":"pbx-5","phoneNumber":"+998900000002"}`)
	doJSON(t, router, http.MethodPost, "/internal/webhook",
		`{"event":"end","providerCallId":"pbx-5","durationSeconds":42}`)

	w := doJSON(t, router, http.MethodGet, "/api/stats/daily", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var snap stats.DailySnapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to parse snapshot: %v", err)
	}
	if snap.Date != "2026-08-28" {
		t.Errorf("expected today's date, got %q", snap.Date)
	}
	if snap.TotalCalls != 1 || snap.Answered != 1 {
		t.Errorf("expected 1 answered call, got %+v", snap)
	}

	w = doJSON(t, router, http.MethodGet, "/api/stats/range?dateFrom=2026-08-29&dateTo=2026-08-28", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for inverted range, got %d", w.Code)
	}
}

func TestContactCrud(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodPut, "/api/contacts",
		`{"phoneNumber":"90 555 66 77","name":"Jasur","notes":"vip"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var saved types.Contact
	if err := json.NewDecoder(w.Body).Decode(&saved); err != nil {
		t.Fatalf("failed to parse contact: %v", err)
	}
	if saved.PhoneNumber != "+998905556677" {
		t.Errorf("expected normalized phone, got %q", saved.PhoneNumber)
	}
	if saved.CreatedBy != "dev" {
		t.Errorf("expected creator from auth identity, got %q", saved.CreatedBy)
	}

	// Lookup by a different variant of the same number
	w = doJSON(t, router, http.MethodGet, "/api/contacts/905556677", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodDelete, "/api/contacts/+998905556677", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/api/contacts/905556677", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPut, "/api/contacts", `{"name":"no phone"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without phone, got %d", w.Code)
	}
}

func TestTicketsMineUsesIdentity(t *testing.T) {
	router, st := setupRouter(t)

	// Tickets assigned to the dev identity injected by AUTH_MODE=none
	doJSON(t, router, http.MethodPost, "/api/shifts",
		`{"operatorId":"dev","date":"2026-08-28","startTime":"09:00","endTime":"18:00"}`)
	doJSON(t, router, http.MethodPost, "/internal/webhook",
		`{"event":"start","providerCallId":"pbx-6","phoneNumber":"+998900000003"}`)
	doJSON(t, router, http.MethodPost, "/internal/webhook",
		`{"event":"end","providerCallId":"pbx-6","durationSeconds":0}`)

	w := doJSON(t, router, http.MethodGet, "/api/tickets/mine", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var mine []types.MissedCallTicket
	if err := json.NewDecoder(w.Body).Decode(&mine); err != nil {
		t.Fatalf("failed to parse tickets: %v", err)
	}
	if len(mine) != 1 {
		t.Fatalf("expected 1 ticket for dev, got %d", len(mine))
	}

	// The store agrees with the endpoint
	ids, err := st.AssignedTicketIDs(context.Background(), "dev")
	if err != nil || len(ids) != 1 {
		t.Fatalf("expected 1 assigned ticket id in store, got %v (%v)", ids, err)
	}
}
