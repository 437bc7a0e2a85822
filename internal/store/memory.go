package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

// MemoryStore implements Store with mutex-guarded maps. It mirrors the
// Redis key semantics exactly (same indexes, same atomicity per call) and
// backs STORE_MODE=memory runs and the package tests.
type MemoryStore struct {
	mu sync.RWMutex

	calls          map[string]types.CallRecord
	callByProvider map[string]string
	active         map[string]bool

	shifts   map[string]types.Shift
	coverage map[string]map[string]bool // date:hour -> operator ids

	tickets  map[string]types.MissedCallTicket
	assigned map[string]map[string]int64 // operator -> ticket id -> assignedAt
	cursors  map[string]int64

	contacts  map[string]types.Contact
	operators map[string]types.OperatorInfo

	events      []types.EventEnvelope
	eventSeq    int64
	eventLogMax int
}

// NewMemory creates an empty in-memory store.
func NewMemory(eventLogMax int) *MemoryStore {
	if eventLogMax <= 0 {
		eventLogMax = 1000
	}
	return &MemoryStore{
		calls:          make(map[string]types.CallRecord),
		callByProvider: make(map[string]string),
		active:         make(map[string]bool),
		shifts:         make(map[string]types.Shift),
		coverage:       make(map[string]map[string]bool),
		tickets:        make(map[string]types.MissedCallTicket),
		assigned:       make(map[string]map[string]int64),
		cursors:        make(map[string]int64),
		contacts:       make(map[string]types.Contact),
		operators:      make(map[string]types.OperatorInfo),
		eventLogMax:    eventLogMax,
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close() error               { return nil }

// ============= CALLS =============

func (s *MemoryStore) CreateCall(_ context.Context, rec types.CallRecord) (types.CallRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.callByProvider[rec.ProviderCallID]; ok {
		if existing, ok := s.calls[existingID]; ok {
			return existing, false, nil
		}
	}

	s.callByProvider[rec.ProviderCallID] = rec.ID
	s.calls[rec.ID] = rec
	if !rec.Ended() {
		s.active[rec.ID] = true
	}
	return rec, true, nil
}

func (s *MemoryStore) EndCall(_ context.Context, providerCallID string, endedAt int64, durationSeconds int) (*types.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.callByProvider[providerCallID]
	if !ok {
		return nil, nil
	}
	rec, ok := s.calls[id]
	if !ok {
		return nil, nil
	}

	rec.EndedAt = endedAt
	rec.DurationSeconds = durationSeconds
	rec.UpdatedAt = endedAt
	s.calls[id] = rec
	delete(s.active, id)

	out := rec
	return &out, nil
}

func (s *MemoryStore) UpdateCall(_ context.Context, id string, upd types.CallUpdate, updatedAt int64) (*types.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.calls[id]
	if !ok {
		return nil, nil
	}

	if upd.Region != nil {
		rec.Region = *upd.Region
	}
	if upd.OperatorName != nil {
		rec.OperatorName = *upd.OperatorName
	}
	if upd.CallerType != nil {
		rec.CallerType = *upd.CallerType
	}
	if upd.Topic != nil {
		rec.Topic = *upd.Topic
	}
	if upd.Notes != nil {
		rec.Notes = *upd.Notes
	}
	rec.UpdatedAt = updatedAt
	s.calls[id] = rec

	out := rec
	return &out, nil
}

func (s *MemoryStore) GetCall(_ context.Context, id string) (*types.CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.calls[id]
	if !ok {
		return nil, nil
	}
	out := rec
	return &out, nil
}

func (s *MemoryStore) GetCallByProviderID(_ context.Context, providerCallID string) (*types.CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.callByProvider[providerCallID]
	if !ok {
		return nil, nil
	}
	rec, ok := s.calls[id]
	if !ok {
		return nil, nil
	}
	out := rec
	return &out, nil
}

func (s *MemoryStore) ActiveCalls(context.Context) ([]types.CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	calls := make([]types.CallRecord, 0, len(s.active))
	for id := range s.active {
		if rec, ok := s.calls[id]; ok {
			calls = append(calls, rec)
		}
	}
	sortCallsNewestFirst(calls)
	return calls, nil
}

func (s *MemoryStore) QueryCalls(_ context.Context, f types.CallFilters) ([]types.CallRecord, error) {
	s.mu.RLock()

	inRange := make([]types.CallRecord, 0, len(s.calls))
	for _, rec := range s.calls {
		if f.DateFrom > 0 && rec.CreatedAt < f.DateFrom {
			continue
		}
		if f.DateTo > 0 && rec.CreatedAt > f.DateTo {
			continue
		}
		inRange = append(inRange, rec)
	}
	s.mu.RUnlock()

	// Newest first by the date index score, then page, then filter. Same
	// order of operations as the Redis implementation.
	sort.Slice(inRange, func(i, j int) bool {
		if inRange[i].CreatedAt != inRange[j].CreatedAt {
			return inRange[i].CreatedAt > inRange[j].CreatedAt
		}
		return inRange[i].ID > inRange[j].ID
	})

	limit := f.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	if f.Offset >= len(inRange) {
		return nil, nil
	}
	end := f.Offset + limit
	if end > len(inRange) {
		end = len(inRange)
	}
	page := make([]types.CallRecord, end-f.Offset)
	copy(page, inRange[f.Offset:end])

	return filterCalls(page, f), nil
}

func (s *MemoryStore) CallsByPhoneVariants(_ context.Context, variants []string) ([]types.CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	match := make(map[string]bool, len(variants))
	for _, v := range variants {
		match[v] = true
	}

	var calls []types.CallRecord
	for _, rec := range s.calls {
		if match[rec.PhoneNumber] {
			calls = append(calls, rec)
		}
	}
	sortCallsNewestFirst(calls)
	return calls, nil
}

// ============= SHIFTS =============

func (s *MemoryStore) CreateShift(_ context.Context, sh types.Shift, coverHours []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shifts[sh.ID] = sh
	s.addCoverage(sh.Date, coverHours, sh.OperatorID)
	return nil
}

func (s *MemoryStore) ReplaceShift(_ context.Context, old types.Shift, oldHours []int, sh types.Shift, coverHours []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeCoverage(old.Date, oldHours, old.OperatorID)
	s.shifts[sh.ID] = sh
	s.addCoverage(sh.Date, coverHours, sh.OperatorID)
	return nil
}

func (s *MemoryStore) DeleteShift(_ context.Context, sh types.Shift, coverHours []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.shifts, sh.ID)
	s.removeCoverage(sh.Date, coverHours, sh.OperatorID)
	return nil
}

func (s *MemoryStore) addCoverage(date string, hours []int, operatorID string) {
	for _, hour := range hours {
		key := keyCoverage(date, hour)
		if s.coverage[key] == nil {
			s.coverage[key] = make(map[string]bool)
		}
		s.coverage[key][operatorID] = true
	}
}

func (s *MemoryStore) removeCoverage(date string, hours []int, operatorID string) {
	for _, hour := range hours {
		if set := s.coverage[keyCoverage(date, hour)]; set != nil {
			delete(set, operatorID)
		}
	}
}

func (s *MemoryStore) GetShift(_ context.Context, id string) (*types.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, ok := s.shifts[id]
	if !ok {
		return nil, nil
	}
	out := sh
	return &out, nil
}

func (s *MemoryStore) ShiftsByDate(_ context.Context, date string) ([]types.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var shifts []types.Shift
	for _, sh := range s.shifts {
		if sh.Date == date {
			shifts = append(shifts, sh)
		}
	}
	sortShiftsByStart(shifts)
	return shifts, nil
}

func (s *MemoryStore) ShiftsByOperator(_ context.Context, operatorID string, fromMillis, toMillis int64) ([]types.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var shifts []types.Shift
	for _, sh := range s.shifts {
		if sh.OperatorID != operatorID {
			continue
		}
		if fromMillis > 0 && sh.StartsAt < fromMillis {
			continue
		}
		if toMillis > 0 && sh.StartsAt > toMillis {
			continue
		}
		shifts = append(shifts, sh)
	}
	sortShiftsByStart(shifts)
	return shifts, nil
}

func (s *MemoryStore) AllShifts(context.Context) ([]types.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shifts := make([]types.Shift, 0, len(s.shifts))
	for _, sh := range s.shifts {
		shifts = append(shifts, sh)
	}
	sortShiftsByStart(shifts)
	return shifts, nil
}

func (s *MemoryStore) OnDuty(_ context.Context, date string, hour int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.coverage[keyCoverage(date, hour)]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids, nil
}

func sortShiftsByStart(shifts []types.Shift) {
	sort.Slice(shifts, func(i, j int) bool {
		if shifts[i].StartsAt != shifts[j].StartsAt {
			return shifts[i].StartsAt < shifts[j].StartsAt
		}
		return shifts[i].ID < shifts[j].ID
	})
}

// ============= TICKETS =============

func (s *MemoryStore) SaveTicket(_ context.Context, t types.MissedCallTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.CallRecordID] = t
	return nil
}

func (s *MemoryStore) GetTicket(_ context.Context, callRecordID string) (*types.MissedCallTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tickets[callRecordID]
	if !ok {
		return nil, nil
	}
	out := t
	return &out, nil
}

func (s *MemoryStore) ListTickets(_ context.Context, limit int) ([]types.MissedCallTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = defaultQueryLimit
	}

	tickets := make([]types.MissedCallTicket, 0, len(s.tickets))
	for _, t := range s.tickets {
		tickets = append(tickets, t)
	}
	sort.Slice(tickets, func(i, j int) bool {
		if tickets[i].StartedAt != tickets[j].StartedAt {
			return tickets[i].StartedAt > tickets[j].StartedAt
		}
		return tickets[i].CallRecordID > tickets[j].CallRecordID
	})
	if len(tickets) > limit {
		tickets = tickets[:limit]
	}
	return tickets, nil
}

func (s *MemoryStore) DeleteTicket(_ context.Context, callRecordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tickets[callRecordID]; ok && t.AssignedOperatorID != "" {
		if open := s.assigned[t.AssignedOperatorID]; open != nil {
			delete(open, callRecordID)
		}
	}
	delete(s.tickets, callRecordID)
	return nil
}

func (s *MemoryStore) AssignTicket(_ context.Context, t types.MissedCallTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tickets[t.CallRecordID] = t
	if s.assigned[t.AssignedOperatorID] == nil {
		s.assigned[t.AssignedOperatorID] = make(map[string]int64)
	}
	s.assigned[t.AssignedOperatorID][t.CallRecordID] = t.AssignedAt
	return nil
}

func (s *MemoryStore) ResolveTicket(_ context.Context, t types.MissedCallTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tickets[t.CallRecordID] = t
	if t.AssignedOperatorID != "" {
		if open := s.assigned[t.AssignedOperatorID]; open != nil {
			delete(open, t.CallRecordID)
		}
	}
	return nil
}

func (s *MemoryStore) AssignedTicketIDs(_ context.Context, operatorID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	open := s.assigned[operatorID]
	ids := make([]string, 0, len(open))
	for id := range open {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if open[ids[i]] != open[ids[j]] {
			return open[ids[i]] > open[ids[j]]
		}
		return ids[i] > ids[j]
	})
	return ids, nil
}

func (s *MemoryStore) IncrementCursor(_ context.Context, date string, hour int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyCursor(date, hour)
	s.cursors[key]++
	return s.cursors[key], nil
}

// ============= CONTACTS =============

func (s *MemoryStore) SaveContact(_ context.Context, c types.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[c.PhoneNumber] = c
	return nil
}

func (s *MemoryStore) GetContact(_ context.Context, variants []string) (*types.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, variant := range variants {
		if c, ok := s.contacts[variant]; ok {
			out := c
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) DeleteContact(_ context.Context, phoneNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contacts, phoneNumber)
	return nil
}

func (s *MemoryStore) AllContacts(context.Context) ([]types.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contacts := make([]types.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		contacts = append(contacts, c)
	}
	sort.Slice(contacts, func(i, j int) bool {
		return strings.Compare(contacts[i].PhoneNumber, contacts[j].PhoneNumber) < 0
	})
	return contacts, nil
}

// ============= OPERATORS =============

func (s *MemoryStore) SaveOperator(_ context.Context, op types.OperatorInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operators[op.ID] = op
	return nil
}

func (s *MemoryStore) GetOperator(_ context.Context, id string) (*types.OperatorInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, ok := s.operators[id]
	if !ok {
		return nil, nil
	}
	out := op
	return &out, nil
}

func (s *MemoryStore) AllOperators(context.Context) ([]types.OperatorInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ops := make([]types.OperatorInfo, 0, len(s.operators))
	for _, op := range s.operators {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].ID < ops[j].ID })
	return ops, nil
}

func (s *MemoryStore) DeleteOperator(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.operators, id)
	return nil
}

// ============= EVENTS =============

func (s *MemoryStore) AppendEvent(_ context.Context, eventType string, payload []byte, publishedAt int64) (types.EventEnvelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.eventSeq++
	env := types.EventEnvelope{
		SequenceID:  s.eventSeq,
		Type:        eventType,
		Payload:     json.RawMessage(payload),
		PublishedAt: publishedAt,
	}
	s.events = append(s.events, env)
	if len(s.events) > s.eventLogMax {
		s.events = s.events[len(s.events)-s.eventLogMax:]
	}
	return env, nil
}

func (s *MemoryStore) EventsSince(_ context.Context, lastSeq int64, limit int) ([]types.EventEnvelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	var out []types.EventEnvelope
	for _, env := range s.events {
		if env.SequenceID > lastSeq {
			out = append(out, env)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) RecentEvents(_ context.Context, sinceMillis int64, limit int) ([]types.EventEnvelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	var out []types.EventEnvelope
	for _, env := range s.events {
		if env.PublishedAt >= sinceMillis {
			out = append(out, env)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
