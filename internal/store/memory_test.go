package store

import (
	"context"
	"testing"

	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

func newCall(id, pid, phone string, startedAt int64) types.CallRecord {
	return types.CallRecord{
		ID:             id,
		ProviderCallID: pid,
		PhoneNumber:    phone,
		Direction:      types.DirectionIncoming,
		StartedAt:      startedAt,
		CreatedAt:      startedAt,
		UpdatedAt:      startedAt,
	}
}

func TestCreateCallProviderIDUnique(t *testing.T) {
	s := NewMemory(100)
	ctx := context.Background()

	first, created, err := s.CreateCall(ctx, newCall("c1", "pbx-1", "+998901234567", 1000))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created {
		t.Fatal("first create should report created")
	}

	dup, created, err := s.CreateCall(ctx, newCall("c2", "pbx-1", "+998901234567", 2000))
	if err != nil {
		t.Fatalf("duplicate create: %v", err)
	}
	if created {
		t.Fatal("duplicate provider id must not create a second record")
	}
	if dup.ID != first.ID {
		t.Fatalf("duplicate returned id %q, want %q", dup.ID, first.ID)
	}
}

func TestEndCallClearsActive(t *testing.T) {
	s := NewMemory(100)
	ctx := context.Background()

	if _, _, err := s.CreateCall(ctx, newCall("c1", "pbx-1", "+998901234567", 1000)); err != nil {
		t.Fatalf("create: %v", err)
	}

	active, err := s.ActiveCalls(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active calls = %d, want 1", len(active))
	}

	ended, err := s.EndCall(ctx, "pbx-1", 5000, 42)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended == nil || ended.EndedAt != 5000 || ended.DurationSeconds != 42 {
		t.Fatalf("ended = %+v", ended)
	}

	active, err = s.ActiveCalls(ctx)
	if err != nil {
		t.Fatalf("active after end: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active calls after end = %d, want 0", len(active))
	}
}

func TestEndCallUnknownProviderID(t *testing.T) {
	s := NewMemory(100)

	rec, err := s.EndCall(context.Background(), "never-seen", 5000, 0)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if rec != nil {
		t.Fatalf("unknown provider id returned %+v, want nil", rec)
	}
}

func TestQueryCallsPagesNewestFirst(t *testing.T) {
	s := NewMemory(100)
	ctx := context.Background()

	for i, id := range []string{"c1", "c2", "c3"} {
		call := newCall(id, "pbx-"+id, "+998901234567", int64(1000*(i+1)))
		if _, _, err := s.CreateCall(ctx, call); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	page, err := s.QueryCalls(ctx, types.CallFilters{Limit: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(page) != 2 || page[0].ID != "c3" || page[1].ID != "c2" {
		t.Fatalf("page = %+v, want [c3 c2]", page)
	}

	page, err = s.QueryCalls(ctx, types.CallFilters{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("query offset: %v", err)
	}
	if len(page) != 1 || page[0].ID != "c1" {
		t.Fatalf("offset page = %+v, want [c1]", page)
	}
}

func TestQueryCallsFiltersAfterPaging(t *testing.T) {
	s := NewMemory(100)
	ctx := context.Background()

	a := newCall("c1", "pbx-1", "+998901234567", 1000)
	a.Region = "tashkent"
	b := newCall("c2", "pbx-2", "+998907654321", 2000)
	b.Region = "samarkand"
	for _, call := range []types.CallRecord{a, b} {
		if _, _, err := s.CreateCall(ctx, call); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := s.QueryCalls(ctx, types.CallFilters{Region: "tashkent"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c1" {
		t.Fatalf("filtered = %+v, want [c1]", got)
	}
}

func TestUpdateCallAnnotations(t *testing.T) {
	s := NewMemory(100)
	ctx := context.Background()

	if _, _, err := s.CreateCall(ctx, newCall("c1", "pbx-1", "+998901234567", 1000)); err != nil {
		t.Fatalf("create: %v", err)
	}

	region := "tashkent"
	notes := "follow up tomorrow"
	got, err := s.UpdateCall(ctx, "c1", types.CallUpdate{Region: &region, Notes: &notes}, 2000)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Region != "tashkent" || got.Notes != "follow up tomorrow" || got.UpdatedAt != 2000 {
		t.Fatalf("updated = %+v", got)
	}
	// Unset pointers leave fields alone.
	if got.PhoneNumber != "+998901234567" {
		t.Fatalf("phone changed to %q", got.PhoneNumber)
	}
}

func TestShiftCoverageSymmetry(t *testing.T) {
	s := NewMemory(100)
	ctx := context.Background()

	sh := types.Shift{ID: "s1", OperatorID: "op-1", Date: "2026-08-28", StartTime: "09:00", EndTime: "12:00", StartsAt: 1000}
	if err := s.CreateShift(ctx, sh, []int{9, 10, 11}); err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, hour := range []int{9, 10, 11} {
		ids, err := s.OnDuty(ctx, "2026-08-28", hour)
		if err != nil {
			t.Fatalf("onduty %d: %v", hour, err)
		}
		if len(ids) != 1 || ids[0] != "op-1" {
			t.Fatalf("hour %d on duty = %v, want [op-1]", hour, ids)
		}
	}

	// Replace moves coverage to the new hours atomically.
	replaced := sh
	replaced.StartTime = "14:00"
	replaced.EndTime = "16:00"
	if err := s.ReplaceShift(ctx, sh, []int{9, 10, 11}, replaced, []int{14, 15}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if ids, _ := s.OnDuty(ctx, "2026-08-28", 9); len(ids) != 0 {
		t.Fatalf("hour 9 still covered after replace: %v", ids)
	}
	if ids, _ := s.OnDuty(ctx, "2026-08-28", 14); len(ids) != 1 {
		t.Fatalf("hour 14 not covered after replace: %v", ids)
	}

	if err := s.DeleteShift(ctx, replaced, []int{14, 15}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ids, _ := s.OnDuty(ctx, "2026-08-28", 14); len(ids) != 0 {
		t.Fatalf("hour 14 still covered after delete: %v", ids)
	}
}

func TestTicketAssignAndResolve(t *testing.T) {
	s := NewMemory(100)
	ctx := context.Background()

	ticket := types.MissedCallTicket{
		CallRecordID: "c1",
		PhoneNumber:  "+998901234567",
		StartedAt:    1000,
		Status:       types.TicketAssigned,

		AssignedOperatorID: "op-1",
		AssignedOperator:   "Aziz",
		AssignedAt:         2000,
	}
	if err := s.AssignTicket(ctx, ticket); err != nil {
		t.Fatalf("assign: %v", err)
	}

	ids, err := s.AssignedTicketIDs(ctx, "op-1")
	if err != nil {
		t.Fatalf("assigned ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != "c1" {
		t.Fatalf("assigned = %v, want [c1]", ids)
	}

	ticket.Status = types.TicketResolved
	if err := s.ResolveTicket(ctx, ticket); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	ids, _ = s.AssignedTicketIDs(ctx, "op-1")
	if len(ids) != 0 {
		t.Fatalf("assigned after resolve = %v, want empty", ids)
	}

	got, err := s.GetTicket(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != types.TicketResolved {
		t.Fatalf("status = %s, want resolved", got.Status)
	}
}

func TestIncrementCursorIsPerDateHour(t *testing.T) {
	s := NewMemory(100)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := s.IncrementCursor(ctx, "2026-08-28", 10)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if n != want {
			t.Fatalf("cursor = %d, want %d", n, want)
		}
	}

	// A different hour starts from its own counter.
	n, err := s.IncrementCursor(ctx, "2026-08-28", 11)
	if err != nil {
		t.Fatalf("incr other hour: %v", err)
	}
	if n != 1 {
		t.Fatalf("other hour cursor = %d, want 1", n)
	}
}

func TestEventLogOrderingAndTrim(t *testing.T) {
	s := NewMemory(3)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if _, err := s.AppendEvent(ctx, "call.started", []byte(`{}`), int64(i*1000)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	// Trimmed to the newest three, sequence ids keep counting.
	events, err := s.EventsSince(ctx, 0, 100)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[0].SequenceID != 3 || events[2].SequenceID != 5 {
		t.Fatalf("sequence range = [%d, %d], want [3, 5]", events[0].SequenceID, events[2].SequenceID)
	}

	// Strictly after: lastSeq itself is excluded.
	events, err = s.EventsSince(ctx, 4, 100)
	if err != nil {
		t.Fatalf("since 4: %v", err)
	}
	if len(events) != 1 || events[0].SequenceID != 5 {
		t.Fatalf("events after 4 = %+v", events)
	}
}

func TestRecentEventsLookback(t *testing.T) {
	s := NewMemory(100)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		if _, err := s.AppendEvent(ctx, "call.started", []byte(`{}`), int64(i*1000)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	events, err := s.RecentEvents(ctx, 3000, 100)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 2 || events[0].PublishedAt != 3000 || events[1].PublishedAt != 4000 {
		t.Fatalf("recent = %+v, want the two newest oldest-first", events)
	}
}

func TestContactLookupByVariant(t *testing.T) {
	s := NewMemory(100)
	ctx := context.Background()

	c := types.Contact{PhoneNumber: "+998901234567", Name: "Bobur", CreatedAt: 1000}
	if err := s.SaveContact(ctx, c); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.GetContact(ctx, []string{"998901234567", "+998901234567"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Name != "Bobur" {
		t.Fatalf("contact = %+v", got)
	}

	got, err = s.GetContact(ctx, []string{"+998111111111"})
	if err != nil {
		t.Fatalf("get miss: %v", err)
	}
	if got != nil {
		t.Fatalf("unexpected contact %+v", got)
	}
}
