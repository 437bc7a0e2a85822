package shifts

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Muhiddinjon/call-center-crm/internal/clock"
	"github.com/Muhiddinjon/call-center-crm/internal/store"
	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

func testService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	ck, err := clock.NewFixed("Asia/Tashkent", time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("clock: %v", err)
	}
	st := store.NewMemory(100)
	return New(st, ck, zerolog.Nop()), st
}

func TestCoverHours(t *testing.T) {
	tests := []struct {
		start, end string
		want       []int
	}{
		{"09:00", "12:00", []int{9, 10, 11}},
		{"09:00", "10:00", []int{9}},
		{"09:00", "12:30", []int{9, 10, 11, 12}},
		{"22:00", "06:00", []int{22, 23, 0, 1, 2, 3, 4, 5}},
		{"23:00", "01:00", []int{23, 0}},
	}
	for _, tt := range tests {
		got, err := CoverHours(tt.start, tt.end)
		if err != nil {
			t.Errorf("CoverHours(%s, %s): %v", tt.start, tt.end, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("CoverHours(%s, %s) = %v, want %v", tt.start, tt.end, got, tt.want)
		}
	}
}

func TestCoverHoursFullDay(t *testing.T) {
	got, err := CoverHours("09:00", "09:00")
	if err != nil {
		t.Fatalf("CoverHours: %v", err)
	}
	if len(got) != 24 {
		t.Fatalf("equal start and end covers %d hours, want 24", len(got))
	}
}

func TestCoverHoursRejectsBadTime(t *testing.T) {
	if _, err := CoverHours("9am", "12:00"); err == nil {
		t.Fatal("expected error for malformed start time")
	}
}

func TestCreateRegistersCoverage(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()

	sh, err := svc.Create(ctx, types.ShiftCreate{
		OperatorID: "op-1",
		Date:       "2026-08-28",
		StartTime:  "09:00",
		EndTime:    "12:00",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sh.Status != types.ShiftScheduled {
		t.Fatalf("status = %s, want scheduled", sh.Status)
	}
	if sh.EndsAt <= sh.StartsAt {
		t.Fatalf("instants out of order: %d >= %d", sh.StartsAt, sh.EndsAt)
	}

	ids, err := st.OnDuty(ctx, "2026-08-28", 10)
	if err != nil {
		t.Fatalf("onduty: %v", err)
	}
	if len(ids) != 1 || ids[0] != "op-1" {
		t.Fatalf("on duty = %v, want [op-1]", ids)
	}
}

func TestCreateRejectsMissingOperator(t *testing.T) {
	svc, _ := testService(t)

	if _, err := svc.Create(context.Background(), types.ShiftCreate{
		Date: "2026-08-28", StartTime: "09:00", EndTime: "12:00",
	}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestOvernightShiftInstants(t *testing.T) {
	svc, _ := testService(t)

	sh, err := svc.Create(context.Background(), types.ShiftCreate{
		OperatorID: "op-1",
		Date:       "2026-08-28",
		StartTime:  "22:00",
		EndTime:    "06:00",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := sh.EndsAt - sh.StartsAt; got != 8*time.Hour.Milliseconds() {
		t.Fatalf("overnight span = %d ms, want 8h", got)
	}
}

func TestUpdateMovesCoverage(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()

	sh, err := svc.Create(ctx, types.ShiftCreate{
		OperatorID: "op-1", Date: "2026-08-28", StartTime: "09:00", EndTime: "12:00",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	start, end := "14:00", "16:00"
	if _, err := svc.Update(ctx, sh.ID, types.ShiftUpdate{StartTime: &start, EndTime: &end}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if ids, _ := st.OnDuty(ctx, "2026-08-28", 9); len(ids) != 0 {
		t.Fatalf("hour 9 still covered: %v", ids)
	}
	if ids, _ := st.OnDuty(ctx, "2026-08-28", 15); len(ids) != 1 {
		t.Fatalf("hour 15 not covered: %v", ids)
	}
}

func TestUpdateUnknownShift(t *testing.T) {
	svc, _ := testService(t)

	notes := "x"
	if _, err := svc.Update(context.Background(), "missing", types.ShiftUpdate{Notes: &notes}); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCoverageClassifiesHours(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()

	for _, op := range []string{"op-1", "op-2"} {
		if _, err := svc.Create(ctx, types.ShiftCreate{
			OperatorID: op, Date: "2026-08-28", StartTime: "09:00", EndTime: "11:00",
		}); err != nil {
			t.Fatalf("create %s: %v", op, err)
		}
	}
	if _, err := svc.Create(ctx, types.ShiftCreate{
		OperatorID: "op-1", Date: "2026-08-28", StartTime: "11:00", EndTime: "12:00",
	}); err != nil {
		t.Fatalf("create solo: %v", err)
	}

	// One answered and one missed call inside hour 9, Tashkent time.
	dayStart, _, err := svc.clock.DayBounds("2026-08-28")
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	nineAM := dayStart + 9*time.Hour.Milliseconds()
	answered := types.CallRecord{
		ID: "c1", ProviderCallID: "p1", PhoneNumber: "+998901234567",
		Direction: types.DirectionIncoming,
		StartedAt: nineAM, CreatedAt: nineAM,
		EndedAt: nineAM + 60000, DurationSeconds: 45,
	}
	missed := types.CallRecord{
		ID: "c2", ProviderCallID: "p2", PhoneNumber: "+998907654321",
		Direction: types.DirectionIncoming,
		StartedAt: nineAM + 1000, CreatedAt: nineAM + 1000,
		EndedAt: nineAM + 20000, DurationSeconds: 0,
	}
	for _, c := range []types.CallRecord{answered, missed} {
		if _, _, err := st.CreateCall(ctx, c); err != nil {
			t.Fatalf("create call: %v", err)
		}
	}

	cov, err := svc.Coverage(ctx, "2026-08-28")
	if err != nil {
		t.Fatalf("coverage: %v", err)
	}
	if len(cov) != 24 {
		t.Fatalf("coverage hours = %d, want 24", len(cov))
	}
	if cov[9].Status != types.CoverageCovered {
		t.Fatalf("hour 9 status = %s, want covered", cov[9].Status)
	}
	if cov[11].Status != types.CoveragePartial {
		t.Fatalf("hour 11 status = %s, want partial", cov[11].Status)
	}
	if cov[13].Status != types.CoverageUncovered {
		t.Fatalf("hour 13 status = %s, want uncovered", cov[13].Status)
	}
	if cov[9].CallCount != 2 || cov[9].AnsweredCount != 1 || cov[9].MissedCount != 1 {
		t.Fatalf("hour 9 counts = %+v", cov[9])
	}
}

func TestReportAggregatesShifts(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, types.ShiftCreate{
		OperatorID: "op-1", Date: "2026-08-28", StartTime: "09:00", EndTime: "12:00",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	dayStart, _, _ := svc.clock.DayBounds("2026-08-28")
	tenAM := dayStart + 10*time.Hour.Milliseconds()
	call := types.CallRecord{
		ID: "c1", ProviderCallID: "p1", PhoneNumber: "+998901234567",
		Direction: types.DirectionIncoming,
		StartedAt: tenAM, CreatedAt: tenAM,
		EndedAt: tenAM + 90000, DurationSeconds: 80,
	}
	if _, _, err := st.CreateCall(ctx, call); err != nil {
		t.Fatalf("create call: %v", err)
	}

	rep, err := svc.Report(ctx, "op-1", "2026-08-28", "2026-08-28")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.TotalShifts != 1 || rep.HoursScheduled != 3 {
		t.Fatalf("report = %+v", rep)
	}
	if rep.CallsDuring != 1 || rep.Answered != 1 || rep.AnswerRate != 100 {
		t.Fatalf("report call stats = %+v", rep)
	}
	if rep.AvgCallDuration != 80 {
		t.Fatalf("avg duration = %d, want 80", rep.AvgCallDuration)
	}
}
