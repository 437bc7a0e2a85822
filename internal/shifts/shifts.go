// Package shifts maintains the shift schedule and the per-hour coverage
// index derived from it. Coverage is always attributed to the shift's start
// date, so an overnight shift covers late hours of its own date and early
// hours keyed under the same date's index.
package shifts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Muhiddinjon/call-center-crm/internal/clock"
	"github.com/Muhiddinjon/call-center-crm/internal/store"
	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

var (
	ErrNotFound   = errors.New("shift not found")
	ErrValidation = errors.New("invalid shift")
)

// Service owns shift CRUD and coverage queries.
type Service struct {
	store  store.Store
	clock  *clock.Clock
	logger zerolog.Logger
}

func New(st store.Store, ck *clock.Clock, logger zerolog.Logger) *Service {
	return &Service{
		store:  st,
		clock:  ck,
		logger: logger.With().Str("component", "shifts").Logger(),
	}
}

// CoverHours unfolds a shift's [start, end) interval into the hours of day
// it covers. An end at or before the start wraps past midnight, so
// 22:00-06:00 yields {22, 23, 0, 1, 2, 3, 4, 5}. A partial final hour
// counts as covered.
func CoverHours(startTime, endTime string) ([]int, error) {
	start, err := time.Parse("15:04", startTime)
	if err != nil {
		return nil, fmt.Errorf("%w: start time %q", ErrValidation, startTime)
	}
	end, err := time.Parse("15:04", endTime)
	if err != nil {
		return nil, fmt.Errorf("%w: end time %q", ErrValidation, endTime)
	}

	boundary := end.Hour()
	if end.Minute() > 0 {
		boundary = (boundary + 1) % 24
	}

	hours := make([]int, 0, 24)
	for h := start.Hour(); ; h = (h + 1) % 24 {
		hours = append(hours, h)
		if next := (h + 1) % 24; next == boundary || len(hours) == 24 {
			break
		}
	}
	return hours, nil
}

func (s *Service) buildShift(id string, c types.ShiftCreate, now int64) (types.Shift, []int, error) {
	if c.OperatorID == "" {
		return types.Shift{}, nil, fmt.Errorf("%w: operatorId required", ErrValidation)
	}
	startsAt, endsAt, err := s.clock.ShiftInstants(c.Date, c.StartTime, c.EndTime)
	if err != nil {
		return types.Shift{}, nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	hours, err := CoverHours(c.StartTime, c.EndTime)
	if err != nil {
		return types.Shift{}, nil, err
	}

	sh := types.Shift{
		ID:         id,
		OperatorID: c.OperatorID,
		Date:       c.Date,
		StartTime:  c.StartTime,
		EndTime:    c.EndTime,
		StartsAt:   startsAt,
		EndsAt:     endsAt,
		Status:     types.ShiftScheduled,
		Notes:      c.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
		CreatedBy:  c.CreatedBy,
	}
	return sh, hours, nil
}

// Create schedules a new shift and registers its coverage hours.
func (s *Service) Create(ctx context.Context, c types.ShiftCreate) (*types.Shift, error) {
	now := s.clock.NowMillis()
	sh, hours, err := s.buildShift(uuid.NewString(), c, now)
	if err != nil {
		return nil, err
	}

	if op, err := s.store.GetOperator(ctx, c.OperatorID); err == nil && op != nil {
		sh.OperatorName = op.Name
	}

	if err := s.store.CreateShift(ctx, sh, hours); err != nil {
		return nil, fmt.Errorf("create shift: %w", err)
	}

	s.logger.Info().
		Str("shift_id", sh.ID).
		Str("operator_id", sh.OperatorID).
		Str("date", sh.Date).
		Ints("hours", hours).
		Msg("shift created")
	return &sh, nil
}

// Update edits a shift. Any change to its date or times rewrites the
// coverage index in one atomic swap.
func (s *Service) Update(ctx context.Context, id string, upd types.ShiftUpdate) (*types.Shift, error) {
	old, err := s.store.GetShift(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get shift: %w", err)
	}
	if old == nil {
		return nil, ErrNotFound
	}

	next := *old
	if upd.Date != nil {
		next.Date = *upd.Date
	}
	if upd.StartTime != nil {
		next.StartTime = *upd.StartTime
	}
	if upd.EndTime != nil {
		next.EndTime = *upd.EndTime
	}
	if upd.Status != nil {
		next.Status = *upd.Status
	}
	if upd.Notes != nil {
		next.Notes = *upd.Notes
	}
	next.UpdatedAt = s.clock.NowMillis()

	next.StartsAt, next.EndsAt, err = s.clock.ShiftInstants(next.Date, next.StartTime, next.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	oldHours, err := CoverHours(old.StartTime, old.EndTime)
	if err != nil {
		return nil, err
	}
	newHours, err := CoverHours(next.StartTime, next.EndTime)
	if err != nil {
		return nil, err
	}

	if err := s.store.ReplaceShift(ctx, *old, oldHours, next, newHours); err != nil {
		return nil, fmt.Errorf("replace shift: %w", err)
	}

	s.logger.Info().Str("shift_id", id).Str("date", next.Date).Msg("shift updated")
	return &next, nil
}

// Delete removes a shift and its coverage hours.
func (s *Service) Delete(ctx context.Context, id string) error {
	sh, err := s.store.GetShift(ctx, id)
	if err != nil {
		return fmt.Errorf("get shift: %w", err)
	}
	if sh == nil {
		return ErrNotFound
	}
	hours, err := CoverHours(sh.StartTime, sh.EndTime)
	if err != nil {
		return err
	}
	if err := s.store.DeleteShift(ctx, *sh, hours); err != nil {
		return fmt.Errorf("delete shift: %w", err)
	}
	s.logger.Info().Str("shift_id", id).Msg("shift deleted")
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*types.Shift, error) {
	return s.store.GetShift(ctx, id)
}

// Query lists shifts, narrowed by operator and date range when set.
func (s *Service) Query(ctx context.Context, f types.ShiftFilters) ([]types.Shift, error) {
	var (
		shifts []types.Shift
		err    error
	)
	switch {
	case f.OperatorID != "":
		var from, to int64
		if f.DateFrom != "" {
			if from, _, err = s.clock.DayBounds(f.DateFrom); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrValidation, err)
			}
		}
		if f.DateTo != "" {
			if _, to, err = s.clock.DayBounds(f.DateTo); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrValidation, err)
			}
		}
		shifts, err = s.store.ShiftsByOperator(ctx, f.OperatorID, from, to)
	case f.DateFrom != "" && f.DateFrom == f.DateTo, f.DateFrom != "" && f.DateTo == "":
		shifts, err = s.store.ShiftsByDate(ctx, f.DateFrom)
	default:
		shifts, err = s.store.AllShifts(ctx)
		if err == nil && (f.DateFrom != "" || f.DateTo != "") {
			filtered := shifts[:0]
			for _, sh := range shifts {
				if f.DateFrom != "" && sh.Date < f.DateFrom {
					continue
				}
				if f.DateTo != "" && sh.Date > f.DateTo {
					continue
				}
				filtered = append(filtered, sh)
			}
			shifts = filtered
		}
	}
	if err != nil {
		return nil, fmt.Errorf("query shifts: %w", err)
	}

	if f.Status != "" {
		filtered := shifts[:0]
		for _, sh := range shifts {
			if sh.Status == f.Status {
				filtered = append(filtered, sh)
			}
		}
		shifts = filtered
	}
	return shifts, nil
}

// Coverage summarizes one date hour by hour: who is on duty and how the
// calls in that hour went.
func (s *Service) Coverage(ctx context.Context, date string) ([]types.HourCoverage, error) {
	dayStart, dayEnd, err := s.clock.DayBounds(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	shifts, err := s.store.ShiftsByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("shifts by date: %w", err)
	}

	names := make(map[string]string)
	byHour := make(map[int][]types.HourOperator)
	for _, sh := range shifts {
		if sh.Status == types.ShiftCancelled {
			continue
		}
		hours, err := CoverHours(sh.StartTime, sh.EndTime)
		if err != nil {
			continue
		}
		name := sh.OperatorName
		if name == "" {
			if cached, ok := names[sh.OperatorID]; ok {
				name = cached
			} else if op, err := s.store.GetOperator(ctx, sh.OperatorID); err == nil && op != nil {
				name = op.Name
			}
			names[sh.OperatorID] = name
		}
		for _, h := range hours {
			if hasOperator(byHour[h], sh.OperatorID) {
				continue
			}
			byHour[h] = append(byHour[h], types.HourOperator{OperatorID: sh.OperatorID, OperatorName: name})
		}
	}

	calls, err := s.store.QueryCalls(ctx, types.CallFilters{
		DateFrom: dayStart,
		DateTo:   dayEnd - 1,
		Limit:    maxCallsPerDay,
	})
	if err != nil {
		return nil, fmt.Errorf("calls for coverage: %w", err)
	}

	out := make([]types.HourCoverage, 24)
	for h := 0; h < 24; h++ {
		out[h] = types.HourCoverage{
			Hour:      h,
			Operators: byHour[h],
			Status:    statusFor(len(byHour[h])),
		}
	}
	for i := range calls {
		c := &calls[i]
		if c.Direction != types.DirectionIncoming {
			continue
		}
		h := s.clock.HourOf(c.StartedAt)
		out[h].CallCount++
		if c.Answered() {
			out[h].AnsweredCount++
		} else if c.Missed() {
			out[h].MissedCount++
		}
	}
	return out, nil
}

// maxCallsPerDay bounds the coverage and report scans. A call center a few
// orders of magnitude busier than this one needs a different index.
const maxCallsPerDay = 10000

func hasOperator(ops []types.HourOperator, id string) bool {
	for _, op := range ops {
		if op.OperatorID == id {
			return true
		}
	}
	return false
}

func statusFor(operators int) types.CoverageStatus {
	switch {
	case operators == 0:
		return types.CoverageUncovered
	case operators == 1:
		return types.CoveragePartial
	default:
		return types.CoverageCovered
	}
}

// OnDuty returns the operators covering one hour of one date. An empty
// date or a negative hour defaults to the current instant.
func (s *Service) OnDuty(ctx context.Context, date string, hour int) ([]types.HourOperator, error) {
	if date == "" {
		date = s.clock.Today()
	}
	if hour < 0 {
		hour = s.clock.CurrentHour()
	}
	if hour > 23 {
		return nil, fmt.Errorf("%w: hour must be between 0 and 23", ErrValidation)
	}

	ids, err := s.store.OnDuty(ctx, date, hour)
	if err != nil {
		return nil, fmt.Errorf("on duty: %w", err)
	}
	ops := make([]types.HourOperator, 0, len(ids))
	for _, id := range ids {
		name := ""
		if op, err := s.store.GetOperator(ctx, id); err == nil && op != nil {
			name = op.Name
		}
		ops = append(ops, types.HourOperator{OperatorID: id, OperatorName: name})
	}
	return ops, nil
}

// Report aggregates one operator's shifts and the incoming calls that fell
// inside them over a date range (inclusive).
func (s *Service) Report(ctx context.Context, operatorID, dateFrom, dateTo string) (*types.ShiftReport, error) {
	from, _, err := s.clock.DayBounds(dateFrom)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	_, to, err := s.clock.DayBounds(dateTo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	shifts, err := s.store.ShiftsByOperator(ctx, operatorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("shifts by operator: %w", err)
	}

	calls, err := s.store.QueryCalls(ctx, types.CallFilters{
		DateFrom: from,
		DateTo:   to - 1,
		Limit:    maxCallsPerDay,
	})
	if err != nil {
		return nil, fmt.Errorf("calls for report: %w", err)
	}

	report := &types.ShiftReport{
		OperatorID:  operatorID,
		PeriodStart: from,
		PeriodEnd:   to,
	}
	if op, err := s.store.GetOperator(ctx, operatorID); err == nil && op != nil {
		report.OperatorName = op.Name
	}

	var totalDuration int
	for _, sh := range shifts {
		if sh.Status == types.ShiftCancelled {
			continue
		}
		detail := types.ShiftDetail{
			ShiftID:        sh.ID,
			Date:           sh.Date,
			StartTime:      sh.StartTime,
			EndTime:        sh.EndTime,
			HoursScheduled: float64(sh.EndsAt-sh.StartsAt) / float64(time.Hour.Milliseconds()),
		}
		for i := range calls {
			c := &calls[i]
			if c.Direction != types.DirectionIncoming {
				continue
			}
			if c.StartedAt < sh.StartsAt || c.StartedAt >= sh.EndsAt {
				continue
			}
			detail.CallsDuring++
			if c.Answered() {
				detail.Answered++
				totalDuration += c.DurationSeconds
			} else if c.Missed() {
				detail.Missed++
			}
		}
		report.TotalShifts++
		report.HoursScheduled += detail.HoursScheduled
		report.CallsDuring += detail.CallsDuring
		report.Answered += detail.Answered
		report.Missed += detail.Missed
		report.Shifts = append(report.Shifts, detail)
	}
	if report.Answered > 0 {
		report.AvgCallDuration = totalDuration / report.Answered
	}
	if report.CallsDuring > 0 {
		report.AnswerRate = report.Answered * 100 / report.CallsDuring
	}
	return report, nil
}
