// Package stats aggregates call records into daily, per-operator and
// date-range summaries. Counts follow the call classification rules: missed
// means an incoming call that ended without a positive connected duration.
package stats

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/Muhiddinjon/call-center-crm/internal/clock"
	"github.com/Muhiddinjon/call-center-crm/internal/store"
	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

// maxCallsPerQuery bounds a single aggregation scan.
const maxCallsPerQuery = 10000

// HourStat is one hour of the daily histogram.
type HourStat struct {
	Hour     int `json:"hour"`
	Total    int `json:"total"`
	Answered int `json:"answered"`
	Missed   int `json:"missed"`
}

// OperatorStat summarizes one operator's annotated calls.
type OperatorStat struct {
	OperatorName       string `json:"operatorName"`
	Total              int    `json:"total"`
	Answered           int    `json:"answered"`
	Missed             int    `json:"missed"`
	AvgDurationSeconds int    `json:"avgDurationSeconds"`
	AnswerRate         int    `json:"answerRate"` // percent
}

// DailySnapshot is the full aggregate for one calendar date.
type DailySnapshot struct {
	Date               string         `json:"date"`
	TotalCalls         int            `json:"totalCalls"`
	Incoming           int            `json:"incoming"`
	Outgoing           int            `json:"outgoing"`
	Answered           int            `json:"answered"`
	Missed             int            `json:"missed"`
	ActiveCalls        int            `json:"activeCalls"`
	AvgDurationSeconds int            `json:"avgDurationSeconds"`
	AnswerRate         int            `json:"answerRate"` // percent, incoming only
	Hours              []HourStat     `json:"hours"`
	Operators          []OperatorStat `json:"operators"`
	GeneratedAt        int64          `json:"generatedAt"`
}

// DayCount is one day of a range summary.
type DayCount struct {
	Date     string `json:"date"`
	Total    int    `json:"total"`
	Answered int    `json:"answered"`
	Missed   int    `json:"missed"`
}

// RangeSummary aggregates calls across an inclusive date range.
type RangeSummary struct {
	DateFrom           string     `json:"dateFrom"`
	DateTo             string     `json:"dateTo"`
	TotalCalls         int        `json:"totalCalls"`
	Answered           int        `json:"answered"`
	Missed             int        `json:"missed"`
	AvgDurationSeconds int        `json:"avgDurationSeconds"`
	AnswerRate         int        `json:"answerRate"` // percent
	Days               []DayCount `json:"days"`
}

// Service computes aggregates on demand.
type Service struct {
	store  store.Store
	clock  *clock.Clock
	logger zerolog.Logger
}

func New(st store.Store, ck *clock.Clock, logger zerolog.Logger) *Service {
	return &Service{
		store:  st,
		clock:  ck,
		logger: logger.With().Str("component", "stats").Logger(),
	}
}

// Daily builds the snapshot for one date. An empty date means today.
func (s *Service) Daily(ctx context.Context, date string) (*DailySnapshot, error) {
	if date == "" {
		date = s.clock.Today()
	}
	from, to, err := s.clock.DayBounds(date)
	if err != nil {
		return nil, fmt.Errorf("invalid date: %w", err)
	}

	calls, err := s.store.QueryCalls(ctx, types.CallFilters{
		DateFrom: from,
		DateTo:   to - 1,
		Limit:    maxCallsPerQuery,
	})
	if err != nil {
		return nil, fmt.Errorf("calls for %s: %w", date, err)
	}

	snap := &DailySnapshot{
		Date:        date,
		Hours:       make([]HourStat, 24),
		GeneratedAt: s.clock.NowMillis(),
	}
	for h := range snap.Hours {
		snap.Hours[h].Hour = h
	}

	byOperator := make(map[string]*OperatorStat)
	opDuration := make(map[string]int)
	var totalDuration int

	for i := range calls {
		c := &calls[i]
		snap.TotalCalls++
		switch c.Direction {
		case types.DirectionIncoming:
			snap.Incoming++
		case types.DirectionOutgoing:
			snap.Outgoing++
		}
		if !c.Ended() {
			snap.ActiveCalls++
		}

		h := s.clock.HourOf(c.StartedAt)
		snap.Hours[h].Total++

		answered, missed := c.Answered(), c.Missed()
		if answered {
			snap.Answered++
			snap.Hours[h].Answered++
			totalDuration += c.DurationSeconds
		}
		if missed {
			snap.Missed++
			snap.Hours[h].Missed++
		}

		if c.OperatorName != "" {
			op := byOperator[c.OperatorName]
			if op == nil {
				op = &OperatorStat{OperatorName: c.OperatorName}
				byOperator[c.OperatorName] = op
			}
			op.Total++
			if answered {
				op.Answered++
				opDuration[c.OperatorName] += c.DurationSeconds
			}
			if missed {
				op.Missed++
			}
		}
	}

	if snap.Answered > 0 {
		snap.AvgDurationSeconds = totalDuration / snap.Answered
	}
	if snap.Incoming > 0 {
		snap.AnswerRate = snap.Answered * 100 / snap.Incoming
	}

	snap.Operators = make([]OperatorStat, 0, len(byOperator))
	for name, op := range byOperator {
		if op.Answered > 0 {
			op.AvgDurationSeconds = opDuration[name] / op.Answered
		}
		if op.Total > 0 {
			op.AnswerRate = op.Answered * 100 / op.Total
		}
		snap.Operators = append(snap.Operators, *op)
	}
	sortOperators(snap.Operators)

	return snap, nil
}

// Range aggregates an inclusive date range day by day.
func (s *Service) Range(ctx context.Context, dateFrom, dateTo string) (*RangeSummary, error) {
	from, _, err := s.clock.DayBounds(dateFrom)
	if err != nil {
		return nil, fmt.Errorf("invalid dateFrom: %w", err)
	}
	_, to, err := s.clock.DayBounds(dateTo)
	if err != nil {
		return nil, fmt.Errorf("invalid dateTo: %w", err)
	}
	if to <= from {
		return nil, fmt.Errorf("dateTo %s before dateFrom %s", dateTo, dateFrom)
	}

	calls, err := s.store.QueryCalls(ctx, types.CallFilters{
		DateFrom: from,
		DateTo:   to - 1,
		Limit:    maxCallsPerQuery,
	})
	if err != nil {
		return nil, fmt.Errorf("calls for range: %w", err)
	}

	sum := &RangeSummary{DateFrom: dateFrom, DateTo: dateTo}
	byDay := make(map[string]*DayCount)
	var totalDuration int

	for i := range calls {
		c := &calls[i]
		sum.TotalCalls++

		date := s.clock.DateString(c.StartedAt)
		day := byDay[date]
		if day == nil {
			day = &DayCount{Date: date}
			byDay[date] = day
		}
		day.Total++

		if c.Answered() {
			sum.Answered++
			day.Answered++
			totalDuration += c.DurationSeconds
		}
		if c.Missed() {
			sum.Missed++
			day.Missed++
		}
	}

	if sum.Answered > 0 {
		sum.AvgDurationSeconds = totalDuration / sum.Answered
	}
	if sum.TotalCalls > 0 {
		sum.AnswerRate = sum.Answered * 100 / sum.TotalCalls
	}

	sum.Days = make([]DayCount, 0, len(byDay))
	for _, day := range byDay {
		sum.Days = append(sum.Days, *day)
	}
	sortDays(sum.Days)

	return sum, nil
}

func sortOperators(ops []OperatorStat) {
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Total != ops[j].Total {
			return ops[i].Total > ops[j].Total
		}
		return ops[i].OperatorName < ops[j].OperatorName
	})
}

func sortDays(days []DayCount) {
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
}
