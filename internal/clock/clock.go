// Package clock anchors all date and hour arithmetic to the deployment's
// fixed local timezone. Coverage sets, missed-call assignment and daily
// stats all key on the same (date, hour) pair, so they must share one
// definition of "today" and "this hour".
package clock

import (
	"fmt"
	"time"
)

// Clock resolves wall-clock dates and hours in a fixed location.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New creates a Clock for the named IANA timezone.
func New(timezone string) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// NewFixed creates a Clock whose Now is pinned to a constant instant.
// Used by tests that need deterministic (date, hour) resolution.
func NewFixed(timezone string, at time.Time) (*Clock, error) {
	c, err := New(timezone)
	if err != nil {
		return nil, err
	}
	c.now = func() time.Time { return at }
	return c, nil
}

// Now returns the current instant in the clock's location.
func (c *Clock) Now() time.Time { return c.now().In(c.loc) }

// NowMillis returns the current instant as Unix milliseconds.
func (c *Clock) NowMillis() int64 { return c.now().UnixMilli() }

// DateString formats an instant as YYYY-MM-DD in the clock's location.
func (c *Clock) DateString(ts int64) string {
	return time.UnixMilli(ts).In(c.loc).Format("2006-01-02")
}

// Today returns the current date as YYYY-MM-DD.
func (c *Clock) Today() string { return c.Now().Format("2006-01-02") }

// HourOf returns the hour of day (0-23) of an instant.
func (c *Clock) HourOf(ts int64) int {
	return time.UnixMilli(ts).In(c.loc).Hour()
}

// CurrentHour returns the current hour of day (0-23).
func (c *Clock) CurrentHour() int { return c.Now().Hour() }

// DayBounds returns the [start, end) Unix-millisecond bounds of a calendar
// date. The date must be YYYY-MM-DD.
func (c *Clock) DayBounds(date string) (int64, int64, error) {
	start, err := time.ParseInLocation("2006-01-02", date, c.loc)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return start.UnixMilli(), start.AddDate(0, 0, 1).UnixMilli(), nil
}

// ShiftInstants resolves a shift's absolute start and end instants. An end
// time at or before the start time rolls the end into the next day.
func (c *Clock) ShiftInstants(date, startTime, endTime string) (int64, int64, error) {
	start, err := time.ParseInLocation("2006-01-02 15:04", date+" "+startTime, c.loc)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid shift start %q %q: %w", date, startTime, err)
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", date+" "+endTime, c.loc)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid shift end %q %q: %w", date, endTime, err)
	}
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start.UnixMilli(), end.UnixMilli(), nil
}
