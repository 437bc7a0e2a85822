package clock

import (
	"testing"
	"time"
)

func TestNewRejectsBadTimezone(t *testing.T) {
	if _, err := New("Not/AZone"); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestDateStringAndHour(t *testing.T) {
	c, err := New("Asia/Tashkent")
	if err != nil {
		t.Fatal(err)
	}

	// 2024-01-01 18:30 UTC is 2024-01-01 23:30 in Tashkent (UTC+5)
	ts := time.Date(2024, 1, 1, 18, 30, 0, 0, time.UTC).UnixMilli()
	if got := c.DateString(ts); got != "2024-01-01" {
		t.Errorf("DateString = %q, want 2024-01-01", got)
	}
	if got := c.HourOf(ts); got != 23 {
		t.Errorf("HourOf = %d, want 23", got)
	}

	// One hour later it is already the next local day
	ts = time.Date(2024, 1, 1, 19, 30, 0, 0, time.UTC).UnixMilli()
	if got := c.DateString(ts); got != "2024-01-02" {
		t.Errorf("DateString = %q, want 2024-01-02", got)
	}
	if got := c.HourOf(ts); got != 0 {
		t.Errorf("HourOf = %d, want 0", got)
	}
}

func TestDayBounds(t *testing.T) {
	c, _ := New("Asia/Tashkent")

	start, end, err := c.DayBounds("2024-01-01")
	if err != nil {
		t.Fatal(err)
	}
	if end-start != 24*time.Hour.Milliseconds() {
		t.Errorf("day length = %dms", end-start)
	}
	if got := c.DateString(start); got != "2024-01-01" {
		t.Errorf("start maps to %q", got)
	}
	if got := c.DateString(end); got != "2024-01-02" {
		t.Errorf("end maps to %q", got)
	}

	if _, _, err := c.DayBounds("01/02/2024"); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestShiftInstantsOvernight(t *testing.T) {
	c, _ := New("Asia/Tashkent")

	start, end, err := c.ShiftInstants("2024-01-01", "22:00", "06:00")
	if err != nil {
		t.Fatal(err)
	}
	if end <= start {
		t.Fatal("overnight shift end must be after start")
	}
	if got := (end - start) / time.Hour.Milliseconds(); got != 8 {
		t.Errorf("overnight shift length = %dh, want 8h", got)
	}
	if got := c.DateString(end); got != "2024-01-02" {
		t.Errorf("overnight shift ends on %q, want 2024-01-02", got)
	}
}

func TestNewFixed(t *testing.T) {
	at := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	c, err := NewFixed("Asia/Tashkent", at)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Today(); got != "2024-06-15" {
		t.Errorf("Today = %q", got)
	}
	if got := c.CurrentHour(); got != 14 {
		t.Errorf("CurrentHour = %d, want 14", got)
	}
}
