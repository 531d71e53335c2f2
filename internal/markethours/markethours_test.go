package markethours

import (
	"strings"
	"testing"
	"time"
)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, NPT)
}

func TestCalendar_TradingDays(t *testing.T) {
	c, err := NewCalendar([]string{"2026-10-20"})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"sunday", at(2026, 10, 18, 12, 0), true},
		{"thursday", at(2026, 10, 22, 12, 0), true},
		{"friday", at(2026, 10, 16, 12, 0), false},
		{"saturday", at(2026, 10, 17, 12, 0), false},
		{"holiday", at(2026, 10, 20, 12, 0), false},
	}
	for _, tt := range tests {
		if got := c.IsTradingDay(tt.t); got != tt.want {
			t.Errorf("%s: IsTradingDay = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCalendar_IsOpen(t *testing.T) {
	c, _ := NewCalendar(nil)
	if !c.IsOpen(at(2026, 10, 18, 11, 0)) {
		t.Error("expected open at 11:00")
	}
	if c.IsOpen(at(2026, 10, 18, 15, 0)) {
		t.Error("expected closed at 15:00")
	}
	if c.IsOpen(at(2026, 10, 18, 10, 59)) {
		t.Error("expected closed before open")
	}
}

func TestCalendar_UTCInputUsesLocalDate(t *testing.T) {
	c, _ := NewCalendar([]string{"2026-10-20"})
	// 2026-10-19 18:30 UTC is 2026-10-20 00:15 NPT.
	if !c.IsHoliday(time.Date(2026, 10, 19, 18, 30, 0, 0, time.UTC)) {
		t.Error("expected NPT date to be the holiday")
	}
}

func TestCalendar_NextOpen(t *testing.T) {
	c, _ := NewCalendar([]string{"2026-10-18"})
	// Thursday after close: Fri/Sat weekend, Sunday holiday, so Monday.
	got := c.NextOpen(at(2026, 10, 15, 16, 0))
	want := at(2026, 10, 19, 11, 0)
	if !got.Equal(want) {
		t.Errorf("NextOpen = %v, want %v", got, want)
	}
	// Before open on a trading day returns the same day.
	got = c.NextOpen(at(2026, 10, 19, 9, 0))
	if !got.Equal(want) {
		t.Errorf("NextOpen same day = %v, want %v", got, want)
	}
}

func TestCalendar_BadHoliday(t *testing.T) {
	if _, err := NewCalendar([]string{"20-10-2026"}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStatusString(t *testing.T) {
	c, _ := NewCalendar(nil)
	if s := c.StatusString(at(2026, 10, 18, 13, 30)); !strings.HasPrefix(s, "Market open, closes in 1h30m") {
		t.Errorf("status = %q", s)
	}
	if s := c.StatusString(at(2026, 10, 16, 12, 0)); !strings.HasPrefix(s, "Market closed, opens Sun 11:00") {
		t.Errorf("status = %q", s)
	}
}
