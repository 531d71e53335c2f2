// Package markethours knows when the exchange trades. The sweep scheduler
// uses it to skip holidays that a cron spec cannot express.
package markethours

import (
	"fmt"
	"time"

	"marketlens/internal/model"
)

// NPT is Nepal Time (UTC+5:45).
var NPT = time.FixedZone("NPT", 5*3600+45*60)

// Session hours in NPT.
const (
	OpenHour    = 11
	OpenMinute  = 0
	CloseHour   = 15
	CloseMinute = 0
)

// Calendar is a weekly trading pattern plus a holiday list. The zero value
// is not usable; use NewCalendar.
type Calendar struct {
	loc      *time.Location
	weekend  map[time.Weekday]bool
	holidays map[string]bool
}

// NewCalendar returns a Sunday–Thursday calendar in NPT with the given
// holidays ("2006-01-02").
func NewCalendar(holidays []string) (*Calendar, error) {
	c := &Calendar{
		loc:      NPT,
		weekend:  map[time.Weekday]bool{time.Friday: true, time.Saturday: true},
		holidays: make(map[string]bool, len(holidays)),
	}
	for _, h := range holidays {
		d, err := time.Parse(model.DateLayout, h)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", h, err)
		}
		c.holidays[d.Format(model.DateLayout)] = true
	}
	return c, nil
}

// IsHoliday reports whether t's local date is a listed holiday.
func (c *Calendar) IsHoliday(t time.Time) bool {
	return c.holidays[t.In(c.loc).Format(model.DateLayout)]
}

// IsTradingDay is true on non-weekend, non-holiday dates.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	local := t.In(c.loc)
	return !c.weekend[local.Weekday()] && !c.IsHoliday(local)
}

// IsOpen is true during the session on a trading day.
func (c *Calendar) IsOpen(t time.Time) bool {
	local := t.In(c.loc)
	if !c.IsTradingDay(local) {
		return false
	}
	hm := local.Hour()*60 + local.Minute()
	return hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute
}

// NextOpen returns the next session open at or after t.
func (c *Calendar) NextOpen(t time.Time) time.Time {
	local := t.In(c.loc)
	open := time.Date(local.Year(), local.Month(), local.Day(), OpenHour, OpenMinute, 0, 0, c.loc)
	if local.Before(open) && c.IsTradingDay(local) {
		return open
	}
	// A holiday run longer than a month would be a data error.
	for i := 1; i <= 31; i++ {
		d := open.AddDate(0, 0, i)
		if c.IsTradingDay(d) {
			return d
		}
	}
	return open.AddDate(0, 0, 1)
}

// StatusString returns a human-readable market status.
func (c *Calendar) StatusString(t time.Time) string {
	if c.IsOpen(t) {
		local := t.In(c.loc)
		closeAt := time.Date(local.Year(), local.Month(), local.Day(), CloseHour, CloseMinute, 0, 0, c.loc)
		return fmt.Sprintf("Market open, closes in %s", fmtDur(closeAt.Sub(local)))
	}
	next := c.NextOpen(t)
	return fmt.Sprintf("Market closed, opens %s %s (%s)",
		next.Weekday().String()[:3], next.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
