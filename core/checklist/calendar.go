package checklist

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/youknow/checklist/core"
)

// DateLayout is the wire format of a calendar day.
const DateLayout = "2006-01-02"

var errInvalidDate = errors.New("invalid date, expected format YYYY-MM-DD")

// Calendar is the single source of calendar-day boundaries.
// Every day is the half-open interval [midnight, next midnight) in the calendar location.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a Calendar in loc (UTC when nil).
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

func (c Calendar) location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

func (c Calendar) Location() *time.Location { return c.location() }

// DayStart returns the midnight that opens t's calendar day.
func (c Calendar) DayStart(t time.Time) time.Time {
	y, m, d := t.In(c.location()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.location())
}

// DayRange returns the [start, end) bounds of t's calendar day.
func (c Calendar) DayRange(t time.Time) (time.Time, time.Time) {
	start := c.DayStart(t)
	return start, start.AddDate(0, 0, 1)
}

func (c Calendar) Today(now time.Time) time.Time { return c.DayStart(now) }

func (c Calendar) Weekday(t time.Time) time.Weekday { return t.In(c.location()).Weekday() }

func (c Calendar) DayOfMonth(t time.Time) int { return t.In(c.location()).Day() }

// WeekStart returns the Sunday opening t's week.
func (c Calendar) WeekStart(t time.Time) time.Time {
	day := c.DayStart(t)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

func (c Calendar) MonthStart(t time.Time) time.Time {
	y, m, _ := t.In(c.location()).Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, c.location())
}

// Days lists the day starts from `from` to `to`, both inclusive.
func (c Calendar) Days(from, to time.Time) []time.Time {
	var days []time.Time
	last := c.DayStart(to)
	for day := c.DayStart(from); !day.After(last); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
	}
	return days
}

// Format renders t's calendar day as YYYY-MM-DD.
func (c Calendar) Format(t time.Time) string {
	return t.In(c.location()).Format(DateLayout)
}

// ParseDate strictly parses a YYYY-MM-DD day.
func (c Calendar) ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), c.location())
	if err != nil {
		return time.Time{}, core.NewValidationError(errInvalidDate, core.FieldError{Field: "date", Error: errInvalidDate.Error()})
	}
	return t, nil
}

// ParseDay accepts a YYYY-MM-DD day or an RFC 3339 timestamp and returns the start of its calendar day.
func (c Calendar) ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return c.DayStart(t), nil
	}
	return c.ParseDate(s)
}

// At returns the instant of the "HH:MM" clock time on day.
func (c Calendar) At(day time.Time, clock string) (time.Time, error) {
	hour, minute, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := day.In(c.location()).Date()
	return time.Date(y, m, d, hour, minute, 0, 0, c.location()), nil
}

func parseClock(clock string) (int, int, error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, errors.Errorf("invalid time %q, expected HH:MM", clock)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, errors.Errorf("invalid hour in %q", clock)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, errors.Errorf("invalid minute in %q", clock)
	}
	return hour, minute, nil
}
