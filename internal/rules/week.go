package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WeekNumber encodes an ISO week as isoYear*100 + isoWeek, e.g. 202643.
// The encoding orders chronologically because isoWeek never exceeds 53.
type WeekNumber int

func NewWeekNumber(isoYear, isoWeek int) WeekNumber {
	return WeekNumber(isoYear*100 + isoWeek)
}

func (w WeekNumber) Year() int { return int(w) / 100 }

func (w WeekNumber) Week() int { return int(w) % 100 }

// Valid reports whether w names a week that exists in its ISO year.
func (w WeekNumber) Valid() bool {
	if w.Week() < 1 || w.Week() > 53 || w.Year() < 1 {
		return false
	}
	if w.Week() < 53 {
		return true
	}
	// Dec 28 always falls in the last ISO week of its year.
	_, last := time.Date(w.Year(), time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return last == 53
}

func (w WeekNumber) String() string {
	return fmt.Sprintf("%04d-W%02d", w.Year(), w.Week())
}

// ParseWeekNumber accepts both the integer form ("202643") and "2026-W43".
func ParseWeekNumber(s string) (WeekNumber, error) {
	s = strings.TrimSpace(s)
	var w WeekNumber
	if y, wk, ok := strings.Cut(strings.ToUpper(s), "-W"); ok {
		year, err1 := strconv.Atoi(y)
		week, err2 := strconv.Atoi(wk)
		if err1 != nil || err2 != nil {
			return 0, newError(KindInvalidWeekNum, "cannot parse week %q", s)
		}
		w = NewWeekNumber(year, week)
	} else {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, newError(KindInvalidWeekNum, "cannot parse week %q", s)
		}
		w = WeekNumber(n)
	}
	if !w.Valid() {
		return 0, newError(KindInvalidWeekNum, "week %d does not exist", int(w))
	}
	return w, nil
}

// Calendar does ISO-week arithmetic relative to a fixed location. Dates it returns
// are civil dates: midnight UTC of the local calendar day.
type Calendar struct {
	Location *time.Location
}

func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{Location: loc}
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Today returns the civil date of now in the calendar's location.
func (c Calendar) Today(now time.Time) time.Time {
	return CivilDate(now.In(c.location()))
}

// CivilDate drops the clock and zone of t, keeping its year, month and day.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekNumberOf returns the ISO week of the calendar day of date.
func (c Calendar) WeekNumberOf(date time.Time) WeekNumber {
	return NewWeekNumber(CivilDate(date).ISOWeek())
}

// DateOf returns the date of the given weekday in week.
func (c Calendar) DateOf(week WeekNumber, day time.Weekday) (time.Time, error) {
	if !week.Valid() {
		return time.Time{}, newError(KindInvalidWeekNum, "week %d does not exist", int(week))
	}
	jan4 := time.Date(week.Year(), time.January, 4, 0, 0, 0, 0, time.UTC)
	monday := jan4.AddDate(0, 0, 1-isoWeekday(jan4.Weekday()))
	return monday.AddDate(0, 0, (week.Week()-1)*7+isoWeekday(day)-1), nil
}

func (c Calendar) CurrentWeekNumber(now time.Time) WeekNumber {
	return c.WeekNumberOf(c.Today(now))
}

func (c Calendar) NextWeekNumber(now time.Time) WeekNumber {
	return c.WeekNumberOf(c.Today(now).AddDate(0, 0, 7))
}

// isoWeekday maps Monday..Sunday to 1..7.
func isoWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

// Weekdays lists the days slots can be placed on, in dashboard order.
var Weekdays = [5]time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

func IsWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

// ParseWeekday accepts English day names and their three letter abbreviations.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, newError(KindInvalidDayOfWeek, "unknown day of week %q", s)
}
