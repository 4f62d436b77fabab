package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TimeOfDay is a number of minutes since midnight.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// ParseTimeOfDay parses "HH:MM". Trailing seconds ("HH:MM:SS") are accepted and must be zero.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec != 0 {
			return 0, fmt.Errorf("invalid seconds in %q", s)
		}
	}
	return NewTimeOfDay(h, m), nil
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Period is a half-open time-of-day range [From, To).
type Period struct {
	From TimeOfDay `json:"from"`
	To   TimeOfDay `json:"to"`
}

func (p Period) Duration() int { return int(p.To - p.From) }

func (p Period) String() string {
	return p.From.String() + "-" + p.To.String()
}

// Contains reports whether q lies within p.
func (p Period) Contains(q Period) bool {
	return p.From <= q.From && q.To <= p.To
}

const (
	periodGranularity = 30
	dayStart          = TimeOfDay(8 * 60)
	dayEnd            = TimeOfDay(22 * 60)
	minPeriodMinutes  = 90
)

// ValidatePeriod checks rounding, day bounds and minimum length, in that order.
func ValidatePeriod(p Period) error {
	if p.From.Minute()%periodGranularity != 0 || p.To.Minute()%periodGranularity != 0 {
		return newError(KindNotRounded, "%s: minutes must be 00 or 30", p)
	}
	if p.From < dayStart {
		return newError(KindTimeLowerBound, "%s: cannot start before %s", p, dayStart)
	}
	if p.To > dayEnd {
		return newError(KindTimeUpperBound, "%s: cannot end after %s", p, dayEnd)
	}
	if p.Duration() < minPeriodMinutes {
		return newError(KindMinPeriod, "%s: must last at least %d minutes", p, minPeriodMinutes)
	}
	return nil
}
