package rules

import "time"

// Unlimited as a DefaultLimit means an interviewer without a recorded limit has no cap.
const Unlimited = -1

// LimitPolicy enforces the per-interviewer weekly booking cap.
type LimitPolicy struct {
	Calendar Calendar
	// DefaultLimit applies when no BookingLimit row exists for an interviewer and week.
	DefaultLimit int
}

// ValidateLimitChange checks that newLimit may be recorded for week at now, given the
// interviewer already holds currentCount bookings in that week.
func (p LimitPolicy) ValidateLimitChange(week WeekNumber, newLimit, currentCount int, now time.Time) error {
	if next := p.Calendar.NextWeekNumber(now); week != next {
		return newError(KindInvalidWeekNum, "cannot create or edit booking limit on week %d, only on week %d", int(week), int(next))
	}
	if newLimit < 0 {
		return newError(KindInvalidBookingLimit, "booking limit %d cannot be negative", newLimit)
	}
	if newLimit < currentCount {
		return newError(KindInvalidBookingLimit,
			"booking limit %d cannot be lower than the number of existing bookings %d", newLimit, currentCount)
	}
	return nil
}

// EffectiveLimit returns the cap for the week, or Unlimited.
func (p LimitPolicy) EffectiveLimit(limit *BookingLimit) int {
	if limit != nil {
		return limit.MaxBookings
	}
	if p.DefaultLimit < 0 {
		return Unlimited
	}
	return p.DefaultLimit
}

// CheckCanBook fails when one more booking would exceed the effective limit.
func (p LimitPolicy) CheckCanBook(currentCount int, limit *BookingLimit) error {
	max := p.EffectiveLimit(limit)
	if max == Unlimited {
		return nil
	}
	if currentCount+1 > max {
		return newError(KindExceedsBookingLimit, "interviewer already has %d of %d bookings this week", currentCount, max)
	}
	return nil
}
