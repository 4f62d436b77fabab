package rules

import (
	"errors"
	"fmt"
)

// Kind classifies a scheduling rule violation.
type Kind string

const (
	KindNotRounded          Kind = "not_rounded"
	KindTimeLowerBound      Kind = "time_lower_bound"
	KindTimeUpperBound      Kind = "time_upper_bound"
	KindMinPeriod           Kind = "min_period"
	KindPeriodOverlap       Kind = "period_overlap"
	KindInvalidWeekNum      Kind = "invalid_week_num"
	KindInvalidDayOfWeek    Kind = "invalid_day_of_week"
	KindInvalidBookingLimit Kind = "invalid_booking_limit"
	KindExceedsBookingLimit Kind = "exceeds_booking_limit"
	KindSlotHasBooking      Kind = "slot_has_booking"
	KindBookingOutOfSlot    Kind = "booking_out_of_slot"
	KindSlotDateMismatch    Kind = "slot_date_mismatch"
)

// Error is a rule violation. Two Errors match under errors.Is when their kinds match,
// so the Err* sentinels below can be used to test for a kind.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotRounded          = &Error{Kind: KindNotRounded}
	ErrTimeLowerBound      = &Error{Kind: KindTimeLowerBound}
	ErrTimeUpperBound      = &Error{Kind: KindTimeUpperBound}
	ErrMinPeriod           = &Error{Kind: KindMinPeriod}
	ErrPeriodOverlap       = &Error{Kind: KindPeriodOverlap}
	ErrInvalidWeekNum      = &Error{Kind: KindInvalidWeekNum}
	ErrInvalidDayOfWeek    = &Error{Kind: KindInvalidDayOfWeek}
	ErrInvalidBookingLimit = &Error{Kind: KindInvalidBookingLimit}
	ErrExceedsBookingLimit = &Error{Kind: KindExceedsBookingLimit}
	ErrSlotHasBooking      = &Error{Kind: KindSlotHasBooking}
	ErrBookingOutOfSlot    = &Error{Kind: KindBookingOutOfSlot}
	ErrSlotDateMismatch    = &Error{Kind: KindSlotDateMismatch}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Errorf builds a rule violation of kind outside this package.
func Errorf(kind Kind, format string, args ...any) *Error {
	return newError(kind, format, args...)
}

// KindOf returns the kind of the first rule violation in err's chain.
func KindOf(err error) (Kind, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return "", false
}
