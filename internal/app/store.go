package app

import (
	"context"

	"interview-planner/internal/rules"
)

// BookingFilter selects bookings attached to any of the listed slots.
type BookingFilter struct {
	InterviewerSlotIDs []int64
	CandidateSlotIDs   []int64
}

// Store is the persistence the planner needs. Lookups of a single row return an
// error wrapping ErrNotFound when nothing matches.
type Store interface {
	// InTx runs fn inside one transaction holding an exclusive lock on every key,
	// so a read-validate-write sequence cannot interleave with another one on the
	// same keys.
	InTx(ctx context.Context, lockKeys []string, fn func(Store) error) error
	Ping(ctx context.Context) error

	PeriodsForOwnerAndDay(ctx context.Context, key rules.SlotKey, excludeSlotID int64) ([]rules.Period, error)

	InterviewerSlot(ctx context.Context, id int64) (rules.InterviewerSlot, error)
	// InterviewerSlots lists slots in weeks [from, to]; to == 0 leaves the range open.
	InterviewerSlots(ctx context.Context, interviewerID string, from, to rules.WeekNumber) ([]rules.InterviewerSlot, error)
	CreateInterviewerSlot(ctx context.Context, s *rules.InterviewerSlot) error
	UpdateInterviewerSlot(ctx context.Context, s rules.InterviewerSlot) error
	DeleteInterviewerSlot(ctx context.Context, id int64) error

	CandidateSlot(ctx context.Context, id int64) (rules.CandidateSlot, error)
	CandidateSlots(ctx context.Context, candidateID string) ([]rules.CandidateSlot, error)
	CreateCandidateSlot(ctx context.Context, s *rules.CandidateSlot) error
	UpdateCandidateSlot(ctx context.Context, s rules.CandidateSlot) error
	DeleteCandidateSlot(ctx context.Context, id int64) error

	Booking(ctx context.Context, id int64) (rules.Booking, error)
	Bookings(ctx context.Context, f BookingFilter) ([]rules.Booking, error)
	CreateBooking(ctx context.Context, b *rules.Booking) error
	UpdateBooking(ctx context.Context, b rules.Booking) error
	DeleteBooking(ctx context.Context, id int64) error

	BookingCount(ctx context.Context, interviewerID string, week rules.WeekNumber) (int, error)
	// FindBookingLimit returns nil when no limit is recorded.
	FindBookingLimit(ctx context.Context, interviewerID string, week rules.WeekNumber) (*rules.BookingLimit, error)
	BookingLimits(ctx context.Context, week rules.WeekNumber) ([]rules.BookingLimit, error)
	SaveBookingLimit(ctx context.Context, l rules.BookingLimit) error

	FindWeekData(ctx context.Context, week rules.WeekNumber) (rules.WeekData, error)

	User(ctx context.Context, id string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	UsersWithRole(ctx context.Context, role rules.Role) ([]User, error)
	// SaveUser inserts u or updates the row with the same id.
	SaveUser(ctx context.Context, u User) error
	DeleteUser(ctx context.Context, id string) error
}

func slotLockKey(k rules.SlotKey) string {
	return "slot:" + string(k.Kind) + ":" + k.Owner + ":" + k.Week.String() + ":" + k.Day.String()
}

func userLockKey(email string) string {
	return "user:" + email
}

func bookingLockKey(interviewerID string, week rules.WeekNumber) string {
	return "bookings:" + interviewerID + ":" + week.String()
}
