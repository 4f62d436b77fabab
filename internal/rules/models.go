package rules

import "time"

type OwnerKind string

const (
	OwnerInterviewer OwnerKind = "interviewer"
	OwnerCandidate   OwnerKind = "candidate"
)

// SlotKey identifies the set of slots a new or edited slot must not overlap:
// one owner's slots on one day.
type SlotKey struct {
	Kind  OwnerKind
	Owner string
	Week  WeekNumber
	Day   time.Weekday
}

// Slot is implemented by InterviewerSlot and CandidateSlot.
type Slot interface {
	SlotID() int64
	Key(c Calendar) SlotKey
	Span() Period
}

type InterviewerSlot struct {
	ID            int64        `json:"id"`
	InterviewerID string       `json:"interviewer_id"`
	WeekNum       WeekNumber   `json:"week_num"`
	DayOfWeek     time.Weekday `json:"day_of_week"`
	Period
}

func (s InterviewerSlot) SlotID() int64 { return s.ID }
func (s InterviewerSlot) Span() Period  { return s.Period }

func (s InterviewerSlot) Key(Calendar) SlotKey {
	return SlotKey{Kind: OwnerInterviewer, Owner: s.InterviewerID, Week: s.WeekNum, Day: s.DayOfWeek}
}

type CandidateSlot struct {
	ID          int64     `json:"id"`
	CandidateID string    `json:"candidate_id"`
	Date        time.Time `json:"date"`
	Period
}

func (s CandidateSlot) SlotID() int64 { return s.ID }
func (s CandidateSlot) Span() Period  { return s.Period }

func (s CandidateSlot) Key(c Calendar) SlotKey {
	return SlotKey{Kind: OwnerCandidate, Owner: s.CandidateID, Week: c.WeekNumberOf(s.Date), Day: s.Date.Weekday()}
}

type Booking struct {
	ID                int64  `json:"id"`
	InterviewerSlotID int64  `json:"interviewer_slot_id"`
	CandidateSlotID   int64  `json:"candidate_slot_id"`
	Subject           string `json:"subject"`
	Description       string `json:"description,omitempty"`
	Period
}

type BookingLimit struct {
	InterviewerID string     `json:"interviewer_id"`
	WeekNum       WeekNumber `json:"week_num"`
	MaxBookings   int        `json:"booking_limit"`
}
