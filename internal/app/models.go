package app

import (
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"interview-planner/internal/rules"
)

// weekday accepts a day as its number (1 = Monday) or its English name.
type weekday time.Weekday

func (d *weekday) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		n, nerr := strconv.Atoi(string(b))
		if nerr != nil {
			return rules.Errorf(rules.KindInvalidDayOfWeek, "unknown day of week %s", b)
		}
		*d = weekday(n)
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		*d = weekday(n)
		return nil
	}
	wd, err := rules.ParseWeekday(s)
	if err != nil {
		return err
	}
	*d = weekday(wd)
	return nil
}

type interviewerSlotReq struct {
	WeekNum   rules.WeekNumber `json:"week_num" binding:"required"`
	DayOfWeek weekday          `json:"day_of_week"`
	From      rules.TimeOfDay  `json:"from"`
	To        rules.TimeOfDay  `json:"to"`
}

func (r interviewerSlotReq) slot(id int64, interviewerID string) rules.InterviewerSlot {
	return rules.InterviewerSlot{
		ID:            id,
		InterviewerID: interviewerID,
		WeekNum:       r.WeekNum,
		DayOfWeek:     time.Weekday(r.DayOfWeek),
		Period:        rules.Period{From: r.From, To: r.To},
	}
}

type candidateSlotReq struct {
	Date string          `json:"date" binding:"required"` // YYYY-MM-DD
	From rules.TimeOfDay `json:"from"`
	To   rules.TimeOfDay `json:"to"`
}

func (r candidateSlotReq) slot(id int64, candidateID string) (rules.CandidateSlot, error) {
	date, err := time.Parse(time.DateOnly, r.Date)
	if err != nil {
		return rules.CandidateSlot{}, badRequest("date must be YYYY-MM-DD")
	}
	return rules.CandidateSlot{
		ID:          id,
		CandidateID: candidateID,
		Date:        date,
		Period:      rules.Period{From: r.From, To: r.To},
	}, nil
}

type bookingReq struct {
	InterviewerSlotID int64           `json:"interviewer_slot_id" binding:"required"`
	CandidateSlotID   int64           `json:"candidate_slot_id" binding:"required"`
	From              rules.TimeOfDay `json:"from"`
	To                rules.TimeOfDay `json:"to"`
	Subject           string          `json:"subject" binding:"max=255"`
	Description       string          `json:"description,omitempty" binding:"max=4000"`
}

func (r bookingReq) booking(id int64) rules.Booking {
	return rules.Booking{
		ID:                id,
		InterviewerSlotID: r.InterviewerSlotID,
		CandidateSlotID:   r.CandidateSlotID,
		Subject:           r.Subject,
		Description:       r.Description,
		Period:            rules.Period{From: r.From, To: r.To},
	}
}

type bookingLimitReq struct {
	WeekNum      rules.WeekNumber `json:"week_num" binding:"required"`
	BookingLimit *int             `json:"booking_limit" binding:"required"`
}

type grantRoleReq struct {
	Email string `json:"email" binding:"required,email,max=255"`
	ID    string `json:"id" binding:"omitempty,max=255"`
}

type weekResponse struct {
	WeekNum rules.WeekNumber `json:"week_num"`
	Label   string           `json:"label"`
}

func newWeekResponse(w rules.WeekNumber) weekResponse {
	return weekResponse{WeekNum: w, Label: w.String()}
}
