package rules

import (
	"sort"
	"time"
)

// WeekData is the raw material of a week dashboard as loaded from storage.
// It may hold rows from other weeks; they are ignored.
type WeekData struct {
	InterviewerSlots []InterviewerSlot
	CandidateSlots   []CandidateSlot
	Bookings         []Booking
}

type InterviewerSlotView struct {
	InterviewerSlot
	BookingIDs []int64 `json:"booking_ids"`
}

type CandidateSlotView struct {
	CandidateSlot
	BookingIDs []int64 `json:"booking_ids"`
}

type DayDashboard struct {
	DayOfWeek        time.Weekday          `json:"day_of_week"`
	Date             time.Time             `json:"date"`
	InterviewerSlots []InterviewerSlotView `json:"interviewer_slots"`
	CandidateSlots   []CandidateSlotView   `json:"candidate_slots"`
	Bookings         map[int64]Booking     `json:"bookings"`
}

// BuildWeekDashboard groups a week's slots and bookings into Monday..Friday.
// Within a day, slots are ordered by start time, keeping storage order on ties.
// A booking is placed on the day of its interviewer slot.
func BuildWeekDashboard(c Calendar, week WeekNumber, data WeekData) ([5]DayDashboard, error) {
	var days [5]DayDashboard
	index := make(map[time.Weekday]*DayDashboard, len(days))
	for i, wd := range Weekdays {
		date, err := c.DateOf(week, wd)
		if err != nil {
			return days, err
		}
		days[i] = DayDashboard{
			DayOfWeek:        wd,
			Date:             date,
			InterviewerSlots: []InterviewerSlotView{},
			CandidateSlots:   []CandidateSlotView{},
			Bookings:         map[int64]Booking{},
		}
		index[wd] = &days[i]
	}

	slotDay := make(map[int64]time.Weekday)
	byInterviewerSlot := make(map[int64][]int64)
	byCandidateSlot := make(map[int64][]int64)
	for _, s := range data.InterviewerSlots {
		if s.WeekNum == week {
			slotDay[s.ID] = s.DayOfWeek
		}
	}
	for _, b := range data.Bookings {
		wd, ok := slotDay[b.InterviewerSlotID]
		if !ok {
			continue
		}
		day, ok := index[wd]
		if !ok {
			continue
		}
		if _, dup := day.Bookings[b.ID]; dup {
			continue
		}
		day.Bookings[b.ID] = b
		byInterviewerSlot[b.InterviewerSlotID] = append(byInterviewerSlot[b.InterviewerSlotID], b.ID)
		byCandidateSlot[b.CandidateSlotID] = append(byCandidateSlot[b.CandidateSlotID], b.ID)
	}

	for _, s := range data.InterviewerSlots {
		if s.WeekNum != week {
			continue
		}
		if day, ok := index[s.DayOfWeek]; ok {
			day.InterviewerSlots = append(day.InterviewerSlots, InterviewerSlotView{
				InterviewerSlot: s,
				BookingIDs:      sortedIDs(byInterviewerSlot[s.ID]),
			})
		}
	}
	for _, s := range data.CandidateSlots {
		if c.WeekNumberOf(s.Date) != week {
			continue
		}
		if day, ok := index[s.Date.Weekday()]; ok {
			day.CandidateSlots = append(day.CandidateSlots, CandidateSlotView{
				CandidateSlot: s,
				BookingIDs:    sortedIDs(byCandidateSlot[s.ID]),
			})
		}
	}

	for i := range days {
		is := days[i].InterviewerSlots
		sort.SliceStable(is, func(a, b int) bool { return is[a].From < is[b].From })
		cs := days[i].CandidateSlots
		sort.SliceStable(cs, func(a, b int) bool { return cs[a].From < cs[b].From })
	}
	return days, nil
}

func sortedIDs(ids []int64) []int64 {
	out := append([]int64{}, ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
