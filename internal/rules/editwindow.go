package rules

import (
	"strings"
	"time"
)

type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
	RoleCoordinator Role = "coordinator"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleInterviewer, RoleCandidate, RoleCoordinator:
		return r, true
	}
	return "", false
}

// CanEdit decides whether role may create, update or delete a slot in week at now.
//
// Nobody edits slots on weekends. Interviewers and candidates edit the next week
// only; coordinators may edit any existing week from the current one on.
func (c Calendar) CanEdit(role Role, week WeekNumber, now time.Time) error {
	if !week.Valid() {
		return newError(KindInvalidWeekNum, "week %d does not exist", int(week))
	}
	if today := c.Today(now).Weekday(); IsWeekend(today) {
		return newError(KindInvalidDayOfWeek, "cannot create or edit slots on %s", strings.ToLower(today.String()))
	}
	if role == RoleCoordinator {
		if current := c.CurrentWeekNumber(now); week < current {
			return newError(KindInvalidWeekNum, "cannot edit week %d before current week %d", int(week), int(current))
		}
		return nil
	}
	if next := c.NextWeekNumber(now); week != next {
		return newError(KindInvalidWeekNum, "cannot create or edit slots on week %d, only on week %d", int(week), int(next))
	}
	return nil
}

// ValidateSlotDay rejects slot days outside Monday..Friday.
func ValidateSlotDay(day time.Weekday) error {
	if IsWeekend(day) || day < time.Sunday || day > time.Saturday {
		return newError(KindInvalidDayOfWeek, "slots can only be placed Monday to Friday, got %s", day)
	}
	return nil
}
