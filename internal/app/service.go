package app

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"time"

	"go.uber.org/zap"

	"interview-planner/internal/rules"
)

// App holds the planner's dependencies. Handlers and use cases hang off it.
type App struct {
	Store    Store
	Cache    DashboardCache // nil disables dashboard caching
	Calendar rules.Calendar
	Limits   rules.LimitPolicy
	Log      *zap.Logger
	Google   *GoogleCalendarConfig // nil when calendar export is not configured
	Now      func() time.Time
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Principal is the authenticated caller. Static principals come from configured
// tokens and skip the user table.
type Principal struct {
	ID     string     `json:"id"`
	Role   rules.Role `json:"role"`
	Email  string     `json:"email,omitempty"`
	Static bool       `json:"-"`
}

func (p Principal) IsCoordinator() bool { return p.Role == rules.RoleCoordinator }

// actsFor reports whether p may manage resources owned by ownerID in role.
func (p Principal) actsFor(role rules.Role, ownerID string) bool {
	return p.IsCoordinator() || (p.Role == role && p.ID == ownerID)
}

// errLocksMoved is returned when the rows lock keys were derived from changed
// before the locks were held.
var errLocksMoved = &Error{Status: http.StatusConflict, Code: "conflict", Message: "the slots changed concurrently, try again"}

// withRetry runs fn in a locked transaction and retries once on a serialization
// failure, deadlock or unique violation.
func (a *App) withRetry(ctx context.Context, keys []string, fn func(Store) error) error {
	return a.withLocks(ctx, func(Store) ([]string, error) { return keys, nil }, fn)
}

// withLocks derives lock keys from the current rows, then derives them again once
// the locks are held. If they differ fn does not run and the attempt counts as a
// retryable conflict.
func (a *App) withLocks(ctx context.Context, keysOf func(Store) ([]string, error), fn func(Store) error) error {
	var keys []string
	run := func() error {
		var err error
		if keys, err = keysOf(a.Store); err != nil {
			return err
		}
		return a.Store.InTx(ctx, keys, func(st Store) error {
			held, err := keysOf(st)
			if err != nil {
				return err
			}
			if !sameKeys(keys, held) {
				return errLocksMoved
			}
			return fn(st)
		})
	}
	err := run()
	if err != nil && retryable(err) {
		a.Log.Warn("retrying transaction", zap.Strings("locks", keys), zap.Error(err))
		err = run()
	}
	return err
}

func sameKeys(a, b []string) bool {
	norm := func(keys []string) []string {
		out := slices.Clone(keys)
		slices.Sort(out)
		return slices.Compact(out)
	}
	return slices.Equal(norm(a), norm(b))
}

func (a *App) invalidate(ctx context.Context, weeks ...rules.WeekNumber) {
	if a.Cache == nil {
		return
	}
	if err := a.Cache.Invalidate(ctx, weeks...); err != nil {
		a.Log.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

// ValidateSlotForCreateOrUpdate runs every check a slot must pass before it is
// written: period shape, weekday, edit window for role and overlap with the
// owner's other slots that day.
func (a *App) ValidateSlotForCreateOrUpdate(ctx context.Context, slot rules.Slot, role rules.Role, now time.Time) error {
	return a.validateSlot(ctx, a.Store, slot, role, now)
}

func (a *App) validateSlot(ctx context.Context, st Store, slot rules.Slot, role rules.Role, now time.Time) error {
	key := slot.Key(a.Calendar)
	if err := rules.ValidatePeriod(slot.Span()); err != nil {
		return err
	}
	if err := rules.ValidateSlotDay(key.Day); err != nil {
		return err
	}
	if err := a.Calendar.CanEdit(role, key.Week, now); err != nil {
		return err
	}
	existing, err := st.PeriodsForOwnerAndDay(ctx, key, slot.SlotID())
	if err != nil {
		return fmt.Errorf("load periods for %s: %w", slotLockKey(key), err)
	}
	return rules.ValidateNoOverlap(slot.Span(), existing)
}

// ValidateBookingLimitChange checks that newLimit may be recorded for the interviewer's week.
func (a *App) ValidateBookingLimitChange(ctx context.Context, interviewerID string, week rules.WeekNumber, newLimit int, now time.Time) error {
	return a.validateLimitChange(ctx, a.Store, interviewerID, week, newLimit, now)
}

func (a *App) validateLimitChange(ctx context.Context, st Store, interviewerID string, week rules.WeekNumber, newLimit int, now time.Time) error {
	count, err := st.BookingCount(ctx, interviewerID, week)
	if err != nil {
		return fmt.Errorf("count bookings: %w", err)
	}
	return a.Limits.ValidateLimitChange(week, newLimit, count, now)
}

// CheckBookingAllowed fails when the interviewer has no booking capacity left in week.
func (a *App) CheckBookingAllowed(ctx context.Context, interviewerID string, week rules.WeekNumber) error {
	return a.checkBookingAllowed(ctx, a.Store, interviewerID, week)
}

func (a *App) checkBookingAllowed(ctx context.Context, st Store, interviewerID string, week rules.WeekNumber) error {
	count, err := st.BookingCount(ctx, interviewerID, week)
	if err != nil {
		return fmt.Errorf("count bookings: %w", err)
	}
	limit, err := st.FindBookingLimit(ctx, interviewerID, week)
	if err != nil {
		return fmt.Errorf("find booking limit: %w", err)
	}
	return a.Limits.CheckCanBook(count, limit)
}

// GetWeekDashboard returns Monday..Friday of week with every slot and booking,
// served from the cache when one is configured.
func (a *App) GetWeekDashboard(ctx context.Context, week rules.WeekNumber) ([5]rules.DayDashboard, error) {
	if !week.Valid() {
		_, err := a.Calendar.DateOf(week, time.Monday)
		return [5]rules.DayDashboard{}, err
	}
	var version int64
	if a.Cache != nil {
		days, v, ok, err := a.Cache.Get(ctx, week)
		if err != nil {
			a.Log.Warn("dashboard cache read failed", zap.Stringer("week", week), zap.Error(err))
		} else if ok {
			return days, nil
		}
		version = v
	}

	data, err := a.Store.FindWeekData(ctx, week)
	if err != nil {
		return [5]rules.DayDashboard{}, fmt.Errorf("load week %s: %w", week, err)
	}
	days, err := rules.BuildWeekDashboard(a.Calendar, week, data)
	if err != nil {
		return days, err
	}
	if a.Cache != nil {
		if err := a.Cache.Set(ctx, week, version, days); err != nil {
			a.Log.Warn("dashboard cache write failed", zap.Stringer("week", week), zap.Error(err))
		}
	}
	return days, nil
}

// --- interviewer slots ---

func (a *App) CreateInterviewerSlot(ctx context.Context, p Principal, slot rules.InterviewerSlot) (rules.InterviewerSlot, error) {
	if !p.actsFor(rules.RoleInterviewer, slot.InterviewerID) {
		return slot, forbidden("cannot manage slots of another interviewer")
	}
	slot.ID = 0
	now := a.now()
	key := slot.Key(a.Calendar)
	err := a.withRetry(ctx, []string{slotLockKey(key)}, func(st Store) error {
		if err := a.ensureInterviewer(ctx, st, p, slot.InterviewerID); err != nil {
			return err
		}
		if err := a.validateSlot(ctx, st, slot, p.Role, now); err != nil {
			return err
		}
		return st.CreateInterviewerSlot(ctx, &slot)
	})
	if err != nil {
		return slot, err
	}
	a.invalidate(ctx, slot.WeekNum)
	a.Log.Info("interviewer slot created",
		zap.Int64("slot_id", slot.ID),
		zap.String("interviewer_id", slot.InterviewerID),
		zap.Stringer("week", slot.WeekNum),
		zap.Stringer("period", slot.Period),
	)
	return slot, nil
}

// UpdateInterviewerSlot moves or resizes a slot. A slot holding bookings keeps
// its day and must keep covering every booking.
func (a *App) UpdateInterviewerSlot(ctx context.Context, p Principal, slot rules.InterviewerSlot) (rules.InterviewerSlot, error) {
	old, err := a.Store.InterviewerSlot(ctx, slot.ID)
	if err != nil {
		return slot, err
	}
	if old.InterviewerID != slot.InterviewerID || !p.actsFor(rules.RoleInterviewer, old.InterviewerID) {
		return slot, forbidden("cannot manage slots of another interviewer")
	}
	now := a.now()
	if err := a.Calendar.CanEdit(p.Role, old.WeekNum, now); err != nil {
		return slot, err
	}

	keys := []string{slotLockKey(old.Key(a.Calendar)), slotLockKey(slot.Key(a.Calendar))}
	err = a.withRetry(ctx, keys, func(st Store) error {
		if err := a.validateSlot(ctx, st, slot, p.Role, now); err != nil {
			return err
		}
		bookings, err := st.Bookings(ctx, BookingFilter{InterviewerSlotIDs: []int64{slot.ID}})
		if err != nil {
			return err
		}
		if len(bookings) > 0 {
			if slot.WeekNum != old.WeekNum || slot.DayOfWeek != old.DayOfWeek {
				return rules.Errorf(rules.KindSlotHasBooking, "slot %d has %d bookings and cannot move to another day", slot.ID, len(bookings))
			}
			if err := ensureCovers(slot.ID, slot.Period, bookings); err != nil {
				return err
			}
		}
		return st.UpdateInterviewerSlot(ctx, slot)
	})
	if err != nil {
		return slot, err
	}
	a.invalidate(ctx, old.WeekNum, slot.WeekNum)
	return slot, nil
}

// DeleteInterviewerSlot removes a slot. Interviewers cannot remove a booked slot;
// a coordinator removing it removes its bookings too.
func (a *App) DeleteInterviewerSlot(ctx context.Context, p Principal, interviewerID string, id int64) error {
	slot, err := a.Store.InterviewerSlot(ctx, id)
	if err != nil {
		return err
	}
	if slot.InterviewerID != interviewerID || !p.actsFor(rules.RoleInterviewer, interviewerID) {
		return forbidden("cannot manage slots of another interviewer")
	}
	if err := a.Calendar.CanEdit(p.Role, slot.WeekNum, a.now()); err != nil {
		return err
	}
	keys := []string{slotLockKey(slot.Key(a.Calendar)), bookingLockKey(slot.InterviewerID, slot.WeekNum)}
	err = a.withRetry(ctx, keys, func(st Store) error {
		if !p.IsCoordinator() {
			bookings, err := st.Bookings(ctx, BookingFilter{InterviewerSlotIDs: []int64{id}})
			if err != nil {
				return err
			}
			if len(bookings) > 0 {
				return rules.Errorf(rules.KindSlotHasBooking, "slot %d has %d bookings", id, len(bookings))
			}
		}
		return st.DeleteInterviewerSlot(ctx, id)
	})
	if err != nil {
		return err
	}
	a.invalidate(ctx, slot.WeekNum)
	a.Log.Info("interviewer slot deleted", zap.Int64("slot_id", id), zap.String("by", p.ID))
	return nil
}

// InterviewerSlots lists an interviewer's slots in weeks [from, to] (to == 0 for
// no upper bound), ordered by week, day and start, each with its booking ids.
func (a *App) InterviewerSlots(ctx context.Context, interviewerID string, from, to rules.WeekNumber) ([]rules.InterviewerSlotView, error) {
	slots, err := a.Store.InterviewerSlots(ctx, interviewerID, from, to)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(slots))
	for _, s := range slots {
		ids = append(ids, s.ID)
	}
	bookings, err := a.Store.Bookings(ctx, BookingFilter{InterviewerSlotIDs: ids})
	if err != nil {
		return nil, err
	}
	bySlot := make(map[int64][]int64)
	for _, b := range bookings {
		bySlot[b.InterviewerSlotID] = append(bySlot[b.InterviewerSlotID], b.ID)
	}

	out := make([]rules.InterviewerSlotView, 0, len(slots))
	for _, s := range slots {
		out = append(out, rules.InterviewerSlotView{InterviewerSlot: s, BookingIDs: sortIDs(bySlot[s.ID])})
	}
	sort.SliceStable(out, func(i, j int) bool {
		x, y := out[i], out[j]
		if x.WeekNum != y.WeekNum {
			return x.WeekNum < y.WeekNum
		}
		if x.DayOfWeek != y.DayOfWeek {
			return x.DayOfWeek < y.DayOfWeek
		}
		return x.From < y.From
	})
	return out, nil
}

// --- candidate slots ---

func (a *App) CreateCandidateSlot(ctx context.Context, p Principal, slot rules.CandidateSlot) (rules.CandidateSlot, error) {
	if !p.actsFor(rules.RoleCandidate, slot.CandidateID) {
		return slot, forbidden("cannot manage slots of another candidate")
	}
	slot.ID = 0
	slot.Date = rules.CivilDate(slot.Date)
	now := a.now()
	err := a.withRetry(ctx, []string{slotLockKey(slot.Key(a.Calendar))}, func(st Store) error {
		if err := a.validateSlot(ctx, st, slot, p.Role, now); err != nil {
			return err
		}
		return st.CreateCandidateSlot(ctx, &slot)
	})
	if err != nil {
		return slot, err
	}
	a.invalidate(ctx, a.Calendar.WeekNumberOf(slot.Date))
	a.Log.Info("candidate slot created",
		zap.Int64("slot_id", slot.ID),
		zap.String("candidate_id", slot.CandidateID),
		zap.Time("date", slot.Date),
		zap.Stringer("period", slot.Period),
	)
	return slot, nil
}

func (a *App) UpdateCandidateSlot(ctx context.Context, p Principal, slot rules.CandidateSlot) (rules.CandidateSlot, error) {
	old, err := a.Store.CandidateSlot(ctx, slot.ID)
	if err != nil {
		return slot, err
	}
	if old.CandidateID != slot.CandidateID || !p.actsFor(rules.RoleCandidate, old.CandidateID) {
		return slot, forbidden("cannot manage slots of another candidate")
	}
	slot.Date = rules.CivilDate(slot.Date)
	now := a.now()
	oldWeek := a.Calendar.WeekNumberOf(old.Date)
	if err := a.Calendar.CanEdit(p.Role, oldWeek, now); err != nil {
		return slot, err
	}

	keys := []string{slotLockKey(old.Key(a.Calendar)), slotLockKey(slot.Key(a.Calendar))}
	err = a.withRetry(ctx, keys, func(st Store) error {
		if err := a.validateSlot(ctx, st, slot, p.Role, now); err != nil {
			return err
		}
		bookings, err := st.Bookings(ctx, BookingFilter{CandidateSlotIDs: []int64{slot.ID}})
		if err != nil {
			return err
		}
		if len(bookings) > 0 {
			if !slot.Date.Equal(old.Date) {
				return rules.Errorf(rules.KindSlotHasBooking, "slot %d has %d bookings and cannot move to another day", slot.ID, len(bookings))
			}
			if err := ensureCovers(slot.ID, slot.Period, bookings); err != nil {
				return err
			}
		}
		return st.UpdateCandidateSlot(ctx, slot)
	})
	if err != nil {
		return slot, err
	}
	a.invalidate(ctx, oldWeek, a.Calendar.WeekNumberOf(slot.Date))
	return slot, nil
}

func (a *App) DeleteCandidateSlot(ctx context.Context, p Principal, candidateID string, id int64) error {
	slot, err := a.Store.CandidateSlot(ctx, id)
	if err != nil {
		return err
	}
	if slot.CandidateID != candidateID || !p.actsFor(rules.RoleCandidate, candidateID) {
		return forbidden("cannot manage slots of another candidate")
	}
	week := a.Calendar.WeekNumberOf(slot.Date)
	if err := a.Calendar.CanEdit(p.Role, week, a.now()); err != nil {
		return err
	}
	err = a.withRetry(ctx, []string{slotLockKey(slot.Key(a.Calendar))}, func(st Store) error {
		if !p.IsCoordinator() {
			bookings, err := st.Bookings(ctx, BookingFilter{CandidateSlotIDs: []int64{id}})
			if err != nil {
				return err
			}
			if len(bookings) > 0 {
				return rules.Errorf(rules.KindSlotHasBooking, "slot %d has %d bookings", id, len(bookings))
			}
		}
		return st.DeleteCandidateSlot(ctx, id)
	})
	if err != nil {
		return err
	}
	a.invalidate(ctx, week)
	return nil
}

// CandidateSlots lists a candidate's slots by date then start, each with its booking ids.
func (a *App) CandidateSlots(ctx context.Context, candidateID string) ([]rules.CandidateSlotView, error) {
	slots, err := a.Store.CandidateSlots(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(slots))
	for _, s := range slots {
		ids = append(ids, s.ID)
	}
	bookings, err := a.Store.Bookings(ctx, BookingFilter{CandidateSlotIDs: ids})
	if err != nil {
		return nil, err
	}
	bySlot := make(map[int64][]int64)
	for _, b := range bookings {
		bySlot[b.CandidateSlotID] = append(bySlot[b.CandidateSlotID], b.ID)
	}

	out := make([]rules.CandidateSlotView, 0, len(slots))
	for _, s := range slots {
		out = append(out, rules.CandidateSlotView{CandidateSlot: s, BookingIDs: sortIDs(bySlot[s.ID])})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].From < out[j].From
	})
	return out, nil
}

// --- bookings ---

// bookingParents loads the two slots a booking joins.
func bookingParents(ctx context.Context, st Store, b rules.Booking) (rules.InterviewerSlot, rules.CandidateSlot, error) {
	is, err := st.InterviewerSlot(ctx, b.InterviewerSlotID)
	if err != nil {
		return is, rules.CandidateSlot{}, err
	}
	cs, err := st.CandidateSlot(ctx, b.CandidateSlotID)
	return is, cs, err
}

func (a *App) bookingLocks(is rules.InterviewerSlot, cs rules.CandidateSlot) []string {
	return []string{
		slotLockKey(is.Key(a.Calendar)),
		slotLockKey(cs.Key(a.Calendar)),
		bookingLockKey(is.InterviewerID, is.WeekNum),
	}
}

// validateBooking checks the booking against its parents and their other bookings.
func (a *App) validateBooking(ctx context.Context, st Store, b rules.Booking, is rules.InterviewerSlot, cs rules.CandidateSlot) error {
	if err := rules.ValidatePeriod(b.Period); err != nil {
		return err
	}
	date, err := a.Calendar.DateOf(is.WeekNum, is.DayOfWeek)
	if err != nil {
		return err
	}
	if !date.Equal(rules.CivilDate(cs.Date)) {
		return rules.Errorf(rules.KindSlotDateMismatch,
			"interviewer slot %d is on %s, candidate slot %d is on %s",
			is.ID, date.Format(time.DateOnly), cs.ID, cs.Date.Format(time.DateOnly))
	}
	if !is.Period.Contains(b.Period) {
		return rules.Errorf(rules.KindBookingOutOfSlot, "booking %s is outside interviewer slot %s", b.Period, is.Period)
	}
	if !cs.Period.Contains(b.Period) {
		return rules.Errorf(rules.KindBookingOutOfSlot, "booking %s is outside candidate slot %s", b.Period, cs.Period)
	}

	others, err := st.Bookings(ctx, BookingFilter{
		InterviewerSlotIDs: []int64{is.ID},
		CandidateSlotIDs:   []int64{cs.ID},
	})
	if err != nil {
		return err
	}
	periods := make([]rules.Period, 0, len(others))
	for _, o := range others {
		if o.ID != b.ID {
			periods = append(periods, o.Period)
		}
	}
	return rules.ValidateNoOverlap(b.Period, periods)
}

func (a *App) CreateBooking(ctx context.Context, p Principal, b rules.Booking) (rules.Booking, error) {
	if !p.IsCoordinator() {
		return b, forbidden("only coordinators can book interviews")
	}
	b.ID = 0
	now := a.now()
	var (
		is rules.InterviewerSlot
		cs rules.CandidateSlot
	)
	keysOf := func(st Store) ([]string, error) {
		is, cs, err := bookingParents(ctx, st, b)
		if err != nil {
			return nil, err
		}
		return a.bookingLocks(is, cs), nil
	}
	err := a.withLocks(ctx, keysOf, func(st Store) error {
		var err error
		if is, cs, err = bookingParents(ctx, st, b); err != nil {
			return err
		}
		if err := a.Calendar.CanEdit(p.Role, is.WeekNum, now); err != nil {
			return err
		}
		if err := a.validateBooking(ctx, st, b, is, cs); err != nil {
			return err
		}
		if err := a.checkBookingAllowed(ctx, st, is.InterviewerID, is.WeekNum); err != nil {
			return err
		}
		return st.CreateBooking(ctx, &b)
	})
	if err != nil {
		return b, err
	}
	a.invalidate(ctx, is.WeekNum)
	a.Log.Info("booking created",
		zap.Int64("booking_id", b.ID),
		zap.String("interviewer_id", is.InterviewerID),
		zap.String("candidate_id", cs.CandidateID),
		zap.Stringer("week", is.WeekNum),
		zap.Stringer("period", b.Period),
	)
	return b, nil
}

// UpdateBooking replaces a booking. Moving it to another interviewer or week
// counts against that week's limit.
func (a *App) UpdateBooking(ctx context.Context, p Principal, b rules.Booking) (rules.Booking, error) {
	if !p.IsCoordinator() {
		return b, forbidden("only coordinators can book interviews")
	}
	now := a.now()
	var oldIS, is rules.InterviewerSlot
	keysOf := func(st Store) ([]string, error) {
		old, err := st.Booking(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		oldIS, oldCS, err := bookingParents(ctx, st, old)
		if err != nil {
			return nil, err
		}
		is, cs, err := bookingParents(ctx, st, b)
		if err != nil {
			return nil, err
		}
		return append(a.bookingLocks(oldIS, oldCS), a.bookingLocks(is, cs)...), nil
	}
	err := a.withLocks(ctx, keysOf, func(st Store) error {
		old, err := st.Booking(ctx, b.ID)
		if err != nil {
			return err
		}
		if oldIS, err = st.InterviewerSlot(ctx, old.InterviewerSlotID); err != nil {
			return err
		}
		var cs rules.CandidateSlot
		if is, cs, err = bookingParents(ctx, st, b); err != nil {
			return err
		}
		if err := a.Calendar.CanEdit(p.Role, oldIS.WeekNum, now); err != nil {
			return err
		}
		if err := a.Calendar.CanEdit(p.Role, is.WeekNum, now); err != nil {
			return err
		}
		if err := a.validateBooking(ctx, st, b, is, cs); err != nil {
			return err
		}
		if is.InterviewerID != oldIS.InterviewerID || is.WeekNum != oldIS.WeekNum {
			if err := a.checkBookingAllowed(ctx, st, is.InterviewerID, is.WeekNum); err != nil {
				return err
			}
		}
		return st.UpdateBooking(ctx, b)
	})
	if err != nil {
		return b, err
	}
	a.invalidate(ctx, oldIS.WeekNum, is.WeekNum)
	return b, nil
}

func (a *App) CancelBooking(ctx context.Context, p Principal, id int64) error {
	if !p.IsCoordinator() {
		return forbidden("only coordinators can cancel interviews")
	}
	now := a.now()
	var is rules.InterviewerSlot
	keysOf := func(st Store) ([]string, error) {
		b, err := st.Booking(ctx, id)
		if err != nil {
			return nil, err
		}
		is, cs, err := bookingParents(ctx, st, b)
		if err != nil {
			return nil, err
		}
		return a.bookingLocks(is, cs), nil
	}
	err := a.withLocks(ctx, keysOf, func(st Store) error {
		b, err := st.Booking(ctx, id)
		if err != nil {
			return err
		}
		if is, err = st.InterviewerSlot(ctx, b.InterviewerSlotID); err != nil {
			return err
		}
		if err := a.Calendar.CanEdit(p.Role, is.WeekNum, now); err != nil {
			return err
		}
		return st.DeleteBooking(ctx, id)
	})
	if err != nil {
		return err
	}
	a.invalidate(ctx, is.WeekNum)
	a.Log.Info("booking cancelled", zap.Int64("booking_id", id), zap.String("by", p.ID))
	return nil
}

// --- booking limits ---

// SetBookingLimit records the interviewer's cap for week. Only the next week can be set.
func (a *App) SetBookingLimit(ctx context.Context, p Principal, l rules.BookingLimit) (rules.BookingLimit, error) {
	if !p.actsFor(rules.RoleInterviewer, l.InterviewerID) {
		return l, forbidden("cannot set the booking limit of another interviewer")
	}
	now := a.now()
	err := a.withRetry(ctx, []string{bookingLockKey(l.InterviewerID, l.WeekNum)}, func(st Store) error {
		if err := a.ensureInterviewer(ctx, st, p, l.InterviewerID); err != nil {
			return err
		}
		if err := a.validateLimitChange(ctx, st, l.InterviewerID, l.WeekNum, l.MaxBookings, now); err != nil {
			return err
		}
		return st.SaveBookingLimit(ctx, l)
	})
	if err != nil {
		return l, err
	}
	a.Log.Info("booking limit set",
		zap.String("interviewer_id", l.InterviewerID),
		zap.Stringer("week", l.WeekNum),
		zap.Int("limit", l.MaxBookings),
	)
	return l, nil
}

// LimitStatus is an interviewer's effective cap for a week next to what is used.
type LimitStatus struct {
	InterviewerID string           `json:"interviewer_id"`
	WeekNum       rules.WeekNumber `json:"week_num"`
	MaxBookings   int              `json:"booking_limit"`
	Bookings      int              `json:"bookings"`
	IsDefault     bool             `json:"is_default"`
}

func (a *App) BookingLimit(ctx context.Context, interviewerID string, week rules.WeekNumber) (LimitStatus, error) {
	st := LimitStatus{InterviewerID: interviewerID, WeekNum: week}
	limit, err := a.Store.FindBookingLimit(ctx, interviewerID, week)
	if err != nil {
		return st, err
	}
	if st.Bookings, err = a.Store.BookingCount(ctx, interviewerID, week); err != nil {
		return st, err
	}
	st.MaxBookings = a.Limits.EffectiveLimit(limit)
	st.IsDefault = limit == nil
	return st, nil
}

func (a *App) BookingLimits(ctx context.Context, week rules.WeekNumber) ([]rules.BookingLimit, error) {
	return a.Store.BookingLimits(ctx, week)
}

func ensureCovers(slotID int64, span rules.Period, bookings []rules.Booking) error {
	for _, b := range bookings {
		if !span.Contains(b.Period) {
			return rules.Errorf(rules.KindSlotHasBooking, "slot %d would no longer cover booking %d at %s", slotID, b.ID, b.Period)
		}
	}
	return nil
}

func sortIDs(ids []int64) []int64 {
	out := append([]int64{}, ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
