package app

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"interview-planner/internal/rules"
)

// memStore is an in-memory Store for tests. Deleting a slot removes its bookings
// the way the foreign keys do in Postgres.
type memStore struct {
	mu  sync.Mutex
	cal rules.Calendar

	nextID           int64
	interviewerSlots map[int64]rules.InterviewerSlot
	candidateSlots   map[int64]rules.CandidateSlot
	bookings         map[int64]rules.Booking
	limits           map[string]rules.BookingLimit
	users            map[string]User

	// txErrs are returned by successive InTx calls before fn runs.
	txErrs  []error
	txCalls int
	locks   [][]string
	pingErr error

	// beforeTx hooks run at the start of successive InTx calls, before any lock
	// is taken; onWeekData runs each time FindWeekData has read the week.
	beforeTx   []func()
	onWeekData func()
}

func newMemStore(cal rules.Calendar) *memStore {
	return &memStore{
		cal:              cal,
		interviewerSlots: map[int64]rules.InterviewerSlot{},
		candidateSlots:   map[int64]rules.CandidateSlot{},
		bookings:         map[int64]rules.Booking{},
		limits:           map[string]rules.BookingLimit{},
		users:            map[string]User{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func limitKey(interviewerID string, week rules.WeekNumber) string {
	return interviewerID + "/" + week.String()
}

func (m *memStore) InTx(ctx context.Context, lockKeys []string, fn func(Store) error) error {
	m.txCalls++
	m.locks = append(m.locks, lockKeys)
	if len(m.beforeTx) > 0 {
		hook := m.beforeTx[0]
		m.beforeTx = m.beforeTx[1:]
		hook()
	}
	if len(m.txErrs) > 0 {
		err := m.txErrs[0]
		m.txErrs = m.txErrs[1:]
		if err != nil {
			return err
		}
	}
	return fn(m)
}

func (m *memStore) Ping(ctx context.Context) error { return m.pingErr }

func (m *memStore) PeriodsForOwnerAndDay(ctx context.Context, key rules.SlotKey, excludeSlotID int64) ([]rules.Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	type row struct {
		id int64
		p  rules.Period
	}
	var rows []row
	switch key.Kind {
	case rules.OwnerInterviewer:
		for id, s := range m.interviewerSlots {
			if s.Key(m.cal) == key && id != excludeSlotID {
				rows = append(rows, row{id, s.Period})
			}
		}
	case rules.OwnerCandidate:
		for id, s := range m.candidateSlots {
			if s.Key(m.cal) == key && id != excludeSlotID {
				rows = append(rows, row{id, s.Period})
			}
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].id < rows[j].id })
	out := make([]rules.Period, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.p)
	}
	return out, nil
}

func (m *memStore) InterviewerSlot(ctx context.Context, id int64) (rules.InterviewerSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.interviewerSlots[id]
	if !ok {
		return s, fmt.Errorf("interviewer slot %d: %w", id, ErrNotFound)
	}
	return s, nil
}

func (m *memStore) InterviewerSlots(ctx context.Context, interviewerID string, from, to rules.WeekNumber) ([]rules.InterviewerSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []rules.InterviewerSlot
	for _, s := range m.interviewerSlots {
		if s.InterviewerID == interviewerID && s.WeekNum >= from && (to == 0 || s.WeekNum <= to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateInterviewerSlot(ctx context.Context, s *rules.InterviewerSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.id()
	m.interviewerSlots[s.ID] = *s
	return nil
}

func (m *memStore) UpdateInterviewerSlot(ctx context.Context, s rules.InterviewerSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.interviewerSlots[s.ID]; !ok {
		return fmt.Errorf("interviewer slot %d: %w", s.ID, ErrNotFound)
	}
	m.interviewerSlots[s.ID] = s
	return nil
}

func (m *memStore) DeleteInterviewerSlot(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.interviewerSlots[id]; !ok {
		return fmt.Errorf("interviewer slot %d: %w", id, ErrNotFound)
	}
	delete(m.interviewerSlots, id)
	for bid, b := range m.bookings {
		if b.InterviewerSlotID == id {
			delete(m.bookings, bid)
		}
	}
	return nil
}

func (m *memStore) CandidateSlot(ctx context.Context, id int64) (rules.CandidateSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.candidateSlots[id]
	if !ok {
		return s, fmt.Errorf("candidate slot %d: %w", id, ErrNotFound)
	}
	return s, nil
}

func (m *memStore) CandidateSlots(ctx context.Context, candidateID string) ([]rules.CandidateSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []rules.CandidateSlot
	for _, s := range m.candidateSlots {
		if s.CandidateID == candidateID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateCandidateSlot(ctx context.Context, s *rules.CandidateSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.id()
	m.candidateSlots[s.ID] = *s
	return nil
}

func (m *memStore) UpdateCandidateSlot(ctx context.Context, s rules.CandidateSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.candidateSlots[s.ID]; !ok {
		return fmt.Errorf("candidate slot %d: %w", s.ID, ErrNotFound)
	}
	m.candidateSlots[s.ID] = s
	return nil
}

func (m *memStore) DeleteCandidateSlot(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.candidateSlots[id]; !ok {
		return fmt.Errorf("candidate slot %d: %w", id, ErrNotFound)
	}
	delete(m.candidateSlots, id)
	for bid, b := range m.bookings {
		if b.CandidateSlotID == id {
			delete(m.bookings, bid)
		}
	}
	return nil
}

func (m *memStore) Booking(ctx context.Context, id int64) (rules.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return b, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	return b, nil
}

func (m *memStore) Bookings(ctx context.Context, f BookingFilter) ([]rules.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in := func(id int64, ids []int64) bool {
		for _, x := range ids {
			if x == id {
				return true
			}
		}
		return false
	}
	var out []rules.Booking
	for _, b := range m.bookings {
		if in(b.InterviewerSlotID, f.InterviewerSlotIDs) || in(b.CandidateSlotID, f.CandidateSlotIDs) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateBooking(ctx context.Context, b *rules.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = m.id()
	m.bookings[b.ID] = *b
	return nil
}

func (m *memStore) UpdateBooking(ctx context.Context, b rules.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[b.ID]; !ok {
		return fmt.Errorf("booking %d: %w", b.ID, ErrNotFound)
	}
	m.bookings[b.ID] = b
	return nil
}

func (m *memStore) DeleteBooking(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[id]; !ok {
		return fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	delete(m.bookings, id)
	return nil
}

func (m *memStore) BookingCount(ctx context.Context, interviewerID string, week rules.WeekNumber) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.bookings {
		s := m.interviewerSlots[b.InterviewerSlotID]
		if s.InterviewerID == interviewerID && s.WeekNum == week {
			n++
		}
	}
	return n, nil
}

func (m *memStore) FindBookingLimit(ctx context.Context, interviewerID string, week rules.WeekNumber) (*rules.BookingLimit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limits[limitKey(interviewerID, week)]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m *memStore) BookingLimits(ctx context.Context, week rules.WeekNumber) ([]rules.BookingLimit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []rules.BookingLimit
	for _, l := range m.limits {
		if l.WeekNum == week {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InterviewerID < out[j].InterviewerID })
	return out, nil
}

func (m *memStore) SaveBookingLimit(ctx context.Context, l rules.BookingLimit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits[limitKey(l.InterviewerID, l.WeekNum)] = l
	return nil
}

func (m *memStore) FindWeekData(ctx context.Context, week rules.WeekNumber) (rules.WeekData, error) {
	data := m.weekData(week)
	if m.onWeekData != nil {
		m.onWeekData()
	}
	return data, nil
}

func (m *memStore) weekData(week rules.WeekNumber) rules.WeekData {
	m.mu.Lock()
	defer m.mu.Unlock()
	var data rules.WeekData
	for _, s := range m.interviewerSlots {
		if s.WeekNum == week {
			data.InterviewerSlots = append(data.InterviewerSlots, s)
		}
	}
	for _, s := range m.candidateSlots {
		if m.cal.WeekNumberOf(s.Date) == week {
			data.CandidateSlots = append(data.CandidateSlots, s)
		}
	}
	for _, b := range m.bookings {
		if m.interviewerSlots[b.InterviewerSlotID].WeekNum == week {
			data.Bookings = append(data.Bookings, b)
		}
	}
	sort.Slice(data.InterviewerSlots, func(i, j int) bool { return data.InterviewerSlots[i].ID < data.InterviewerSlots[j].ID })
	sort.Slice(data.CandidateSlots, func(i, j int) bool { return data.CandidateSlots[i].ID < data.CandidateSlots[j].ID })
	sort.Slice(data.Bookings, func(i, j int) bool { return data.Bookings[i].ID < data.Bookings[j].ID })
	return data
}

func (m *memStore) User(ctx context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return u, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, nil
}

func (m *memStore) UserByEmail(ctx context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("user %s: %w", email, ErrNotFound)
}

func (m *memStore) UsersWithRole(ctx context.Context, role rules.Role) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []User
	for _, u := range m.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memStore) SaveUser(ctx context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *memStore) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	delete(m.users, id)
	return nil
}

// memCache is a DashboardCache backed by a map.
type memCache struct {
	days        map[rules.WeekNumber][5]rules.DayDashboard
	versions    map[rules.WeekNumber]int64
	invalidated []rules.WeekNumber
}

func newMemCache() *memCache {
	return &memCache{
		days:     map[rules.WeekNumber][5]rules.DayDashboard{},
		versions: map[rules.WeekNumber]int64{},
	}
}

func (c *memCache) Get(ctx context.Context, week rules.WeekNumber) ([5]rules.DayDashboard, int64, bool, error) {
	d, ok := c.days[week]
	return d, c.versions[week], ok, nil
}

func (c *memCache) Set(ctx context.Context, week rules.WeekNumber, version int64, days [5]rules.DayDashboard) error {
	if c.versions[week] != version {
		return nil
	}
	c.days[week] = days
	return nil
}

func (c *memCache) Invalidate(ctx context.Context, weeks ...rules.WeekNumber) error {
	for _, w := range weeks {
		delete(c.days, w)
		c.versions[w]++
		c.invalidated = append(c.invalidated, w)
	}
	return nil
}

var _ Store = (*memStore)(nil)
var _ DashboardCache = (*memCache)(nil)
