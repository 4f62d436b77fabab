package app

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"interview-planner/internal/rules"
)

//go:embed schema.sql
var schemaSQL string

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore implements Store on Postgres.
type PGStore struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
	cal  rules.Calendar
}

func NewPGStore(pool *pgxpool.Pool, cal rules.Calendar) *PGStore {
	return &PGStore{pool: pool, q: pool, cal: cal}
}

// Migrate creates the tables if they do not exist yet.
func (s *PGStore) Migrate(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InTx takes a transaction-scoped advisory lock per key, in sorted order so two
// transactions locking overlapping key sets cannot deadlock.
func (s *PGStore) InTx(ctx context.Context, lockKeys []string, fn func(Store) error) error {
	keys := append([]string{}, lockKeys...)
	sort.Strings(keys)

	if s.inTx {
		if err := lockAll(ctx, s.q, keys); err != nil {
			return err
		}
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockAll(ctx, tx, keys); err != nil {
		return err
	}
	if err := fn(&PGStore{pool: s.pool, q: tx, inTx: true, cal: s.cal}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func lockAll(ctx context.Context, q querier, keys []string) error {
	var prev string
	for i, k := range keys {
		if i > 0 && k == prev {
			continue
		}
		prev = k
		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, k); err != nil {
			return fmt.Errorf("lock %s: %w", k, err)
		}
	}
	return nil
}

// retryable reports whether err is a conflict that a fresh attempt may not hit.
func retryable(err error) bool {
	if errors.Is(err, errLocksMoved) {
		return true
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "23505":
		return true
	}
	return false
}

func (s *PGStore) PeriodsForOwnerAndDay(ctx context.Context, key rules.SlotKey, excludeSlotID int64) ([]rules.Period, error) {
	var (
		rows pgx.Rows
		err  error
	)
	switch key.Kind {
	case rules.OwnerInterviewer:
		q := `SELECT from_minute, to_minute FROM interviewer_slots
		      WHERE interviewer_id=$1 AND week_num=$2 AND day_of_week=$3 AND id<>$4
		      ORDER BY from_minute, id`
		rows, err = s.q.Query(ctx, q, key.Owner, int(key.Week), int(key.Day), excludeSlotID)
	case rules.OwnerCandidate:
		date, derr := s.cal.DateOf(key.Week, key.Day)
		if derr != nil {
			return nil, derr
		}
		q := `SELECT from_minute, to_minute FROM candidate_slots
		      WHERE candidate_id=$1 AND slot_date=$2 AND id<>$3
		      ORDER BY from_minute, id`
		rows, err = s.q.Query(ctx, q, key.Owner, date, excludeSlotID)
	default:
		return nil, fmt.Errorf("unknown slot owner kind %q", key.Kind)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rules.Period
	for rows.Next() {
		var from, to int
		if err := rows.Scan(&from, &to); err != nil {
			return nil, err
		}
		out = append(out, rules.Period{From: rules.TimeOfDay(from), To: rules.TimeOfDay(to)})
	}
	return out, rows.Err()
}

// --- interviewer slots ---

const interviewerSlotCols = `id, interviewer_id, week_num, day_of_week, from_minute, to_minute`

func scanInterviewerSlot(row pgx.Row) (rules.InterviewerSlot, error) {
	var (
		sl             rules.InterviewerSlot
		week, day      int
		fromMin, toMin int
	)
	if err := row.Scan(&sl.ID, &sl.InterviewerID, &week, &day, &fromMin, &toMin); err != nil {
		return sl, err
	}
	sl.WeekNum = rules.WeekNumber(week)
	sl.DayOfWeek = time.Weekday(day)
	sl.Period = rules.Period{From: rules.TimeOfDay(fromMin), To: rules.TimeOfDay(toMin)}
	return sl, nil
}

func (s *PGStore) InterviewerSlot(ctx context.Context, id int64) (rules.InterviewerSlot, error) {
	q := `SELECT ` + interviewerSlotCols + ` FROM interviewer_slots WHERE id=$1`
	sl, err := scanInterviewerSlot(s.q.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return sl, fmt.Errorf("interviewer slot %d: %w", id, ErrNotFound)
	}
	return sl, err
}

func (s *PGStore) InterviewerSlots(ctx context.Context, interviewerID string, from, to rules.WeekNumber) ([]rules.InterviewerSlot, error) {
	q := `SELECT ` + interviewerSlotCols + ` FROM interviewer_slots
	      WHERE interviewer_id=$1 AND week_num>=$2 AND ($3=0 OR week_num<=$3)
	      ORDER BY week_num, day_of_week, from_minute, id`
	return s.queryInterviewerSlots(ctx, q, interviewerID, int(from), int(to))
}

func (s *PGStore) queryInterviewerSlots(ctx context.Context, q string, args ...any) ([]rules.InterviewerSlot, error) {
	rows, err := s.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rules.InterviewerSlot
	for rows.Next() {
		sl, err := scanInterviewerSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}

func (s *PGStore) CreateInterviewerSlot(ctx context.Context, sl *rules.InterviewerSlot) error {
	q := `INSERT INTO interviewer_slots (interviewer_id, week_num, day_of_week, from_minute, to_minute)
	      VALUES ($1,$2,$3,$4,$5) RETURNING id`
	return s.q.QueryRow(ctx, q, sl.InterviewerID, int(sl.WeekNum), int(sl.DayOfWeek), int(sl.From), int(sl.To)).Scan(&sl.ID)
}

func (s *PGStore) UpdateInterviewerSlot(ctx context.Context, sl rules.InterviewerSlot) error {
	q := `UPDATE interviewer_slots
	      SET week_num=$1, day_of_week=$2, from_minute=$3, to_minute=$4, updated_at=now()
	      WHERE id=$5`
	tag, err := s.q.Exec(ctx, q, int(sl.WeekNum), int(sl.DayOfWeek), int(sl.From), int(sl.To), sl.ID)
	return affected(tag, err, "interviewer slot", sl.ID)
}

func (s *PGStore) DeleteInterviewerSlot(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM interviewer_slots WHERE id=$1`, id)
	return affected(tag, err, "interviewer slot", id)
}

// --- candidate slots ---

const candidateSlotCols = `id, candidate_id, slot_date, from_minute, to_minute`

func scanCandidateSlot(row pgx.Row) (rules.CandidateSlot, error) {
	var (
		sl             rules.CandidateSlot
		fromMin, toMin int
	)
	if err := row.Scan(&sl.ID, &sl.CandidateID, &sl.Date, &fromMin, &toMin); err != nil {
		return sl, err
	}
	sl.Date = rules.CivilDate(sl.Date)
	sl.Period = rules.Period{From: rules.TimeOfDay(fromMin), To: rules.TimeOfDay(toMin)}
	return sl, nil
}

func (s *PGStore) CandidateSlot(ctx context.Context, id int64) (rules.CandidateSlot, error) {
	q := `SELECT ` + candidateSlotCols + ` FROM candidate_slots WHERE id=$1`
	sl, err := scanCandidateSlot(s.q.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return sl, fmt.Errorf("candidate slot %d: %w", id, ErrNotFound)
	}
	return sl, err
}

func (s *PGStore) CandidateSlots(ctx context.Context, candidateID string) ([]rules.CandidateSlot, error) {
	q := `SELECT ` + candidateSlotCols + ` FROM candidate_slots WHERE candidate_id=$1
	      ORDER BY slot_date, from_minute, id`
	return s.queryCandidateSlots(ctx, q, candidateID)
}

func (s *PGStore) queryCandidateSlots(ctx context.Context, q string, args ...any) ([]rules.CandidateSlot, error) {
	rows, err := s.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rules.CandidateSlot
	for rows.Next() {
		sl, err := scanCandidateSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}

func (s *PGStore) CreateCandidateSlot(ctx context.Context, sl *rules.CandidateSlot) error {
	q := `INSERT INTO candidate_slots (candidate_id, slot_date, from_minute, to_minute)
	      VALUES ($1,$2,$3,$4) RETURNING id`
	return s.q.QueryRow(ctx, q, sl.CandidateID, sl.Date, int(sl.From), int(sl.To)).Scan(&sl.ID)
}

func (s *PGStore) UpdateCandidateSlot(ctx context.Context, sl rules.CandidateSlot) error {
	q := `UPDATE candidate_slots SET slot_date=$1, from_minute=$2, to_minute=$3, updated_at=now()
	      WHERE id=$4`
	tag, err := s.q.Exec(ctx, q, sl.Date, int(sl.From), int(sl.To), sl.ID)
	return affected(tag, err, "candidate slot", sl.ID)
}

func (s *PGStore) DeleteCandidateSlot(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM candidate_slots WHERE id=$1`, id)
	return affected(tag, err, "candidate slot", id)
}

// --- bookings ---

const bookingCols = `b.id, b.interviewer_slot_id, b.candidate_slot_id, b.from_minute, b.to_minute, b.subject, b.description`

func scanBooking(row pgx.Row) (rules.Booking, error) {
	var (
		b              rules.Booking
		fromMin, toMin int
	)
	if err := row.Scan(&b.ID, &b.InterviewerSlotID, &b.CandidateSlotID, &fromMin, &toMin, &b.Subject, &b.Description); err != nil {
		return b, err
	}
	b.Period = rules.Period{From: rules.TimeOfDay(fromMin), To: rules.TimeOfDay(toMin)}
	return b, nil
}

func (s *PGStore) Booking(ctx context.Context, id int64) (rules.Booking, error) {
	q := `SELECT ` + bookingCols + ` FROM bookings b WHERE b.id=$1`
	b, err := scanBooking(s.q.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return b, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	return b, err
}

func (s *PGStore) Bookings(ctx context.Context, f BookingFilter) ([]rules.Booking, error) {
	q := `SELECT ` + bookingCols + ` FROM bookings b
	      WHERE b.interviewer_slot_id = ANY($1) OR b.candidate_slot_id = ANY($2)
	      ORDER BY b.from_minute, b.id`
	return s.queryBookings(ctx, q, f.InterviewerSlotIDs, f.CandidateSlotIDs)
}

func (s *PGStore) queryBookings(ctx context.Context, q string, args ...any) ([]rules.Booking, error) {
	rows, err := s.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rules.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PGStore) CreateBooking(ctx context.Context, b *rules.Booking) error {
	q := `INSERT INTO bookings (interviewer_slot_id, candidate_slot_id, from_minute, to_minute, subject, description)
	      VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`
	return s.q.QueryRow(ctx, q, b.InterviewerSlotID, b.CandidateSlotID, int(b.From), int(b.To), b.Subject, b.Description).Scan(&b.ID)
}

func (s *PGStore) UpdateBooking(ctx context.Context, b rules.Booking) error {
	q := `UPDATE bookings SET interviewer_slot_id=$1, candidate_slot_id=$2, from_minute=$3, to_minute=$4,
	      subject=$5, description=$6 WHERE id=$7`
	tag, err := s.q.Exec(ctx, q, b.InterviewerSlotID, b.CandidateSlotID, int(b.From), int(b.To), b.Subject, b.Description, b.ID)
	return affected(tag, err, "booking", b.ID)
}

func (s *PGStore) DeleteBooking(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM bookings WHERE id=$1`, id)
	return affected(tag, err, "booking", id)
}

// --- booking limits ---

func (s *PGStore) BookingCount(ctx context.Context, interviewerID string, week rules.WeekNumber) (int, error) {
	q := `SELECT count(*) FROM bookings b
	      JOIN interviewer_slots s ON s.id = b.interviewer_slot_id
	      WHERE s.interviewer_id=$1 AND s.week_num=$2`
	var n int
	err := s.q.QueryRow(ctx, q, interviewerID, int(week)).Scan(&n)
	return n, err
}

func (s *PGStore) FindBookingLimit(ctx context.Context, interviewerID string, week rules.WeekNumber) (*rules.BookingLimit, error) {
	q := `SELECT max_bookings FROM booking_limits WHERE interviewer_id=$1 AND week_num=$2`
	l := rules.BookingLimit{InterviewerID: interviewerID, WeekNum: week}
	err := s.q.QueryRow(ctx, q, interviewerID, int(week)).Scan(&l.MaxBookings)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *PGStore) BookingLimits(ctx context.Context, week rules.WeekNumber) ([]rules.BookingLimit, error) {
	q := `SELECT interviewer_id, max_bookings FROM booking_limits WHERE week_num=$1 ORDER BY interviewer_id`
	rows, err := s.q.Query(ctx, q, int(week))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rules.BookingLimit
	for rows.Next() {
		l := rules.BookingLimit{WeekNum: week}
		if err := rows.Scan(&l.InterviewerID, &l.MaxBookings); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PGStore) SaveBookingLimit(ctx context.Context, l rules.BookingLimit) error {
	q := `INSERT INTO booking_limits (interviewer_id, week_num, max_bookings)
	      VALUES ($1,$2,$3)
	      ON CONFLICT (interviewer_id, week_num)
	      DO UPDATE SET max_bookings=EXCLUDED.max_bookings, updated_at=now()`
	_, err := s.q.Exec(ctx, q, l.InterviewerID, int(l.WeekNum), l.MaxBookings)
	return err
}

// --- dashboard ---

func (s *PGStore) FindWeekData(ctx context.Context, week rules.WeekNumber) (rules.WeekData, error) {
	var data rules.WeekData
	monday, err := s.cal.DateOf(week, time.Monday)
	if err != nil {
		return data, err
	}
	friday := monday.AddDate(0, 0, 4)

	q := `SELECT ` + interviewerSlotCols + ` FROM interviewer_slots WHERE week_num=$1 ORDER BY id`
	if data.InterviewerSlots, err = s.queryInterviewerSlots(ctx, q, int(week)); err != nil {
		return data, err
	}
	q = `SELECT ` + candidateSlotCols + ` FROM candidate_slots WHERE slot_date BETWEEN $1 AND $2 ORDER BY id`
	if data.CandidateSlots, err = s.queryCandidateSlots(ctx, q, monday, friday); err != nil {
		return data, err
	}
	q = `SELECT ` + bookingCols + ` FROM bookings b
	     JOIN interviewer_slots s ON s.id = b.interviewer_slot_id
	     WHERE s.week_num=$1 ORDER BY b.id`
	if data.Bookings, err = s.queryBookings(ctx, q, int(week)); err != nil {
		return data, err
	}
	return data, nil
}

// --- users ---

const userCols = `id, email, role`

func scanUser(row pgx.Row) (User, error) {
	var (
		u    User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &role); err != nil {
		return u, err
	}
	u.Role = rules.Role(role)
	return u, nil
}

func (s *PGStore) findUser(ctx context.Context, q, what string, arg any) (User, error) {
	u, err := scanUser(s.q.QueryRow(ctx, q, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return u, fmt.Errorf("user %s %v: %w", what, arg, ErrNotFound)
	}
	return u, err
}

func (s *PGStore) User(ctx context.Context, id string) (User, error) {
	return s.findUser(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, "id", id)
}

func (s *PGStore) UserByEmail(ctx context.Context, email string) (User, error) {
	return s.findUser(ctx, `SELECT `+userCols+` FROM users WHERE email=$1`, "email", email)
}

func (s *PGStore) UsersWithRole(ctx context.Context, role rules.Role) ([]User, error) {
	rows, err := s.q.Query(ctx, `SELECT `+userCols+` FROM users WHERE role=$1 ORDER BY email`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PGStore) SaveUser(ctx context.Context, u User) error {
	q := `INSERT INTO users (id, email, role) VALUES ($1,$2,$3)
	      ON CONFLICT (id) DO UPDATE SET email=EXCLUDED.email, role=EXCLUDED.role, updated_at=now()`
	_, err := s.q.Exec(ctx, q, u.ID, u.Email, string(u.Role))
	return err
}

func (s *PGStore) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return nil
}

func affected(tag pgconn.CommandTag, err error, what string, id int64) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}
