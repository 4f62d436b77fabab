package app

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-planner/internal/rules"
)

const (
	coordToken = "coord-token"
	intToken   = "int-token"
	candToken  = "cand-token"
)

func newTestRouter(t *testing.T) (*gin.Engine, *fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	r := gin.New()
	r.Use(RequestID())
	f.app.Routes(r, AuthMiddleware(AuthConfig{StaticTokens: []string{
		coordToken,
		intToken + ":interviewer:int-1",
		candToken + ":candidate:cand-1",
	}}))
	return r, f
}

func do(r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthHandler(t *testing.T) {
	r, f := newTestRouter(t)
	w := do(r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	f.store.pingErr = errors.New("db down")
	w = do(r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWeekHandlers(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/weeks/next", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/api/weeks/next", candToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 202644, body["week_num"])
	assert.Equal(t, "2026-W44", body["label"])

	w = do(r, http.MethodGet, "/api/weeks/current", candToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 202643, decode(t, w)["week_num"])
}

func TestInterviewerSlotHandlers(t *testing.T) {
	r, f := newTestRouter(t)
	slot := gin.H{"week_num": 202644, "day_of_week": "monday", "from": "09:00", "to": "12:00"}

	w := do(r, http.MethodPost, "/api/interviewers/int-1/slots", intToken, slot)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, "09:00", created["from"])
	assert.EqualValues(t, 1, created["day_of_week"])
	id := int64(created["id"].(float64))

	t.Run("overlap is a conflict", func(t *testing.T) {
		w := do(r, http.MethodPost, "/api/interviewers/int-1/slots", intToken,
			gin.H{"week_num": 202644, "day_of_week": 1, "from": "11:00", "to": "13:00"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "period_overlap", decode(t, w)["code"])
	})

	t.Run("bad day name", func(t *testing.T) {
		w := do(r, http.MethodPost, "/api/interviewers/int-1/slots", intToken,
			gin.H{"week_num": 202644, "day_of_week": "funday", "from": "09:00", "to": "12:00"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_day_of_week", decode(t, w)["code"])
	})

	t.Run("current week is closed", func(t *testing.T) {
		w := do(r, http.MethodPost, "/api/interviewers/int-1/slots", intToken,
			gin.H{"week_num": 202643, "day_of_week": "tue", "from": "09:00", "to": "12:00"})
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		assert.Equal(t, "invalid_week_num", decode(t, w)["code"])
	})

	t.Run("candidates cannot use interviewer routes", func(t *testing.T) {
		w := do(r, http.MethodGet, "/api/interviewers/int-1/slots", candToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("another interviewer", func(t *testing.T) {
		w := do(r, http.MethodGet, "/api/interviewers/int-2/slots", intToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("listings", func(t *testing.T) {
		w := do(r, http.MethodGet, "/api/interviewers/int-1/slots", intToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var slots []map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &slots))
		require.Len(t, slots, 1)
		assert.Equal(t, []any{}, slots[0]["booking_ids"])

		w = do(r, http.MethodGet, "/api/interviewers/int-1/slots/weeks/next", coordToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode(t, w)["slots"], 1)

		w = do(r, http.MethodGet, "/api/interviewers/int-1/slots/weeks/current", intToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decode(t, w)["slots"])

		w = do(r, http.MethodGet, "/api/interviewers/int-1/slots/weeks/someday", intToken, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("update and delete", func(t *testing.T) {
		path := "/api/interviewers/int-1/slots/" + itoa(id)
		w := do(r, http.MethodPut, path, intToken, gin.H{"week_num": 202644, "day_of_week": "monday", "from": "10:00", "to": "13:00"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "10:00", decode(t, w)["from"])

		w = do(r, http.MethodDelete, path, intToken, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, f.store.interviewerSlots)

		w = do(r, http.MethodDelete, path, intToken, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = do(r, http.MethodDelete, "/api/interviewers/int-1/slots/abc", intToken, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBookingFlowHandlers(t *testing.T) {
	r, f := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/interviewers/int-1/slots", intToken,
		gin.H{"week_num": 202644, "day_of_week": "monday", "from": "10:00", "to": "16:00"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	isID := decode(t, w)["id"]

	w = do(r, http.MethodPost, "/api/candidates/current/slots", candToken, gin.H{"date": "2026-10-26", "from": "10:00", "to": "16:00"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	csID := decode(t, w)["id"]

	w = do(r, http.MethodPost, "/api/candidates/current/slots", candToken, gin.H{"date": "26/10/2026", "from": "10:00", "to": "16:00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	booking := gin.H{"interviewer_slot_id": isID, "candidate_slot_id": csID, "from": "10:00", "to": "11:30", "subject": "Go"}

	w = do(r, http.MethodPost, "/api/bookings", intToken, booking)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodPost, "/api/bookings", coordToken, booking)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bID := int64(decode(t, w)["id"].(float64))

	w = do(r, http.MethodPost, "/api/bookings", coordToken, booking)
	assert.Equal(t, http.StatusConflict, w.Code)

	t.Run("candidate sees booking ids", func(t *testing.T) {
		w := do(r, http.MethodGet, "/api/candidates/current/slots", candToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var slots []map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &slots))
		require.Len(t, slots, 1)
		assert.Equal(t, []any{float64(bID)}, slots[0]["booking_ids"])
	})

	t.Run("booked slot cannot be deleted by its interviewer", func(t *testing.T) {
		w := do(r, http.MethodDelete, "/api/interviewers/int-1/slots/"+itoa(int64(isID.(float64))), intToken, nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "slot_has_booking", decode(t, w)["code"])
	})

	t.Run("limit below current bookings", func(t *testing.T) {
		w := do(r, http.MethodPost, "/api/interviewers/int-1/booking-limits", intToken, gin.H{"week_num": 202644, "booking_limit": 0})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_booking_limit", decode(t, w)["code"])

		w = do(r, http.MethodPost, "/api/interviewers/int-1/booking-limits", intToken, gin.H{"week_num": 202644})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = do(r, http.MethodPost, "/api/interviewers/int-1/booking-limits", intToken, gin.H{"week_num": 202644, "booking_limit": 1})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = do(r, http.MethodGet, "/api/interviewers/int-1/booking-limits/202644", intToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.EqualValues(t, 1, body["booking_limit"])
		assert.EqualValues(t, 1, body["bookings"])

		w = do(r, http.MethodGet, "/api/booking-limits/2026-W44", coordToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var limits []map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &limits))
		assert.Len(t, limits, 1)

		w = do(r, http.MethodGet, "/api/booking-limits/2026-W44", intToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("dashboard", func(t *testing.T) {
		w := do(r, http.MethodGet, "/api/weeks/202644/dashboard", intToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = do(r, http.MethodGet, "/api/weeks/202644/dashboard", coordToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		days := decode(t, w)["days"].([]any)
		require.Len(t, days, 5)
		monday := days[0].(map[string]any)
		assert.Len(t, monday["interviewer_slots"], 1)
		assert.Contains(t, monday["bookings"], itoa(bID))

		w = do(r, http.MethodGet, "/api/weeks/nope/dashboard", coordToken, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("calendar export needs configuration", func(t *testing.T) {
		w := do(r, http.MethodPost, "/api/bookings/"+itoa(bID)+"/calendar-event", coordToken, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("cancel", func(t *testing.T) {
		w := do(r, http.MethodDelete, "/api/bookings/"+itoa(bID), coordToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, f.store.bookings)

		w = do(r, http.MethodDelete, "/api/bookings/"+itoa(bID), coordToken, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestWriteErrorHidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

	f.app.writeError(c, errors.New("pq: password authentication failed"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "internal", body["code"])
	assert.NotContains(t, body["error"], "password")
}

func TestWriteErrorStatuses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{rules.Errorf(rules.KindPeriodOverlap, "x"), http.StatusConflict, "period_overlap"},
		{rules.Errorf(rules.KindExceedsBookingLimit, "x"), http.StatusConflict, "exceeds_booking_limit"},
		{rules.Errorf(rules.KindInvalidWeekNum, "x"), http.StatusMethodNotAllowed, "invalid_week_num"},
		{rules.Errorf(rules.KindMinPeriod, "x"), http.StatusBadRequest, "min_period"},
		{forbidden("no"), http.StatusForbidden, "forbidden"},
		{errors.Join(errors.New("wrapped"), ErrNotFound), http.StatusNotFound, "not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
			f.app.writeError(c, tc.err)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decode(t, w)["code"])
		})
	}
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
