package app

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"interview-planner/internal/rules"
)

// bind decodes the JSON body into v, writing a 400 on failure.
func (a *App) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var re *rules.Error
		if errors.As(err, &re) {
			a.writeError(c, re)
			return false
		}
		a.writeError(c, badRequest(err.Error()))
		return false
	}
	return true
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name, "code": "bad_request"})
		return 0, false
	}
	return id, true
}

func (a *App) weekParam(c *gin.Context, name string) (rules.WeekNumber, bool) {
	w, err := rules.ParseWeekNumber(c.Param(name))
	if err != nil {
		a.writeError(c, badRequest(err.Error()))
		return 0, false
	}
	return w, true
}

// mustPrincipal is used behind AuthMiddleware, which always sets one.
func mustPrincipal(c *gin.Context) Principal {
	p, _ := principal(c)
	return p
}

// GET /healthz
func (a *App) HealthHandler(c *gin.Context) {
	if err := a.Store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /api/weeks/current
func (a *App) CurrentWeekHandler(c *gin.Context) {
	c.JSON(http.StatusOK, newWeekResponse(a.Calendar.CurrentWeekNumber(a.now())))
}

// GET /api/weeks/next
func (a *App) NextWeekHandler(c *gin.Context) {
	c.JSON(http.StatusOK, newWeekResponse(a.Calendar.NextWeekNumber(a.now())))
}

// GET /api/weeks/:weekNum/dashboard
func (a *App) DashboardHandler(c *gin.Context) {
	week, ok := a.weekParam(c, "weekNum")
	if !ok {
		return
	}
	days, err := a.GetWeekDashboard(c.Request.Context(), week)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"week_num": week, "days": days})
}

// --- interviewer slots ---

// canViewInterviewer lets interviewers see their own data and coordinators everyone's.
func (a *App) canViewInterviewer(c *gin.Context, interviewerID string) bool {
	if !mustPrincipal(c).actsFor(rules.RoleInterviewer, interviewerID) {
		a.writeError(c, forbidden("cannot access another interviewer"))
		return false
	}
	return true
}

// GET /api/interviewers/:id/slots
// Slots from the current week on.
func (a *App) ListInterviewerSlotsHandler(c *gin.Context) {
	id := c.Param("id")
	if !a.canViewInterviewer(c, id) {
		return
	}
	slots, err := a.InterviewerSlots(c.Request.Context(), id, a.Calendar.CurrentWeekNumber(a.now()), 0)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

// GET /api/interviewers/:id/slots/weeks/:which  (which = current | next)
func (a *App) InterviewerWeekSlotsHandler(c *gin.Context) {
	id := c.Param("id")
	if !a.canViewInterviewer(c, id) {
		return
	}
	var week rules.WeekNumber
	switch c.Param("which") {
	case "current":
		week = a.Calendar.CurrentWeekNumber(a.now())
	case "next":
		week = a.Calendar.NextWeekNumber(a.now())
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "week must be current or next", "code": "not_found"})
		return
	}
	slots, err := a.InterviewerSlots(c.Request.Context(), id, week, week)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"week_num": week, "slots": slots})
}

// POST /api/interviewers/:id/slots
func (a *App) CreateInterviewerSlotHandler(c *gin.Context) {
	var req interviewerSlotReq
	if !a.bind(c, &req) {
		return
	}
	slot, err := a.CreateInterviewerSlot(c.Request.Context(), mustPrincipal(c), req.slot(0, c.Param("id")))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, slot)
}

// PUT /api/interviewers/:id/slots/:slotId
func (a *App) UpdateInterviewerSlotHandler(c *gin.Context) {
	slotID, ok := int64Param(c, "slotId")
	if !ok {
		return
	}
	var req interviewerSlotReq
	if !a.bind(c, &req) {
		return
	}
	slot, err := a.UpdateInterviewerSlot(c.Request.Context(), mustPrincipal(c), req.slot(slotID, c.Param("id")))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

// DELETE /api/interviewers/:id/slots/:slotId
func (a *App) DeleteInterviewerSlotHandler(c *gin.Context) {
	slotID, ok := int64Param(c, "slotId")
	if !ok {
		return
	}
	if err := a.DeleteInterviewerSlot(c.Request.Context(), mustPrincipal(c), c.Param("id"), slotID); err != nil {
		a.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- candidate slots ---

// GET /api/candidates/current/slots
func (a *App) ListCandidateSlotsHandler(c *gin.Context) {
	slots, err := a.CandidateSlots(c.Request.Context(), mustPrincipal(c).ID)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

// POST /api/candidates/current/slots
func (a *App) CreateCandidateSlotHandler(c *gin.Context) {
	var req candidateSlotReq
	if !a.bind(c, &req) {
		return
	}
	p := mustPrincipal(c)
	slot, err := req.slot(0, p.ID)
	if err != nil {
		a.writeError(c, err)
		return
	}
	if slot, err = a.CreateCandidateSlot(c.Request.Context(), p, slot); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, slot)
}

// PUT /api/candidates/current/slots/:slotId
func (a *App) UpdateCandidateSlotHandler(c *gin.Context) {
	slotID, ok := int64Param(c, "slotId")
	if !ok {
		return
	}
	var req candidateSlotReq
	if !a.bind(c, &req) {
		return
	}
	p := mustPrincipal(c)
	slot, err := req.slot(slotID, p.ID)
	if err != nil {
		a.writeError(c, err)
		return
	}
	if slot, err = a.UpdateCandidateSlot(c.Request.Context(), p, slot); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

// DELETE /api/candidates/current/slots/:slotId
func (a *App) DeleteCandidateSlotHandler(c *gin.Context) {
	slotID, ok := int64Param(c, "slotId")
	if !ok {
		return
	}
	p := mustPrincipal(c)
	if err := a.DeleteCandidateSlot(c.Request.Context(), p, p.ID, slotID); err != nil {
		a.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- bookings ---

// POST /api/bookings
func (a *App) CreateBookingHandler(c *gin.Context) {
	var req bookingReq
	if !a.bind(c, &req) {
		return
	}
	b, err := a.CreateBooking(c.Request.Context(), mustPrincipal(c), req.booking(0))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// PUT /api/bookings/:id
func (a *App) UpdateBookingHandler(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req bookingReq
	if !a.bind(c, &req) {
		return
	}
	b, err := a.UpdateBooking(c.Request.Context(), mustPrincipal(c), req.booking(id))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// DELETE /api/bookings/:id
func (a *App) CancelBookingHandler(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	if err := a.CancelBooking(c.Request.Context(), mustPrincipal(c), id); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// --- booking limits ---

// POST /api/interviewers/:id/booking-limits
func (a *App) SetBookingLimitHandler(c *gin.Context) {
	var req bookingLimitReq
	if !a.bind(c, &req) {
		return
	}
	l := rules.BookingLimit{InterviewerID: c.Param("id"), WeekNum: req.WeekNum, MaxBookings: *req.BookingLimit}
	l, err := a.SetBookingLimit(c.Request.Context(), mustPrincipal(c), l)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// GET /api/interviewers/:id/booking-limits/:weekNum
func (a *App) GetBookingLimitHandler(c *gin.Context) {
	id := c.Param("id")
	if !a.canViewInterviewer(c, id) {
		return
	}
	week, ok := a.weekParam(c, "weekNum")
	if !ok {
		return
	}
	st, err := a.BookingLimit(c.Request.Context(), id, week)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// GET /api/booking-limits/:weekNum
func (a *App) ListBookingLimitsHandler(c *gin.Context) {
	week, ok := a.weekParam(c, "weekNum")
	if !ok {
		return
	}
	limits, err := a.BookingLimits(c.Request.Context(), week)
	if err != nil {
		a.writeError(c, err)
		return
	}
	if limits == nil {
		limits = []rules.BookingLimit{}
	}
	c.JSON(http.StatusOK, limits)
}

// --- users ---

// GET /api/me
func (a *App) MeHandler(c *gin.Context) {
	c.JSON(http.StatusOK, mustPrincipal(c))
}

// GET /api/users/interviewers, GET /api/users/coordinators
func (a *App) listUsersHandler(role rules.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := a.UsersWithRole(c.Request.Context(), role)
		if err != nil {
			a.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

// POST /api/users/interviewers, POST /api/users/coordinators
func (a *App) grantRoleHandler(role rules.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req grantRoleReq
		if !a.bind(c, &req) {
			return
		}
		u, err := a.GrantRole(c.Request.Context(), mustPrincipal(c), req.Email, req.ID, role)
		if err != nil {
			a.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// DELETE /api/users/interviewers/:userId, DELETE /api/users/coordinators/:userId
func (a *App) revokeRoleHandler(role rules.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := a.RevokeRole(c.Request.Context(), mustPrincipal(c), c.Param("userId"), role)
		if err != nil {
			a.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}
