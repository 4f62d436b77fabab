package app

import (
	"github.com/gin-gonic/gin"

	"interview-planner/internal/rules"
)

// Routes registers every endpoint on r. auth guards everything under /api, and
// callers' roles are then taken from the users table.
func (a *App) Routes(r *gin.Engine, auth gin.HandlerFunc) {
	r.GET("/healthz", a.HealthHandler)

	// OAuth2 callback (must be before auth middleware)
	r.GET("/oauth2callback", a.GoogleOAuth2CallbackHandler)

	coordinator := RequireRole(rules.RoleCoordinator)
	interviewerOrCoordinator := RequireRole(rules.RoleInterviewer, rules.RoleCoordinator)

	api := r.Group("/api", auth, a.ResolveUser())
	{
		api.GET("/me", a.MeHandler)

		users := api.Group("/users", coordinator)
		{
			for path, role := range map[string]rules.Role{
				"/interviewers": rules.RoleInterviewer,
				"/coordinators": rules.RoleCoordinator,
			} {
				users.GET(path, a.listUsersHandler(role))
				users.POST(path, a.grantRoleHandler(role))
				users.DELETE(path+"/:userId", a.revokeRoleHandler(role))
			}
		}

		weeks := api.Group("/weeks")
		{
			weeks.GET("/current", a.CurrentWeekHandler)
			weeks.GET("/next", a.NextWeekHandler)
			weeks.GET("/:weekNum/dashboard", coordinator, a.DashboardHandler)
		}

		interviewers := api.Group("/interviewers/:id", interviewerOrCoordinator)
		{
			interviewers.GET("/slots", a.ListInterviewerSlotsHandler)
			interviewers.GET("/slots/weeks/:which", a.InterviewerWeekSlotsHandler)
			interviewers.POST("/slots", a.CreateInterviewerSlotHandler)
			interviewers.PUT("/slots/:slotId", a.UpdateInterviewerSlotHandler)
			interviewers.DELETE("/slots/:slotId", a.DeleteInterviewerSlotHandler)

			interviewers.POST("/booking-limits", a.SetBookingLimitHandler)
			interviewers.GET("/booking-limits/:weekNum", a.GetBookingLimitHandler)
		}

		candidates := api.Group("/candidates/current", RequireRole(rules.RoleCandidate))
		{
			candidates.GET("/slots", a.ListCandidateSlotsHandler)
			candidates.POST("/slots", a.CreateCandidateSlotHandler)
			candidates.PUT("/slots/:slotId", a.UpdateCandidateSlotHandler)
			candidates.DELETE("/slots/:slotId", a.DeleteCandidateSlotHandler)
		}

		bookings := api.Group("/bookings")
		{
			bookings.POST("", coordinator, a.CreateBookingHandler)
			bookings.PUT("/:id", coordinator, a.UpdateBookingHandler)
			bookings.DELETE("/:id", coordinator, a.CancelBookingHandler)
			bookings.POST("/:id/calendar-event", a.ExportBookingHandler)
		}

		api.GET("/booking-limits/:weekNum", coordinator, a.ListBookingLimitsHandler)

		// Google Calendar integration routes
		calendar := api.Group("/calendar")
		{
			calendar.GET("/auth", a.GoogleAuthHandler)
			calendar.GET("/events", a.WeekCalendarEventsHandler)
		}
	}
}
