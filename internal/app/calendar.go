package app

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"interview-planner/internal/rules"
)

const (
	googleTokenHeader = "X-Google-Token"
	oauthStateCookie  = "oauth_state"
	oauthStateMaxAge  = 10 * 60
)

// GoogleCalendarConfig holds OAuth2 configuration
type GoogleCalendarConfig struct {
	Config *oauth2.Config
}

// CalendarEvent is a Google Calendar event as returned to clients.
type CalendarEvent struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Status      string    `json:"status"`
	HTMLLink    string    `json:"html_link,omitempty"`
}

// NewGoogleCalendarConfig returns nil unless all three settings are present.
func NewGoogleCalendarConfig(clientID, clientSecret, redirectURL string) *GoogleCalendarConfig {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil
	}
	return &GoogleCalendarConfig{Config: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{calendar.CalendarEventsScope},
		Endpoint:     google.Endpoint,
	}}
}

// BookingEvent describes booking b as a calendar event in loc.
func BookingEvent(b rules.Booking, is rules.InterviewerSlot, cs rules.CandidateSlot, loc *time.Location) *calendar.Event {
	if loc == nil {
		loc = time.UTC
	}
	at := func(m rules.TimeOfDay) string {
		y, mo, d := cs.Date.Date()
		return time.Date(y, mo, d, m.Hour(), m.Minute(), 0, 0, loc).Format(time.RFC3339)
	}
	summary := b.Subject
	if summary == "" {
		summary = "Interview"
	}
	return &calendar.Event{
		Summary: summary,
		Description: fmt.Sprintf("%s\n\nInterviewer: %s\nCandidate: %s\nBooking: %d",
			b.Description, is.InterviewerID, cs.CandidateID, b.ID),
		Start: &calendar.EventDateTime{DateTime: at(b.From), TimeZone: loc.String()},
		End:   &calendar.EventDateTime{DateTime: at(b.To), TimeZone: loc.String()},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{"booking_id": fmt.Sprint(b.ID)},
		},
	}
}

// GoogleAuthHandler initiates OAuth2 flow
func (a *App) GoogleAuthHandler(c *gin.Context) {
	if a.Google == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar not configured", "code": "calendar_disabled"})
		return
	}
	state := uuid.New().String()
	setStateCookie(c, state, oauthStateMaxAge)
	url := a.Google.Config.AuthCodeURL(state, oauth2.AccessTypeOffline)
	c.JSON(http.StatusOK, gin.H{
		"auth_url": url,
		"state":    state,
	})
}

// setStateCookie keeps the OAuth2 state on the browser that started the flow.
// Lax lets it ride along on Google's redirect back. maxAge < 0 clears it.
func setStateCookie(c *gin.Context, state string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, maxAge, "/", "", c.Request.TLS != nil, true)
}

// GoogleOAuth2CallbackHandler checks the state against the cookie set by
// GoogleAuthHandler, exchanges the code and hands the token back to the client,
// which sends it in X-Google-Token on export calls.
func (a *App) GoogleOAuth2CallbackHandler(c *gin.Context) {
	if a.Google == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar not configured", "code": "calendar_disabled"})
		return
	}
	state := c.Query("state")
	want, err := c.Cookie(oauthStateCookie)
	setStateCookie(c, "", -1)
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(want)) != 1 {
		a.Log.Warn("oauth state mismatch", zap.String("request_id", requestID(c)), zap.Bool("cookie", err == nil))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired OAuth state", "code": "invalid_state"})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code required", "code": "bad_request"})
		return
	}

	token, err := a.Google.Config.Exchange(c.Request.Context(), code)
	if err != nil {
		a.Log.Warn("google token exchange failed", zap.String("request_id", requestID(c)), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to exchange code for token", "code": "bad_request"})
		return
	}
	tokenJSON, _ := json.Marshal(token)
	c.JSON(http.StatusOK, gin.H{
		"message": "Authorization successful",
		"state":   state,
		"token":   string(tokenJSON),
	})
}

// calendarService builds a client from the caller's X-Google-Token.
func (a *App) calendarService(c *gin.Context) (*calendar.Service, error) {
	if a.Google == nil {
		return nil, &Error{Status: http.StatusServiceUnavailable, Code: "calendar_disabled", Message: "Google Calendar not configured"}
	}
	tokenStr := c.GetHeader(googleTokenHeader)
	if tokenStr == "" {
		return nil, badRequest("Google token required in " + googleTokenHeader + " header")
	}
	var token oauth2.Token
	if err := json.Unmarshal([]byte(tokenStr), &token); err != nil {
		return nil, badRequest("invalid token format")
	}
	ctx := c.Request.Context()
	client := a.Google.Config.Client(ctx, &token)
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return srv, nil
}

// bookingEvent loads booking id with its slots and renders it as an event. Only
// coordinators and the two participants may see it.
func (a *App) bookingEvent(ctx context.Context, p Principal, id int64) (*calendar.Event, error) {
	b, err := a.Store.Booking(ctx, id)
	if err != nil {
		return nil, err
	}
	is, cs, err := bookingParents(ctx, a.Store, b)
	if err != nil {
		return nil, err
	}
	if !p.actsFor(rules.RoleInterviewer, is.InterviewerID) && !p.actsFor(rules.RoleCandidate, cs.CandidateID) {
		return nil, forbidden("not a participant of this booking")
	}
	return BookingEvent(b, is, cs, a.Calendar.Location), nil
}

// POST /api/bookings/:id/calendar-event
func (a *App) ExportBookingHandler(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	p := mustPrincipal(c)

	ev, err := a.bookingEvent(c.Request.Context(), p, id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	srv, err := a.calendarService(c)
	if err != nil {
		a.writeError(c, err)
		return
	}
	if p.Email != "" {
		ev.Attendees = []*calendar.EventAttendee{{Email: p.Email}}
	}

	created, err := srv.Events.Insert(c.DefaultQuery("calendar_id", "primary"), ev).Context(c.Request.Context()).Do()
	if err != nil {
		a.Log.Warn("calendar export failed", zap.Int64("booking_id", id), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("failed to create event: %v", err), "code": "calendar_error"})
		return
	}
	c.JSON(http.StatusCreated, toCalendarEvent(created))
}

// GET /api/calendar/events?week_num=202643
// Lists the caller's Google Calendar events for Monday..Friday of the week.
func (a *App) WeekCalendarEventsHandler(c *gin.Context) {
	week := a.Calendar.NextWeekNumber(a.now())
	if s := c.Query("week_num"); s != "" {
		w, err := rules.ParseWeekNumber(s)
		if err != nil {
			a.writeError(c, err)
			return
		}
		week = w
	}
	monday, err := a.Calendar.DateOf(week, time.Monday)
	if err != nil {
		a.writeError(c, err)
		return
	}
	srv, err := a.calendarService(c)
	if err != nil {
		a.writeError(c, err)
		return
	}

	loc := a.Calendar.Location
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := monday.Date()
	timeMin := time.Date(y, m, d, 0, 0, 0, 0, loc)
	timeMax := timeMin.AddDate(0, 0, 5)

	events, err := srv.Events.List(c.DefaultQuery("calendar_id", "primary")).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		Context(c.Request.Context()).
		Do()
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("failed to retrieve events: %v", err), "code": "calendar_error"})
		return
	}

	out := make([]CalendarEvent, 0, len(events.Items))
	for _, item := range events.Items {
		out = append(out, toCalendarEvent(item))
	}
	c.JSON(http.StatusOK, gin.H{
		"week_num": week,
		"events":   out,
		"count":    len(out),
	})
}

func toCalendarEvent(item *calendar.Event) CalendarEvent {
	ev := CalendarEvent{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Status:      item.Status,
		HTMLLink:    item.HtmlLink,
	}
	ev.StartTime = parseEventTime(item.Start)
	ev.EndTime = parseEventTime(item.End)
	return ev
}

func parseEventTime(t *calendar.EventDateTime) time.Time {
	if t == nil {
		return time.Time{}
	}
	if t.DateTime != "" {
		if v, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return v
		}
	}
	if t.Date != "" {
		if v, err := time.Parse(time.DateOnly, t.Date); err == nil {
			return v
		}
	}
	return time.Time{}
}
