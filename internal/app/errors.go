package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"interview-planner/internal/rules"
)

// ErrNotFound is returned by Store lookups that match no row.
var ErrNotFound = errors.New("not found")

// Error is a request-level failure that is not a scheduling rule violation.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func forbidden(msg string) *Error {
	return &Error{Status: http.StatusForbidden, Code: "forbidden", Message: msg}
}

func badRequest(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "bad_request", Message: msg}
}

var ruleStatus = map[rules.Kind]int{
	rules.KindNotRounded:          http.StatusBadRequest,
	rules.KindTimeLowerBound:      http.StatusBadRequest,
	rules.KindTimeUpperBound:      http.StatusBadRequest,
	rules.KindMinPeriod:           http.StatusBadRequest,
	rules.KindPeriodOverlap:       http.StatusConflict,
	rules.KindInvalidWeekNum:      http.StatusMethodNotAllowed,
	rules.KindInvalidDayOfWeek:    http.StatusBadRequest,
	rules.KindInvalidBookingLimit: http.StatusBadRequest,
	rules.KindExceedsBookingLimit: http.StatusConflict,
	rules.KindSlotHasBooking:      http.StatusConflict,
	rules.KindBookingOutOfSlot:    http.StatusBadRequest,
	rules.KindSlotDateMismatch:    http.StatusBadRequest,
}

// writeError renders err as JSON. Unknown errors are logged and hidden from the client.
func (a *App) writeError(c *gin.Context, err error) {
	var re *rules.Error
	if errors.As(err, &re) {
		status, ok := ruleStatus[re.Kind]
		if !ok {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": re.Error(), "code": re.Kind})
		return
	}
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "not_found"})
		return
	}
	var ae *Error
	if errors.As(err, &ae) {
		c.JSON(ae.Status, gin.H{"error": ae.Message, "code": ae.Code})
		return
	}
	a.Log.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.String("request_id", requestID(c)),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong, please contact an administrator", "code": "internal"})
}
