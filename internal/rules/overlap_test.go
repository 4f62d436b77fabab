package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverlapTouchingEndpoints(t *testing.T) {
	existing := []Period{p("10:30", "12:30")}

	assert.False(t, HasOverlap(p("12:30", "14:00"), existing))
	assert.False(t, HasOverlap(p("09:00", "10:30"), existing))
	assert.True(t, HasOverlap(Period{From: NewTimeOfDay(12, 0), To: NewTimeOfDay(12, 31)}, existing))
	assert.False(t, HasOverlap(p("12:00", "13:30"), nil))
}

func TestOverlapsIsSymmetric(t *testing.T) {
	periods := []Period{
		p("08:00", "09:30"), p("09:00", "10:30"), p("09:30", "11:00"),
		p("08:00", "22:00"), p("12:00", "13:30"),
	}
	for _, a := range periods {
		for _, b := range periods {
			assert.Equal(t, Overlaps(a, b), Overlaps(b, a), "%s vs %s", a, b)
		}
	}
}

func TestValidateNoOverlapMonday(t *testing.T) {
	monday := []Period{
		p("08:00", "09:30"),
		p("10:30", "12:30"),
		p("12:30", "14:00"),
		p("14:30", "17:00"),
	}

	assert.NoError(t, ValidateNoOverlap(p("17:30", "19:00"), monday))
	// Starts exactly where the last slot ends.
	assert.NoError(t, ValidateNoOverlap(p("17:00", "19:30"), monday))

	for _, c := range []Period{
		p("08:00", "09:30"),
		p("09:00", "10:30"),
		p("16:30", "19:30"),
		p("08:00", "17:00"),
	} {
		err := ValidateNoOverlap(c, monday)
		assert.ErrorIs(t, err, ErrPeriodOverlap, c.String())
	}
}

func TestValidateNoOverlapNamesFirstConflict(t *testing.T) {
	existing := []Period{p("14:30", "17:00"), p("08:00", "09:30")}

	err := ValidateNoOverlap(p("08:00", "17:00"), existing)
	assert.EqualError(t, err, "period_overlap: 08:00-17:00 overlaps existing 14:30-17:00")
}
