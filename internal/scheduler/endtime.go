package scheduler

import (
	"strings"
	"time"

	"github.com/tsgs/tsgsbot/internal/errs"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	// DefaultLead is how far ahead an event ends when no time is given.
	DefaultLead = time.Hour
)

// ErrInvalidEndTime is the user-facing rejection for bad or past deadlines.
var ErrInvalidEndTime = errs.Validation("Invalid or past end date/time. Use YYYY-MM-DD and HH:mm (24-hour).")

// ParseEndTime combines an optional date (YYYY-MM-DD) and time (HH:MM) in
// loc. A missing date means today; a missing time means one hour from now.
// The result must be strictly after now.
func ParseEndTime(now time.Time, date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)

	if date == "" && clock == "" {
		return now.Add(DefaultLead), nil
	}
	if date == "" {
		date = now.Format(DateLayout)
	}
	if clock == "" {
		clock = now.Add(DefaultLead).Format(TimeLayout)
	}

	endsAt, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+clock, loc)
	if err != nil || !endsAt.After(now) {
		return time.Time{}, ErrInvalidEndTime
	}
	return endsAt, nil
}
