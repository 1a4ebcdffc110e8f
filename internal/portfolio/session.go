package portfolio

import (
	"errors"
	"fmt"
	"time"
)

// Session errors
var (
	ErrBadSessionTime = errors.New("session time must be HH:MM")
)

// Session is a regular trading session in one timezone. Bars outside the
// session (or on weekends) are filtered before they reach the strategy.
type Session struct {
	loc       *time.Location
	openMins  int // minutes from midnight, inclusive
	closeMins int // minutes from midnight, exclusive
}

// NewSession creates a Session from a timezone name and open/close times
// in HH:MM form, e.g. NewSession("America/New_York", "09:30", "16:00").
func NewSession(tz, open, close string) (*Session, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	openMins, err := parseClock(open)
	if err != nil {
		return nil, err
	}
	closeMins, err := parseClock(close)
	if err != nil {
		return nil, err
	}
	return &Session{loc: loc, openMins: openMins, closeMins: closeMins}, nil
}

// Contains reports whether the timestamp falls on a weekday inside the
// session window [open, close).
func (s *Session) Contains(timestampMs int64) bool {
	t := time.UnixMilli(timestampMs).In(s.loc)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	mins := t.Hour()*60 + t.Minute()
	return mins >= s.openMins && mins < s.closeMins
}

// parseClock converts "HH:MM" to minutes from midnight.
func parseClock(v string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(v, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadSessionTime, v)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrBadSessionTime, v)
	}
	return h*60 + m, nil
}
