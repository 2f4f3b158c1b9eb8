// Package window classifies an event's registration window against the
// current time.
package window

import "time"

// Status is the registration status of an event at a given instant.
type Status string

const (
	StatusNotStarted     Status = "not_started"
	StatusOpen           Status = "open"
	StatusClosed         Status = "closed"
	StatusManuallyClosed Status = "manually_closed"
)

// IsTerminal reports whether no later point in time can reopen registration
// without an organizer action.
func (s Status) IsTerminal() bool {
	return s == StatusClosed || s == StatusManuallyClosed
}

// Bounds returns the instants at which registration opens and closes.
func Bounds(start, end time.Time, beforeMinutes, afterMinutes int) (opensAt, closesAt time.Time) {
	opensAt = start.Add(-time.Duration(beforeMinutes) * time.Minute)
	closesAt = end.Add(time.Duration(afterMinutes) * time.Minute)
	return opensAt, closesAt
}

// Classify maps an event's times, window offsets and manual-close flag to a
// registration status at now. Both boundaries are inclusive. The result must
// not be cached: call it again for every status check.
func Classify(start, end time.Time, beforeMinutes, afterMinutes int, manuallyClosed bool, now time.Time) Status {
	if manuallyClosed {
		return StatusManuallyClosed
	}

	opensAt, closesAt := Bounds(start, end, beforeMinutes, afterMinutes)
	switch {
	case now.Before(opensAt):
		return StatusNotStarted
	case now.After(closesAt):
		return StatusClosed
	default:
		return StatusOpen
	}
}
