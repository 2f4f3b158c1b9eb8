package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Kerhoff/CheckinBoT/internal/geo"
	"github.com/Kerhoff/CheckinBoT/internal/models"
)

// ErrEventNotFound is returned by an EventSource for an unknown event.
var ErrEventNotFound = errors.New("event not found")

// EventSource loads the public view of an event.
type EventSource interface {
	GetEvent(ctx context.Context, eventID int64) (*models.Event, error)
}

// LocationErrorKind tells apart the ways a position request can fail.
type LocationErrorKind string

const (
	LocationPermissionDenied LocationErrorKind = "permission_denied"
	LocationUnavailable      LocationErrorKind = "unavailable"
	LocationTimeout          LocationErrorKind = "timeout"
)

// LocationError is returned by a Locator that could not produce a position.
type LocationError struct {
	Kind LocationErrorKind
	Err  error
}

func (e *LocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("location %s: %v", e.Kind, e.Err)
	}
	return "location " + string(e.Kind)
}

func (e *LocationError) Unwrap() error { return e.Err }

// Locator asks the device for its current position once. Implementations
// must not return cached fixes and should honour ctx's deadline.
type Locator interface {
	Locate(ctx context.Context) (geo.Point, error)
}

// Submission is what the attendee sends to record their attendance.
type Submission struct {
	EventID int64   `json:"-"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Token   string  `json:"token"`
}

// RejectedError carries the server's explanation for a refused check-in.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("check-in rejected (%d): %s", e.StatusCode, e.Message)
}

// Submitter sends a check-in to the server, which verifies it again.
type Submitter interface {
	Submit(ctx context.Context, s Submission) error
}

// MarkerTTL is how long a successful check-in is remembered on the device.
const MarkerTTL = 24 * time.Hour

// MarkerStore remembers which events this device already checked in to.
// It is a hint only: another device or a cleared store bypasses it.
type MarkerStore interface {
	Has(eventID int64, now time.Time) bool
	Set(eventID int64, now time.Time) error
}

// Clock lets tests control time.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// MarkerName is the cookie name used for an event's marker.
func MarkerName(eventID int64) string {
	return fmt.Sprintf("checked_in_%d", eventID)
}
