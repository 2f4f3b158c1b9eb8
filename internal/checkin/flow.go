// Package checkin drives an attendee through checking in to an event: it
// waits for the registration window, requires a scanned QR token, verifies
// the device position against the event's geofence and submits the
// attendance record.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/Kerhoff/CheckinBoT/internal/geo"
	"github.com/Kerhoff/CheckinBoT/internal/models"
	"github.com/Kerhoff/CheckinBoT/internal/window"
)

// State is a step of the check-in flow.
type State string

const (
	StateLoading              State = "loading"
	StateNotFound             State = "not_found"
	StateCountdown            State = "countdown"
	StateQRRequired           State = "qr_required"
	StateLocationVerification State = "location_verification"
	StateClosed               State = "closed"
	StateAlreadyCheckedIn     State = "already_checked_in"
	StateCheckInForm          State = "check_in_form"
	StateSuccess              State = "success"
	StateError                State = "error"
)

// IsTerminal reports whether the flow can no longer move from s.
func (s State) IsTerminal() bool {
	switch s {
	case StateNotFound, StateClosed, StateAlreadyCheckedIn, StateSuccess:
		return true
	}
	return false
}

// LocationRequestTimeout bounds a single position request.
const LocationRequestTimeout = 10 * time.Second

var (
	// ErrBusy is returned when an operation is attempted while another one
	// is still in flight.
	ErrBusy = errors.New("another check-in operation is in progress")

	// ErrInvalidTransition is returned when an operation does not apply to
	// the current state.
	ErrInvalidTransition = errors.New("operation not allowed in current state")

	// ErrInvalidAttendee is returned by Submit for a missing name or a
	// malformed email. The flow stays on the form.
	ErrInvalidAttendee = errors.New("invalid attendee details")
)

// Config holds a Flow's collaborators. Clock and Logger are optional.
type Config struct {
	EventID   int64
	Token     string
	Events    EventSource
	Locator   Locator
	Submitter Submitter
	Markers   MarkerStore
	Clock     Clock
	Logger    *logrus.Logger
}

// Flow is one attendee's check-in session for one event. Only one operation
// runs at a time; a concurrent call fails with ErrBusy instead of queueing.
type Flow struct {
	eventID   int64
	token     string
	events    EventSource
	locator   Locator
	submitter Submitter
	markers   MarkerStore
	clock     Clock
	logger    *logrus.Logger

	inFlight *atomic.Bool

	mu       sync.RWMutex
	state    State
	event    *models.Event
	position *geo.Point
	message  string
}

// NewFlow returns a flow in the loading state.
func NewFlow(cfg Config) *Flow {
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Flow{
		eventID:   cfg.EventID,
		token:     strings.TrimSpace(cfg.Token),
		events:    cfg.Events,
		locator:   cfg.Locator,
		submitter: cfg.Submitter,
		markers:   cfg.Markers,
		clock:     clock,
		logger:    logger,
		inFlight:  atomic.NewBool(false),
		state:     StateLoading,
	}
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Message is the human-readable reason for the current error state.
func (f *Flow) Message() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.message
}

// Event returns the loaded event, or nil before Load succeeds.
func (f *Flow) Event() *models.Event {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.event
}

// OpensAt is the instant the countdown targets.
func (f *Flow) OpensAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.event == nil {
		return time.Time{}
	}
	return f.event.RegistrationOpensAt()
}

// HasToken reports whether the flow was started from a scanned QR code.
func (f *Flow) HasToken() bool {
	return f.token != ""
}

func (f *Flow) acquire() error {
	if !f.inFlight.CAS(false, true) {
		return ErrBusy
	}
	return nil
}

func (f *Flow) release() {
	f.inFlight.Store(false)
}

func (f *Flow) setState(s State, msg string) State {
	f.mu.Lock()
	prev := f.state
	f.state = s
	f.message = msg
	f.mu.Unlock()

	f.logger.WithFields(logrus.Fields{
		"event_id": f.eventID,
		"from":     prev,
		"to":       s,
	}).Debug("Check-in state changed")
	return s
}

func (f *Flow) expect(op string, allowed ...State) error {
	cur := f.State()
	for _, s := range allowed {
		if cur == s {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, op, cur)
}

// Load fetches the event and decides the first state. It may be called
// again to reload, which re-runs every check including the marker.
func (f *Flow) Load(ctx context.Context) (State, error) {
	if err := f.acquire(); err != nil {
		return f.State(), err
	}
	defer f.release()

	f.setState(StateLoading, "")

	event, err := f.events.GetEvent(ctx, f.eventID)
	if errors.Is(err, ErrEventNotFound) || (err == nil && event == nil) {
		return f.setState(StateNotFound, "Event not found."), nil
	}
	if err != nil {
		f.setState(StateError, "Could not load the event. Please try again.")
		return StateError, fmt.Errorf("failed to load event %d: %w", f.eventID, err)
	}

	f.mu.Lock()
	f.event = event
	f.mu.Unlock()

	return f.evaluate(), nil
}

// evaluate applies the marker, window and token checks in that order.
func (f *Flow) evaluate() State {
	now := f.clock.Now()

	if f.markers != nil && f.markers.Has(f.eventID, now) {
		return f.setState(StateAlreadyCheckedIn, "")
	}

	switch f.Event().RegistrationStatus(now) {
	case window.StatusClosed, window.StatusManuallyClosed:
		return f.setState(StateClosed, "")
	case window.StatusNotStarted:
		return f.setState(StateCountdown, "")
	}

	if f.token == "" {
		return f.setState(StateQRRequired, "")
	}
	return f.setState(StateLocationVerification, "")
}

// Resume re-runs the classification once the countdown target has passed.
// Calling it early leaves the flow counting down.
func (f *Flow) Resume() (State, error) {
	if err := f.acquire(); err != nil {
		return f.State(), err
	}
	defer f.release()

	if err := f.expect("resume", StateCountdown); err != nil {
		return f.State(), err
	}
	return f.evaluate(), nil
}

// WaitCountdown blocks until the registration window opens and then
// resumes the flow.
func (f *Flow) WaitCountdown(ctx context.Context) (State, error) {
	if err := f.expect("wait", StateCountdown); err != nil {
		return f.State(), err
	}

	if wait := f.OpensAt().Sub(f.clock.Now()); wait > 0 {
		select {
		case <-ctx.Done():
			return f.State(), ctx.Err()
		case <-f.clock.After(wait):
		}
	}
	return f.Resume()
}

// VerifyLocation asks the locator for a single fix and checks it against
// the event's geofence. Events without coordinates are not geofenced.
func (f *Flow) VerifyLocation(ctx context.Context) (State, error) {
	if err := f.acquire(); err != nil {
		return f.State(), err
	}
	defer f.release()

	if err := f.expect("verify location", StateLocationVerification); err != nil {
		return f.State(), err
	}

	event := f.Event()
	if !event.HasLocation() {
		return f.setState(StateCheckInForm, ""), nil
	}

	lctx, cancel := context.WithTimeout(ctx, LocationRequestTimeout)
	defer cancel()

	point, err := f.locator.Locate(lctx)
	if err == nil && !geo.IsValidCoordinates(point.Lat, point.Lng) {
		err = &LocationError{Kind: LocationUnavailable, Err: fmt.Errorf("invalid coordinates %v,%v", point.Lat, point.Lng)}
	}
	if err != nil {
		return f.setState(StateError, locationMessage(lctx, err)), nil
	}

	center := geo.Point{Lat: *event.LocationLat, Lng: *event.LocationLng}
	distance := geo.DistanceMeters(point, center)
	if !geo.IsWithinRadius(point, center, float64(event.LocationRadiusMeters)) {
		msg := fmt.Sprintf("You are %dm from the event location. You must be within %dm to check in.",
			int(math.Round(distance)), event.LocationRadiusMeters)
		return f.setState(StateError, msg), nil
	}

	f.mu.Lock()
	f.position = &point
	f.mu.Unlock()

	return f.setState(StateCheckInForm, ""), nil
}

func locationMessage(ctx context.Context, err error) string {
	kind := LocationUnavailable
	var lerr *LocationError
	switch {
	case errors.As(err, &lerr):
		kind = lerr.Kind
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = LocationTimeout
	}

	switch kind {
	case LocationPermissionDenied:
		return "Location permission was denied. Allow location access to check in."
	case LocationTimeout:
		return "Timed out while getting your location. Please try again."
	default:
		return "Your location is unavailable. Please try again."
	}
}

// Submit sends the attendee's details with the scanned token. Invalid
// details return ErrInvalidAttendee and keep the form open; a server
// rejection moves the flow to the error state with the server's message.
func (f *Flow) Submit(ctx context.Context, name, email string) (State, error) {
	if err := f.acquire(); err != nil {
		return f.State(), err
	}
	defer f.release()

	if err := f.expect("submit", StateCheckInForm); err != nil {
		return f.State(), err
	}

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return f.State(), fmt.Errorf("%w: name is required", ErrInvalidAttendee)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return f.State(), fmt.Errorf("%w: email address is not valid", ErrInvalidAttendee)
	}

	if f.token == "" {
		return f.setState(StateError, "QR code expired or invalid, please scan again"), nil
	}

	sub := Submission{EventID: f.eventID, Name: name, Email: email, Token: f.token}
	f.mu.RLock()
	if f.position != nil {
		sub.Lat, sub.Lng = f.position.Lat, f.position.Lng
	}
	f.mu.RUnlock()

	if err := f.submitter.Submit(ctx, sub); err != nil {
		var rejected *RejectedError
		if errors.As(err, &rejected) && rejected.Message != "" {
			return f.setState(StateError, rejected.Message), nil
		}
		f.setState(StateError, "Check-in failed. Please try again.")
		return StateError, fmt.Errorf("failed to submit check-in: %w", err)
	}

	if f.markers != nil {
		if err := f.markers.Set(f.eventID, f.clock.Now()); err != nil {
			f.logger.WithError(err).WithField("event_id", f.eventID).Warn("Failed to store check-in marker")
		}
	}
	return f.setState(StateSuccess, ""), nil
}

// Retry leaves the error state for location verification when a token is
// present, or for the QR prompt when it is not.
func (f *Flow) Retry() (State, error) {
	if err := f.acquire(); err != nil {
		return f.State(), err
	}
	defer f.release()

	if err := f.expect("retry", StateError); err != nil {
		return f.State(), err
	}
	if f.Event() == nil {
		return f.setState(StateLoading, ""), nil
	}

	f.mu.Lock()
	f.position = nil
	f.mu.Unlock()

	if f.token == "" {
		return f.setState(StateQRRequired, ""), nil
	}
	return f.setState(StateLocationVerification, ""), nil
}
