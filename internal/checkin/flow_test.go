package checkin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/CheckinBoT/internal/geo"
	"github.com/Kerhoff/CheckinBoT/internal/models"
	"github.com/Kerhoff/CheckinBoT/internal/qrtoken"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// After jumps the clock forward instead of sleeping.
func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.Advance(d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

type fakeEvents struct {
	event *models.Event
	err   error
	calls int
}

func (f *fakeEvents) GetEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.event == nil || f.event.ID != eventID {
		return nil, ErrEventNotFound
	}
	return f.event, nil
}

// verifyingSubmitter checks the token the way the server does.
type verifyingSubmitter struct {
	signer *qrtoken.Signer
	clock  *fakeClock
	got    []Submission
	err    error
}

func (s *verifyingSubmitter) Submit(ctx context.Context, sub Submission) error {
	s.got = append(s.got, sub)
	if s.err != nil {
		return s.err
	}
	if v := s.signer.Verify("1", sub.Token, s.clock.Now()); !v.Valid {
		return &RejectedError{StatusCode: 400, Message: "QR code expired or invalid, please scan again"}
	}
	return nil
}

var center = geo.Point{Lat: 52.5200, Lng: 13.4050}

// metersNorth is roughly how far north of center a point lies, using
// 111.195km per degree of latitude on the 6371km sphere.
func metersNorth(m float64) geo.Point {
	return geo.Point{Lat: center.Lat + m/111194.93, Lng: center.Lng}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testEvent(start time.Time) *models.Event {
	lat, lng := center.Lat, center.Lng
	return &models.Event{
		ID:                              1,
		Title:                           "Morning run",
		StartTime:                       start,
		EndTime:                         start.Add(time.Hour),
		LocationLat:                     &lat,
		LocationLng:                     &lng,
		LocationRadiusMeters:            50,
		RegistrationWindowBeforeMinutes: 10,
		RegistrationWindowAfterMinutes:  15,
	}
}

type harness struct {
	clock     *fakeClock
	events    *fakeEvents
	markers   *MemoryMarkers
	signer    *qrtoken.Signer
	submitter *verifyingSubmitter
	locator   *StaticLocator
}

func newHarness(t *testing.T, now time.Time, event *models.Event) *harness {
	t.Helper()
	signer, err := qrtoken.NewSigner(qrtoken.StaticSecret("flow-secret"))
	require.NoError(t, err)
	clock := &fakeClock{now: now}
	return &harness{
		clock:     clock,
		events:    &fakeEvents{event: event},
		markers:   NewMemoryMarkers(),
		signer:    signer,
		submitter: &verifyingSubmitter{signer: signer, clock: clock},
		locator:   &StaticLocator{Point: metersNorth(40)},
	}
}

func (h *harness) flow(token string) *Flow {
	return NewFlow(Config{
		EventID:   1,
		Token:     token,
		Events:    h.events,
		Locator:   h.locator,
		Submitter: h.submitter,
		Markers:   h.markers,
		Clock:     h.clock,
		Logger:    quietLogger(),
	})
}

func (h *harness) token(t *testing.T) string {
	t.Helper()
	tok, err := h.signer.Issue("1", h.clock.Now())
	require.NoError(t, err)
	return tok
}

func TestFlow_EndToEnd(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	// window opens 10 minutes before start, i.e. in 5 minutes
	h := newHarness(t, now, testEvent(now.Add(15*time.Minute)))
	ctx := context.Background()

	f := h.flow("")
	state, err := f.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateCountdown, state)
	assert.Equal(t, now.Add(5*time.Minute), f.OpensAt())

	h.clock.Advance(5*time.Minute + time.Second)
	state, err = f.Resume()
	require.NoError(t, err)
	assert.Equal(t, StateQRRequired, state)
	assert.False(t, f.HasToken())

	f = h.flow(h.token(t))
	state, err = f.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateLocationVerification, state)

	state, err = f.VerifyLocation(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateCheckInForm, state)

	state, err = f.Submit(ctx, "Ada Lovelace", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, state)
	assert.True(t, state.IsTerminal())

	require.Len(t, h.submitter.got, 1)
	sub := h.submitter.got[0]
	assert.Equal(t, int64(1), sub.EventID)
	assert.Equal(t, "Ada Lovelace", sub.Name)
	assert.InDelta(t, metersNorth(40).Lat, sub.Lat, 1e-9)
	assert.True(t, h.markers.Has(1, h.clock.Now()))

	reloaded := h.flow(h.token(t))
	state, err = reloaded.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateAlreadyCheckedIn, state)
}

func TestFlow_WaitCountdown(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	h := newHarness(t, now, testEvent(now.Add(15*time.Minute)))
	f := h.flow(h.token(t))

	state, err := f.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateCountdown, state)

	state, err = f.WaitCountdown(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateLocationVerification, state)
	assert.Equal(t, now.Add(5*time.Minute), h.clock.Now())
}

func TestFlow_WaitCountdownCancelled(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	h := newHarness(t, now, testEvent(now.Add(15*time.Minute)))
	f := h.flow("")
	_, err := f.Load(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// the fake clock fires immediately as well, so select may pick either
	state, err := f.WaitCountdown(ctx)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, StateCountdown, state)
	} else {
		assert.Equal(t, StateQRRequired, state)
	}
}

func TestFlow_ResumeTooEarly(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	h := newHarness(t, now, testEvent(now.Add(15*time.Minute)))
	f := h.flow("")
	_, err := f.Load(context.Background())
	require.NoError(t, err)

	h.clock.Advance(4 * time.Minute)
	state, err := f.Resume()
	require.NoError(t, err)
	assert.Equal(t, StateCountdown, state)
	assert.Equal(t, 1, h.events.calls, "resume does not refetch the event")
}

func TestFlow_LoadOutcomes(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		event  func() *models.Event
		marked bool
		token  bool
		want   State
	}{
		{
			name:  "unknown event",
			event: func() *models.Event { return nil },
			want:  StateNotFound,
		},
		{
			name: "manually closed during open window",
			event: func() *models.Event {
				ev := testEvent(now)
				ev.IsClosed = true
				return ev
			},
			token: true,
			want:  StateClosed,
		},
		{
			name:  "window over",
			event: func() *models.Event { return testEvent(now.Add(-2 * time.Hour)) },
			token: true,
			want:  StateClosed,
		},
		{
			name:   "marker beats closed",
			event:  func() *models.Event { return testEvent(now.Add(-2 * time.Hour)) },
			marked: true,
			want:   StateAlreadyCheckedIn,
		},
		{
			name:  "open without token",
			event: func() *models.Event { return testEvent(now) },
			want:  StateQRRequired,
		},
		{
			name:  "open at exact window end",
			event: func() *models.Event { return testEvent(now.Add(-75 * time.Minute)) },
			token: true,
			want:  StateLocationVerification,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, now, tt.event())
			if tt.marked {
				require.NoError(t, h.markers.Set(1, now))
			}
			tok := ""
			if tt.token {
				tok = h.token(t)
			}

			state, err := h.flow(tok).Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, state)
		})
	}
}

func TestFlow_LoadTransportError(t *testing.T) {
	h := newHarness(t, time.Now(), nil)
	h.events.err = errors.New("connection refused")

	f := h.flow("")
	state, err := f.Load(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StateError, state)
	assert.NotEmpty(t, f.Message())
}

func TestFlow_LocationFailures(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		locator StaticLocator
		want    string
	}{
		{
			name:    "denied",
			locator: StaticLocator{Err: &LocationError{Kind: LocationPermissionDenied}},
			want:    "Location permission was denied. Allow location access to check in.",
		},
		{
			name:    "unavailable",
			locator: StaticLocator{Err: &LocationError{Kind: LocationUnavailable}},
			want:    "Your location is unavailable. Please try again.",
		},
		{
			name:    "timeout",
			locator: StaticLocator{Err: &LocationError{Kind: LocationTimeout}},
			want:    "Timed out while getting your location. Please try again.",
		},
		{
			name:    "deadline from provider",
			locator: StaticLocator{Err: context.DeadlineExceeded},
			want:    "Timed out while getting your location. Please try again.",
		},
		{
			name:    "out of radius",
			locator: StaticLocator{Point: metersNorth(60)},
			want:    "You are 60m from the event location. You must be within 50m to check in.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, now, testEvent(now))
			*h.locator = tt.locator
			f := h.flow(h.token(t))
			_, err := f.Load(context.Background())
			require.NoError(t, err)

			state, err := f.VerifyLocation(context.Background())
			require.NoError(t, err)
			assert.Equal(t, StateError, state)
			assert.Equal(t, tt.want, f.Message())
			assert.False(t, state.IsTerminal())

			state, err = f.Retry()
			require.NoError(t, err)
			assert.Equal(t, StateLocationVerification, state)
		})
	}
}

func TestFlow_SkipsGeofenceWithoutCoordinates(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	ev := testEvent(now)
	ev.LocationLat, ev.LocationLng = nil, nil
	h := newHarness(t, now, ev)
	h.locator.Err = &LocationError{Kind: LocationPermissionDenied}

	f := h.flow(h.token(t))
	_, err := f.Load(context.Background())
	require.NoError(t, err)

	state, err := f.VerifyLocation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCheckInForm, state)
}

func TestFlow_SubmitValidatesAttendee(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, now, testEvent(now))
	f := h.flow(h.token(t))
	_, err := f.Load(context.Background())
	require.NoError(t, err)
	_, err = f.VerifyLocation(context.Background())
	require.NoError(t, err)

	state, err := f.Submit(context.Background(), "  ", "ada@example.com")
	assert.ErrorIs(t, err, ErrInvalidAttendee)
	assert.Equal(t, StateCheckInForm, state)

	state, err = f.Submit(context.Background(), "Ada", "not-an-email")
	assert.ErrorIs(t, err, ErrInvalidAttendee)
	assert.Equal(t, StateCheckInForm, state)

	state, err = f.Submit(context.Background(), "Ada", "Ada <ada@example.com>")
	assert.ErrorIs(t, err, ErrInvalidAttendee)
	assert.Equal(t, StateCheckInForm, state)

	assert.Empty(t, h.submitter.got)
}

func TestFlow_SubmitWithExpiredToken(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, now, testEvent(now))
	f := h.flow(h.token(t))
	_, err := f.Load(context.Background())
	require.NoError(t, err)
	_, err = f.VerifyLocation(context.Background())
	require.NoError(t, err)

	h.clock.Advance(2 * time.Minute)
	state, err := f.Submit(context.Background(), "Ada", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, StateError, state)
	assert.Equal(t, "QR code expired or invalid, please scan again", f.Message())
	assert.False(t, h.markers.Has(1, h.clock.Now()))

	state, err = f.Retry()
	require.NoError(t, err)
	assert.Equal(t, StateLocationVerification, state)
}

func TestFlow_SubmitTransportError(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, now, testEvent(now))
	h.submitter.err = errors.New("connection reset")
	f := h.flow(h.token(t))
	_, err := f.Load(context.Background())
	require.NoError(t, err)
	_, err = f.VerifyLocation(context.Background())
	require.NoError(t, err)

	state, err := f.Submit(context.Background(), "Ada", "ada@example.com")
	assert.Error(t, err)
	assert.Equal(t, StateError, state)
	assert.Equal(t, "Check-in failed. Please try again.", f.Message())
}

func TestFlow_RetryWithoutToken(t *testing.T) {
	h := newHarness(t, time.Now(), nil)
	h.events.err = errors.New("boom")
	f := h.flow("")
	_, _ = f.Load(context.Background())
	require.Equal(t, StateError, f.State())

	state, err := f.Retry()
	require.NoError(t, err)
	assert.Equal(t, StateLoading, state, "nothing loaded yet, so retry starts over")
}

func TestFlow_InvalidTransitions(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, now, testEvent(now))
	f := h.flow("")

	_, err := f.VerifyLocation(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.Submit(context.Background(), "Ada", "ada@example.com")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.Resume()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.Retry()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

type blockingLocator struct {
	entered chan struct{}
	release chan struct{}
}

func (l *blockingLocator) Locate(ctx context.Context) (geo.Point, error) {
	close(l.entered)
	<-l.release
	return metersNorth(10), nil
}

func TestFlow_RejectsConcurrentOperations(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, now, testEvent(now))
	loc := &blockingLocator{entered: make(chan struct{}), release: make(chan struct{})}

	f := NewFlow(Config{
		EventID:   1,
		Token:     h.token(t),
		Events:    h.events,
		Locator:   loc,
		Submitter: h.submitter,
		Markers:   h.markers,
		Clock:     h.clock,
		Logger:    quietLogger(),
	})
	_, err := f.Load(context.Background())
	require.NoError(t, err)

	done := make(chan State)
	go func() {
		s, _ := f.VerifyLocation(context.Background())
		done <- s
	}()

	<-loc.entered
	_, err = f.VerifyLocation(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	_, err = f.Load(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(loc.release)
	assert.Equal(t, StateCheckInForm, <-done)
}

func TestFlow_LocationTimeoutApplied(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, now, testEvent(now))

	var deadline time.Time
	loc := locatorFunc(func(ctx context.Context) (geo.Point, error) {
		deadline, _ = ctx.Deadline()
		return metersNorth(0), nil
	})
	f := NewFlow(Config{EventID: 1, Token: h.token(t), Events: h.events, Locator: loc, Clock: h.clock, Logger: quietLogger()})
	_, err := f.Load(context.Background())
	require.NoError(t, err)

	start := time.Now()
	_, err = f.VerifyLocation(context.Background())
	require.NoError(t, err)
	assert.WithinDuration(t, start.Add(LocationRequestTimeout), deadline, 2*time.Second)
}

type locatorFunc func(ctx context.Context) (geo.Point, error)

func (fn locatorFunc) Locate(ctx context.Context) (geo.Point, error) { return fn(ctx) }
