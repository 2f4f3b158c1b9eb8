package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/CheckinBoT/internal/models"
)

func (h *harness) token(t *testing.T, eventID string, issuedAt time.Time) string {
	t.Helper()
	token, err := h.signer.Issue(eventID, issuedAt)
	require.NoError(t, err)
	return token
}

func TestCheckIn_Success(t *testing.T) {
	h := newHarness(t)
	notifier := &fakeNotifier{}
	h.svc.SetNotifier(notifier)

	event := openEvent(42, 7)
	h.expectEvent(event)
	h.attendance.On("Create", mock.Anything, mock.MatchedBy(func(a *models.Attendance) bool {
		return a.EventID == 42 && a.Name == "Ada Lovelace" && a.Email == "ada@example.com" &&
			a.Lat == 52.5222 && a.CheckedInAt.Equal(testNow)
	})).Return(&models.Attendance{ID: 1, EventID: 42, Name: "Ada Lovelace", Email: "ada@example.com"}, nil).Once()
	h.orgs.On("GetByID", mock.Anything, int64(7)).Return(&models.Organization{ID: 7, TelegramChatID: int64Ptr(-1001)}, nil).Once()
	h.attendance.On("CountByEvent", mock.Anything, int64(42)).Return(3, nil).Once()

	record, err := h.svc.CheckIn(context.Background(), 42, CheckInRequest{
		Name:  "  Ada Lovelace ",
		Email: "ada@example.com",
		Lat:   52.5222,
		Lng:   13.4135,
		Token: h.token(t, "42", testNow.Add(-10*time.Second)),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), record.ID)

	require.Len(t, notifier.got, 1)
	assert.Equal(t, int64(-1001), notifier.got[0].chatID)
	assert.Equal(t, 3, notifier.got[0].total)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.CheckInCounter("success")))
}

func TestCheckIn_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		event   func(*models.Event)
		req     func(h *harness, t *testing.T) CheckInRequest
		reason  error
		message string
		outcome string
	}{
		{
			name: "registration not started",
			event: func(e *models.Event) {
				e.StartTime = testNow.Add(time.Hour)
				e.EndTime = testNow.Add(2 * time.Hour)
			},
			reason:  ErrRegistrationNotOpen,
			message: "Registration has not opened yet",
			outcome: "not_started",
		},
		{
			name: "registration over",
			event: func(e *models.Event) {
				e.StartTime = testNow.Add(-3 * time.Hour)
				e.EndTime = testNow.Add(-2 * time.Hour)
			},
			reason:  ErrRegistrationNotOpen,
			message: "Registration for this event is closed",
			outcome: "closed",
		},
		{
			name:    "manually closed",
			event:   func(e *models.Event) { e.IsClosed = true },
			reason:  ErrRegistrationNotOpen,
			message: "Registration has been closed by the organizer",
			outcome: "manually_closed",
		},
		{
			name: "expired token",
			req: func(h *harness, t *testing.T) CheckInRequest {
				return CheckInRequest{Name: "Ada", Email: "ada@example.com", Lat: 52.5222, Lng: 13.4135,
					Token: h.token(t, "42", testNow.Add(-61*time.Second))}
			},
			reason:  ErrInvalidToken,
			message: "QR code expired or invalid, please scan again",
			outcome: "invalid_token",
		},
		{
			name: "token for another event",
			req: func(h *harness, t *testing.T) CheckInRequest {
				return CheckInRequest{Name: "Ada", Email: "ada@example.com", Lat: 52.5222, Lng: 13.4135,
					Token: h.token(t, "43", testNow)}
			},
			reason:  ErrInvalidToken,
			message: "QR code expired or invalid, please scan again",
			outcome: "invalid_token",
		},
		{
			name: "missing token",
			req: func(h *harness, t *testing.T) CheckInRequest {
				return CheckInRequest{Name: "Ada", Email: "ada@example.com", Lat: 52.5222, Lng: 13.4135}
			},
			reason:  ErrInvalidToken,
			message: "QR code expired or invalid, please scan again",
			outcome: "invalid_token",
		},
		{
			name: "outside radius",
			req: func(h *harness, t *testing.T) CheckInRequest {
				return CheckInRequest{Name: "Ada", Email: "ada@example.com", Lat: 52.5250, Lng: 13.4132,
					Token: h.token(t, "42", testNow)}
			},
			reason:  ErrOutsideRadius,
			message: "You are 345m from the event location. You must be within 100m to check in.",
			outcome: "outside_radius",
		},
		{
			name: "coordinates out of range",
			req: func(h *harness, t *testing.T) CheckInRequest {
				return CheckInRequest{Name: "Ada", Email: "ada@example.com", Lat: 91, Lng: 13.4132,
					Token: h.token(t, "42", testNow)}
			},
			reason:  ErrInvalidCoordinates,
			message: "A valid location is required to check in",
			outcome: "invalid_coordinates",
		},
		{
			name: "missing name",
			req: func(h *harness, t *testing.T) CheckInRequest {
				return CheckInRequest{Name: " ", Email: "ada@example.com", Token: h.token(t, "42", testNow)}
			},
			reason:  ErrInvalidAttendee,
			message: "Name and a valid email address are required",
			outcome: "invalid_attendee",
		},
		{
			name: "bad email",
			req: func(h *harness, t *testing.T) CheckInRequest {
				return CheckInRequest{Name: "Ada", Email: "Ada <ada@example.com>", Token: h.token(t, "42", testNow)}
			},
			reason:  ErrInvalidAttendee,
			message: "Name and a valid email address are required",
			outcome: "invalid_attendee",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			event := openEvent(42, 7)
			if tt.event != nil {
				tt.event(event)
			}
			h.expectEvent(event)

			req := CheckInRequest{Name: "Ada", Email: "ada@example.com", Lat: 52.5222, Lng: 13.4135,
				Token: h.token(t, "42", testNow)}
			if tt.req != nil {
				req = tt.req(h, t)
			}

			record, err := h.svc.CheckIn(context.Background(), 42, req)
			require.Error(t, err)
			assert.Nil(t, record)
			assert.ErrorIs(t, err, tt.reason)

			var rejection *RejectionError
			require.True(t, errors.As(err, &rejection))
			assert.Equal(t, tt.message, rejection.Message)
			assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.CheckInCounter(tt.outcome)))
			h.attendance.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCheckIn_CountsTokenRejectionReason(t *testing.T) {
	h := newHarness(t)
	h.expectEvent(openEvent(42, 7))

	_, err := h.svc.CheckIn(context.Background(), 42, CheckInRequest{
		Name: "Ada", Email: "ada@example.com", Token: h.token(t, "42", testNow.Add(time.Minute)),
	})
	require.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.TokenRejectionCounter("future_timestamp")))
}

func TestCheckIn_EventWithoutLocationSkipsGeofence(t *testing.T) {
	h := newHarness(t)
	event := openEvent(42, 7)
	event.LocationLat, event.LocationLng = nil, nil
	h.expectEvent(event)
	h.attendance.On("Create", mock.Anything, mock.Anything).
		Return(&models.Attendance{ID: 5, EventID: 42}, nil).Once()

	_, err := h.svc.CheckIn(context.Background(), 42, CheckInRequest{
		Name: "Ada", Email: "ada@example.com", Token: h.token(t, "42", testNow),
	})
	require.NoError(t, err)
}

func TestCheckIn_BoundaryInstantsAreOpen(t *testing.T) {
	for name, now := range map[string]time.Time{
		"window opens":  testNow.Add(-15 * time.Minute),
		"window closes": testNow.Add(time.Hour + 30*time.Minute),
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			h.svc.now = func() time.Time { return now }
			event := openEvent(42, 7)
			event.LocationLat, event.LocationLng = nil, nil
			h.expectEvent(event)
			h.attendance.On("Create", mock.Anything, mock.Anything).
				Return(&models.Attendance{ID: 5, EventID: 42}, nil).Once()

			_, err := h.svc.CheckIn(context.Background(), 42, CheckInRequest{
				Name: "Ada", Email: "ada@example.com", Token: h.token(t, "42", now),
			})
			require.NoError(t, err)
		})
	}
}

func TestCheckIn_UnknownEvent(t *testing.T) {
	h := newHarness(t)
	h.events.On("GetByID", mock.Anything, int64(404)).Return(nil, nil).Once()

	_, err := h.svc.CheckIn(context.Background(), 404, CheckInRequest{Name: "Ada", Email: "ada@example.com"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckIn_StoreFailure(t *testing.T) {
	h := newHarness(t)
	h.expectEvent(openEvent(42, 7))
	h.attendance.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset")).Once()

	_, err := h.svc.CheckIn(context.Background(), 42, CheckInRequest{
		Name: "Ada", Email: "ada@example.com", Lat: 52.5222, Lng: 13.4135, Token: h.token(t, "42", testNow),
	})
	require.Error(t, err)

	var rejection *RejectionError
	assert.False(t, errors.As(err, &rejection))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.CheckInCounter("error")))
}
