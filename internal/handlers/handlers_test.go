package handlers

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/CheckinBoT/internal/auth"
	"github.com/Kerhoff/CheckinBoT/internal/models"
	"github.com/Kerhoff/CheckinBoT/internal/qrtoken"
	"github.com/Kerhoff/CheckinBoT/internal/repository/mocks"
	"github.com/Kerhoff/CheckinBoT/internal/service"
)

const chatID int64 = -1001

var now = time.Date(2025, 6, 3, 18, 0, 0, 0, time.UTC)

type fixture struct {
	svc        *service.Service
	logger     *logrus.Logger
	orgs       *mocks.OrganizationRepository
	events     *mocks.EventRepository
	attendance *mocks.AttendanceRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	signer, err := qrtoken.NewSigner(qrtoken.StaticSecret("bot-secret"))
	require.NoError(t, err)
	tokens, err := auth.NewTokens("jwt-secret", time.Hour)
	require.NoError(t, err)

	f := &fixture{
		logger:     logger,
		orgs:       &mocks.OrganizationRepository{},
		events:     &mocks.EventRepository{},
		attendance: &mocks.AttendanceRepository{},
	}
	f.svc = service.New(logger, service.Options{PublicBaseURL: "https://checkin.example.com"}, service.Repositories{
		Organizations: f.orgs,
		Patterns:      &mocks.PatternRepository{},
		Events:        f.events,
		Attendance:    f.attendance,
		Messages:      &mocks.MessageRepository{},
	}, signer, tokens, nil, nil)

	t.Cleanup(func() {
		f.orgs.AssertExpectations(t)
		f.events.AssertExpectations(t)
		f.attendance.AssertExpectations(t)
	})
	return f
}

func (f *fixture) linked() {
	id := chatID
	f.orgs.On("GetByTelegramChatID", mock.Anything, chatID).
		Return(&models.Organization{ID: 3, Name: "Run_Club", TelegramChatID: &id}, nil)
}

func (f *fixture) unlinked() {
	f.orgs.On("GetByTelegramChatID", mock.Anything, chatID).Return(nil, nil)
}

func event(id int64, start time.Time) *models.Event {
	return &models.Event{
		ID:                              id,
		OrganizationID:                  3,
		Title:                           "Tuesday run",
		StartTime:                       start,
		EndTime:                         start.Add(time.Hour),
		Timezone:                        "Europe/Berlin",
		RegistrationWindowBeforeMinutes: 15,
		RegistrationWindowAfterMinutes:  30,
	}
}

func TestStart(t *testing.T) {
	t.Run("unlinked chat shows its ID", func(t *testing.T) {
		f := newFixture(t)
		f.unlinked()

		text, err := NewStartHandler(f.svc, f.logger).reply(context.Background(), chatID)
		require.NoError(t, err)
		assert.Contains(t, text, "`-1001`")
	})

	t.Run("linked chat names the organization", func(t *testing.T) {
		f := newFixture(t)
		f.linked()

		text, err := NewStartHandler(f.svc, f.logger).reply(context.Background(), chatID)
		require.NoError(t, err)
		assert.Contains(t, text, `Linked to *Run\_Club*`)
	})
}

func TestEvents(t *testing.T) {
	f := newFixture(t)
	f.linked()

	past := event(1, now.Add(-6*time.Hour))
	live := event(2, now.Add(5*time.Minute))
	later := event(3, now.Add(48*time.Hour))
	later.IsClosed = true
	f.events.On("GetByOrganization", mock.Anything, int64(3), mock.Anything).
		Return([]*models.Event{past, live, later}, nil)

	h := NewEventsHandler(f.svc, f.logger)
	h.now = func() time.Time { return now }

	text, err := h.reply(context.Background(), chatID)
	require.NoError(t, err)
	assert.NotContains(t, text, "#1")
	assert.Contains(t, text, "*#2* Tuesday run")
	assert.Contains(t, text, "Tue 03 Jun 20:05 CEST · 🟢 open")
	assert.Contains(t, text, "*#3*")
	assert.Contains(t, text, "🔴 closed")
}

func TestEvents_NotLinked(t *testing.T) {
	f := newFixture(t)
	f.unlinked()

	text, err := NewEventsHandler(f.svc, f.logger).reply(context.Background(), chatID)
	require.NoError(t, err)
	assert.Equal(t, notLinkedText, text)
}

func TestCloseAndReopen(t *testing.T) {
	f := newFixture(t)
	f.linked()
	f.events.On("GetByID", mock.Anything, int64(2)).Return(event(2, now), nil)
	f.events.On("SetClosed", mock.Anything, int64(2), true).Return(nil).Once()
	f.events.On("SetClosed", mock.Anything, int64(2), false).Return(nil).Once()

	text, err := NewCloseHandler(f.svc, f.logger).reply(context.Background(), chatID, []string{"2"})
	require.NoError(t, err)
	assert.Contains(t, text, "are closed")

	text, err = NewReopenHandler(f.svc, f.logger).reply(context.Background(), chatID, []string{"2"})
	require.NoError(t, err)
	assert.Contains(t, text, "accepted again")
}

func TestClose_Usage(t *testing.T) {
	f := newFixture(t)
	f.linked()

	for _, args := range [][]string{nil, {"abc"}, {"0"}, {"1", "2"}} {
		_, err := NewCloseHandler(f.svc, f.logger).reply(context.Background(), chatID, args)
		text, err := replyFor(err)
		require.NoError(t, err)
		assert.Equal(t, "ℹ️ Usage: `/close <event id>`", text)
	}
}

func TestAttendees(t *testing.T) {
	f := newFixture(t)
	f.linked()
	f.events.On("GetByID", mock.Anything, int64(2)).Return(event(2, now), nil)
	f.attendance.On("GetByEvent", mock.Anything, int64(2)).Return([]*models.Attendance{
		{ID: 1, EventID: 2, Name: "Ada", Email: "ada@example.com"},
		{ID: 2, EventID: 2, Name: "Grace", Email: "grace_h@example.com"},
	}, nil)

	text, err := NewAttendeesHandler(f.svc, f.logger).reply(context.Background(), chatID, []string{"2"})
	require.NoError(t, err)
	assert.Contains(t, text, "*2 checked in*")
	assert.Contains(t, text, "1. Ada (ada@example.com)")
	assert.Contains(t, text, `2. Grace (grace\_h@example.com)`)
}

func TestAttendees_OtherOrganization(t *testing.T) {
	f := newFixture(t)
	f.linked()
	foreign := event(2, now)
	foreign.OrganizationID = 9
	f.events.On("GetByID", mock.Anything, int64(2)).Return(foreign, nil)

	_, err := NewAttendeesHandler(f.svc, f.logger).reply(context.Background(), chatID, []string{"2"})
	text, err := replyFor(err)
	require.NoError(t, err)
	assert.Equal(t, notFoundText, text)
}

func TestQR(t *testing.T) {
	f := newFixture(t)
	f.linked()
	f.events.On("GetByID", mock.Anything, int64(2)).Return(event(2, now), nil)

	text, err := NewQRHandler(f.svc, f.logger).reply(context.Background(), chatID, []string{"2"})
	require.NoError(t, err)
	assert.Contains(t, text, "https://checkin.example.com/checkin/2?qr=")
}

func TestReplyFor_PassesThroughFailures(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := replyFor(boom)
	assert.ErrorIs(t, err, boom)
}

func TestHelpListsCommands(t *testing.T) {
	for _, cmd := range []string{"/events", "/close", "/reopen", "/attendees", "/qr"} {
		assert.True(t, strings.Contains(helpText, cmd), cmd)
	}
}
