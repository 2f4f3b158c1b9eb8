package calendar

import (
	"strconv"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/CheckinBoT/internal/models"
)

func TestExport_RoundTrip(t *testing.T) {
	lat, lng := 52.5219, 13.4132
	start := time.Date(2025, 1, 6, 18, 0, 0, 0, time.UTC)
	events := []*models.Event{
		{
			ID:              1,
			Title:           "Monday training",
			Description:     "Bring water",
			LocationAddress: "Alexanderplatz Berlin",
			LocationLat:     &lat,
			LocationLng:     &lng,
			StartTime:       start,
			EndTime:         start.Add(90 * time.Minute),
		},
		{
			ID:        2,
			Title:     "Wednesday training",
			StartTime: start.Add(48 * time.Hour),
			EndTime:   start.Add(48*time.Hour + 90*time.Minute),
			IsClosed:  true,
		},
	}

	out := Export("Run Club", events, func(id int64) string {
		return "https://checkin.example.com/checkin/" + strconv.FormatInt(id, 10)
	}, start)

	cal, err := ics.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	parsed := cal.Events()
	require.Len(t, parsed, 2)

	first := parsed[0]
	assert.Equal(t, "event-1@checkinbot", first.Id())
	assert.Equal(t, "Monday training", first.GetProperty(ics.ComponentPropertySummary).Value)
	assert.Equal(t, "Alexanderplatz Berlin", first.GetProperty(ics.ComponentPropertyLocation).Value)
	assert.Equal(t, "https://checkin.example.com/checkin/1", first.GetProperty(ics.ComponentPropertyUrl).Value)

	gotStart, err := first.GetStartAt()
	require.NoError(t, err)
	assert.True(t, gotStart.Equal(start))
	gotEnd, err := first.GetEndAt()
	require.NoError(t, err)
	assert.True(t, gotEnd.Equal(start.Add(90*time.Minute)))

	assert.Equal(t, string(ics.ObjectStatusCancelled), parsed[1].GetProperty(ics.ComponentPropertyStatus).Value)
	assert.Contains(t, out, "X-WR-CALNAME:Run Club")
}

func TestExport_Empty(t *testing.T) {
	out := Export("", nil, nil, time.Now())
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.NotContains(t, out, "BEGIN:VEVENT")
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "monday-training.ics", Filename(" Monday Training "))
	assert.Equal(t, "caf-night.ics", Filename("Café night!"))
	assert.Equal(t, "events.ics", Filename("???"))
}
