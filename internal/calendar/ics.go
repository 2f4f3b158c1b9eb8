// Package calendar exports events as iCalendar feeds.
package calendar

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/Kerhoff/CheckinBoT/internal/models"
)

const productID = "-//CheckinBoT//Events//EN"

// LinkFunc returns the attendee page of an event.
type LinkFunc func(eventID int64) string

// Export renders events as a single VCALENDAR named name. Each event gets a
// stable UID so calendar clients update rather than duplicate it.
func Export(name string, events []*models.Event, link LinkFunc, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, e := range events {
		ve := cal.AddEvent(UID(e.ID))
		ve.SetDtStampTime(now.UTC())
		if !e.CreatedAt.IsZero() {
			ve.SetCreatedTime(e.CreatedAt.UTC())
		}
		if !e.UpdatedAt.IsZero() {
			ve.SetModifiedAt(e.UpdatedAt.UTC())
		}
		ve.SetStartAt(e.StartTime.UTC())
		ve.SetEndAt(e.EndTime.UTC())
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		if e.LocationAddress != "" {
			ve.SetLocation(e.LocationAddress)
		}
		if e.HasLocation() {
			ve.SetGeo(*e.LocationLat, *e.LocationLng)
		}
		if link != nil {
			ve.SetURL(link(e.ID))
		}
		if e.IsClosed {
			ve.SetStatus(ics.ObjectStatusCancelled)
		} else {
			ve.SetStatus(ics.ObjectStatusConfirmed)
		}
	}

	return cal.Serialize()
}

// UID is the iCalendar UID of an event.
func UID(eventID int64) string {
	return fmt.Sprintf("event-%d@checkinbot", eventID)
}

// Filename turns a title into a safe .ics file name.
func Filename(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = "events"
	}
	return name + ".ics"
}
