package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/Kerhoff/CheckinBoT/internal/models"
)

const (
	// DefaultMaxInstances caps how many events one pattern can produce.
	DefaultMaxInstances = 100

	// maxScanDays bounds each search for the next occurrence.
	maxScanDays = 365 * 2
)

// ErrInvalidPattern is returned by Generate when the pattern fails Validate.
var ErrInvalidPattern = errors.New("invalid recurrence pattern")

// civilDate is a calendar day with no time zone attached. All pattern
// arithmetic happens on civil dates so that DST shifts in the pattern's
// timezone cannot move the scan cursor off midnight.
type civilDate struct {
	t time.Time // midnight UTC
}

func (d civilDate) next() civilDate {
	return civilDate{t: d.t.AddDate(0, 0, 1)}
}

func (d civilDate) after(o civilDate) bool {
	return d.t.After(o.t)
}

func (d civilDate) weekday() int {
	return int(d.t.Weekday())
}

func (d civilDate) day() int {
	return d.t.Day()
}

func (d civilDate) daysSince(o civilDate) int {
	return int(d.t.Sub(o.t).Hours() / 24)
}

func (d civilDate) monthsSince(o civilDate) int {
	return (d.t.Year()-o.t.Year())*12 + int(d.t.Month()) - int(o.t.Month())
}

// at combines the date with a wall-clock time in loc. A wall clock that falls
// in a spring-forward gap is resolved with the offset in effect before the
// gap, so 02:30 on a night that skips 02:00-03:00 becomes 03:30 local.
func (d civilDate) at(hour, minute, second int, loc *time.Location) time.Time {
	t := time.Date(d.t.Year(), d.t.Month(), d.t.Day(), hour, minute, second, 0, loc)
	if local := t.In(loc); local.Hour() == hour && local.Minute() == minute {
		return t
	}

	_, offset := t.Add(-12 * time.Hour).Zone()
	wall := time.Date(d.t.Year(), d.t.Month(), d.t.Day(), hour, minute, second, 0, time.UTC)
	return wall.Add(-time.Duration(offset) * time.Second).In(loc)
}

// WeekOfMonth returns the ordinal week a day of the month falls in: days 1-7
// are week 1, 8-14 week 2 and so on.
func WeekOfMonth(dayOfMonth int) int {
	return (dayOfMonth + 6) / 7
}

// Generate expands p into chronologically ordered event drafts, stopping at
// maxInstances (DefaultMaxInstances when <= 0), at the pattern's end date, or
// when no further occurrence exists within two years of the previous one.
// The output depends only on p, never on the current time.
//
// An empty, non-nil slice means the pattern is valid but produced nothing;
// callers should treat that as a failure.
func Generate(p *models.RecurrencePattern, maxInstances int) ([]*models.Event, error) {
	if res := Validate(p); !res.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, res.Err())
	}
	if maxInstances <= 0 {
		maxInstances = DefaultMaxInstances
	}

	loc, err := location(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}

	s, err := newScanner(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}

	hour, minute, second, err := parseClock(p.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	duration := time.Duration(p.DurationMinutes) * time.Minute

	events := make([]*models.Event, 0)
	cursor := s.start
	for len(events) < maxInstances {
		date, ok := s.nextFrom(cursor)
		if !ok {
			break
		}

		start := date.at(hour, minute, second, loc)
		events = append(events, draft(p, start.UTC(), start.Add(duration).UTC()))

		cursor = date.next()
	}

	return events, nil
}

type scanner struct {
	p     *models.RecurrencePattern
	start civilDate
	end   *civilDate
}

func newScanner(p *models.RecurrencePattern) (*scanner, error) {
	start, err := parseDate(p.StartDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse start date: %w", err)
	}
	s := &scanner{p: p, start: civilDate{t: start}}

	if p.EndDate != nil && *p.EndDate != "" {
		end, err := parseDate(*p.EndDate, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse end date: %w", err)
		}
		s.end = &civilDate{t: end}
	}
	return s, nil
}

// nextFrom returns the first date on or after from that matches the pattern
// and its interval. It gives up past the end date or after maxScanDays.
func (s *scanner) nextFrom(from civilDate) (civilDate, bool) {
	d := from
	for i := 0; i < maxScanDays; i++ {
		if s.end != nil && d.after(*s.end) {
			return civilDate{}, false
		}
		if s.matches(d) && s.inInterval(d) {
			return d, true
		}
		d = d.next()
	}
	return civilDate{}, false
}

func (s *scanner) matches(d civilDate) bool {
	switch s.p.RecurrenceType {
	case models.RecurrenceWeekly:
		wd := d.weekday()
		for _, day := range s.p.RecurrenceDays {
			if day == wd {
				return true
			}
		}
		return false
	case models.RecurrenceMonthlyDate:
		// days a month lacks (31 in April) simply never match
		return d.day() == *s.p.RecurrenceMonthlyDate
	case models.RecurrenceMonthlyWeekday:
		return WeekOfMonth(d.day()) == *s.p.RecurrenceMonthlyWeek &&
			d.weekday() == *s.p.RecurrenceMonthlyWeekday
	default:
		return false
	}
}

func (s *scanner) inInterval(d civilDate) bool {
	interval := s.p.RecurrenceInterval
	if interval <= 1 {
		return true
	}
	switch s.p.RecurrenceType {
	case models.RecurrenceWeekly:
		return (d.daysSince(s.start)/7)%interval == 0
	default:
		return d.monthsSince(s.start)%interval == 0
	}
}

func draft(p *models.RecurrencePattern, start, end time.Time) *models.Event {
	ev := &models.Event{
		OrganizationID:                  p.OrganizationID,
		Title:                           p.Title,
		Description:                     p.Description,
		LocationAddress:                 p.LocationAddress,
		LocationRadiusMeters:            p.LocationRadiusMeters,
		StartTime:                       start,
		EndTime:                         end,
		Timezone:                        p.Timezone,
		RegistrationWindowBeforeMinutes: p.RegistrationWindowBeforeMinutes,
		RegistrationWindowAfterMinutes:  p.RegistrationWindowAfterMinutes,
	}
	if p.ID != 0 {
		id := p.ID
		ev.PatternID = &id
	}
	if p.LocationLat != nil && p.LocationLng != nil {
		lat, lng := *p.LocationLat, *p.LocationLng
		ev.LocationLat = &lat
		ev.LocationLng = &lng
	}
	return ev
}

func location(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
