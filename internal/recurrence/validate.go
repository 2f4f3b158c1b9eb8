// Package recurrence validates recurrence patterns and expands them into
// concrete event instances.
package recurrence

import (
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/Kerhoff/CheckinBoT/internal/models"
)

// ValidationResult lists every problem found in a pattern. Errors keeps the
// order in which checks ran.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`

	err *multierror.Error
}

// Err returns the accumulated problems as a single error, or nil when the
// pattern is valid.
func (r ValidationResult) Err() error {
	return r.err.ErrorOrNil()
}

// Validate checks a pattern for internal consistency. It does not stop at
// the first failure and never modifies p.
func Validate(p *models.RecurrencePattern) ValidationResult {
	var errs *multierror.Error
	add := func(msg string) {
		errs = multierror.Append(errs, errors.New(msg))
	}

	if p == nil {
		add("recurrence pattern is required")
		return newResult(errs)
	}

	if strings.TrimSpace(p.Title) == "" {
		add("title is required")
	}

	var startDate time.Time
	startDateOK := false
	if strings.TrimSpace(p.StartDate) == "" {
		add("start date is required")
	} else if d, err := parseDate(p.StartDate, time.UTC); err != nil {
		add("start date must be in YYYY-MM-DD format")
	} else {
		startDate, startDateOK = d, true
	}

	if p.EndDate != nil && strings.TrimSpace(*p.EndDate) != "" {
		if d, err := parseDate(*p.EndDate, time.UTC); err != nil {
			add("end date must be in YYYY-MM-DD format")
		} else if startDateOK && d.Before(startDate) {
			add("end date must not be before start date")
		}
	}

	if strings.TrimSpace(p.StartTime) == "" {
		add("start time is required")
	} else if _, _, _, err := parseClock(p.StartTime); err != nil {
		add("start time must be in HH:MM or HH:MM:SS format")
	}

	if p.DurationMinutes <= 0 {
		add("duration must be greater than 0 minutes")
	}

	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			add("timezone must be a valid IANA timezone name")
		}
	}

	if p.RecurrenceInterval < 1 {
		add("recurrence interval must be at least 1")
	}

	switch p.RecurrenceType {
	case "":
		add("recurrence type is required")
	case models.RecurrenceWeekly:
		if len(p.RecurrenceDays) == 0 {
			add("weekly recurrence requires at least one day")
		}
		for _, d := range p.RecurrenceDays {
			if d < 0 || d > 6 {
				add("recurrence days must be between 0 (Sunday) and 6 (Saturday)")
				break
			}
		}
	case models.RecurrenceMonthlyDate:
		if p.RecurrenceMonthlyDate == nil || *p.RecurrenceMonthlyDate < 1 || *p.RecurrenceMonthlyDate > 31 {
			add("monthly date must be between 1 and 31")
		}
	case models.RecurrenceMonthlyWeekday:
		// weekday 0 is Sunday, so presence is checked on the pointer
		if p.RecurrenceMonthlyWeek == nil {
			add("monthly week is required")
		} else if *p.RecurrenceMonthlyWeek < 1 || *p.RecurrenceMonthlyWeek > 5 {
			add("monthly week must be between 1 and 5")
		}
		if p.RecurrenceMonthlyWeekday == nil {
			add("monthly weekday is required")
		} else if *p.RecurrenceMonthlyWeekday < 0 || *p.RecurrenceMonthlyWeekday > 6 {
			add("monthly weekday must be between 0 (Sunday) and 6 (Saturday)")
		}
	default:
		add("recurrence type must be one of weekly, monthly_date, monthly_weekday")
	}

	// negated comparisons so NaN is rejected too
	if p.LocationLat != nil && !(*p.LocationLat >= -90 && *p.LocationLat <= 90) {
		add("latitude must be between -90 and 90")
	}
	if p.LocationLng != nil && !(*p.LocationLng >= -180 && *p.LocationLng <= 180) {
		add("longitude must be between -180 and 180")
	}
	if (p.LocationLat == nil) != (p.LocationLng == nil) {
		add("latitude and longitude must be provided together")
	}

	if p.LocationRadiusMeters < 0 {
		add("location radius must not be negative")
	}
	if p.RegistrationWindowBeforeMinutes < 0 || p.RegistrationWindowAfterMinutes < 0 {
		add("registration window offsets must not be negative")
	}

	return newResult(errs)
}

func newResult(errs *multierror.Error) ValidationResult {
	res := ValidationResult{Valid: errs.ErrorOrNil() == nil, err: errs}
	if errs != nil {
		for _, e := range errs.Errors {
			res.Errors = append(res.Errors, e.Error())
		}
	}
	return res
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(models.DateLayout, strings.TrimSpace(s), loc)
}

// parseClock accepts HH:MM and HH:MM:SS.
func parseClock(s string) (hour, minute, second int, err error) {
	s = strings.TrimSpace(s)
	layout := models.TimeLayout
	if strings.Count(s, ":") == 2 {
		layout = models.TimeLayoutSeconds
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, 0, 0, err
	}
	return t.Hour(), t.Minute(), t.Second(), nil
}
