package models

import "time"

// RecurrenceType selects how a pattern repeats.
type RecurrenceType string

const (
	RecurrenceWeekly         RecurrenceType = "weekly"
	RecurrenceMonthlyDate    RecurrenceType = "monthly_date"
	RecurrenceMonthlyWeekday RecurrenceType = "monthly_weekday"
)

// Date and time-of-day layouts accepted on recurrence patterns.
const (
	DateLayout        = "2006-01-02"
	TimeLayout        = "15:04"
	TimeLayoutSeconds = "15:04:05"
)

// RecurrencePattern is the admin-authored template that recurring events are
// generated from. It is not edited after its events exist.
//
// StartDate, EndDate and StartTime are wall-clock values interpreted in
// Timezone.
type RecurrencePattern struct {
	ID                              int64          `json:"id" db:"id"`
	OrganizationID                  int64          `json:"organization_id" db:"organization_id"`
	Title                           string         `json:"title" db:"title"`
	Description                     string         `json:"description" db:"description"`
	LocationAddress                 string         `json:"location_address" db:"location_address"`
	LocationLat                     *float64       `json:"location_lat" db:"location_lat"`
	LocationLng                     *float64       `json:"location_lng" db:"location_lng"`
	LocationRadiusMeters            int            `json:"location_radius_meters" db:"location_radius_meters"`
	StartTime                       string         `json:"start_time" db:"start_time"` // HH:MM[:SS]
	DurationMinutes                 int            `json:"duration_minutes" db:"duration_minutes"`
	RecurrenceType                  RecurrenceType `json:"recurrence_type" db:"recurrence_type"`
	RecurrenceInterval              int            `json:"recurrence_interval" db:"recurrence_interval"`
	RecurrenceDays                  []int          `json:"recurrence_days,omitempty" db:"recurrence_days"` // 0 = Sunday
	RecurrenceMonthlyDate           *int           `json:"recurrence_monthly_date,omitempty" db:"recurrence_monthly_date"`
	RecurrenceMonthlyWeek           *int           `json:"recurrence_monthly_week,omitempty" db:"recurrence_monthly_week"`
	RecurrenceMonthlyWeekday        *int           `json:"recurrence_monthly_weekday,omitempty" db:"recurrence_monthly_weekday"`
	StartDate                       string         `json:"start_date" db:"start_date"`       // YYYY-MM-DD
	EndDate                         *string        `json:"end_date,omitempty" db:"end_date"` // inclusive
	Timezone                        string         `json:"timezone" db:"timezone"`
	RegistrationWindowBeforeMinutes int            `json:"registration_window_before_minutes" db:"registration_window_before_minutes"`
	RegistrationWindowAfterMinutes  int            `json:"registration_window_after_minutes" db:"registration_window_after_minutes"`
	CreatedAt                       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt                       time.Time      `json:"updated_at" db:"updated_at"`
	Events                          []*Event       `json:"events,omitempty"`
}
