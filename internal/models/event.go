package models

import (
	"time"

	"github.com/Kerhoff/CheckinBoT/internal/window"
)

// Event is a single concrete occurrence that attendees check in to. Events
// created from a recurrence pattern keep a non-owning reference to it and are
// edited independently of their siblings afterwards.
type Event struct {
	ID                              int64     `json:"id" db:"id"`
	OrganizationID                  int64     `json:"organization_id" db:"organization_id"`
	PatternID                       *int64    `json:"pattern_id,omitempty" db:"pattern_id"`
	Title                           string    `json:"title" db:"title"`
	Description                     string    `json:"description" db:"description"`
	LocationAddress                 string    `json:"location_address" db:"location_address"`
	LocationLat                     *float64  `json:"location_lat" db:"location_lat"`
	LocationLng                     *float64  `json:"location_lng" db:"location_lng"`
	LocationRadiusMeters            int       `json:"location_radius_meters" db:"location_radius_meters"`
	StartTime                       time.Time `json:"start_time" db:"start_time"`
	EndTime                         time.Time `json:"end_time" db:"end_time"`
	Timezone                        string    `json:"timezone" db:"timezone"`
	RegistrationWindowBeforeMinutes int       `json:"registration_window_before_minutes" db:"registration_window_before_minutes"`
	RegistrationWindowAfterMinutes  int       `json:"registration_window_after_minutes" db:"registration_window_after_minutes"`
	IsClosed                        bool      `json:"is_closed" db:"is_closed"`
	CreatedAt                       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt                       time.Time `json:"updated_at" db:"updated_at"`
}

// RegistrationStatus classifies the event's registration window at now.
func (e *Event) RegistrationStatus(now time.Time) window.Status {
	return window.Classify(e.StartTime, e.EndTime,
		e.RegistrationWindowBeforeMinutes, e.RegistrationWindowAfterMinutes,
		e.IsClosed, now)
}

// RegistrationOpensAt returns the instant the registration window opens.
func (e *Event) RegistrationOpensAt() time.Time {
	opensAt, _ := window.Bounds(e.StartTime, e.EndTime,
		e.RegistrationWindowBeforeMinutes, e.RegistrationWindowAfterMinutes)
	return opensAt
}

// RegistrationClosesAt returns the instant the registration window closes.
func (e *Event) RegistrationClosesAt() time.Time {
	_, closesAt := window.Bounds(e.StartTime, e.EndTime,
		e.RegistrationWindowBeforeMinutes, e.RegistrationWindowAfterMinutes)
	return closesAt
}

// HasLocation reports whether check-ins are geofenced.
func (e *Event) HasLocation() bool {
	return e.LocationLat != nil && e.LocationLng != nil
}
