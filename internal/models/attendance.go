package models

import "time"

// Attendance records one attendee checking in to one event.
type Attendance struct {
	ID          int64     `json:"id" db:"id"`
	EventID     int64     `json:"event_id" db:"event_id"`
	Name        string    `json:"name" db:"name"`
	Email       string    `json:"email" db:"email"`
	Lat         float64   `json:"lat" db:"lat"`
	Lng         float64   `json:"lng" db:"lng"`
	CheckedInAt time.Time `json:"checked_in_at" db:"checked_in_at"`
}
