package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/CheckinBoT/internal/geo"
	"github.com/Kerhoff/CheckinBoT/internal/models"
	"github.com/Kerhoff/CheckinBoT/internal/repository"
	"github.com/Kerhoff/CheckinBoT/internal/window"
)

// DefaultRadiusMeters applies to located events created without a radius.
const DefaultRadiusMeters = 100

// EventInput holds the organizer-editable fields of a single event.
type EventInput struct {
	Title                           string    `json:"title"`
	Description                     string    `json:"description"`
	LocationAddress                 string    `json:"location_address"`
	LocationLat                     *float64  `json:"location_lat"`
	LocationLng                     *float64  `json:"location_lng"`
	LocationRadiusMeters            int       `json:"location_radius_meters"`
	StartTime                       time.Time `json:"start_time"`
	EndTime                         time.Time `json:"end_time"`
	Timezone                        string    `json:"timezone"`
	RegistrationWindowBeforeMinutes int       `json:"registration_window_before_minutes"`
	RegistrationWindowAfterMinutes  int       `json:"registration_window_after_minutes"`
}

// EventView is an event together with its registration status at the time
// it was read.
type EventView struct {
	*models.Event
	Status        window.Status `json:"status"`
	OpensAt       time.Time     `json:"registration_opens_at"`
	ClosesAt      time.Time     `json:"registration_closes_at"`
	AttendeeCount int           `json:"attendee_count"`
}

func (s *Service) normalizeEvent(in *EventInput) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.LocationAddress = strings.TrimSpace(in.LocationAddress)
	if in.Timezone == "" {
		in.Timezone = s.opts.DefaultTimezone
	}
	if in.LocationLat != nil && in.LocationLng != nil && in.LocationRadiusMeters == 0 {
		in.LocationRadiusMeters = DefaultRadiusMeters
	}
}

func validateEvent(in EventInput) error {
	var problems []string
	if in.Title == "" {
		problems = append(problems, "title is required")
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		problems = append(problems, "start and end time are required")
	} else if !in.EndTime.After(in.StartTime) {
		problems = append(problems, "end time must be after start time")
	}
	if (in.LocationLat == nil) != (in.LocationLng == nil) {
		problems = append(problems, "latitude and longitude must be provided together")
	} else if in.LocationLat != nil && !geo.IsValidCoordinates(*in.LocationLat, *in.LocationLng) {
		problems = append(problems, "location coordinates are out of range")
	}
	if in.LocationLat != nil && in.LocationRadiusMeters <= 0 {
		problems = append(problems, "location radius must be greater than 0")
	}
	if in.RegistrationWindowBeforeMinutes < 0 || in.RegistrationWindowAfterMinutes < 0 {
		problems = append(problems, "registration window offsets must not be negative")
	}
	if _, err := time.LoadLocation(in.Timezone); err != nil {
		problems = append(problems, "timezone must be a valid IANA timezone name")
	}
	if len(problems) > 0 {
		return &ValidationError{Kind: ErrInvalidEvent, Problems: problems}
	}
	return nil
}

func applyEventInput(event *models.Event, in EventInput) {
	event.Title = in.Title
	event.Description = in.Description
	event.LocationAddress = in.LocationAddress
	event.LocationLat = in.LocationLat
	event.LocationLng = in.LocationLng
	event.LocationRadiusMeters = in.LocationRadiusMeters
	event.StartTime = in.StartTime.UTC()
	event.EndTime = in.EndTime.UTC()
	event.Timezone = in.Timezone
	event.RegistrationWindowBeforeMinutes = in.RegistrationWindowBeforeMinutes
	event.RegistrationWindowAfterMinutes = in.RegistrationWindowAfterMinutes
}

// CreateEvent creates a single, non-recurring event.
func (s *Service) CreateEvent(ctx context.Context, orgID int64, in EventInput) (*models.Event, error) {
	s.normalizeEvent(&in)
	if err := validateEvent(in); err != nil {
		return nil, err
	}

	now := s.now()
	event := &models.Event{OrganizationID: orgID, CreatedAt: now, UpdatedAt: now}
	applyEventInput(event, in)

	event, err := s.Events.Create(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	s.logger.Infof("Created event %q (id=%d, org=%d)", event.Title, event.ID, orgID)
	return event, nil
}

// ListEvents returns the organization's events ordered by start time.
func (s *Service) ListEvents(ctx context.Context, orgID int64, filters repository.EventFilters) ([]*models.Event, error) {
	events, err := s.Events.GetByOrganization(ctx, orgID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for organization %d: %w", orgID, err)
	}
	return events, nil
}

// GetEvent returns one of the organization's events with its current
// registration status.
func (s *Service) GetEvent(ctx context.Context, orgID, eventID int64) (*EventView, error) {
	event, err := s.ownedEvent(ctx, orgID, eventID)
	if err != nil {
		return nil, err
	}
	count, err := s.Attendance.CountByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attendance for event %d: %w", eventID, err)
	}
	return s.view(event, count), nil
}

func (s *Service) view(event *models.Event, count int) *EventView {
	now := s.now()
	return &EventView{
		Event:         event,
		Status:        event.RegistrationStatus(now),
		OpensAt:       event.RegistrationOpensAt(),
		ClosesAt:      event.RegistrationClosesAt(),
		AttendeeCount: count,
	}
}

// UpdateEvent edits one event. Events generated from a pattern are edited
// independently; the pattern and sibling events are untouched.
func (s *Service) UpdateEvent(ctx context.Context, orgID, eventID int64, in EventInput) (*models.Event, error) {
	event, err := s.ownedEvent(ctx, orgID, eventID)
	if err != nil {
		return nil, err
	}

	s.normalizeEvent(&in)
	if err := validateEvent(in); err != nil {
		return nil, err
	}

	applyEventInput(event, in)
	event.UpdatedAt = s.now()

	event, err = s.Events.Update(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("failed to update event %d: %w", eventID, notFound(err))
	}
	return event, nil
}

// SetEventClosed closes or reopens registration regardless of the window.
func (s *Service) SetEventClosed(ctx context.Context, orgID, eventID int64, closed bool) (*models.Event, error) {
	event, err := s.ownedEvent(ctx, orgID, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.Events.SetClosed(ctx, eventID, closed); err != nil {
		return nil, fmt.Errorf("failed to set closed=%t on event %d: %w", closed, eventID, notFound(err))
	}
	event.IsClosed = closed
	event.UpdatedAt = s.now()

	s.logger.WithFields(logrus.Fields{
		"event_id": eventID,
		"closed":   closed,
	}).Info("Event registration toggled")
	return event, nil
}

// DeleteEvent removes an event and its attendance records.
func (s *Service) DeleteEvent(ctx context.Context, orgID, eventID int64) error {
	if _, err := s.ownedEvent(ctx, orgID, eventID); err != nil {
		return err
	}
	if err := s.Events.Delete(ctx, eventID); err != nil {
		return fmt.Errorf("failed to delete event %d: %w", eventID, notFound(err))
	}
	return nil
}

// Attendees lists the check-ins of one of the organization's events.
func (s *Service) Attendees(ctx context.Context, orgID, eventID int64) ([]*models.Attendance, error) {
	if _, err := s.ownedEvent(ctx, orgID, eventID); err != nil {
		return nil, err
	}
	records, err := s.Attendance.GetByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attendees for event %d: %w", eventID, err)
	}
	return records, nil
}

// PublicEvent is the attendee-facing view of an event. It carries no
// organization data.
type PublicEvent struct {
	ID                              int64         `json:"id"`
	Title                           string        `json:"title"`
	Description                     string        `json:"description"`
	LocationAddress                 string        `json:"location_address"`
	LocationLat                     *float64      `json:"location_lat"`
	LocationLng                     *float64      `json:"location_lng"`
	LocationRadiusMeters            int           `json:"location_radius_meters"`
	StartTime                       time.Time     `json:"start_time"`
	EndTime                         time.Time     `json:"end_time"`
	Timezone                        string        `json:"timezone"`
	RegistrationWindowBeforeMinutes int           `json:"registration_window_before_minutes"`
	RegistrationWindowAfterMinutes  int           `json:"registration_window_after_minutes"`
	IsClosed                        bool          `json:"is_closed"`
	Status                          window.Status `json:"status"`
	ServerTime                      time.Time     `json:"server_time"`
}

// GetPublicEvent returns the attendee-facing view of any event.
func (s *Service) GetPublicEvent(ctx context.Context, eventID int64) (*PublicEvent, error) {
	event, err := s.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event %d: %w", eventID, err)
	}
	if event == nil {
		return nil, ErrNotFound
	}

	now := s.now()
	return &PublicEvent{
		ID:                              event.ID,
		Title:                           event.Title,
		Description:                     event.Description,
		LocationAddress:                 event.LocationAddress,
		LocationLat:                     event.LocationLat,
		LocationLng:                     event.LocationLng,
		LocationRadiusMeters:            event.LocationRadiusMeters,
		StartTime:                       event.StartTime,
		EndTime:                         event.EndTime,
		Timezone:                        event.Timezone,
		RegistrationWindowBeforeMinutes: event.RegistrationWindowBeforeMinutes,
		RegistrationWindowAfterMinutes:  event.RegistrationWindowAfterMinutes,
		IsClosed:                        event.IsClosed,
		Status:                          event.RegistrationStatus(now),
		ServerTime:                      now.UTC(),
	}, nil
}
