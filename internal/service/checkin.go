package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/CheckinBoT/internal/geo"
	"github.com/Kerhoff/CheckinBoT/internal/models"
	"github.com/Kerhoff/CheckinBoT/internal/window"
)

// CheckInRequest is an attendee's submission.
type CheckInRequest struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Token string  `json:"token"`
}

// RejectionError is a refused check-in. Message is safe to show to the
// attendee; Reason is one of the Err* sentinels.
type RejectionError struct {
	Reason  error
	Message string
}

func (e *RejectionError) Error() string { return e.Message }
func (e *RejectionError) Unwrap() error { return e.Reason }

func reject(reason error, message string) error {
	return &RejectionError{Reason: reason, Message: message}
}

// CheckIn records an attendance after re-checking the registration window,
// the QR token and the attendee's distance from the event. Nothing is
// written unless every check passes.
//
// There is no uniqueness check on the attendee: the client-side marker is
// the only duplicate guard.
func (s *Service) CheckIn(ctx context.Context, eventID int64, req CheckInRequest) (*models.Attendance, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)

	event, err := s.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event %d: %w", eventID, err)
	}
	if event == nil {
		s.metrics.CheckIn("not_found")
		return nil, ErrNotFound
	}

	log := s.logger.WithFields(logrus.Fields{"event_id": eventID, "email": email})

	if name == "" || !validEmail(email) {
		s.metrics.CheckIn("invalid_attendee")
		return nil, reject(ErrInvalidAttendee, "Name and a valid email address are required")
	}

	now := s.now()
	switch status := event.RegistrationStatus(now); status {
	case window.StatusOpen:
	case window.StatusNotStarted:
		s.metrics.CheckIn(string(status))
		return nil, reject(ErrRegistrationNotOpen, "Registration has not opened yet")
	case window.StatusManuallyClosed:
		s.metrics.CheckIn(string(status))
		return nil, reject(ErrRegistrationNotOpen, "Registration has been closed by the organizer")
	default:
		s.metrics.CheckIn(string(status))
		return nil, reject(ErrRegistrationNotOpen, "Registration for this event is closed")
	}

	v := s.signer.Verify(strconv.FormatInt(eventID, 10), req.Token, now)
	if !v.Valid {
		log.WithField("reason", v.Reason).Info("Rejected check-in token")
		s.metrics.TokenRejected(string(v.Reason))
		s.metrics.CheckIn("invalid_token")
		return nil, reject(ErrInvalidToken, ErrInvalidToken.Error())
	}

	if event.HasLocation() {
		if !geo.IsValidCoordinates(req.Lat, req.Lng) {
			s.metrics.CheckIn("invalid_coordinates")
			return nil, reject(ErrInvalidCoordinates, "A valid location is required to check in")
		}
		center := geo.Point{Lat: *event.LocationLat, Lng: *event.LocationLng}
		distance := geo.DistanceMeters(geo.Point{Lat: req.Lat, Lng: req.Lng}, center)
		if distance > float64(event.LocationRadiusMeters) {
			s.metrics.CheckIn("outside_radius")
			return nil, reject(ErrOutsideRadius, fmt.Sprintf(
				"You are %dm from the event location. You must be within %dm to check in.",
				int(math.Round(distance)), event.LocationRadiusMeters))
		}
	}

	record, err := s.Attendance.Create(ctx, &models.Attendance{
		EventID:     eventID,
		Name:        name,
		Email:       email,
		Lat:         req.Lat,
		Lng:         req.Lng,
		CheckedInAt: now,
	})
	if err != nil {
		s.metrics.CheckIn("error")
		return nil, fmt.Errorf("failed to record attendance for event %d: %w", eventID, err)
	}

	s.metrics.CheckIn("success")
	log.Info("Attendee checked in")
	s.notifyCheckIn(ctx, event, record)

	return record, nil
}

func (s *Service) notifyCheckIn(ctx context.Context, event *models.Event, a *models.Attendance) {
	if s.notifier == nil {
		return
	}
	org, err := s.Organizations.GetByID(ctx, event.OrganizationID)
	if err != nil {
		s.logger.WithError(err).Warnf("Failed to load organization %d for check-in notification", event.OrganizationID)
		return
	}
	if org == nil || org.TelegramChatID == nil {
		return
	}
	total, err := s.Attendance.CountByEvent(ctx, event.ID)
	if err != nil {
		s.logger.WithError(err).Warnf("Failed to count attendance for event %d", event.ID)
		return
	}
	s.notifier.CheckedIn(*org.TelegramChatID, event, a, total)
}
