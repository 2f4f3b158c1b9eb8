package api

import (
	"errors"
	"net/http"

	"github.com/Kerhoff/CheckinBoT/internal/checkin"
	"github.com/Kerhoff/CheckinBoT/internal/models"
	"github.com/Kerhoff/CheckinBoT/internal/service"
)

// markerMaxAge keeps the browser's duplicate guard for a day.
const markerMaxAge = 24 * 60 * 60

// ---------------------------------------------------------------------------
// Public attendee endpoints
// ---------------------------------------------------------------------------

func (s *Server) handleGetPublicEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	event, err := s.svc.GetPublicEvent(r.Context(), id)
	if errors.Is(err, service.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "Event not found")
		return
	}
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, event)
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	var req service.CheckInRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	record, err := s.svc.CheckIn(r.Context(), id, req)
	if errors.Is(err, service.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "Event not found")
		return
	}
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     checkin.MarkerName(id),
		Value:    "1",
		Path:     "/",
		MaxAge:   markerMaxAge,
		SameSite: http.SameSiteLaxMode,
	})
	s.respondJSON(w, http.StatusCreated, record)
}

func (s *Server) handlePublicEventCalendar(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	event, err := s.svc.GetPublicEvent(r.Context(), id)
	if errors.Is(err, service.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "Event not found")
		return
	}
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.respondCalendar(w, event.Title, []*models.Event{{
		ID:              event.ID,
		Title:           event.Title,
		Description:     event.Description,
		LocationAddress: event.LocationAddress,
		LocationLat:     event.LocationLat,
		LocationLng:     event.LocationLng,
		StartTime:       event.StartTime,
		EndTime:         event.EndTime,
		Timezone:        event.Timezone,
		IsClosed:        event.IsClosed,
	}})
}
