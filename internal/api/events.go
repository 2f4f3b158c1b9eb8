package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Kerhoff/CheckinBoT/internal/models"
	"github.com/Kerhoff/CheckinBoT/internal/repository"
	"github.com/Kerhoff/CheckinBoT/internal/service"
)

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filters repository.EventFilters

	if from := q.Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "from must be RFC 3339 format")
			return
		}
		filters.From = &t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "to must be RFC 3339 format")
			return
		}
		filters.To = &t
	}
	if limit := q.Get("limit"); limit != "" {
		if v, err := strconv.Atoi(limit); err == nil && v > 0 {
			filters.Limit = v
		}
	}

	events, err := s.svc.ListEvents(r.Context(), orgID(r), filters)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if events == nil {
		events = []*models.Event{}
	}
	s.respondJSON(w, http.StatusOK, events)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req service.EventInput
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	event, err := s.svc.CreateEvent(r.Context(), orgID(r), req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, event)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	view, err := s.svc.GetEvent(r.Context(), orgID(r), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	var req service.EventInput
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	event, err := s.svc.UpdateEvent(r.Context(), orgID(r), id, req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, event)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	if err := s.svc.DeleteEvent(r.Context(), orgID(r), id); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleCloseEvent(w http.ResponseWriter, r *http.Request) {
	s.setClosed(w, r, true)
}

func (s *Server) handleReopenEvent(w http.ResponseWriter, r *http.Request) {
	s.setClosed(w, r, false)
}

func (s *Server) setClosed(w http.ResponseWriter, r *http.Request, closed bool) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	event, err := s.svc.SetEventClosed(r.Context(), orgID(r), id, closed)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, event)
}

func (s *Server) handleGetAttendees(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	records, err := s.svc.Attendees(r.Context(), orgID(r), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if records == nil {
		records = []*models.Attendance{}
	}
	s.respondJSON(w, http.StatusOK, records)
}
