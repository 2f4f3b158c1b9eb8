package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Kerhoff/CheckinBoT/internal/calendar"
	"github.com/Kerhoff/CheckinBoT/internal/models"
)

// ---------------------------------------------------------------------------
// Recurrence patterns
// ---------------------------------------------------------------------------

func (s *Server) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	patterns, err := s.svc.ListPatterns(r.Context(), orgID(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if patterns == nil {
		patterns = []*models.RecurrencePattern{}
	}
	s.respondJSON(w, http.StatusOK, patterns)
}

func (s *Server) handleCreatePattern(w http.ResponseWriter, r *http.Request) {
	var req models.RecurrencePattern
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	pattern, err := s.svc.CreatePattern(r.Context(), orgID(r), &req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, pattern)
}

func (s *Server) handleGetPattern(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid pattern id")
		return
	}

	pattern, err := s.svc.GetPattern(r.Context(), orgID(r), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, pattern)
}

func (s *Server) handleDeletePattern(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid pattern id")
		return
	}

	if err := s.svc.DeletePattern(r.Context(), orgID(r), id); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handlePatternCalendar(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid pattern id")
		return
	}

	pattern, err := s.svc.GetPattern(r.Context(), orgID(r), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.respondCalendar(w, pattern.Title, pattern.Events)
}

func (s *Server) respondCalendar(w http.ResponseWriter, name string, events []*models.Event) {
	body := calendar.Export(name, events, s.svc.CheckInURL, time.Now())

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", calendar.Filename(name)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		s.logger.WithError(err).Error("failed to write calendar response")
	}
}
