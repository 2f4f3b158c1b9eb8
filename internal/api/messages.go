package api

import (
	"net/http"

	"github.com/Kerhoff/CheckinBoT/internal/models"
	"github.com/Kerhoff/CheckinBoT/internal/service"
)

// ---------------------------------------------------------------------------
// Attendee messages
// ---------------------------------------------------------------------------

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	msgs, err := s.svc.ListMessages(r.Context(), orgID(r), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	s.respondJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	var req service.MessageInput
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	msg, err := s.svc.CreateMessage(r.Context(), orgID(r), id, req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, msg)
}
