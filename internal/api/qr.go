package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/CheckinBoT/internal/service"
)

const writeWait = 10 * time.Second

// streamMessage is one frame pushed to a QR display.
type streamMessage struct {
	Type  string             `json:"type"`
	QR    *service.QRPayload `json:"qr,omitempty"`
	Count *int               `json:"count,omitempty"`
}

// ---------------------------------------------------------------------------
// QR display
// ---------------------------------------------------------------------------

func (s *Server) handleGetQR(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	payload, err := s.svc.IssueQR(r.Context(), orgID(r), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, payload)
}

// handleQRStream upgrades to a websocket that pushes a new QR payload every
// refresh interval and the attendance count whenever it changes.
func (s *Server) handleQRStream(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	org := orgID(r)

	// Ownership is checked before the upgrade so errors stay plain HTTP.
	first, err := s.svc.IssueQR(r.Context(), org, id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		requestLogger(s.logger, r).WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := requestLogger(s.logger, r).WithField("event_id", id)
	log.Debug("QR stream opened")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The display never sends anything; reading only detects the close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.writeFrame(conn, streamMessage{Type: "qr", QR: first}); err != nil {
		return
	}
	last := -1
	if !s.pushCount(ctx, conn, log, org, id, &last) {
		return
	}

	refresh := time.NewTicker(s.svc.RefreshInterval())
	defer refresh.Stop()
	poll := time.NewTicker(s.opts.AttendancePoll)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("QR stream closed")
			return
		case <-refresh.C:
			payload, err := s.svc.IssueQR(ctx, org, id)
			if err != nil {
				log.WithError(err).Warn("failed to refresh QR token")
				s.closeStream(conn, "event unavailable")
				return
			}
			if err := s.writeFrame(conn, streamMessage{Type: "qr", QR: payload}); err != nil {
				return
			}
		case <-poll.C:
			if !s.pushCount(ctx, conn, log, org, id, &last) {
				return
			}
		}
	}
}

// pushCount sends the attendance count if it differs from *last. It returns
// false once the stream should stop.
func (s *Server) pushCount(ctx context.Context, conn *websocket.Conn, log *logrus.Entry, org, eventID int64, last *int) bool {
	n, err := s.svc.AttendanceCount(ctx, org, eventID)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		log.WithError(err).Warn("failed to count attendance")
		return true
	}
	if n == *last {
		return true
	}
	*last = n
	return s.writeFrame(conn, streamMessage{Type: "attendance", Count: &n}) == nil
}

func (s *Server) writeFrame(conn *websocket.Conn, msg streamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

func (s *Server) closeStream(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
		time.Now().Add(writeWait))
}
