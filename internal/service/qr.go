package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// QRPayload is what the organizer's display encodes as a QR code. It must be
// refreshed before ExpiresAt to stay scannable.
type QRPayload struct {
	EventID      int64     `json:"event_id"`
	Token        string    `json:"token"`
	URL          string    `json:"url"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshAfter time.Time `json:"refresh_after"`
}

// RefreshInterval is how often a display should fetch a new QR payload.
func (s *Service) RefreshInterval() time.Duration {
	return s.signer.TTL() / 2
}

// CheckInURL is the attendee page for an event, without a token.
func (s *Service) CheckInURL(eventID int64) string {
	return s.opts.PublicBaseURL + "/checkin/" + strconv.FormatInt(eventID, 10)
}

// IssueQR mints a fresh token for one of the organization's events.
func (s *Service) IssueQR(ctx context.Context, orgID, eventID int64) (*QRPayload, error) {
	if _, err := s.ownedEvent(ctx, orgID, eventID); err != nil {
		return nil, err
	}

	issuedAt := s.now()
	token, err := s.signer.Issue(strconv.FormatInt(eventID, 10), issuedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token for event %d: %w", eventID, err)
	}

	link := s.CheckInURL(eventID) + "?qr=" + url.QueryEscape(token)
	return &QRPayload{
		EventID:      eventID,
		Token:        token,
		URL:          link,
		IssuedAt:     issuedAt.UTC(),
		ExpiresAt:    issuedAt.Add(s.signer.TTL()).UTC(),
		RefreshAfter: issuedAt.Add(s.RefreshInterval()).UTC(),
	}, nil
}

// AttendanceCount returns the number of check-ins of one of the
// organization's events.
func (s *Service) AttendanceCount(ctx context.Context, orgID, eventID int64) (int, error) {
	if _, err := s.ownedEvent(ctx, orgID, eventID); err != nil {
		return 0, err
	}
	n, err := s.Attendance.CountByEvent(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to count attendance for event %d: %w", eventID, err)
	}
	return n, nil
}
