package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/Kerhoff/CheckinBoT/internal/mail"
	"github.com/Kerhoff/CheckinBoT/internal/models"
)

// MessageInput is an organizer email to an event's attendees. A nil SendAt
// sends it right away.
type MessageInput struct {
	Subject string     `json:"subject"`
	Body    string     `json:"body"`
	SendAt  *time.Time `json:"send_at"`
}

// CreateMessage stores a message for the event's attendees and, unless it
// is scheduled for later, delivers it before returning.
func (s *Service) CreateMessage(ctx context.Context, orgID, eventID int64, in MessageInput) (*models.Message, error) {
	if _, err := s.ownedEvent(ctx, orgID, eventID); err != nil {
		return nil, err
	}

	in.Subject = strings.TrimSpace(in.Subject)
	in.Body = strings.TrimSpace(in.Body)
	var problems []string
	if in.Subject == "" {
		problems = append(problems, "subject is required")
	}
	if in.Body == "" {
		problems = append(problems, "body is required")
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Kind: ErrInvalidMessage, Problems: problems}
	}

	now := s.now()
	sendAt := now
	scheduled := in.SendAt != nil && in.SendAt.After(now)
	if scheduled {
		sendAt = *in.SendAt
	}

	msg, err := s.Messages.Create(ctx, &models.Message{
		OrganizationID: orgID,
		EventID:        eventID,
		Subject:        in.Subject,
		Body:           in.Body,
		SendAt:         sendAt.UTC(),
		Status:         models.MessageStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	if scheduled {
		s.logger.Infof("Scheduled message %d for event %d at %s", msg.ID, eventID, sendAt.UTC().Format(time.RFC3339))
		return msg, nil
	}

	s.deliver(ctx, msg)
	return msg, nil
}

// ListMessages returns the messages of one of the organization's events.
func (s *Service) ListMessages(ctx context.Context, orgID, eventID int64) ([]*models.Message, error) {
	if _, err := s.ownedEvent(ctx, orgID, eventID); err != nil {
		return nil, err
	}
	messages, err := s.Messages.GetByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages for event %d: %w", eventID, err)
	}
	return messages, nil
}

// deliver sends msg to every attendee and records the result on msg and in
// the store. A message with some failed recipients is marked failed.
func (s *Service) deliver(ctx context.Context, msg *models.Message) {
	sent, err := s.sendToAttendees(ctx, msg)
	now := s.now()

	if err != nil {
		s.metrics.MessageSent(false)
		s.logger.WithError(err).Errorf("Failed to deliver message %d", msg.ID)
		msg.Status = models.MessageStatusFailed
		msg.LastError = err.Error()
		msg.Recipients = sent
		if markErr := s.Messages.MarkFailed(ctx, msg.ID, err.Error()); markErr != nil {
			s.logger.WithError(markErr).Errorf("Failed to mark message %d failed", msg.ID)
		}
		return
	}

	s.metrics.MessageSent(true)
	msg.Status = models.MessageStatusSent
	msg.Recipients = sent
	msg.SentAt = &now
	if markErr := s.Messages.MarkSent(ctx, msg.ID, sent, now); markErr != nil {
		s.logger.WithError(markErr).Errorf("Failed to mark message %d sent", msg.ID)
	}
	s.logger.Infof("Delivered message %d to %d attendees", msg.ID, sent)
}

func (s *Service) sendToAttendees(ctx context.Context, msg *models.Message) (int, error) {
	event, err := s.Events.GetByID(ctx, msg.EventID)
	if err != nil {
		return 0, fmt.Errorf("failed to get event %d: %w", msg.EventID, err)
	}
	if event == nil {
		return 0, errors.New("event no longer exists")
	}
	org, err := s.Organizations.GetByID(ctx, msg.OrganizationID)
	if err != nil {
		return 0, fmt.Errorf("failed to get organization %d: %w", msg.OrganizationID, err)
	}
	orgName := ""
	if org != nil {
		orgName = org.Name
	}

	attendees, err := s.Attendance.GetByEvent(ctx, msg.EventID)
	if err != nil {
		return 0, fmt.Errorf("failed to get attendees for event %d: %w", msg.EventID, err)
	}

	html := mail.RenderAttendeeEmail(orgName, event.Title, event.StartTime, msg.Subject, msg.Body)

	// one email per address even when someone checked in twice
	seen := make(map[string]bool, len(attendees))
	var errs *multierror.Error
	sent := 0
	for _, a := range attendees {
		key := strings.ToLower(a.Email)
		if seen[key] {
			continue
		}
		seen[key] = true

		if err := s.mailer.Send(ctx, mail.Email{
			ToName:  a.Name,
			ToEmail: a.Email,
			Subject: msg.Subject,
			Text:    msg.Body,
			HTML:    html,
		}); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		sent++
	}

	return sent, errs.ErrorOrNil()
}
