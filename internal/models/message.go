package models

import "time"

// MessageStatus is the delivery state of an attendee message.
type MessageStatus string

const (
	MessageStatusPending MessageStatus = "pending"
	MessageStatusSent    MessageStatus = "sent"
	MessageStatusFailed  MessageStatus = "failed"
)

// Message is an email an organization sends to everyone who checked in to an
// event, either immediately or at SendAt.
type Message struct {
	ID             int64         `json:"id" db:"id"`
	OrganizationID int64         `json:"organization_id" db:"organization_id"`
	EventID        int64         `json:"event_id" db:"event_id"`
	Subject        string        `json:"subject" db:"subject"`
	Body           string        `json:"body" db:"body"`
	SendAt         time.Time     `json:"send_at" db:"send_at"`
	Status         MessageStatus `json:"status" db:"status"`
	Recipients     int           `json:"recipients" db:"recipients"`
	LastError      string        `json:"last_error,omitempty" db:"last_error"`
	SentAt         *time.Time    `json:"sent_at" db:"sent_at"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// IsDue returns true if the message should be sent at now
func (m *Message) IsDue(now time.Time) bool {
	if m.Status != MessageStatusPending {
		return false
	}
	return !now.Before(m.SendAt)
}
