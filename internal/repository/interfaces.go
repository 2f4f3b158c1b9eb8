package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Kerhoff/CheckinBoT/internal/models"
)

// ErrNotFound is returned by updates and deletes that matched no row.
// Lookups return (nil, nil) instead.
var ErrNotFound = errors.New("record not found")

// OrganizationRepository defines the interface for organization data operations
type OrganizationRepository interface {
	Create(ctx context.Context, org *models.Organization) (*models.Organization, error)
	GetByID(ctx context.Context, id int64) (*models.Organization, error)
	GetByEmail(ctx context.Context, email string) (*models.Organization, error)
	GetByTelegramChatID(ctx context.Context, chatID int64) (*models.Organization, error)
	Update(ctx context.Context, org *models.Organization) (*models.Organization, error)
}

// PatternRepository defines the interface for recurrence pattern operations.
// Patterns are never updated once their events exist.
type PatternRepository interface {
	Create(ctx context.Context, pattern *models.RecurrencePattern) (*models.RecurrencePattern, error)
	GetByID(ctx context.Context, id int64) (*models.RecurrencePattern, error)
	GetByOrganization(ctx context.Context, orgID int64) ([]*models.RecurrencePattern, error)
	Delete(ctx context.Context, id int64) error
}

// EventRepository defines the interface for event instance operations
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) (*models.Event, error)
	// CreateBatch inserts all events in one transaction: either every event
	// is stored and gets its ID, or none is.
	CreateBatch(ctx context.Context, events []*models.Event) error
	GetByID(ctx context.Context, id int64) (*models.Event, error)
	GetByOrganization(ctx context.Context, orgID int64, filters EventFilters) ([]*models.Event, error)
	GetByPattern(ctx context.Context, patternID int64) ([]*models.Event, error)
	Update(ctx context.Context, event *models.Event) (*models.Event, error)
	SetClosed(ctx context.Context, id int64, closed bool) error
	Delete(ctx context.Context, id int64) error
}

// AttendanceRepository defines the interface for attendance records. It does
// not enforce one record per attendee and event.
type AttendanceRepository interface {
	Create(ctx context.Context, a *models.Attendance) (*models.Attendance, error)
	GetByEvent(ctx context.Context, eventID int64) ([]*models.Attendance, error)
	CountByEvent(ctx context.Context, eventID int64) (int, error)
}

// MessageRepository defines the interface for attendee email messages
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) (*models.Message, error)
	GetByID(ctx context.Context, id int64) (*models.Message, error)
	GetByEvent(ctx context.Context, eventID int64) ([]*models.Message, error)
	GetDue(ctx context.Context, now time.Time) ([]*models.Message, error)
	MarkSent(ctx context.Context, id int64, recipients int, sentAt time.Time) error
	MarkFailed(ctx context.Context, id int64, reason string) error
}

// EventFilters represents filters for querying events
type EventFilters struct {
	From  *time.Time
	To    *time.Time
	Limit int
}
