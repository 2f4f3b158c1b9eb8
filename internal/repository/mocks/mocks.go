// Package mocks provides testify mocks of the repository interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Kerhoff/CheckinBoT/internal/models"
	"github.com/Kerhoff/CheckinBoT/internal/repository"
)

var (
	_ repository.OrganizationRepository = (*OrganizationRepository)(nil)
	_ repository.PatternRepository      = (*PatternRepository)(nil)
	_ repository.EventRepository        = (*EventRepository)(nil)
	_ repository.AttendanceRepository   = (*AttendanceRepository)(nil)
	_ repository.MessageRepository      = (*MessageRepository)(nil)
)

type OrganizationRepository struct{ mock.Mock }

func (m *OrganizationRepository) Create(ctx context.Context, org *models.Organization) (*models.Organization, error) {
	args := m.Called(ctx, org)
	v, _ := args.Get(0).(*models.Organization)
	return v, args.Error(1)
}

func (m *OrganizationRepository) GetByID(ctx context.Context, id int64) (*models.Organization, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*models.Organization)
	return v, args.Error(1)
}

func (m *OrganizationRepository) GetByEmail(ctx context.Context, email string) (*models.Organization, error) {
	args := m.Called(ctx, email)
	v, _ := args.Get(0).(*models.Organization)
	return v, args.Error(1)
}

func (m *OrganizationRepository) GetByTelegramChatID(ctx context.Context, chatID int64) (*models.Organization, error) {
	args := m.Called(ctx, chatID)
	v, _ := args.Get(0).(*models.Organization)
	return v, args.Error(1)
}

func (m *OrganizationRepository) Update(ctx context.Context, org *models.Organization) (*models.Organization, error) {
	args := m.Called(ctx, org)
	v, _ := args.Get(0).(*models.Organization)
	return v, args.Error(1)
}

type PatternRepository struct{ mock.Mock }

func (m *PatternRepository) Create(ctx context.Context, p *models.RecurrencePattern) (*models.RecurrencePattern, error) {
	args := m.Called(ctx, p)
	v, _ := args.Get(0).(*models.RecurrencePattern)
	return v, args.Error(1)
}

func (m *PatternRepository) GetByID(ctx context.Context, id int64) (*models.RecurrencePattern, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*models.RecurrencePattern)
	return v, args.Error(1)
}

func (m *PatternRepository) GetByOrganization(ctx context.Context, orgID int64) ([]*models.RecurrencePattern, error) {
	args := m.Called(ctx, orgID)
	v, _ := args.Get(0).([]*models.RecurrencePattern)
	return v, args.Error(1)
}

func (m *PatternRepository) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type EventRepository struct{ mock.Mock }

func (m *EventRepository) Create(ctx context.Context, event *models.Event) (*models.Event, error) {
	args := m.Called(ctx, event)
	v, _ := args.Get(0).(*models.Event)
	return v, args.Error(1)
}

func (m *EventRepository) CreateBatch(ctx context.Context, events []*models.Event) error {
	return m.Called(ctx, events).Error(0)
}

func (m *EventRepository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*models.Event)
	return v, args.Error(1)
}

func (m *EventRepository) GetByOrganization(ctx context.Context, orgID int64, filters repository.EventFilters) ([]*models.Event, error) {
	args := m.Called(ctx, orgID, filters)
	v, _ := args.Get(0).([]*models.Event)
	return v, args.Error(1)
}

func (m *EventRepository) GetByPattern(ctx context.Context, patternID int64) ([]*models.Event, error) {
	args := m.Called(ctx, patternID)
	v, _ := args.Get(0).([]*models.Event)
	return v, args.Error(1)
}

func (m *EventRepository) Update(ctx context.Context, event *models.Event) (*models.Event, error) {
	args := m.Called(ctx, event)
	v, _ := args.Get(0).(*models.Event)
	return v, args.Error(1)
}

func (m *EventRepository) SetClosed(ctx context.Context, id int64, closed bool) error {
	return m.Called(ctx, id, closed).Error(0)
}

func (m *EventRepository) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type AttendanceRepository struct{ mock.Mock }

func (m *AttendanceRepository) Create(ctx context.Context, a *models.Attendance) (*models.Attendance, error) {
	args := m.Called(ctx, a)
	v, _ := args.Get(0).(*models.Attendance)
	return v, args.Error(1)
}

func (m *AttendanceRepository) GetByEvent(ctx context.Context, eventID int64) ([]*models.Attendance, error) {
	args := m.Called(ctx, eventID)
	v, _ := args.Get(0).([]*models.Attendance)
	return v, args.Error(1)
}

func (m *AttendanceRepository) CountByEvent(ctx context.Context, eventID int64) (int, error) {
	args := m.Called(ctx, eventID)
	return args.Int(0), args.Error(1)
}

type MessageRepository struct{ mock.Mock }

func (m *MessageRepository) Create(ctx context.Context, msg *models.Message) (*models.Message, error) {
	args := m.Called(ctx, msg)
	v, _ := args.Get(0).(*models.Message)
	return v, args.Error(1)
}

func (m *MessageRepository) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*models.Message)
	return v, args.Error(1)
}

func (m *MessageRepository) GetByEvent(ctx context.Context, eventID int64) ([]*models.Message, error) {
	args := m.Called(ctx, eventID)
	v, _ := args.Get(0).([]*models.Message)
	return v, args.Error(1)
}

func (m *MessageRepository) GetDue(ctx context.Context, now time.Time) ([]*models.Message, error) {
	args := m.Called(ctx, now)
	v, _ := args.Get(0).([]*models.Message)
	return v, args.Error(1)
}

func (m *MessageRepository) MarkSent(ctx context.Context, id int64, recipients int, sentAt time.Time) error {
	return m.Called(ctx, id, recipients, sentAt).Error(0)
}

func (m *MessageRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}
