package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/CheckinBoT/internal/auth"
	"github.com/Kerhoff/CheckinBoT/internal/mail"
	"github.com/Kerhoff/CheckinBoT/internal/metrics"
	"github.com/Kerhoff/CheckinBoT/internal/models"
	"github.com/Kerhoff/CheckinBoT/internal/qrtoken"
	"github.com/Kerhoff/CheckinBoT/internal/repository"
)

const DefaultMaxInstances = 100

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrEmailTaken          = errors.New("an organization with this email already exists")
	ErrNoInstances         = errors.New("no events could be generated with the given pattern, check your dates and recurrence settings")
	ErrInvalidPattern      = errors.New("invalid recurrence pattern")
	ErrInvalidOrganization = errors.New("invalid organization")
	ErrInvalidEvent        = errors.New("invalid event")
	ErrInvalidMessage      = errors.New("invalid message")
	ErrInvalidAttendee     = errors.New("name and a valid email address are required")
	ErrInvalidCoordinates  = errors.New("a valid location is required to check in")
	ErrInvalidToken        = errors.New("QR code expired or invalid, please scan again")
	ErrOutsideRadius       = errors.New("outside the event radius")
	ErrRegistrationNotOpen = errors.New("registration is not open")
)

// ValidationError lists every problem found in a request. It wraps one of
// the ErrInvalid* sentinels.
type ValidationError struct {
	Kind     error
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error { return e.Kind }

// Options are the operator settings the service needs.
type Options struct {
	MaxInstances    int
	DefaultTimezone string
	PublicBaseURL   string
}

// Repositories groups the persistence ports.
type Repositories struct {
	Organizations repository.OrganizationRepository
	Patterns      repository.PatternRepository
	Events        repository.EventRepository
	Attendance    repository.AttendanceRepository
	Messages      repository.MessageRepository
}

// Notifier is told about every accepted check-in of an organization that
// has a linked Telegram chat.
type Notifier interface {
	CheckedIn(chatID int64, event *models.Event, a *models.Attendance, total int)
}

// Service is the central business logic layer that holds all repositories
// and provides high-level methods for the API and the bot.
type Service struct {
	logger        *logrus.Logger
	opts          Options
	Organizations repository.OrganizationRepository
	Patterns      repository.PatternRepository
	Events        repository.EventRepository
	Attendance    repository.AttendanceRepository
	Messages      repository.MessageRepository

	signer   *qrtoken.Signer
	tokens   *auth.Tokens
	mailer   mail.Mailer
	metrics  *metrics.Metrics
	notifier Notifier
	now      func() time.Time
}

// New creates a new Service with all required dependencies. m may be nil.
func New(logger *logrus.Logger, opts Options, repos Repositories,
	signer *qrtoken.Signer,
	tokens *auth.Tokens,
	mailer mail.Mailer,
	m *metrics.Metrics,
) *Service {
	if opts.MaxInstances <= 0 {
		opts.MaxInstances = DefaultMaxInstances
	}
	if opts.DefaultTimezone == "" {
		opts.DefaultTimezone = "UTC"
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")

	return &Service{
		logger:        logger,
		opts:          opts,
		Organizations: repos.Organizations,
		Patterns:      repos.Patterns,
		Events:        repos.Events,
		Attendance:    repos.Attendance,
		Messages:      repos.Messages,
		signer:        signer,
		tokens:        tokens,
		mailer:        mailer,
		metrics:       m,
		now:           time.Now,
	}
}

// SetNotifier attaches the check-in notifier. Call it before serving.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// Signer returns the QR token signer.
func (s *Service) Signer() *qrtoken.Signer {
	return s.signer
}

// ownedEvent loads an event and hides it from other organizations.
func (s *Service) ownedEvent(ctx context.Context, orgID, eventID int64) (*models.Event, error) {
	event, err := s.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event %d: %w", eventID, err)
	}
	if event == nil || event.OrganizationID != orgID {
		return nil, ErrNotFound
	}
	return event, nil
}

func (s *Service) ownedPattern(ctx context.Context, orgID, patternID int64) (*models.RecurrencePattern, error) {
	p, err := s.Patterns.GetByID(ctx, patternID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pattern %d: %w", patternID, err)
	}
	if p == nil || p.OrganizationID != orgID {
		return nil, ErrNotFound
	}
	return p, nil
}

// notFound maps the repository's not-found error onto the service one.
func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
