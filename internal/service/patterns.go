package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Kerhoff/CheckinBoT/internal/models"
	"github.com/Kerhoff/CheckinBoT/internal/recurrence"
)

// CreatePattern validates a recurrence pattern, expands it into events and
// stores both. The pattern is only kept when every instance was inserted.
func (s *Service) CreatePattern(ctx context.Context, orgID int64, p *models.RecurrencePattern) (*models.RecurrencePattern, error) {
	p.ID = 0
	p.OrganizationID = orgID
	p.Events = nil
	p.Title = strings.TrimSpace(p.Title)
	if p.Timezone == "" {
		p.Timezone = s.opts.DefaultTimezone
	}
	if p.RecurrenceInterval == 0 {
		p.RecurrenceInterval = 1
	}
	if p.LocationLat != nil && p.LocationLng != nil && p.LocationRadiusMeters == 0 {
		p.LocationRadiusMeters = DefaultRadiusMeters
	}

	if res := recurrence.Validate(p); !res.Valid {
		return nil, &ValidationError{Kind: ErrInvalidPattern, Problems: res.Errors}
	}

	drafts, err := recurrence.Generate(p, s.opts.MaxInstances)
	if err != nil {
		if errors.Is(err, recurrence.ErrInvalidPattern) {
			return nil, &ValidationError{Kind: ErrInvalidPattern, Problems: []string{err.Error()}}
		}
		return nil, fmt.Errorf("failed to generate events: %w", err)
	}
	if len(drafts) == 0 {
		return nil, ErrNoInstances
	}

	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	saved, err := s.Patterns.Create(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern: %w", err)
	}

	patternID := saved.ID
	for _, ev := range drafts {
		ev.PatternID = &patternID
		ev.CreatedAt, ev.UpdatedAt = now, now
	}

	if err := s.Events.CreateBatch(ctx, drafts); err != nil {
		// undo the pattern so no half-created series is left behind
		if delErr := s.Patterns.Delete(ctx, patternID); delErr != nil {
			s.logger.WithError(delErr).Errorf("Failed to remove pattern %d after event insert failure", patternID)
		}
		return nil, fmt.Errorf("failed to create events for pattern %d: %w", patternID, err)
	}

	s.metrics.InstancesGenerated(len(drafts))
	s.logger.Infof("Created pattern %q with %d events (id=%d, org=%d)", saved.Title, len(drafts), patternID, orgID)

	saved.Events = drafts
	return saved, nil
}

// ListPatterns returns the organization's patterns without their events.
func (s *Service) ListPatterns(ctx context.Context, orgID int64) ([]*models.RecurrencePattern, error) {
	patterns, err := s.Patterns.GetByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns for organization %d: %w", orgID, err)
	}
	return patterns, nil
}

// GetPattern returns a pattern with the events generated from it.
func (s *Service) GetPattern(ctx context.Context, orgID, patternID int64) (*models.RecurrencePattern, error) {
	p, err := s.ownedPattern(ctx, orgID, patternID)
	if err != nil {
		return nil, err
	}
	events, err := s.Events.GetByPattern(ctx, patternID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for pattern %d: %w", patternID, err)
	}
	p.Events = events
	return p, nil
}

// DeletePattern removes a pattern and every event generated from it.
func (s *Service) DeletePattern(ctx context.Context, orgID, patternID int64) error {
	if _, err := s.ownedPattern(ctx, orgID, patternID); err != nil {
		return err
	}
	if err := s.Patterns.Delete(ctx, patternID); err != nil {
		return fmt.Errorf("failed to delete pattern %d: %w", patternID, notFound(err))
	}
	return nil
}
