package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/CheckinBoT/internal/models"
	"github.com/Kerhoff/CheckinBoT/internal/repository"
)

type eventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *sql.DB) repository.EventRepository {
	return &eventRepository{db: db}
}

const eventColumns = `id, organization_id, pattern_id, title, description, location_address,
		location_lat, location_lng, location_radius_meters, start_time, end_time, timezone,
		registration_window_before_minutes, registration_window_after_minutes, is_closed,
		created_at, updated_at`

const insertEventQuery = `
		INSERT INTO events (organization_id, pattern_id, title, description, location_address,
			location_lat, location_lng, location_radius_meters, start_time, end_time, timezone,
			registration_window_before_minutes, registration_window_after_minutes, is_closed,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func insertEventArgs(event *models.Event) []interface{} {
	return []interface{}{
		event.OrganizationID,
		event.PatternID,
		event.Title,
		event.Description,
		event.LocationAddress,
		event.LocationLat,
		event.LocationLng,
		event.LocationRadiusMeters,
		event.StartTime.UTC(),
		event.EndTime.UTC(),
		event.Timezone,
		event.RegistrationWindowBeforeMinutes,
		event.RegistrationWindowAfterMinutes,
		event.IsClosed,
		event.CreatedAt,
		event.UpdatedAt,
	}
}

func scanEvent(row rowScanner) (*models.Event, error) {
	event := &models.Event{}
	var (
		patternID sql.NullInt64
		lat, lng  sql.NullFloat64
	)
	if err := row.Scan(
		&event.ID,
		&event.OrganizationID,
		&patternID,
		&event.Title,
		&event.Description,
		&event.LocationAddress,
		&lat,
		&lng,
		&event.LocationRadiusMeters,
		&event.StartTime,
		&event.EndTime,
		&event.Timezone,
		&event.RegistrationWindowBeforeMinutes,
		&event.RegistrationWindowAfterMinutes,
		&event.IsClosed,
		&event.CreatedAt,
		&event.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if patternID.Valid {
		event.PatternID = &patternID.Int64
	}
	if lat.Valid && lng.Valid {
		event.LocationLat = &lat.Float64
		event.LocationLng = &lng.Float64
	}
	event.StartTime = event.StartTime.UTC()
	event.EndTime = event.EndTime.UTC()
	return event, nil
}

func (r *eventRepository) Create(ctx context.Context, event *models.Event) (*models.Event, error) {
	stamp(time.Now(), &event.CreatedAt, &event.UpdatedAt)

	err := r.db.QueryRowContext(ctx, insertEventQuery, insertEventArgs(event)...).
		Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return event, nil
}

func (r *eventRepository) CreateBatch(ctx context.Context, events []*models.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, insertEventQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	ids := make([]int64, len(events))
	for i, event := range events {
		stamp(now, &event.CreatedAt, &event.UpdatedAt)
		if err := stmt.QueryRowContext(ctx, insertEventArgs(event)...).
			Scan(&ids[i], &event.CreatedAt, &event.UpdatedAt); err != nil {
			return fmt.Errorf("failed to insert event %d of %d: %w", i+1, len(events), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}

	// IDs are only handed out once the whole batch is stored
	for i, event := range events {
		event.ID = ids[i]
	}
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return event, nil
}

func (r *eventRepository) GetByOrganization(ctx context.Context, orgID int64, filters repository.EventFilters) ([]*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE organization_id = $1`
	args := []interface{}{orgID}
	argIdx := 2

	if filters.From != nil {
		query += fmt.Sprintf(" AND start_time >= $%d", argIdx)
		args = append(args, filters.From.UTC())
		argIdx++
	}
	if filters.To != nil {
		query += fmt.Sprintf(" AND start_time <= $%d", argIdx)
		args = append(args, filters.To.UTC())
		argIdx++
	}

	query += " ORDER BY start_time ASC, id ASC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filters.Limit)
	}

	return r.query(ctx, query, args...)
}

func (r *eventRepository) GetByPattern(ctx context.Context, patternID int64) ([]*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE pattern_id = $1 ORDER BY start_time ASC`
	return r.query(ctx, query, patternID)
}

func (r *eventRepository) query(ctx context.Context, query string, args ...interface{}) ([]*models.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

func (r *eventRepository) Update(ctx context.Context, event *models.Event) (*models.Event, error) {
	query := `
		UPDATE events
		SET title = $2, description = $3, location_address = $4, location_lat = $5, location_lng = $6,
			location_radius_meters = $7, start_time = $8, end_time = $9, timezone = $10,
			registration_window_before_minutes = $11, registration_window_after_minutes = $12,
			is_closed = $13, updated_at = $14
		WHERE id = $1
		RETURNING updated_at`

	stamp(time.Now(), &event.UpdatedAt)

	err := r.db.QueryRowContext(ctx, query,
		event.ID,
		event.Title,
		event.Description,
		event.LocationAddress,
		event.LocationLat,
		event.LocationLng,
		event.LocationRadiusMeters,
		event.StartTime.UTC(),
		event.EndTime.UTC(),
		event.Timezone,
		event.RegistrationWindowBeforeMinutes,
		event.RegistrationWindowAfterMinutes,
		event.IsClosed,
		event.UpdatedAt,
	).Scan(&event.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("event with ID %d: %w", event.ID, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	return event, nil
}

func (r *eventRepository) SetClosed(ctx context.Context, id int64, closed bool) error {
	query := `UPDATE events SET is_closed = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, closed, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update event closed flag: %w", err)
	}
	return expectAffected(result, "event", id)
}

func (r *eventRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM events WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return expectAffected(result, "event", id)
}

func expectAffected(result sql.Result, entity string, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%s with ID %d: %w", entity, id, repository.ErrNotFound)
	}

	return nil
}
