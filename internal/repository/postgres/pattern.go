package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Kerhoff/CheckinBoT/internal/models"
	"github.com/Kerhoff/CheckinBoT/internal/repository"
)

type patternRepository struct {
	db *sql.DB
}

// NewPatternRepository creates a new recurrence pattern repository
func NewPatternRepository(db *sql.DB) repository.PatternRepository {
	return &patternRepository{db: db}
}

const patternColumns = `id, organization_id, title, description, location_address, location_lat, location_lng,
		location_radius_meters, start_time, duration_minutes, recurrence_type, recurrence_interval,
		recurrence_days, recurrence_monthly_date, recurrence_monthly_week, recurrence_monthly_weekday,
		start_date, end_date, timezone, registration_window_before_minutes,
		registration_window_after_minutes, created_at, updated_at`

func (r *patternRepository) Create(ctx context.Context, p *models.RecurrencePattern) (*models.RecurrencePattern, error) {
	query := `
		INSERT INTO recurrence_patterns (organization_id, title, description, location_address, location_lat,
			location_lng, location_radius_meters, start_time, duration_minutes, recurrence_type,
			recurrence_interval, recurrence_days, recurrence_monthly_date, recurrence_monthly_week,
			recurrence_monthly_weekday, start_date, end_date, timezone, registration_window_before_minutes,
			registration_window_after_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING id, created_at, updated_at`

	stamp(time.Now(), &p.CreatedAt, &p.UpdatedAt)

	var days interface{}
	if p.RecurrenceDays != nil {
		days = pq.Int64Array(toInt64s(p.RecurrenceDays))
	}

	err := r.db.QueryRowContext(ctx, query,
		p.OrganizationID,
		p.Title,
		p.Description,
		p.LocationAddress,
		p.LocationLat,
		p.LocationLng,
		p.LocationRadiusMeters,
		p.StartTime,
		p.DurationMinutes,
		string(p.RecurrenceType),
		p.RecurrenceInterval,
		days,
		p.RecurrenceMonthlyDate,
		p.RecurrenceMonthlyWeek,
		p.RecurrenceMonthlyWeekday,
		p.StartDate,
		p.EndDate,
		p.Timezone,
		p.RegistrationWindowBeforeMinutes,
		p.RegistrationWindowAfterMinutes,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create recurrence pattern: %w", err)
	}

	return p, nil
}

func scanPattern(row rowScanner) (*models.RecurrencePattern, error) {
	p := &models.RecurrencePattern{}
	var (
		lat, lng                   sql.NullFloat64
		days                       pq.Int64Array
		monthlyDate, week, weekday sql.NullInt64
		recurrenceType             string
		startDate                  time.Time
		endDate                    sql.NullTime
	)
	if err := row.Scan(
		&p.ID,
		&p.OrganizationID,
		&p.Title,
		&p.Description,
		&p.LocationAddress,
		&lat,
		&lng,
		&p.LocationRadiusMeters,
		&p.StartTime,
		&p.DurationMinutes,
		&recurrenceType,
		&p.RecurrenceInterval,
		&days,
		&monthlyDate,
		&week,
		&weekday,
		&startDate,
		&endDate,
		&p.Timezone,
		&p.RegistrationWindowBeforeMinutes,
		&p.RegistrationWindowAfterMinutes,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.RecurrenceType = models.RecurrenceType(recurrenceType)
	p.StartDate = startDate.Format(models.DateLayout)
	if endDate.Valid {
		s := endDate.Time.Format(models.DateLayout)
		p.EndDate = &s
	}
	if lat.Valid && lng.Valid {
		p.LocationLat = &lat.Float64
		p.LocationLng = &lng.Float64
	}
	if days != nil {
		p.RecurrenceDays = make([]int, len(days))
		for i, d := range days {
			p.RecurrenceDays[i] = int(d)
		}
	}
	p.RecurrenceMonthlyDate = nullIntPtr(monthlyDate)
	p.RecurrenceMonthlyWeek = nullIntPtr(week)
	p.RecurrenceMonthlyWeekday = nullIntPtr(weekday)
	return p, nil
}

func (r *patternRepository) GetByID(ctx context.Context, id int64) (*models.RecurrencePattern, error) {
	query := `SELECT ` + patternColumns + ` FROM recurrence_patterns WHERE id = $1`

	p, err := scanPattern(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recurrence pattern: %w", err)
	}

	return p, nil
}

func (r *patternRepository) GetByOrganization(ctx context.Context, orgID int64) ([]*models.RecurrencePattern, error) {
	query := `SELECT ` + patternColumns + ` FROM recurrence_patterns WHERE organization_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurrence patterns: %w", err)
	}
	defer rows.Close()

	var patterns []*models.RecurrencePattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recurrence pattern: %w", err)
		}
		patterns = append(patterns, p)
	}

	return patterns, rows.Err()
}

// Delete removes the pattern; its events go with it through ON DELETE CASCADE.
func (r *patternRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM recurrence_patterns WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete recurrence pattern: %w", err)
	}
	return expectAffected(result, "recurrence pattern", id)
}

func toInt64s(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func nullIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
