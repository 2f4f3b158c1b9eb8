package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/CheckinBoT/internal/models"
	"github.com/Kerhoff/CheckinBoT/internal/repository"
)

type attendanceRepository struct {
	db *sql.DB
}

// NewAttendanceRepository creates a new attendance repository
func NewAttendanceRepository(db *sql.DB) repository.AttendanceRepository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) Create(ctx context.Context, a *models.Attendance) (*models.Attendance, error) {
	query := `
		INSERT INTO attendance (event_id, name, email, lat, lng, checked_in_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, checked_in_at`

	if a.CheckedInAt.IsZero() {
		a.CheckedInAt = time.Now()
	}

	err := r.db.QueryRowContext(ctx, query,
		a.EventID,
		a.Name,
		a.Email,
		a.Lat,
		a.Lng,
		a.CheckedInAt.UTC(),
	).Scan(&a.ID, &a.CheckedInAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create attendance: %w", err)
	}

	return a, nil
}

func (r *attendanceRepository) GetByEvent(ctx context.Context, eventID int64) ([]*models.Attendance, error) {
	query := `
		SELECT id, event_id, name, email, lat, lng, checked_in_at
		FROM attendance
		WHERE event_id = $1
		ORDER BY checked_in_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var records []*models.Attendance
	for rows.Next() {
		a := &models.Attendance{}
		if err := rows.Scan(
			&a.ID,
			&a.EventID,
			&a.Name,
			&a.Email,
			&a.Lat,
			&a.Lng,
			&a.CheckedInAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		records = append(records, a)
	}

	return records, rows.Err()
}

func (r *attendanceRepository) CountByEvent(ctx context.Context, eventID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance WHERE event_id = $1`, eventID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count attendance: %w", err)
	}
	return n, nil
}
