package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/CheckinBoT/internal/models"
	"github.com/Kerhoff/CheckinBoT/internal/repository"
)

type messageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a new scheduled message repository
func NewMessageRepository(db *sql.DB) repository.MessageRepository {
	return &messageRepository{db: db}
}

const messageColumns = `id, organization_id, event_id, subject, body, send_at, status, recipients, last_error, sent_at, created_at, updated_at`

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) (*models.Message, error) {
	query := `
		INSERT INTO scheduled_messages (organization_id, event_id, subject, body, send_at, status, recipients, last_error, sent_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	stamp(time.Now(), &msg.CreatedAt, &msg.UpdatedAt)

	if msg.Status == "" {
		msg.Status = models.MessageStatusPending
	}

	err := r.db.QueryRowContext(ctx, query,
		msg.OrganizationID,
		msg.EventID,
		msg.Subject,
		msg.Body,
		msg.SendAt.UTC(),
		string(msg.Status),
		msg.Recipients,
		msg.LastError,
		msg.SentAt,
		msg.CreatedAt,
		msg.UpdatedAt,
	).Scan(&msg.ID, &msg.CreatedAt, &msg.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	return msg, nil
}

func scanMessage(row rowScanner) (*models.Message, error) {
	msg := &models.Message{}
	var (
		status string
		sentAt sql.NullTime
	)
	if err := row.Scan(
		&msg.ID,
		&msg.OrganizationID,
		&msg.EventID,
		&msg.Subject,
		&msg.Body,
		&msg.SendAt,
		&status,
		&msg.Recipients,
		&msg.LastError,
		&sentAt,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	); err != nil {
		return nil, err
	}

	msg.Status = models.MessageStatus(status)
	if sentAt.Valid {
		msg.SentAt = &sentAt.Time
	}
	return msg, nil
}

func (r *messageRepository) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM scheduled_messages WHERE id = $1`

	msg, err := scanMessage(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return msg, nil
}

func (r *messageRepository) GetByEvent(ctx context.Context, eventID int64) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM scheduled_messages WHERE event_id = $1 ORDER BY send_at ASC`
	return r.query(ctx, query, eventID)
}

func (r *messageRepository) GetDue(ctx context.Context, now time.Time) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM scheduled_messages
		WHERE status = 'pending' AND send_at <= $1
		ORDER BY send_at ASC`
	return r.query(ctx, query, now.UTC())
}

func (r *messageRepository) query(ctx context.Context, query string, args ...interface{}) ([]*models.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (r *messageRepository) MarkSent(ctx context.Context, id int64, recipients int, sentAt time.Time) error {
	query := `
		UPDATE scheduled_messages
		SET status = 'sent', recipients = $2, sent_at = $3, last_error = '', updated_at = $4
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, recipients, sentAt.UTC(), time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark message sent: %w", err)
	}
	return expectAffected(result, "message", id)
}

func (r *messageRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	query := `
		UPDATE scheduled_messages
		SET status = 'failed', last_error = $2, updated_at = $3
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, reason, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark message failed: %w", err)
	}
	return expectAffected(result, "message", id)
}
