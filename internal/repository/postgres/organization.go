package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Kerhoff/CheckinBoT/internal/models"
	"github.com/Kerhoff/CheckinBoT/internal/repository"
)

type organizationRepository struct {
	db *sql.DB
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *sql.DB) repository.OrganizationRepository {
	return &organizationRepository{db: db}
}

const organizationColumns = `id, name, email, password_hash, telegram_chat_id, created_at, updated_at`

func (r *organizationRepository) Create(ctx context.Context, org *models.Organization) (*models.Organization, error) {
	query := `
		INSERT INTO organizations (name, email, password_hash, telegram_chat_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	stamp(time.Now(), &org.CreatedAt, &org.UpdatedAt)
	org.Email = strings.ToLower(strings.TrimSpace(org.Email))

	err := r.db.QueryRowContext(ctx, query,
		org.Name,
		org.Email,
		org.PasswordHash,
		org.TelegramChatID,
		org.CreatedAt,
		org.UpdatedAt,
	).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	return org, nil
}

func (r *organizationRepository) GetByID(ctx context.Context, id int64) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *organizationRepository) GetByEmail(ctx context.Context, email string) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE email = $1`
	return r.getOne(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (r *organizationRepository) GetByTelegramChatID(ctx context.Context, chatID int64) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE telegram_chat_id = $1`
	return r.getOne(ctx, query, chatID)
}

func (r *organizationRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Organization, error) {
	org := &models.Organization{}
	var chatID sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&org.ID,
		&org.Name,
		&org.Email,
		&org.PasswordHash,
		&chatID,
		&org.CreatedAt,
		&org.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	if chatID.Valid {
		org.TelegramChatID = &chatID.Int64
	}
	return org, nil
}

func (r *organizationRepository) Update(ctx context.Context, org *models.Organization) (*models.Organization, error) {
	query := `
		UPDATE organizations
		SET name = $2, telegram_chat_id = $3, updated_at = $4
		WHERE id = $1
		RETURNING updated_at`

	stamp(time.Now(), &org.UpdatedAt)

	err := r.db.QueryRowContext(ctx, query,
		org.ID,
		org.Name,
		org.TelegramChatID,
		org.UpdatedAt,
	).Scan(&org.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("organization with ID %d: %w", org.ID, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}

	return org, nil
}
