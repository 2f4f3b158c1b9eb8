package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Kerhoff/CheckinBoT/internal/auth"
	"github.com/Kerhoff/CheckinBoT/internal/models"
)

// Session is what a successful register or login returns.
type Session struct {
	Organization *models.Organization `json:"organization"`
	Token        string               `json:"token"`
	ExpiresAt    time.Time            `json:"expires_at"`
}

// Register creates an organization and signs it in.
func (s *Service) Register(ctx context.Context, name, email, password string) (*Session, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	var problems []string
	if name == "" {
		problems = append(problems, "name is required")
	}
	if !validEmail(email) {
		problems = append(problems, "email address is not valid")
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Kind: ErrInvalidOrganization, Problems: problems}
	}

	existing, err := s.Organizations.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup organization (email=%s): %w", email, err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	org, err := s.Organizations.Create(ctx, &models.Organization{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}
	s.logger.Infof("Created organization %q (id=%d)", org.Name, org.ID)

	return s.session(org)
}

// Login checks the credentials and returns a fresh access token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	org, err := s.Organizations.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup organization (email=%s): %w", email, err)
	}
	if org == nil {
		return nil, auth.ErrInvalidCredentials
	}
	if err := auth.CheckPassword(org.PasswordHash, password); err != nil {
		return nil, err
	}
	return s.session(org)
}

func (s *Service) session(org *models.Organization) (*Session, error) {
	token, exp, err := s.tokens.Issue(org.ID, org.Email)
	if err != nil {
		return nil, err
	}
	return &Session{Organization: org, Token: token, ExpiresAt: exp}, nil
}

// GetOrganization returns the organization or ErrNotFound.
func (s *Service) GetOrganization(ctx context.Context, orgID int64) (*models.Organization, error) {
	org, err := s.Organizations.GetByID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization %d: %w", orgID, err)
	}
	if org == nil {
		return nil, ErrNotFound
	}
	return org, nil
}

// OrganizationUpdate holds the editable organization fields. Nil fields are
// left unchanged; a zero TelegramChatID unlinks the chat.
type OrganizationUpdate struct {
	Name           *string `json:"name"`
	TelegramChatID *int64  `json:"telegram_chat_id"`
}

// UpdateOrganization renames the organization or links a Telegram chat. A
// chat can be linked to one organization only.
func (s *Service) UpdateOrganization(ctx context.Context, orgID int64, upd OrganizationUpdate) (*models.Organization, error) {
	org, err := s.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, &ValidationError{Kind: ErrInvalidOrganization, Problems: []string{"name is required"}}
		}
		org.Name = name
	}

	if upd.TelegramChatID != nil {
		if *upd.TelegramChatID == 0 {
			org.TelegramChatID = nil
		} else {
			other, err := s.Organizations.GetByTelegramChatID(ctx, *upd.TelegramChatID)
			if err != nil {
				return nil, fmt.Errorf("failed to lookup organization (chat_id=%d): %w", *upd.TelegramChatID, err)
			}
			if other != nil && other.ID != org.ID {
				return nil, fmt.Errorf("%w: chat is linked to another organization", ErrForbidden)
			}
			chatID := *upd.TelegramChatID
			org.TelegramChatID = &chatID
		}
	}

	org.UpdatedAt = s.now()
	org, err = s.Organizations.Update(ctx, org)
	if err != nil {
		return nil, fmt.Errorf("failed to update organization %d: %w", orgID, notFound(err))
	}
	return org, nil
}

// OrganizationForChat returns the organization linked to a Telegram chat,
// or ErrNotFound when the chat is not linked.
func (s *Service) OrganizationForChat(ctx context.Context, chatID int64) (*models.Organization, error) {
	org, err := s.Organizations.GetByTelegramChatID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup organization (chat_id=%d): %w", chatID, err)
	}
	if org == nil {
		return nil, ErrNotFound
	}
	return org, nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
