package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/CheckinBoT/internal/auth"
	"github.com/Kerhoff/CheckinBoT/internal/models"
)

func TestRegister(t *testing.T) {
	h := newHarness(t)
	h.orgs.On("GetByEmail", mock.Anything, "club@example.com").Return(nil, nil).Once()
	h.orgs.On("Create", mock.Anything, mock.MatchedBy(func(o *models.Organization) bool {
		return o.Name == "Run Club" && o.Email == "club@example.com" &&
			auth.CheckPassword(o.PasswordHash, "long enough secret") == nil
	})).Return(&models.Organization{ID: 7, Name: "Run Club", Email: "club@example.com"}, nil).Once()

	session, err := h.svc.Register(context.Background(), " Run Club ", " Club@Example.com ", "long enough secret")
	require.NoError(t, err)
	assert.Equal(t, int64(7), session.Organization.ID)

	orgID, err := h.svc.tokens.Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), orgID)
}

func TestRegister_Rejections(t *testing.T) {
	h := newHarness(t)
	h.orgs.On("GetByEmail", mock.Anything, "taken@example.com").Return(&models.Organization{ID: 1}, nil).Once()
	h.orgs.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, nil).Once()
	ctx := context.Background()

	_, err := h.svc.Register(ctx, "Club", "taken@example.com", "long enough secret")
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = h.svc.Register(ctx, "", "not-an-email", "long enough secret")
	assert.ErrorIs(t, err, ErrInvalidOrganization)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 2)

	_, err = h.svc.Register(ctx, "Club", "new@example.com", "short")
	assert.ErrorIs(t, err, auth.ErrWeakPassword)
	h.orgs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	hash, err := auth.HashPassword("long enough secret")
	require.NoError(t, err)
	org := &models.Organization{ID: 7, Email: "club@example.com", PasswordHash: hash}
	h.orgs.On("GetByEmail", mock.Anything, "club@example.com").Return(org, nil)
	h.orgs.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, nil).Once()
	ctx := context.Background()

	session, err := h.svc.Login(ctx, "CLUB@example.com", "long enough secret")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)

	_, err = h.svc.Login(ctx, "club@example.com", "wrong password!")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = h.svc.Login(ctx, "nobody@example.com", "long enough secret")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestUpdateOrganization_LinksChat(t *testing.T) {
	h := newHarness(t)
	h.orgs.On("GetByID", mock.Anything, int64(7)).Return(&models.Organization{ID: 7, Name: "Old"}, nil)
	h.orgs.On("GetByTelegramChatID", mock.Anything, int64(-100)).Return(nil, nil).Once()
	h.orgs.On("GetByTelegramChatID", mock.Anything, int64(-200)).Return(&models.Organization{ID: 8}, nil).Once()
	h.orgs.On("Update", mock.Anything, mock.MatchedBy(func(o *models.Organization) bool {
		return o.Name == "New" && o.TelegramChatID != nil && *o.TelegramChatID == -100
	})).Return(&models.Organization{ID: 7, Name: "New", TelegramChatID: int64Ptr(-100)}, nil).Once()
	ctx := context.Background()

	name := "New"
	org, err := h.svc.UpdateOrganization(ctx, 7, OrganizationUpdate{Name: &name, TelegramChatID: int64Ptr(-100)})
	require.NoError(t, err)
	assert.Equal(t, int64(-100), *org.TelegramChatID)

	_, err = h.svc.UpdateOrganization(ctx, 7, OrganizationUpdate{TelegramChatID: int64Ptr(-200)})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestOrganizationForChat(t *testing.T) {
	h := newHarness(t)
	h.orgs.On("GetByTelegramChatID", mock.Anything, int64(-100)).Return(&models.Organization{ID: 7}, nil).Once()
	h.orgs.On("GetByTelegramChatID", mock.Anything, int64(-300)).Return(nil, nil).Once()

	org, err := h.svc.OrganizationForChat(context.Background(), -100)
	require.NoError(t, err)
	assert.Equal(t, int64(7), org.ID)

	_, err = h.svc.OrganizationForChat(context.Background(), -300)
	assert.ErrorIs(t, err, ErrNotFound)
}
