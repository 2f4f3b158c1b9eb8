package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/CheckinBoT/internal/service"
)

// StartHandler handles the /start command. It tells organizers which chat ID
// to link and whether the chat is already linked.
type StartHandler struct {
	orgCommand
}

// NewStartHandler creates a new start command handler
func NewStartHandler(svc *service.Service, logger *logrus.Logger) *StartHandler {
	return &StartHandler{orgCommand{svc: svc, logger: logger}}
}

// Handle processes the /start command
func (h *StartHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	return respond(bot, message, h.logger, "start", func(ctx context.Context) (string, error) {
		return h.reply(ctx, message.Chat.ID)
	})
}

func (h *StartHandler) reply(ctx context.Context, chatID int64) (string, error) {
	org, err := h.organization(ctx, chatID)
	if err != nil {
		return "", err
	}

	text := "🎯 *Welcome to CheckinBoT!*\n\n" +
		"I post live check-ins and let you manage your events from this chat.\n\n"
	if org == nil {
		return text + fmt.Sprintf("This chat's ID is `%d`.\n"+
			"Save it as the Telegram chat in your organization settings to link it.\n\n"+
			"Use /help to see available commands.", chatID), nil
	}
	return text + fmt.Sprintf("✅ Linked to *%s*.\n\nUse /help to see available commands.", escape(org.Name)), nil
}
