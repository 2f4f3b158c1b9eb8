package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// pollTimeout is the long-polling timeout in seconds.
const pollTimeout = 60

// Bot is the organizer-facing Telegram surface. It routes admin commands and
// delivers check-in notifications to organization chats.
type Bot struct {
	api    *tgbotapi.BotAPI
	logger *logrus.Logger
	router *Router
}

// NewBot authorizes against the Bot API with token.
func NewBot(token string, logger *logrus.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	logger.WithField("bot", api.Self.UserName).Info("Telegram bot authorized")

	return &Bot{
		api:    api,
		logger: logger,
		router: NewRouter(logger),
	}, nil
}

// Start publishes the command menu, then long-polls for admin commands until
// ctx is done. A menu that cannot be published is logged and polling
// continues, since commands still work when typed.
func (b *Bot) Start(ctx context.Context) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	menu := b.router.commandMenu()
	if len(menu) > 0 {
		if _, err := b.api.Request(tgbotapi.NewSetMyCommands(menu...)); err != nil {
			b.logger.WithError(err).Warn("Failed to publish command menu")
		}
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := b.api.GetUpdatesChan(u)

	b.logger.WithFields(logrus.Fields{
		"bot":      b.api.Self.UserName,
		"commands": len(menu),
	}).Info("Admin bot polling for commands")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Stopping admin bot")
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			go b.handleUpdate(update)
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithField("update_id", update.UpdateID).Errorf("Panic in command handler: %v", r)
		}
	}()

	// only organizer commands arrive here; attendees check in over the web flow
	if update.Message != nil {
		b.router.HandleMessage(b.api, update.Message)
	}
}

// SendMessage sends a Markdown message to an organization chat. Callers
// escape any user-supplied text with escape before composing it.
func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	return nil
}

// RegisterCommand routes /command to handler and lists it in the command
// menu under description.
func (b *Bot) RegisterCommand(command, description string, handler CommandHandler) {
	b.router.RegisterCommand(command, description, handler)
}
