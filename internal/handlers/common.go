package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/CheckinBoT/internal/models"
	"github.com/Kerhoff/CheckinBoT/internal/service"
)

const (
	notLinkedText = "🔗 This chat is not linked to an organization yet.\n\n" +
		"Send /start to see the chat ID, then save it in your organization settings."
	notFoundText = "❌ Event not found."
)

// usageError carries the synopsis of a command called with bad arguments.
type usageError string

func (e usageError) Error() string { return "usage: " + string(e) }

// orgCommand is the shared part of commands that act on the organization
// linked to the chat.
type orgCommand struct {
	svc    *service.Service
	logger *logrus.Logger
}

// organization resolves the chat's organization. A nil organization with a
// nil error means the chat is not linked.
func (c orgCommand) organization(ctx context.Context, chatID int64) (*models.Organization, error) {
	org, err := c.svc.OrganizationForChat(ctx, chatID)
	if errors.Is(err, service.ErrNotFound) {
		return nil, nil
	}
	return org, err
}

// eventArg parses the single event ID argument of a command.
func eventArg(args []string, usage string) (int64, error) {
	if len(args) != 1 {
		return 0, usageError(usage)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, usageError(usage)
	}
	return id, nil
}

// send delivers a Markdown reply.
func send(bot *tgbotapi.BotAPI, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

// formatTime renders t in the event's own timezone.
func formatTime(t time.Time, tz string) string {
	if loc, err := time.LoadLocation(tz); err == nil {
		t = t.In(loc)
	}
	return t.Format("Mon 02 Jan 15:04 MST")
}

// replyFor turns a command error into the text sent back to the chat. It
// returns a non-nil error only for failures that should be logged.
func replyFor(err error) (string, error) {
	var usage usageError
	switch {
	case errors.As(err, &usage):
		return "ℹ️ Usage: `" + string(usage) + "`", nil
	case errors.Is(err, service.ErrNotFound):
		return notFoundText, nil
	default:
		return "", err
	}
}

// respond runs reply and sends its text, or the matching error text.
func respond(bot *tgbotapi.BotAPI, message *tgbotapi.Message, logger *logrus.Logger, command string,
	reply func(ctx context.Context) (string, error)) error {
	text, err := reply(context.Background())
	if err != nil {
		if text, err = replyFor(err); err != nil {
			return err
		}
	}

	if err := send(bot, message.Chat.ID, text); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"command": command,
	}).Info("Handled organizer command")
	return nil
}
