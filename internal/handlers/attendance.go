package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/CheckinBoT/internal/service"
)

// Telegram rejects messages longer than 4096 characters.
const maxListed = 50

// AttendeesHandler handles /attendees <id>.
type AttendeesHandler struct {
	orgCommand
}

func NewAttendeesHandler(svc *service.Service, logger *logrus.Logger) *AttendeesHandler {
	return &AttendeesHandler{orgCommand{svc: svc, logger: logger}}
}

func (h *AttendeesHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	return respond(bot, message, h.logger, "attendees", func(ctx context.Context) (string, error) {
		return h.reply(ctx, message.Chat.ID, args)
	})
}

func (h *AttendeesHandler) reply(ctx context.Context, chatID int64, args []string) (string, error) {
	org, err := h.organization(ctx, chatID)
	if err != nil || org == nil {
		return notLinkedText, err
	}

	id, err := eventArg(args, "/attendees <event id>")
	if err != nil {
		return "", err
	}

	records, err := h.svc.Attendees(ctx, org.ID, id)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "📭 Nobody has checked in yet.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "👥 *%d checked in*\n\n", len(records))
	for i, a := range records {
		if i == maxListed {
			fmt.Fprintf(&b, "…and %d more", len(records)-maxListed)
			break
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, escape(a.Name), escape(a.Email))
	}
	return b.String(), nil
}

// QRHandler handles /qr <id>: it sends a check-in link that works until the
// token expires.
type QRHandler struct {
	orgCommand
}

func NewQRHandler(svc *service.Service, logger *logrus.Logger) *QRHandler {
	return &QRHandler{orgCommand{svc: svc, logger: logger}}
}

func (h *QRHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	return respond(bot, message, h.logger, "qr", func(ctx context.Context) (string, error) {
		return h.reply(ctx, message.Chat.ID, args)
	})
}

func (h *QRHandler) reply(ctx context.Context, chatID int64, args []string) (string, error) {
	org, err := h.organization(ctx, chatID)
	if err != nil || org == nil {
		return notLinkedText, err
	}

	id, err := eventArg(args, "/qr <event id>")
	if err != nil {
		return "", err
	}

	payload, err := h.svc.IssueQR(ctx, org.ID, id)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("📲 Check-in link for event #%d:\n%s\n\n_Valid until %s._",
		id, escape(payload.URL), payload.ExpiresAt.Format("15:04:05 MST")), nil
}
