package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/CheckinBoT/internal/repository"
	"github.com/Kerhoff/CheckinBoT/internal/service"
	"github.com/Kerhoff/CheckinBoT/internal/window"
)

const upcomingLimit = 10

var statusLabels = map[window.Status]string{
	window.StatusNotStarted:     "⏳ not open yet",
	window.StatusOpen:           "🟢 open",
	window.StatusClosed:         "⚪️ ended",
	window.StatusManuallyClosed: "🔴 closed",
}

// ---------------------------------------------------------------------------
// EventsHandler – /events
// ---------------------------------------------------------------------------

// EventsHandler lists the organization's upcoming events.
type EventsHandler struct {
	orgCommand
	now func() time.Time
}

func NewEventsHandler(svc *service.Service, logger *logrus.Logger) *EventsHandler {
	return &EventsHandler{orgCommand: orgCommand{svc: svc, logger: logger}, now: time.Now}
}

func (h *EventsHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	return respond(bot, message, h.logger, "events", func(ctx context.Context) (string, error) {
		return h.reply(ctx, message.Chat.ID)
	})
}

func (h *EventsHandler) reply(ctx context.Context, chatID int64) (string, error) {
	org, err := h.organization(ctx, chatID)
	if err != nil || org == nil {
		return notLinkedText, err
	}

	// Events still accepting late check-ins count as upcoming.
	now := h.now()
	from := now.Add(-12 * time.Hour)
	events, err := h.svc.ListEvents(ctx, org.ID, repository.EventFilters{From: &from, Limit: upcomingLimit * 2})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	shown := 0
	for _, e := range events {
		status := e.RegistrationStatus(now)
		if status == window.StatusClosed && e.EndTime.Before(now) {
			continue
		}
		if shown == upcomingLimit {
			break
		}
		shown++
		fmt.Fprintf(&b, "*#%d* %s\n    %s · %s\n", e.ID, escape(e.Title),
			formatTime(e.StartTime, e.Timezone), statusLabels[status])
	}

	if shown == 0 {
		return "📭 No upcoming events.", nil
	}
	return "📅 *Upcoming events*\n\n" + b.String(), nil
}

// ---------------------------------------------------------------------------
// CloseHandler – /close <id> and /reopen <id>
// ---------------------------------------------------------------------------

// CloseHandler closes or reopens registration for an event.
type CloseHandler struct {
	orgCommand
	closed bool
}

func NewCloseHandler(svc *service.Service, logger *logrus.Logger) *CloseHandler {
	return &CloseHandler{orgCommand: orgCommand{svc: svc, logger: logger}, closed: true}
}

func NewReopenHandler(svc *service.Service, logger *logrus.Logger) *CloseHandler {
	return &CloseHandler{orgCommand: orgCommand{svc: svc, logger: logger}, closed: false}
}

func (h *CloseHandler) command() string {
	if h.closed {
		return "close"
	}
	return "reopen"
}

func (h *CloseHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	return respond(bot, message, h.logger, h.command(), func(ctx context.Context) (string, error) {
		return h.reply(ctx, message.Chat.ID, args)
	})
}

func (h *CloseHandler) reply(ctx context.Context, chatID int64, args []string) (string, error) {
	org, err := h.organization(ctx, chatID)
	if err != nil || org == nil {
		return notLinkedText, err
	}

	id, err := eventArg(args, "/"+h.command()+" <event id>")
	if err != nil {
		return "", err
	}

	event, err := h.svc.SetEventClosed(ctx, org.ID, id, h.closed)
	if err != nil {
		return "", err
	}

	if h.closed {
		return fmt.Sprintf("🔴 Check-ins for *%s* are closed.", escape(event.Title)), nil
	}
	return fmt.Sprintf("🟢 Check-ins for *%s* are accepted again during the registration window.", escape(event.Title)), nil
}
