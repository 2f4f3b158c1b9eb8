package telegram

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/CheckinBoT/internal/models"
)

// CheckedIn posts a live check-in to the organization's chat. Failures are
// logged; a check-in never fails because the chat is unreachable.
func (b *Bot) CheckedIn(chatID int64, event *models.Event, a *models.Attendance, total int) {
	if err := b.SendMessage(chatID, CheckInText(event, a, total)); err != nil {
		b.logger.WithFields(logrus.Fields{
			"chat_id":  chatID,
			"event_id": event.ID,
		}).WithError(err).Warn("Failed to post check-in")
	}
}

// CheckInText renders the chat notification for one check-in.
func CheckInText(event *models.Event, a *models.Attendance, total int) string {
	at := a.CheckedInAt
	if loc, err := time.LoadLocation(event.Timezone); err == nil {
		at = at.In(loc)
	}
	return fmt.Sprintf("✅ *%s* checked in to %s at %s\n👥 %d attendee(s) so far",
		escape(a.Name), escape(event.Title), at.Format("15:04"), total)
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}
