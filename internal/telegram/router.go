package telegram

import (
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Router handles message routing and command parsing
type Router struct {
	logger       *logrus.Logger
	handlers     map[string]CommandHandler
	descriptions map[string]string
}

// CommandHandler defines the interface for command handlers
type CommandHandler interface {
	Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error
}

// NewRouter creates a new message router
func NewRouter(logger *logrus.Logger) *Router {
	return &Router{
		logger:       logger,
		handlers:     make(map[string]CommandHandler),
		descriptions: make(map[string]string),
	}
}

// RegisterCommand registers a command handler. A non-empty description puts
// the command in the chat's command menu.
func (r *Router) RegisterCommand(command, description string, handler CommandHandler) {
	r.handlers[command] = handler
	if description != "" {
		r.descriptions[command] = description
	}
	r.logger.Debugf("Registered command: %s", command)
}

// commandMenu lists the described commands in name order.
func (r *Router) commandMenu() []tgbotapi.BotCommand {
	menu := make([]tgbotapi.BotCommand, 0, len(r.descriptions))
	for command, description := range r.descriptions {
		menu = append(menu, tgbotapi.BotCommand{Command: command, Description: description})
	}
	sort.Slice(menu, func(i, j int) bool { return menu[i].Command < menu[j].Command })
	return menu
}

// lookup returns the handler for a command message. Commands addressed to
// another bot in a group ("/events@otherbot") are ignored by the caller,
// so only the bare command name is matched here.
func (r *Router) lookup(message *tgbotapi.Message) (CommandHandler, string, []string, bool) {
	if message.Text == "" || !message.IsCommand() {
		return nil, "", nil, false
	}
	command := message.Command()
	handler, ok := r.handlers[command]
	return handler, command, strings.Fields(message.CommandArguments()), ok
}

// HandleMessage handles incoming messages
func (r *Router) HandleMessage(bot *tgbotapi.BotAPI, message *tgbotapi.Message) {
	fields := logrus.Fields{
		"chat_id":    message.Chat.ID,
		"message_id": message.MessageID,
	}
	if message.From != nil {
		fields["user_id"] = message.From.ID
	}

	if message.Text == "" || !message.IsCommand() {
		return
	}
	if mention := message.CommandWithAt(); strings.Contains(mention, "@") && bot != nil &&
		!strings.EqualFold(mention[strings.Index(mention, "@")+1:], bot.Self.UserName) {
		return
	}

	r.logger.WithFields(fields).WithField("text", message.Text).Info("Received command")

	handler, command, args, ok := r.lookup(message)
	if !ok {
		r.logger.WithFields(fields).WithField("command", command).Warn("Unknown command")

		unknownMsg := tgbotapi.NewMessage(message.Chat.ID, "❓ Unknown command. Use /help to see available commands.")
		if _, err := bot.Send(unknownMsg); err != nil {
			r.logger.WithError(err).Error("Failed to send unknown command reply")
		}
		return
	}

	if err := handler.Handle(bot, message, args); err != nil {
		r.logger.WithFields(fields).WithFields(logrus.Fields{
			"command": command,
			"error":   err,
		}).Error("Command handler failed")

		errorMsg := tgbotapi.NewMessage(message.Chat.ID, "❌ An error occurred while processing your command. Please try again.")
		if _, err := bot.Send(errorMsg); err != nil {
			r.logger.WithError(err).Error("Failed to send error reply")
		}
	}
}
