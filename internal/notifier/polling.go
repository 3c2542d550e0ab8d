package notifier

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// CommandHandler is called when a user command is received.
type CommandHandler func(command string) string

// StartPolling long-polls for commands from the configured chat. Blocks until
// ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.api.GetUpdatesChan(u)
	defer t.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("telegram polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			t.dispatch(update, handler)
		}
	}
}

func (t *TelegramNotifier) dispatch(update tgbotapi.Update, handler CommandHandler) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	// Only the configured chat may drive the bot.
	if msg.Chat == nil || msg.Chat.ID != t.chatID {
		return
	}
	command := "/" + strings.ToLower(msg.Command())
	log.Info().Str("command", command).Msg("received command")
	reply := handler(command)
	if reply == "" {
		return
	}
	if err := t.Send(reply); err != nil {
		log.Error().Err(err).Msg("send reply")
	}
}
