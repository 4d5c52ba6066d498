// Package telegram implements interfaces.ChatTransport over
// go-telegram-bot-api, the project's Go analogue of the original's
// aiogram-backed bot client.
package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vavlxxx/feedfusion/internal/interfaces"
)

// Transport sends chat messages through a Telegram bot.
type Transport struct {
	bot *tgbotapi.BotAPI
}

// New authenticates against the Telegram Bot API with token.
func New(token string) (*Transport, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot auth: %w", err)
	}
	return &Transport{bot: bot}, nil
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", chatID, err)
	}
	return id, nil
}

// SendText sends an HTML-formatted text message.
func (t *Transport) SendText(ctx context.Context, chatID, html string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(id, html)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = t.bot.RequestWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("telegram send text to %s: %w", chatID, err)
	}
	return nil
}

// SendPhoto sends a photo by URL with an HTML-formatted caption.
func (t *Transport) SendPhoto(ctx context.Context, chatID, imageURL, captionHTML string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(id, tgbotapi.FileURL(imageURL))
	photo.Caption = captionHTML
	photo.ParseMode = tgbotapi.ModeHTML
	_, err = t.bot.RequestWithContext(ctx, photo)
	if err != nil {
		return fmt.Errorf("telegram send photo to %s: %w", chatID, err)
	}
	return nil
}

var _ interfaces.ChatTransport = (*Transport)(nil)
