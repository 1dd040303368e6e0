// Package notify pushes critical pulse cards to Telegram.
package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dealerpulse/pulse/internal/models"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendCards sends a notification for the given cards. Callers typically pass
// the critical-level subset of an ingest batch.
func (c *Client) SendCards(cards []models.PulseCard) error {
	if len(cards) == 0 {
		return nil
	}
	return c.sendMarkdownV2(formatMessage(cards))
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// formatMessage formats pulse cards into a Telegram MarkdownV2 message.
func formatMessage(cards []models.PulseCard) string {
	message := "🚨 *Pulse: critical events*\n\n"

	for i, card := range cards {
		title := card.Title
		if title == "" {
			title = card.ID
		}
		message += fmt.Sprintf("%d\\. *%s* \\(%s\\)\n",
			i+1, escapeMarkdownV2(title), escapeMarkdownV2(card.Kind))

		if card.Detail != "" {
			message += fmt.Sprintf("   %s\n", escapeMarkdownV2(card.Detail))
		}
		if card.Delta != 0 {
			arrow := "📈"
			if card.Delta < 0 {
				arrow = "📉"
			}
			message += fmt.Sprintf("   %s %s\n",
				arrow, escapeMarkdownV2(fmt.Sprintf("%+.1f%%", card.Delta)))
		}
		message += fmt.Sprintf("   🕐 %s\n\n",
			escapeMarkdownV2(card.TS.Format("2006-01-02 15:04:05")))
	}

	return message
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
