// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/latencymon/internal/logger"
	"github.com/rewired-gh/latencymon/internal/models"
	"github.com/rewired-gh/latencymon/internal/monitor"
	"github.com/rewired-gh/latencymon/internal/notify"
)

// StatusProvider reports the live correlator status for the /status command.
type StatusProvider interface {
	Status() monitor.Status
}

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	status         StatusProvider
}

// NewClient creates a new Telegram client. status may be nil, in which case /status
// is not answered.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration, status StatusProvider) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
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
		status:         status,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message) {
	var reply tgbotapi.MessageConfig
	switch msg.Command() {
	case "ping":
		reply = tgbotapi.NewMessage(msg.Chat.ID, "Pong")
	case "status":
		if c.status == nil {
			return
		}
		reply = tgbotapi.NewMessage(msg.Chat.ID, formatStatus(c.status.Status()))
		reply.ParseMode = "MarkdownV2"
	default:
		return
	}
	if _, err := c.bot.Send(reply); err != nil {
		logger.Warn("Failed to answer /%s: %v", msg.Command(), err)
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// Notify sends one monitor event.
func (c *Client) Notify(ctx context.Context, e models.Event) error {
	return c.sendMarkdownV2(ctx, formatEvent(e))
}

// formatEvent formats an event into a Telegram MarkdownV2 message.
func formatEvent(e models.Event) string {
	switch e.Kind {
	case models.KindSpike:
		if e.Spike == nil {
			break
		}
		text := "⚡ *Spike detected*\n" + escapeMarkdownV2(e.Spike.Description)
		if e.Spike.Period != nil {
			pos := fmt.Sprintf("Q%d", *e.Spike.Period)
			if e.Spike.Clock != nil {
				pos += " " + *e.Spike.Clock
			}
			text += "\n🕒 " + escapeMarkdownV2(pos)
		}
		return text
	case models.KindProbabilityShift:
		if e.Shift == nil {
			break
		}
		directionEmoji := "📈"
		if e.Shift.Current < e.Shift.Previous {
			directionEmoji = "📉"
		}
		oldPct := escapeMarkdownV2(fmt.Sprintf("%.1f%%", e.Shift.Previous*100))
		newPct := escapeMarkdownV2(fmt.Sprintf("%.1f%%", e.Shift.Current*100))
		delta := escapeMarkdownV2(fmt.Sprintf("%.1f%%", e.Shift.Delta*100))
		return fmt.Sprintf("%s *Win probability moved %s* \\(%s → %s\\)", directionEmoji, delta, oldPct, newPct)
	case models.KindStake:
		if e.Stake == nil {
			break
		}
		return fmt.Sprintf("🎯 *Half\\-Kelly stake* %s of bankroll at price %s",
			escapeMarkdownV2(fmt.Sprintf("%.2f%%", e.Stake.Fraction*100)),
			escapeMarkdownV2(fmt.Sprintf("%.2f", e.Stake.Price)))
	case models.KindWhale:
		if e.Whale == nil {
			break
		}
		return fmt.Sprintf("🐋 *Whale Alert\\!* $%s traded on `%s` \\(side: %s\\)",
			escapeMarkdownV2(notify.Dollars(e.Whale)),
			escapeMarkdownV2(e.Whale.Ticker),
			escapeMarkdownV2(string(e.Whale.Side)))
	case models.KindError:
		return fmt.Sprintf("⚠️ *%s error*\n`%s`", escapeMarkdownV2(e.Source), escapeMarkdownV2(fmt.Sprint(e.Err)))
	}
	return escapeMarkdownV2(notify.Format(e))
}

// formatStatus renders the /status reply.
func formatStatus(st monitor.Status) string {
	var b strings.Builder
	b.WriteString("📊 *Status*: ")
	b.WriteString(escapeMarkdownV2(st.State.String()))
	if st.Previous != nil {
		b.WriteString("\nWin probability: ")
		b.WriteString(escapeMarkdownV2(fmt.Sprintf("%.3f", st.Previous.Value)))
		b.WriteString(escapeMarkdownV2(fmt.Sprintf(" (at %s)", st.Previous.ObservedAt.Format("15:04:05"))))
	}
	if st.Price != nil {
		b.WriteString("\nMarket price: ")
		b.WriteString(escapeMarkdownV2(fmt.Sprintf("%.3f", st.Price.Value)))
		b.WriteString(" on `")
		b.WriteString(escapeMarkdownV2(st.Price.Ticker))
		b.WriteString("`")
	} else {
		b.WriteString("\nMarket price: none yet")
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
