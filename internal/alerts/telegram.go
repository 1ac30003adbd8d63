package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"market-intel/internal/store"
)

// Min interval between two messages to the same chat (~30/min limit).
const telegramSendInterval = 2 * time.Second

// chatSender is the part of *tgbotapi.BotAPI the sink needs.
type chatSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSink posts alerts at or above MinLevel to a chat.
type TelegramSink struct {
	bot      chatSender
	chatID   int64
	minLevel string
	interval time.Duration

	mu       sync.Mutex
	lastSend time.Time
}

// NewTelegramSink connects the bot and returns a sink that posts HIGH alerts.
func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	bot.Debug = false

	slog.Info("Telegram sink initialized", "chat_id", chatID, "bot", bot.Self.UserName)
	return newTelegramSink(bot, chatID), nil
}

func newTelegramSink(bot chatSender, chatID int64) *TelegramSink {
	return &TelegramSink{
		bot:      bot,
		chatID:   chatID,
		minLevel: store.AlertHigh,
		interval: telegramSendInterval,
	}
}

// Name implements Sink.
func (t *TelegramSink) Name() string { return "telegram" }

// Send implements Sink. Alerts below the minimum level are dropped silently.
func (t *TelegramSink) Send(ctx context.Context, a Alert) error {
	if !AtLeast(a.Level, t.minLevel) {
		return nil
	}

	if err := t.waitTurn(ctx); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, formatTelegram(a))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}

func (t *TelegramSink) waitTurn(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if wait := t.interval - time.Since(t.lastSend); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	t.lastSend = time.Now()
	return nil
}

func formatTelegram(a Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s alert* | %s\n", a.Level, escapeMarkdown(a.League))
	fmt.Fprintf(&b, "%s vs %s\n", escapeMarkdown(a.HomeTeam), escapeMarkdown(a.AwayTeam))
	fmt.Fprintf(&b, "Kickoff: %s UTC\n", a.MatchDate.UTC().Format("Jan 2 15:04"))
	if a.DrawOdds > 0 {
		fmt.Fprintf(&b, "Odds: %.2f / %.2f / %.2f\n", a.HomeOdds, a.DrawOdds, a.AwayOdds)
	} else {
		fmt.Fprintf(&b, "Odds: %.2f / %.2f\n", a.HomeOdds, a.AwayOdds)
	}
	if a.SteamNote != "" {
		fmt.Fprintf(&b, "Steam: %s\n", escapeMarkdown(a.SteamNote))
	}
	fmt.Fprintf(&b, "Best edge: %+.1f%%", a.BestEdge)
	return b.String()
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
