// Package telegram provides a client for sending alert notifications via
// the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pumpsentry/internal/models"
)

// AlertHistory serves the /recent bot command.
type AlertHistory interface {
	RecentAlerts(k int) ([]models.Alert, error)
}

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	history        AlertHistory
}

// NewClient creates a new Telegram client. history may be nil; the /recent
// command then reports that no journal is configured.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration, history AlertHistory) (*Client, error) {
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
		history:        history,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and
// handles bot commands. It returns immediately; the goroutine stops when
// ctx is cancelled.
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
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	case "recent":
		reply := tgbotapi.NewMessage(msg.Chat.ID, c.recentText())
		c.bot.Send(reply) //nolint:errcheck
	}
}

func (c *Client) recentText() string {
	if c.history == nil {
		return "No alert journal configured"
	}
	alerts, err := c.history.RecentAlerts(10)
	if err != nil {
		return fmt.Sprintf("Failed to read alert journal: %v", err)
	}
	if len(alerts) == 0 {
		return "No alerts recorded yet"
	}

	var b strings.Builder
	b.WriteString("Recent alerts:\n")
	for _, a := range alerts {
		fmt.Fprintf(&b, "%s %s %s %+.1f%% over %s\n",
			a.DetectedAt.Format("01-02 15:04"), a.Symbol, a.Direction,
			a.Return*100, formatWindow(a.Window))
	}
	return b.String()
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

// SendError sends a monitoring error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Feed error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Feed recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// SendAlert delivers one finalized alert.
func (c *Client) SendAlert(alert models.Alert) error {
	return c.sendMarkdownV2(formatAlert(alert))
}

// formatAlert renders an alert as a Telegram MarkdownV2 message.
func formatAlert(a models.Alert) string {
	var b strings.Builder

	header := "🚀 *PUMP ALERT*"
	verb := "pumped"
	if a.Direction == models.DirectionDump {
		header = "📉 *DUMP ALERT*"
		verb = "dumped"
	}
	b.WriteString(header + "\n\n")

	pct := escapeMarkdownV2(fmt.Sprintf("%.1f%%", abs(a.Return*100)))
	fmt.Fprintf(&b, "*%s* %s *%s* over last %s\n",
		escapeMarkdownV2(a.Symbol), verb, pct, escapeMarkdownV2(formatWindow(a.Window)))
	fmt.Fprintf(&b, "Price: %s → %s\n\n",
		escapeMarkdownV2(fmt.Sprintf("%.6g", a.OldPrice)),
		escapeMarkdownV2(fmt.Sprintf("%.6g", a.NewPrice)))

	fmt.Fprintf(&b, "📊 Volume: %s USDT \\(spike x%s, avg %s\\)\n",
		escapeMarkdownV2(fmt.Sprintf("%.0f", a.Volume.RecentSum)),
		escapeMarkdownV2(fmt.Sprintf("%.1f", a.Volume.SpikeRatio)),
		escapeMarkdownV2(fmt.Sprintf("%.0f", a.Volume.BaselineEquiv)))

	fmt.Fprintf(&b, "💹 Spread: %s \\(bid %s, ask %s\\), bid notional %s USDT\n",
		escapeMarkdownV2(fmt.Sprintf("%.2f%%", a.Spread.SpreadPct*100)),
		escapeMarkdownV2(fmt.Sprintf("%.6g", a.Spread.Bid)),
		escapeMarkdownV2(fmt.Sprintf("%.6g", a.Spread.Ask)),
		escapeMarkdownV2(fmt.Sprintf("%.0f", a.Spread.BidNotional)))

	if a.OI.HasData {
		fmt.Fprintf(&b, "📈 OI change: %s\n",
			escapeMarkdownV2(fmt.Sprintf("%+.1f%%", a.OI.ChangeRatio*100)))
	} else {
		b.WriteString("📈 OI change: insufficient history\n")
	}

	return b.String()
}

// formatWindow renders a detection window compactly: "45s", "5m", "1h".
func formatWindow(w time.Duration) string {
	switch {
	case w < time.Minute:
		return fmt.Sprintf("%ds", int(w.Seconds()))
	case w < time.Hour:
		return fmt.Sprintf("%dm", int(w.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(w.Hours()))
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
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
