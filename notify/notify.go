package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/lucabenedettini/pypi-monitor-aws-bot/model"
)

// Storage provides subscriber lookup for fan-out.
type Storage interface {
	Subscribers(ctx context.Context, slug string) ([]model.User, error)
}

// Sender delivers messages to Telegram chats.
type Sender interface {
	SendHTML(ctx context.Context, chatID int64, htmlText string) error
}

// Notifier delivers one update message per subscriber of a package.
type Notifier struct {
	Storage Storage
	Sender  Sender
	Logger  *slog.Logger
}

// Notify sends the new-version message to every subscriber of the slug.
// A failed delivery is logged and skipped; it never stops delivery to
// the remaining subscribers and never propagates to the caller. The
// only returned error is a subscriber lookup failure.
func (n *Notifier) Notify(ctx context.Context, slug, newVersion string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}

	users, err := n.Storage.Subscribers(ctx, slug)
	if err != nil {
		return fmt.Errorf("subscribers of %s: %w", slug, err)
	}

	text := FormatUpdateMessage(slug, newVersion)
	sent := 0
	for _, user := range users {
		if err := n.Sender.SendHTML(ctx, user.TelegramID, text); err != nil {
			logger.Warn("notify_send_failed",
				slog.String("slug", slug),
				slog.Int64("telegram_id", user.TelegramID),
				slog.String("error", err.Error()))
			continue
		}
		sent++
	}
	logger.Info("notify_complete", slog.String("slug", slug), slog.String("version", newVersion), slog.Int("sent", sent), slog.Int("subscribers", len(users)))
	return nil
}

// FormatUpdateMessage renders the version-change message with HTML formatting.
func FormatUpdateMessage(slug, newVersion string) string {
	return fmt.Sprintf("✳️ <code>%s</code> has been updated to version <code>%s</code>",
		html.EscapeString(slug), html.EscapeString(newVersion))
}
