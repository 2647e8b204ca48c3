package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/lucabenedettini/pypi-monitor-aws-bot/model"
	"github.com/lucabenedettini/pypi-monitor-aws-bot/pypi"
	"github.com/lucabenedettini/pypi-monitor-aws-bot/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const unfollowPrefix = "unfollow:"
const listCallback = "list"

// Storage defines persistence used by bot handlers.
type Storage interface {
	GetOrCreateUser(ctx context.Context, telegramID int64, fullName, username string) (model.User, error)
	CreateTracking(ctx context.Context, userID int64, slug, link, initialVersion string, createdAt time.Time) error
	ListUserSlugs(ctx context.Context, userID int64) ([]string, error)
	DeleteTracking(ctx context.Context, userID int64, slug string) error
}

// Resolver validates that a package exists and reads its current version.
type Resolver interface {
	Resolve(ctx context.Context, slug string) pypi.Result
}

// Bot handles Telegram updates.
type Bot struct {
	Sender   Sender
	Storage  Storage
	Resolver Resolver
	Logger   *slog.Logger
	Now      func() time.Time

	conv *conversations
}

// New creates a bot with the given reply timeout for /track conversations.
func New(sender Sender, store Storage, resolver Resolver, logger *slog.Logger, replyTimeout time.Duration) *Bot {
	b := &Bot{
		Sender:   sender,
		Storage:  store,
		Resolver: resolver,
		Logger:   logger,
		Now:      time.Now,
	}
	b.conv = newConversations(replyTimeout, func() time.Time { return b.Now() })
	return b
}

// HandleUpdate dispatches a Telegram update.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	logger := b.logger()

	if update.Message != nil {
		b.handleMessage(ctx, logger, update.Message)
		return
	}
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, logger, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, logger *slog.Logger, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	user, err := b.lookupUser(ctx, msg.From)
	if err != nil {
		logger.Warn("user_lookup_failed", slog.Int64("telegram_id", msg.From.ID), slog.String("error", err.Error()))
		return
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.handleStart(ctx, chatID)
		case "track":
			b.handleTrack(ctx, chatID)
		case "cancel":
			b.handleCancel(ctx, chatID)
		case "list":
			b.handleList(ctx, logger, user, chatID)
		default:
			_ = b.Sender.SendText(ctx, chatID, "Unknown command. Try /track, /list, /cancel.")
		}
		return
	}

	if b.conv.awaitingLink(chatID) {
		b.handleLink(ctx, logger, user, chatID, msg.Text)
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	text := "Hi! Welcome to the PyPI Package Updates Bot.\n\n" +
		"I can watch PyPI packages for you and notify you when a new version is released.\n\n" +
		"Start tracking a package with /track, see what you follow with /list."
	_ = b.Sender.SendText(ctx, chatID, text)
}

func (b *Bot) handleTrack(ctx context.Context, chatID int64) {
	b.conv.begin(chatID)
	_ = b.Sender.SendForceReply(ctx, chatID, "Send me the PyPI link of the package you want to track")
}

func (b *Bot) handleCancel(ctx context.Context, chatID int64) {
	b.conv.end(chatID)
	_ = b.Sender.SendText(ctx, chatID, "Operation cancelled")
}

func (b *Bot) handleList(ctx context.Context, logger *slog.Logger, user model.User, chatID int64) {
	slugs, err := b.Storage.ListUserSlugs(ctx, user.ID)
	if err != nil {
		logger.Warn("list_slugs_failed", slog.Int64("user_id", user.ID), slog.String("error", err.Error()))
		_ = b.Sender.SendText(ctx, chatID, "Something went wrong, please try again later.")
		return
	}
	if len(slugs) == 0 {
		_ = b.Sender.SendText(ctx, chatID, "You are not tracking any package yet.\nStart now with /track")
		return
	}
	_ = b.Sender.SendKeyboard(ctx, chatID, "Packages you are tracking:", slugKeyboard(slugs))
}

// handleLink runs the awaiting-link step of the /track conversation.
// Every branch ends the conversation.
func (b *Bot) handleLink(ctx context.Context, logger *slog.Logger, user model.User, chatID int64, text string) {
	defer b.conv.end(chatID)

	link := strings.TrimSuffix(strings.TrimSpace(text), "/")
	slug, err := pypi.ParseProjectURL(link)
	if err != nil {
		_ = b.Sender.SendText(ctx, chatID, "❌ That link is not valid.\nI can only track packages available on https://pypi.org")
		return
	}

	result := b.Resolver.Resolve(ctx, slug)
	switch result.Status {
	case pypi.StatusNotFound:
		_ = b.Sender.SendText(ctx, chatID, "❌ That link is not valid.\nI can only track packages available on https://pypi.org")
		return
	case pypi.StatusUnreachable:
		logger.Warn("track_resolve_unreachable", slog.String("slug", slug), slog.String("error", errText(result.Err)))
		_ = b.Sender.SendText(ctx, chatID, "PyPI is not reachable right now, please try again later.")
		return
	}

	err = b.Storage.CreateTracking(ctx, user.ID, slug, link, result.Version, b.Now().UTC())
	if errors.Is(err, storage.ErrDuplicateTracking) {
		_ = b.Sender.SendHTML(ctx, chatID, fmt.Sprintf(
			"❗️ You are already tracking <code>%s</code>\nYou will be the first to know when a new release is published.",
			html.EscapeString(slug)))
		return
	}
	if err != nil {
		logger.Warn("track_create_failed", slog.String("slug", slug), slog.String("error", err.Error()))
		_ = b.Sender.SendText(ctx, chatID, "Something went wrong, please try again later.")
		return
	}

	logger.Info("tracking_created", slog.Int64("user_id", user.ID), slog.String("slug", slug), slog.String("version", result.Version))
	_ = b.Sender.SendHTML(ctx, chatID, fmt.Sprintf(
		"✅ Package saved!\n\n<code>%s</code> is currently at version <code>%s</code>\nI will notify you when a new version is released.",
		html.EscapeString(slug), html.EscapeString(result.Version)))
}

func (b *Bot) handleCallback(ctx context.Context, logger *slog.Logger, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID

	user, err := b.lookupUser(ctx, cb.From)
	if err != nil {
		logger.Warn("user_lookup_failed", slog.Int64("telegram_id", cb.From.ID), slog.String("error", err.Error()))
		return
	}
	_ = b.Sender.AnswerCallback(ctx, cb.ID)

	data := cb.Data
	switch {
	case data == listCallback:
		slugs, err := b.Storage.ListUserSlugs(ctx, user.ID)
		if err != nil {
			logger.Warn("list_slugs_failed", slog.Int64("user_id", user.ID), slog.String("error", err.Error()))
			return
		}
		if len(slugs) == 0 {
			_ = b.Sender.EditText(ctx, chatID, messageID, "You are not tracking any package yet.\nStart now with /track")
			return
		}
		_ = b.Sender.EditKeyboard(ctx, chatID, messageID, "Packages you are tracking:", slugKeyboard(slugs))

	case strings.HasPrefix(data, unfollowPrefix):
		slug := strings.TrimPrefix(data, unfollowPrefix)
		if err := b.Storage.DeleteTracking(ctx, user.ID, slug); err != nil {
			logger.Warn("unfollow_failed", slog.Int64("user_id", user.ID), slog.String("slug", slug), slog.String("error", err.Error()))
			return
		}
		logger.Info("tracking_deleted", slog.Int64("user_id", user.ID), slog.String("slug", slug))
		_ = b.Sender.EditText(ctx, chatID, messageID, fmt.Sprintf("You are no longer tracking %s", slug))

	default:
		rows := [][]Button{
			{{Text: "Stop tracking", Data: unfollowPrefix + data}},
			{{Text: "Back to the list", Data: listCallback}},
		}
		_ = b.Sender.EditKeyboard(ctx, chatID, messageID, fmt.Sprintf("Stop tracking %s?", data), rows)
	}
}

func (b *Bot) lookupUser(ctx context.Context, from *tgbotapi.User) (model.User, error) {
	fullName := strings.TrimSpace(from.FirstName + " " + from.LastName)
	return b.Storage.GetOrCreateUser(ctx, from.ID, fullName, from.UserName)
}

func (b *Bot) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

func slugKeyboard(slugs []string) [][]Button {
	rows := make([][]Button, 0, len(slugs))
	for _, slug := range slugs {
		rows = append(rows, []Button{{Text: slug, Data: slug}})
	}
	return rows
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
