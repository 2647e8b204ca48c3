package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Button is one inline keyboard entry.
type Button struct {
	Text string
	Data string
}

// Sender sends and edits messages in Telegram chats.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendHTML(ctx context.Context, chatID int64, htmlText string) error
	SendForceReply(ctx context.Context, chatID int64, text string) error
	SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]Button) error
	EditKeyboard(ctx context.Context, chatID int64, messageID int, text string, rows [][]Button) error
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	AnswerCallback(ctx context.Context, callbackID string) error
}

// TelegramSender implements Sender using tgbotapi.
type TelegramSender struct {
	api *tgbotapi.BotAPI
}

// NewTelegramSender creates a new sender.
func NewTelegramSender(api *tgbotapi.BotAPI) *TelegramSender {
	return &TelegramSender{api: api}
}

// SendText sends a plain text message.
func (s *TelegramSender) SendText(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := s.api.Send(msg)
	return err
}

// SendHTML sends an HTML-formatted message.
func (s *TelegramSender) SendHTML(ctx context.Context, chatID int64, htmlText string) error {
	msg := tgbotapi.NewMessage(chatID, htmlText)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := s.api.Send(msg)
	return err
}

// SendForceReply sends a message that prompts the user for a reply.
func (s *TelegramSender) SendForceReply(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.ForceReply{ForceReply: true, Selective: true}
	_, err := s.api.Send(msg)
	return err
}

// SendKeyboard sends a message with an inline keyboard.
func (s *TelegramSender) SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]Button) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = inlineKeyboard(rows)
	_, err := s.api.Send(msg)
	return err
}

// EditKeyboard replaces an existing message's text and keyboard.
func (s *TelegramSender) EditKeyboard(ctx context.Context, chatID int64, messageID int, text string, rows [][]Button) error {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, inlineKeyboard(rows))
	_, err := s.api.Send(edit)
	return err
}

// EditText replaces an existing message's text and drops its keyboard.
func (s *TelegramSender) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	_, err := s.api.Send(edit)
	return err
}

// AnswerCallback acknowledges a callback query.
func (s *TelegramSender) AnswerCallback(ctx context.Context, callbackID string) error {
	cb := tgbotapi.NewCallback(callbackID, "")
	_, err := s.api.Request(cb)
	return err
}

func inlineKeyboard(rows [][]Button) tgbotapi.InlineKeyboardMarkup {
	kb := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		kb = append(kb, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(kb...)
}
