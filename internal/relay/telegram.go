package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/ytget/yt-relay/internal/model"
)

// BotAPI is the part of *tgbotapi.BotAPI the relay uses
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Telegram is a Sink and Notifier backed by the Bot API. Message edits are
// throttled so progress refreshes cannot exhaust the chat rate limit.
type Telegram struct {
	api    BotAPI
	edits  *rate.Limiter
	logger *slog.Logger
}

// NewTelegram wraps api. editsPerSecond <= 0 disables edit throttling.
func NewTelegram(api BotAPI, editsPerSecond float64, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if editsPerSecond > 0 {
		limit = rate.Limit(editsPerSecond)
	}
	return &Telegram{
		api:    api,
		edits:  rate.NewLimiter(limit, 1),
		logger: logger,
	}
}

// SendVideo uploads file as streamable video
func (t *Telegram) SendVideo(ctx context.Context, chatID int64, file File) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrCancelled, err)
	}
	v := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(file.Path))
	v.Caption = Truncate(file.Caption, MaxCaptionLen)
	v.Duration = file.Duration
	v.SupportsStreaming = true
	if _, err := t.api.Send(v); err != nil {
		return fmt.Errorf("%w: send video %s: %v", model.ErrNetwork, file.Path, err)
	}
	return nil
}

// SendDocument uploads file as a generic document
func (t *Telegram) SendDocument(ctx context.Context, chatID int64, file File) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrCancelled, err)
	}
	d := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(file.Path))
	d.Caption = Truncate(file.Caption, MaxCaptionLen)
	if _, err := t.api.Send(d); err != nil {
		return fmt.Errorf("%w: send document %s: %v", model.ErrNetwork, file.Path, err)
	}
	return nil
}

// Send posts msg and returns its message id
func (t *Telegram) Send(ctx context.Context, chatID int64, msg Message) (int, error) {
	out := tgbotapi.NewMessage(chatID, Truncate(msg.Text, MaxTextLen))
	if len(msg.Buttons) > 0 {
		out.ReplyMarkup = keyboard(msg.Buttons)
	}
	sent, err := t.api.Send(out)
	if err != nil {
		return 0, fmt.Errorf("%w: send message: %v", model.ErrNetwork, err)
	}
	return sent.MessageID, nil
}

// Edit replaces the text and buttons of a sent message
func (t *Telegram) Edit(ctx context.Context, chatID int64, messageID int, msg Message) error {
	if err := t.edits.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", model.ErrCancelled, err)
	}

	text := Truncate(msg.Text, MaxTextLen)
	var edit tgbotapi.EditMessageTextConfig
	if len(msg.Buttons) > 0 {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, keyboard(msg.Buttons))
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}

	if _, err := t.api.Request(edit); err != nil {
		if isNotModified(err) {
			return nil
		}
		return fmt.Errorf("%w: edit message: %v", model.ErrNetwork, err)
	}
	return nil
}

// AnswerCallback acknowledges a button press, optionally showing text
func (t *Telegram) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if _, err := t.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("%w: answer callback: %v", model.ErrNetwork, err)
	}
	return nil
}

func keyboard(rows [][]Button) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...)
}

// isNotModified matches the error returned when an edit changes nothing
func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}
