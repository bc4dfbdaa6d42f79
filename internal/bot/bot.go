// Package bot feeds chat updates into the coordinator, either by long
// polling or from webhook requests.
package bot

import (
	"context"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ytget/yt-relay/internal/coordinator"
	"github.com/ytget/yt-relay/internal/relay"
)

// DefaultPollTimeout is the long polling timeout in seconds
const DefaultPollTimeout = 60

const (
	startText = "Hello there 👋\n\nSend me a link and pick a format. I will download it and upload it here, split into parts when it is too big.\n\nSee /help for details."
	helpText  = "How to use me:\n\n1. Send a link to a video page.\n2. Pick a video or audio format from the menu.\n3. Wait for the upload. Large files arrive in several parts.\n\nAdd a caption with: <link> * <caption>\nYou can cancel a running download from its progress message."
)

// Handler is the part of the coordinator the bot drives
type Handler interface {
	HandleURL(ctx context.Context, req coordinator.Request) error
	HandleCallback(ctx context.Context, cb coordinator.Callback) error
}

// Source delivers updates by long polling
type Source interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot dispatches each update on its own goroutine so a slow format lookup
// of one user never delays another.
type Bot struct {
	handler  Handler
	notifier relay.Notifier
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// New creates a Bot
func New(handler Handler, notifier relay.Notifier, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{handler: handler, notifier: notifier, logger: logger}
}

// Poll receives updates from src until ctx is done, then waits for the
// updates in flight.
func (b *Bot) Poll(ctx context.Context, src Source, timeout int) error {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = timeout

	updates := src.GetUpdatesChan(cfg)
	b.logger.Info("polling for updates", "timeout", timeout)
	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			src.StopReceivingUpdates()
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			b.Dispatch(ctx, u)
		}
	}
}

// Dispatch handles u in the background
func (b *Bot) Dispatch(ctx context.Context, u tgbotapi.Update) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.handle(ctx, u)
	}()
}

// Wait blocks until every dispatched update has been handled
func (b *Bot) Wait() {
	b.wg.Wait()
}

func (b *Bot) handle(ctx context.Context, u tgbotapi.Update) {
	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	default:
		b.logger.Debug("ignoring update", "update", u.UpdateID)
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.From == nil || m.Chat == nil || m.Text == "" {
		return
	}

	if m.IsCommand() {
		switch m.Command() {
		case "start":
			b.reply(ctx, m.Chat.ID, startText)
		case "help":
			b.reply(ctx, m.Chat.ID, helpText)
		default:
			b.logger.Debug("unknown command", "command", m.Command(), "user", m.From.ID)
		}
		return
	}

	req := coordinator.Request{UserID: m.From.ID, ChatID: m.Chat.ID, Text: m.Text}
	if err := b.handler.HandleURL(ctx, req); err != nil {
		b.logger.Info("request rejected", "user", m.From.ID, "error", err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil {
		return
	}
	cb := coordinator.Callback{ID: q.ID, UserID: q.From.ID, Data: q.Data}
	if q.Message != nil {
		cb.MessageID = q.Message.MessageID
		if q.Message.Chat != nil {
			cb.ChatID = q.Message.Chat.ID
		}
	}
	if err := b.handler.HandleCallback(ctx, cb); err != nil {
		b.logger.Info("callback rejected", "user", q.From.ID, "error", err)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.notifier.Send(ctx, chatID, relay.Message{Text: text}); err != nil {
		b.logger.Error("failed to send message", "chat", chatID, "error", err)
	}
}
