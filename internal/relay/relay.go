// Package relay delivers finished files and status messages to the remote
// endpoint. Sinks take files; notifiers send and edit interactive messages.
package relay

import (
	"context"
	"unicode/utf8"
)

// Message size limits of the chat platform
const (
	MaxCaptionLen = 1024
	MaxTextLen    = 4096
)

// File is one payload handed to a sink
type File struct {
	Path     string
	Caption  string
	Duration int // seconds, 0 when unknown
	Width    int
	Height   int
}

// Sink accepts files. Both methods may fail transiently; callers do not retry.
type Sink interface {
	SendVideo(ctx context.Context, chatID int64, file File) error
	SendDocument(ctx context.Context, chatID int64, file File) error
}

// Button is an inline button carrying an encoded callback payload
type Button struct {
	Text string
	Data string
}

// Message is a text message with optional rows of buttons
type Message struct {
	Text    string
	Buttons [][]Button
}

// Notifier sends and edits status messages and answers button presses
type Notifier interface {
	Send(ctx context.Context, chatID int64, msg Message) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, msg Message) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n == 1 {
		return string(runes[:1])
	}
	return string(runes[:n-1]) + "…"
}
