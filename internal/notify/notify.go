// Package notify delivers outbound chat messages and fetches inbound file
// attachments. Telegram is the production implementation; Log is a stand-in
// used when no bot token is configured.
package notify

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/tbourn/duty-roster-bot/internal/sysutil"
)

// Notifier sends a Markdown-formatted message to one chat.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// FileFetcher downloads the bytes of an inbound attachment.
type FileFetcher interface {
	Fetch(ctx context.Context, fileID string) ([]byte, error)
}

// ErrFileTooLarge is returned when an attachment exceeds the configured cap.
var ErrFileTooLarge = errors.New("file too large")

// ErrNoFetcher is returned by Log.Fetch.
var ErrNoFetcher = errors.New("file downloads are not configured")

// Log writes messages to a logger instead of delivering them.
type Log struct {
	L zerolog.Logger
}

func (n Log) Send(_ context.Context, chatID int64, text string) error {
	n.L.Info().Int64("chat_id", chatID).Str("text", sysutil.Truncate(text, 200)).Msg("outbound message (delivery disabled)")
	return nil
}

func (n Log) Fetch(context.Context, string) ([]byte, error) {
	return nil, ErrNoFetcher
}
