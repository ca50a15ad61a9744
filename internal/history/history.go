// Package history retrieves past channel conversations for indexing.
//
// Messages come back oldest first with thread replies interleaved directly
// after their parent, so downstream grouping sees each thread as one
// contiguous run. Bot noise (subtype messages) and trivially short messages
// are dropped at the source.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Message is one channel message retained for indexing.
type Message struct {
	Text      string
	Author    string
	Timestamp string
	ThreadID  string // thread root timestamp; empty for unthreaded messages
	Permalink string
}

// minMessageLen drops reactions-only and other trivially short messages.
const minMessageLen = 10

// Pager reads channel history from the chat platform, one page at a time.
type Pager interface {
	// HistoryPage returns messages at or after oldest, plus a cursor for the
	// next page; an empty cursor means the page was the last one.
	HistoryPage(ctx context.Context, channelID, oldest, cursor string) ([]RawMessage, string, error)
	// ThreadReplies returns all messages of a thread, parent included,
	// oldest first.
	ThreadReplies(ctx context.Context, channelID, threadTS string) ([]RawMessage, error)
}

// RawMessage is a platform message before filtering.
type RawMessage struct {
	Text       string
	User       string
	Timestamp  string
	ThreadTS   string
	Subtype    string
	ReplyCount int
	Permalink  string
}

// Fetcher pulls filtered channel history.
type Fetcher struct {
	pager  Pager
	logger *slog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(pager Pager, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{pager: pager, logger: logger}
}

// Fetch sends the channel's messages from the last `days` days on the
// returned channel, oldest first, thread replies interleaved after their
// parent. The channel is closed when history is exhausted or ctx is
// cancelled.
func (f *Fetcher) Fetch(ctx context.Context, channelID string, days int) <-chan Message {
	out := make(chan Message)
	go func() {
		defer close(out)
		if err := f.run(ctx, out, channelID, days); err != nil {
			f.logger.Warn("history fetch aborted", "channel", channelID, "error", err)
		}
	}()
	return out
}

func (f *Fetcher) run(ctx context.Context, out chan<- Message, channelID string, days int) error {
	oldest := fmt.Sprintf("%d.000000", time.Now().AddDate(0, 0, -days).Unix())

	var cursor string
	for {
		page, next, err := f.pager.HistoryPage(ctx, channelID, oldest, cursor)
		if err != nil {
			return fmt.Errorf("fetching history page: %w", err)
		}

		for _, raw := range page {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !keep(raw) {
				continue
			}
			if !emit(ctx, out, toMessage(raw)) {
				return ctx.Err()
			}

			// A parent with replies pulls its whole thread in right here.
			if raw.ReplyCount > 0 {
				if err := f.emitThread(ctx, out, channelID, raw.Timestamp); err != nil {
					f.logger.Warn("thread fetch failed", "thread", raw.Timestamp, "error", err)
				}
			}
		}

		if next == "" {
			return nil
		}
		cursor = next
	}
}

// emitThread sends a thread's replies, excluding the parent which the history
// page already delivered.
func (f *Fetcher) emitThread(ctx context.Context, out chan<- Message, channelID, threadTS string) error {
	replies, err := f.pager.ThreadReplies(ctx, channelID, threadTS)
	if err != nil {
		return err
	}
	for _, raw := range replies {
		if raw.Timestamp == threadTS || !keep(raw) {
			continue
		}
		if !emit(ctx, out, toMessage(raw)) {
			return ctx.Err()
		}
	}
	return nil
}

// keep measures the trimmed text, so whitespace padding cannot carry a short
// message past the length floor.
func keep(raw RawMessage) bool {
	return raw.Subtype == "" && len(strings.TrimSpace(raw.Text)) >= minMessageLen
}

func toMessage(raw RawMessage) Message {
	return Message{
		Text:      strings.TrimSpace(raw.Text),
		Author:    raw.User,
		Timestamp: raw.Timestamp,
		ThreadID:  raw.ThreadTS,
		Permalink: raw.Permalink,
	}
}

func emit(ctx context.Context, out chan<- Message, msg Message) bool {
	select {
	case out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}
