package slackbot

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/docentbot/docent/internal/history"
)

// historyPageSize is the per-request message limit for history paging.
const historyPageSize = 200

// Pager adapts the Slack conversations API to the history fetcher.
type Pager struct {
	api *slack.Client
}

// NewPager creates a Pager.
func NewPager(api *slack.Client) *Pager {
	return &Pager{api: api}
}

// HistoryPage implements history.Pager.
func (p *Pager) HistoryPage(ctx context.Context, channelID, oldest, cursor string) ([]history.RawMessage, string, error) {
	resp, err := p.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Oldest:    oldest,
		Cursor:    cursor,
		Limit:     historyPageSize,
	})
	if err != nil {
		return nil, "", fmt.Errorf("fetching history of %s: %w", channelID, err)
	}

	msgs := make([]history.RawMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		msgs = append(msgs, toRaw(channelID, m))
	}
	return msgs, resp.ResponseMetaData.NextCursor, nil
}

// ThreadReplies implements history.Pager.
func (p *Pager) ThreadReplies(ctx context.Context, channelID, threadTS string) ([]history.RawMessage, error) {
	var all []history.RawMessage
	cursor := ""
	for {
		msgs, _, next, err := p.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
			ChannelID: channelID,
			Timestamp: threadTS,
			Cursor:    cursor,
			Limit:     historyPageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("fetching thread %s: %w", threadTS, err)
		}
		for _, m := range msgs {
			all = append(all, toRaw(channelID, m))
		}
		if next == "" {
			return all, nil
		}
		cursor = next
	}
}

func toRaw(channelID string, m slack.Message) history.RawMessage {
	return history.RawMessage{
		Text:       m.Text,
		User:       m.User,
		Timestamp:  m.Timestamp,
		ThreadTS:   m.ThreadTimestamp,
		Subtype:    m.SubType,
		ReplyCount: m.ReplyCount,
		Permalink:  permalink(channelID, m.Timestamp),
	}
}

// permalink builds the archive URL for a message from its timestamp.
func permalink(channelID, ts string) string {
	return fmt.Sprintf("https://slack.com/archives/%s/p%s", channelID, strings.ReplaceAll(ts, ".", ""))
}
