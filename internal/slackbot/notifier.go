package slackbot

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// Notifier posts plain channel messages; the indexing orchestrator uses it
// for completion notifications.
type Notifier struct {
	api *slack.Client
}

// NewNotifier creates a Notifier.
func NewNotifier(api *slack.Client) *Notifier {
	return &Notifier{api: api}
}

// Notify implements indexer.Notifier.
func (n *Notifier) Notify(ctx context.Context, slackChannelID, text string) error {
	if _, _, err := n.api.PostMessageContext(ctx, slackChannelID, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("notifying channel %s: %w", slackChannelID, err)
	}
	return nil
}
