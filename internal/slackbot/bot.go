// Package slackbot is the chat-platform boundary: it receives mentions,
// reactions and configuration dialog events over Socket Mode and drives the
// indexing and query pipelines.
package slackbot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/docentbot/docent/internal/query"
	"github.com/docentbot/docent/internal/store"
)

// ChannelStore is the persistence surface the bot needs.
type ChannelStore interface {
	EnsureWorkspace(ctx context.Context, teamID, teamName string) (*store.Workspace, error)
	EnsureChannel(ctx context.Context, workspaceID uuid.UUID, slackChannelID, name string) (*store.Channel, error)
	ChannelBySlackID(ctx context.Context, slackChannelID string) (*store.Channel, error)
	ReplaceSources(ctx context.Context, channelID uuid.UUID, sources []store.NewSource) error
	LogConversation(ctx context.Context, entry store.ConversationLog) error
	RecordFeedback(ctx context.Context, channelID uuid.UUID, threadTS, feedback string) error
}

// Answerer runs the retrieval pipeline for one question.
type Answerer interface {
	Answer(ctx context.Context, channelID uuid.UUID, question string) (*query.Answer, error)
}

// IndexTrigger starts a background indexing run.
type IndexTrigger interface {
	Trigger(ctx context.Context, channel *store.Channel)
}

// Bot is the Socket Mode event loop and its handlers.
type Bot struct {
	api       *slack.Client
	socket    *socketmode.Client
	store     ChannelStore
	answerer  Answerer
	indexer   IndexTrigger
	botUserID string
	logger    *slog.Logger
}

// New creates a Bot. botToken is the xoxb bot token, appToken the xapp
// app-level token required for Socket Mode.
func New(botToken, appToken string, st ChannelStore, answerer Answerer, indexer IndexTrigger, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	api := slack.New(botToken, slack.OptionAppLevelToken(appToken))
	return &Bot{
		api:      api,
		socket:   socketmode.New(api),
		store:    st,
		answerer: answerer,
		indexer:  indexer,
		logger:   logger,
	}
}

// Client exposes the underlying API client for the notifier and pager.
func (b *Bot) Client() *slack.Client {
	return b.api
}

// SetIndexer injects the indexing trigger. The indexer's notifier and history
// pager are built from this bot's client, so it is wired after construction.
// Must be called before Run.
func (b *Bot) SetIndexer(indexer IndexTrigger) {
	b.indexer = indexer
}

// Run connects to Slack and processes events until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	auth, err := b.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("authenticating with slack: %w", err)
	}
	b.botUserID = auth.UserID
	b.logger.Info("connected to slack", "bot_user_id", auth.UserID, "team", auth.Team)

	go func() {
		if err := b.socket.RunContext(ctx); err != nil && ctx.Err() == nil {
			b.logger.Error("socket mode stopped", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-b.socket.Events:
			if !ok {
				return nil
			}
			b.dispatch(ctx, evt)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnected:
		b.logger.Debug("socket mode connected")

	case socketmode.EventTypeEventsAPI:
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		b.socket.Ack(*evt.Request)
		b.handleEventsAPI(ctx, apiEvent)

	case socketmode.EventTypeInteractive:
		callback, ok := evt.Data.(slack.InteractionCallback)
		if !ok {
			return
		}
		b.socket.Ack(*evt.Request)
		b.handleInteraction(ctx, callback)
	}
}

func (b *Bot) handleEventsAPI(ctx context.Context, apiEvent slackevents.EventsAPIEvent) {
	if apiEvent.Type != slackevents.CallbackEvent {
		return
	}

	switch ev := apiEvent.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		b.handleMessage(ctx, ev)
	case *slackevents.ReactionAddedEvent:
		b.handleReaction(ctx, ev)
	case *slackevents.AppMentionEvent:
		// Mentions arrive as message events too; handled there.
	case *slackevents.MemberJoinedChannelEvent:
		b.handleMemberJoined(ctx, ev)
	case *slackevents.AppHomeOpenedEvent:
		b.handleAppHome(ctx, ev)
	}
}

func (b *Bot) handleInteraction(ctx context.Context, callback slack.InteractionCallback) {
	switch callback.Type {
	case slack.InteractionTypeBlockActions:
		b.handleBlockActions(ctx, callback)
	case slack.InteractionTypeViewSubmission:
		if callback.View.CallbackID == configModalCallbackID {
			b.handleConfigSubmission(ctx, callback)
		}
	}
}

// postMessage posts text to a channel, optionally threaded.
func (b *Bot) postMessage(ctx context.Context, channelID, threadTS, text string) {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	if _, _, err := b.api.PostMessageContext(ctx, channelID, opts...); err != nil {
		b.logger.Warn("posting message failed", "channel", channelID, "error", err)
	}
}
