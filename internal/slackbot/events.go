package slackbot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/docentbot/docent/internal/store"
)

// ignoredSubtypes are message events that never carry a question.
var ignoredSubtypes = map[string]bool{
	"bot_message":     true,
	"message_changed": true,
	"message_deleted": true,
}

const notConfiguredText = "Hi! I'm not configured for this channel yet.\n" +
	"Mention me with `configure` to set up my knowledge sources!"

func (b *Bot) handleMessage(ctx context.Context, ev *slackevents.MessageEvent) {
	if ignoredSubtypes[ev.SubType] || ev.BotID != "" {
		return
	}

	text := strings.TrimSpace(ev.Text)
	mention := fmt.Sprintf("<@%s>", b.botUserID)
	if !strings.Contains(text, mention) {
		return
	}
	question := strings.TrimSpace(strings.ReplaceAll(text, mention, ""))

	threadTS := ev.ThreadTimeStamp
	if threadTS == "" {
		threadTS = ev.TimeStamp
	}

	switch strings.ToLower(question) {
	case "configure", "config", "setup":
		b.postConfigureButton(ctx, ev.Channel)
		return
	}

	channel, err := b.store.ChannelBySlackID(ctx, ev.Channel)
	if errors.Is(err, store.ErrNotFound) {
		b.postMessage(ctx, ev.Channel, threadTS, notConfiguredText)
		return
	}
	if err != nil {
		b.logger.Error("looking up channel", "channel", ev.Channel, "error", err)
		return
	}

	b.answerQuestion(ctx, channel, ev.User, threadTS, question)
}

func (b *Bot) answerQuestion(ctx context.Context, channel *store.Channel, userID, threadTS, question string) {
	b.logger.Info("question received", "channel", channel.SlackChannelID, "user", userID)

	answer, err := b.answerer.Answer(ctx, channel.ID, question)
	if err != nil {
		b.logger.Error("answering failed", "channel", channel.SlackChannelID, "error", err)
		b.postMessage(ctx, channel.SlackChannelID, threadTS, failureReply(err))
		return
	}

	entry := store.ConversationLog{
		ChannelID:  channel.ID,
		ThreadTS:   threadTS,
		UserID:     userID,
		Question:   question,
		Answer:     answer.Text,
		Sources:    answer.Sources,
		Confidence: string(answer.Confidence),
	}
	if err := b.store.LogConversation(ctx, entry); err != nil {
		b.logger.Warn("logging conversation failed", "error", err)
	}

	b.postMessage(ctx, channel.SlackChannelID, threadTS, formatAnswer(answer.Text, answer.Sources))
}

// formatAnswer appends the source footer to an answer.
func formatAnswer(text string, sources []string) string {
	if len(sources) == 0 {
		return text
	}
	lines := make([]string, len(sources))
	for i, s := range sources {
		lines[i] = "• " + s
	}
	return text + "\n\n_Sources:_\n" + strings.Join(lines, "\n")
}

func failureReply(err error) string {
	msg := err.Error()
	if len(msg) > 100 {
		msg = msg[:100]
	}
	return fmt.Sprintf("😅 Sorry, I couldn't find a good answer. Something went wrong: %s\n\nA human should take a look at this!", msg)
}

// feedbackByReaction maps reaction names to stored feedback values.
var feedbackByReaction = map[string]string{
	"+1":         "thumbsup",
	"thumbsup":   "thumbsup",
	"-1":         "thumbsdown",
	"thumbsdown": "thumbsdown",
}

func (b *Bot) handleReaction(ctx context.Context, ev *slackevents.ReactionAddedEvent) {
	feedback, tracked := feedbackByReaction[ev.Reaction]
	if !tracked || ev.Item.Type != "message" {
		return
	}

	channel, err := b.store.ChannelBySlackID(ctx, ev.Item.Channel)
	if err != nil {
		return
	}

	if err := b.store.RecordFeedback(ctx, channel.ID, ev.Item.Timestamp, feedback); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			b.logger.Warn("recording feedback failed", "error", err)
		}
		return
	}
	b.logger.Info("feedback recorded", "channel", ev.Item.Channel, "feedback", feedback)
}

// handleMemberJoined offers configuration when the bot itself joins an
// unconfigured channel.
func (b *Bot) handleMemberJoined(ctx context.Context, ev *slackevents.MemberJoinedChannelEvent) {
	if ev.User != b.botUserID {
		return
	}
	if _, err := b.store.ChannelBySlackID(ctx, ev.Channel); err == nil {
		return
	}
	b.postConfigureButton(ctx, ev.Channel)
}

// handleAppHome publishes the welcome tab when a user opens the app's home.
func (b *Bot) handleAppHome(ctx context.Context, ev *slackevents.AppHomeOpenedEvent) {
	view := slack.HomeTabViewRequest{
		Type:   slack.VTHomeTab,
		Blocks: homeTabBlocks(),
	}
	if _, err := b.api.PublishViewContext(ctx, slack.PublishViewContextRequest{UserID: ev.User, View: view}); err != nil {
		b.logger.Warn("publishing home tab failed", "user", ev.User, "error", err)
	}
}

func homeTabBlocks() slack.Blocks {
	header := slack.NewHeaderBlock(
		slack.NewTextBlockObject(slack.PlainTextType, "👋 Welcome to Docent!", true, false))
	intro := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType,
			"I help answer questions in your channels by referencing:\n"+
				"• 📚 Documentation sites\n"+
				"• 🐙 GitHub repositories\n"+
				"• 💬 Channel conversation history\n\n"+
				"*To get started:*\n"+
				"1. Invite me to a channel: `/invite @Docent`\n"+
				"2. Mention me with `configure` to set up knowledge sources\n"+
				"3. Ask questions and I'll help answer them!", false, false),
		nil, nil)
	tip := slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType,
			"💡 Tip: React with 👍 or 👎 to help me learn!", false, false))

	return slack.Blocks{BlockSet: []slack.Block{
		header,
		intro,
		slack.NewDividerBlock(),
		tip,
	}}
}

func (b *Bot) postConfigureButton(ctx context.Context, slackChannelID string) {
	section := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType,
			"Click the button below to configure my knowledge sources:", false, false),
		nil, nil)
	button := slack.NewButtonBlockElement(openConfigActionID, slackChannelID,
		slack.NewTextBlockObject(slack.PlainTextType, "⚙️ Configure", true, false))
	button.Style = slack.StylePrimary
	actions := slack.NewActionBlock("", button)

	_, _, err := b.api.PostMessageContext(ctx, slackChannelID,
		slack.MsgOptionText("Click to configure my knowledge sources:", false),
		slack.MsgOptionBlocks(section, actions))
	if err != nil {
		b.logger.Warn("posting configure button failed", "channel", slackChannelID, "error", err)
	}
}
