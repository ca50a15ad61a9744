package slackbot

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/slack-go/slack"

	"github.com/docentbot/docent/internal/indexer"
	"github.com/docentbot/docent/internal/repofetch"
	"github.com/docentbot/docent/internal/store"
)

const (
	configModalCallbackID = "config_modal"
	openConfigActionID    = "open_config_modal"

	docsBlockID      = "docs_urls"
	docsActionID     = "docs_urls_input"
	primaryBlockID   = "repo_primary"
	primaryActionID  = "repo_primary_input"
	secondaryBlock   = "repo_secondary"
	secondaryAction  = "repo_secondary_input"
	issuesBlockID    = "repo_issues"
	issuesActionID   = "repo_issues_checkbox"
	historyBlockID   = "history_days"
	historyActionID  = "history_days_select"
	includeIssuesVal = "include_issues"
)

func (b *Bot) handleBlockActions(ctx context.Context, callback slack.InteractionCallback) {
	for _, action := range callback.ActionCallback.BlockActions {
		if action.ActionID != openConfigActionID {
			continue
		}
		modal := buildConfigModal(action.Value)
		if _, err := b.api.OpenViewContext(ctx, callback.TriggerID, modal); err != nil {
			b.logger.Warn("opening config modal failed", "error", err)
		}
	}
}

func buildConfigModal(slackChannelID string) slack.ModalViewRequest {
	plain := func(text string) *slack.TextBlockObject {
		return slack.NewTextBlockObject(slack.PlainTextType, text, false, false)
	}

	intro := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType,
			"Set up knowledge sources for this channel. I'll use these to answer questions.", false, false),
		nil, nil)

	docsInput := slack.NewPlainTextInputBlockElement(
		plain("https://docs.example.com/guide\nhttps://docs.example.com/api"), docsActionID)
	docsInput.Multiline = true
	docs := slack.NewInputBlock(docsBlockID,
		plain("Documentation URLs (one per line)"),
		plain("Each URL will be crawled with prefix-scoping (stays within that path)"),
		docsInput)
	docs.Optional = true

	primary := slack.NewInputBlock(primaryBlockID,
		plain("Primary Repository URL"), nil,
		slack.NewPlainTextInputBlockElement(plain("https://github.com/org/primary-repo"), primaryActionID))
	primary.Optional = true

	secondary := slack.NewInputBlock(secondaryBlock,
		plain("Secondary Repository URL (optional)"), nil,
		slack.NewPlainTextInputBlockElement(plain("https://github.com/org/secondary-repo"), secondaryAction))
	secondary.Optional = true

	issueOption := slack.NewOptionBlockObject(includeIssuesVal,
		plain("Index repository issues"),
		plain("Include open & closed issues from the primary repository"))
	issues := slack.NewInputBlock(issuesBlockID,
		plain("🎫 Issues"), nil,
		slack.NewCheckboxGroupsBlockElement(issuesActionID, issueOption))
	issues.Optional = true

	historySelect := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic,
		plain("Select days"), historyActionID,
		slack.NewOptionBlockObject("7", plain("Last 7 days"), nil),
		slack.NewOptionBlockObject("30", plain("Last 30 days"), nil),
		slack.NewOptionBlockObject("90", plain("Last 90 days"), nil),
		slack.NewOptionBlockObject("0", plain("Don't index"), nil))
	history := slack.NewInputBlock(historyBlockID,
		plain("Index conversation history"), nil, historySelect)
	history.Optional = true

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      configModalCallbackID,
		PrivateMetadata: slackChannelID,
		Title:           plain("Configure Docent"),
		Submit:          plain("Save & Index"),
		Close:           plain("Cancel"),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			intro,
			slack.NewDividerBlock(),
			slack.NewHeaderBlock(plain("📚 Documentation")),
			docs,
			slack.NewDividerBlock(),
			slack.NewHeaderBlock(plain("🐙 Repositories")),
			primary,
			secondary,
			issues,
			slack.NewDividerBlock(),
			slack.NewHeaderBlock(plain("💬 Channel History")),
			history,
		}},
	}
}

// modalConfig is the parsed configuration dialog submission.
type modalConfig struct {
	DocsURLs      []string
	PrimaryRepo   string
	SecondaryRepo string
	IncludeIssues bool
	HistoryDays   int
}

// parseSubmission extracts and validates the dialog values. History defaults
// to 30 days when no option was picked.
func parseSubmission(values map[string]map[string]slack.BlockAction) (modalConfig, error) {
	cfg := modalConfig{HistoryDays: 30}

	rawDocs := values[docsBlockID][docsActionID].Value
	for _, line := range strings.Split(rawDocs, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		u, err := url.Parse(line)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return cfg, fmt.Errorf("invalid documentation URL %q", line)
		}
		cfg.DocsURLs = append(cfg.DocsURLs, line)
	}

	cfg.PrimaryRepo = strings.TrimSpace(values[primaryBlockID][primaryActionID].Value)
	if cfg.PrimaryRepo != "" {
		if _, _, err := repofetch.ParseRepoURL(cfg.PrimaryRepo); err != nil {
			return cfg, fmt.Errorf("invalid primary repository URL %q", cfg.PrimaryRepo)
		}
	}

	cfg.SecondaryRepo = strings.TrimSpace(values[secondaryBlock][secondaryAction].Value)
	if cfg.SecondaryRepo != "" {
		if _, _, err := repofetch.ParseRepoURL(cfg.SecondaryRepo); err != nil {
			return cfg, fmt.Errorf("invalid secondary repository URL %q", cfg.SecondaryRepo)
		}
	}

	for _, opt := range values[issuesBlockID][issuesActionID].SelectedOptions {
		if opt.Value == includeIssuesVal {
			cfg.IncludeIssues = true
		}
	}

	if picked := values[historyBlockID][historyActionID].SelectedOption.Value; picked != "" {
		days, err := strconv.Atoi(picked)
		if err != nil || days < 0 {
			return cfg, fmt.Errorf("invalid history window %q", picked)
		}
		cfg.HistoryDays = days
	}

	return cfg, nil
}

// buildSources converts a parsed configuration into knowledge source records.
// Issues attach to the primary repository, so the flag is inert without one.
func buildSources(slackChannelID string, cfg modalConfig) []store.NewSource {
	var sources []store.NewSource
	for _, u := range cfg.DocsURLs {
		sources = append(sources, store.NewSource{Type: store.SourceDocumentation, URL: u})
	}
	if cfg.PrimaryRepo != "" {
		sources = append(sources, store.NewSource{Type: store.SourceRepoPrimary, URL: cfg.PrimaryRepo})
		if cfg.IncludeIssues {
			sources = append(sources, store.NewSource{Type: store.SourceRepoIssues, URL: cfg.PrimaryRepo})
		}
	}
	if cfg.SecondaryRepo != "" {
		sources = append(sources, store.NewSource{Type: store.SourceRepoSecondary, URL: cfg.SecondaryRepo})
	}
	if cfg.HistoryDays > 0 {
		sources = append(sources, store.NewSource{
			Type: store.SourceChatHistory,
			URL:  indexer.HistoryURL(slackChannelID, cfg.HistoryDays),
		})
	}
	return sources
}

func (b *Bot) handleConfigSubmission(ctx context.Context, callback slack.InteractionCallback) {
	slackChannelID := callback.View.PrivateMetadata

	cfg, err := parseSubmission(callback.View.State.Values)
	if err != nil {
		b.postMessage(ctx, slackChannelID, "", fmt.Sprintf("❌ Error saving configuration: %s", err))
		return
	}
	sources := buildSources(slackChannelID, cfg)

	channel, err := b.registerChannel(ctx, slackChannelID)
	if err != nil {
		b.logger.Error("registering channel", "channel", slackChannelID, "error", err)
		b.postMessage(ctx, slackChannelID, "", fmt.Sprintf("❌ Error saving configuration: %s", truncate(err.Error(), 100)))
		return
	}

	if err := b.store.ReplaceSources(ctx, channel.ID, sources); err != nil {
		b.logger.Error("replacing sources", "channel", slackChannelID, "error", err)
		b.postMessage(ctx, slackChannelID, "", fmt.Sprintf("❌ Error saving configuration: %s", truncate(err.Error(), 100)))
		return
	}

	b.postMessage(ctx, slackChannelID, "", fmt.Sprintf(
		"✅ Configuration saved! Indexing %d knowledge source(s)...\nThis may take a few minutes. I'll let you know when I'm ready!",
		len(sources)))

	b.indexer.Trigger(ctx, channel)
}

// registerChannel resolves workspace and channel records for a Slack channel,
// creating them on first configuration.
func (b *Bot) registerChannel(ctx context.Context, slackChannelID string) (*store.Channel, error) {
	auth, err := b.api.AuthTestContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace: %w", err)
	}
	teamName := auth.Team
	if teamName == "" {
		teamName = auth.TeamID
	}

	workspace, err := b.store.EnsureWorkspace(ctx, auth.TeamID, teamName)
	if err != nil {
		return nil, err
	}

	info, err := b.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{
		ChannelID: slackChannelID,
	})
	if err != nil {
		return nil, fmt.Errorf("resolving channel info: %w", err)
	}

	return b.store.EnsureChannel(ctx, workspace.ID, slackChannelID, info.Name)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
