package indexer

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/docentbot/docent/internal/history"
	"github.com/docentbot/docent/internal/repofetch"
)

// issueDocument flattens an issue thread into one document so title, body
// and comments retrieve together.
func issueDocument(issue repofetch.Issue) string {
	labels := "none"
	if len(issue.Labels) > 0 {
		labels = strings.Join(issue.Labels, ", ")
	}

	parts := []string{
		fmt.Sprintf("# Issue #%d: %s", issue.Number, issue.Title),
		fmt.Sprintf("Status: %s", issue.State),
		fmt.Sprintf("Labels: %s", labels),
		"",
		issue.Body,
	}

	if len(issue.Comments) > 0 {
		parts = append(parts, "\n## Comments:")
		for i, comment := range issue.Comments {
			parts = append(parts, fmt.Sprintf("\n### Comment %d:\n%s", i+1, comment))
		}
	}
	return strings.Join(parts, "\n")
}

func issueMetadata(issue repofetch.Issue) map[string]string {
	return map[string]string{
		"source_type":  "repo_issues",
		"url":          issue.HTMLURL,
		"issue_number": strconv.Itoa(issue.Number),
		"issue_state":  issue.State,
		"labels":       strings.Join(issue.Labels, ","),
	}
}

// defaultHistoryDays applies when the source URL carries no days parameter.
const defaultHistoryDays = 30

// parseHistoryURL decodes a chat history source URL of the form
// slack://CHANNEL_ID?days=N.
func parseHistoryURL(sourceURL string) (slackChannelID string, days int, err error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return "", 0, fmt.Errorf("parsing history url %q: %w", sourceURL, err)
	}
	if u.Scheme != "slack" || u.Host == "" {
		return "", 0, fmt.Errorf("invalid history url %q: want slack://CHANNEL_ID?days=N", sourceURL)
	}

	days = defaultHistoryDays
	if raw := u.Query().Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days <= 0 {
			return "", 0, fmt.Errorf("invalid days value %q in %q", raw, sourceURL)
		}
	}
	return u.Host, days, nil
}

// HistoryURL encodes a chat history source reference.
func HistoryURL(slackChannelID string, days int) string {
	return fmt.Sprintf("slack://%s?days=%d", slackChannelID, days)
}

// conversation is one contiguous run of messages sharing a thread identity.
type conversation struct {
	messages []history.Message
}

func (c conversation) text() string {
	lines := make([]string, len(c.messages))
	for i, m := range c.messages {
		lines[i] = m.Text
	}
	return strings.Join(lines, "\n")
}

func (c conversation) permalink() string {
	return c.messages[0].Permalink
}

// groupConversations batches the message stream into conversations, starting
// a new group whenever the thread identity changes. Unthreaded messages all
// share the empty thread identity, so consecutive top-level messages land in
// one group.
func groupConversations(messages <-chan history.Message) []conversation {
	var groups []conversation
	var current []history.Message
	var lastThread string

	for msg := range messages {
		if msg.ThreadID != lastThread && len(current) > 0 {
			groups = append(groups, conversation{messages: current})
			current = nil
		}
		current = append(current, msg)
		lastThread = msg.ThreadID
	}

	if len(current) > 0 {
		groups = append(groups, conversation{messages: current})
	}
	return groups
}
