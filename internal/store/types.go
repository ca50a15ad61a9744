package store

import (
	"time"

	"github.com/google/uuid"
)

// SourceType identifies the origin of a knowledge source.
type SourceType string

const (
	SourceDocumentation SourceType = "documentation"
	SourceRepoPrimary   SourceType = "repo_primary"
	SourceRepoSecondary SourceType = "repo_secondary"
	SourceRepoIssues    SourceType = "repo_issues"
	SourceChatHistory   SourceType = "chat_history"
)

// SourceStatus is the indexing state of a knowledge source.
// Transitions: pending → indexing → indexed | failed.
type SourceStatus string

const (
	StatusPending  SourceStatus = "pending"
	StatusIndexing SourceStatus = "indexing"
	StatusIndexed  SourceStatus = "indexed"
	StatusFailed   SourceStatus = "failed"
)

// Workspace is a Slack workspace where the bot is installed.
type Workspace struct {
	ID          uuid.UUID
	SlackTeamID string
	TeamName    string
	InstalledAt time.Time
}

// Channel is a monitored Slack channel.
type Channel struct {
	ID             uuid.UUID
	WorkspaceID    uuid.UUID
	SlackChannelID string
	Name           string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// KnowledgeSource is one configured origin to be indexed for a channel.
// Mutated only by the indexing orchestrator; superseded (deleted and
// recreated) on reconfiguration.
type KnowledgeSource struct {
	ID            uuid.UUID
	ChannelID     uuid.UUID
	Type          SourceType
	URL           string
	Status        SourceStatus
	LastIndexedAt *time.Time
	ErrorMessage  string
	CreatedAt     time.Time
}

// NewSource describes a knowledge source to create during configuration.
type NewSource struct {
	Type SourceType
	URL  string
}

// ConversationLog records one question/answer exchange for feedback tracking.
type ConversationLog struct {
	ID         uuid.UUID
	ChannelID  uuid.UUID
	ThreadTS   string
	UserID     string
	Question   string
	Answer     string
	Sources    []string
	Confidence string
	Feedback   string
	CreatedAt  time.Time
}
