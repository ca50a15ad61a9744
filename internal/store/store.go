// Package store persists workspaces, channels, knowledge sources and
// conversation logs in PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// maxErrorMessageLen bounds the error text stored on a failed source.
const maxErrorMessageLen = 500

// Store provides relational persistence over a pgx pool.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store.
func New(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// EnsureWorkspace finds or creates the workspace for a Slack team.
func (s *Store) EnsureWorkspace(ctx context.Context, teamID, teamName string) (*Workspace, error) {
	ws := Workspace{ID: uuid.New(), SlackTeamID: teamID, TeamName: teamName}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO workspaces (id, slack_team_id, slack_team_name)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (slack_team_id) DO UPDATE SET slack_team_name = EXCLUDED.slack_team_name
		 RETURNING id, installed_at`,
		ws.ID, teamID, teamName,
	).Scan(&ws.ID, &ws.InstalledAt)
	if err != nil {
		return nil, fmt.Errorf("ensuring workspace %s: %w", teamID, err)
	}
	return &ws, nil
}

// EnsureChannel finds or creates the monitored channel record for a Slack
// channel within a workspace.
func (s *Store) EnsureChannel(ctx context.Context, workspaceID uuid.UUID, slackChannelID, name string) (*Channel, error) {
	ch, err := s.ChannelBySlackID(ctx, slackChannelID)
	if err == nil {
		return ch, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	created := Channel{
		ID:             uuid.New(),
		WorkspaceID:    workspaceID,
		SlackChannelID: slackChannelID,
		Name:           name,
		Active:         true,
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO channels (id, workspace_id, slack_channel_id, slack_channel_name)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		created.ID, workspaceID, slackChannelID, name,
	).Scan(&created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating channel %s: %w", slackChannelID, err)
	}

	s.logger.Info("channel registered", "slack_channel_id", slackChannelID, "name", name)
	return &created, nil
}

// ChannelBySlackID looks up a monitored channel by its Slack channel ID.
func (s *Store) ChannelBySlackID(ctx context.Context, slackChannelID string) (*Channel, error) {
	var ch Channel
	var name *string
	err := s.pool.QueryRow(ctx,
		`SELECT id, workspace_id, slack_channel_id, slack_channel_name, is_active, created_at, updated_at
		 FROM channels WHERE slack_channel_id = $1`,
		slackChannelID,
	).Scan(&ch.ID, &ch.WorkspaceID, &ch.SlackChannelID, &name, &ch.Active, &ch.CreatedAt, &ch.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("channel %s: %w", slackChannelID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying channel %s: %w", slackChannelID, err)
	}
	if name != nil {
		ch.Name = *name
	}
	return &ch, nil
}

// ReplaceSources supersedes a channel's knowledge sources: existing rows are
// deleted and the new set is inserted as pending, in one transaction.
func (s *Store) ReplaceSources(ctx context.Context, channelID uuid.UUID, sources []NewSource) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	if _, err := tx.Exec(ctx,
		`DELETE FROM knowledge_sources WHERE channel_id = $1`, channelID); err != nil {
		return fmt.Errorf("deleting old sources: %w", err)
	}

	for _, src := range sources {
		if _, err := tx.Exec(ctx,
			`INSERT INTO knowledge_sources (id, channel_id, source_type, url, status)
			 VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), channelID, src.Type, src.URL, StatusPending); err != nil {
			return fmt.Errorf("inserting source %s: %w", src.URL, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing sources: %w", err)
	}

	s.logger.Info("sources replaced", "channel_id", channelID, "count", len(sources))
	return nil
}

// PendingSources lists a channel's sources still awaiting indexing, oldest
// first.
func (s *Store) PendingSources(ctx context.Context, channelID uuid.UUID) ([]KnowledgeSource, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, channel_id, source_type, url, status, last_indexed_at, error_message, created_at
		 FROM knowledge_sources
		 WHERE channel_id = $1 AND status = $2
		 ORDER BY created_at`,
		channelID, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("querying pending sources: %w", err)
	}
	defer rows.Close()

	var sources []KnowledgeSource
	for rows.Next() {
		var src KnowledgeSource
		var errMsg *string
		if err := rows.Scan(&src.ID, &src.ChannelID, &src.Type, &src.URL, &src.Status,
			&src.LastIndexedAt, &errMsg, &src.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		if errMsg != nil {
			src.ErrorMessage = *errMsg
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// MarkIndexing transitions a source to the indexing state.
func (s *Store) MarkIndexing(ctx context.Context, sourceID uuid.UUID) error {
	return s.setStatus(ctx, sourceID, StatusIndexing, nil, "")
}

// MarkIndexed transitions a source to the indexed terminal state and records
// the completion time.
func (s *Store) MarkIndexed(ctx context.Context, sourceID uuid.UUID, at time.Time) error {
	return s.setStatus(ctx, sourceID, StatusIndexed, &at, "")
}

// MarkFailed transitions a source to the failed terminal state. The error
// message is truncated to 500 characters.
func (s *Store) MarkFailed(ctx context.Context, sourceID uuid.UUID, message string) error {
	return s.setStatus(ctx, sourceID, StatusFailed, nil, truncateErrorMessage(message))
}

// truncateErrorMessage cuts message at maxErrorMessageLen bytes, backing up
// to a rune boundary so multi-byte characters are never split.
func truncateErrorMessage(message string) string {
	if len(message) <= maxErrorMessageLen {
		return message
	}
	cut := maxErrorMessageLen
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}

func (s *Store) setStatus(ctx context.Context, sourceID uuid.UUID, status SourceStatus, indexedAt *time.Time, errMsg string) error {
	var msg *string
	if errMsg != "" {
		msg = &errMsg
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE knowledge_sources
		 SET status = $2, last_indexed_at = COALESCE($3, last_indexed_at), error_message = $4
		 WHERE id = $1`,
		sourceID, status, indexedAt, msg)
	if err != nil {
		return fmt.Errorf("updating source %s to %s: %w", sourceID, status, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source %s: %w", sourceID, ErrNotFound)
	}
	return nil
}

// CountSourcesByStatus returns how many of a channel's sources are indexed
// and how many failed.
func (s *Store) CountSourcesByStatus(ctx context.Context, channelID uuid.UUID) (indexed, failed int, err error) {
	err = s.pool.QueryRow(ctx,
		`SELECT
		   count(*) FILTER (WHERE status = $2),
		   count(*) FILTER (WHERE status = $3)
		 FROM knowledge_sources WHERE channel_id = $1`,
		channelID, StatusIndexed, StatusFailed,
	).Scan(&indexed, &failed)
	if err != nil {
		return 0, 0, fmt.Errorf("counting sources: %w", err)
	}
	return indexed, failed, nil
}

// LogConversation records a question/answer exchange.
func (s *Store) LogConversation(ctx context.Context, entry ConversationLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	sourcesJSON, err := json.Marshal(entry.Sources)
	if err != nil {
		return fmt.Errorf("marshaling sources: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO conversation_logs (id, channel_id, thread_ts, user_id, question, answer, sources_used, confidence)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.ChannelID, entry.ThreadTS, entry.UserID,
		entry.Question, entry.Answer, sourcesJSON, entry.Confidence)
	if err != nil {
		return fmt.Errorf("inserting conversation log: %w", err)
	}
	return nil
}

// RecordFeedback stores reaction feedback on the most recent conversation log
// matching the channel and thread.
func (s *Store) RecordFeedback(ctx context.Context, channelID uuid.UUID, threadTS, feedback string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversation_logs SET feedback = $3
		 WHERE id = (
		   SELECT id FROM conversation_logs
		   WHERE channel_id = $1 AND thread_ts = $2
		   ORDER BY created_at DESC LIMIT 1
		 )`,
		channelID, threadTS, feedback)
	if err != nil {
		return fmt.Errorf("recording feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation log for thread %s: %w", threadTS, ErrNotFound)
	}
	return nil
}
