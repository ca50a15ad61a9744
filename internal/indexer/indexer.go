// Package indexer orchestrates the indexing of a channel's knowledge
// sources.
//
// Indexing runs in the background, one channel per trigger, its sources
// processed sequentially. Each source transitions pending → indexing →
// indexed | failed; a failing source never aborts the run. One completion
// notification is posted per run, summarizing successes and failures.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docentbot/docent/internal/chunk"
	"github.com/docentbot/docent/internal/crawler"
	"github.com/docentbot/docent/internal/history"
	"github.com/docentbot/docent/internal/repofetch"
	"github.com/docentbot/docent/internal/store"
)

// SourceStore drives the knowledge source state machine.
type SourceStore interface {
	PendingSources(ctx context.Context, channelID uuid.UUID) ([]store.KnowledgeSource, error)
	MarkIndexing(ctx context.Context, sourceID uuid.UUID) error
	MarkIndexed(ctx context.Context, sourceID uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, sourceID uuid.UUID, message string) error
	CountSourcesByStatus(ctx context.Context, channelID uuid.UUID) (indexed, failed int, err error)
}

// VectorIndex receives embedded chunks.
type VectorIndex interface {
	Upsert(ctx context.Context, channelID uuid.UUID, texts []string, vectors [][]float32, metadatas []map[string]string) error
	Clear(ctx context.Context, channelID uuid.UUID) error
}

// Embedder produces document embeddings.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Notifier posts a message to a chat channel.
type Notifier interface {
	Notify(ctx context.Context, slackChannelID, text string) error
}

// Fetchers are the source-type-specific fetch capabilities, injected so the
// orchestrator stays free of transport concerns.
type Fetchers struct {
	Crawl       func(ctx context.Context, baseURL string) (<-chan crawler.Page, error)
	RepoFiles   func(ctx context.Context, repoURL string) (<-chan repofetch.File, error)
	RepoIssues  func(ctx context.Context, repoURL string) ([]repofetch.Issue, error)
	ChatHistory func(ctx context.Context, slackChannelID string, days int) (<-chan history.Message, error)
}

// Indexer runs the indexing pipeline for a channel.
type Indexer struct {
	store    SourceStore
	index    VectorIndex
	embedder Embedder
	notifier Notifier
	splitter *chunk.Splitter
	fetchers Fetchers
	logger   *slog.Logger
}

// New creates an Indexer.
func New(st SourceStore, index VectorIndex, embedder Embedder, notifier Notifier, splitter *chunk.Splitter, fetchers Fetchers, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		store:    st,
		index:    index,
		embedder: embedder,
		notifier: notifier,
		splitter: splitter,
		fetchers: fetchers,
		logger:   logger,
	}
}

// Trigger starts indexing the channel's pending sources in the background
// and returns immediately. The run detaches from the caller's cancellation
// so a finished chat request does not kill indexing in flight.
func (ix *Indexer) Trigger(ctx context.Context, channel *store.Channel) {
	go func() {
		runCtx := context.WithoutCancel(ctx)
		if err := ix.IndexChannel(runCtx, channel); err != nil {
			ix.logger.Error("indexing run failed", "channel_id", channel.ID, "error", err)
		}
	}()
}

// IndexChannel processes the channel's pending sources sequentially and
// posts one completion notification. The returned error covers run-level
// failures only; per-source failures are recorded on the source.
func (ix *Indexer) IndexChannel(ctx context.Context, channel *store.Channel) error {
	sources, err := ix.store.PendingSources(ctx, channel.ID)
	if err != nil {
		return fmt.Errorf("listing pending sources: %w", err)
	}
	if len(sources) == 0 {
		return nil
	}

	ix.logger.Info("indexing started", "channel_id", channel.ID, "sources", len(sources))

	// Reconfiguration replaces the whole source set, so prior chunks are
	// superseded wholesale.
	if err := ix.index.Clear(ctx, channel.ID); err != nil {
		return fmt.Errorf("clearing channel index: %w", err)
	}

	for _, src := range sources {
		if err := ix.indexSource(ctx, channel, src); err != nil {
			ix.logger.Warn("source failed", "source_id", src.ID, "type", src.Type, "error", err)
			if markErr := ix.store.MarkFailed(ctx, src.ID, err.Error()); markErr != nil {
				ix.logger.Error("recording source failure", "source_id", src.ID, "error", markErr)
			}
			continue
		}
		if err := ix.store.MarkIndexed(ctx, src.ID, time.Now().UTC()); err != nil {
			ix.logger.Error("recording source success", "source_id", src.ID, "error", err)
		}
	}

	ix.notifyCompletion(ctx, channel)
	return nil
}

func (ix *Indexer) indexSource(ctx context.Context, channel *store.Channel, src store.KnowledgeSource) error {
	if err := ix.store.MarkIndexing(ctx, src.ID); err != nil {
		return fmt.Errorf("marking source indexing: %w", err)
	}

	chunks, err := ix.collectChunks(ctx, src)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		ix.logger.Info("source yielded no content", "source_id", src.ID, "type", src.Type)
		return nil
	}

	texts := make([]string, len(chunks))
	metadatas := make([]map[string]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
		metadatas[i] = c.Metadata
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %d chunks: %w", len(texts), err)
	}

	if err := ix.index.Upsert(ctx, channel.ID, texts, vectors, metadatas); err != nil {
		return fmt.Errorf("storing %d chunks: %w", len(texts), err)
	}

	ix.logger.Info("source indexed", "source_id", src.ID, "type", src.Type, "chunks", len(chunks))
	return nil
}

func (ix *Indexer) collectChunks(ctx context.Context, src store.KnowledgeSource) ([]chunk.Chunk, error) {
	switch src.Type {
	case store.SourceDocumentation:
		return ix.chunkDocumentation(ctx, src.URL)
	case store.SourceRepoPrimary, store.SourceRepoSecondary:
		return ix.chunkRepository(ctx, src.URL, string(src.Type))
	case store.SourceRepoIssues:
		return ix.chunkIssues(ctx, src.URL)
	case store.SourceChatHistory:
		return ix.chunkChatHistory(ctx, src.URL)
	default:
		return nil, fmt.Errorf("unknown source type %q", src.Type)
	}
}

func (ix *Indexer) chunkDocumentation(ctx context.Context, baseURL string) ([]chunk.Chunk, error) {
	pages, err := ix.fetchers.Crawl(ctx, baseURL)
	if err != nil {
		return nil, fmt.Errorf("starting crawl of %s: %w", baseURL, err)
	}

	var chunks []chunk.Chunk
	for page := range pages {
		chunks = append(chunks, ix.splitter.Split(page.Content, map[string]string{
			"source_type": string(store.SourceDocumentation),
			"url":         page.URL,
			"title":       page.Title,
		})...)
	}
	return chunks, ctx.Err()
}

func (ix *Indexer) chunkRepository(ctx context.Context, repoURL, sourceType string) ([]chunk.Chunk, error) {
	files, err := ix.fetchers.RepoFiles(ctx, repoURL)
	if err != nil {
		return nil, fmt.Errorf("starting repository fetch of %s: %w", repoURL, err)
	}

	var chunks []chunk.Chunk
	for file := range files {
		chunks = append(chunks, ix.splitter.Split(file.Content, map[string]string{
			"source_type": sourceType,
			"url":         file.HTMLURL,
			"file_path":   file.Path,
			"file_type":   file.FileType,
		})...)
	}
	return chunks, ctx.Err()
}

func (ix *Indexer) chunkIssues(ctx context.Context, repoURL string) ([]chunk.Chunk, error) {
	issues, err := ix.fetchers.RepoIssues(ctx, repoURL)
	if err != nil {
		return nil, fmt.Errorf("fetching issues of %s: %w", repoURL, err)
	}

	var chunks []chunk.Chunk
	for _, issue := range issues {
		chunks = append(chunks, ix.splitter.Split(issueDocument(issue), issueMetadata(issue))...)
	}
	return chunks, nil
}

func (ix *Indexer) chunkChatHistory(ctx context.Context, sourceURL string) ([]chunk.Chunk, error) {
	slackChannelID, days, err := parseHistoryURL(sourceURL)
	if err != nil {
		return nil, err
	}

	messages, err := ix.fetchers.ChatHistory(ctx, slackChannelID, days)
	if err != nil {
		return nil, fmt.Errorf("starting history fetch of %s: %w", slackChannelID, err)
	}

	var chunks []chunk.Chunk
	for _, conv := range groupConversations(messages) {
		chunks = append(chunks, ix.splitter.Split(conv.text(), map[string]string{
			"source_type": string(store.SourceChatHistory),
			"url":         conv.permalink(),
		})...)
	}
	return chunks, ctx.Err()
}

func (ix *Indexer) notifyCompletion(ctx context.Context, channel *store.Channel) {
	indexed, failed, err := ix.store.CountSourcesByStatus(ctx, channel.ID)
	if err != nil {
		ix.logger.Error("counting sources for notification", "channel_id", channel.ID, "error", err)
		return
	}

	var text string
	if failed == 0 {
		text = fmt.Sprintf("✅ Ready! Indexed %d knowledge source(s). Ask me anything!", indexed)
	} else {
		text = fmt.Sprintf("⚠️ Indexing done. %d succeeded, %d failed. I'll do my best with what I have!", indexed, failed)
	}

	if err := ix.notifier.Notify(ctx, channel.SlackChannelID, text); err != nil {
		ix.logger.Warn("completion notification failed", "channel", channel.SlackChannelID, "error", err)
	}
}
