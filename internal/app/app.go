// Package app wires configuration, storage, model clients, fetchers and the
// chat surface into a runnable service.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docentbot/docent/internal/chunk"
	"github.com/docentbot/docent/internal/config"
	"github.com/docentbot/docent/internal/crawler"
	"github.com/docentbot/docent/internal/database"
	"github.com/docentbot/docent/internal/gemini"
	"github.com/docentbot/docent/internal/history"
	"github.com/docentbot/docent/internal/indexer"
	"github.com/docentbot/docent/internal/knowledge"
	"github.com/docentbot/docent/internal/log"
	"github.com/docentbot/docent/internal/query"
	"github.com/docentbot/docent/internal/repofetch"
	"github.com/docentbot/docent/internal/slackbot"
	"github.com/docentbot/docent/internal/store"
)

// Run starts the service and blocks until ctx is cancelled or a fatal error
// occurs.
func Run(ctx context.Context) error {
	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("validating configuration: %w", err)
	}

	logger := log.New(log.Config{JSON: settings.LogJSON})
	logger.Info("starting docent")

	dsn := settings.PostgresDSN()
	if err := database.Migrate(dsn); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	pool, err := database.Open(ctx, dsn)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer pool.Close()

	st, err := store.New(pool, logger.With("component", "store"))
	if err != nil {
		return err
	}
	index, err := knowledge.NewIndex(pool, logger.With("component", "knowledge"))
	if err != nil {
		return err
	}

	client, err := gemini.NewClient(ctx, settings.GeminiAPIKey)
	if err != nil {
		return err
	}
	embedder := gemini.NewEmbedder(client, settings.EmbedderModel, logger.With("component", "embedder"))
	generator := gemini.NewGenerator(client, settings.GenerationModel, logger.With("component", "generator"))

	splitter := chunk.NewSplitter(settings.ChunkSize, settings.ChunkOverlap)
	pipeline := query.New(embedder, index, generator, logger.With("component", "query"))

	bot := slackbot.New(settings.SlackBotToken, settings.SlackAppToken, st, pipeline, nil,
		logger.With("component", "slackbot"))

	fetchers := buildFetchers(settings, bot, logger)
	ix := indexer.New(st, index, embedder, slackbot.NewNotifier(bot.Client()), splitter, fetchers,
		logger.With("component", "indexer"))
	bot.SetIndexer(ix)

	return bot.Run(ctx)
}

// buildFetchers binds the source-type fetch capabilities to their transports.
func buildFetchers(settings *config.Settings, bot *slackbot.Bot, logger *slog.Logger) indexer.Fetchers {
	return indexer.Fetchers{
		Crawl: func(ctx context.Context, baseURL string) (<-chan crawler.Page, error) {
			c, err := crawler.New(baseURL, crawler.Config{
				MaxPages: settings.CrawlMaxPages,
				MaxDepth: settings.CrawlMaxDepth,
				Timeout:  settings.RequestTimeout,
			}, logger.With("component", "crawler"))
			if err != nil {
				return nil, err
			}
			return c.Crawl(ctx), nil
		},
		RepoFiles: func(ctx context.Context, repoURL string) (<-chan repofetch.File, error) {
			client, err := repofetch.NewGitHubClient(ctx, repoURL, settings.GitHubToken)
			if err != nil {
				return nil, err
			}
			f := repofetch.NewFetcher(client, settings.RepoMaxFiles, logger.With("component", "repofetch"))
			return f.Fetch(ctx), nil
		},
		RepoIssues: func(ctx context.Context, repoURL string) ([]repofetch.Issue, error) {
			client, err := repofetch.NewGitHubClient(ctx, repoURL, settings.GitHubToken)
			if err != nil {
				return nil, err
			}
			return repofetch.FetchIssues(ctx, client, settings.MaxIssues)
		},
		ChatHistory: func(ctx context.Context, slackChannelID string, days int) (<-chan history.Message, error) {
			pager := slackbot.NewPager(bot.Client())
			f := history.NewFetcher(pager, logger.With("component", "history"))
			return f.Fetch(ctx, slackChannelID, days), nil
		},
	}
}
