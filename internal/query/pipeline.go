// Package query answers questions over a channel's indexed knowledge.
//
// The pipeline embeds the question, retrieves the nearest chunks from the
// channel's partition, filters them by a relevance floor, and asks the
// generation model for an answer grounded in the surviving context. An empty
// index short-circuits before any model call.
package query

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/docentbot/docent/internal/knowledge"
)

// Confidence is the model's self-assessed answer confidence.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Answer is the pipeline's result.
type Answer struct {
	Text       string
	Sources    []string
	Confidence Confidence
}

const (
	// topK is how many nearest chunks are retrieved per question.
	topK = 5
	// minScore is the relevance floor; score is 1 − cosine distance.
	minScore = 0.3
	// maxSources bounds the source list attached to an answer.
	maxSources = 3

	contextSeparator = "\n\n---\n\n"

	emptyIndexAnswer  = "I don't have any knowledge indexed yet. Please configure my knowledge sources first!"
	noResultsAnswer   = "I couldn't find relevant information to answer your question."
	notRelevantAnswer = "I found some content but it doesn't seem relevant to your question. Could you rephrase?"
)

// Embedder produces the query-side embedding.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher serves similarity lookups over a channel's partition.
type Searcher interface {
	Query(ctx context.Context, channelID uuid.UUID, vector []float32, k int) ([]knowledge.Result, error)
	Count(ctx context.Context, channelID uuid.UUID) (int, error)
}

// Generator produces a grounded answer with a confidence tag.
type Generator interface {
	Generate(ctx context.Context, question, context string) (string, Confidence, error)
}

// Pipeline wires embedding, retrieval and generation together.
type Pipeline struct {
	embedder  Embedder
	searcher  Searcher
	generator Generator
	logger    *slog.Logger
}

// New creates a Pipeline.
func New(embedder Embedder, searcher Searcher, generator Generator, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{embedder: embedder, searcher: searcher, generator: generator, logger: logger}
}

// Answer runs the retrieval pipeline for one question. Retrieval shortfalls
// come back as low-confidence fixed answers; only a generation failure is a
// hard error.
func (p *Pipeline) Answer(ctx context.Context, channelID uuid.UUID, question string) (*Answer, error) {
	count, err := p.searcher.Count(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("counting indexed chunks: %w", err)
	}
	if count == 0 {
		return &Answer{Text: emptyIndexAnswer, Confidence: ConfidenceLow}, nil
	}

	p.logger.Debug("searching", "channel_id", channelID, "chunks", count)

	vector, err := p.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	results, err := p.searcher.Query(ctx, channelID, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	if len(results) == 0 {
		return &Answer{Text: noResultsAnswer, Confidence: ConfidenceLow}, nil
	}

	contextText, sources := buildContext(results)
	if contextText == "" {
		return &Answer{Text: notRelevantAnswer, Confidence: ConfidenceLow}, nil
	}

	text, confidence, err := p.generator.Generate(ctx, question, contextText)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	return &Answer{Text: text, Sources: sources, Confidence: confidence}, nil
}

// buildContext concatenates the chunks above the relevance floor and collects
// their deduplicated source identifiers, preserving retrieval order.
func buildContext(results []knowledge.Result) (string, []string) {
	var parts []string
	var sources []string
	seen := make(map[string]bool)

	for _, r := range results {
		score := 1 - r.Distance
		if score < minScore {
			continue
		}
		parts = append(parts, r.Content)

		source := r.Metadata["url"]
		if source == "" {
			source = r.Metadata["file_path"]
		}
		if source != "" && !seen[source] && len(sources) < maxSources {
			seen[source] = true
			sources = append(sources, source)
		}
	}

	if len(parts) == 0 {
		return "", nil
	}

	joined := parts[0]
	for _, p := range parts[1:] {
		joined += contextSeparator + p
	}
	return joined, sources
}
