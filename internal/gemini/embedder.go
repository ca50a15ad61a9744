// Package gemini adapts the Gemini API to the embedding and generation
// capabilities the indexing and query pipelines consume.
package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/docentbot/docent/internal/knowledge"
)

// NewClient creates a Gemini API client.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return client, nil
}

// embedBatchSize bounds how many texts go into one EmbedContent call.
const embedBatchSize = 100

// Embedder produces document and query embeddings in the same vector space.
type Embedder struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewEmbedder creates an Embedder using the given embedding model.
func NewEmbedder(client *genai.Client, model string, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{client: client, model: model, logger: logger}
}

// EmbedBatch embeds texts, preserving order. The output dimensionality is
// pinned to the index's vector width.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	dim := knowledge.VectorDimension
	cfg := &genai.EmbedContentConfig{OutputDimensionality: &dim}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))

		contents := make([]*genai.Content, 0, end-start)
		for _, text := range texts[start:end] {
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}

		resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, cfg)
		if err != nil {
			return nil, fmt.Errorf("embedding batch at %d: %w", start, err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("embedding batch at %d: got %d embeddings for %d texts",
				start, len(resp.Embeddings), end-start)
		}
		for _, emb := range resp.Embeddings {
			if len(emb.Values) == 0 {
				return nil, fmt.Errorf("embedding batch at %d: empty embedding returned", start)
			}
			vectors = append(vectors, emb.Values)
		}
	}

	e.logger.Debug("texts embedded", "count", len(texts))
	return vectors, nil
}

// EmbedQuery embeds a single query text.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
