package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/docentbot/docent/internal/query"
)

const systemPrompt = `You are a helpful technical support assistant for an internal engineering team.

Your communication style:
- Be *direct* and *concise* - no fluff or filler
- Sound like a knowledgeable colleague, not a formal AI
- Use Slack-compatible formatting: *bold* for emphasis (NOT **bold**)
- Keep answers short - 2-4 sentences for simple questions, bullet points for complex ones
- If you're not sure, say so briefly and suggest what might help
- Skip pleasantries like "Great question!" or "I'd be happy to help!"

When answering:
1. Lead with the answer, not background
2. Include specific commands, code, or links when relevant
3. If the context doesn't contain the answer, say you don't know

Rate your confidence internally:
- HIGH: Context clearly answers the question
- MEDIUM: Context partially relevant, some inference needed
- LOW: Context doesn't really help`

const userPromptFormat = `Based on this context, answer the question. Be brief and direct.

CONTEXT:
%s

QUESTION: %s

Respond with your answer only. If you're unsure, say so briefly. End your response with one of:
[CONFIDENCE:HIGH]
[CONFIDENCE:MEDIUM]
[CONFIDENCE:LOW]`

// maxAnswerTokens keeps chat answers short.
const maxAnswerTokens int32 = 512

// Generator produces grounded answers with a confidence tag.
type Generator struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGenerator creates a Generator using the given generation model.
func NewGenerator(client *genai.Client, model string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{client: client, model: model, logger: logger}
}

// Generate implements query.Generator. The confidence marker the model emits
// is parsed out and stripped from the visible answer.
func (g *Generator) Generate(ctx context.Context, question, contextText string) (string, query.Confidence, error) {
	prompt := fmt.Sprintf(userPromptFormat, contextText, question)

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			MaxOutputTokens:   maxAnswerTokens,
		})
	if err != nil {
		return "", "", fmt.Errorf("generating answer: %w", err)
	}

	text, confidence := parseConfidence(resp.Text())
	g.logger.Debug("answer generated", "confidence", confidence, "length", len(text))
	return text, confidence, nil
}

// confidenceMarkers maps the embedded response markers to confidence levels,
// checked in order.
var confidenceMarkers = []struct {
	marker string
	level  query.Confidence
}{
	{"[CONFIDENCE:HIGH]", query.ConfidenceHigh},
	{"[CONFIDENCE:MEDIUM]", query.ConfidenceMedium},
	{"[CONFIDENCE:LOW]", query.ConfidenceLow},
}

// parseConfidence extracts the confidence marker from a model response and
// strips it from the visible text. A missing marker defaults to medium.
func parseConfidence(text string) (string, query.Confidence) {
	text = strings.TrimSpace(text)
	for _, m := range confidenceMarkers {
		if strings.Contains(text, m.marker) {
			return strings.TrimSpace(strings.ReplaceAll(text, m.marker, "")), m.level
		}
	}
	return text, query.ConfidenceMedium
}
