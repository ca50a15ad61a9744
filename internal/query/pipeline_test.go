package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docentbot/docent/internal/knowledge"
)

type fakeEmbedder struct {
	called bool
	err    error
}

func (f *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	f.called = true
	return []float32{0.1, 0.2}, f.err
}

type fakeSearcher struct {
	count   int
	results []knowledge.Result
	err     error
}

func (f *fakeSearcher) Query(context.Context, uuid.UUID, []float32, int) ([]knowledge.Result, error) {
	return f.results, f.err
}

func (f *fakeSearcher) Count(context.Context, uuid.UUID) (int, error) {
	return f.count, nil
}

type fakeGenerator struct {
	called     bool
	gotContext string
	answer     string
	confidence Confidence
	err        error
}

func (f *fakeGenerator) Generate(_ context.Context, _, ctx string) (string, Confidence, error) {
	f.called = true
	f.gotContext = ctx
	return f.answer, f.confidence, f.err
}

func result(content, url string, distance float32) knowledge.Result {
	meta := map[string]string{}
	if url != "" {
		meta["url"] = url
	}
	return knowledge.Result{Content: content, Metadata: meta, Distance: distance}
}

func TestAnswerEmptyIndexShortCircuits(t *testing.T) {
	emb := &fakeEmbedder{}
	gen := &fakeGenerator{}
	p := New(emb, &fakeSearcher{count: 0}, gen, nil)

	ans, err := p.Answer(context.Background(), uuid.New(), "how do I deploy?")
	require.NoError(t, err)

	assert.Equal(t, ConfidenceLow, ans.Confidence)
	assert.Empty(t, ans.Sources)
	assert.Contains(t, ans.Text, "knowledge indexed yet")
	assert.False(t, emb.called, "embedding must not run on an empty index")
	assert.False(t, gen.called, "generation must not run on an empty index")
}

func TestAnswerAppliesRelevanceFloor(t *testing.T) {
	searcher := &fakeSearcher{
		count: 10,
		results: []knowledge.Result{
			result("included chunk", "https://ex.com/docs/a", 0.69), // score 0.31
			result("excluded chunk", "https://ex.com/docs/b", 0.75), // score 0.25
		},
	}
	gen := &fakeGenerator{answer: "deploy with the release pipeline", confidence: ConfidenceHigh}
	p := New(&fakeEmbedder{}, searcher, gen, nil)

	ans, err := p.Answer(context.Background(), uuid.New(), "how do I deploy?")
	require.NoError(t, err)

	assert.Contains(t, gen.gotContext, "included chunk")
	assert.NotContains(t, gen.gotContext, "excluded chunk")
	assert.Equal(t, []string{"https://ex.com/docs/a"}, ans.Sources)
	assert.Equal(t, ConfidenceHigh, ans.Confidence)
}

func TestAnswerAllBelowFloorYieldsFixedResponse(t *testing.T) {
	searcher := &fakeSearcher{
		count: 5,
		results: []knowledge.Result{
			result("far chunk", "https://ex.com/docs/a", 0.9),
		},
	}
	gen := &fakeGenerator{}
	p := New(&fakeEmbedder{}, searcher, gen, nil)

	ans, err := p.Answer(context.Background(), uuid.New(), "anything?")
	require.NoError(t, err)

	assert.Equal(t, ConfidenceLow, ans.Confidence)
	assert.Contains(t, ans.Text, "rephrase")
	assert.False(t, gen.called)
}

func TestAnswerJoinsContextWithSeparator(t *testing.T) {
	searcher := &fakeSearcher{
		count: 5,
		results: []knowledge.Result{
			result("first chunk", "", 0.1),
			result("second chunk", "", 0.2),
		},
	}
	gen := &fakeGenerator{answer: "ok", confidence: ConfidenceMedium}
	p := New(&fakeEmbedder{}, searcher, gen, nil)

	_, err := p.Answer(context.Background(), uuid.New(), "q")
	require.NoError(t, err)

	assert.Equal(t, "first chunk\n\n---\n\nsecond chunk", gen.gotContext)
}

func TestAnswerDeduplicatesAndCapsSources(t *testing.T) {
	results := []knowledge.Result{
		result("a", "https://ex.com/1", 0.1),
		result("b", "https://ex.com/1", 0.1),
		result("c", "https://ex.com/2", 0.1),
		result("d", "https://ex.com/3", 0.1),
		result("e", "https://ex.com/4", 0.1),
	}
	results[1].Metadata = map[string]string{"file_path": "docs/guide.md"}

	searcher := &fakeSearcher{count: 5, results: results}
	gen := &fakeGenerator{answer: "ok", confidence: ConfidenceMedium}
	p := New(&fakeEmbedder{}, searcher, gen, nil)

	ans, err := p.Answer(context.Background(), uuid.New(), "q")
	require.NoError(t, err)

	require.Len(t, ans.Sources, 3)
	assert.Equal(t, []string{"https://ex.com/1", "docs/guide.md", "https://ex.com/2"}, ans.Sources)
}

func TestAnswerGenerationFailureIsHard(t *testing.T) {
	searcher := &fakeSearcher{
		count:   5,
		results: []knowledge.Result{result("chunk", "https://ex.com/1", 0.1)},
	}
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	p := New(&fakeEmbedder{}, searcher, gen, nil)

	_, err := p.Answer(context.Background(), uuid.New(), "q")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "model unavailable"))
}
