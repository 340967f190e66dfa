package chat_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsetai/askdocs/internal/models"
	"github.com/docsetai/askdocs/pkg/attribute"
	"github.com/docsetai/askdocs/pkg/chat"
	"github.com/docsetai/askdocs/pkg/memory"
)

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeGenerator struct {
	answer  string
	err     error
	calls   int
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakeRetriever struct {
	ready   bool
	results []models.RetrievalResult
	err     error
}

func (f *fakeRetriever) Ready() bool { return f.ready }

func (f *fakeRetriever) Retrieve(_ []float32, _ int) ([]models.RetrievalResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func chunkResult(source, text string, page int) models.RetrievalResult {
	return models.RetrievalResult{
		Chunk: models.Chunk{Source: source, Page: page, Text: text},
		Score: 0.9,
	}
}

func TestAsk_EmptyCorpusSkipsGenerator(t *testing.T) {
	emb := &fakeEmbedder{}
	gen := &fakeGenerator{answer: "should not be called"}
	ret := &fakeRetriever{ready: false}
	engine := chat.New(emb, gen, ret, memory.NewLog(), attribute.New(0))

	result, err := engine.Ask(context.Background(), "what is the warranty period?")
	require.NoError(t, err)
	assert.Equal(t, models.CorpusEmpty, result.SourceStatus)
	assert.Empty(t, result.CitedSources)
	assert.NotEmpty(t, result.Text)
	assert.Equal(t, 0, gen.calls)
	assert.Equal(t, 0, emb.calls)
	assert.Equal(t, 0, engine.Memory().Len())
}

func TestAsk_IndexUnavailableReturnsCannedAnswer(t *testing.T) {
	emb := &fakeEmbedder{}
	gen := &fakeGenerator{answer: "should not be called"}
	ret := &fakeRetriever{ready: true, err: models.ErrIndexUnavailable}
	engine := chat.New(emb, gen, ret, memory.NewLog(), attribute.New(0))

	result, err := engine.Ask(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, models.IndexUnavailable, result.SourceStatus)
	assert.Equal(t, 0, gen.calls)
}

func TestAsk_CitesMatchingSource(t *testing.T) {
	answer := "The warranty covers parts and labor for two years from purchase."
	emb := &fakeEmbedder{}
	gen := &fakeGenerator{answer: answer}
	ret := &fakeRetriever{ready: true, results: []models.RetrievalResult{
		chunkResult("manual.pdf", "Warranty: parts and labor are covered for two years from the date of purchase.", 12),
		chunkResult("recipes.pdf", "Preheat the oven to 180 degrees and whisk the eggs until foamy before folding in flour.", 3),
	}}
	// 0.5 separates the sources cleanly: the warranty chunk scores ~0.75
	// against the answer, the recipe chunk ~0.41.
	engine := chat.NewWithConfig(chat.Config{}, emb, gen, ret, memory.NewLog(), attribute.New(0.5))

	result, err := engine.Ask(context.Background(), "what does the warranty cover?")
	require.NoError(t, err)
	assert.Equal(t, models.SourcesCited, result.SourceStatus)
	assert.Equal(t, []string{"manual.pdf"}, result.CitedSources)
	assert.Equal(t, answer, result.Text)
}

func TestAsk_NoConfidentSource(t *testing.T) {
	emb := &fakeEmbedder{}
	gen := &fakeGenerator{answer: "qqqq zzzz xxxx"}
	ret := &fakeRetriever{ready: true, results: []models.RetrievalResult{
		chunkResult("manual.pdf", "Completely unrelated body of text about maintenance schedules.", 1),
	}}
	engine := chat.New(emb, gen, ret, memory.NewLog(), attribute.New(0.9))

	result, err := engine.Ask(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, models.NoConfidentSource, result.SourceStatus)
	assert.Empty(t, result.CitedSources)
}

func TestAsk_GenerationFailureLeavesMemoryUntouched(t *testing.T) {
	emb := &fakeEmbedder{}
	gen := &fakeGenerator{err: models.ErrGenerationFailed}
	ret := &fakeRetriever{ready: true, results: []models.RetrievalResult{
		chunkResult("manual.pdf", "some context", 1),
	}}
	log := memory.NewLog()
	engine := chat.New(emb, gen, ret, log, attribute.New(0))

	_, err := engine.Ask(context.Background(), "will this fail?")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrGenerationFailed)
	assert.Equal(t, 0, log.Len())
}

func TestAsk_EmbeddingFailureLeavesMemoryUntouched(t *testing.T) {
	emb := &fakeEmbedder{err: models.ErrEmbeddingUnavailable}
	gen := &fakeGenerator{}
	ret := &fakeRetriever{ready: true}
	log := memory.NewLog()
	engine := chat.New(emb, gen, ret, log, attribute.New(0))

	_, err := engine.Ask(context.Background(), "question")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrEmbeddingUnavailable)
	assert.Equal(t, 0, gen.calls)
	assert.Equal(t, 0, log.Len())
}

func TestAsk_PromptCarriesHistoryInOrder(t *testing.T) {
	emb := &fakeEmbedder{}
	gen := &fakeGenerator{answer: "an answer"}
	ret := &fakeRetriever{ready: true, results: []models.RetrievalResult{
		chunkResult("manual.pdf", "context text", 1),
	}}
	engine := chat.New(emb, gen, ret, memory.NewLog(), attribute.New(0))

	ctx := context.Background()
	_, err := engine.Ask(ctx, "first question")
	require.NoError(t, err)
	_, err = engine.Ask(ctx, "second question")
	require.NoError(t, err)
	_, err = engine.Ask(ctx, "third question")
	require.NoError(t, err)

	require.Len(t, gen.prompts, 3)
	third := gen.prompts[2]
	first := "User: first question"
	second := "User: second question"
	assert.Contains(t, third, first)
	assert.Contains(t, third, second)
	assert.Less(t, strings.Index(third, first), strings.Index(third, second))
	assert.Contains(t, third, "Source: manual.pdf (page 1)")
	assert.Contains(t, third, "third question")
}
