package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/docsetai/askdocs/internal/models"
	"github.com/docsetai/askdocs/internal/types"
	"github.com/docsetai/askdocs/pkg/attribute"
	"github.com/docsetai/askdocs/pkg/memory"
)

const (
	// DefaultTopK is the number of chunks pulled into the prompt context.
	DefaultTopK = 4

	defaultFallbackAnswer = "No documents have been uploaded yet. Upload a PDF and I can answer questions about its contents."

	defaultUnavailableAnswer = "The document index is not available right now. Please try again in a moment."

	defaultSystemTemplate = `You are a document assistant. Answer the question using only the context below.
If the context does not contain the answer, say that you can only answer questions based on the document content that has been uploaded.
If asked who made you or what you are, say you are an automated document assistant.

Context:
%s
Conversation so far:
%s
Question: %s

Answer:`
)

// Config controls prompt assembly and the canned answers used when
// retrieval cannot run.
type Config struct {
	TopK              int
	SystemTemplate    string
	FallbackAnswer    string
	UnavailableAnswer string
}

// Engine answers questions over the indexed corpus: it embeds the
// question, retrieves the closest chunks, prompts the generator with
// them plus the conversation so far, and attributes the answer back to
// its sources.
type Engine struct {
	config    Config
	embedder  types.Embedder
	generator types.Generator
	retriever types.Retriever
	log       *memory.Log
	filter    *attribute.Filter
}

func New(embedder types.Embedder, generator types.Generator, retriever types.Retriever, log *memory.Log, filter *attribute.Filter) *Engine {
	return NewWithConfig(Config{}, embedder, generator, retriever, log, filter)
}

func NewWithConfig(config Config, embedder types.Embedder, generator types.Generator, retriever types.Retriever, log *memory.Log, filter *attribute.Filter) *Engine {
	if config.TopK <= 0 {
		config.TopK = DefaultTopK
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = defaultSystemTemplate
	}
	if config.FallbackAnswer == "" {
		config.FallbackAnswer = defaultFallbackAnswer
	}
	if config.UnavailableAnswer == "" {
		config.UnavailableAnswer = defaultUnavailableAnswer
	}
	if log == nil {
		log = memory.NewLog()
	}
	if filter == nil {
		filter = attribute.New(0)
	}
	return &Engine{
		config:    config,
		embedder:  embedder,
		generator: generator,
		retriever: retriever,
		log:       log,
		filter:    filter,
	}
}

// Ask runs one question through the full pipeline. An unavailable index
// is answered with a canned response rather than an error; embedding and
// generation failures are returned to the caller with the conversation
// log untouched.
func (e *Engine) Ask(ctx context.Context, question string) (*models.AnswerResult, error) {
	if !e.retriever.Ready() {
		return &models.AnswerResult{
			Text:         e.config.FallbackAnswer,
			SourceStatus: models.CorpusEmpty,
		}, nil
	}

	vectors, err := e.embedder.CreateEmbedding(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding question: got %d vectors for one input: %w", len(vectors), models.ErrEmbeddingUnavailable)
	}

	retrieved, err := e.retriever.Retrieve(vectors[0], e.config.TopK)
	if err != nil {
		if errors.Is(err, models.ErrIndexUnavailable) {
			return &models.AnswerResult{
				Text:         e.config.UnavailableAnswer,
				SourceStatus: models.IndexUnavailable,
			}, nil
		}
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	prompt := e.buildPrompt(question, retrieved)
	answer, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	e.log.Append(models.ConversationTurn{Question: question, Answer: answer})

	cited := e.filter.CitedSources(answer, retrieved)
	status := models.SourcesCited
	if len(cited) == 0 {
		status = models.NoConfidentSource
	}
	return &models.AnswerResult{
		Text:         answer,
		CitedSources: cited,
		SourceStatus: status,
	}, nil
}

// Memory exposes the conversation log, e.g. for a reset command.
func (e *Engine) Memory() *memory.Log {
	return e.log
}

func (e *Engine) buildPrompt(question string, retrieved []models.RetrievalResult) string {
	var context strings.Builder
	for _, r := range retrieved {
		fmt.Fprintf(&context, "Source: %s (page %d)\n%s\n\n", r.Chunk.Source, r.Chunk.Page, r.Chunk.Text)
	}
	history := e.log.Render()
	if history == "" {
		history = "(none)\n"
	}
	return fmt.Sprintf(e.config.SystemTemplate, context.String(), history, question)
}
