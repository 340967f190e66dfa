package models

// Page holds the extracted text of a single PDF page.
type Page struct {
	Number int
	Text   string
}

// Chunk is a bounded span of page text, the unit of embedding and retrieval.
type Chunk struct {
	ID       string
	Source   string // file name of the PDF the chunk came from
	Page     int
	Position int // ordinal of the chunk within its source document
	Text     string
}

// RetrievalResult pairs a chunk with its similarity to a query vector.
type RetrievalResult struct {
	Chunk Chunk
	Score float64
}

// ConversationTurn is one (question, answer) pair in a conversation.
type ConversationTurn struct {
	Question string
	Answer   string
}

// Snapshot is the persistable content of a vector index.
// Chunks and Vectors are parallel: Vectors[i] embeds Chunks[i].
type Snapshot struct {
	Dimension int
	Chunks    []Chunk
	Vectors   [][]float32
}

// SourceStatus describes why an answer carries the citations it does.
// The three empty-citation cases are deliberately distinct: an empty
// corpus, an unavailable index and an answer no chunk plausibly
// informed are different situations and must stay distinguishable
// in user-facing output.
type SourceStatus string

const (
	// SourcesCited means at least one chunk cleared the attribution threshold.
	SourcesCited SourceStatus = "cited"

	// NoConfidentSource means an answer was produced but no retrieved
	// chunk was similar enough to it to be cited.
	NoConfidentSource SourceStatus = "no_confident_source"

	// CorpusEmpty means no documents have been ingested, so the
	// generative model was never called.
	CorpusEmpty SourceStatus = "corpus_empty"

	// IndexUnavailable means retrieval could not be served against the
	// current index state.
	IndexUnavailable SourceStatus = "index_unavailable"
)

// AnswerResult is the outcome of answering one question.
type AnswerResult struct {
	Text         string
	CitedSources []string // unique source file names, first-occurrence order
	SourceStatus SourceStatus
}
