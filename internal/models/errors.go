package models

import "errors"

// Failure taxonomy for the ingestion and answer pipelines. Callers match
// with errors.Is; lower layers attach context with fmt.Errorf and %w.
var (
	// ErrUnreadableDocument indicates a file that could not be parsed as
	// a PDF. Per-file and non-fatal: ingestion skips the file and continues.
	ErrUnreadableDocument = errors.New("unreadable document")

	// ErrEmbeddingUnavailable indicates the embedding service failed.
	// Fatal to the current operation; the prior index state is preserved.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGenerationFailed indicates the generative model call failed.
	// Fatal to the current query only; conversation memory is untouched.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrIndexUnavailable indicates the vector index has no content to
	// serve. This is a well-defined state, not a crash: callers present
	// a fallback answer instead of an error.
	ErrIndexUnavailable = errors.New("vector index unavailable")
)
