package types

import (
	"context"

	"github.com/docsetai/askdocs/internal/models"
)

// Core interfaces. Each is small enough to be implemented by a test
// double, which is how the orchestrator and service tests exercise the
// pipeline without a model server or a database.

// Embedder converts texts into fixed-length numeric vectors.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces an answer for an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Retriever serves nearest-neighbour lookups against the current index.
// Ready reports whether there is an index to retrieve from at all; when
// it returns false callers answer with a fallback instead of retrieving.
type Retriever interface {
	Ready() bool
	Retrieve(query []float32, k int) ([]models.RetrievalResult, error)
}

// Extractor turns a document file into ordered per-page text.
type Extractor interface {
	ExtractPages(path string) ([]models.Page, error)
}

// SnapshotStore persists index snapshots. Save atomically replaces any
// previous snapshot; Load returns (nil, nil) when none exists.
type SnapshotStore interface {
	Save(ctx context.Context, snap *models.Snapshot) error
	Load(ctx context.Context) (*models.Snapshot, error)
}
