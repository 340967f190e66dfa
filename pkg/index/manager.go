package index

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/docsetai/askdocs/internal/models"
	"github.com/docsetai/askdocs/internal/types"
	"github.com/docsetai/askdocs/pkg/ingest"
)

// Status is the index lifecycle state.
type Status int32

const (
	StatusEmpty Status = iota
	StatusBuilding
	StatusReady
	StatusRebuilding
	StatusPruning
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusBuilding:
		return "building"
	case StatusReady:
		return "ready"
	case StatusRebuilding:
		return "rebuilding"
	case StatusPruning:
		return "pruning"
	}
	return "unknown"
}

type ManagerConfig struct {
	TopK      int
	BatchSize int     // chunks per embedding call
	EmbedRate float64 // embedding batches per second, 0 = unlimited
}

// BuildReport summarizes one corpus rebuild.
type BuildReport struct {
	Documents int
	Chunks    int
	Failures  []ingest.Failure
}

var _ types.Retriever = (*Manager)(nil)

// Manager owns the current index snapshot. Rebuild and prune are
// serialized by a mutex, so a second rebuild request blocks until the
// first finishes instead of interleaving writes to the persisted
// snapshot. Retrieval never takes the mutex: it reads the published
// pointer, which is replaced in a single atomic swap.
type Manager struct {
	config   ManagerConfig
	ingestor *ingest.Ingestor
	embedder types.Embedder
	store    types.SnapshotStore
	limiter  *rate.Limiter

	mu      sync.Mutex
	current atomic.Pointer[Index]
	status  atomic.Int32
}

func NewManager(config ManagerConfig, ingestor *ingest.Ingestor, embedder types.Embedder, store types.SnapshotStore) *Manager {
	if config.TopK == 0 {
		config.TopK = 4
	}
	if config.BatchSize == 0 {
		config.BatchSize = 16
	}

	m := &Manager{
		config:   config,
		ingestor: ingestor,
		embedder: embedder,
		store:    store,
	}
	if config.EmbedRate > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(config.EmbedRate), 1)
	}
	return m
}

func (m *Manager) Status() Status {
	return Status(m.status.Load())
}

// Ready reports whether retrieval can be served.
func (m *Manager) Ready() bool {
	ix := m.current.Load()
	return ix != nil && ix.Len() > 0
}

// LoadOrInit restores the persisted snapshot if one exists, otherwise
// builds the index from the corpus directory. With an empty corpus the
// index stays empty and ErrIndexUnavailable is returned; callers treat
// retrieval as unavailable, not broken.
func (m *Manager) LoadOrInit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load index snapshot: %w", err)
	}
	if snap != nil && len(snap.Chunks) > 0 {
		m.current.Store(newIndex(snap.Chunks, snap.Vectors))
		m.status.Store(int32(StatusReady))
		return nil
	}

	_, err = m.rebuildLocked(ctx)
	return err
}

// Rebuild re-ingests and re-embeds every PDF currently on disk and
// atomically replaces both the persisted snapshot and the published
// index. A full rebuild, not an append: replacing a document under the
// same name keeps chunk boundaries and page numbers consistent.
func (m *Manager) Rebuild(ctx context.Context) (*BuildReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rebuildLocked(ctx)
}

func (m *Manager) rebuildLocked(ctx context.Context) (*BuildReport, error) {
	if m.current.Load() == nil {
		m.status.Store(int32(StatusBuilding))
	} else {
		m.status.Store(int32(StatusRebuilding))
	}
	defer m.settleStatus()

	chunks, failures, err := m.ingestor.IngestCorpus()
	if err != nil {
		return nil, fmt.Errorf("failed to ingest corpus: %w", err)
	}

	report := &BuildReport{Chunks: len(chunks), Failures: failures}

	if len(chunks) == 0 {
		// Nothing ingestible. The previous index, if any, stays live.
		return report, fmt.Errorf("corpus produced no chunks: %w", models.ErrIndexUnavailable)
	}

	vectors, err := m.embedChunks(ctx, chunks)
	if err != nil {
		return report, err
	}

	ix := newIndex(chunks, vectors)
	report.Documents = len(ix.Sources())

	if err := m.store.Save(ctx, ix.snapshot()); err != nil {
		return report, fmt.Errorf("failed to persist index snapshot: %w", err)
	}

	m.current.Store(ix)
	return report, nil
}

// Prune drops chunks whose source document no longer exists on disk and
// re-persists if anything was dropped. If pruning would empty the index
// entirely, the unpruned index is kept: availability wins over corpus
// consistency in that one case.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.current.Load()
	if cur == nil || cur.Len() == 0 {
		return 0, models.ErrIndexUnavailable
	}

	m.status.Store(int32(StatusPruning))
	defer m.settleStatus()

	names, err := m.ingestor.ListDocuments()
	if err != nil {
		return 0, err
	}
	onDisk := make(map[string]bool, len(names))
	for _, name := range names {
		onDisk[name] = true
	}

	var chunks []models.Chunk
	var vectors [][]float32
	for i, ch := range cur.chunks {
		if onDisk[ch.Source] {
			chunks = append(chunks, ch)
			vectors = append(vectors, cur.vectors[i])
		}
	}

	removed := cur.Len() - len(chunks)
	if removed == 0 {
		return 0, nil
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	ix := newIndex(chunks, vectors)
	if err := m.store.Save(ctx, ix.snapshot()); err != nil {
		return 0, fmt.Errorf("failed to persist pruned snapshot: %w", err)
	}

	m.current.Store(ix)
	return removed, nil
}

// Retrieve returns the k nearest chunks for a query vector. k <= 0 uses
// the configured top-K.
func (m *Manager) Retrieve(query []float32, k int) ([]models.RetrievalResult, error) {
	ix := m.current.Load()
	if ix == nil || ix.Len() == 0 {
		return nil, models.ErrIndexUnavailable
	}
	if k <= 0 {
		k = m.config.TopK
	}
	return ix.Search(query, k), nil
}

// Sources returns the source documents represented in the current index.
func (m *Manager) Sources() []string {
	ix := m.current.Load()
	if ix == nil {
		return nil
	}
	return ix.Sources()
}

func (m *Manager) embedChunks(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += m.config.BatchSize {
		end := start + m.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		if m.limiter != nil {
			if err := m.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		batch, err := m.embedder.CreateEmbedding(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks %d-%d: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
	}

	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks", models.ErrEmbeddingUnavailable, len(vectors), len(chunks))
	}
	return vectors, nil
}

func (m *Manager) settleStatus() {
	if m.Ready() {
		m.status.Store(int32(StatusReady))
	} else {
		m.status.Store(int32(StatusEmpty))
	}
}
