package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docsetai/askdocs/internal/models"
	"github.com/docsetai/askdocs/pkg/index"
	"github.com/docsetai/askdocs/pkg/ingest"
)

// DefaultDebounce is how long the watcher waits after the last write
// event before rebuilding, so a file copied in several writes triggers
// one rebuild instead of many.
const DefaultDebounce = 500 * time.Millisecond

// lifecycle is the slice of the index manager the service drives.
type lifecycle interface {
	Rebuild(ctx context.Context) (*index.BuildReport, error)
	Prune(ctx context.Context) (int, error)
	Ready() bool
	Status() index.Status
	Sources() []string
}

// answerer runs one question through the answer pipeline.
type answerer interface {
	Ask(ctx context.Context, question string) (*models.AnswerResult, error)
}

// lister enumerates the PDF files currently in the corpus directory.
type lister interface {
	ListDocuments() ([]string, error)
}

type ServiceConfig struct {
	Dir      string
	Debounce time.Duration
}

// Service ties the corpus directory, the index manager, and the answer
// engine together behind the operations the transport layer exposes.
type Service struct {
	config  ServiceConfig
	manager lifecycle
	engine  answerer
	docs    lister
}

func NewWithConfig(config ServiceConfig, manager lifecycle, engine answerer, docs lister) *Service {
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	return &Service{
		config:  config,
		manager: manager,
		engine:  engine,
		docs:    docs,
	}
}

// ErrRejectedUpload marks uploads refused for client-side reasons (bad
// name or file type), as opposed to server-side failures. Messages
// wrapping it are safe to show to the client.
var ErrRejectedUpload = errors.New("upload rejected")

// UploadReport describes the outcome of one upload and the reindex it
// triggered. Failures list the corpus files skipped as unreadable
// during that reindex, which can include documents other than the one
// just uploaded.
type UploadReport struct {
	Document string
	Chunks   int
	Failures []ingest.Failure
}

// UploadDocument stores an uploaded PDF in the corpus directory and
// rebuilds the index over the new corpus. The stored name is the base
// name of the upload, so path components sent by a client are ignored.
// An upload whose own file cannot be parsed is an error, not a silent
// skip; on any reindex failure the file stays on disk and the previous
// index keeps serving.
func (s *Service) UploadDocument(ctx context.Context, r io.Reader, filename string) (*UploadReport, error) {
	name := filepath.Base(filepath.Clean(filename))
	if name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: invalid document name %q", ErrRejectedUpload, filename)
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return nil, fmt.Errorf("%w: unsupported document type %q, only PDF files are accepted", ErrRejectedUpload, filepath.Ext(name))
	}

	if err := os.MkdirAll(s.config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating corpus directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.config.Dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("staging upload: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("writing upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("writing upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.config.Dir, name)); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("storing %s: %w", name, err)
	}

	build, err := s.manager.Rebuild(ctx)
	if err != nil {
		return &UploadReport{Document: name}, fmt.Errorf("stored %s but reindex failed: %w", name, err)
	}

	report := &UploadReport{Document: name, Chunks: build.Chunks, Failures: build.Failures}
	for _, f := range build.Failures {
		if filepath.Base(f.Path) == name {
			return report, fmt.Errorf("stored %s but it was skipped during indexing: %w", name, f.Err)
		}
	}

	// catches files deleted while the rebuild was running
	if _, err := s.manager.Prune(ctx); err != nil {
		return report, fmt.Errorf("stored %s but prune failed: %w", name, err)
	}
	return report, nil
}

// RemoveDocument deletes a PDF from the corpus directory and prunes its
// chunks from the index. Missing files are not an error, the prune still
// runs so the index catches up with the directory.
func (s *Service) RemoveDocument(ctx context.Context, filename string) error {
	name := filepath.Base(filepath.Clean(filename))
	if err := os.Remove(filepath.Join(s.config.Dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", name, err)
	}
	if _, err := s.manager.Prune(ctx); err != nil {
		return fmt.Errorf("pruning after removing %s: %w", name, err)
	}
	return nil
}

// ListDocuments returns the PDF file names currently in the corpus
// directory, sorted.
func (s *Service) ListDocuments() ([]string, error) {
	return s.docs.ListDocuments()
}

// Ask answers a question against the current index.
func (s *Service) Ask(ctx context.Context, question string) (*models.AnswerResult, error) {
	return s.engine.Ask(ctx, question)
}

// Status reports the index lifecycle state.
func (s *Service) Status() index.Status {
	return s.manager.Status()
}

// Sources returns the document names represented in the current index,
// which can lag the directory until the next rebuild or prune.
func (s *Service) Sources() []string {
	return s.manager.Sources()
}
