// Package ingest loads the PDF corpus from a watched directory and turns
// it into chunks.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/docsetai/askdocs/internal/models"
	"github.com/docsetai/askdocs/internal/types"
	"github.com/docsetai/askdocs/pkg/processor"
)

// Failure records one document that could not be ingested. A failing
// file never aborts the rest of the corpus.
type Failure struct {
	Path string
	Err  error
}

type IngestorConfig struct {
	Dir        string
	OnProgress func(path string) // called after each document, for progress display
}

// Ingestor enumerates the corpus directory, extracts per-page text and
// chunks it. Enumeration order follows the filesystem; only relative
// per-document page order is guaranteed across rebuilds.
type Ingestor struct {
	config    IngestorConfig
	extractor types.Extractor
	chunker   processor.Chunker
}

func NewWithConfig(config IngestorConfig, extractor types.Extractor, chunker processor.Chunker) *Ingestor {
	return &Ingestor{
		config:    config,
		extractor: extractor,
		chunker:   chunker,
	}
}

// IngestCorpus chunks every readable PDF under the corpus directory.
// Unreadable files are collected as failures, not errors.
func (in *Ingestor) IngestCorpus() ([]models.Chunk, []Failure, error) {
	names, err := in.ListDocuments()
	if err != nil {
		return nil, nil, err
	}

	var chunks []models.Chunk
	var failures []Failure

	for _, name := range names {
		path := filepath.Join(in.config.Dir, name)

		pages, err := in.extractor.ExtractPages(path)
		if err != nil {
			failures = append(failures, Failure{Path: path, Err: err})
			continue
		}

		chunks = append(chunks, in.chunker.ChunkPages(name, pages)...)

		if in.config.OnProgress != nil {
			in.config.OnProgress(path)
		}
	}

	return chunks, failures, nil
}

// ListDocuments returns the PDF file names currently present in the
// corpus directory.
func (in *Ingestor) ListDocuments() ([]string, error) {
	entries, err := os.ReadDir(in.config.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read corpus directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	return names, nil
}
