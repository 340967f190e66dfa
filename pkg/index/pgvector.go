package index

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/docsetai/askdocs/internal/models"
	"github.com/docsetai/askdocs/internal/types"
)

type PGStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

var _ types.SnapshotStore = (*PGStore)(nil)

// PGStore persists index snapshots in a Postgres table with the pgvector
// extension, for operators who already run Postgres. Save replaces the
// whole table inside one transaction, which gives the same atomic
// publish contract as the file backend. Retrieval still runs against
// the in-memory index; the table is only the durable snapshot.
type PGStore struct {
	config PGStoreConfig
	pool   *pgxpool.Pool
}

func NewPGStore(ctx context.Context, config PGStoreConfig) (*PGStore, error) {
	if config.TableName == "" {
		config.TableName = "chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	s := &PGStore{config: config, pool: pool}
	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) initialize(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq       BIGINT PRIMARY KEY,
			id        TEXT NOT NULL,
			source    TEXT NOT NULL,
			page      INTEGER NOT NULL,
			position  INTEGER NOT NULL,
			content   TEXT NOT NULL,
			embedding vector(%d)
		)`, s.config.TableName, s.config.VectorDim)

	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}
	return nil
}

func (s *PGStore) Save(ctx context.Context, snap *models.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", s.config.TableName)); err != nil {
		return fmt.Errorf("failed to clear previous snapshot: %v", err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (seq, id, source, page, position, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, s.config.TableName)

	for i, ch := range snap.Chunks {
		if _, err := tx.Exec(ctx, stmt,
			i, ch.ID, ch.Source, ch.Page, ch.Position, ch.Text,
			pgvector.NewVector(snap.Vectors[i]),
		); err != nil {
			return fmt.Errorf("failed to insert chunk: %v", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot: %v", err)
	}
	return nil
}

func (s *PGStore) Load(ctx context.Context) (*models.Snapshot, error) {
	query := fmt.Sprintf(`
		SELECT id, source, page, position, content, embedding
		FROM %s ORDER BY seq`, s.config.TableName)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %v", err)
	}
	defer rows.Close()

	snap := &models.Snapshot{Dimension: s.config.VectorDim}
	for rows.Next() {
		var ch models.Chunk
		var embedding pgvector.Vector
		if err := rows.Scan(&ch.ID, &ch.Source, &ch.Page, &ch.Position, &ch.Text, &embedding); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %v", err)
		}
		snap.Chunks = append(snap.Chunks, ch)
		snap.Vectors = append(snap.Vectors, embedding.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshot rows: %v", err)
	}

	if len(snap.Chunks) == 0 {
		return nil, nil
	}
	return snap, nil
}

func (s *PGStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
