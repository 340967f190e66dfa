package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/docsetai/askdocs/internal/models"
	"github.com/docsetai/askdocs/internal/types"
)

const (
	snapshotFile   = "index.db"
	snapshotTemp   = "index.db.tmp"
	snapshotSchema = 1
)

var _ types.SnapshotStore = (*SQLiteStore)(nil)

// SQLiteStore persists index snapshots as a single versioned sqlite file
// in a fixed directory. Save writes a fresh temporary database and
// renames it over the previous snapshot, so readers never observe a
// half-written file.
type SQLiteStore struct {
	dir string
}

func NewSQLiteStore(dir string) *SQLiteStore {
	return &SQLiteStore{dir: dir}
}

func (s *SQLiteStore) Save(ctx context.Context, snap *models.Snapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp := filepath.Join(s.dir, snapshotTemp)
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear stale snapshot temp file: %w", err)
	}

	db, err := sql.Open("sqlite", tmp)
	if err != nil {
		return fmt.Errorf("failed to open snapshot database: %w", err)
	}

	if err := s.writeSnapshot(ctx, db, snap); err != nil {
		db.Close()
		os.Remove(tmp)
		return err
	}
	if err := db.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close snapshot database: %w", err)
	}

	if err := os.Rename(tmp, filepath.Join(s.dir, snapshotFile)); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) writeSnapshot(ctx context.Context, db *sql.DB, snap *models.Snapshot) error {
	schema := `
		CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);
		CREATE TABLE chunks (
			seq       INTEGER PRIMARY KEY,
			id        TEXT NOT NULL,
			source    TEXT NOT NULL,
			page      INTEGER NOT NULL,
			position  INTEGER NOT NULL,
			content   TEXT NOT NULL,
			embedding BLOB NOT NULL
		);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create snapshot schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES ('schema_version', ?), ('dimension', ?)",
		strconv.Itoa(snapshotSchema), strconv.Itoa(snap.Dimension)); err != nil {
		return fmt.Errorf("failed to write snapshot metadata: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (seq, id, source, page, position, content, embedding) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, ch := range snap.Chunks {
		if _, err := stmt.ExecContext(ctx, i, ch.ID, ch.Source, ch.Page, ch.Position, ch.Text, encodeVector(snap.Vectors[i])); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*models.Snapshot, error) {
	path := filepath.Join(s.dir, snapshotFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	defer db.Close()

	var version string
	if err := db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'schema_version'").Scan(&version); err != nil {
		return nil, fmt.Errorf("failed to read snapshot version: %w", err)
	}
	if version != strconv.Itoa(snapshotSchema) {
		return nil, fmt.Errorf("unsupported snapshot schema version %s", version)
	}

	snap := &models.Snapshot{}
	var dimension string
	if err := db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'dimension'").Scan(&dimension); err != nil {
		return nil, fmt.Errorf("failed to read snapshot dimension: %w", err)
	}
	if snap.Dimension, err = strconv.Atoi(dimension); err != nil {
		return nil, fmt.Errorf("invalid snapshot dimension %q", dimension)
	}

	rows, err := db.QueryContext(ctx,
		"SELECT id, source, page, position, content, embedding FROM chunks ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ch models.Chunk
		var blob []byte
		if err := rows.Scan(&ch.ID, &ch.Source, &ch.Page, &ch.Position, &ch.Text, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot chunk: %w", err)
		}
		snap.Chunks = append(snap.Chunks, ch)
		snap.Vectors = append(snap.Vectors, decodeVector(blob))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshot chunks: %w", err)
	}

	return snap, nil
}

// Vectors are stored as little-endian float32 bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
