// Package vectorstore keeps text embeddings in SQLite using the sqlite-vec
// extension and answers nearest-neighbour queries over them.
package vectorstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrDimension is returned for vectors whose length differs from the store's.
	ErrDimension = errors.New("embedding dimension mismatch")

	// ErrInvalidK is returned by Search for k outside [1, MaxK].
	ErrInvalidK = errors.New("k must be between 1 and 4096")
)

// MaxK is the largest k sqlite-vec accepts for a KNN query.
const MaxK = 4096

var loadExtension sync.Once

// Match is a stored document close to a query vector.
type Match struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Distance float64 `json:"distance"`
}

// Store is a sqlite-vec backed embedding store.
type Store struct {
	db   *sql.DB
	dims int
}

// Open opens (and creates if needed) the store at path for vectors of length dims.
func Open(path string, dims int) (*Store, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrDimension, dims)
	}
	loadExtension.Do(sqlite_vec.Auto)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	s := &Store{db: db, dims: dims}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			pk INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			text TEXT NOT NULL
		)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS embeddings USING vec0(embedding float[%d])`, s.dims),
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Dimensions returns the vector length the store accepts.
func (s *Store) Dimensions() int {
	return s.dims
}

// Put stores text and its vector under id, replacing any previous entry.
func (s *Store) Put(ctx context.Context, id, text string, vec []float64) error {
	blob, err := s.serialize(vec)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var rowid int64
	err = tx.QueryRowContext(ctx, `SELECT pk FROM documents WHERE id = ?`, id).Scan(&rowid)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, `INSERT INTO documents (id, text) VALUES (?, ?)`, id, text)
		if err != nil {
			return fmt.Errorf("insert document %s: %w", id, err)
		}
		if rowid, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("insert document %s: %w", id, err)
		}
	case err != nil:
		return fmt.Errorf("query document %s: %w", id, err)
	default:
		if _, err := tx.ExecContext(ctx, `UPDATE documents SET text = ? WHERE pk = ?`, text, rowid); err != nil {
			return fmt.Errorf("update document %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE rowid = ?`, rowid); err != nil {
			return fmt.Errorf("replace embedding %s: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO embeddings (rowid, embedding) VALUES (?, ?)`, rowid, blob); err != nil {
		return fmt.Errorf("insert embedding %s: %w", id, err)
	}
	return tx.Commit()
}

// Search returns up to k documents nearest to vec, closest first.
func (s *Store) Search(ctx context.Context, vec []float64, k int) ([]Match, error) {
	if k <= 0 || k > MaxK {
		return nil, ErrInvalidK
	}
	blob, err := s.serialize(vec)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.text, e.distance
		FROM (SELECT rowid, distance FROM embeddings WHERE embedding MATCH ? AND k = ?) e
		JOIN documents d ON d.pk = e.rowid
		ORDER BY e.distance`, blob, k)
	if err != nil {
		return nil, fmt.Errorf("search embeddings: %w", err)
	}
	defer rows.Close()

	matches := make([]Match, 0, min(k, 64))
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Text, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) serialize(vec []float64) ([]byte, error) {
	if len(vec) != s.dims {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(vec), s.dims)
	}
	f32 := make([]float32, len(vec))
	for i, v := range vec {
		f32[i] = float32(v)
	}
	blob, err := sqlite_vec.SerializeFloat32(f32)
	if err != nil {
		return nil, fmt.Errorf("serialize embedding: %w", err)
	}
	return blob, nil
}
