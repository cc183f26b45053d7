// Package index holds one SQLite FTS5 search index per vocabulary.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/cloo-solutions/vocabtool/internal/domain"
)

// DefaultCutoff is the BM25 rank a match must beat to be returned.
const DefaultCutoff = -5.0

const schema = `
CREATE VIRTUAL TABLE vocab USING fts5(
	code UNINDEXED,
	display,
	synonyms,
	frequency_rank UNINDEXED,
	units UNINDEXED,
	tokenize = 'porter unicode61'
);
INSERT INTO vocab(vocab, rank) VALUES('rank', 'bm25(0, 10.0, 1.0, 0, 0)');
CREATE TABLE build_info (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const searchQuery = `
SELECT code, display FROM vocab
WHERE vocab MATCH ? AND rank < ?
ORDER BY rank, length(display), CAST(frequency_rank AS INTEGER), code
LIMIT ? OFFSET ?`

// Stats describes the current build of an index.
type Stats struct {
	Path       string    `json:"path"`
	Ready      bool      `json:"ready"`
	Generation string    `json:"generation,omitempty"`
	Entries    int       `json:"entries"`
	BuiltAt    time.Time `json:"builtAt,omitempty"`
}

// Index is a rank-searchable vocabulary index backed by a single SQLite file.
// Queries hold the read lock; a rebuild swaps the file under the write lock.
type Index struct {
	path   string
	logger *slog.Logger

	mu         sync.RWMutex
	db         *sql.DB
	generation string
	entries    int
	builtAt    time.Time
}

// Open opens the index at path. A missing file is not an error: the index
// reports itself unavailable until Build succeeds.
func Open(path string) (*Index, error) {
	ix := &Index{
		path:   path,
		logger: slog.Default().With("component", "index", "path", path),
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ix, nil
		}
		return nil, fmt.Errorf("stat index: %w", err)
	}
	if err := ix.reopen(); err != nil {
		return nil, err
	}
	return ix, nil
}

// reopen opens the file at ix.path and loads its build info. Caller holds the write lock or owns ix.
func (ix *Index) reopen() error {
	db, err := sql.Open("sqlite", ix.path+"?_pragma=query_only(1)")
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}

	info, err := readBuildInfo(db)
	if err != nil {
		db.Close()
		return domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "vocabulary index unreadable", err)
	}

	ix.db = db
	ix.generation = info["generation"]
	ix.entries, _ = strconv.Atoi(info["entries"])
	ix.builtAt, _ = time.Parse(time.RFC3339Nano, info["built_at"])
	return nil
}

func readBuildInfo(db *sql.DB) (map[string]string, error) {
	rows, err := db.Query(`SELECT key, value FROM build_info`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	info := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		info[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if info["generation"] == "" {
		return nil, errors.New("build info has no generation")
	}
	return info, nil
}

// Build replaces the index contents with entries. The new index is written
// to a temporary file and swapped in atomically; readers see either the old
// build or the new one.
func (ix *Index) Build(ctx context.Context, entries []domain.VocabularyEntry) (Stats, error) {
	start := time.Now()
	if err := os.MkdirAll(filepath.Dir(ix.path), 0o755); err != nil {
		return Stats{}, fmt.Errorf("create index dir: %w", err)
	}

	generation := ulid.Make().String()
	tmpPath := ix.path + ".building-" + generation
	defer os.Remove(tmpPath)

	builtAt := time.Now().UTC()
	if err := writeIndexFile(ctx, tmpPath, generation, builtAt, entries); err != nil {
		return Stats{}, err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.db != nil {
		if err := ix.db.Close(); err != nil {
			ix.logger.Warn("close previous build", "error", err)
		}
		ix.db = nil
	}
	if err := os.Rename(tmpPath, ix.path); err != nil {
		return Stats{}, fmt.Errorf("swap index file: %w", err)
	}
	if err := ix.reopen(); err != nil {
		return Stats{}, err
	}

	ix.logger.Info("index built",
		"generation", generation,
		"entries", len(entries),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ix.statsLocked(), nil
}

func writeIndexFile(ctx context.Context, path, generation string, builtAt time.Time, entries []domain.VocabularyEntry) error {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(off)&_pragma=synchronous(off)")
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin build: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO vocab (code, display, synonyms, frequency_rank, units) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if _, err := stmt.ExecContext(ctx, e.Code, e.Display, e.Synonyms, e.FrequencyRank, e.Units); err != nil {
			return fmt.Errorf("insert %s: %w", e.Code, err)
		}
	}

	info := map[string]string{
		"generation": generation,
		"entries":    strconv.Itoa(len(entries)),
		"built_at":   builtAt.Format(time.RFC3339Nano),
	}
	for k, v := range info {
		if _, err := tx.ExecContext(ctx, `INSERT INTO build_info (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("write build info: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit build: %w", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO vocab(vocab) VALUES('optimize')`); err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	return nil
}

// Search returns the entries matching any of terms, best first, and the
// generation of the build they were read from.
// Only matches whose rank is below cutoff are returned.
func (ix *Index) Search(ctx context.Context, terms []string, limit, offset int, cutoff float64) ([]domain.SearchResult, string, error) {
	expr := MatchExpression(terms)
	if expr == "" {
		return nil, "", domain.ErrEmptyQuery
	}
	if limit < 0 || offset < 0 {
		return nil, "", domain.ErrInvalidPagination
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.db == nil {
		return nil, "", domain.ErrIndexUnavailable
	}

	rows, err := ix.db.QueryContext(ctx, searchQuery, expr, cutoff, limit, offset)
	if err != nil {
		return nil, "", domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "search failed", err)
	}
	defer rows.Close()

	results := make([]domain.SearchResult, 0, limit)
	for rows.Next() {
		var r domain.SearchResult
		if err := rows.Scan(&r.Code, &r.Display); err != nil {
			return nil, "", fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "search failed", err)
	}
	return results, ix.generation, nil
}

// Generation returns the id of the current build, or "" when not built.
func (ix *Index) Generation() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.generation
}

// Ready reports whether the index has a usable build.
func (ix *Index) Ready() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.db != nil
}

// Stats returns a snapshot of the current build.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.statsLocked()
}

func (ix *Index) statsLocked() Stats {
	return Stats{
		Path:       ix.path,
		Ready:      ix.db != nil,
		Generation: ix.generation,
		Entries:    ix.entries,
		BuiltAt:    ix.builtAt,
	}
}

// Path returns the index file location.
func (ix *Index) Path() string {
	return ix.path
}

// Close releases the database handle.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.db == nil {
		return nil
	}
	err := ix.db.Close()
	ix.db = nil
	return err
}
