package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sheppard/dask/internal/codec"
)

// Catalog is an optional SQLite cache of the merged dataset index. It lets
// large datasets answer "which row groups may match these predicates" with
// indexed range queries instead of scanning every footer in memory. The
// catalog is derived state: it is rebuilt from `_metadata` and is never
// authoritative.
type Catalog struct {
	db *sql.DB
	mu sync.Mutex
}

const catalogSchemaSQL = `
CREATE TABLE IF NOT EXISTS row_groups (
    path TEXT NOT NULL,
    row_group INTEGER NOT NULL,
    num_rows INTEGER NOT NULL,
    PRIMARY KEY (path, row_group)
)`

const catalogStatsSQL = `
CREATE TABLE IF NOT EXISTS chunk_stats (
    path TEXT NOT NULL,
    row_group INTEGER NOT NULL,
    column_name TEXT NOT NULL,
    min_num REAL,
    max_num REAL,
    min_text TEXT,
    max_text TEXT,
    null_count INTEGER NOT NULL,
    PRIMARY KEY (path, row_group, column_name)
)`

var catalogIndexSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_stats_num ON chunk_stats(column_name, min_num, max_num)`,
	`CREATE INDEX IF NOT EXISTS idx_stats_text ON chunk_stats(column_name, min_text, max_text)`,
}

// OpenCatalog opens (or creates) a catalog database.
func OpenCatalog(dbPath string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("dataset: open catalog: %w", err)
	}
	db.SetMaxOpenConns(1) // Single writer
	for _, stmt := range append([]string{catalogSchemaSQL, catalogStatsSQL}, catalogIndexSQL...) {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("dataset: init catalog schema: %w", err)
		}
	}
	return &Catalog{db: db}, nil
}

// Rebuild replaces the catalog contents with the given metadata snapshot.
func (c *Catalog) Rebuild(ctx context.Context, m *Metadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dataset: catalog rebuild: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM chunk_stats`, `DELETE FROM row_groups`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("dataset: catalog clear: %w", err)
		}
	}

	for _, entry := range m.Files {
		for gi, group := range entry.Footer.RowGroups {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO row_groups (path, row_group, num_rows) VALUES (?, ?, ?)`,
				entry.Path, gi, group.NumRows); err != nil {
				return fmt.Errorf("dataset: catalog insert row group: %w", err)
			}
			for _, chunk := range group.Chunks {
				minNum, maxNum, minText, maxText := splitStat(chunk.Stats)
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO chunk_stats
						(path, row_group, column_name, min_num, max_num, min_text, max_text, null_count)
					 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					entry.Path, gi, chunk.Column, minNum, maxNum, minText, maxText,
					chunk.Stats.NullCount); err != nil {
					return fmt.Errorf("dataset: catalog insert stats: %w", err)
				}
			}
		}
	}
	return tx.Commit()
}

// RowGroupRef identifies one row group of one data file.
type RowGroupRef struct {
	Path     string
	RowGroup int
}

// CandidatesForRange returns the row groups whose [min,max] statistics for
// the column may overlap [lo, hi]. Missing statistics keep the row group.
// Nil bounds are unbounded.
func (c *Catalog) CandidatesForRange(ctx context.Context, column string, lo, hi any) ([]RowGroupRef, error) {
	query := `
		SELECT g.path, g.row_group
		FROM row_groups g
		LEFT JOIN chunk_stats s
			ON s.path = g.path AND s.row_group = g.row_group AND s.column_name = ?`
	args := []any{column}
	var conds []string
	appendBound := func(numExpr, textExpr string, v any) {
		if num, ok := statNumber(v); ok {
			conds = append(conds, fmt.Sprintf("(s.min_num IS NULL OR %s)", numExpr))
			args = append(args, num)
		} else if s, ok := v.(string); ok {
			conds = append(conds, fmt.Sprintf("(s.min_text IS NULL OR %s)", textExpr))
			args = append(args, s)
		}
	}
	if hi != nil {
		appendBound("s.min_num <= ?", "s.min_text <= ?", hi)
	}
	if lo != nil {
		appendBound("s.max_num >= ?", "s.max_text >= ?", lo)
	}
	for i, cond := range conds {
		if i == 0 {
			query += "\n\t\tWHERE " + cond
		} else {
			query += "\n\t\t\tAND " + cond
		}
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dataset: catalog query: %w", err)
	}
	defer rows.Close()

	var out []RowGroupRef
	for rows.Next() {
		var ref RowGroupRef
		if err := rows.Scan(&ref.Path, &ref.RowGroup); err != nil {
			return nil, fmt.Errorf("dataset: catalog scan: %w", err)
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dataset: catalog iterate: %w", err)
	}
	return out, nil
}

// Close closes the catalog database.
func (c *Catalog) Close() error { return c.db.Close() }

// splitStat projects typed min/max statistics into numeric and text columns.
func splitStat(stats codec.Stats) (minNum, maxNum any, minText, maxText any) {
	if n, ok := statNumber(stats.Min); ok {
		minNum = n
	} else if s, ok := stats.Min.(string); ok {
		minText = s
	}
	if n, ok := statNumber(stats.Max); ok {
		maxNum = n
	} else if s, ok := stats.Max.(string); ok {
		maxText = s
	}
	return
}

func statNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
