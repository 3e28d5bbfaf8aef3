package report

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/taotie111/browser-use/internal/explorer"
)

// Archive stores finished runs in SQLite so explorations of the same site
// can be compared over time.
type Archive struct {
	db *sql.DB
}

// RunSummary is one archived run.
type RunSummary struct {
	ID         string
	StartURL   string
	StartedAt  time.Time
	FinishedAt time.Time
	PageCount  int
}

// OpenArchive opens the archive database at path, creating the file and its
// directory when missing.
func OpenArchive(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	a := &Archive{db: db}
	if err := a.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the database handle.
func (a *Archive) Close() error { return a.db.Close() }

func (a *Archive) initSchema() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			start_url TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			page_count INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS pages (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			depth INTEGER NOT NULL,
			parent_url TEXT NOT NULL DEFAULT '',
			visited_at TEXT NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (run_id, url)
		)`,
		`CREATE TABLE IF NOT EXISTS edges (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			parent_url TEXT NOT NULL,
			child_url TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (run_id, parent_url, child_url)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := a.db.Exec(stmt); err != nil {
			return fmt.Errorf("init archive schema: %w", err)
		}
	}
	return nil
}

// SaveRun stores res under its run id, replacing any previous rows for the
// same id.
func (a *Archive) SaveRun(res *explorer.Result) error {
	if res.RunID == "" {
		return fmt.Errorf("archive run: empty run id")
	}

	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("archive run: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM pages WHERE run_id = ?`,
		`DELETE FROM edges WHERE run_id = ?`,
	} {
		if _, err := tx.Exec(stmt, res.RunID); err != nil {
			return fmt.Errorf("archive run: %w", err)
		}
	}

	_, err = tx.Exec(
		`INSERT OR REPLACE INTO runs (id, start_url, started_at, finished_at, page_count) VALUES (?, ?, ?, ?, ?)`,
		res.RunID, res.StartURL, formatTime(res.StartedAt), formatTime(res.FinishedAt), len(res.Pages),
	)
	if err != nil {
		return fmt.Errorf("archive run: %w", err)
	}

	for _, node := range res.OrderedPages() {
		data, err := json.Marshal(node)
		if err != nil {
			return fmt.Errorf("archive page %s: %w", node.URL, err)
		}
		_, err = tx.Exec(
			`INSERT INTO pages (run_id, url, title, depth, parent_url, visited_at, data) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			res.RunID, node.URL, node.Title, node.Depth, node.ParentURL, formatTime(node.Timestamp), string(data),
		)
		if err != nil {
			return fmt.Errorf("archive page %s: %w", node.URL, err)
		}
	}

	for parent, children := range res.Tree {
		for i, child := range children {
			_, err = tx.Exec(
				`INSERT INTO edges (run_id, parent_url, child_url, position) VALUES (?, ?, ?, ?)`,
				res.RunID, parent, child, i,
			)
			if err != nil {
				return fmt.Errorf("archive edge %s -> %s: %w", parent, child, err)
			}
		}
	}

	return tx.Commit()
}

// Runs lists archived runs, newest first.
func (a *Archive) Runs() ([]RunSummary, error) {
	rows, err := a.db.Query(`SELECT id, start_url, started_at, finished_at, page_count FROM runs ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var started, finished string
		if err := rows.Scan(&r.ID, &r.StartURL, &started, &finished, &r.PageCount); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LoadRun rebuilds a full result from the archive.
func (a *Archive) LoadRun(runID string) (*explorer.Result, error) {
	res := explorer.NewResult("", runID)

	var started, finished string
	err := a.db.QueryRow(`SELECT start_url, started_at, finished_at FROM runs WHERE id = ?`, runID).
		Scan(&res.StartURL, &started, &finished)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found in archive", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	res.StartedAt = parseTime(started)
	res.FinishedAt = parseTime(finished)

	pages, err := a.db.Query(`SELECT data FROM pages WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	defer pages.Close()
	for pages.Next() {
		var data string
		if err := pages.Scan(&data); err != nil {
			return nil, fmt.Errorf("load run %s: %w", runID, err)
		}
		var node explorer.PageNode
		if err := json.Unmarshal([]byte(data), &node); err != nil {
			return nil, fmt.Errorf("load run %s: %w", runID, err)
		}
		res.Pages[node.URL] = &node
	}
	if err := pages.Err(); err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	edges, err := a.db.Query(`SELECT parent_url, child_url FROM edges WHERE run_id = ? ORDER BY parent_url, position`, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	defer edges.Close()
	for edges.Next() {
		var parent, child string
		if err := edges.Scan(&parent, &child); err != nil {
			return nil, fmt.Errorf("load run %s: %w", runID, err)
		}
		res.Tree[parent] = append(res.Tree[parent], child)
	}
	return res, edges.Err()
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
