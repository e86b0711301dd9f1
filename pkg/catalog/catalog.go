// Package catalog keeps a SQLite index of saved recordings with their
// statistics and play history.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/offlinefirst/motionreplay/pkg/store"
	"github.com/offlinefirst/motionreplay/pkg/timeline"
)

const schema = `
CREATE TABLE IF NOT EXISTS recordings (
	name           TEXT PRIMARY KEY,
	path           TEXT NOT NULL,
	created_at     INTEGER NOT NULL,
	events         INTEGER NOT NULL,
	deltas         INTEGER NOT NULL,
	synthetic      INTEGER NOT NULL,
	keys           INTEGER NOT NULL,
	duration_ms    INTEGER NOT NULL,
	plays          INTEGER NOT NULL DEFAULT 0,
	last_played_at INTEGER
)`

// Entry is one indexed recording.
type Entry struct {
	Name         string
	Path         string
	CreatedAt    time.Time
	Events       int
	Deltas       int
	Synthetic    int
	Keys         int
	Duration     time.Duration
	Plays        int
	LastPlayedAt *time.Time
}

// EntryFor summarises snap as a catalog entry for the file at path.
func EntryFor(path string, createdAt time.Time, snap timeline.Snapshot) Entry {
	e := Entry{
		Name:      filepath.Base(path),
		Path:      path,
		CreatedAt: createdAt.UTC(),
		Events:    snap.Len(),
		Duration:  snap.Duration(),
	}
	for i := 0; i < snap.Len(); i++ {
		ev := snap.Event(i)
		switch ev.Kind {
		case timeline.KindRelativeDelta:
			e.Deltas++
			if ev.Synthetic {
				e.Synthetic++
			}
		case timeline.KindKeyDown:
			e.Keys++
		}
	}
	return e
}

// Catalog is a handle on the index database.
type Catalog struct {
	db *sql.DB
}

// Open opens or creates the catalog at path. ":memory:" is accepted for tests.
func Open(ctx context.Context, path string) (*Catalog, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ensure catalog directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog ping failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close releases the database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Upsert inserts or refreshes an entry. Play history is preserved.
func (c *Catalog) Upsert(ctx context.Context, e Entry) error {
	const query = `
INSERT INTO recordings (name, path, created_at, events, deltas, synthetic, keys, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	path = excluded.path,
	created_at = excluded.created_at,
	events = excluded.events,
	deltas = excluded.deltas,
	synthetic = excluded.synthetic,
	keys = excluded.keys,
	duration_ms = excluded.duration_ms`
	_, err := c.db.ExecContext(ctx, query,
		e.Name, e.Path, e.CreatedAt.UnixMilli(),
		e.Events, e.Deltas, e.Synthetic, e.Keys, e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", e.Name, err)
	}
	return nil
}

// Get returns the entry for name.
func (c *Catalog) Get(ctx context.Context, name string) (Entry, error) {
	row := c.db.QueryRowContext(ctx, selectColumns+` WHERE name = ?`, name)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get %s: %w", name, err)
	}
	return e, nil
}

// List returns all entries, newest first.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC, name DESC`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

// RecordPlay bumps the play counter of name.
func (c *Catalog) RecordPlay(ctx context.Context, name string, at time.Time) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE recordings SET plays = plays + 1, last_played_at = ? WHERE name = ?`,
		at.UTC().UnixMilli(), name)
	if err != nil {
		return fmt.Errorf("record play %s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// Remove deletes the entry for name.
func (c *Catalog) Remove(ctx context.Context, name string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM recordings WHERE name = ?`, name); err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// SyncResult reports what a Sync changed.
type SyncResult struct {
	Indexed int
	Removed int
	Failed  []string
}

// Sync reconciles the catalog with the recordings in dir: files are
// (re)indexed and entries whose file has disappeared are removed. Files that
// fail to load are reported but do not stop the sync.
func (c *Catalog) Sync(ctx context.Context, dir string) (SyncResult, error) {
	var res SyncResult
	files, err := store.List(dir)
	if err != nil {
		return res, err
	}
	present := make(map[string]struct{}, len(files))
	for _, f := range files {
		present[f.Name] = struct{}{}
		snap, err := store.Load(f.Path)
		if err != nil {
			res.Failed = append(res.Failed, f.Name)
			continue
		}
		if err := c.Upsert(ctx, EntryFor(f.Path, f.ModifiedAt, snap)); err != nil {
			return res, err
		}
		res.Indexed++
	}

	entries, err := c.List(ctx)
	if err != nil {
		return res, err
	}
	for _, e := range entries {
		if _, ok := present[e.Name]; ok {
			continue
		}
		if err := c.Remove(ctx, e.Name); err != nil {
			return res, err
		}
		res.Removed++
	}
	return res, nil
}

const selectColumns = `SELECT name, path, created_at, events, deltas, synthetic, keys, duration_ms, plays, last_played_at FROM recordings`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e          Entry
		createdAt  int64
		durationMS int64
		lastPlayed sql.NullInt64
	)
	if err := s.Scan(&e.Name, &e.Path, &createdAt, &e.Events, &e.Deltas, &e.Synthetic, &e.Keys, &durationMS, &e.Plays, &lastPlayed); err != nil {
		return Entry{}, err
	}
	e.CreatedAt = time.UnixMilli(createdAt).UTC()
	e.Duration = time.Duration(durationMS) * time.Millisecond
	if lastPlayed.Valid {
		t := time.UnixMilli(lastPlayed.Int64).UTC()
		e.LastPlayedAt = &t
	}
	return e, nil
}
