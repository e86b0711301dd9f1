package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/offlinefirst/motionreplay/pkg/store"
	"github.com/offlinefirst/motionreplay/pkg/timeline"
)

func openCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(context.Background(), filepath.Join(t.TempDir(), "db", "catalog.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func testSnapshot(t *testing.T) timeline.Snapshot {
	t.Helper()
	snap, err := timeline.NewSnapshot([]timeline.Event{
		timeline.KeyDown(0, timeline.Key{Code: 65, Label: "A"}),
		timeline.RelativeDelta(10*time.Millisecond, 4, 0, false),
		timeline.RelativeDelta(14*time.Millisecond, 2, 0, true),
		timeline.KeyUp(1500*time.Millisecond, timeline.Key{Code: 65, Label: "A"}),
	})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap
}

func TestUpsertGetAndPlays(t *testing.T) {
	ctx := context.Background()
	c := openCatalog(t)
	created := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	entry := EntryFor("/tmp/recordings/recording_20240601_100000.json", created, testSnapshot(t))

	if entry.Events != 4 || entry.Deltas != 2 || entry.Synthetic != 1 || entry.Keys != 1 || entry.Duration != 1500*time.Millisecond {
		t.Fatalf("unexpected summary %+v", entry)
	}
	if err := c.Upsert(ctx, entry); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	played := created.Add(time.Hour)
	if err := c.RecordPlay(ctx, entry.Name, played); err != nil {
		t.Fatalf("record play: %v", err)
	}
	if err := c.Upsert(ctx, entry); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := c.Get(ctx, entry.Name)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Plays != 1 || got.LastPlayedAt == nil || !got.LastPlayedAt.Equal(played) {
		t.Fatalf("play history lost on upsert: %+v", got)
	}
	if !got.CreatedAt.Equal(created) || got.Path != entry.Path {
		t.Fatalf("unexpected entry %+v", got)
	}

	if _, err := c.Get(ctx, "nope.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := c.RecordPlay(ctx, "nope.json", played); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown play, got %v", err)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	c := openCatalog(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.json", "b.json", "c.json"} {
		if err := c.Upsert(ctx, Entry{Name: name, Path: name, CreatedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	entries, err := c.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 || entries[0].Name != "c.json" || entries[2].Name != "a.json" {
		t.Fatalf("unexpected order %+v", entries)
	}
	if err := c.Remove(ctx, "b.json"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	entries, _ = c.List(ctx)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after remove, got %d", len(entries))
	}
}

func TestSyncReconcilesDirectory(t *testing.T) {
	ctx := context.Background()
	c := openCatalog(t)
	dir := t.TempDir()

	snap := testSnapshot(t)
	for _, name := range []string{"recording_20240101_000000.json", "recording_20240102_000000.json"} {
		if err := store.Save(filepath.Join(dir, name), snap); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "recording_20240103_000000.json"), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := c.Upsert(ctx, Entry{Name: "recording_19990101_000000.json", Path: "gone"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	res, err := c.Sync(ctx, dir)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Indexed != 2 || res.Removed != 1 || len(res.Failed) != 1 {
		t.Fatalf("unexpected sync result %+v", res)
	}
	entries, err := c.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 indexed entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Events != 4 {
			t.Fatalf("unexpected event count %+v", e)
		}
	}
}
