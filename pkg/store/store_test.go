package store

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/offlinefirst/motionreplay/pkg/timeline"
)

func sampleEvents() []timeline.Event {
	return []timeline.Event{
		timeline.KeyDown(0, timeline.Key{Code: 65, Label: "A"}),
		timeline.KeyUp(200*time.Millisecond, timeline.Key{Code: 65, Label: "A"}),
		timeline.AbsoluteMove(250*time.Millisecond, 640, 360, -3, 7),
		timeline.ButtonDown(500*time.Millisecond, timeline.ButtonRight, 640, 360),
		timeline.RelativeDelta(510*time.Millisecond, 7, 0, false),
		timeline.RelativeDelta(520*time.Millisecond, 2.8000000000000003, -0.1, false),
		timeline.RelativeDelta(534*time.Millisecond, 1.54, 0, true),
		timeline.ButtonUp(600*time.Millisecond, timeline.ButtonRight, 640, 360),
		timeline.Scroll(700*time.Millisecond, 10, 20, 0, -2),
		timeline.ButtonDown(750*time.Millisecond+123, timeline.ButtonMiddle, 0, 0),
		timeline.KeyDown(time.Second, timeline.Key{Code: 0x20}),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	events := sampleEvents()
	snap, err := timeline.NewSnapshot(events)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	path := filepath.Join(t.TempDir(), "nested", "recording_20240101_120000.json")
	if err := Save(path, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(loaded.Events(), events) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", events, loaded.Events())
	}

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("temporary files left behind: %v", leftovers)
	}
}

func TestLoadAcceptsLegacyRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json")
	legacy := `[
  {"time": 0.0, "type": "mouse_press", "x": 1, "y": 2, "button": "left"},
  {"time": 0.25, "type": "mouse_delta", "deltaX": 3.5, "deltaY": 0, "isRaw": true},
  {"time": 0.5, "type": "key_press", "key": "W"},
  {"time": 0.75, "type": "mouse_move", "x": 9, "y": 9}
]`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	snap, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Len() != 4 {
		t.Fatalf("expected 4 events, got %d", snap.Len())
	}
	if e := snap.Event(1); e.Synthetic || e.DX != 3.5 {
		t.Fatalf("unexpected delta %+v", e)
	}
	if e := snap.Event(2); e.Key.Code != 0 || e.Key.Label != "W" {
		t.Fatalf("unexpected key %+v", e)
	}
}

func TestLoadFailures(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]struct {
		body string
		want error
	}{
		"bad json":      {body: `{"time":`, want: nil},
		"unknown type":  {body: `[{"time":0,"type":"teleport"}]`, want: ErrMalformedRecord},
		"missing field": {body: `[{"time":0,"type":"mouse_press","x":1,"y":1}]`, want: ErrMalformedRecord},
		"out of order":  {body: `[{"time":1,"type":"key_press","key":"A"},{"time":0.5,"type":"key_release","key":"A"}]`, want: timeline.ErrOutOfOrder},
		"bad button":    {body: `[{"time":0,"type":"mouse_press","x":1,"y":1,"button":"thumb"}]`, want: timeline.ErrInvalidEvent},
	}
	for name, tc := range cases {
		path := filepath.Join(dir, name+".json")
		if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		_, err := Load(path)
		var storeErr *Error
		if !errors.As(err, &storeErr) {
			t.Fatalf("%s: expected *Error, got %v", name, err)
		}
		if storeErr.Op != "decode" || storeErr.Path != path {
			t.Fatalf("%s: unexpected error fields %+v", name, storeErr)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", name, tc.want, err)
		}
	}

	_, err := Load(filepath.Join(dir, "missing.json"))
	var storeErr *Error
	if !errors.As(err, &storeErr) || storeErr.Op != "read" || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected read error wrapping ErrNotExist, got %v", err)
	}
}

func TestResolveNameAvoidsCollisions(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 12, 9, 30, 0, 0, time.Local)

	first, err := ResolveName(dir, now)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if first != "recording_20240512_093000.json" {
		t.Fatalf("unexpected name %s", first)
	}
	if err := os.WriteFile(filepath.Join(dir, first), []byte("[]"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	second, err := ResolveName(dir, now)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if second != "recording_20240512_093000_01.json" {
		t.Fatalf("unexpected collision name %s", second)
	}
	if _, err := ResolveName(" ", now); err == nil {
		t.Fatalf("expected error for empty directory")
	}
}

func TestListAndLatest(t *testing.T) {
	dir := t.TempDir()
	if entries, err := List(filepath.Join(dir, "absent")); err != nil || len(entries) != 0 {
		t.Fatalf("missing directory should list empty, got %v %v", entries, err)
	}
	if _, err := Latest(dir); !errors.Is(err, ErrNoRecordings) {
		t.Fatalf("expected ErrNoRecordings, got %v", err)
	}

	names := []string{
		"recording_20240101_120000.json",
		"recording_20240101_120000_01.json",
		"recording_20231231_235959.json",
		"notes.txt",
		"recording_draft.yaml",
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "recording_dir.json"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	entries, err := List(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{
		"recording_20231231_235959.json",
		"recording_20240101_120000.json",
		"recording_20240101_120000_01.json",
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), entries)
	}
	for i, e := range entries {
		if e.Name != want[i] || e.Path != filepath.Join(dir, want[i]) || e.Size != 2 {
			t.Fatalf("entry %d unexpected %+v", i, e)
		}
	}
	latest, err := Latest(dir)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Name != "recording_20240101_120000_01.json" {
		t.Fatalf("unexpected latest %s", latest.Name)
	}
}

func TestSaveRejectsEmptyPath(t *testing.T) {
	var storeErr *Error
	if err := Save("", timeline.Snapshot{}); !errors.As(err, &storeErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
}
