package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/offlinefirst/motionreplay/pkg/store"
	"github.com/offlinefirst/motionreplay/pkg/timeline"
)

func testRecording(t *testing.T) Recording {
	t.Helper()
	snap, err := timeline.NewSnapshot([]timeline.Event{
		timeline.ButtonDown(0, timeline.ButtonRight, 5, 5),
		timeline.RelativeDelta(10*time.Millisecond, 7, -1, false),
		timeline.RelativeDelta(14*time.Millisecond, 3.85, 0, true),
		timeline.ButtonUp(250*time.Millisecond, timeline.ButtonRight, 5, 5),
	})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return Recording{Name: "recording_20240101_000000.json", Snapshot: snap}
}

func TestNewExporter(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		wantExt string
		wantErr bool
	}{
		{name: "jsonl format", format: "jsonl", wantExt: "jsonl"},
		{name: "yaml format", format: "yaml", wantExt: "yaml"},
		{name: "yml alias", format: "yml", wantExt: "yaml"},
		{name: "json format", format: "json", wantExt: "json"},
		{name: "unsupported format", format: "xml", wantErr: true},
		{name: "empty format", format: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp, err := NewExporter(tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewExporter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if exp.Extension() != tt.wantExt {
				t.Fatalf("Extension() = %s, want %s", exp.Extension(), tt.wantExt)
			}
		})
	}
}

func TestJSONLExporterWritesOneRecordPerLine(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONLExporter{}).Export(testRecording(t), &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	scanner := bufio.NewScanner(&buf)
	var records []store.Record
	for scanner.Scan() {
		var r store.Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		records = append(records, r)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(records))
	}
	if records[2].Type != "mouse_delta" || records[2].Synthetic == nil || !*records[2].Synthetic {
		t.Fatalf("synthetic flag lost: %+v", records[2])
	}
}

func TestYAMLExporterIncludesSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := (&YAMLExporter{}).Export(testRecording(t), &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	var doc Document
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if doc.Events != 4 || doc.DurationMS != 250 || doc.Counts["mouse_delta"] != 2 {
		t.Fatalf("unexpected summary %+v", doc)
	}
	events, err := store.Decode(doc.Records)
	if err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if events[2].DX != 3.85 || !events[2].Synthetic {
		t.Fatalf("unexpected event %+v", events[2])
	}
	if strings.Contains(buf.String(), "null") {
		t.Fatalf("absent fields should be omitted:\n%s", buf.String())
	}
}

func TestJSONExportLoadsBack(t *testing.T) {
	rec := testRecording(t)
	exp := &JSONExporter{}
	path, err := ToFile(exp, rec, filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatalf("to file: %v", err)
	}
	if filepath.Base(path) != "recording_20240101_000000.json" {
		t.Fatalf("unexpected export path %s", path)
	}
	snap, err := store.Load(path)
	if err != nil {
		t.Fatalf("load export: %v", err)
	}
	if snap.Len() != rec.Snapshot.Len() {
		t.Fatalf("expected %d events, got %d", rec.Snapshot.Len(), snap.Len())
	}
}

func TestToFileWrapsErrors(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := ToFile(&JSONLExporter{}, testRecording(t), filepath.Join(blocker, "sub"))
	var exportErr *Error
	if !errors.As(err, &exportErr) || exportErr.Format != "jsonl" {
		t.Fatalf("expected export error, got %v", err)
	}
}
