// Package store persists recordings as JSON arrays of typed records and
// manages the recordings directory.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/offlinefirst/motionreplay/pkg/timeline"
)

const (
	// NamePrefix and NameSuffix bracket every recording file name.
	NamePrefix = "recording_"
	NameSuffix = ".json"

	nameLayout = "20060102_150405"
)

// Entry describes a recording file on disk.
type Entry struct {
	Name       string
	Path       string
	Size       int64
	ModifiedAt time.Time
}

// Save writes snap to path as indented JSON. The file is written to a
// temporary sibling and renamed into place so a crash never leaves a
// truncated recording behind.
func Save(path string, snap timeline.Snapshot) error {
	if strings.TrimSpace(path) == "" {
		return &Error{Op: "write", Path: path, Err: errors.New("path must not be empty")}
	}
	data, err := json.MarshalIndent(Encode(snap.Events()), "", "  ")
	if err != nil {
		return &Error{Op: "write", Path: path, Err: fmt.Errorf("marshal records: %w", err)}
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &Error{Op: "write", Path: path, Err: fmt.Errorf("ensure directory: %w", err)}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return &Error{Op: "write", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return &Error{Op: "write", Path: path, Err: err}
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &Error{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &Error{Op: "write", Path: path, Err: err}
	}
	return nil
}

// Load reads and validates a recording. Nothing is returned unless the whole
// file decodes into a well-ordered timeline.
func Load(path string) (timeline.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return timeline.Snapshot{}, &Error{Op: "read", Path: path, Err: err}
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return timeline.Snapshot{}, &Error{Op: "decode", Path: path, Err: err}
	}
	events, err := Decode(records)
	if err != nil {
		return timeline.Snapshot{}, &Error{Op: "decode", Path: path, Err: err}
	}
	snap, err := timeline.NewSnapshot(events)
	if err != nil {
		return timeline.Snapshot{}, &Error{Op: "decode", Path: path, Err: err}
	}
	return snap, nil
}

// ResolveName chooses a recording file name derived from now and avoids
// collisions with existing files in dir.
func ResolveName(dir string, now time.Time) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("recordings directory must not be empty")
	}

	base := NamePrefix + now.Format(nameLayout)
	candidate := base + NameSuffix
	suffix := 1
	for {
		_, err := os.Stat(filepath.Join(dir, candidate))
		if err == nil {
			candidate = fmt.Sprintf("%s_%02d%s", base, suffix, NameSuffix)
			suffix++
			continue
		}
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		return "", fmt.Errorf("inspect recordings directory: %w", err)
	}
}

// IsRecordingName reports whether name follows the recording naming scheme.
func IsRecordingName(name string) bool {
	return strings.HasPrefix(name, NamePrefix) && strings.HasSuffix(name, NameSuffix)
}

// List returns the recordings in dir ordered by name, which is also
// chronological. A missing directory yields an empty list.
func List(dir string) ([]Entry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &Error{Op: "list", Path: dir, Err: err}
	}
	var out []Entry
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsRecordingName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, &Error{Op: "list", Path: dir, Err: err}
		}
		out = append(out, Entry{
			Name:       entry.Name(),
			Path:       filepath.Join(dir, entry.Name()),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Latest returns the most recent recording in dir.
func Latest(dir string) (Entry, error) {
	entries, err := List(dir)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, fmt.Errorf("%w in %s", ErrNoRecordings, dir)
	}
	return entries[len(entries)-1], nil
}
