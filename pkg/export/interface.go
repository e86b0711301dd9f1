// Package export renders recordings in formats meant for inspection and
// external tooling.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/offlinefirst/motionreplay/pkg/timeline"
)

// Recording is a named snapshot handed to an exporter.
type Recording struct {
	Name     string
	Snapshot timeline.Snapshot
}

// Exporter defines the interface for all export formats
type Exporter interface {
	Export(rec Recording, w io.Writer) error
	Extension() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "jsonl":
		return &JSONLExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: jsonl, yaml, json)", format)
	}
}

// Error represents errors during export
type Error struct {
	Format string
	Path   string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ToFile exports rec into dir using the exporter's extension and returns the
// written path.
func ToFile(exp Exporter, rec Recording, dir string) (string, error) {
	base := rec.Name
	if ext := filepath.Ext(base); ext != "" {
		base = base[:len(base)-len(ext)]
	}
	path := filepath.Join(dir, base+"."+exp.Extension())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &Error{Format: exp.Extension(), Path: path, Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return "", &Error{Format: exp.Extension(), Path: path, Err: err}
	}
	if err := exp.Export(rec, f); err != nil {
		f.Close()
		return "", &Error{Format: exp.Extension(), Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return "", &Error{Format: exp.Extension(), Path: path, Err: err}
	}
	return path, nil
}
