package export

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/offlinefirst/motionreplay/pkg/store"
)

// Document is the YAML layout: a summary header followed by the records.
type Document struct {
	Name       string         `yaml:"name"`
	Events     int            `yaml:"events"`
	DurationMS int64          `yaml:"duration_ms"`
	Counts     map[string]int `yaml:"counts"`
	Records    []store.Record `yaml:"records"`
}

// YAMLExporter exports recordings in YAML format
type YAMLExporter struct{}

// Export exports a recording to YAML format
func (e *YAMLExporter) Export(rec Recording, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()

	return enc.Encode(NewDocument(rec))
}

// Extension returns the file extension for this format
func (e *YAMLExporter) Extension() string {
	return "yaml"
}

// NewDocument builds the YAML document for rec.
func NewDocument(rec Recording) Document {
	counts := make(map[string]int)
	for kind, n := range rec.Snapshot.Counts() {
		counts[string(kind)] = n
	}
	return Document{
		Name:       rec.Name,
		Events:     rec.Snapshot.Len(),
		DurationMS: rec.Snapshot.Duration().Milliseconds(),
		Counts:     counts,
		Records:    store.Encode(rec.Snapshot.Events()),
	}
}
