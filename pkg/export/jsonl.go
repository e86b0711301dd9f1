package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/offlinefirst/motionreplay/pkg/store"
)

// JSONLExporter exports recordings in JSONL format (one record per line)
type JSONLExporter struct{}

// Export exports a recording to JSONL format
func (e *JSONLExporter) Export(rec Recording, w io.Writer) error {
	enc := json.NewEncoder(w)
	for i, r := range store.Encode(rec.Snapshot.Events()) {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode record %d: %w", i, err)
		}
	}
	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
