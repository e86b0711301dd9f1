package export

import (
	"encoding/json"
	"io"

	"github.com/offlinefirst/motionreplay/pkg/store"
)

// JSONExporter exports recordings in the same array format the recorder
// saves, so an export can be loaded back for playback.
type JSONExporter struct{}

// Export exports a recording to indented JSON
func (e *JSONExporter) Export(rec Recording, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(store.Encode(rec.Snapshot.Events()))
}

// Extension returns the file extension for this format
func (e *JSONExporter) Extension() string {
	return "json"
}
