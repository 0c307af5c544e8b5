// Package manifest emits the JSON descriptor files a loader needs to
// reconstruct a dump: the job-start descriptor (@.json), the completion
// marker (@.done.json), and per-schema/per-table descriptors. Every type
// here is a plain encoding/json struct, matching the teacher's
// internal/output/json.go stdlib-only approach — no schema-driven
// serialization library is introduced.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nethalo/dbdump/internal/dumpmodel"
)

const dumperIdentity = "dbdump"

// StartManifest is @.json: written when the Coordinator enters Dumping,
// before any task is queued and so before any data file exists.
type StartManifest struct {
	Dumper        string              `json:"dumper"`
	Version       string              `json:"version"`
	StartedAt     time.Time           `json:"startedAt"`
	Schemas       []string            `json:"schemas"`
	SchemaBasenames map[string]string `json:"schemaBasenames"`
	Users         []string            `json:"users,omitempty"`
	DefaultCharset string             `json:"defaultCharset"`
	UTCTimeZone   bool                `json:"utcTimeZone"`
	BytesPerChunk int64               `json:"bytesPerChunk"`
	ServerUser    string              `json:"serverUser"`
	ServerHost    string              `json:"serverHost"`
	ServerVersion string              `json:"serverVersion"`
	GTIDExecuted  string              `json:"gtidExecuted,omitempty"`
	GTIDExecutedInconsistent bool     `json:"gtidExecutedInconsistent"`
	Consistent    bool                `json:"consistent"`
	Compatibility bool                `json:"compatibility"`
}

// DoneManifest is @.done.json, written only after every Worker has
// joined successfully. Its absence is the torn-dump signal (spec.md §7).
type DoneManifest struct {
	FinishedAt   time.Time                `json:"finishedAt"`
	DataBytes    int64                    `json:"dataBytes"`
	BytesWritten int64                    `json:"bytesWritten"`
	Schemas      map[string]SchemaBytes   `json:"schemas"`
}

// SchemaBytes is one schema's per-table byte breakdown in @.done.json.
type SchemaBytes struct {
	Tables map[string]TableBytes `json:"tables"`
}

// TableBytes is one table's byte totals in @.done.json.
type TableBytes struct {
	DataBytes    int64 `json:"dataBytes"`
	BytesWritten int64 `json:"bytesWritten"`
}

// SchemaDescriptor is <schemaBasename>.json.
type SchemaDescriptor struct {
	IncludesDDL  bool              `json:"includesDdl"`
	IncludesData bool              `json:"includesData"`
	IncludesViews bool             `json:"includesViews"`
	Tables       []string          `json:"tables"`
	Views        []string          `json:"views,omitempty"`
	Events       []string          `json:"events,omitempty"`
	Routines     []string          `json:"routines,omitempty"`
	Basenames    map[string]string `json:"basenames"`
}

// TableDescriptor is <tableBasename>@.json: the per-table descriptor the
// loader consumes to reconstruct column order, encoding, and chunking.
type TableDescriptor struct {
	Schema          string            `json:"schema"`
	Table           string            `json:"table"`
	Columns         []string          `json:"columns"`
	DecodeColumns   map[string]string `json:"decodeColumns,omitempty"` // column -> "hex"|"base64"
	PrimaryIndex    []string          `json:"primaryIndex,omitempty"`
	Compression     string            `json:"compression"`
	Charset         string            `json:"charset"`
	Dialect         string            `json:"dialect"`
	Extension       string            `json:"extension"`
	Triggers        []string          `json:"triggers,omitempty"`
	IncludesData    bool              `json:"includesData"`
	IncludesDDL     bool              `json:"includesDdl"`
	Chunking        bool              `json:"chunking"`
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("manifest: create %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("manifest: encode %s: %w", path, err)
	}
	return nil
}

// WriteStart writes @.json into dir.
func WriteStart(dir string, m StartManifest) error {
	return writeJSON(filepath.Join(dir, "@.json"), m)
}

// WriteDone writes @.done.json into dir.
func WriteDone(dir string, m DoneManifest) error {
	return writeJSON(filepath.Join(dir, "@.done.json"), m)
}

// WriteSchema writes <schemaBasename>.json into dir.
func WriteSchema(dir, schemaBasename string, d SchemaDescriptor) error {
	return writeJSON(filepath.Join(dir, schemaBasename+".json"), d)
}

// WriteTable writes <tableBasename>@.json into dir.
func WriteTable(dir, tableBasename string, d TableDescriptor) error {
	return writeJSON(filepath.Join(dir, tableBasename+"@.json"), d)
}

// TableDecodeColumns builds the column->encoding map a TableDescriptor
// carries for encoding-unsafe columns.
func TableDecodeColumns(cols []dumpmodel.ColumnMeta, encodings []dumpmodel.Encoding) map[string]string {
	out := make(map[string]string)
	for i, c := range cols {
		if i >= len(encodings) {
			break
		}
		if encodings[i] != dumpmodel.EncodingNone {
			out[c.Name] = string(encodings[i])
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
