package dumpmodel

// Priority levels for the Task Queue (spec.md §4.6). The zero value is
// PriorityHigh.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
	numPriorities
)

// Encoding names how an encoding-unsafe column's value is framed in a data
// file, recorded in the file's preamble so the loader can invert it.
type Encoding string

const (
	EncodingNone   Encoding = ""
	EncodingHex    Encoding = "hex"
	EncodingBase64 Encoding = "base64"
)

// WriteResult reports the bytes a Writer operation produced, split into
// pre- and post-compression counts.
type WriteResult struct {
	BytesWritten int64 // post-compression, on-disk
	DataBytes    int64 // pre-compression
}

// RowWriter is the subset of internal/writer.Writer's contract a Task
// needs. Declaring it here (rather than importing internal/writer)
// keeps dumpmodel free of a dependency on the concrete Writer
// implementation, avoiding an import cycle since Writer itself takes
// ColumnMeta/Encoding values defined in this package.
type RowWriter interface {
	WritePreamble(cols []ColumnMeta, encodings []Encoding) (WriteResult, error)
	WriteRow(row []any) (WriteResult, error)
	WritePostamble() (WriteResult, error)
	Close() error
}

// IndexWriter is the subset of internal/writer.IndexWriter's contract a
// Task needs for the optional .idx sidecar.
type IndexWriter interface {
	RecordOffset(dataBytesSoFar int64) error
	Finalize(totalDataBytes int64) error
	Close() error
}

// Task is the closed sum type spec.md §3 describes: DumpSchemaDDL,
// DumpTableDDL, DumpViewDDL, ChunkTable, or DumpRange. The marker method
// is unexported so only this package's types satisfy Task.
type Task interface {
	Priority() Priority
	dumpTask()
}

// DumpSchemaDDLTask dumps one schema's CREATE SCHEMA DDL. The schema's
// events and routines are not included.
type DumpSchemaDDLTask struct {
	Schema string
}

func (DumpSchemaDDLTask) Priority() Priority { return PriorityHigh }
func (DumpSchemaDDLTask) dumpTask()           {}

// DumpTableDDLTask dumps one table's CREATE TABLE DDL.
type DumpTableDDLTask struct {
	Schema string
	Table  string
}

func (DumpTableDDLTask) Priority() Priority { return PriorityHigh }
func (DumpTableDDLTask) dumpTask()           {}

// DumpViewDDLTask dumps one view's two-statement DDL (placeholder + real view).
type DumpViewDDLTask struct {
	Schema string
	View   string
}

func (DumpViewDDLTask) Priority() Priority { return PriorityHigh }
func (DumpViewDDLTask) dumpTask()           {}

// ChunkTableTask asks a Worker to run the Chunker against one table and
// push a DumpRangeTask for each produced range.
type ChunkTableTask struct {
	Schema string
	Table  string
}

func (ChunkTableTask) Priority() Priority { return PriorityMedium }
func (ChunkTableTask) dumpTask()           {}

// DumpRangeTask owns exclusive write access to its Writer (and IndexWriter,
// when row-indexing is enabled) for the duration of its execution. No two
// Workers ever reference the same Writer instance.
type DumpRangeTask struct {
	Schema       string
	Table        string
	ChunkOrdinal int
	Last         bool // true for the final chunk of this table (tail marker)
	Range        Range
	IncludeNulls bool

	DestPath  string // final on-disk path (writer opens DestPath+".dumping")
	Writer    RowWriter
	IndexPath string      // "" disables the .idx sidecar
	Index     IndexWriter // nil when IndexPath == ""
}

func (DumpRangeTask) Priority() Priority { return PriorityLow }
func (DumpRangeTask) dumpTask()          {}
