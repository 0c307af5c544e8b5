// Package writer streams dumped rows to compressed, dialect-framed,
// indexed output files, and implements the .dumping-marker /
// atomic-rename lifecycle spec.md §3 and §6 describe.
package writer

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/nethalo/dbdump/internal/dumperrors"
	"github.com/nethalo/dbdump/internal/dumpmodel"
)

// countingWriter tallies bytes written through it without altering them.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Writer streams one data file: framer -> data counter -> compressor ->
// on-disk counter -> *os.File. It implements dumpmodel.RowWriter.
type Writer struct {
	dialectExt  string
	compression dumpmodel.Compression

	f          *os.File
	dumpingPat string
	finalPath  string

	onDisk  *countingWriter // after compression, counts bytes hitting the file
	dataCtr *countingWriter // before compression, counts uncompressed bytes
	compW   io.WriteCloser  // nil when compression is none
	fr      framer

	encodings []dumpmodel.Encoding
	closed    bool
}

// Open creates dir/filename+".dumping" for writing and prepares the
// configured compression codec. The caller is responsible for computing
// filename via ChunkFilename/layout helpers.
func Open(dir, filename string, compression dumpmodel.Compression, dialect dumpmodel.Dialect) (*Writer, error) {
	fr, err := newFramer(dialect)
	if err != nil {
		return nil, err
	}
	dumpingPath := DumpingPath(dir, filename)
	f, err := os.Create(dumpingPath)
	if err != nil {
		return nil, fmt.Errorf("writer: open %s: %w: %w", dumpingPath, dumperrors.ErrWriter, err)
	}

	w := &Writer{
		dialectExt:  fr.extension(),
		compression: compression,
		f:           f,
		dumpingPat:  dumpingPath,
		finalPath:   FinalPath(dir, filename),
		fr:          fr,
	}
	w.onDisk = &countingWriter{w: f}

	var sink io.Writer = w.onDisk
	switch compression {
	case dumpmodel.CompressionGzip:
		gw := gzip.NewWriter(w.onDisk)
		w.compW = gw
		sink = gw
	case dumpmodel.CompressionZstd:
		zw, err := zstd.NewWriter(w.onDisk)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("writer: zstd init: %w: %w", dumperrors.ErrWriter, err)
		}
		w.compW = zw
		sink = zw
	case dumpmodel.CompressionSnappy:
		sw := snappy.NewBufferedWriter(w.onDisk)
		w.compW = sw
		sink = sw
	case dumpmodel.CompressionNone:
	default:
		f.Close()
		return nil, fmt.Errorf("writer: unknown compression %q", compression)
	}
	w.dataCtr = &countingWriter{w: sink}
	return w, nil
}

// Output returns the underlying file. Its Name() is the .dumping path,
// also after Close has renamed the file to its final name.
func (w *Writer) Output() *os.File { return w.f }

// WritePreamble records the columns' encodings and writes any
// dialect-specific header (currently none of the four dialects need one;
// the preamble's job is bookkeeping the per-column Encoding choice used
// by WriteRow).
func (w *Writer) WritePreamble(cols []dumpmodel.ColumnMeta, encodings []dumpmodel.Encoding) (dumpmodel.WriteResult, error) {
	if len(encodings) != len(cols) {
		return dumpmodel.WriteResult{}, fmt.Errorf("writer: %d columns but %d encodings", len(cols), len(encodings))
	}
	w.encodings = encodings
	return w.result(), nil
}

// WriteRow encodes and frames one row and writes it to the sink.
func (w *Writer) WriteRow(row []any) (dumpmodel.WriteResult, error) {
	if len(row) != len(w.encodings) {
		return dumpmodel.WriteResult{}, fmt.Errorf("writer: row has %d values, expected %d", len(row), len(w.encodings))
	}
	fields := make([]string, len(row))
	for i, v := range row {
		fields[i] = w.fr.formatValue(encodeValue(v, w.encodings[i]))
	}
	line := w.fr.formatRow(fields)
	if _, err := w.dataCtr.Write([]byte(line)); err != nil {
		return dumpmodel.WriteResult{}, fmt.Errorf("writer: write row: %w: %w", dumperrors.ErrWriter, err)
	}
	return w.result(), nil
}

// WritePostamble flushes the compressor, if any.
func (w *Writer) WritePostamble() (dumpmodel.WriteResult, error) {
	if w.compW != nil {
		if err := w.compW.Close(); err != nil {
			return dumpmodel.WriteResult{}, fmt.Errorf("writer: flush compressor: %w: %w", dumperrors.ErrWriter, err)
		}
		w.compW = nil
	}
	return w.result(), nil
}

func (w *Writer) result() dumpmodel.WriteResult {
	return dumpmodel.WriteResult{BytesWritten: w.onDisk.n, DataBytes: w.dataCtr.n}
}

// Close is idempotent. It closes the compressor and the file and, when
// both close cleanly, renames the .dumping file to its final name; when
// either fails, the .dumping file stays in place (spec.md §3's torn-dump
// signal). Close does not track earlier WriteRow/WritePostamble errors: a
// clean Close after one of them still renames the file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	var compErr error
	if w.compW != nil {
		compErr = w.compW.Close()
	}
	closeErr := w.f.Close()
	if compErr != nil {
		return fmt.Errorf("writer: close compressor: %w: %w", dumperrors.ErrWriter, compErr)
	}
	if closeErr != nil {
		return fmt.Errorf("writer: close %s: %w: %w", w.dumpingPat, dumperrors.ErrWriter, closeErr)
	}
	if err := os.Rename(w.dumpingPat, w.finalPath); err != nil {
		return fmt.Errorf("writer: finalize rename %s -> %s: %w: %w", w.dumpingPat, w.finalPath, dumperrors.ErrWriter, err)
	}
	return nil
}
