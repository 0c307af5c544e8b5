package writer

import (
	"bufio"
	"encoding/binary"
	"os"
)

// indexCadenceBytes is how often a data-byte offset is appended to the
// .idx sidecar, per spec.md §4.1/§6.
const indexCadenceBytes = 1 << 20

// IndexFile is the .idx sidecar: a flat sequence of big-endian uint64
// cumulative data-byte offsets, one roughly every indexCadenceBytes, plus
// a final trailing entry equal to the total data-byte length.
type IndexFile struct {
	f            *os.File
	w            *bufio.Writer
	lastRecorded int64
	closed       bool
}

// OpenIndexFile creates path for writing, truncating any existing file.
func OpenIndexFile(path string) (*IndexFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &IndexFile{f: f, w: bufio.NewWriter(f)}, nil
}

// RecordOffset appends dataBytesSoFar if at least indexCadenceBytes have
// accumulated since the last recorded offset. Implements
// dumpmodel.IndexWriter.
func (ix *IndexFile) RecordOffset(dataBytesSoFar int64) error {
	if dataBytesSoFar-ix.lastRecorded < indexCadenceBytes {
		return nil
	}
	if err := ix.append(dataBytesSoFar); err != nil {
		return err
	}
	ix.lastRecorded = dataBytesSoFar
	return nil
}

// Finalize appends the trailing total-length entry. Implements
// dumpmodel.IndexWriter.
func (ix *IndexFile) Finalize(totalDataBytes int64) error {
	return ix.append(totalDataBytes)
}

func (ix *IndexFile) append(offset int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(offset))
	_, err := ix.w.Write(buf[:])
	return err
}

// Close flushes and closes the sidecar. Implements dumpmodel.IndexWriter.
func (ix *IndexFile) Close() error {
	if ix.closed {
		return nil
	}
	ix.closed = true
	if err := ix.w.Flush(); err != nil {
		ix.f.Close()
		return err
	}
	return ix.f.Close()
}
