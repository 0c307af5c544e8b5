package worker

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/nethalo/dbdump/internal/dumpmodel"
	"github.com/nethalo/dbdump/internal/writer"
)

// runDumpRange streams one key range of one table to its data file: build
// the SELECT, open the Writer (and optional .idx sidecar), scan rows into
// it, reporting progress and throttling every progressCadenceRows rows,
// then finalize both files and record the chunk's bytes (spec.md §4.5,
// §6.7).
func (w *Worker) runDumpRange(ctx context.Context, t dumpmodel.DumpRangeTask) error {
	si, ok := w.Cache.Schemas[t.Schema]
	if !ok {
		return fmt.Errorf("worker: schema %s not in cache", t.Schema)
	}
	ti, ok := si.Tables[t.Table]
	if !ok {
		return fmt.Errorf("worker: table %s.%s not in cache", t.Schema, t.Table)
	}

	var indexCols []string
	if ti.Index != nil {
		indexCols = ti.Index.Columns
	}
	query, _ := buildSelect(t.Schema, t.Table, ti.Columns, indexCols, t.Range, t.IncludeNulls, w.Opts.JobID, t.ChunkOrdinal)

	wr, err := writer.Open(filepath.Dir(t.DestPath), filepath.Base(t.DestPath), w.Opts.Compression, w.Opts.Dialect)
	if err != nil {
		return fmt.Errorf("worker: open writer for %s.%s chunk %d: %w", t.Schema, t.Table, t.ChunkOrdinal, err)
	}
	defer wr.Close()

	// Values arrive already hex/base64-encoded by the SELECT itself
	// (buildSelect wraps encoding-unsafe columns in HEX()/TO_BASE64()), so
	// the Writer must not re-encode them; it only needs the column count.
	if _, err := wr.WritePreamble(ti.Columns, make([]dumpmodel.Encoding, len(ti.Columns))); err != nil {
		return fmt.Errorf("worker: write preamble %s.%s chunk %d: %w", t.Schema, t.Table, t.ChunkOrdinal, err)
	}

	var idx *writer.IndexFile
	if t.IndexPath != "" {
		idx, err = writer.OpenIndexFile(t.IndexPath)
		if err != nil {
			return fmt.Errorf("worker: open index %s: %w", t.IndexPath, err)
		}
		defer idx.Close()
	}

	rows, err := w.Conn.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("worker: query %s.%s chunk %d: %w", t.Schema, t.Table, t.ChunkOrdinal, err)
	}
	defer rows.Close()

	dest := make([]any, len(ti.Columns))
	ptrs := make([]any, len(ti.Columns))
	for i := range dest {
		ptrs[i] = &dest[i]
	}

	var rowCount, lastReportRows, lastDataBytes, lastBytesWritten int64
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("worker: scan %s.%s chunk %d row %d: %w", t.Schema, t.Table, t.ChunkOrdinal, rowCount, err)
		}
		row := make([]any, len(dest))
		copy(row, dest)

		res, err := wr.WriteRow(row)
		if err != nil {
			return fmt.Errorf("worker: write row %s.%s chunk %d row %d: %w", t.Schema, t.Table, t.ChunkOrdinal, rowCount, err)
		}
		rowCount++
		if idx != nil {
			if err := idx.RecordOffset(res.DataBytes); err != nil {
				return fmt.Errorf("worker: record index offset %s.%s chunk %d: %w", t.Schema, t.Table, t.ChunkOrdinal, err)
			}
		}

		if rowCount-lastReportRows >= progressCadenceRows {
			w.reportProgress(ctx, t, rowCount-lastReportRows, res.DataBytes-lastDataBytes, res.BytesWritten-lastBytesWritten)
			lastReportRows, lastDataBytes, lastBytesWritten = rowCount, res.DataBytes, res.BytesWritten
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("worker: iterate %s.%s chunk %d: %w", t.Schema, t.Table, t.ChunkOrdinal, err)
	}

	post, err := wr.WritePostamble()
	if err != nil {
		return fmt.Errorf("worker: postamble %s.%s chunk %d: %w", t.Schema, t.Table, t.ChunkOrdinal, err)
	}
	if rowCount-lastReportRows > 0 {
		w.reportProgress(ctx, t, rowCount-lastReportRows, post.DataBytes-lastDataBytes, post.BytesWritten-lastBytesWritten)
	}
	if idx != nil {
		if err := idx.Finalize(post.DataBytes); err != nil {
			return fmt.Errorf("worker: finalize index %s: %w", t.IndexPath, err)
		}
	}
	if err := wr.Close(); err != nil {
		return fmt.Errorf("worker: close writer %s.%s chunk %d: %w", t.Schema, t.Table, t.ChunkOrdinal, err)
	}

	w.Accumulator.RecordChunk(t.Schema, t.Table, post.BytesWritten, post.DataBytes)
	return nil
}

func (w *Worker) reportProgress(ctx context.Context, t dumpmodel.DumpRangeTask, rows, dataBytes, bytesWritten int64) {
	w.Progress.Update(t.Schema, t.Table, rows, dataBytes, bytesWritten)
	if w.Limiter != nil && bytesWritten > 0 {
		if err := w.Limiter.ReportBytes(ctx, int(bytesWritten)); err != nil {
			w.Logger.Warnf("worker %d: rate limiter: %v", w.ID, err)
		}
	}
}
