package worker

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/nethalo/dbdump/internal/chunker"
	"github.com/nethalo/dbdump/internal/dumpmodel"
	"github.com/nethalo/dbdump/internal/manifest"
	"github.com/nethalo/dbdump/internal/writer"
)

// runChunkTable discovers table's disjoint key ranges and pushes one
// Low-priority DumpRangeTask per range, then tells the Coordinator
// chunking for this table is done so it can track when every table has
// finished producing range work (spec.md §4.5, §6.8).
func (w *Worker) runChunkTable(ctx context.Context, t dumpmodel.ChunkTableTask) error {
	si, ok := w.Cache.Schemas[t.Schema]
	if !ok {
		return fmt.Errorf("worker: schema %s not in cache", t.Schema)
	}
	ti, ok := si.Tables[t.Table]
	if !ok {
		return fmt.Errorf("worker: table %s.%s not in cache", t.Schema, t.Table)
	}

	ranges, err := chunker.ChunkTable(ctx, w.Conn, t.Schema, t.Table, ti, w.Opts.BytesPerChunk)
	if err != nil {
		w.Coord.ChunkingDone(t.Schema, t.Table)
		return fmt.Errorf("worker: chunk %s.%s: %w", t.Schema, t.Table, err)
	}

	tableBase := w.Resolver.Resolve(t.Schema + "." + t.Table)
	dialectExt := dialectExtension(w.Opts.Dialect)

	for i, rng := range ranges {
		last := i == len(ranges)-1
		// Only the first range carries the key IS NULL clause: NULL-keyed
		// rows must land in exactly one chunk, not every chunk (spec.md
		// §4.5, §6.8).
		includeNulls := i == 0 && ti.Index != nil && anyNullable(ti.Columns, ti.Index.Columns[0])
		filename := writer.ChunkFilename(tableBase, i, last, dialectExt, string(w.Opts.Compression))
		task := dumpmodel.DumpRangeTask{
			Schema:       t.Schema,
			Table:        t.Table,
			ChunkOrdinal: i,
			Last:         last,
			Range:        rng,
			IncludeNulls: includeNulls,
			DestPath:     filepath.Join(w.OutputDir, filename),
		}
		if w.Opts.RowIndex {
			task.IndexPath = filepath.Join(w.OutputDir, writer.IndexFilename(filename))
		}
		w.Queue.Push(task)
	}

	if err := w.writeTableDescriptor(t, ti, tableBase, dialectExt, len(ranges) > 1); err != nil {
		w.Coord.ChunkingDone(t.Schema, t.Table)
		return err
	}

	w.Coord.ChunkingDone(t.Schema, t.Table)
	return nil
}

// writeTableDescriptor emits <tableBasename>@.json, the per-table
// descriptor the loader needs to reconstruct column order, encodings, and
// chunking (spec.md §4.9).
func (w *Worker) writeTableDescriptor(t dumpmodel.ChunkTableTask, ti *dumpmodel.TableInfo, tableBase, dialectExt string, chunking bool) error {
	cols := make([]string, len(ti.Columns))
	for i, c := range ti.Columns {
		cols[i] = c.Name
	}
	var primary []string
	if ti.Index != nil {
		primary = ti.Index.Columns
	}
	var triggers []string
	if si, ok := w.Cache.Schemas[t.Schema]; ok {
		for _, tr := range si.Triggers {
			if tr.Table == t.Table {
				triggers = append(triggers, tr.Name)
			}
		}
	}

	desc := manifest.TableDescriptor{
		Schema:        t.Schema,
		Table:         t.Table,
		Columns:       cols,
		DecodeColumns: manifest.TableDecodeColumns(ti.Columns, columnEncodings(ti.Columns)),
		PrimaryIndex:  primary,
		Compression:   string(w.Opts.Compression),
		Charset:       w.Opts.Charset,
		Dialect:       string(w.Opts.Dialect),
		Extension:     dialectExt,
		Triggers:      triggers,
		IncludesData:  w.Opts.DumpData,
		IncludesDDL:   w.Opts.DumpDDL,
		Chunking:      chunking,
	}
	return manifest.WriteTable(w.OutputDir, tableBase, desc)
}

func dialectExtension(d dumpmodel.Dialect) string {
	switch d {
	case dumpmodel.DialectCSV:
		return "csv"
	case dumpmodel.DialectTSV:
		return "tsv"
	case dumpmodel.DialectJSON:
		return "json"
	default:
		return "txt"
	}
}

func anyNullable(cols []dumpmodel.ColumnMeta, name string) bool {
	for _, c := range cols {
		if c.Name == name {
			return c.Nullable
		}
	}
	return false
}
