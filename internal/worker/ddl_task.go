package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nethalo/dbdump/internal/dumpmodel"
	"github.com/nethalo/dbdump/internal/schema"
)

// writeDDLFile applies the optional compatibility pass and writes ddl to
// dir/basename+".sql" via a plain, uncompressed os.Create — DDL text is
// never dialect-framed or compressed (spec.md §6).
func (w *Worker) writeDDLFile(basename string, ddl []byte) error {
	rewritten, issues, err := schema.CompatibilityPass(string(ddl), w.Opts.CompatibilityTarget)
	if err != nil {
		return fmt.Errorf("worker: compatibility pass on %s: %w", basename, err)
	}
	for _, issue := range issues {
		w.Logger.Warnf("worker %d: %s: %s (%s)", w.ID, basename, issue.Description, issue.Status)
	}
	path := filepath.Join(w.OutputDir, basename+".sql")
	if err := os.WriteFile(path, []byte(rewritten), 0o644); err != nil {
		return fmt.Errorf("worker: write %s: %w", path, err)
	}
	return nil
}

func (w *Worker) runSchemaDDL(ctx context.Context, t dumpmodel.DumpSchemaDDLTask) error {
	ddl, err := schema.DumpSchemaDDL(ctx, w.Conn, t.Schema)
	if err != nil {
		return err
	}
	return w.writeDDLFile(w.Resolver.Resolve(t.Schema), ddl)
}

func (w *Worker) runTableDDL(ctx context.Context, t dumpmodel.DumpTableDDLTask) error {
	ddl, err := schema.DumpTableDDL(ctx, w.Conn, t.Schema, t.Table)
	if err != nil {
		return err
	}
	return w.writeDDLFile(w.Resolver.Resolve(t.Schema+"."+t.Table), ddl)
}

func (w *Worker) runViewDDL(ctx context.Context, t dumpmodel.DumpViewDDLTask) error {
	si, ok := w.Cache.Schemas[t.Schema]
	if !ok {
		return fmt.Errorf("worker: schema %s not in cache", t.Schema)
	}
	vi, ok := si.Views[t.View]
	if !ok {
		return fmt.Errorf("worker: view %s.%s not in cache", t.Schema, t.View)
	}
	cols := make([]string, len(vi.Columns))
	for i, c := range vi.Columns {
		cols[i] = c.Name
	}
	ddl, err := schema.DumpViewDDL(ctx, w.Conn, t.Schema, t.View, cols)
	if err != nil {
		return err
	}
	return w.writeDDLFile(w.Resolver.Resolve(t.Schema+"."+t.View), ddl)
}
