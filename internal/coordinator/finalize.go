package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/nethalo/dbdump/internal/manifest"
	"github.com/nethalo/dbdump/internal/progress"
)

// runFinalizing joins every Worker, releases LOCK INSTANCE FOR BACKUP
// (held since Snapshotted so no DDL lands mid-dump), writes the
// completion marker, and renders the job summary. @.done.json's absence
// is the torn-dump signal a loader checks for, so it is written last and
// only on a clean join (spec.md §4.8 Finalizing, §6.9).
func (c *Coordinator) runFinalizing(ctx context.Context, start time.Time) (progress.Summary, error) {
	joinErr := c.eg.Wait()
	releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	c.releaseBackupLock(releaseCtx)
	cancel()
	if joinErr != nil {
		return progress.Summary{}, joinErr
	}
	if first := c.firstError(); first != nil {
		return progress.Summary{}, first
	}

	dataBytes, bytesWritten := c.accumulator.Totals()
	done := manifest.DoneManifest{
		FinishedAt:   time.Now(),
		DataBytes:    dataBytes,
		BytesWritten: bytesWritten,
		Schemas:      c.doneSchemaBytes(),
	}
	if err := manifest.WriteDone(c.Opts.OutputURL, done); err != nil {
		return progress.Summary{}, fmt.Errorf("coordinator: write done manifest: %w", err)
	}

	var tableCount int
	for _, si := range c.cache.Schemas {
		tableCount += len(si.Tables)
	}
	summary := progress.Summary{
		Duration:     time.Since(start),
		SchemaCount:  len(c.cache.Schemas),
		TableCount:   tableCount,
		DataBytes:    dataBytes,
		BytesWritten: bytesWritten,
	}
	return summary, nil
}

// doneSchemaBytes builds @.done.json's per-schema/per-table byte
// breakdown from the shared Accumulator.
func (c *Coordinator) doneSchemaBytes() map[string]manifest.SchemaBytes {
	out := make(map[string]manifest.SchemaBytes, len(c.cache.Schemas))
	for schemaName, si := range c.cache.Schemas {
		tables := make(map[string]manifest.TableBytes, len(si.Tables))
		for table := range si.Tables {
			dataBytes, bytesWritten := c.accumulator.TableTotals(schemaName, table)
			tables[table] = manifest.TableBytes{DataBytes: dataBytes, BytesWritten: bytesWritten}
		}
		out[schemaName] = manifest.SchemaBytes{Tables: tables}
	}
	return out
}
