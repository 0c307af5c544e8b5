// Package worker executes Tasks pulled off the shared queue: DDL dumps,
// table chunking, and the range dumps that do the bulk of the data-moving
// work. One Worker owns one *sql.Conn for its whole lifetime, so a
// consistent-read snapshot started at session setup stays valid across
// every task the Worker runs (spec.md §5, §6.7).
package worker

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nethalo/dbdump/internal/dumplog"
	"github.com/nethalo/dbdump/internal/dumpmodel"
	"github.com/nethalo/dbdump/internal/manifest"
	"github.com/nethalo/dbdump/internal/progress"
	"github.com/nethalo/dbdump/internal/queue"
	"github.com/nethalo/dbdump/internal/ratelimit"
	"github.com/nethalo/dbdump/internal/writer"
)

// progressCadenceRows is how often a DumpRangeTask reports progress and
// checks the rate limiter, per spec.md §6.7.
const progressCadenceRows = 2000

// CoordinatorHandle is the subset of the Coordinator a Worker needs.
// Declaring it here rather than importing internal/coordinator lets
// internal/coordinator import internal/worker without a cycle.
type CoordinatorHandle interface {
	Interrupted() bool
	ReportError(err error)
	ChunkingDone(schema, table string)
}

// Worker pulls Tasks from Queue and executes them against its own
// connection until the queue is drained or the job is interrupted.
type Worker struct {
	ID    int
	Conn  *sql.Conn
	Queue *queue.Queue
	Cache *dumpmodel.InstanceCache
	Opts  dumpmodel.Options

	Coord       CoordinatorHandle
	Accumulator *manifest.Accumulator
	Progress    *progress.Reporter
	Limiter     *ratelimit.Limiter
	Logger      *dumplog.Logger

	OutputDir string
	Resolver  *writer.BasenameResolver

	sessionReady bool
}

// PrepareSession runs this Worker's session setup (charset, time zone,
// and the consistent-snapshot transaction) immediately, rather than
// lazily on the first Run call. The Coordinator calls this for every
// Worker while still holding the instance-wide read lock, so every
// Worker's snapshot starts before the lock is released (spec.md §6.8's
// Snapshotted state). Run skips setup when this has already succeeded.
func (w *Worker) PrepareSession(ctx context.Context) error {
	if err := setupSession(ctx, w.Conn, w.Opts.Charset, w.Opts.UTCTimeZone, w.Opts.Consistent); err != nil {
		return err
	}
	w.sessionReady = true
	return nil
}

// Run sets up this Worker's session (unless PrepareSession already did)
// and then pulls tasks until the queue is drained (Pop returns ok=false)
// or the job has been interrupted. A task execution error is reported to
// the Coordinator and stops this Worker from pulling further tasks
// (spec.md §6.7's abort-on-error policy) rather than being swallowed and
// retried silently.
func (w *Worker) Run(ctx context.Context) error {
	if !w.sessionReady {
		if err := w.PrepareSession(ctx); err != nil {
			w.Coord.ReportError(err)
			return err
		}
	}

	for {
		if w.Coord.Interrupted() {
			return nil
		}
		task, ok := w.Queue.Pop()
		if !ok {
			return nil
		}

		var err error
		switch t := task.(type) {
		case dumpmodel.DumpSchemaDDLTask:
			err = w.runSchemaDDL(ctx, t)
		case dumpmodel.DumpTableDDLTask:
			err = w.runTableDDL(ctx, t)
		case dumpmodel.DumpViewDDLTask:
			err = w.runViewDDL(ctx, t)
		case dumpmodel.ChunkTableTask:
			err = w.runChunkTable(ctx, t)
		case dumpmodel.DumpRangeTask:
			err = w.runDumpRange(ctx, t)
		default:
			err = fmt.Errorf("worker: unknown task type %T", task)
		}
		if err != nil {
			w.Logger.Errorf("worker %d: %v", w.ID, err)
			w.Coord.ReportError(err)
			return err
		}
	}
}
