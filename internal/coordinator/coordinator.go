// Package coordinator drives one dump job through its state machine:
// acquire an instance-wide lock, start every Worker's consistent
// snapshot under it, build the metadata cache, validate preconditions,
// enqueue DDL and chunking work, and join every Worker before writing
// the completion marker (spec.md §4.8, §6.8). The shape follows the
// teacher's single top-level orchestration entry point in cmd/root.go,
// generalized into an explicit multi-phase machine with its own error
// and interrupt bookkeeping.
package coordinator

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nethalo/dbdump/internal/dumperrors"
	"github.com/nethalo/dbdump/internal/dumplog"
	"github.com/nethalo/dbdump/internal/dumpmodel"
	"github.com/nethalo/dbdump/internal/manifest"
	"github.com/nethalo/dbdump/internal/mysqlconn"
	"github.com/nethalo/dbdump/internal/progress"
	"github.com/nethalo/dbdump/internal/queue"
	"github.com/nethalo/dbdump/internal/ratelimit"
	"github.com/nethalo/dbdump/internal/worker"
	"github.com/nethalo/dbdump/internal/writer"
)

// Coordinator owns the job's shared resources: the task queue, the byte
// accumulator, the progress reporter, and the primary connection the
// metadata phases run over. Workers are spawned and joined here but hold
// their own connections.
type Coordinator struct {
	Opts       dumpmodel.Options
	ConnConfig mysqlconn.Config
	Logger     *dumplog.Logger

	db    *sql.DB
	state State

	minimalCache *dumpmodel.InstanceCache
	cache        *dumpmodel.InstanceCache
	queue        *queue.Queue
	accumulator  *manifest.Accumulator
	progress     *progress.Reporter
	resolver     *writer.BasenameResolver
	limiter      *ratelimit.Limiter

	eg      *errgroup.Group
	egCtx   context.Context
	workers []*worker.Worker

	mu        sync.Mutex
	errs      []error
	interrupt atomic.Bool

	outstandingChunks atomic.Int64

	serverVersion    mysqlconn.ServerVersion
	strongLock       bool
	backupLockHeld   bool
	primaryConnID    int64
	gtidExecuted     string
	gtidInconsistent bool
}

// New returns a Coordinator ready for Run. The caller has already
// validated opts (dumpmodel.Options.Validate).
func New(opts dumpmodel.Options, connCfg mysqlconn.Config, logger *dumplog.Logger) *Coordinator {
	return &Coordinator{
		Opts:        opts,
		ConnConfig:  connCfg,
		Logger:      logger,
		queue:       queue.New(opts.Threads * 4),
		accumulator: manifest.NewAccumulator(),
		progress:    progress.NewReporter(time.Now()),
		resolver:    writer.NewBasenameResolver(),
		limiter:     ratelimit.New(opts.RateLimitBytesPerSec),
	}
}

// Interrupted satisfies internal/worker.CoordinatorHandle.
func (c *Coordinator) Interrupted() bool { return c.interrupt.Load() }

// ReportError satisfies internal/worker.CoordinatorHandle: it records err
// and flips the interrupt flag so every other Worker stops pulling tasks
// at its next loop check (spec.md §6.8's abort-on-first-error policy).
func (c *Coordinator) ReportError(err error) {
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
	c.interrupt.Store(true)
	// Wake every Worker blocked in Queue.Pop so they notice the
	// interrupt flag instead of waiting on work that will never come.
	c.queue.Shutdown(c.Opts.Threads)
}

// ChunkingDone satisfies internal/worker.CoordinatorHandle. Once every
// ChunkTableTask has reported in, the Coordinator knows no further
// DumpRangeTask will be produced and shuts the queue down for exactly
// Opts.Threads Workers.
func (c *Coordinator) ChunkingDone(schema, table string) {
	if c.outstandingChunks.Add(-1) == 0 {
		c.queue.Shutdown(c.Opts.Threads)
	}
}

var _ worker.CoordinatorHandle = (*Coordinator)(nil)

// firstError returns the first error reported, or nil.
func (c *Coordinator) firstError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errs) == 0 {
		return nil
	}
	return c.errs[0]
}

// Run drives the state machine to completion, returning a Summary on
// success. Any failure short-circuits to StateAborted; the error
// returned is the first one reported (spec.md §6.8).
func (c *Coordinator) Run(ctx context.Context) (progress.Summary, error) {
	start := time.Now()
	defer func() { c.progress.SetState(c.state.String()) }()

	if err := c.runInit(ctx); err != nil {
		return progress.Summary{}, c.abort(ctx, err)
	}
	if err := c.runLocked(ctx); err != nil {
		return progress.Summary{}, c.abort(ctx, err)
	}
	if err := c.runSnapshotted(ctx); err != nil {
		return progress.Summary{}, c.abort(ctx, err)
	}
	if err := c.runCached(ctx); err != nil {
		return progress.Summary{}, c.abort(ctx, err)
	}
	if err := c.runValidated(ctx); err != nil {
		return progress.Summary{}, c.abort(ctx, err)
	}
	if err := c.runDumping(ctx); err != nil {
		return progress.Summary{}, c.abort(ctx, err)
	}

	c.state = StateFinalizing
	c.progress.SetState(c.state.String())
	summary, err := c.runFinalizing(ctx, start)
	if err != nil {
		return progress.Summary{}, c.abort(ctx, err)
	}
	c.state = StateDone
	c.progress.SetState(c.state.String())
	return summary, nil
}

// abort marks the job Aborted, best-effort kills the primary connection's
// in-flight query so a held lock or running SELECT doesn't linger, and
// returns the representative error (the first one reported, or err if
// none was).
func (c *Coordinator) abort(ctx context.Context, err error) error {
	c.state = StateAborted
	c.progress.SetState(c.state.String())
	c.interrupt.Store(true)
	if c.db != nil && c.primaryConnID != 0 {
		killCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, killErr := c.db.ExecContext(killCtx, fmt.Sprintf("KILL QUERY %d", c.primaryConnID)); killErr != nil {
			c.Logger.Warnf("coordinator: best-effort KILL QUERY %d: %v", c.primaryConnID, killErr)
		}
	}
	result := err
	if first := c.firstError(); first != nil {
		result = first
	}
	// ctx.Err() is non-nil only when the caller cancelled or timed out the
	// job itself, not for an ordinary query/lock failure; tag that case
	// with ErrCancelled so callers can tell "we were told to stop" apart
	// from "the server rejected something" via dumperrors.Is.
	if ctx.Err() != nil {
		return fmt.Errorf("coordinator: %w: %w", dumperrors.ErrCancelled, result)
	}
	return result
}
