package coordinator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nethalo/dbdump/internal/dumperrors"
	"github.com/nethalo/dbdump/internal/ratelimit"
	"github.com/nethalo/dbdump/internal/worker"
)

// runSnapshotted opens one dedicated connection per Worker and runs its
// session setup (which starts the consistent-read transaction) while the
// Locked state's read lock is still held, so every Worker's snapshot
// begins at the same instant. Once every Worker is ready it best-effort
// narrows to LOCK INSTANCE FOR BACKUP, captures GTID_EXECUTED, and
// releases the read lock (spec.md §4.8 Snapshotted).
func (c *Coordinator) runSnapshotted(ctx context.Context) error {
	c.state = StateSnapshotted
	c.progress.SetState(c.state.String())

	workers := make([]*worker.Worker, 0, c.Opts.Threads)
	for i := 0; i < c.Opts.Threads; i++ {
		conn, err := c.db.Conn(ctx)
		if err != nil {
			return fmt.Errorf("%w: opening worker connection %d: %v", dumperrors.ErrPreconditionFailed, i, err)
		}
		w := &worker.Worker{
			ID:          i,
			Conn:        conn,
			Queue:       c.queue,
			Cache:       c.minimalCache,
			Opts:        c.Opts,
			Coord:       c,
			Accumulator: c.accumulator,
			Progress:    c.progress,
			Limiter:     ratelimit.New(c.Opts.RateLimitBytesPerSec),
			Logger:      c.Logger,
			OutputDir:   c.Opts.OutputURL,
			Resolver:    c.resolver,
		}
		if err := w.PrepareSession(ctx); err != nil {
			return fmt.Errorf("%w: worker %d session setup: %v", dumperrors.ErrPreconditionFailed, i, err)
		}
		workers = append(workers, w)
	}
	c.workers = workers

	c.acquireBackupLock(ctx)
	c.captureGTID(ctx)

	if err := c.releaseLock(ctx); err != nil {
		return fmt.Errorf("%w: releasing read lock: %v", dumperrors.ErrLockAcquisitionFailed, err)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		eg.Go(func() error { return w.Run(egCtx) })
	}
	c.eg = eg
	c.egCtx = egCtx
	return nil
}
