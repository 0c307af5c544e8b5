// Package dump is the dumper's public entry point: one function wiring
// the metadata cache, task queue, worker pool, and manifest writer behind
// a single call, the way the teacher's cmd package calls straight into
// internal/mysql and internal/analyzer without an intermediate library
// layer — except here that entry point is itself the library surface,
// since other Go programs (not just the CLI in cmd/) are expected to call it.
package dump

import (
	"context"
	"fmt"

	"github.com/nethalo/dbdump/internal/coordinator"
	"github.com/nethalo/dbdump/internal/dumplog"
	"github.com/nethalo/dbdump/internal/dumpmodel"
	"github.com/nethalo/dbdump/internal/mysqlconn"
	"github.com/nethalo/dbdump/internal/progress"
)

// Options is the dump job's configuration (internal/dumpmodel.Options).
type Options = dumpmodel.Options

// Connection is the target server's connection parameters
// (internal/mysqlconn.Config).
type Connection = mysqlconn.Config

// Summary is the completed job's report (internal/progress.Summary).
type Summary = progress.Summary

// Run validates opts, then drives a full dump job to completion: lock,
// snapshot, cache, validate, dump, finalize (spec.md §4.8). Cancelling
// ctx interrupts the job at its next safe checkpoint rather than
// guaranteeing an immediate stop, since a held lock or in-flight query
// can't always be abandoned mid-statement.
func Run(ctx context.Context, opts Options, conn Connection, logger *dumplog.Logger) (Summary, error) {
	if err := opts.Validate(); err != nil {
		return Summary{}, fmt.Errorf("dump: %w", err)
	}
	if logger == nil {
		logger = dumplog.New(opts.Verbose)
	}
	c := coordinator.New(opts, conn, logger)
	return c.Run(ctx)
}
