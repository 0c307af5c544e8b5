package coordinator

import (
	"context"
	"fmt"
	"os"

	"github.com/nethalo/dbdump/internal/cache"
	"github.com/nethalo/dbdump/internal/dumperrors"
	"github.com/nethalo/dbdump/internal/mysqlconn"
)

// runInit opens the primary connection, checks the caller has some grant
// on the server, resolves the server version, discovers the schema/table
// names BuildFull will need (so the Locked state knows what to lock),
// and makes sure the output directory exists (spec.md §4.8 Init).
func (c *Coordinator) runInit(ctx context.Context) error {
	c.state = StateInit
	c.progress.SetState(c.state.String())

	db, err := mysqlconn.Open(c.ConnConfig, c.Opts.Threads+2)
	if err != nil {
		return fmt.Errorf("%w: %v", dumperrors.ErrPreconditionFailed, err)
	}
	c.db = db

	if err := db.QueryRowContext(ctx, "SELECT CONNECTION_ID()").Scan(&c.primaryConnID); err != nil {
		return fmt.Errorf("%w: connection id: %v", dumperrors.ErrPreconditionFailed, err)
	}

	if _, err := db.QueryContext(ctx, "SHOW GRANTS"); err != nil {
		return fmt.Errorf("%w: caller has no visible grants: %v", dumperrors.ErrPreconditionFailed, err)
	}

	version, err := mysqlconn.GetServerVersion(db)
	if err != nil {
		return fmt.Errorf("%w: %v", dumperrors.ErrPreconditionFailed, err)
	}
	c.serverVersion = version

	if err := os.MkdirAll(c.Opts.OutputURL, 0o755); err != nil {
		return fmt.Errorf("%w: output directory %s: %v", dumperrors.ErrPreconditionFailed, c.Opts.OutputURL, err)
	}
	entries, err := os.ReadDir(c.Opts.OutputURL)
	if err != nil {
		return fmt.Errorf("%w: reading output directory %s: %v", dumperrors.ErrPreconditionFailed, c.Opts.OutputURL, err)
	}
	if len(entries) != 0 {
		return fmt.Errorf("%w: output directory %s is not empty", dumperrors.ErrPreconditionFailed, c.Opts.OutputURL)
	}

	minimal, err := cache.BuildMinimal(ctx, db, c.Opts)
	if err != nil {
		return fmt.Errorf("%w: %v", dumperrors.ErrPreconditionFailed, err)
	}
	c.minimalCache = minimal
	return nil
}
