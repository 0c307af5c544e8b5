package coordinator

import (
	"context"
	"fmt"

	"github.com/nethalo/dbdump/internal/cache"
	"github.com/nethalo/dbdump/internal/dumperrors"
)

// runCached fills in column, index, row-count, view, routine, event,
// trigger, and user metadata for every object the Locked/Init states
// already named. It runs under no lock (the snapshot, not a table lock,
// is what keeps this consistent) and mutates minimalCache in place, so
// every Worker already holding that same pointer observes the fill-in
// once BuildFull returns (spec.md §4.3, §4.8 Cached).
func (c *Coordinator) runCached(ctx context.Context) error {
	c.state = StateCached
	c.progress.SetState(c.state.String())

	if err := cache.BuildFull(ctx, c.db, c.minimalCache, c.Opts); err != nil {
		return fmt.Errorf("%w: %v", dumperrors.ErrPreconditionFailed, err)
	}
	c.cache = c.minimalCache
	return nil
}
