package coordinator

import (
	"context"
	"fmt"

	"github.com/nethalo/dbdump/internal/dumperrors"
)

// runValidated checks the preconditions the Dumping state assumes hold:
// that EVENT/TRIGGER privileges are actually usable when those object
// kinds were requested (the cache already names the objects; this only
// confirms SHOW-level access hasn't been revoked since BuildMinimal ran).
// The per-DDL compatibility pass itself runs per file in internal/worker,
// since it needs the DDL text, not just a go/no-go answer (spec.md §4.8
// Validated).
func (c *Coordinator) runValidated(ctx context.Context) error {
	c.state = StateValidated
	c.progress.SetState(c.state.String())

	for _, schemaName := range c.cache.SchemaNames() {
		si := c.cache.Schemas[schemaName]
		if c.Opts.DumpEvents && len(si.Events) > 0 {
			rows, err := c.db.QueryContext(ctx, "SHOW EVENTS FROM `"+schemaName+"`")
			if err != nil {
				return fmt.Errorf("%w: SHOW EVENTS on %s: %v", dumperrors.ErrPreconditionFailed, schemaName, err)
			}
			rows.Close()
		}
		if c.Opts.DumpTriggers && len(si.Triggers) > 0 {
			rows, err := c.db.QueryContext(ctx, "SHOW TRIGGERS FROM `"+schemaName+"`")
			if err != nil {
				return fmt.Errorf("%w: SHOW TRIGGERS on %s: %v", dumperrors.ErrPreconditionFailed, schemaName, err)
			}
			rows.Close()
		}
	}
	return nil
}
