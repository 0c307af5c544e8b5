package coordinator

import (
	"context"
	"database/sql"
)

// captureGTID records @@GLOBAL.gtid_executed while the lock is held, so
// the manifest carries the exact replication position the snapshot was
// taken at. Absence (GTID mode off, or a flavor that doesn't expose it)
// is not an error: gtidInconsistent just tells the loader the field can't
// be trusted (spec.md §4.2, §6.9).
func (c *Coordinator) captureGTID(ctx context.Context) {
	var value sql.NullString
	err := c.db.QueryRowContext(ctx, "SELECT @@GLOBAL.gtid_executed").Scan(&value)
	if err != nil || !value.Valid || value.String == "" {
		c.gtidInconsistent = true
		return
	}
	c.gtidExecuted = value.String
	c.gtidInconsistent = !c.strongLock
}
