package coordinator

import (
	"context"
	"fmt"
	"strings"

	"github.com/nethalo/dbdump/internal/dumperrors"
)

// runLocked acquires the instance-wide read lock the snapshot depends on:
// FLUSH TABLES WITH READ LOCK first, falling back to LOCK TABLES ... READ
// over every in-scope table when FTWRL is denied (insufficient privilege,
// or a server that disallows it under a replication topology). Either
// form blocks writers just long enough for every Worker's consistent
// snapshot to start (spec.md §4.2, §4.8 Locked).
func (c *Coordinator) runLocked(ctx context.Context) error {
	c.state = StateLocked
	c.progress.SetState(c.state.String())

	if _, err := c.db.ExecContext(ctx, "FLUSH TABLES WITH READ LOCK"); err == nil {
		c.strongLock = true
		return nil
	}

	tables := c.lockableTableList()
	if len(tables) == 0 {
		// Nothing to lock (DDL/users-only job, or an empty instance): a
		// real lock isn't needed, but flag the weaker guarantee so the
		// manifest reflects it.
		c.strongLock = false
		return nil
	}
	stmt := "LOCK TABLES " + strings.Join(tables, ", ")
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%w: FLUSH TABLES WITH READ LOCK and LOCK TABLES both denied: %v", dumperrors.ErrLockAcquisitionFailed, err)
	}
	c.strongLock = false
	return nil
}

// lockableTableList renders every in-scope table as "`schema`.`table` READ".
func (c *Coordinator) lockableTableList() []string {
	var out []string
	for _, schema := range c.minimalCache.SchemaNames() {
		si := c.minimalCache.Schemas[schema]
		for _, table := range si.TableNames() {
			out = append(out, fmt.Sprintf("`%s`.`%s` READ", schema, table))
		}
	}
	return out
}

// releaseLock drops whichever lock runLocked acquired.
func (c *Coordinator) releaseLock(ctx context.Context) error {
	if c.strongLock {
		_, err := c.db.ExecContext(ctx, "UNLOCK TABLES")
		return err
	}
	if len(c.lockableTableList()) == 0 {
		return nil
	}
	_, err := c.db.ExecContext(ctx, "UNLOCK TABLES")
	return err
}

// acquireBackupLock best-effort acquires LOCK INSTANCE FOR BACKUP, which
// blocks DDL and account-management statements without blocking DML the
// way FLUSH TABLES WITH READ LOCK does, letting the Coordinator narrow
// its own lock window. Absence (older server, insufficient privilege) is
// logged and otherwise ignored (spec.md §4.2).
func (c *Coordinator) acquireBackupLock(ctx context.Context) {
	if !c.serverVersion.SupportsBackupLock() {
		c.Logger.Warnf("coordinator: LOCK INSTANCE FOR BACKUP not supported by server %s", c.serverVersion.String())
		return
	}
	if _, err := c.db.ExecContext(ctx, "LOCK INSTANCE FOR BACKUP"); err != nil {
		c.Logger.Warnf("coordinator: LOCK INSTANCE FOR BACKUP unavailable: %v", err)
		return
	}
	c.backupLockHeld = true
}

// releaseBackupLock drops LOCK INSTANCE FOR BACKUP if acquireBackupLock
// succeeded.
func (c *Coordinator) releaseBackupLock(ctx context.Context) {
	if !c.backupLockHeld {
		return
	}
	if _, err := c.db.ExecContext(ctx, "UNLOCK INSTANCE"); err != nil {
		c.Logger.Warnf("coordinator: UNLOCK INSTANCE: %v", err)
	}
	c.backupLockHeld = false
}
