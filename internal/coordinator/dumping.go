package coordinator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nethalo/dbdump/internal/dumpmodel"
	"github.com/nethalo/dbdump/internal/manifest"
	"github.com/nethalo/dbdump/internal/schema"
)

// buildVersion is the dumper's reported version until a release process
// injects one via -ldflags.
const buildVersion = "dev"

// runDumping writes the job-start manifest and every schema descriptor,
// then enqueues High-priority DDL tasks and Medium-priority ChunkTable
// tasks for Workers to pick up. If data dumping was requested for at
// least one table, outstandingChunks tracks ChunkingDone callbacks; if
// not, the queue is shut down immediately once DDL tasks are queued
// (spec.md §4.8 Dumping).
func (c *Coordinator) runDumping(ctx context.Context) error {
	c.state = StateDumping
	c.progress.SetState(c.state.String())

	if err := c.writeStartManifest(); err != nil {
		return err
	}
	if err := c.writeUsersFile(ctx); err != nil {
		return err
	}

	// The count is stored before the first ChunkTableTask is pushed, so a
	// Worker's ChunkingDone can never run ahead of it.
	var chunkCount int64
	if c.Opts.DumpData {
		for _, schemaName := range c.cache.SchemaNames() {
			chunkCount += int64(len(c.cache.Schemas[schemaName].TableNames()))
		}
	}
	c.outstandingChunks.Store(chunkCount)

	for _, schemaName := range c.cache.SchemaNames() {
		si := c.cache.Schemas[schemaName]
		if err := c.writeSchemaDescriptor(schemaName, si); err != nil {
			return err
		}

		if c.Opts.DumpDDL {
			c.queue.Push(dumpmodel.DumpSchemaDDLTask{Schema: schemaName})
			for _, table := range si.TableNames() {
				c.queue.Push(dumpmodel.DumpTableDDLTask{Schema: schemaName, Table: table})
			}
			for _, view := range si.ViewNames() {
				c.queue.Push(dumpmodel.DumpViewDDLTask{Schema: schemaName, View: view})
			}
		}
		if c.Opts.DumpData {
			for _, table := range si.TableNames() {
				c.queue.Push(dumpmodel.ChunkTableTask{Schema: schemaName, Table: table})
			}
		}
	}

	if chunkCount == 0 {
		c.queue.Shutdown(c.Opts.Threads)
	}
	return nil
}

func (c *Coordinator) writeStartManifest() error {
	schemaBasenames := make(map[string]string, len(c.cache.Schemas))
	for _, name := range c.cache.SchemaNames() {
		schemaBasenames[name] = c.resolver.Resolve(name)
	}
	var users []string
	for _, u := range c.cache.Users {
		users = append(users, fmt.Sprintf("%s@%s", u.User, u.Host))
	}

	m := manifest.StartManifest{
		Dumper:                   "dbdump",
		Version:                  buildVersion,
		StartedAt:                time.Now(),
		Schemas:                  c.cache.SchemaNames(),
		SchemaBasenames:          schemaBasenames,
		Users:                    users,
		DefaultCharset:           c.Opts.Charset,
		UTCTimeZone:              c.Opts.UTCTimeZone,
		BytesPerChunk:            c.Opts.BytesPerChunk,
		ServerUser:               c.ConnConfig.User,
		ServerHost:               c.ConnConfig.Host,
		ServerVersion:            c.serverVersion.String(),
		GTIDExecuted:             c.gtidExecuted,
		GTIDExecutedInconsistent: c.gtidInconsistent || !c.strongLock,
		Consistent:               c.Opts.Consistent,
		Compatibility:            c.Opts.CompatibilityTarget != nil,
	}
	if err := manifest.WriteStart(c.Opts.OutputURL, m); err != nil {
		return fmt.Errorf("coordinator: write start manifest: %w", err)
	}
	return nil
}

func (c *Coordinator) writeSchemaDescriptor(schemaName string, si *dumpmodel.SchemaInfo) error {
	basenames := make(map[string]string)
	for _, table := range si.TableNames() {
		basenames[table] = c.resolver.Resolve(schemaName + "." + table)
	}
	for _, view := range si.ViewNames() {
		basenames[view] = c.resolver.Resolve(schemaName + "." + view)
	}
	var routines []string
	for _, r := range si.Routines {
		routines = append(routines, r.Name)
	}
	var events []string
	for _, e := range si.Events {
		events = append(events, e.Name)
	}

	d := manifest.SchemaDescriptor{
		IncludesDDL:   c.Opts.DumpDDL,
		IncludesData:  c.Opts.DumpData,
		IncludesViews: len(si.Views) > 0,
		Tables:        si.TableNames(),
		Views:         si.ViewNames(),
		Events:        events,
		Routines:      routines,
		Basenames:     basenames,
	}
	schemaBase := c.resolver.Resolve(schemaName)
	if err := manifest.WriteSchema(c.Opts.OutputURL, schemaBase, d); err != nil {
		return fmt.Errorf("coordinator: write schema descriptor %s: %w", schemaName, err)
	}
	return nil
}

// writeUsersFile writes @.users.sql, one CREATE USER/GRANT block per
// account the cache resolved, via a single query path over the primary
// connection (accounts are few enough not to need a Task/Worker for
// this).
func (c *Coordinator) writeUsersFile(ctx context.Context) error {
	if !c.Opts.DumpUsers || len(c.cache.Users) == 0 {
		return nil
	}
	var out []byte
	for _, u := range c.cache.Users {
		ddl, err := schema.DumpUsersDDL(ctx, c.db, u.User, u.Host)
		if err != nil {
			return fmt.Errorf("coordinator: dump user %s@%s: %w", u.User, u.Host, err)
		}
		out = append(out, ddl...)
	}
	path := filepath.Join(c.Opts.OutputURL, "@.users.sql")
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("coordinator: write %s: %w", path, err)
	}
	return nil
}
