package worker

import (
	"context"
	"database/sql"
	"fmt"
)

// setupSession runs the per-connection statements every Worker needs
// before it starts pulling tasks: timeouts long enough to survive a
// multi-hour dump, an explicit charset, UTC when requested, and a
// consistent-read snapshot when the job demands one. Timeout values
// match spec.md §5/§7.
func setupSession(ctx context.Context, conn *sql.Conn, charset string, utc, consistent bool) error {
	stmts := []string{
		"SET SESSION sql_mode = ''",
		"SET SESSION net_write_timeout = 1800",
		"SET SESSION wait_timeout = 31536000",
	}
	if charset != "" {
		stmts = append(stmts, fmt.Sprintf("SET NAMES %s", charset))
	}
	if utc {
		stmts = append(stmts, "SET time_zone = '+00:00'")
	}
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("worker: session setup %q: %w", stmt, err)
		}
	}
	if consistent {
		if _, err := conn.ExecContext(ctx, "START TRANSACTION WITH CONSISTENT SNAPSHOT"); err != nil {
			return fmt.Errorf("worker: start consistent snapshot: %w", err)
		}
	}
	return nil
}
