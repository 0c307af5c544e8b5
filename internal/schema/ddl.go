// Package schema reproduces DDL for schemas, tables, views, routines,
// events, triggers, and users via the server's own SHOW CREATE
// statements, then runs an optional compatibility pass over the result
// (see compat.go). Query and identifier-quoting conventions follow the
// teacher's mysql.GetTableMetadata / escapeIdentifier pattern.
package schema

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func escapeIdentifier(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

func qualified(schema, name string) string {
	return escapeIdentifier(schema) + "." + escapeIdentifier(name)
}

// querier is satisfied by both *sql.DB and *sql.Conn, so DDL dumps run
// equally well over the Coordinator's pool or a Worker's own session
// connection.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DumpSchemaDDL reproduces a schema's CREATE SCHEMA statement.
func DumpSchemaDDL(ctx context.Context, db querier, schemaName string) ([]byte, error) {
	var name, createStmt string
	row := db.QueryRowContext(ctx, "SHOW CREATE SCHEMA "+escapeIdentifier(schemaName))
	if err := row.Scan(&name, &createStmt); err != nil {
		return nil, fmt.Errorf("schema: show create schema %s: %w", schemaName, err)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "DROP SCHEMA IF EXISTS %s;\n", escapeIdentifier(schemaName))
	fmt.Fprintf(&buf, "%s;\n", createStmt)
	return buf.Bytes(), nil
}

// DumpTableDDL reproduces a table's CREATE TABLE statement.
func DumpTableDDL(ctx context.Context, db querier, schemaName, table string) ([]byte, error) {
	var name, createStmt string
	row := db.QueryRowContext(ctx, "SHOW CREATE TABLE "+qualified(schemaName, table))
	if err := row.Scan(&name, &createStmt); err != nil {
		return nil, fmt.Errorf("schema: show create table %s.%s: %w", schemaName, table, err)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "DROP TABLE IF EXISTS %s;\n", escapeIdentifier(table))
	fmt.Fprintf(&buf, "%s;\n", createStmt)
	return buf.Bytes(), nil
}

// DumpViewDDL reproduces a view's two-statement DDL: a placeholder base
// table (so tables that reference the view during reload don't fail),
// then the real view definition, matching mysqldump's own convention.
func DumpViewDDL(ctx context.Context, db querier, schemaName, view string, placeholderCols []string) ([]byte, error) {
	var name, createStmt, charset, collation string
	row := db.QueryRowContext(ctx, "SHOW CREATE VIEW "+qualified(schemaName, view))
	if err := row.Scan(&name, &createStmt, &charset, &collation); err != nil {
		return nil, fmt.Errorf("schema: show create view %s.%s: %w", schemaName, view, err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "DROP VIEW IF EXISTS %s;\n", escapeIdentifier(view))
	fmt.Fprintf(&buf, "DROP TABLE IF EXISTS %s;\n", escapeIdentifier(view))
	fmt.Fprintf(&buf, "CREATE TABLE %s (\n", escapeIdentifier(view))
	for i, col := range placeholderCols {
		sep := ","
		if i == len(placeholderCols)-1 {
			sep = ""
		}
		fmt.Fprintf(&buf, "  %s int%s\n", escapeIdentifier(col), sep)
	}
	buf.WriteString(");\n")
	fmt.Fprintf(&buf, "DROP TABLE IF EXISTS %s;\n", escapeIdentifier(view))
	fmt.Fprintf(&buf, "%s;\n", createStmt)
	return buf.Bytes(), nil
}

// DumpRoutineDDL reproduces a stored function or procedure's DDL.
func DumpRoutineDDL(ctx context.Context, db querier, schemaName, name, kind string) ([]byte, error) {
	query := fmt.Sprintf("SHOW CREATE %s %s", kind, qualified(schemaName, name))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("schema: show create %s %s.%s: %w", kind, schemaName, name, err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		return nil, fmt.Errorf("schema: no rows for %s %s.%s", kind, schemaName, name)
	}
	dest := make([]sql.NullString, len(cols))
	ptrs := make([]any, len(cols))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("schema: scan %s %s.%s: %w", kind, schemaName, name, err)
	}
	createIdx := createColumnIndex(cols, kind)
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "DROP %s IF EXISTS %s;\n", kind, escapeIdentifier(name))
	fmt.Fprintf(&buf, "%s;\n", dest[createIdx].String)
	return buf.Bytes(), nil
}

func createColumnIndex(cols []string, kind string) int {
	lower := strings.ToLower(kind)
	want := "Create " + strings.ToUpper(lower[:1]) + lower[1:]
	for i, c := range cols {
		if c == want {
			return i
		}
	}
	return 2 // SHOW CREATE FUNCTION/PROCEDURE's create-statement column is conventionally the third
}

// DumpEventDDL reproduces a scheduled event's DDL.
func DumpEventDDL(ctx context.Context, db querier, schemaName, name string) ([]byte, error) {
	var eventName, sqlMode, createStmt, charset, collation, dbCollation string
	row := db.QueryRowContext(ctx, "SHOW CREATE EVENT "+qualified(schemaName, name))
	if err := row.Scan(&eventName, &sqlMode, &createStmt, &charset, &collation, &dbCollation); err != nil {
		return nil, fmt.Errorf("schema: show create event %s.%s: %w", schemaName, name, err)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "DROP EVENT IF EXISTS %s;\n", escapeIdentifier(name))
	fmt.Fprintf(&buf, "%s;\n", createStmt)
	return buf.Bytes(), nil
}

// DumpTriggerDDL reproduces a trigger's DDL.
func DumpTriggerDDL(ctx context.Context, db querier, schemaName, name string) ([]byte, error) {
	var triggerName, sqlMode, createStmt, charset, collation, dbCollation, created string
	row := db.QueryRowContext(ctx, "SHOW CREATE TRIGGER "+qualified(schemaName, name))
	err := row.Scan(&triggerName, &sqlMode, &createStmt, &charset, &collation, &dbCollation, &created)
	if err != nil {
		return nil, fmt.Errorf("schema: show create trigger %s.%s: %w", schemaName, name, err)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "DROP TRIGGER IF EXISTS %s;\n", escapeIdentifier(name))
	fmt.Fprintf(&buf, "%s;\n", createStmt)
	return buf.Bytes(), nil
}

// DumpUsersDDL reproduces CREATE USER / GRANT statements for the given
// accounts, via SHOW CREATE USER and SHOW GRANTS.
func DumpUsersDDL(ctx context.Context, db querier, user, host string) ([]byte, error) {
	account := fmt.Sprintf("%s@%s", escapeIdentifier(user), escapeIdentifier(host))
	var createUser string
	row := db.QueryRowContext(ctx, "SHOW CREATE USER "+account)
	if err := row.Scan(&createUser); err != nil {
		return nil, fmt.Errorf("schema: show create user %s: %w", account, err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s;\n", createUser)

	rows, err := db.QueryContext(ctx, "SHOW GRANTS FOR "+account)
	if err != nil {
		return nil, fmt.Errorf("schema: show grants for %s: %w", account, err)
	}
	defer rows.Close()
	for rows.Next() {
		var grant string
		if err := rows.Scan(&grant); err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "%s;\n", grant)
	}
	return buf.Bytes(), rows.Err()
}
