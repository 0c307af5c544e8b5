// Package chunker discovers disjoint key ranges covering a table's rows,
// dispatching on the chosen index's key type: arithmetic striding with
// EXPLAIN-driven bisection for integer keys, LIMIT-walking for every
// other orderable type. The shared accounting (ordinal, last-chunk flag,
// includeNulls) lives in this file, outside both variants, per spec.md
// §9's note that chunker recursion is "unified by a tagged Range type and
// a two-variant algorithm".
package chunker

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nethalo/dbdump/internal/dumpmodel"
)

// minAcceptanceWindow, maxBisectionSteps and maxRetries are the bisection heuristics named in
// spec.md §9 as workload-dependent and open to revision.
const (
	minAcceptanceWindow = 10
	maxBisectionSteps   = 10
	maxRetries          = 10
)

func isIntegerType(columnType string) bool {
	for _, prefix := range []string{"int", "bigint", "smallint", "mediumint", "tinyint"} {
		if hasPrefixFold(columnType, prefix) {
			return true
		}
	}
	return false
}

func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		a, b := s[i], prefix[i]
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}

func keyType(columnType string) dumpmodel.KeyType {
	switch {
	case isIntegerType(columnType):
		return dumpmodel.KeyTypeInteger
	case hasPrefixFold(columnType, "decimal") || hasPrefixFold(columnType, "numeric") || hasPrefixFold(columnType, "float") || hasPrefixFold(columnType, "double"):
		return dumpmodel.KeyTypeDecimal
	case hasPrefixFold(columnType, "char") || hasPrefixFold(columnType, "varchar") || hasPrefixFold(columnType, "text"):
		return dumpmodel.KeyTypeString
	default:
		return dumpmodel.KeyTypeOther
	}
}

func keyColumnType(cols []dumpmodel.ColumnMeta, keyColumn string) string {
	for _, c := range cols {
		if c.Name == keyColumn {
			return c.Type
		}
	}
	return ""
}

// querier is satisfied by both *sql.DB (used in tests, via sqlmock) and
// *sql.Conn (what a Worker actually probes over, so chunking runs on the
// same session as the rest of its work rather than a pool connection).
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ChunkTable produces the sequence of disjoint ranges covering table's
// rows, per spec.md §4.5. An empty table or a table with no usable index
// yields zero ranges or a single whole-table range respectively.
func ChunkTable(ctx context.Context, db querier, schema, table string, ti *dumpmodel.TableInfo, bytesPerChunk int64) ([]dumpmodel.Range, error) {
	if ti.Index == nil {
		return []dumpmodel.Range{dumpmodel.WholeTable()}, nil
	}
	if ti.RowCountEstimate <= 0 {
		return nil, nil
	}

	keyColumn := ti.Index.Columns[0]
	typ := keyType(keyColumnType(ti.Columns, keyColumn))
	rowsPerChunk := rowsPerChunkTarget(bytesPerChunk, ti.AvgRowLength)

	switch typ {
	case dumpmodel.KeyTypeInteger:
		return chunkByStriding(ctx, db, schema, table, keyColumn, ti.RowCountEstimate, rowsPerChunk)
	default:
		return chunkByLimitWalk(ctx, db, schema, table, keyColumn, typ, rowsPerChunk)
	}
}

// rowsPerChunkTarget computes the row count a single chunk should aim
// for, per spec.md §4.5's bytesPerChunk / avgRowLength division. Tables
// whose average row exceeds bytesPerChunk floor to one-row chunks
// (spec.md §8's edge case), instead of a zero target that would never
// terminate.
func rowsPerChunkTarget(bytesPerChunk, avgRowLength int64) int64 {
	if avgRowLength <= 0 {
		avgRowLength = 256
	}
	n := bytesPerChunk / avgRowLength
	if n < 1 {
		n = 1
	}
	return n
}

func quoteIdent(s string) string {
	return "`" + s + "`"
}

func explainRowEstimate(ctx context.Context, db querier, schema, table, keyColumn string, begin, end int64) (int64, error) {
	query := fmt.Sprintf("EXPLAIN SELECT COUNT(*) FROM %s.%s WHERE %s BETWEEN ? AND ?",
		quoteIdent(schema), quoteIdent(table), quoteIdent(keyColumn))
	rows, err := db.QueryContext(ctx, query, begin, end)
	if err != nil {
		return 0, fmt.Errorf("chunker: explain probe: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	rowsIdx := -1
	for i, c := range cols {
		if c == "rows" {
			rowsIdx = i
			break
		}
	}
	if rowsIdx == -1 {
		return 0, fmt.Errorf("chunker: explain output has no rows column")
	}
	if !rows.Next() {
		return 0, nil
	}
	dest := make([]sql.RawBytes, len(cols))
	ptrs := make([]any, len(cols))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return 0, fmt.Errorf("chunker: scan explain row: %w", err)
	}
	var estimate int64
	fmt.Sscanf(string(dest[rowsIdx]), "%d", &estimate)
	return estimate, nil
}
